package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	Version   = "dev"
	CommitSHA = "none"
	BuildDate = "unknown"
)

// globals are the persistent flags shared by every subcommand.
type globals struct {
	envFile  string
	logLevel string
	profile  string
}

func newRootCmd() *cobra.Command {
	g := &globals{}

	root := &cobra.Command{
		Use:           "campuswatch",
		Short:         "Watches the OurCampus floorplans page and reports apartment availability on Telegram",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&g.envFile, "env-file", ".env", "dotenv file to load before reading the environment")
	root.PersistentFlags().StringVar(&g.logLevel, "log-level", "", "log level (overrides LOG_LEVEL)")
	root.PersistentFlags().StringVar(&g.profile, "profile", "", "monitoring profile: conservative, fast or speed (overrides PROFILE)")

	root.AddCommand(newRunCmd(g))
	root.AddCommand(newCheckCmd(g))
	root.AddCommand(newNotifyTestCmd(g))
	root.AddCommand(newStatsCmd(g))
	root.AddCommand(newVersionCmd())

	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version info",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "campuswatch %s (commit=%s, built=%s)\n", Version, CommitSHA, BuildDate)
		},
	}
}
