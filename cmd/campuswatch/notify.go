package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func newNotifyTestCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "notify-test",
		Short: "Send a test message to the configured Telegram chat",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup(cmd, g)
			if err != nil {
				return err
			}
			defer a.Close()

			tg, err := a.telegram()
			if err != nil {
				return err
			}

			msg := fmt.Sprintf("🧪 <b>Test Message</b>\n\ncampuswatch %s can reach this chat.\nSent at %s",
				Version, time.Now().In(a.cfg.Location).Format(time.DateTime))
			if !tg.Send(cmd.Context(), msg) {
				return errors.New("failed to deliver test message")
			}
			fmt.Fprintln(cmd.OutOrStdout(), "✅ Test message delivered")
			return nil
		},
	}
}
