// Package alert raises a local alarm when apartments become available, on
// top of the chat notification.
package alert

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/shehryarbajwa/campuswatch/pkg/models"
)

// Alerter is notified once per newly available set.
type Alerter interface {
	Alert(ctx context.Context, categories []models.Category, url string) error
}

// Nop ignores alerts.
type Nop struct{}

func (Nop) Alert(context.Context, []models.Category, string) error { return nil }

// Command runs a shell command for each alert. The categories and the page
// URL are passed as CAMPUSWATCH_CATEGORIES and CAMPUSWATCH_URL.
type Command struct {
	Line    string
	Timeout time.Duration
}

func (c Command) Alert(ctx context.Context, categories []models.Category, url string) error {
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	names := make([]string, len(categories))
	for i, cat := range categories {
		names[i] = cat.DisplayName()
	}

	cmd := exec.CommandContext(ctx, "sh", "-c", c.Line)
	cmd.Env = append(os.Environ(),
		"CAMPUSWATCH_CATEGORIES="+strings.Join(names, ","),
		"CAMPUSWATCH_URL="+url,
	)
	// Children of sh may outlive it and hold the output pipe open.
	cmd.WaitDelay = time.Second
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("alert command failed: %w: %s", err, strings.TrimSpace(string(out)))
	}
	return nil
}

// New returns a Command alerter for a non-empty line, Nop otherwise.
func New(line string) Alerter {
	if strings.TrimSpace(line) == "" {
		return Nop{}
	}
	return Command{Line: line}
}
