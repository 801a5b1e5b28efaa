package browser

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/chromedp/chromedp"
)

// ErrNoProvisioner is returned by Acquire when no provisioner is configured.
var ErrNoProvisioner = errors.New("no browser provisioner configured")

// Allocation is a browser ready for chromedp to attach tabs to.
type Allocation struct {
	Ctx         context.Context
	Cancel      context.CancelFunc
	ConnectURL  string
	ContainerID string
	// Cleanup releases anything started outside the allocator, such as a container.
	Cleanup func(context.Context) error
}

// Provisioner starts a browser. Provisioners are tried in order until one succeeds.
type Provisioner interface {
	Name() string
	Allocate(ctx context.Context, opts Options, fp Fingerprint) (*Allocation, error)
}

// ExecProvisioner launches Chrome as a local child process. An empty Path
// lets chromedp discover the binary.
type ExecProvisioner struct {
	Path string
}

func (p ExecProvisioner) Name() string {
	if p.Path != "" {
		return "local"
	}
	return "default"
}

func (p ExecProvisioner) Allocate(ctx context.Context, opts Options, fp Fingerprint) (*Allocation, error) {
	flags := execFlags(opts, fp)
	if p.Path != "" {
		if _, err := os.Stat(p.Path); err != nil {
			return nil, fmt.Errorf("chrome binary not usable: %w", err)
		}
		flags = append(flags, chromedp.ExecPath(p.Path))
	}

	allocCtx, cancel := chromedp.NewExecAllocator(context.WithoutCancel(ctx), flags...)
	return &Allocation{Ctx: allocCtx, Cancel: cancel}, nil
}
