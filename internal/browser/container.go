package browser

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/client"
	"github.com/docker/go-connections/nat"
	"github.com/google/uuid"
)

const browserImage = "browserless/chrome:latest"

// ContainerProvisioner runs each browser in its own browserless/chrome
// container and attaches over the DevTools websocket.
type ContainerProvisioner struct {
	client *client.Client
	http   *http.Client
}

func NewContainerProvisioner() (*ContainerProvisioner, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("failed to create docker client: %w", err)
	}

	return &ContainerProvisioner{
		client: cli,
		http:   &http.Client{Timeout: 2 * time.Second},
	}, nil
}

func (p *ContainerProvisioner) Name() string { return "container" }

func (p *ContainerProvisioner) Allocate(ctx context.Context, opts Options, fp Fingerprint) (*Allocation, error) {
	if err := p.ensureImage(ctx); err != nil {
		return nil, err
	}

	name := "campuswatch-" + uuid.New().String()[:8]
	containerConfig := &container.Config{
		Image: browserImage,
		Labels: map[string]string{
			"managed-by": "campuswatch",
		},
		Env: []string{
			"CONNECTION_TIMEOUT=-1",
			"MAX_CONCURRENT_SESSIONS=1",
			"PREBOOT_CHROME=true",
			"KEEP_ALIVE=true",
			"EXIT_ON_HEALTH_FAILURE=false",
			fmt.Sprintf("DEFAULT_HEADLESS=%t", opts.Headless),
			"DEFAULT_BLOCK_ADS=true",
		},
		ExposedPorts: nat.PortSet{
			"3000/tcp": struct{}{},
		},
	}

	hostConfig := &container.HostConfig{
		PortBindings: nat.PortMap{
			"3000/tcp": []nat.PortBinding{
				{
					HostIP:   "127.0.0.1",
					HostPort: "0",
				},
			},
		},
	}

	resp, err := p.client.ContainerCreate(ctx, containerConfig, hostConfig, nil, nil, name)
	if err != nil {
		return nil, fmt.Errorf("failed to create container: %w", err)
	}
	cleanup := func(ctx context.Context) error { return p.stop(ctx, resp.ID) }

	if err := p.client.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
		_ = cleanup(context.WithoutCancel(ctx))
		return nil, fmt.Errorf("failed to start container: %w", err)
	}

	inspect, err := p.client.ContainerInspect(ctx, resp.ID)
	if err != nil {
		_ = cleanup(context.WithoutCancel(ctx))
		return nil, fmt.Errorf("failed to inspect container: %w", err)
	}
	bindings := inspect.NetworkSettings.Ports["3000/tcp"]
	if len(bindings) == 0 {
		_ = cleanup(context.WithoutCancel(ctx))
		return nil, fmt.Errorf("container %s has no published devtools port", resp.ID[:12])
	}
	port := bindings[0].HostPort

	if err := p.waitForBrowserReady(ctx, port); err != nil {
		_ = cleanup(context.WithoutCancel(ctx))
		return nil, fmt.Errorf("browser failed to become ready: %w", err)
	}

	connectURL := fmt.Sprintf("ws://127.0.0.1:%s", port)
	allocCtx, cancel := chromedp.NewRemoteAllocator(context.WithoutCancel(ctx), connectURL)

	return &Allocation{
		Ctx:         allocCtx,
		Cancel:      cancel,
		ConnectURL:  connectURL,
		ContainerID: resp.ID,
		Cleanup:     cleanup,
	}, nil
}

func (p *ContainerProvisioner) stop(ctx context.Context, containerID string) error {
	timeout := 10
	if err := p.client.ContainerStop(ctx, containerID, container.StopOptions{Timeout: &timeout}); err != nil {
		return fmt.Errorf("failed to stop container: %w", err)
	}
	if err := p.client.ContainerRemove(ctx, containerID, container.RemoveOptions{Force: true}); err != nil {
		return fmt.Errorf("failed to remove container: %w", err)
	}
	return nil
}

func (p *ContainerProvisioner) ensureImage(ctx context.Context) error {
	images, err := p.client.ImageList(ctx, image.ListOptions{})
	if err != nil {
		return fmt.Errorf("failed to list images: %w", err)
	}

	for _, img := range images {
		for _, tag := range img.RepoTags {
			if tag == browserImage {
				return nil
			}
		}
	}

	reader, err := p.client.ImagePull(ctx, browserImage, image.PullOptions{})
	if err != nil {
		return fmt.Errorf("failed to pull image: %w", err)
	}
	defer reader.Close()

	_, err = io.Copy(io.Discard, reader)
	return err
}

func (p *ContainerProvisioner) Close() error {
	return p.client.Close()
}

// waitForBrowserReady polls the /json/version endpoint until Chrome answers.
func (p *ContainerProvisioner) waitForBrowserReady(ctx context.Context, port string) error {
	url := fmt.Sprintf("http://127.0.0.1:%s/json/version", port)
	const maxRetries = 40

	for i := 0; i < maxRetries; i++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return err
		}
		resp, err := p.http.Do(req)
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return nil
			}
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(500 * time.Millisecond):
		}
	}

	return fmt.Errorf("browser did not become ready after %d retries", maxRetries)
}
