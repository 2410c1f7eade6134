//go:build integration

package containers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

const ntfyImage = "binwiederhier/ntfy"

// NtfyServer is a disposable ntfy server used as a notification target.
// Messages are kept in an in-container cache so topics can be polled after
// the collector pushed to them.
type NtfyServer struct {
	container testcontainers.Container
	hostPort  string
	client    *http.Client
}

// NtfyConfig selects the ntfy image.
type NtfyConfig struct {
	ImageTag string // default "latest"
}

// PushedMessage is one message read back from a topic.
type PushedMessage struct {
	ID      string `json:"id"`
	Event   string `json:"event"`
	Topic   string `json:"topic"`
	Title   string `json:"title"`
	Message string `json:"message"`
}

// NewNtfyServer starts an ntfy server without authentication. A nil config
// uses the latest image.
func NewNtfyServer(ctx context.Context, config *NtfyConfig) (*NtfyServer, error) {
	tag := "latest"
	if config != nil && config.ImageTag != "" {
		tag = config.ImageTag
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        ntfyImage + ":" + tag,
			ExposedPorts: []string{"80/tcp"},
			Cmd:          []string{"serve", "--cache-file=/var/cache/ntfy/cache.db"},
			Tmpfs:        map[string]string{"/var/cache/ntfy": "rw"},
			WaitingFor:   wait.ForHTTP("/v1/health").WithPort("80/tcp").WithStartupTimeout(30 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		return nil, fmt.Errorf("start ntfy: %w", err)
	}

	hostPort, err := endpoint(ctx, container, "80/tcp")
	if err != nil {
		_ = container.Terminate(context.Background())
		return nil, err
	}

	return &NtfyServer{
		container: container,
		hostPort:  hostPort,
		client:    &http.Client{Timeout: 10 * time.Second},
	}, nil
}

// endpoint resolves the host:port a container port is published on.
func endpoint(ctx context.Context, c testcontainers.Container, port string) (string, error) {
	host, err := c.Host(ctx)
	if err != nil {
		return "", fmt.Errorf("container host: %w", err)
	}
	mapped, err := c.MappedPort(ctx, port)
	if err != nil {
		return "", fmt.Errorf("mapped port %s: %w", port, err)
	}
	return net.JoinHostPort(host, mapped.Port()), nil
}

// Host returns the host:port the server listens on, as used in shoutrrr
// ntfy URLs.
func (s *NtfyServer) Host() string {
	return s.hostPort
}

// Messages returns every cached message published to topic, oldest first.
func (s *NtfyServer) Messages(ctx context.Context, topic string) ([]PushedMessage, error) {
	url := fmt.Sprintf("http://%s/%s/json?poll=1", s.hostPort, topic)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("poll %s: %w", topic, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("poll %s: status %d", topic, resp.StatusCode)
	}
	return decodeMessages(resp.Body)
}

// decodeMessages reads ntfy's newline-delimited JSON stream, keeping only
// "message" events.
func decodeMessages(r io.Reader) ([]PushedMessage, error) {
	var out []PushedMessage
	dec := json.NewDecoder(r)
	for {
		var m PushedMessage
		err := dec.Decode(&m)
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, fmt.Errorf("decode ntfy message: %w", err)
		}
		if m.Event == "" || m.Event == "message" {
			out = append(out, m)
		}
	}
}

// Terminate removes the container.
func (s *NtfyServer) Terminate(ctx context.Context) error {
	return s.container.Terminate(ctx)
}
