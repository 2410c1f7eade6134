//go:build integration

//nolint:misspell // Mosquitto is the official Eclipse project name
package containers

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

const mosquittoAnonymousConf = `listener 1883
allow_anonymous true
`

// MosquittoContainer wraps an Eclipse Mosquitto broker started by testcontainers.
type MosquittoContainer struct {
	container  testcontainers.Container
	brokerURL  string
	configFile string
}

// MosquittoConfig holds configuration for Mosquitto container creation.
type MosquittoConfig struct {
	// ImageTag for eclipse-mosquitto (default: "2.0")
	ImageTag string
}

// DefaultMosquittoConfig returns a MosquittoConfig with sensible defaults.
func DefaultMosquittoConfig() MosquittoConfig {
	return MosquittoConfig{ImageTag: "2.0"}
}

// NewMosquittoContainer starts an anonymous-access Mosquitto broker.
// If config is nil, uses DefaultMosquittoConfig().
func NewMosquittoContainer(ctx context.Context, config *MosquittoConfig) (*MosquittoContainer, error) {
	if config == nil {
		defaultCfg := DefaultMosquittoConfig()
		config = &defaultCfg
	}

	configFile, err := writeTempConfig(mosquittoAnonymousConf)
	if err != nil {
		return nil, err
	}

	req := testcontainers.ContainerRequest{
		Image:        fmt.Sprintf("eclipse-mosquitto:%s", config.ImageTag),
		ExposedPorts: []string{"1883/tcp"},
		Cmd:          []string{"mosquitto", "-c", "/mosquitto-test.conf"},
		Files: []testcontainers.ContainerFile{{
			HostFilePath:      configFile,
			ContainerFilePath: "/mosquitto-test.conf",
			FileMode:          0o644,
		}},
		WaitingFor: wait.ForLog("mosquitto version").WithStartupTimeout(30 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		_ = os.Remove(configFile)
		return nil, fmt.Errorf("failed to start Mosquitto container: %w", err)
	}

	mc := &MosquittoContainer{container: container, configFile: configFile}

	hostPort, err := endpoint(ctx, container, "1883/tcp")
	if err != nil {
		_ = mc.Terminate(context.Background())
		return nil, err
	}
	mc.brokerURL = "tcp://" + hostPort

	client, err := mc.CreateClient("healthcheck")
	if err != nil {
		_ = mc.Terminate(context.Background())
		return nil, fmt.Errorf("health check failed: %w", err)
	}
	client.Disconnect(250)

	return mc, nil
}

func writeTempConfig(content string) (string, error) {
	f, err := os.CreateTemp("", "mosquitto-*.conf")
	if err != nil {
		return "", fmt.Errorf("failed to create temp config: %w", err)
	}
	if _, err := f.WriteString(content); err != nil {
		_ = f.Close()
		_ = os.Remove(f.Name())
		return "", fmt.Errorf("failed to write config: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(f.Name())
		return "", fmt.Errorf("failed to close temp config: %w", err)
	}
	return f.Name(), nil
}

// GetBrokerURL returns the MQTT broker URL (e.g., "tcp://localhost:32768").
func (c *MosquittoContainer) GetBrokerURL(t *testing.T) string {
	t.Helper()
	if c.brokerURL == "" {
		t.Fatal("broker URL is empty")
	}
	return c.brokerURL
}

// CreateClient connects a new paho client to the broker.
// The caller is responsible for disconnecting it.
func (c *MosquittoContainer) CreateClient(clientID string) (mqtt.Client, error) {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(c.brokerURL)
	opts.SetClientID(clientID)
	opts.SetConnectTimeout(10 * time.Second)
	opts.SetAutoReconnect(false)

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		return nil, fmt.Errorf("connect timeout for client %s", clientID)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("failed to connect client: %w", err)
	}
	return client, nil
}

// Subscription collects payloads delivered on a topic filter.
type Subscription struct {
	client mqtt.Client
	mu     sync.Mutex
	msgs   [][]byte
}

// Subscribe starts collecting every message published on topic.
// The subscription is torn down by t.Cleanup.
func (c *MosquittoContainer) Subscribe(t *testing.T, topic string) *Subscription {
	t.Helper()

	client, err := c.CreateClient(fmt.Sprintf("sub-%d", time.Now().UnixNano()))
	if err != nil {
		t.Fatalf("subscriber connect: %v", err)
	}
	s := &Subscription{client: client}

	token := client.Subscribe(topic, 1, func(_ mqtt.Client, msg mqtt.Message) {
		s.mu.Lock()
		s.msgs = append(s.msgs, append([]byte(nil), msg.Payload()...))
		s.mu.Unlock()
	})
	if !token.WaitTimeout(5 * time.Second) {
		t.Fatalf("subscribe to %s timed out", topic)
	}
	if err := token.Error(); err != nil {
		t.Fatalf("subscribe to %s: %v", topic, err)
	}

	t.Cleanup(func() { client.Disconnect(250) })
	return s
}

// Messages returns a copy of the payloads received so far.
func (s *Subscription) Messages() [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([][]byte, len(s.msgs))
	copy(out, s.msgs)
	return out
}

// Terminate stops the container and removes the temporary broker config.
func (c *MosquittoContainer) Terminate(ctx context.Context) error {
	var terminateErr error
	if c.container != nil {
		if err := c.container.Terminate(ctx); err != nil {
			terminateErr = fmt.Errorf("failed to terminate container: %w", err)
		}
	}
	if c.configFile != "" {
		if err := os.Remove(c.configFile); err != nil && !os.IsNotExist(err) && terminateErr == nil {
			terminateErr = fmt.Errorf("failed to remove temp config: %w", err)
		}
	}
	return terminateErr
}
