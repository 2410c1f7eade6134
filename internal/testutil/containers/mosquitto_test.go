//go:build integration

//nolint:misspell // Mosquitto is the official Eclipse project name
package containers

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMosquittoContainer_Subscribe(t *testing.T) {
	ctx := context.Background()

	broker, err := NewMosquittoContainer(ctx, nil)
	require.NoError(t, err, "failed to create Mosquitto container")
	t.Cleanup(func() { assert.NoError(t, broker.Terminate(context.Background())) })

	sub := broker.Subscribe(t, "campusguard/#")

	publisher, err := broker.CreateClient("publisher")
	require.NoError(t, err)
	defer publisher.Disconnect(250)

	for _, payload := range []string{"one", "two"} {
		token := publisher.Publish("campusguard/alerts", 1, false, []byte(payload))
		require.True(t, token.WaitTimeout(5*time.Second), "publish timeout")
		require.NoError(t, token.Error())
	}
	token := publisher.Publish("other/topic", 1, false, []byte("ignored"))
	require.True(t, token.WaitTimeout(5*time.Second))

	require.Eventually(t, func() bool { return len(sub.Messages()) == 2 },
		5*time.Second, 50*time.Millisecond)
	msgs := sub.Messages()
	assert.Equal(t, "one", string(msgs[0]))
	assert.Equal(t, "two", string(msgs[1]))
}

func TestMosquittoContainer_CancelledStart(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewMosquittoContainer(ctx, nil)
	require.Error(t, err)
}
