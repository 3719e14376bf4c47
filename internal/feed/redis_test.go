package feed

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"folios/internal/models"
)

func TestDecodeMessage(t *testing.T) {
	ev := makeEvent(models.ChangeDelete, "gone")
	payload, err := json.Marshal(ev)
	require.NoError(t, err)

	owner, got, err := decodeMessage(ChannelPrefix+"alice", string(payload))
	require.NoError(t, err)
	assert.Equal(t, "alice", owner)
	assert.Equal(t, models.ChangeDelete, got.Kind)
	assert.Equal(t, ev.Bookmark.ID, got.Bookmark.ID)

	_, _, err = decodeMessage("other:alice", string(payload))
	assert.Error(t, err)

	_, _, err = decodeMessage(ChannelPrefix+"alice", "{not json")
	assert.Error(t, err)

	_, _, err = decodeMessage(ChannelPrefix+"alice", `{"kind":"update","bookmark":{}}`)
	assert.Error(t, err)
}

func TestRedisBroker_RelaysAcrossInstances(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping test in short mode.")
	}

	ctx := context.Background()
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections"),
		},
		Started: true,
	})
	require.NoError(t, err)
	defer container.Terminate(ctx)

	endpoint, err := container.Endpoint(ctx, "")
	require.NoError(t, err)

	clientA, err := Connect(ctx, RedisOptions{Addr: endpoint, ConnectTimeout: 10 * time.Second})
	require.NoError(t, err)
	defer clientA.Close()
	clientB, err := Connect(ctx, RedisOptions{Addr: endpoint, ConnectTimeout: 10 * time.Second})
	require.NoError(t, err)
	defer clientB.Close()

	instanceA, err := NewRedisBroker(ctx, clientA)
	require.NoError(t, err)
	defer instanceA.Close()
	instanceB, err := NewRedisBroker(ctx, clientB)
	require.NoError(t, err)
	defer instanceB.Close()

	sub, _ := instanceB.Subscribe(testContext(t), "alice")

	ev := makeEvent(models.ChangeInsert, "relayed")
	require.NoError(t, instanceA.Publish(ctx, "alice", ev))

	got := receive(t, sub)
	assert.Equal(t, ev.Bookmark.ID, got.Bookmark.ID)
	assert.Equal(t, "relayed", got.Bookmark.Title)
}
