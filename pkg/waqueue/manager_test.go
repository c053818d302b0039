package waqueue

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/healthconcierge/wa-concierge/pkg/config"
	"github.com/healthconcierge/wa-concierge/pkg/evolution"
)

func TestManagerAddAndRemoveInstance(t *testing.T) {
	client := newTestRedis(t)
	cfg := testQueueConfig()
	mgr := NewManager(client, evolution.New("http://localhost:0", "test-key", time.Second), cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	mgr.AddInstance(ctx, "clinic-1")
	require.Contains(t, mgr.Instances(), "clinic-1")

	_, ok := mgr.Worker("clinic-1")
	require.True(t, ok)

	mgr.RemoveInstance("clinic-1")
	require.NotContains(t, mgr.Instances(), "clinic-1")
}

func TestManagerReactsToInstanceAddedEvent(t *testing.T) {
	client := newTestRedis(t)
	cfg := testQueueConfig()
	mgr := NewManager(client, evolution.New("http://localhost:0", "test-key", time.Second), cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go mgr.Run(ctx)
	time.Sleep(20 * time.Millisecond)

	payload, err := json.Marshal(InstanceEvent{InstanceName: "clinic-2", Action: "add"})
	require.NoError(t, err)
	require.NoError(t, client.Publish(ctx, instanceAddedChannel, payload).Err())

	require.Eventually(t, func() bool {
		return contains(mgr.Instances(), "clinic-2")
	}, time.Second, 10*time.Millisecond)
}

func contains(list []string, want string) bool {
	for _, v := range list {
		if v == want {
			return true
		}
	}
	return false
}
