package waqueue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/healthconcierge/wa-concierge/pkg/config"
	"github.com/healthconcierge/wa-concierge/pkg/evolution"
)

// Manager owns one Worker per known tenant instance and keeps that set in
// sync with wa:instances:added / wa:instances:removed pub/sub events, so
// a newly connected WhatsApp instance gets a consumer without a process
// restart.
type Manager struct {
	redis  *redis.Client
	queue  *Queue
	sender *evolution.Client
	cfg    *config.QueueConfig
	logger *slog.Logger

	mu      sync.Mutex
	workers map[string]*Worker
	buckets map[string]*TokenBucket

	podName string
	nextSeq int
}

// NewManager builds a Manager; call Run to start the subscription loop
// and AddInstance for each instance already known at startup.
func NewManager(client *redis.Client, sender *evolution.Client, cfg *config.QueueConfig) *Manager {
	podName := os.Getenv("HOSTNAME")
	if podName == "" {
		podName = "wa-worker"
	}
	return &Manager{
		redis:   client,
		queue:   NewQueue(client),
		sender:  sender,
		cfg:     cfg,
		logger:  slog.Default().With("component", "waqueue-manager"),
		workers: make(map[string]*Worker),
		buckets: make(map[string]*TokenBucket),
		podName: podName,
	}
}

// AddInstance starts a Worker for instance if one isn't already running.
func (m *Manager) AddInstance(ctx context.Context, instance string) {
	m.mu.Lock()
	if _, exists := m.workers[instance]; exists {
		m.mu.Unlock()
		return
	}
	m.nextSeq++
	consumerName := fmt.Sprintf("%s-%s-%d", m.podName, instance, m.nextSeq)
	bucket := NewTokenBucket(m.redis, m.cfg.TokensPerSecond, m.cfg.BucketCapacity)
	worker := NewWorker(instance, consumerName, m.redis, m.queue, bucket, m.sender, m.cfg)
	m.workers[instance] = worker
	m.buckets[instance] = bucket
	m.mu.Unlock()

	m.logger.Info("starting worker for instance", "instance", instance, "consumer", consumerName)
	worker.Start(ctx)
}

// RemoveInstance stops and removes the Worker for instance, draining any
// in-flight send before returning.
func (m *Manager) RemoveInstance(instance string) {
	m.mu.Lock()
	worker, exists := m.workers[instance]
	if exists {
		delete(m.workers, instance)
		delete(m.buckets, instance)
	}
	m.mu.Unlock()

	if !exists {
		return
	}
	m.logger.Info("stopping worker for instance", "instance", instance)
	worker.Stop()
}

// Instances returns the set of currently managed instance names.
func (m *Manager) Instances() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	names := make([]string, 0, len(m.workers))
	for name := range m.workers {
		names = append(names, name)
	}
	return names
}

// Worker returns the Worker for instance, if any, for admin operations.
func (m *Manager) Worker(instance string) (*Worker, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.workers[instance]
	return w, ok
}

// Run subscribes to the instance discovery channels and blocks, adding
// and removing workers as events arrive, until ctx is cancelled.
func (m *Manager) Run(ctx context.Context) error {
	sub := m.redis.Subscribe(ctx, instanceAddedChannel, instanceRemovedChannel)
	defer sub.Close()

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			m.shutdownAll()
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			m.handleEvent(ctx, msg)
		}
	}
}

func (m *Manager) handleEvent(ctx context.Context, msg *redis.Message) {
	var event InstanceEvent
	if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
		m.logger.Warn("malformed instance event", "channel", msg.Channel, "error", err)
		return
	}

	switch msg.Channel {
	case instanceAddedChannel:
		m.AddInstance(ctx, event.InstanceName)
	case instanceRemovedChannel:
		m.RemoveInstance(event.InstanceName)
	}
}

func (m *Manager) shutdownAll() {
	m.mu.Lock()
	workers := make([]*Worker, 0, len(m.workers))
	for _, w := range m.workers {
		workers = append(workers, w)
	}
	m.mu.Unlock()

	var wg sync.WaitGroup
	for _, w := range workers {
		wg.Add(1)
		go func(w *Worker) {
			defer wg.Done()
			w.Stop()
		}(w)
	}
	wg.Wait()
}
