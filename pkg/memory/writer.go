package memory

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

const defaultQueueCapacity = 256

// BackgroundWriter is a bounded-channel worker that offloads memory-store
// writes from the request path, ported from conversation_memory.py's
// asyncio.Queue + writer-loop pair. Message and turn jobs are processed
// fire-and-forget (each spawns its own goroutine so one slow write never
// head-of-line-blocks the queue); warmup jobs run inline and are
// deduplicated per clinic for the life of the process.
type BackgroundWriter struct {
	jobs    chan Job
	adder   MemoryAdder
	metrics *MetricsRecorder
	logger  *slog.Logger

	onMessagePersisted func(messageID string, metadata map[string]any)
	warmupTimeout      time.Duration

	warmupMu      sync.Mutex
	warmedClinics map[string]bool

	closeOnce sync.Once
	wg        sync.WaitGroup
}

const defaultWarmupTimeout = 6 * time.Second

// NewBackgroundWriter starts the writer's consume loop immediately.
// capacity <= 0 uses the default of 256, matching MEM0_WRITER_QUEUE_CAPACITY.
// warmupTimeout <= 0 uses the 6s default, matching MEM0_TIMEOUT_MS's default.
func NewBackgroundWriter(adder MemoryAdder, metrics *MetricsRecorder, capacity int, warmupTimeout time.Duration) *BackgroundWriter {
	if capacity <= 0 {
		capacity = defaultQueueCapacity
	}
	if warmupTimeout <= 0 {
		warmupTimeout = defaultWarmupTimeout
	}
	w := &BackgroundWriter{
		jobs:          make(chan Job, capacity),
		adder:         adder,
		metrics:       metrics,
		logger:        slog.Default().With("component", "memory-writer"),
		warmupTimeout: warmupTimeout,
		warmedClinics: make(map[string]bool),
	}
	w.wg.Add(1)
	go w.loop()
	return w
}

// OnMessagePersisted registers a callback invoked after a message job's
// write returns a summary worth backfilling onto the source message.
func (w *BackgroundWriter) OnMessagePersisted(fn func(messageID string, metadata map[string]any)) {
	w.onMessagePersisted = fn
}

func (w *BackgroundWriter) enqueue(job Job) bool {
	select {
	case w.jobs <- job:
		w.metrics.RecordEnqueue(len(w.jobs))
		return true
	default:
		w.logger.Warn("memory write queue full, dropping job", "type", job.Type)
		w.metrics.RecordEnqueue(len(w.jobs))
		return false
	}
}

// EnqueueMessage schedules a single message for persistence, with
// message-level metadata eligible for summary backfill.
func (w *BackgroundWriter) EnqueueMessage(phone, clinicID, content string, messageID, sessionUUID, externalSessionID, role string, metadata map[string]any) bool {
	return w.enqueue(Job{
		Type:              JobMessage,
		Phone:             phone,
		ClinicID:          clinicID,
		Content:           content,
		Metadata:          metadata,
		MessageID:         messageID,
		SessionUUID:       sessionUUID,
		ExternalSessionID: externalSessionID,
		Role:              role,
	})
}

// EnqueueTurn schedules an aggregated conversation turn for persistence,
// without any message-row metadata backfill.
func (w *BackgroundWriter) EnqueueTurn(phone, clinicID, content string, metadata map[string]any) bool {
	return w.enqueue(Job{Type: JobTurn, Phone: phone, ClinicID: clinicID, Content: content, Metadata: metadata})
}

// ScheduleWarmup enqueues a warmup probe for clinicID, skipping it if
// this clinic was already warmed up earlier in the process lifetime
// unless force is set.
func (w *BackgroundWriter) ScheduleWarmup(clinicID, phone string, force bool) bool {
	if clinicID == "" {
		return false
	}

	w.warmupMu.Lock()
	if force {
		delete(w.warmedClinics, clinicID)
	}
	if w.warmedClinics[clinicID] {
		w.warmupMu.Unlock()
		return false
	}
	w.warmupMu.Unlock()

	if !w.enqueue(Job{Type: JobWarmup, ClinicID: clinicID, Phone: phone, Force: force}) {
		return false
	}

	w.warmupMu.Lock()
	w.warmedClinics[clinicID] = true
	w.warmupMu.Unlock()
	return true
}

// Close stops accepting new work and waits for the loop to drain and exit.
func (w *BackgroundWriter) Close() {
	w.closeOnce.Do(func() {
		close(w.jobs)
	})
	w.wg.Wait()
}

func (w *BackgroundWriter) loop() {
	defer w.wg.Done()
	for job := range w.jobs {
		start := time.Now()
		w.process(job)
		w.metrics.RecordJobComplete(job.Type, len(w.jobs), time.Since(start))
	}
}

func (w *BackgroundWriter) process(job Job) {
	switch job.Type {
	case JobMessage:
		w.wg.Add(1)
		go w.processMessage(job)
	case JobTurn:
		w.wg.Add(1)
		go w.processTurn(job)
	case JobWarmup:
		w.processWarmup(job)
	default:
		w.logger.Warn("unknown memory job type", "type", job.Type)
	}
}

func (w *BackgroundWriter) processMessage(job Job) {
	defer w.wg.Done()
	ctx := context.Background()

	meta := mergeMetadata(job.Metadata, map[string]any{
		"role":                job.Role,
		"session_id":          job.SessionUUID,
		"external_session_id": job.ExternalSessionID,
		"clinic_id":           job.ClinicID,
		"timestamp":           time.Now().UTC().Format(time.RFC3339),
	})

	result, err := w.adder.AddMemory(ctx, userKey(job.Phone, job.ClinicID), job.Content, meta)
	if err != nil {
		w.logger.Error("memory add failed", "error", err)
		return
	}
	if job.MessageID == "" || result.Summary == "" || w.onMessagePersisted == nil {
		return
	}

	backfill := mergeMetadata(job.Metadata, map[string]any{"mem0_summary": result.Summary})
	if result.MemoryID != "" {
		backfill["mem0_id"] = result.MemoryID
	}
	w.onMessagePersisted(job.MessageID, backfill)
}

func (w *BackgroundWriter) processTurn(job Job) {
	defer w.wg.Done()
	ctx := context.Background()
	if _, err := w.adder.AddMemory(ctx, userKey(job.Phone, job.ClinicID), job.Content, job.Metadata); err != nil {
		w.logger.Error("memory turn add failed", "error", err)
	}
}

func (w *BackgroundWriter) processWarmup(job Job) {
	ctx, cancel := context.WithTimeout(context.Background(), w.warmupTimeout)
	defer cancel()
	if _, err := w.adder.AddMemory(ctx, userKey(job.Phone, job.ClinicID), "", map[string]any{"warmup": true}); err != nil {
		w.logger.Warn("memory warmup failed", "clinic_id", job.ClinicID, "error", err)
	}
}

func userKey(phone, clinicID string) string {
	if clinicID == "" {
		return phone
	}
	return clinicID + ":" + phone
}

func mergeMetadata(base map[string]any, extra map[string]any) map[string]any {
	merged := make(map[string]any, len(base)+len(extra))
	for k, v := range base {
		merged[k] = v
	}
	for k, v := range extra {
		merged[k] = v
	}
	return merged
}
