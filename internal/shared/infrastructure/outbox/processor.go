package outbox

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/mugi0227/nagi-sub000/internal/shared/domain"
	"github.com/mugi0227/nagi-sub000/internal/shared/infrastructure/convert"
	"github.com/mugi0227/nagi-sub000/internal/shared/infrastructure/eventbus"
)

// ProcessorConfig holds configuration for the outbox processor.
type ProcessorConfig struct {
	PollInterval     time.Duration
	BatchSize        int
	MaxRetries       int
	RetryBackoffBase time.Duration
	RetryBackoffMax  time.Duration
}

// DefaultProcessorConfig returns sensible defaults.
func DefaultProcessorConfig() ProcessorConfig {
	return ProcessorConfig{
		PollInterval:     100 * time.Millisecond,
		BatchSize:        100,
		MaxRetries:       5,
		RetryBackoffBase: 1 * time.Second,
		RetryBackoffMax:  1 * time.Minute,
	}
}

// Processor drains the outbox table and relays pending events to the
// broker. Delivery is at-least-once: a message is marked published only
// after the broker accepts it, so a crash between publish and mark
// yields a duplicate, never a loss.
type Processor struct {
	repo      Repository
	publisher eventbus.Publisher
	config    ProcessorConfig
	logger    *slog.Logger

	mu       sync.Mutex
	running  bool
	stopChan chan struct{}
	wg       sync.WaitGroup

	statsMu sync.Mutex
	stats   Stats
}

// NewProcessor creates a new outbox processor.
func NewProcessor(repo Repository, publisher eventbus.Publisher, config ProcessorConfig, logger *slog.Logger) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{
		repo:      repo,
		publisher: publisher,
		config:    config,
		logger:    logger,
		stopChan:  make(chan struct{}),
	}
}

// Start launches the relay loop. Calling Start on a running processor
// is a no-op.
func (p *Processor) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return nil
	}
	p.running = true
	p.stopChan = make(chan struct{})
	p.mu.Unlock()

	p.wg.Add(1)
	go p.loop(ctx)

	p.logger.Info("outbox relay started",
		"poll_interval", p.config.PollInterval,
		"batch_size", p.config.BatchSize,
		"max_retries", p.config.MaxRetries,
	)
	return nil
}

// Stop halts the relay loop and waits for the in-flight batch to finish.
func (p *Processor) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	close(p.stopChan)
	p.mu.Unlock()

	p.wg.Wait()
	p.logger.Info("outbox relay stopped")
}

// IsRunning reports whether the relay loop is active.
func (p *Processor) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

// ProcessOnce drains a single batch synchronously. Tests and one-shot
// tooling use this instead of the polling loop.
func (p *Processor) ProcessOnce(ctx context.Context) error {
	return p.drain(ctx)
}

func (p *Processor) loop(ctx context.Context) {
	defer p.wg.Done()

	ticker := time.NewTicker(p.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.stopChan:
			return
		case <-ticker.C:
			if err := p.drain(ctx); err != nil {
				p.logger.Error("outbox drain failed", "error", err)
			}
		}
	}
}

// drain fetches one batch of pending messages and attempts delivery of
// each. A publish failure schedules a retry or dead-letters the message;
// it never aborts the rest of the batch.
func (p *Processor) drain(ctx context.Context) error {
	batch, err := p.repo.GetUnpublished(ctx, p.config.BatchSize)
	if err != nil {
		p.noteError(err)
		return err
	}

	p.noteBatch(batch)

	for _, msg := range batch {
		p.deliver(ctx, msg)
	}
	return nil
}

func (p *Processor) deliver(ctx context.Context, msg *Message) {
	if err := p.publisher.Publish(ctx, msg.RoutingKey, msg.Payload); err != nil {
		p.handlePublishFailure(ctx, msg, err)
		return
	}

	if err := p.repo.MarkPublished(ctx, msg.ID); err != nil {
		p.logger.Error("failed to mark outbox message published",
			"id", msg.ID,
			"event_id", msg.EventID,
			"error", err,
		)
		return
	}
	p.notePublished()
}

func (p *Processor) handlePublishFailure(ctx context.Context, msg *Message, pubErr error) {
	attrs := append([]any{
		"id", msg.ID,
		"routing_key", msg.RoutingKey,
		"event_id", msg.EventID,
		"retry_count", msg.RetryCount,
		"error", pubErr,
	}, p.traceAttrs(msg)...)
	p.logger.Warn("outbox publish failed", attrs...)

	reason := pubErr.Error()
	if p.exhausted(msg) {
		p.noteDead(pubErr)
		if err := p.repo.MarkDead(ctx, msg.ID, reason); err != nil {
			p.logger.Error("failed to dead-letter outbox message",
				"id", msg.ID,
				"error", err,
			)
		}
		return
	}

	p.noteFailed(pubErr)
	nextRetryAt := time.Now().Add(p.backoff(msg.RetryCount + 1))
	if err := p.repo.MarkFailed(ctx, msg.ID, reason, nextRetryAt); err != nil {
		p.logger.Error("failed to schedule outbox retry",
			"id", msg.ID,
			"error", err,
		)
	}
}

// exhausted reports whether the next attempt would exceed the retry
// budget. MaxRetries <= 0 disables retries entirely.
func (p *Processor) exhausted(msg *Message) bool {
	if p.config.MaxRetries <= 0 {
		return true
	}
	return msg.RetryCount+1 >= p.config.MaxRetries
}

// backoff returns the exponential delay before the given attempt,
// capped at RetryBackoffMax.
func (p *Processor) backoff(attempt int) time.Duration {
	base := p.config.RetryBackoffBase
	if base <= 0 {
		base = time.Second
	}
	ceiling := p.config.RetryBackoffMax
	if ceiling <= 0 {
		ceiling = time.Minute
	}
	if attempt < 1 {
		attempt = 1
	}

	delay := base * time.Duration(1<<convert.IntToUintSafe(attempt-1))
	if delay > ceiling {
		return ceiling
	}
	return delay
}

// traceAttrs extracts correlation fields from the message metadata for
// log lines. Malformed metadata yields no attrs rather than an error.
func (p *Processor) traceAttrs(msg *Message) []any {
	if len(msg.Metadata) == 0 {
		return nil
	}
	var meta domain.EventMetadata
	if err := json.Unmarshal(msg.Metadata, &meta); err != nil {
		return nil
	}
	return []any{
		"correlation_id", meta.CorrelationID.String(),
		"causation_id", meta.CausationID.String(),
		"user_id", meta.UserID.String(),
	}
}

// Stats holds relay counters and lag as observed since startup.
type Stats struct {
	IsRunning       bool
	PublishedCount  uint64
	FailedCount     uint64
	DeadCount       uint64
	LagSeconds      float64
	LastError       string
	LastErrorAt     *time.Time
	LastProcessedAt *time.Time
	OldestMessageAt *time.Time
}

// GetStats returns a snapshot of the relay counters.
func (p *Processor) GetStats() Stats {
	p.statsMu.Lock()
	defer p.statsMu.Unlock()

	snapshot := p.stats
	snapshot.IsRunning = p.IsRunning()
	return snapshot
}

func (p *Processor) notePublished() {
	p.statsMu.Lock()
	defer p.statsMu.Unlock()
	p.stats.PublishedCount++
}

func (p *Processor) noteFailed(err error) {
	p.statsMu.Lock()
	defer p.statsMu.Unlock()
	p.stats.FailedCount++
	p.setLastErrorLocked(err)
}

func (p *Processor) noteDead(err error) {
	p.statsMu.Lock()
	defer p.statsMu.Unlock()
	p.stats.DeadCount++
	p.setLastErrorLocked(err)
}

func (p *Processor) noteError(err error) {
	p.statsMu.Lock()
	defer p.statsMu.Unlock()
	p.setLastErrorLocked(err)
}

func (p *Processor) setLastErrorLocked(err error) {
	now := time.Now()
	p.stats.LastError = err.Error()
	p.stats.LastErrorAt = &now
}

func (p *Processor) noteBatch(batch []*Message) {
	p.statsMu.Lock()
	defer p.statsMu.Unlock()
	now := time.Now()
	p.stats.LastProcessedAt = &now

	if len(batch) == 0 {
		p.stats.LagSeconds = 0
		p.stats.OldestMessageAt = nil
		return
	}

	oldest := batch[0].CreatedAt
	for _, msg := range batch[1:] {
		if msg.CreatedAt.Before(oldest) {
			oldest = msg.CreatedAt
		}
	}
	p.stats.OldestMessageAt = &oldest
	p.stats.LagSeconds = now.Sub(oldest).Seconds()
}
