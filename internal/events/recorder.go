// Package events records ad lifecycle events for TNE's telemetry pipeline.
// Recording is best-effort: events are buffered in memory and flushed by a
// bounded worker pool; a full queue drops batches rather than blocking the
// ad path.
package events

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/thenexusengine/tne_adwave/pkg/logger"
)

const (
	// flushWorkerCount is the number of concurrent flush workers
	flushWorkerCount = 2
	// flushQueueSize is the max pending flush batches before dropping
	flushQueueSize = 10
	// flushTimeout is the max time to wait for a flush operation
	flushTimeout = 2 * time.Second
)

// LifecycleEvent is one recorded load or show outcome
type LifecycleEvent struct {
	RequestID   string  `json:"request_id,omitempty"`
	Placement   string  `json:"placement"`
	AdFormat    string  `json:"ad_format"`
	EventType   string  `json:"event_type"` // "load" or "show"
	Result      string  `json:"result"`     // "success" or a taxonomy code
	LatencyMs   float64 `json:"latency_ms,omitempty"`
	PartnerCode int     `json:"partner_code,omitempty"`
}

// Recorder buffers lifecycle events and ships them to the telemetry
// endpoint in batches
type Recorder struct {
	baseURL    string
	httpClient *http.Client
	log        zerolog.Logger
	buffer     []LifecycleEvent
	bufferSize int
	mu         sync.Mutex

	flushQueue chan []LifecycleEvent
	stopCh     chan struct{}
	wg         sync.WaitGroup

	droppedEvents  atomic.Int64
	droppedBatches atomic.Int64
	totalEvents    atomic.Int64
	flushedEvents  atomic.Int64
}

// NewRecorder creates a recorder posting to baseURL. bufferSize events are
// accumulated before a background flush is queued.
func NewRecorder(baseURL string, bufferSize int) *Recorder {
	if bufferSize <= 0 {
		bufferSize = 100
	}

	r := &Recorder{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 5 * time.Second,
		},
		log:        logger.Telemetry(),
		buffer:     make([]LifecycleEvent, 0, bufferSize),
		bufferSize: bufferSize,
		flushQueue: make(chan []LifecycleEvent, flushQueueSize),
		stopCh:     make(chan struct{}),
	}

	for i := 0; i < flushWorkerCount; i++ {
		r.wg.Add(1)
		go r.flushWorker()
	}

	return r
}

// RecordLoad records one resolved load request
func (r *Recorder) RecordLoad(requestID, placement, adFormat, result string, latency time.Duration, partnerCode int) {
	r.record(LifecycleEvent{
		RequestID:   requestID,
		Placement:   placement,
		AdFormat:    adFormat,
		EventType:   "load",
		Result:      result,
		LatencyMs:   float64(latency.Milliseconds()),
		PartnerCode: partnerCode,
	})
}

// RecordShow records one resolved show request. Show events carry no request
// ID: the host identifies a show by the ad handle's placement alone.
func (r *Recorder) RecordShow(placement, adFormat, result string, latency time.Duration, partnerCode int) {
	r.record(LifecycleEvent{
		Placement:   placement,
		AdFormat:    adFormat,
		EventType:   "show",
		Result:      result,
		LatencyMs:   float64(latency.Milliseconds()),
		PartnerCode: partnerCode,
	})
}

func (r *Recorder) record(event LifecycleEvent) {
	r.totalEvents.Add(1)

	r.mu.Lock()
	r.buffer = append(r.buffer, event)
	var eventsToFlush []LifecycleEvent
	if len(r.buffer) >= r.bufferSize {
		eventsToFlush = r.buffer
		r.buffer = make([]LifecycleEvent, 0, r.bufferSize)
	}
	r.mu.Unlock()

	if eventsToFlush == nil {
		return
	}

	batchSize := int64(len(eventsToFlush))
	select {
	case r.flushQueue <- eventsToFlush:
		r.flushedEvents.Add(batchSize)
	default:
		// Queue full: drop the batch rather than block the ad path
		r.droppedEvents.Add(batchSize)
		r.droppedBatches.Add(1)
		r.log.Warn().
			Int64("batch_size", batchSize).
			Msg("dropping lifecycle event batch, flush queue full")
	}
}

// flushWorker processes flush requests from the queue
func (r *Recorder) flushWorker() {
	defer r.wg.Done()
	for {
		select {
		case <-r.stopCh:
			return
		case events, ok := <-r.flushQueue:
			if !ok {
				return
			}
			ctx, cancel := context.WithTimeout(context.Background(), flushTimeout)
			if err := r.sendEvents(ctx, events); err != nil {
				r.log.Debug().Err(err).Msg("best-effort event flush failed")
			}
			cancel()
		}
	}
}

// sendEvents ships a batch to the telemetry endpoint
func (r *Recorder) sendEvents(ctx context.Context, events []LifecycleEvent) error {
	if len(events) == 0 {
		return nil
	}

	body, err := json.Marshal(map[string]interface{}{"events": events})
	if err != nil {
		return fmt.Errorf("failed to marshal events: %w", err)
	}

	url := r.baseURL + "/v1/adapter-events"
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send events: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("telemetry endpoint returned status %d", resp.StatusCode)
	}

	return nil
}

// Flush sends buffered events synchronously
func (r *Recorder) Flush(ctx context.Context) error {
	r.mu.Lock()
	if len(r.buffer) == 0 {
		r.mu.Unlock()
		return nil
	}
	events := r.buffer
	r.buffer = make([]LifecycleEvent, 0, r.bufferSize)
	r.mu.Unlock()

	return r.sendEvents(ctx, events)
}

// Close flushes remaining events and shuts down workers gracefully
func (r *Recorder) Close() error {
	close(r.stopCh)

	ctx, cancel := context.WithTimeout(context.Background(), flushTimeout)
	defer cancel()
	err := r.Flush(ctx)

	close(r.flushQueue)
	r.wg.Wait()

	return err
}

// RecorderStats contains counters for monitoring event loss
type RecorderStats struct {
	TotalEvents    int64 `json:"total_events"`
	FlushedEvents  int64 `json:"flushed_events"`
	DroppedEvents  int64 `json:"dropped_events"`
	DroppedBatches int64 `json:"dropped_batches"`
	BufferedEvents int   `json:"buffered_events"`
	QueuedBatches  int   `json:"queued_batches"`
}

// Stats returns current counters for the recorder
func (r *Recorder) Stats() RecorderStats {
	r.mu.Lock()
	buffered := len(r.buffer)
	r.mu.Unlock()

	return RecorderStats{
		TotalEvents:    r.totalEvents.Load(),
		FlushedEvents:  r.flushedEvents.Load(),
		DroppedEvents:  r.droppedEvents.Load(),
		DroppedBatches: r.droppedBatches.Load(),
		BufferedEvents: buffered,
		QueuedBatches:  len(r.flushQueue),
	}
}
