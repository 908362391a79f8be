package events

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/thenexusengine/tne_adwave/pkg/logger"
)

func TestNewRecorder(t *testing.T) {
	recorder := NewRecorder("http://localhost:8000", 50)

	if recorder == nil {
		t.Fatal("Expected recorder to be created")
	}

	if recorder.bufferSize != 50 {
		t.Errorf("Expected buffer size 50, got %d", recorder.bufferSize)
	}

	recorder.Close()
}

func TestNewRecorder_DefaultBufferSize(t *testing.T) {
	recorder := NewRecorder("http://localhost:8000", 0)

	if recorder.bufferSize != 100 {
		t.Errorf("Expected default buffer size 100, got %d", recorder.bufferSize)
	}

	recorder.Close()
}

func TestRecord_QueueFullDrops(t *testing.T) {
	// No flush workers and an unbuffered queue, so the first full buffer
	// has nowhere to go and must be dropped without blocking
	recorder := &Recorder{
		baseURL:    "http://localhost:8000",
		httpClient: &http.Client{Timeout: time.Second},
		log:        logger.Telemetry(),
		buffer:     make([]LifecycleEvent, 0, 1),
		bufferSize: 1,
		flushQueue: make(chan []LifecycleEvent),
		stopCh:     make(chan struct{}),
	}

	recorder.RecordLoad("req-1", "p1", "interstitial", "success", time.Millisecond, 0)

	stats := recorder.Stats()
	if stats.DroppedEvents != 1 || stats.DroppedBatches != 1 {
		t.Errorf("Expected 1 dropped event and batch, got %+v", stats)
	}
}

func TestRecordLoad_SingleEvent(t *testing.T) {
	recorder := NewRecorder("http://localhost:8000", 100)
	defer recorder.Close()

	recorder.RecordLoad("req-1", "p1", "interstitial", "success", 120*time.Millisecond, 0)

	stats := recorder.Stats()
	if stats.TotalEvents != 1 {
		t.Errorf("Expected 1 total event, got %d", stats.TotalEvents)
	}

	if stats.BufferedEvents != 1 {
		t.Errorf("Expected 1 buffered event, got %d", stats.BufferedEvents)
	}
}

func TestRecord_BufferFlush(t *testing.T) {
	var mu sync.Mutex
	var received []LifecycleEvent
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/adapter-events" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}

		var payload struct {
			Events []LifecycleEvent `json:"events"`
		}
		json.NewDecoder(r.Body).Decode(&payload)

		mu.Lock()
		received = append(received, payload.Events...)
		mu.Unlock()

		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	// Small buffer to trigger flush
	recorder := NewRecorder(server.URL, 3)
	defer recorder.Close()

	recorder.RecordLoad("req-1", "p1", "interstitial", "success", 100*time.Millisecond, 0)
	recorder.RecordLoad("req-2", "p2", "rewarded", "NO_FILL", 80*time.Millisecond, 1001)
	recorder.RecordShow("p1", "interstitial", "success", 40*time.Millisecond, 0)

	// Wait for the background flush
	deadline := time.Now().Add(2 * time.Second)
	for {
		mu.Lock()
		count := len(received)
		mu.Unlock()
		if count == 3 || time.Now().After(deadline) {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(received) != 3 {
		t.Fatalf("Expected 3 flushed events, got %d", len(received))
	}

	if received[1].Result != "NO_FILL" || received[1].PartnerCode != 1001 {
		t.Errorf("Expected no-fill event with partner code, got %+v", received[1])
	}

	if received[2].EventType != "show" {
		t.Errorf("Expected show event, got %s", received[2].EventType)
	}
}

func TestFlush_Synchronous(t *testing.T) {
	var mu sync.Mutex
	count := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload struct {
			Events []LifecycleEvent `json:"events"`
		}
		json.NewDecoder(r.Body).Decode(&payload)
		mu.Lock()
		count += len(payload.Events)
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	recorder := NewRecorder(server.URL, 100)
	defer recorder.Close()

	recorder.RecordShow("p9", "rewarded", "PARTNER_ERROR", 10*time.Millisecond, 1099)

	if err := recorder.Flush(context.Background()); err != nil {
		t.Fatalf("unexpected flush error: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if count != 1 {
		t.Errorf("Expected 1 event after Flush, got %d", count)
	}

	stats := recorder.Stats()
	if stats.BufferedEvents != 0 {
		t.Errorf("Expected empty buffer after Flush, got %d", stats.BufferedEvents)
	}
}

func TestFlush_EmptyBuffer(t *testing.T) {
	recorder := NewRecorder("http://localhost:1", 10)
	defer recorder.Close()

	// No events buffered: no request is made, no error returned
	if err := recorder.Flush(context.Background()); err != nil {
		t.Errorf("unexpected error flushing empty buffer: %v", err)
	}
}

func TestSendEvents_ErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	recorder := NewRecorder(server.URL, 100)
	defer recorder.Close()

	recorder.RecordLoad("req-1", "p1", "interstitial", "success", time.Millisecond, 0)

	if err := recorder.Flush(context.Background()); err == nil {
		t.Error("Expected error for 500 response")
	}
}
