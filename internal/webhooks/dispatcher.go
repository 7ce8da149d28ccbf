package webhooks

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
)

const maxAttempts = 3

// Dispatcher sends webhook payloads to registered subscribers through a
// background worker pool. Emit never blocks the validation path: when the
// queue is full the delivery is dropped and logged.
type Dispatcher struct {
	registry   *Registry
	httpClient *http.Client
	queue      chan *deliveryJob
	wg         sync.WaitGroup
	workers    int
}

type deliveryJob struct {
	subscriber *Subscription
	payload    *Payload
	attempt    int
}

// NewDispatcher creates a webhook dispatcher with a background worker pool.
func NewDispatcher(registry *Registry, workers int) *Dispatcher {
	if workers <= 0 {
		workers = 4
	}
	d := &Dispatcher{
		registry:   registry,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		queue:      make(chan *deliveryJob, 1000),
		workers:    workers,
	}

	for i := 0; i < workers; i++ {
		d.wg.Add(1)
		go d.worker()
	}
	return d
}

// Emit fans an outcome out to every active subscriber of that event type.
func (d *Dispatcher) Emit(eventType EventType, data interface{}) {
	subscribers := d.registry.Subscribers(eventType)
	if len(subscribers) == 0 {
		return
	}

	payload := &Payload{
		ID:        "evt-" + uuid.NewString(),
		Type:      eventType,
		Source:    "/api/v1/events",
		Timestamp: time.Now(),
		Data:      data,
	}

	for _, sub := range subscribers {
		select {
		case d.queue <- &deliveryJob{subscriber: sub, payload: payload, attempt: 1}:
		default:
			slog.Warn("webhook queue full, dropping delivery", "payload", payload.ID, "subscriber", sub.ID)
		}
	}
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()
	for job := range d.queue {
		d.deliver(job)
	}
}

func (d *Dispatcher) deliver(job *deliveryJob) {
	body, err := json.Marshal(job.payload)
	if err != nil {
		slog.Error("webhook payload marshal failed", "error", err)
		return
	}

	req, err := http.NewRequest(http.MethodPost, job.subscriber.URL, bytes.NewReader(body))
	if err != nil {
		slog.Error("webhook request build failed", "error", err)
		return
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Sentry-Event-Type", string(job.payload.Type))
	req.Header.Set("X-Sentry-Event-ID", job.payload.ID)
	req.Header.Set("X-Sentry-Delivery-Attempt", fmt.Sprintf("%d", job.attempt))

	if job.subscriber.Secret != "" {
		sig := SignPayload(body, job.subscriber.Secret)
		req.Header.Set("X-Sentry-Signature", "sha256="+sig)
	}

	resp, err := d.httpClient.Do(req)
	if err != nil {
		slog.Warn("webhook delivery failed", "url", job.subscriber.URL, "error", err)
		d.registry.MarkFailed(job.subscriber.ID)
		d.retry(job)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		slog.Warn("webhook returned error status",
			"status", resp.StatusCode, "url", job.subscriber.URL, "type", job.payload.Type)
		d.registry.MarkFailed(job.subscriber.ID)
		return
	}
	d.registry.MarkDelivered(job.subscriber.ID)
	slog.Debug("webhook delivered", "type", job.payload.Type, "url", job.subscriber.URL, "payload", job.payload.ID)
}

// retry re-queues a failed delivery with quadratic backoff, up to
// maxAttempts.
func (d *Dispatcher) retry(job *deliveryJob) {
	if job.attempt >= maxAttempts {
		return
	}
	time.Sleep(time.Duration(job.attempt*job.attempt) * time.Second)
	job.attempt++
	select {
	case d.queue <- job:
	default:
	}
}

// Shutdown drains the queue and stops the workers.
func (d *Dispatcher) Shutdown() {
	close(d.queue)
	d.wg.Wait()
}
