// Package webhook delivers signed mutation events to a configured endpoint.
// Delivery is fire-and-forget relative to the mutating request: it holds no
// lock, blocks nothing, and a failed delivery is logged and counted but never
// surfaced to the caller and never retried through the hook pipeline.
package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/momentum-hq/momentum/internal/domain/document"
	"github.com/momentum-hq/momentum/internal/metrics"
	"github.com/momentum-hq/momentum/internal/usecase/lifecycle"
)

// Delivery headers.
const (
	HeaderEvent      = "x-momentum-event"
	HeaderCollection = "x-momentum-collection"
	HeaderSignature  = "x-momentum-signature"
	HeaderDelivery   = "x-momentum-delivery"
)

// Payload is the JSON body POSTed to the receiver.
type Payload struct {
	Event      string            `json:"event"`
	Collection string            `json:"collection"`
	Operation  string            `json:"operation"`
	Doc        document.Document `json:"doc"`
	Timestamp  int64             `json:"timestamp"`
}

// Dispatcher implements lifecycle.Notifier over HTTP POST.
type Dispatcher struct {
	url    string
	secret []byte
	client *http.Client
	logger *zap.Logger
	wg     sync.WaitGroup
	now    func() time.Time
}

var _ lifecycle.Notifier = (*Dispatcher)(nil)

// New creates a webhook dispatcher for the given endpoint.
func New(url, secret string, timeout time.Duration, logger *zap.Logger) *Dispatcher {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Dispatcher{
		url:    url,
		secret: []byte(secret),
		client: &http.Client{Timeout: timeout},
		logger: logger,
		now:    time.Now,
	}
}

// Sign computes the hex-encoded HMAC-SHA256 of the payload bytes.
func Sign(secret, body []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// Notify delivers one event asynchronously. Exactly one delivery is attempted
// per committed mutation.
func (d *Dispatcher) Notify(event lifecycle.Event) {
	payload := Payload{
		Event:      event.Event,
		Collection: event.Collection,
		Operation:  event.Operation,
		Doc:        event.Doc,
		Timestamp:  d.now().UnixMilli(),
	}

	body, err := json.Marshal(payload)
	if err != nil {
		d.logger.Error("webhook payload marshal failed", zap.Error(err))
		metrics.WebhookDeliveriesTotal.WithLabelValues("error").Inc()
		return
	}

	deliveryID := uuid.NewString()
	d.wg.Add(1)
	go d.deliver(deliveryID, payload, body)
}

func (d *Dispatcher) deliver(deliveryID string, payload Payload, body []byte) {
	defer d.wg.Done()

	req, err := http.NewRequest(http.MethodPost, d.url, bytes.NewReader(body))
	if err != nil {
		d.fail(deliveryID, payload, err)
		return
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(HeaderEvent, payload.Event)
	req.Header.Set(HeaderCollection, payload.Collection)
	req.Header.Set(HeaderSignature, Sign(d.secret, body))
	req.Header.Set(HeaderDelivery, deliveryID)

	resp, err := d.client.Do(req)
	if err != nil {
		d.fail(deliveryID, payload, err)
		return
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 300 {
		d.fail(deliveryID, payload, fmt.Errorf("receiver returned %d", resp.StatusCode))
		return
	}

	metrics.WebhookDeliveriesTotal.WithLabelValues("ok").Inc()
	d.logger.Debug("webhook delivered",
		zap.String("delivery_id", deliveryID),
		zap.String("event", payload.Event),
		zap.String("collection", payload.Collection))
}

func (d *Dispatcher) fail(deliveryID string, payload Payload, err error) {
	metrics.WebhookDeliveriesTotal.WithLabelValues("error").Inc()
	d.logger.Warn("webhook delivery failed",
		zap.String("delivery_id", deliveryID),
		zap.String("event", payload.Event),
		zap.String("collection", payload.Collection),
		zap.Error(err))
}

// HealthCheck probes the receiver with a HEAD request.
func (d *Dispatcher) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, d.url, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook endpoint unreachable: %w", err)
	}
	_ = resp.Body.Close()
	return nil
}

// Wait blocks until every in-flight delivery finishes. Used on shutdown.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}
