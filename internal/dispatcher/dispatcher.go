// Package dispatcher implements the A role: an unbounded in-memory
// queue of payments drained by a fixed worker pool that speaks to the
// two external providers with a retry + failover strategy, writing
// successful outcomes to the store.
package dispatcher

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/rinha-core/dispatch/internal/metrics"
	"github.com/rinha-core/dispatch/internal/model"
	"github.com/rinha-core/dispatch/internal/provider"
	"github.com/rinha-core/dispatch/internal/transport"
)

const (
	maxDefaultAttempts = 5
	retryBackoff       = 500 * time.Millisecond
)

// Dispatcher owns the queue, worker pool and the shared HTTP client /
// store pool / provider registry that every worker reads.
type Dispatcher struct {
	queue      *queue
	numWorkers int

	httpClient *http.Client
	storePool  *transport.Pool
	providers  *provider.Registry

	defaultURL  string
	fallbackURL string

	logger zerolog.Logger
}

func New(numWorkers int, defaultURL, fallbackURL string, storePool *transport.Pool, providers *provider.Registry, logger zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		queue:      newQueue(),
		numWorkers: numWorkers,
		httpClient: &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        200,
				MaxIdleConnsPerHost: 200,
				IdleConnTimeout:     60 * time.Second,
			},
		},
		storePool:   storePool,
		providers:   providers,
		defaultURL:  defaultURL,
		fallbackURL: fallbackURL,
		logger:      logger,
	}
}

// Enqueue is called by the ingress accept loop; it never blocks.
func (d *Dispatcher) Enqueue(req model.PaymentRequest) {
	d.queue.push(req)
	metrics.QueueDepth.Set(float64(d.queue.len()))
}

// Run starts the fixed worker pool. It returns once ctx is cancelled
// and every worker has drained its current item; workers are
// interchangeable and carry no per-id affinity.
func (d *Dispatcher) Run(ctx context.Context) {
	done := make(chan struct{})
	for i := 0; i < d.numWorkers; i++ {
		go func(id int) {
			d.workerLoop(ctx, id)
			done <- struct{}{}
		}(i)
	}
	<-ctx.Done()
	d.queue.close()
	for i := 0; i < d.numWorkers; i++ {
		<-done
	}
}

func (d *Dispatcher) workerLoop(ctx context.Context, id int) {
	for {
		req, ok := d.queue.pop()
		if !ok {
			return
		}
		metrics.QueueDepth.Set(float64(d.queue.len()))
		metrics.WorkersBusy.Inc()
		d.processPayment(ctx, req)
		metrics.WorkersBusy.Dec()

		select {
		case <-ctx.Done():
			return
		default:
		}
	}
}

// processPayment is the per-dequeued-request worker algorithm of spec
// §4.2: default with retries, then a single fallback attempt, then
// drop.
func (d *Dispatcher) processPayment(ctx context.Context, req model.PaymentRequest) {
	requestedAt := time.Now().UTC()
	submission := model.NewPaymentSubmission(req, requestedAt)

	if d.attemptProvider(ctx, provider.Default, d.defaultURL, submission, maxDefaultAttempts) {
		d.writeRecord(submission, model.PartitionDefault)
		return
	}

	if d.attemptProvider(ctx, provider.Fallback, d.fallbackURL, submission, 1) {
		d.writeRecord(submission, model.PartitionFallback)
		return
	}

	metrics.PaymentsDropped.Inc()
	d.logger.Warn().Str("correlationId", req.CorrelationID).Msg("payment dropped: both providers failed")
}

// attemptProvider POSTs the submission to baseURL up to attempts
// times, sleeping retryBackoff between each failed attempt. It returns
// true on the first 2xx response.
func (d *Dispatcher) attemptProvider(ctx context.Context, name provider.Name, baseURL string, submission model.PaymentSubmission, attempts int) bool {
	body, err := submission.Encode()
	if err != nil {
		d.logger.Error().Err(err).Msg("failed to encode payment submission")
		return false
	}

	for attempt := 1; attempt <= attempts; attempt++ {
		start := time.Now()
		ok := d.postPayment(ctx, baseURL, body)
		metrics.ProviderLatency.WithLabelValues(string(name)).Observe(time.Since(start).Seconds())

		if ok {
			metrics.ProviderAttempts.WithLabelValues(string(name), "success").Inc()
			return true
		}
		metrics.ProviderAttempts.WithLabelValues(string(name), "failure").Inc()

		if attempt < attempts {
			d.logger.Warn().
				Str("provider", string(name)).
				Int("attempt", attempt).
				Msg("provider attempt failed, retrying")
			select {
			case <-ctx.Done():
				return false
			case <-time.After(retryBackoff):
			}
		}
	}
	return false
}

func (d *Dispatcher) postPayment(ctx context.Context, baseURL string, body []byte) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/payments", bytes.NewReader(body))
	if err != nil {
		return false
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode >= 200 && resp.StatusCode < 300
}

// writeRecord sends a Write command to the store over a pooled
// connection. A failure here is logged and the payment is effectively
// lost (spec §7 — engine error on Write).
func (d *Dispatcher) writeRecord(submission model.PaymentSubmission, partition model.Partition) {
	cmd := model.NewWriteCommand(submission.RequestedAt, submission.Amount, partition)
	payload, err := cmd.Encode()
	if err != nil {
		d.logger.Error().Err(err).Msg("failed to encode store write command")
		return
	}

	conn, err := d.storePool.Acquire()
	if err != nil {
		d.logger.Error().Err(err).Msg("failed to acquire store connection")
		return
	}
	defer d.storePool.Release(conn)

	if err := transport.WriteFrame(conn, payload); err != nil {
		d.logger.Error().Err(err).Msg("failed to write store record")
		return
	}
}

// ProbeProviders performs the startup health probe required by spec
// §4.2; a failure here must abort process startup.
func ProbeProviders(ctx context.Context, defaultURL, fallbackURL string) (*provider.Registry, error) {
	client := &http.Client{Timeout: 5 * time.Second}
	reg, err := provider.ProbeAll(ctx, client, defaultURL, fallbackURL)
	if err != nil {
		return nil, fmt.Errorf("dispatcher: provider probe failed: %w", err)
	}
	return reg, nil
}
