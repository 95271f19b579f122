package dispatcher

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rinha-core/dispatch/internal/model"
	"github.com/rinha-core/dispatch/internal/provider"
	"github.com/rinha-core/dispatch/internal/transport"
)

// fakeStore listens on a unix socket and decodes every StoreCommand
// frame it receives onto a channel, standing in for the S process.
func newFakeStore(t *testing.T) (sock string, received chan model.StoreCommand) {
	t.Helper()
	sock = filepath.Join(t.TempDir(), "store.sock")
	ln, err := net.Listen("unix", sock)
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	received = make(chan model.StoreCommand, 16)
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go func(c net.Conn) {
				defer c.Close()
				transport.ServeLines(c, func(line []byte) error {
					cmd, err := model.DecodeStoreCommand(line)
					if err != nil {
						return err
					}
					received <- cmd
					return nil
				}, nil)
			}(conn)
		}
	}()
	return sock, received
}

func newTestDispatcher(t *testing.T, defaultURL, fallbackURL string) (*Dispatcher, chan model.StoreCommand) {
	t.Helper()
	sock, received := newFakeStore(t)
	pool, warnings := transport.NewPool("unix", sock, 2)
	require.Empty(t, warnings)
	d := New(1, defaultURL, fallbackURL, pool, provider.NewRegistry(), zerolog.Nop())
	return d, received
}

func TestDispatcher_DefaultSuccess_WritesDefaultPartition(t *testing.T) {
	var calls int
	defaultSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusOK)
	}))
	defer defaultSrv.Close()
	fallbackSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("fallback should not be called when default succeeds")
	}))
	defer fallbackSrv.Close()

	d, received := newTestDispatcher(t, defaultSrv.URL, fallbackSrv.URL)

	req := model.PaymentRequest{CorrelationID: "11111111-1111-1111-1111-111111111111", Amount: 19.9}
	d.processPayment(context.Background(), req)

	assert.Equal(t, 1, calls)

	select {
	case cmd := <-received:
		require.NotNil(t, cmd.Write)
		assert.Equal(t, model.PartitionDefault, cmd.Write.Partition)
		assert.Equal(t, 19.9, cmd.Write.Value)
	case <-time.After(2 * time.Second):
		t.Fatal("store never received a write")
	}
}

func TestDispatcher_DefaultFails_FallbackSucceeds_WritesFallbackPartition(t *testing.T) {
	defaultSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer defaultSrv.Close()

	var fallbackCalls int
	fallbackSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fallbackCalls++
		w.WriteHeader(http.StatusOK)
	}))
	defer fallbackSrv.Close()

	d, received := newTestDispatcher(t, defaultSrv.URL, fallbackSrv.URL)

	req := model.PaymentRequest{CorrelationID: "22222222-2222-2222-2222-222222222222", Amount: 5.0}
	d.processPayment(context.Background(), req)

	assert.Equal(t, 1, fallbackCalls)

	select {
	case cmd := <-received:
		require.NotNil(t, cmd.Write)
		assert.Equal(t, model.PartitionFallback, cmd.Write.Partition)
	case <-time.After(5 * time.Second):
		t.Fatal("store never received a write")
	}
}

func TestDispatcher_BothProvidersFail_DropsWithoutWriting(t *testing.T) {
	failing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer failing.Close()

	d, received := newTestDispatcher(t, failing.URL, failing.URL)

	req := model.PaymentRequest{CorrelationID: "33333333-3333-3333-3333-333333333333", Amount: 1.0}
	d.processPayment(context.Background(), req)

	select {
	case cmd := <-received:
		t.Fatalf("expected no write, got %+v", cmd)
	case <-time.After(500 * time.Millisecond):
	}
}

func TestDispatcher_EnqueueAndWorkerLoopDrainsQueue(t *testing.T) {
	var calls int
	defaultSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusOK)
	}))
	defer defaultSrv.Close()

	d, received := newTestDispatcher(t, defaultSrv.URL, defaultSrv.URL)

	req := model.PaymentRequest{CorrelationID: "44444444-4444-4444-4444-444444444444", Amount: 2.5}
	d.Enqueue(req)

	ctx, cancel := context.WithCancel(context.Background())
	go d.Run(ctx)

	select {
	case cmd := <-received:
		require.NotNil(t, cmd.Write)
	case <-time.After(2 * time.Second):
		t.Fatal("worker never drained the queue")
	}
	cancel()
}
