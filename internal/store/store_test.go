package store

import (
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rinha-core/dispatch/internal/model"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rinha.db")
	s, err := Open(path, zerolog.Nop())
	require.NoError(t, err)
	go s.Run()
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStore_WriteThenReadIsVisible(t *testing.T) {
	s := newTestStore(t)

	s.Submit(model.NewWriteCommand("2024-01-01T00:00:00Z", 19.9, model.PartitionDefault))
	s.Submit(model.NewWriteCommand("2024-01-02T00:00:00Z", 5.0, model.PartitionFallback))

	summary := s.Submit(model.NewReadCommand(model.MinTimestamp, model.MaxTimestamp))
	assert.Equal(t, uint64(1), summary.Default.TotalRequests)
	assert.Equal(t, 19.9, summary.Default.TotalAmount)
	assert.Equal(t, uint64(1), summary.Fallback.TotalRequests)
	assert.Equal(t, 5.0, summary.Fallback.TotalAmount)
}

func TestStore_RangeQueryIsInclusiveOnBothEnds(t *testing.T) {
	s := newTestStore(t)

	s.Submit(model.NewWriteCommand("2024-01-01T00:00:00Z", 1, model.PartitionDefault))
	s.Submit(model.NewWriteCommand("2024-01-02T00:00:00Z", 2, model.PartitionDefault))
	s.Submit(model.NewWriteCommand("2024-01-03T00:00:00Z", 4, model.PartitionDefault))

	summary := s.Submit(model.NewReadCommand("2024-01-01T00:00:00Z", "2024-01-02T00:00:00Z"))
	assert.Equal(t, uint64(2), summary.Default.TotalRequests)
	assert.Equal(t, 3.0, summary.Default.TotalAmount)
}

func TestStore_RangeQueryExcludesOutOfBoundRecords(t *testing.T) {
	s := newTestStore(t)

	s.Submit(model.NewWriteCommand("2024-01-01T00:00:00Z", 1, model.PartitionDefault))
	s.Submit(model.NewWriteCommand("2024-06-01T00:00:00Z", 100, model.PartitionDefault))

	summary := s.Submit(model.NewReadCommand("2024-02-01T00:00:00Z", "2024-03-01T00:00:00Z"))
	assert.Equal(t, uint64(0), summary.Default.TotalRequests)
	assert.Equal(t, 0.0, summary.Default.TotalAmount)
}

func TestStore_PurgeZeroesBothPartitionsThenAcceptsNewWrites(t *testing.T) {
	s := newTestStore(t)

	s.Submit(model.NewWriteCommand("2024-01-01T00:00:00Z", 19.9, model.PartitionDefault))
	s.Submit(model.NewWriteCommand("2024-01-01T00:00:00Z", 1.0, model.PartitionFallback))
	s.Submit(model.NewPurgeCommand())

	summary := s.Submit(model.NewReadCommand(model.MinTimestamp, model.MaxTimestamp))
	assert.Equal(t, uint64(0), summary.Default.TotalRequests)
	assert.Equal(t, uint64(0), summary.Fallback.TotalRequests)

	s.Submit(model.NewWriteCommand("2024-02-01T00:00:00Z", 7.0, model.PartitionDefault))
	summary = s.Submit(model.NewReadCommand(model.MinTimestamp, model.MaxTimestamp))
	assert.Equal(t, uint64(1), summary.Default.TotalRequests)
	assert.Equal(t, 7.0, summary.Default.TotalAmount)
}

func TestStore_ReadOnEmptyStoreReturnsZeroSummary(t *testing.T) {
	s := newTestStore(t)
	summary := s.Submit(model.NewReadCommand(model.MinTimestamp, model.MaxTimestamp))
	assert.Equal(t, model.GlobalSummary{}, summary)
}

func TestStore_PersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rinha.db")

	s1, err := Open(path, zerolog.Nop())
	require.NoError(t, err)
	go s1.Run()
	s1.Submit(model.NewWriteCommand("2024-01-01T00:00:00Z", 42.0, model.PartitionDefault))
	require.NoError(t, s1.Close())

	s2, err := Open(path, zerolog.Nop())
	require.NoError(t, err)
	go s2.Run()
	defer s2.Close()

	summary := s2.Submit(model.NewReadCommand(model.MinTimestamp, model.MaxTimestamp))
	assert.Equal(t, uint64(1), summary.Default.TotalRequests)
	assert.Equal(t, 42.0, summary.Default.TotalAmount)
}
