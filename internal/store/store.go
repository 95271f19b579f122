// Package store implements the S role: a persistent, ordered
// key/value engine with two named partitions (default, fallback),
// serving Write, Read (inclusive range) and Purge through a single
// serialized command loop, with a sidecar periodic flush.
//
// The engine is adapted from the teacher's internal/database, which
// wraps go.etcd.io/bbolt with an Update/View bucket discipline; this
// package keeps that discipline but replaces the customer-payment
// schema with the RFC 3339 timestamp -> big-endian float64 schema
// spec §4.3/§6 specifies, and serializes every mutation through one
// goroutine rather than letting bbolt's own locking arbitrate it —
// bulk operations (range scans, bucket drop) are easier to reason
// about without racing writes (spec §4.3).
package store

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"
	bolt "go.etcd.io/bbolt"

	"github.com/rinha-core/dispatch/internal/metrics"
	"github.com/rinha-core/dispatch/internal/model"
)

var bucketNames = map[model.Partition][]byte{
	model.PartitionDefault:  []byte("default"),
	model.PartitionFallback: []byte("fallback"),
}

const flushInterval = 100 * time.Millisecond

// request is one unit of work submitted to the single-writer command
// loop. reply is nil for Write/Purge (fire-and-forget per spec §4.3).
type request struct {
	cmd   model.StoreCommand
	reply chan model.GlobalSummary
}

// Store owns the embedded bbolt engine and the serialized command
// loop that is the only thing ever allowed to touch it.
type Store struct {
	db     *bolt.DB
	submit chan request
	logger zerolog.Logger
}

// Open opens (or creates) the on-disk database at path and ensures
// both partitions exist. Restarting against an existing path reopens
// it intact, per spec §6.
func Open(path string, logger zerolog.Logger) (*Store, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{
		Timeout: 1 * time.Second,
		NoSync:  true, // durability is handed to the periodic flush loop, not every txn
	})
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}

	if err := ensureBuckets(db); err != nil {
		db.Close()
		return nil, err
	}

	return &Store{
		db:     db,
		submit: make(chan request),
		logger: logger,
	}, nil
}

func ensureBuckets(db *bolt.DB) error {
	return db.Update(func(tx *bolt.Tx) error {
		for _, name := range bucketNames {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Store) Close() error {
	close(s.submit)
	return s.db.Close()
}

// Submit hands a command to the single-writer loop and, for Read,
// blocks for the resulting summary. Write and Purge return
// immediately once accepted — spec §4.3 gives them no reply.
func (s *Store) Submit(cmd model.StoreCommand) model.GlobalSummary {
	req := request{cmd: cmd}
	if cmd.Read != nil {
		req.reply = make(chan model.GlobalSummary, 1)
	}
	s.submit <- req
	if req.reply != nil {
		return <-req.reply
	}
	return model.GlobalSummary{}
}

// Run drives the serialized command loop until the store is closed
// (Close closes the submit channel). It is meant to run in its own
// goroutine for the lifetime of the process.
func (s *Store) Run() {
	for req := range s.submit {
		switch {
		case req.cmd.Write != nil:
			s.applyWrite(req.cmd.Write)
			metrics.StoreCommands.WithLabelValues("write").Inc()
		case req.cmd.Read != nil:
			req.reply <- s.applyRead(req.cmd.Read)
			metrics.StoreCommands.WithLabelValues("read").Inc()
		case req.cmd.Purge != nil:
			s.applyPurge()
			metrics.StoreCommands.WithLabelValues("purge").Inc()
		}
	}
}

func (s *Store) applyWrite(w *model.WriteCommand) {
	bucket := bucketNames[w.Partition]
	if bucket == nil {
		s.logger.Error().Str("partition", string(w.Partition)).Msg("unknown partition on write")
		return
	}
	err := s.db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(bucket)
		if err != nil {
			return err
		}
		return b.Put([]byte(w.Key), encodeAmount(w.Value))
	})
	if err != nil {
		s.logger.Error().Err(err).Str("key", w.Key).Msg("store write failed")
	}
}

func (s *Store) applyRead(r *model.ReadCommand) model.GlobalSummary {
	var summary model.GlobalSummary
	err := s.db.View(func(tx *bolt.Tx) error {
		summary.Default = scanRange(tx, bucketNames[model.PartitionDefault], r.From, r.To)
		summary.Fallback = scanRange(tx, bucketNames[model.PartitionFallback], r.From, r.To)
		return nil
	})
	if err != nil {
		s.logger.Error().Err(err).Msg("store read failed")
	}
	return summary
}

// scanRange folds every record in [from, to] (inclusive on both ends,
// spec §3/§8) into a PartitionSummary. A missing bucket (e.g. right
// after a purge) contributes a zero summary.
func scanRange(tx *bolt.Tx, bucket []byte, from, to string) model.PartitionSummary {
	var summary model.PartitionSummary
	b := tx.Bucket(bucket)
	if b == nil {
		return summary
	}
	c := b.Cursor()
	lo, hi := []byte(from), []byte(to)
	for k, v := c.Seek(lo); k != nil && string(k) <= string(hi); k, v = c.Next() {
		amount, ok := decodeAmount(v)
		if !ok {
			continue
		}
		summary.TotalRequests++
		summary.TotalAmount += amount
	}
	return summary
}

func (s *Store) applyPurge() {
	err := s.db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range bucketNames {
			if err := tx.DeleteBucket(bucket); err != nil && err != bolt.ErrBucketNotFound {
				return err
			}
		}
		return nil
	})
	if err != nil {
		s.logger.Error().Err(err).Msg("store purge failed")
	}
}

// RunFlushLoop ticks every 100ms and syncs the database to disk. Since
// the engine is opened with NoSync, this is the only thing making
// writes durable; errors are logged and the next tick simply retries
// (spec §4.3).
func (s *Store) RunFlushLoop(stop <-chan struct{}) {
	ticker := time.NewTicker(flushInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			start := time.Now()
			if err := s.db.Sync(); err != nil {
				metrics.FlushErrors.Inc()
				s.logger.Error().Err(err).Msg("flush failed")
				continue
			}
			metrics.FlushDuration.Observe(time.Since(start).Seconds())
		}
	}
}
