// Package transport implements the connection-pooled, line-delimited
// socket protocol that glues the gateway, dispatcher and store
// processes together.
package transport

import (
	"fmt"
	"net"
	"sync/atomic"
)

// node is one link of the lock-free idle-connection stack.
type node struct {
	conn net.Conn
	next *node
}

// Pool is a lock-free LIFO of idle stream-socket connections to a
// single address, with a soft cap enforced by a relaxed atomic
// counter. It never blocks: acquire dials a fresh connection when the
// stack is empty, and release drops the connection once the idle
// count is at or above cap rather than waiting for room.
//
// The counter is intentionally allowed to transiently disagree with
// the stack depth under contention — it is a best-effort ceiling, not
// a correctness bound (spec §5).
type Pool struct {
	network string
	address string
	cap     int32

	top  atomic.Pointer[node]
	idle atomic.Int32
}

// NewPool dials up to `size` connections concurrently to pre-warm the
// pool. If every dial fails the constructor returns an error; partial
// failure only logs (via the returned warnings slice) and keeps
// whatever connections succeeded.
func NewPool(network, address string, size int) (*Pool, []error) {
	p := &Pool{network: network, address: address, cap: int32(size)}

	type result struct {
		conn net.Conn
		err  error
	}
	results := make(chan result, size)
	for i := 0; i < size; i++ {
		go func() {
			c, err := net.Dial(network, address)
			results <- result{conn: c, err: err}
		}()
	}

	var warnings []error
	ok := 0
	for i := 0; i < size; i++ {
		r := <-results
		if r.err != nil {
			warnings = append(warnings, r.err)
			continue
		}
		p.release(r.conn)
		ok++
	}
	if ok == 0 && size > 0 {
		return nil, append(warnings, fmt.Errorf("transport: pool to %s %s: no connection succeeded", network, address))
	}
	return p, warnings
}

// Acquire pops an idle connection or dials a new one; the pool never
// blocks a caller waiting for an idle slot to free up.
func (p *Pool) Acquire() (net.Conn, error) {
	for {
		n := p.top.Load()
		if n == nil {
			return net.Dial(p.network, p.address)
		}
		if p.top.CompareAndSwap(n, n.next) {
			p.idle.Add(-1)
			return n.conn, nil
		}
	}
}

// Release returns a borrowed connection to the pool, unless the idle
// count already meets or exceeds the soft cap, in which case the
// connection is closed instead.
func (p *Pool) Release(c net.Conn) {
	if p.idle.Load() >= p.cap {
		_ = c.Close()
		return
	}
	p.release(c)
}

func (p *Pool) release(c net.Conn) {
	n := &node{conn: c}
	for {
		old := p.top.Load()
		n.next = old
		if p.top.CompareAndSwap(old, n) {
			p.idle.Add(1)
			return
		}
	}
}

// Idle reports the approximate number of idle connections, useful
// only for metrics — see the counter-drift note above.
func (p *Pool) Idle() int32 { return p.idle.Load() }
