package transport

import (
	"bufio"
	"net"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newEchoListener(t *testing.T) string {
	t.Helper()
	sock := filepath.Join(t.TempDir(), "echo.sock")
	ln, err := net.Listen("unix", sock)
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go func(c net.Conn) {
				defer c.Close()
				r := bufio.NewReader(c)
				for {
					line, err := r.ReadBytes('\n')
					if len(line) > 0 {
						c.Write(line)
					}
					if err != nil {
						return
					}
				}
			}(conn)
		}
	}()
	return sock
}

func TestPool_AcquireReleaseReusesConnection(t *testing.T) {
	sock := newEchoListener(t)
	pool, warnings := NewPool("unix", sock, 2)
	require.Empty(t, warnings)
	require.NotNil(t, pool)

	assert.Equal(t, int32(2), pool.Idle())

	c1, err := pool.Acquire()
	require.NoError(t, err)
	assert.Equal(t, int32(1), pool.Idle())

	pool.Release(c1)
	assert.Equal(t, int32(2), pool.Idle())
}

func TestPool_AcquireDialsFreshWhenEmpty(t *testing.T) {
	sock := newEchoListener(t)
	pool, _ := NewPool("unix", sock, 0)
	require.NotNil(t, pool)
	assert.Equal(t, int32(0), pool.Idle())

	c, err := pool.Acquire()
	require.NoError(t, err)
	require.NotNil(t, c)
	c.Close()
}

func TestPool_ReleaseDropsConnectionAboveCap(t *testing.T) {
	sock := newEchoListener(t)
	pool, warnings := NewPool("unix", sock, 1)
	require.Empty(t, warnings)

	extra, err := net.Dial("unix", sock)
	require.NoError(t, err)

	pool.Release(extra)
	assert.Equal(t, int32(1), pool.Idle(), "idle count should not exceed cap")
}

func TestNewPool_ErrorsWhenNoDialSucceeds(t *testing.T) {
	sock := filepath.Join(t.TempDir(), "nobody-listening.sock")
	pool, warnings := NewPool("unix", sock, 3)
	assert.Nil(t, pool)
	assert.Len(t, warnings, 4)
}
