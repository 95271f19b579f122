package transport

import (
	"bufio"
	"io"
	"net"
)

// WriteFrame writes one JSON-encoded value followed by a newline and
// flushes it to the wire. It is the only way any of G, A or S put a
// frame on a socket.
func WriteFrame(w io.Writer, payload []byte) error {
	if _, err := w.Write(payload); err != nil {
		return err
	}
	_, err := w.Write([]byte{'\n'})
	return err
}

// ReadLine reads a single newline-terminated line from conn, per the
// one-line Read response contract (§4.3, §4.1).
func ReadLine(conn net.Conn) ([]byte, error) {
	r := bufio.NewReader(conn)
	line, err := r.ReadBytes('\n')
	if err != nil && len(line) == 0 {
		return nil, err
	}
	return trimNewline(line), nil
}

func trimNewline(b []byte) []byte {
	for len(b) > 0 && (b[len(b)-1] == '\n' || b[len(b)-1] == '\r') {
		b = b[:len(b)-1]
	}
	return b
}

// LineHandler is invoked once per non-empty ingress line. A non-nil
// error from a handler is logged by the caller and never closes the
// connection — only EOF or a transport-level read error does that.
type LineHandler func(line []byte) error

// ServeLines reads newline-delimited frames from conn until EOF or an
// I/O error, ignoring blank lines and forwarding every other line to
// handle. Parse errors are the handler's concern: this loop only
// reacts to literal socket-level failures.
func ServeLines(conn net.Conn, handle LineHandler, onHandlerErr func(line []byte, err error)) error {
	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := trimNewline(scanner.Bytes())
		if len(bufTrimSpace(line)) == 0 {
			continue
		}
		cp := make([]byte, len(line))
		copy(cp, line)
		if err := handle(cp); err != nil && onHandlerErr != nil {
			onHandlerErr(cp, err)
		}
	}
	return scanner.Err()
}

func bufTrimSpace(b []byte) []byte {
	start := 0
	for start < len(b) && isSpace(b[start]) {
		start++
	}
	end := len(b)
	for end > start && isSpace(b[end-1]) {
		end--
	}
	return b[start:end]
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\r' || c == '\n'
}
