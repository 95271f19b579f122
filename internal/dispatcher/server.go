package dispatcher

import (
	"net"
	"os"

	"github.com/rs/zerolog"

	"github.com/rinha-core/dispatch/internal/model"
	"github.com/rinha-core/dispatch/internal/transport"
)

// ListenAndServe binds the dispatcher's ingress socket and accepts
// connections until the listener is closed, enqueuing every valid
// PaymentRequest frame. Malformed JSON lines are logged and skipped —
// they never close the connection (spec §4.2).
func ListenAndServe(path string, d *Dispatcher, logger zerolog.Logger) error {
	if _, err := os.Stat(path); err == nil {
		if err := os.Remove(path); err != nil {
			return err
		}
	}

	listener, err := net.Listen("unix", path)
	if err != nil {
		return err
	}
	logger.Info().Str("socket", path).Msg("dispatcher listening")

	for {
		conn, err := listener.Accept()
		if err != nil {
			return err
		}
		go handleConn(conn, d, logger)
	}
}

func handleConn(conn net.Conn, d *Dispatcher, logger zerolog.Logger) {
	defer conn.Close()

	handle := func(line []byte) error {
		req, err := model.DecodePaymentRequest(line)
		if err != nil {
			return err
		}
		d.Enqueue(req)
		return nil
	}
	onErr := func(line []byte, err error) {
		logger.Warn().Err(err).Bytes("line", line).Msg("dropping malformed payment frame")
	}

	if err := transport.ServeLines(conn, handle, onErr); err != nil {
		logger.Debug().Err(err).Msg("dispatcher connection closed")
	}
}
