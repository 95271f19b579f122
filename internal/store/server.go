package store

import (
	"net"
	"os"

	"github.com/rs/zerolog"

	"github.com/rinha-core/dispatch/internal/model"
	"github.com/rinha-core/dispatch/internal/transport"
)

// ListenAndServe binds the store's ingress socket and serves IPC
// frames until the listener is closed. Every accepted connection
// follows the OPEN/PARSE state machine of spec §4.3: bad frames are
// logged and the connection stays open.
func ListenAndServe(path string, s *Store, logger zerolog.Logger) error {
	if _, err := os.Stat(path); err == nil {
		if err := os.Remove(path); err != nil {
			return err
		}
	}

	listener, err := net.Listen("unix", path)
	if err != nil {
		return err
	}
	logger.Info().Str("socket", path).Msg("store listening")

	for {
		conn, err := listener.Accept()
		if err != nil {
			return err
		}
		go handleConn(conn, s, logger)
	}
}

func handleConn(conn net.Conn, s *Store, logger zerolog.Logger) {
	defer conn.Close()

	handle := func(line []byte) error {
		cmd, err := model.DecodeStoreCommand(line)
		if err != nil {
			return err
		}
		summary := s.Submit(cmd)
		if cmd.Read == nil {
			return nil
		}
		payload, err := summary.Encode()
		if err != nil {
			return err
		}
		return transport.WriteFrame(conn, payload)
	}
	onErr := func(line []byte, err error) {
		logger.Warn().Err(err).Bytes("line", line).Msg("dropping malformed store frame")
	}

	if err := transport.ServeLines(conn, handle, onErr); err != nil {
		logger.Debug().Err(err).Msg("store connection closed")
	}
}
