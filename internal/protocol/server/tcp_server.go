package server

import (
	"context"
	"errors"
	"io"
	"net"
	"sync"
	"time"

	pkgerrors "github.com/pkg/errors"
	"go.uber.org/zap"

	"jttracker/internal/core/model"
	"jttracker/internal/observability"
	"jttracker/internal/protocol"
)

const (
	readBufferSize = 4096
	writeTimeout   = 10 * time.Second
)

// FrameHandler processes one frame read from a terminal connection.
type FrameHandler interface {
	ProcessFrame(ctx context.Context, remote net.Addr, data []byte, replier protocol.Replier) (*model.Position, error)
}

// TCPServer treats every successful read as exactly one frame. Frames that
// fail to decode do not close the connection.
type TCPServer struct {
	addr        string
	idleTimeout time.Duration
	handler     FrameHandler
	logger      *zap.Logger

	listener net.Listener
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup

	mu    sync.Mutex
	conns map[net.Conn]struct{}
}

func NewTCPServer(addr string, idleTimeout time.Duration, handler FrameHandler, logger *zap.Logger) *TCPServer {
	ctx, cancel := context.WithCancel(context.Background())
	return &TCPServer{
		addr:        addr,
		idleTimeout: idleTimeout,
		handler:     handler,
		logger:      logger,
		ctx:         ctx,
		cancel:      cancel,
		conns:       make(map[net.Conn]struct{}),
	}
}

func (s *TCPServer) Start() error {
	var err error
	s.listener, err = net.Listen("tcp", s.addr)
	if err != nil {
		return pkgerrors.Wrapf(err, "failed to start TCP server on %s", s.addr)
	}

	s.logger.Info("TCP server listening", zap.String("addr", s.listener.Addr().String()))

	s.wg.Add(1)
	go s.acceptConnections()
	return nil
}

// Addr returns the bound address, useful when listening on port 0.
func (s *TCPServer) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Stop closes the listener and every open connection and waits for the
// connection handlers to return.
func (s *TCPServer) Stop() {
	s.cancel()
	if s.listener != nil {
		s.listener.Close()
	}
	s.mu.Lock()
	for conn := range s.conns {
		conn.Close()
	}
	s.mu.Unlock()
	s.wg.Wait()
}

func (s *TCPServer) acceptConnections() {
	defer s.wg.Done()
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			s.logger.Error("error accepting connection", zap.Error(err))
			continue
		}

		observability.TCPConnections.Inc()
		s.track(conn, true)
		s.wg.Add(1)
		go s.handleConnection(conn)
	}
}

func (s *TCPServer) track(conn net.Conn, add bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if add {
		if s.ctx.Err() != nil {
			conn.Close()
			return
		}
		s.conns[conn] = struct{}{}
	} else {
		delete(s.conns, conn)
	}
}

func (s *TCPServer) handleConnection(conn net.Conn) {
	defer s.wg.Done()
	defer s.track(conn, false)
	defer conn.Close()

	logger := s.logger.With(zap.String("remote", conn.RemoteAddr().String()))
	logger.Info("new connection")

	replier := &connReplier{conn: conn}
	buffer := make([]byte, readBufferSize)
	for {
		if s.idleTimeout > 0 {
			_ = conn.SetReadDeadline(time.Now().Add(s.idleTimeout))
		}
		n, err := conn.Read(buffer)
		if err != nil {
			var netErr net.Error
			switch {
			case err == io.EOF:
				logger.Info("connection closed by peer")
			case errors.As(err, &netErr) && netErr.Timeout():
				logger.Info("connection idle, closing")
			case errors.Is(err, net.ErrClosed):
			default:
				logger.Warn("error reading from connection", zap.Error(err))
			}
			return
		}

		// The handler logs and counts failed frames itself.
		_, _ = s.handler.ProcessFrame(s.ctx, conn.RemoteAddr(), buffer[:n], replier)
	}
}

// connReplier writes reply frames back on the connection the frame came in
// on. The remote address is implied by the connection.
type connReplier struct {
	conn net.Conn
}

func (r *connReplier) Reply(_ net.Addr, payload []byte) error {
	if err := r.conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		return err
	}
	_, err := r.conn.Write(payload)
	return err
}
