package server

import (
	"bufio"
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"jttracker/internal/core/model"
	"jttracker/internal/protocol"
)

type frameRecorder struct {
	mu     sync.Mutex
	frames []string
	reply  []byte
}

func (h *frameRecorder) ProcessFrame(_ context.Context, remote net.Addr, data []byte, replier protocol.Replier) (*model.Position, error) {
	h.mu.Lock()
	h.frames = append(h.frames, string(data))
	h.mu.Unlock()
	if h.reply != nil {
		if err := replier.Reply(remote, h.reply); err != nil {
			return nil, err
		}
	}
	return nil, protocol.ErrUnknownFrame
}

func (h *frameRecorder) received() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.frames...)
}

func TestTCPServerRepliesOnSameConnection(t *testing.T) {
	handler := &frameRecorder{reply: []byte("(P69,0,1)")}
	srv := NewTCPServer("127.0.0.1:0", time.Minute, handler, zap.NewNop())
	require.NoError(t, srv.Start())
	defer srv.Stop()

	conn, err := net.Dial("tcp", srv.Addr().String())
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Write([]byte("$frame-one"))
	require.NoError(t, err)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	reply := make([]byte, 9)
	_, err = bufio.NewReader(conn).Read(reply)
	require.NoError(t, err)
	assert.Equal(t, "(P69,0,1)", string(reply))

	// a failed frame leaves the connection open
	_, err = conn.Write([]byte("~frame-two"))
	require.NoError(t, err)
	assert.Eventually(t, func() bool { return len(handler.received()) == 2 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{"$frame-one", "~frame-two"}, handler.received())
}

func TestTCPServerStopClosesConnections(t *testing.T) {
	srv := NewTCPServer("127.0.0.1:0", 0, &frameRecorder{}, zap.NewNop())
	require.NoError(t, srv.Start())

	conn, err := net.Dial("tcp", srv.Addr().String())
	require.NoError(t, err)
	defer conn.Close()

	done := make(chan struct{})
	go func() {
		srv.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("Stop did not return")
	}

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, err = conn.Read(make([]byte, 1))
	assert.Error(t, err)
}

func TestTCPServerIdleTimeout(t *testing.T) {
	srv := NewTCPServer("127.0.0.1:0", 50*time.Millisecond, &frameRecorder{}, zap.NewNop())
	require.NoError(t, srv.Start())
	defer srv.Stop()

	conn, err := net.Dial("tcp", srv.Addr().String())
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, err = conn.Read(make([]byte, 1))
	assert.Error(t, err)
}
