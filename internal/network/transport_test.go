package network

import (
	"bytes"
	"context"
	"crypto/tls"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xtaci/kcp-go/v5"

	"github.com/annel0/archipelo-server/internal/logging"
)

func TestFraming(t *testing.T) {
	t.Run("Round trip", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, WriteFrame(&buf, []byte("hello")))
		require.NoError(t, WriteFrame(&buf, nil))

		first, err := ReadFrame(&buf)
		require.NoError(t, err)
		assert.Equal(t, []byte("hello"), first)

		second, err := ReadFrame(&buf)
		require.NoError(t, err)
		assert.Empty(t, second)
	})

	t.Run("Oversized frame header", func(t *testing.T) {
		buf := bytes.NewReader([]byte{0xff, 0xff, 0xff, 0x7f})
		_, err := ReadFrame(buf)
		assert.ErrorIs(t, err, ErrFrameTooLarge)
	})

	t.Run("Oversized frame write", func(t *testing.T) {
		var buf bytes.Buffer
		err := WriteFrame(&buf, make([]byte, MaxFrameSize+1))
		assert.ErrorIs(t, err, ErrFrameTooLarge)
		assert.Zero(t, buf.Len())
	})
}

// echoHandler отвечает на каждый кадр тем же кадром.
type echoHandler struct {
	mu     sync.Mutex
	opened int
	closed chan struct{}
}

func newEchoHandler() *echoHandler { return &echoHandler{closed: make(chan struct{}, 4)} }

func (h *echoHandler) OnOpen(Conn) {
	h.mu.Lock()
	h.opened++
	h.mu.Unlock()
}

func (h *echoHandler) OnFrame(c Conn, frame []byte) { c.Send(frame) }
func (h *echoHandler) OnClose(Conn, error)          { h.closed <- struct{}{} }

func TestWSTransport(t *testing.T) {
	logger, _ := logging.NewObservedLogger("network")
	h := newEchoHandler()
	tr := NewWSTransport(WSConfig{}, h, logger)

	srv := httptest.NewTLSServer(tr.Handler())
	t.Cleanup(srv.Close)

	dialer := websocket.Dialer{TLSClientConfig: &tls.Config{InsecureSkipVerify: true}}
	url := "wss" + strings.TrimPrefix(srv.URL, "https") + "/ws"
	conn, resp, err := dialer.Dial(url, nil)
	require.NoError(t, err)
	if resp != nil {
		resp.Body.Close()
	}

	require.NoError(t, conn.WriteMessage(websocket.BinaryMessage, []byte("ping")))
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, []byte("ping"), data)

	conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	conn.Close()

	select {
	case <-h.closed:
	case <-time.After(5 * time.Second):
		t.Fatal("OnClose не вызван")
	}
	h.mu.Lock()
	assert.Equal(t, 1, h.opened)
	h.mu.Unlock()
}

func TestWSTransportRequiresTLS(t *testing.T) {
	logger, _ := logging.NewObservedLogger("network")
	tr := NewWSTransport(WSConfig{Addr: "127.0.0.1:0"}, newEchoHandler(), logger)
	assert.Error(t, tr.Start(context.Background()))
}

func TestKCPTransport(t *testing.T) {
	logger, _ := logging.NewObservedLogger("network")
	h := newEchoHandler()
	tr := NewKCPTransport(KCPConfig{Addr: "127.0.0.1:0", Key: "test-key", Salt: "test-salt"}, h, logger)
	require.NoError(t, tr.Start(context.Background()))
	t.Cleanup(func() { tr.Stop(context.Background()) })

	block, err := NewBlockCrypt("test-key", "test-salt")
	require.NoError(t, err)
	sess, err := kcp.DialWithOptions(tr.Addr().String(), block, kcpDataShards, kcpParityShards)
	require.NoError(t, err)
	ConfigureSession(sess)
	defer sess.Close()

	require.NoError(t, WriteFrame(sess, []byte("hello kcp")))
	sess.SetReadDeadline(time.Now().Add(5 * time.Second))
	frame, err := ReadFrame(sess)
	require.NoError(t, err)
	assert.Equal(t, []byte("hello kcp"), frame)
}

func TestNewBlockCryptRequiresKey(t *testing.T) {
	_, err := NewBlockCrypt("", "salt")
	assert.Error(t, err)
}

func TestBufferedConnSendBufferFull(t *testing.T) {
	logger, _ := logging.NewObservedLogger("network")
	c := newBufferedConn("test", nil, nil, 1, logger)
	c.write = func([]byte) error { return nil }

	require.NoError(t, c.Send([]byte("a")))
	assert.ErrorIs(t, c.Send([]byte("b")), ErrSendBufferFull)

	c.Close()
	assert.ErrorIs(t, c.Send([]byte("c")), ErrConnClosed)
}
