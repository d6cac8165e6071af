package network

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/annel0/archipelo-server/internal/logging"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = 30 * time.Second
)

// WSConfig параметры WebSocket-транспорта.
type WSConfig struct {
	Addr     string
	Path     string
	CertFile string
	KeyFile  string
	// TLS имеет приоритет над CertFile/KeyFile.
	TLS        *tls.Config
	SendBuffer int
}

// WSTransport принимает WebSocket-соединения поверх TLS.
type WSTransport struct {
	cfg      WSConfig
	handler  TransportHandler
	logger   *logging.Logger
	upgrader websocket.Upgrader

	server   *http.Server
	listener net.Listener

	mu    sync.Mutex
	conns map[string]*wsConn
	wg    sync.WaitGroup
}

// NewWSTransport создаёт транспорт; соединения обслуживает handler.
func NewWSTransport(cfg WSConfig, handler TransportHandler, logger *logging.Logger) *WSTransport {
	if cfg.Path == "" {
		cfg.Path = "/ws"
	}
	if logger == nil {
		logger = logging.GetNetworkLogger()
	}
	return &WSTransport{
		cfg:     cfg,
		handler: handler,
		logger:  logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		conns: make(map[string]*wsConn),
	}
}

func (t *WSTransport) Name() string { return "wss" }

// Handler возвращает HTTP-обработчик апгрейда; удобно для httptest.
func (t *WSTransport) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(t.cfg.Path, t.serveWS)
	return mux
}

func (t *WSTransport) tlsConfig() (*tls.Config, error) {
	if t.cfg.TLS != nil {
		return t.cfg.TLS, nil
	}
	if t.cfg.CertFile == "" || t.cfg.KeyFile == "" {
		return nil, errors.New("TLS не настроен: нужны сертификат и ключ")
	}
	cert, err := tls.LoadX509KeyPair(t.cfg.CertFile, t.cfg.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load TLS key pair: %w", err)
	}
	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
	}, nil
}

// Start начинает приём соединений. Без TLS транспорт не запускается.
func (t *WSTransport) Start(ctx context.Context) error {
	tlsCfg, err := t.tlsConfig()
	if err != nil {
		return err
	}
	ln, err := net.Listen("tcp", t.cfg.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", t.cfg.Addr, err)
	}
	t.listener = tls.NewListener(ln, tlsCfg)
	t.server = &http.Server{
		Handler:           t.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		if err := t.server.Serve(t.listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			t.logger.Error("WSS сервер остановлен с ошибкой: %v", err)
		}
	}()

	t.logger.Info("🚀 WSS транспорт слушает %s%s", ln.Addr(), t.cfg.Path)
	return nil
}

func (t *WSTransport) Addr() net.Addr {
	if t.listener == nil {
		return nil
	}
	return t.listener.Addr()
}

// Stop закрывает сервер и все активные соединения.
func (t *WSTransport) Stop(ctx context.Context) error {
	var err error
	if t.server != nil {
		err = t.server.Shutdown(ctx)
	}

	t.mu.Lock()
	conns := make([]*wsConn, 0, len(t.conns))
	for _, c := range t.conns {
		conns = append(conns, c)
	}
	t.mu.Unlock()
	for _, c := range conns {
		c.Close()
	}

	t.wg.Wait()
	return err
}

func (t *WSTransport) serveWS(w http.ResponseWriter, r *http.Request) {
	ws, err := t.upgrader.Upgrade(w, r, nil)
	if err != nil {
		t.logger.Warn("Upgrade не удался для %s: %v", r.RemoteAddr, err)
		return
	}

	c := newWSConn(ws, t.cfg.SendBuffer, t.logger)
	t.mu.Lock()
	t.conns[c.ID()] = c
	t.mu.Unlock()

	t.wg.Add(1)
	defer t.wg.Done()

	c.start()
	t.handler.OnOpen(c)
	readErr := c.readLoop(func(frame []byte) { t.handler.OnFrame(c, frame) })
	c.Close()
	c.wait()

	t.mu.Lock()
	delete(t.conns, c.ID())
	t.mu.Unlock()
	t.handler.OnClose(c, readErr)
}

type wsConn struct {
	*bufferedConn
	ws *websocket.Conn
}

func newWSConn(ws *websocket.Conn, sendBuffer int, logger *logging.Logger) *wsConn {
	c := &wsConn{
		bufferedConn: newBufferedConn("wss", ws.RemoteAddr(), ws.LocalAddr(), sendBuffer, logger),
		ws:           ws,
	}
	c.write = c.writeFrame
	c.closeFn = c.closeSocket
	return c
}

func (c *wsConn) start() {
	c.bufferedConn.start()
	c.wg.Add(1)
	go c.pingLoop()
}

func (c *wsConn) writeFrame(frame []byte) error {
	c.ws.SetWriteDeadline(time.Now().Add(wsWriteWait))
	return c.ws.WriteMessage(websocket.BinaryMessage, frame)
}

func (c *wsConn) closeSocket() error {
	deadline := time.Now().Add(time.Second)
	c.ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
	return c.ws.Close()
}

func (c *wsConn) pingLoop() {
	defer c.wg.Done()

	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait)); err != nil {
				c.Close()
				return
			}
		case <-c.ctx.Done():
			return
		}
	}
}

// readLoop читает кадры до ошибки. Нормальное закрытие возвращает nil.
func (c *wsConn) readLoop(onFrame func([]byte)) error {
	c.ws.SetReadLimit(MaxFrameSize)
	c.ws.SetReadDeadline(time.Now().Add(wsPongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	for {
		_, frame, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return err
		}
		c.ws.SetReadDeadline(time.Now().Add(wsPongWait))
		onFrame(frame)
	}
}
