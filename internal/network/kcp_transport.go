package network

import (
	"context"
	"crypto/sha1"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/xtaci/kcp-go/v5"
	"golang.org/x/crypto/pbkdf2"

	"github.com/annel0/archipelo-server/internal/logging"
)

const (
	kcpDataShards   = 10
	kcpParityShards = 3
	kcpIdleTimeout  = 60 * time.Second
)

// KCPConfig параметры KCP-транспорта. Key и Salt задают общий AES-ключ.
type KCPConfig struct {
	Addr       string
	Key        string
	Salt       string
	SendBuffer int
}

// KCPTransport принимает зашифрованные KCP-сессии поверх UDP.
type KCPTransport struct {
	cfg     KCPConfig
	handler TransportHandler
	logger  *logging.Logger

	listener *kcp.Listener
	ctx      context.Context
	cancel   context.CancelFunc

	mu    sync.Mutex
	conns map[string]*kcpConn
	wg    sync.WaitGroup
}

// NewKCPTransport создаёт транспорт.
func NewKCPTransport(cfg KCPConfig, handler TransportHandler, logger *logging.Logger) *KCPTransport {
	if logger == nil {
		logger = logging.GetNetworkLogger()
	}
	return &KCPTransport{
		cfg:     cfg,
		handler: handler,
		logger:  logger,
		conns:   make(map[string]*kcpConn),
	}
}

func (t *KCPTransport) Name() string { return "kcp" }

// NewBlockCrypt выводит AES-256 ключ из пароля и соли.
func NewBlockCrypt(key, salt string) (kcp.BlockCrypt, error) {
	if key == "" {
		return nil, errors.New("KCP ключ не задан")
	}
	pass := pbkdf2.Key([]byte(key), []byte(salt), 4096, 32, sha1.New)
	return kcp.NewAESBlockCrypt(pass)
}

// ConfigureSession применяет игровые настройки KCP к сессии.
func ConfigureSession(s *kcp.UDPSession) {
	s.SetStreamMode(true)
	s.SetWriteDelay(false)
	s.SetNoDelay(1, 20, 2, 1)
	s.SetWindowSize(512, 512)
	s.SetMtu(1400)
	s.SetACKNoDelay(true)
}

func (t *KCPTransport) Start(ctx context.Context) error {
	block, err := NewBlockCrypt(t.cfg.Key, t.cfg.Salt)
	if err != nil {
		return err
	}
	listener, err := kcp.ListenWithOptions(t.cfg.Addr, block, kcpDataShards, kcpParityShards)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", t.cfg.Addr, err)
	}
	t.listener = listener
	t.ctx, t.cancel = context.WithCancel(ctx)

	t.wg.Add(1)
	go t.acceptLoop()

	t.logger.Info("🚀 KCP транспорт слушает %s", listener.Addr())
	return nil
}

func (t *KCPTransport) Addr() net.Addr {
	if t.listener == nil {
		return nil
	}
	return t.listener.Addr()
}

func (t *KCPTransport) Stop(ctx context.Context) error {
	if t.cancel != nil {
		t.cancel()
	}
	var err error
	if t.listener != nil {
		err = t.listener.Close()
	}

	t.mu.Lock()
	for _, c := range t.conns {
		c.Close()
	}
	t.mu.Unlock()

	done := make(chan struct{})
	go func() {
		t.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}
	return err
}

func (t *KCPTransport) acceptLoop() {
	defer t.wg.Done()

	for {
		session, err := t.listener.AcceptKCP()
		if err != nil {
			select {
			case <-t.ctx.Done():
				return
			default:
			}
			t.logger.Error("Ошибка приёма KCP соединения: %v", err)
			return
		}
		ConfigureSession(session)

		t.wg.Add(1)
		go t.handleSession(session)
	}
}

func (t *KCPTransport) handleSession(session *kcp.UDPSession) {
	defer t.wg.Done()

	c := newKCPConn(session, t.cfg.SendBuffer, t.logger)
	t.mu.Lock()
	t.conns[c.ID()] = c
	t.mu.Unlock()

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

type kcpConn struct {
	*bufferedConn
	session *kcp.UDPSession
}

func newKCPConn(session *kcp.UDPSession, sendBuffer int, logger *logging.Logger) *kcpConn {
	c := &kcpConn{
		bufferedConn: newBufferedConn("kcp", session.RemoteAddr(), session.LocalAddr(), sendBuffer, logger),
		session:      session,
	}
	c.write = func(frame []byte) error { return WriteFrame(session, frame) }
	c.closeFn = session.Close
	return c
}

func (c *kcpConn) readLoop(onFrame func([]byte)) error {
	for {
		c.session.SetReadDeadline(time.Now().Add(kcpIdleTimeout))
		frame, err := ReadFrame(c.session)
		if err != nil {
			select {
			case <-c.ctx.Done():
				return nil
			default:
			}
			return err
		}
		onFrame(frame)
	}
}
