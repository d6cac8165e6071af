package network

import (
	"context"
	"errors"
	"net"
	"sync"
	"time"

	"github.com/annel0/archipelo-server/internal/protocol"
)

type fakeConn struct {
	id     string
	remote net.Addr
	local  net.Addr

	mu      sync.Mutex
	sent    [][]byte
	closed  bool
	sendErr error
}

func newFakeConn(id, remote string) *fakeConn {
	r, _ := net.ResolveTCPAddr("tcp", remote)
	l, _ := net.ResolveTCPAddr("tcp", "10.0.0.1:8443")
	return &fakeConn{id: id, remote: r, local: l}
}

func (c *fakeConn) ID() string           { return c.id }
func (c *fakeConn) Transport() string    { return "fake" }
func (c *fakeConn) RemoteAddr() net.Addr { return c.remote }
func (c *fakeConn) LocalAddr() net.Addr  { return c.local }

func (c *fakeConn) Send(frame []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrConnClosed
	}
	if c.sendErr != nil {
		return c.sendErr
	}
	c.sent = append(c.sent, frame)
	return nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	return nil
}

func (c *fakeConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *fakeConn) packets(t interface{ Fatalf(string, ...interface{}) }) []protocol.Packet {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := protocol.NewJSONSerializer()
	out := make([]protocol.Packet, 0, len(c.sent))
	for _, frame := range c.sent {
		p, err := s.Decode(frame)
		if err != nil {
			t.Fatalf("не удалось декодировать отправленный кадр: %v", err)
		}
		out = append(out, p)
	}
	return out
}

type fakeAuth struct {
	accounts map[string]string
	err      error
}

func (a *fakeAuth) Authenticate(_ context.Context, email, password string) (string, error) {
	if a.err != nil {
		return "", a.err
	}
	if pw, ok := a.accounts[email]; ok && pw == password {
		return "acc-" + email, nil
	}
	return "", ErrBadCredentials
}

type recordingListener struct {
	mu  sync.Mutex
	in  []string
	out []string
}

func (l *recordingListener) PlayerLoggedIn(s *Session) {
	l.mu.Lock()
	defer l.mu.Unlock()
	account, _ := s.Account()
	l.in = append(l.in, account)
}

func (l *recordingListener) PlayerLoggedOut(s *Session) {
	l.mu.Lock()
	defer l.mu.Unlock()
	account, _ := s.Account()
	l.out = append(l.out, account)
}

func (l *recordingListener) loggedOut() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.out...)
}

// failingSerializer не умеет кодировать ничего.
type failingSerializer struct{ protocol.Serializer }

func (failingSerializer) Encode(protocol.Packet) ([]byte, error) {
	return nil, errors.New("encode failed")
}

// emptySerializer возвращает пустой кадр без ошибки.
type emptySerializer struct{ protocol.Serializer }

func (emptySerializer) Encode(protocol.Packet) ([]byte, error) { return nil, nil }

var t0 = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
