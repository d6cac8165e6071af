package network

import (
	"context"
	"net"
	"sync"

	"github.com/google/uuid"

	"github.com/annel0/archipelo-server/internal/logging"
)

// DefaultSendBuffer размер буфера отправки по умолчанию, в кадрах.
const DefaultSendBuffer = 256

// bufferedConn общая часть соединений: неблокирующая очередь кадров и
// горутина записи. Транспорт задаёт write и closeFn.
type bufferedConn struct {
	id        string
	transport string
	remote    net.Addr
	local     net.Addr

	write   func(frame []byte) error
	closeFn func() error
	logger  *logging.Logger

	sendBuffer chan []byte
	ctx        context.Context
	cancel     context.CancelFunc
	wg         sync.WaitGroup
	closeOnce  sync.Once
	closeErr   error
}

func newBufferedConn(transport string, remote, local net.Addr, bufferSize int, logger *logging.Logger) *bufferedConn {
	if bufferSize <= 0 {
		bufferSize = DefaultSendBuffer
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &bufferedConn{
		id:         uuid.NewString(),
		transport:  transport,
		remote:     remote,
		local:      local,
		logger:     logger,
		sendBuffer: make(chan []byte, bufferSize),
		ctx:        ctx,
		cancel:     cancel,
	}
}

func (c *bufferedConn) ID() string           { return c.id }
func (c *bufferedConn) Transport() string    { return c.transport }
func (c *bufferedConn) RemoteAddr() net.Addr { return c.remote }
func (c *bufferedConn) LocalAddr() net.Addr  { return c.local }

func (c *bufferedConn) start() {
	c.wg.Add(1)
	go c.sendLoop()
}

func (c *bufferedConn) Send(frame []byte) error {
	select {
	case <-c.ctx.Done():
		return ErrConnClosed
	default:
	}
	select {
	case c.sendBuffer <- frame:
		return nil
	default:
		return ErrSendBufferFull
	}
}

// Close закрывает соединение; повторные вызовы возвращают первый результат.
func (c *bufferedConn) Close() error {
	c.closeOnce.Do(func() {
		c.cancel()
		if c.closeFn != nil {
			c.closeErr = c.closeFn()
		}
	})
	return c.closeErr
}

// wait дожидается завершения горутины записи.
func (c *bufferedConn) wait() { c.wg.Wait() }

func (c *bufferedConn) sendLoop() {
	defer c.wg.Done()

	for {
		select {
		case frame := <-c.sendBuffer:
			if err := c.write(frame); err != nil {
				c.logger.Debug("Ошибка записи в %s: %v", c.remote, err)
				c.Close()
				return
			}
		case <-c.ctx.Done():
			return
		}
	}
}
