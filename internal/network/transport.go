// Package network принимает защищённые соединения клиентов, ведёт сессии
// и раздаёт входящие пакеты обработчикам через очередь.
package network

import (
	"context"
	"errors"
	"net"
)

var (
	// ErrSendBufferFull буфер отправки соединения переполнен.
	ErrSendBufferFull = errors.New("буфер отправки переполнен")
	// ErrConnClosed соединение уже закрыто.
	ErrConnClosed = errors.New("соединение закрыто")
	// ErrFrameTooLarge кадр больше допустимого размера.
	ErrFrameTooLarge = errors.New("кадр слишком большой")
)

// Conn установленное дуплексное соединение с клиентом.
type Conn interface {
	ID() string
	// Transport имя транспорта: "wss" или "kcp".
	Transport() string
	RemoteAddr() net.Addr
	LocalAddr() net.Addr
	// Send ставит кадр в очередь отправки и не блокируется.
	Send(frame []byte) error
	Close() error
}

// TransportHandler получает события транспорта. OnFrame и OnClose для одного
// соединения вызываются из одной горутины; OnClose вызывается ровно один раз.
type TransportHandler interface {
	OnOpen(c Conn)
	OnFrame(c Conn, frame []byte)
	OnClose(c Conn, err error)
}

// Transport сервер, принимающий соединения.
type Transport interface {
	Name() string
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Addr() net.Addr
}
