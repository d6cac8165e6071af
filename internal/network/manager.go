package network

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/annel0/archipelo-server/internal/logging"
	"github.com/annel0/archipelo-server/internal/protocol"
)

var tracer = otel.Tracer("github.com/annel0/archipelo-server/internal/network")

// ErrBadCredentials неверные email или пароль.
var ErrBadCredentials = errors.New("неверные учётные данные")

// Authenticator проверяет учётные данные и возвращает имя учётной записи.
type Authenticator interface {
	Authenticate(ctx context.Context, email, password string) (string, error)
}

// SessionListener узнаёт о входе и выходе игроков. Вызывается из сетевых горутин.
type SessionListener interface {
	PlayerLoggedIn(s *Session)
	PlayerLoggedOut(s *Session)
}

// ManagerConfig параметры NetworkManager.
type ManagerConfig struct {
	// Version версия протокола сервера; клиент обязан прислать ту же.
	Version      string
	LoginTimeout time.Duration
}

// NetworkManager обрабатывает события транспортов: ведёт сессии, выполняет
// вход и складывает игровые пакеты в очередь.
type NetworkManager struct {
	cfg        ManagerConfig
	registry   *ConnectionRegistry
	queue      *PacketQueue
	serializer protocol.Serializer
	auth       Authenticator
	logger     *logging.Logger
	metrics    *Metrics
	now        func() time.Time

	listenerMu sync.RWMutex
	listeners  []SessionListener
}

// NewNetworkManager создаёт менеджер. metrics может быть nil.
func NewNetworkManager(cfg ManagerConfig, serializer protocol.Serializer, auth Authenticator,
	logger *logging.Logger, metrics *Metrics) *NetworkManager {
	if logger == nil {
		logger = logging.GetNetworkLogger()
	}
	if metrics == nil {
		metrics = NewMetrics(nil)
	}
	if cfg.LoginTimeout <= 0 {
		cfg.LoginTimeout = 5 * time.Second
	}
	return &NetworkManager{
		cfg:        cfg,
		registry:   NewConnectionRegistry(),
		queue:      NewPacketQueue(metrics),
		serializer: serializer,
		auth:       auth,
		logger:     logger,
		metrics:    metrics,
		now:        time.Now,
	}
}

// SetClock подменяет источник времени.
func (m *NetworkManager) SetClock(now func() time.Time) { m.now = now }

func (m *NetworkManager) Registry() *ConnectionRegistry { return m.registry }
func (m *NetworkManager) Queue() *PacketQueue           { return m.queue }
func (m *NetworkManager) Version() string               { return m.cfg.Version }

// AddListener подписывает слушателя входа и выхода.
func (m *NetworkManager) AddListener(l SessionListener) {
	m.listenerMu.Lock()
	m.listeners = append(m.listeners, l)
	m.listenerMu.Unlock()
}

func (m *NetworkManager) snapshotListeners() []SessionListener {
	m.listenerMu.RLock()
	defer m.listenerMu.RUnlock()
	return append([]SessionListener(nil), m.listeners...)
}

// Update прогоняет очередь пакетов; вызывается из потока симуляции.
func (m *NetworkManager) Update(now time.Time) int {
	return m.queue.Update(now)
}

func (m *NetworkManager) OnOpen(c Conn) {
	s, old := m.registry.Open(c, m.now())
	if old != nil {
		m.logger.Caution("Сессия %s вытеснена новым соединением", s.Key)
		m.logout(old)
	}
	m.metrics.connections.Inc()
	m.metrics.connectionsOpen.WithLabelValues(c.Transport()).Inc()
	m.logger.Debug("🔗 Соединение %s (%s) открыто, сессия %s", c.ID(), c.Transport(), s.Key)
}

func (m *NetworkManager) OnClose(c Conn, err error) {
	m.metrics.connections.Dec()
	if err != nil {
		m.logger.Debug("Соединение %s закрыто с ошибкой: %v", c.ID(), err)
	}
	key := MakeSessionKey(c.RemoteAddr(), c.LocalAddr())
	if s, ok := m.registry.Remove(key, c); ok {
		m.logout(s)
	}
}

func (m *NetworkManager) OnFrame(c Conn, frame []byte) {
	p, err := m.serializer.Decode(frame)
	if err != nil {
		logging.LogProtocolError(m.logger, c.ID(), err, frame)
		m.metrics.dropped.WithLabelValues("decode").Inc()
		c.Close()
		return
	}
	m.metrics.packetsIn.WithLabelValues(p.PacketType().String()).Inc()

	key := MakeSessionKey(c.RemoteAddr(), c.LocalAddr())
	s, ok := m.registry.Get(key)
	if !ok || s.Conn.ID() != c.ID() {
		m.metrics.dropped.WithLabelValues("no_session").Inc()
		return
	}

	switch pkt := p.(type) {
	case *protocol.Login:
		m.handleLogin(s, pkt)
	case *protocol.Logout:
		if removed, ok := m.registry.Remove(s.Key, c); ok {
			m.logout(removed)
		}
		c.Close()
	default:
		account, authenticated := s.Account()
		if !authenticated {
			m.metrics.dropped.WithLabelValues("unauthenticated").Inc()
			return
		}
		m.queue.Push(&QueuedPacket{
			Packet:  p,
			From:    s.Key,
			Account: account,
			Arrival: m.now(),
		})
	}
}

func (m *NetworkManager) handleLogin(s *Session, p *protocol.Login) {
	if p.Email == "" || p.Password == "" || p.Version == "" {
		m.metrics.dropped.WithLabelValues("incomplete_login").Inc()
		return
	}
	if p.Version != m.cfg.Version {
		m.logger.Caution("Клиент %s с версией %s, ожидается %s", s.Key, p.Version, m.cfg.Version)
		m.metrics.logins.WithLabelValues(protocol.LoginBadVersion.String()).Inc()
		m.Send(s, &protocol.Login{Version: m.cfg.Version, Result: protocol.LoginBadVersion})
		return
	}
	if s.IsAuthenticated() {
		m.logger.Caution("Повторный вход в сессии %s проигнорирован", s.Key)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), m.cfg.LoginTimeout)
	defer cancel()
	ctx, span := tracer.Start(ctx, "network.login")
	defer span.End()
	span.SetAttributes(attribute.String("session", string(s.Key)))

	account, err := m.authenticate(ctx, p.Email, p.Password)
	if err == nil && !m.registry.Authenticate(s.Key, account) {
		err = errors.New("учётная запись уже в игре")
	}
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		m.logger.Caution("Вход %s отклонён: %v", p.Email, err)
		m.metrics.logins.WithLabelValues(protocol.LoginBadCredentials.String()).Inc()
		m.Send(s, &protocol.Login{Email: p.Email, Version: m.cfg.Version, Result: protocol.LoginBadCredentials})
		return
	}

	m.metrics.logins.WithLabelValues(protocol.LoginOK.String()).Inc()
	m.logger.Info("✅ %s вошёл как %s", s.Key, account)
	m.Send(s, &protocol.Login{Email: p.Email, Version: m.cfg.Version, Result: protocol.LoginOK})
	for _, l := range m.snapshotListeners() {
		l.PlayerLoggedIn(s)
	}
}

func (m *NetworkManager) authenticate(ctx context.Context, email, password string) (string, error) {
	if m.auth == nil {
		return "", ErrBadCredentials
	}
	return m.auth.Authenticate(ctx, email, password)
}

// logout сообщает слушателям о выходе вошедшей сессии и чистит её пакеты.
func (m *NetworkManager) logout(s *Session) {
	m.queue.DropFrom(s.Key)
	account, authenticated := s.Account()
	if !authenticated {
		return
	}
	m.logger.Info("👋 %s вышел", account)
	for _, l := range m.snapshotListeners() {
		l.PlayerLoggedOut(s)
	}
}

// Send сериализует пакет и ставит в очередь отправки сессии. Ошибка
// сериализации отбрасывает пакет, ошибка отправки закрывает соединение.
func (m *NetworkManager) Send(s *Session, p protocol.Packet) {
	if s == nil || s.Conn == nil {
		return
	}
	data := m.encode(p)
	if len(data) == 0 {
		return
	}
	m.sendData(s.Conn, p, data)
}

// SendTo отправляет пакет вошедшему игроку.
func (m *NetworkManager) SendTo(account string, p protocol.Packet) bool {
	s, ok := m.registry.ByAccount(account)
	if !ok {
		return false
	}
	m.Send(s, p)
	return true
}

func (m *NetworkManager) encode(p protocol.Packet) []byte {
	data, err := m.serializer.Encode(p)
	if err != nil {
		m.logger.Caution("Не удалось сериализовать пакет %s: %v", p.PacketType(), err)
		m.metrics.dropped.WithLabelValues("encode").Inc()
		return nil
	}
	return data
}

func (m *NetworkManager) sendData(c Conn, p protocol.Packet, data []byte) {
	if err := c.Send(data); err != nil {
		m.logger.Warn("Отправка в %s не удалась (%v), соединение закрывается", c.ID(), err)
		m.metrics.dropped.WithLabelValues("send").Inc()
		c.Close()
		return
	}
	m.metrics.packetsOut.WithLabelValues(p.PacketType().String()).Inc()
	m.metrics.bytesOut.Add(float64(len(data)))
}

// LogoutAll завершает все сессии; используется при остановке сервера.
func (m *NetworkManager) LogoutAll() {
	for _, s := range m.registry.All() {
		if removed, ok := m.registry.Remove(s.Key, s.Conn); ok {
			m.logout(removed)
			if removed.Conn != nil {
				removed.Conn.Close()
			}
		}
	}
}
