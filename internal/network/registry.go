package network

import (
	"net"
	"sort"
	"sync"
	"time"
)

// SessionKey ключ сессии: удалённый адрес, локальный адрес и удалённый порт.
// Не зависит от объекта соединения.
type SessionKey string

// MakeSessionKey строит ключ по адресам соединения.
func MakeSessionKey(remote, local net.Addr) SessionKey {
	remoteHost, remotePort := splitAddr(remote)
	localHost, _ := splitAddr(local)
	return SessionKey(remoteHost + ";" + localHost + ";" + remotePort)
}

func splitAddr(addr net.Addr) (host, port string) {
	if addr == nil {
		return "", ""
	}
	host, port, err := net.SplitHostPort(addr.String())
	if err != nil {
		return addr.String(), ""
	}
	return host, port
}

// Session серверная запись о соединении.
type Session struct {
	Key      SessionKey
	Conn     Conn
	OpenedAt time.Time

	mu            sync.RWMutex
	account       string
	authenticated bool
}

// Account возвращает учётную запись и признак входа.
func (s *Session) Account() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.account, s.authenticated
}

func (s *Session) IsAuthenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.authenticated
}

// SessionInfo копия состояния сессии для отчётов.
type SessionInfo struct {
	Key           SessionKey `json:"key"`
	RemoteAddr    string     `json:"remote_addr"`
	Account       string     `json:"account,omitempty"`
	Authenticated bool       `json:"authenticated"`
	OpenedAt      time.Time  `json:"opened_at"`
}

// ConnectionRegistry сессии по ключу. Пишется из сетевых горутин,
// читается из потока симуляции.
type ConnectionRegistry struct {
	mu        sync.RWMutex
	sessions  map[SessionKey]*Session
	byAccount map[string]SessionKey
}

func NewConnectionRegistry() *ConnectionRegistry {
	return &ConnectionRegistry{
		sessions:  make(map[SessionKey]*Session),
		byAccount: make(map[string]SessionKey),
	}
}

// Open создаёт сессию для соединения. Старая сессия с тем же ключом вытесняется
// и возвращается вторым значением.
func (r *ConnectionRegistry) Open(c Conn, now time.Time) (*Session, *Session) {
	s := &Session{
		Key:      MakeSessionKey(c.RemoteAddr(), c.LocalAddr()),
		Conn:     c,
		OpenedAt: now,
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	old := r.sessions[s.Key]
	if old != nil {
		r.dropAccountLocked(old)
	}
	r.sessions[s.Key] = s
	return s, old
}

// Get возвращает сессию по ключу.
func (r *ConnectionRegistry) Get(key SessionKey) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[key]
	return s, ok
}

// ByAccount возвращает сессию вошедшего игрока.
func (r *ConnectionRegistry) ByAccount(account string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	key, ok := r.byAccount[account]
	if !ok {
		return nil, false
	}
	s, ok := r.sessions[key]
	return s, ok
}

// Authenticate отмечает сессию вошедшей. false, если сессии нет, она уже вошла
// или учётная запись занята другой сессией.
func (r *ConnectionRegistry) Authenticate(key SessionKey, account string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[key]
	if !ok {
		return false
	}
	if other, taken := r.byAccount[account]; taken && other != key {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.authenticated {
		return false
	}
	s.account = account
	s.authenticated = true
	r.byAccount[account] = key
	return true
}

// Remove удаляет сессию, если она всё ещё принадлежит соединению c
// (c == nil удаляет без проверки).
func (r *ConnectionRegistry) Remove(key SessionKey, c Conn) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[key]
	if !ok {
		return nil, false
	}
	if c != nil && s.Conn != nil && s.Conn.ID() != c.ID() {
		return nil, false
	}
	delete(r.sessions, key)
	r.dropAccountLocked(s)
	return s, true
}

func (r *ConnectionRegistry) dropAccountLocked(s *Session) {
	account, authenticated := s.Account()
	if authenticated && r.byAccount[account] == s.Key {
		delete(r.byAccount, account)
	}
}

// All возвращает все сессии.
func (r *ConnectionRegistry) All() []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s)
	}
	return out
}

// List возвращает сведения о сессиях, отсортированные по ключу.
func (r *ConnectionRegistry) List() []SessionInfo {
	sessions := r.All()
	out := make([]SessionInfo, 0, len(sessions))
	for _, s := range sessions {
		account, authenticated := s.Account()
		info := SessionInfo{
			Key:           s.Key,
			Account:       account,
			Authenticated: authenticated,
			OpenedAt:      s.OpenedAt,
		}
		if s.Conn != nil && s.Conn.RemoteAddr() != nil {
			info.RemoteAddr = s.Conn.RemoteAddr().String()
		}
		out = append(out, info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

func (r *ConnectionRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

func (r *ConnectionRegistry) AuthenticatedCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byAccount)
}
