package exchange

import (
	"sync"

	"github.com/chip-node/matter-core/pkg/session"
)

// DefaultMaxExchangesPerSession bounds how many concurrent exchanges a
// single session may hold open. Spec 4.10: "Bounded: some small N
// exchanges per session, fail with capacity-exhausted on overflow."
const DefaultMaxExchangesPerSession = 16

type exchangeKey struct {
	id   uint16
	role ExchangeRole
}

// sessionExchanges is the bounded exchange table for a single session.
type sessionExchanges struct {
	mu       sync.Mutex
	byKey    map[exchangeKey]*ExchangeContext
	maxCount int
}

// Manager coordinates exchanges across all sessions known to a node. It
// owns no transport state: delivering decrypted bytes to the right
// exchange, and creating responder exchanges for unsolicited messages, is
// all it is responsible for.
type Manager struct {
	mu              sync.RWMutex
	bySession       map[uint16]*sessionExchanges
	maxPerSession   int
	defaultDelegate ExchangeDelegate
}

// ManagerConfig configures a new exchange Manager.
type ManagerConfig struct {
	// MaxExchangesPerSession bounds the exchange table of each session.
	// Zero selects DefaultMaxExchangesPerSession.
	MaxExchangesPerSession int

	// DefaultDelegate handles unsolicited exchanges that are not bound
	// to a more specific delegate at creation time.
	DefaultDelegate ExchangeDelegate
}

// NewManager creates an empty exchange manager.
func NewManager(config ManagerConfig) *Manager {
	max := config.MaxExchangesPerSession
	if max <= 0 {
		max = DefaultMaxExchangesPerSession
	}
	return &Manager{
		bySession:       make(map[uint16]*sessionExchanges),
		maxPerSession:   max,
		defaultDelegate: config.DefaultDelegate,
	}
}

func (m *Manager) tableFor(localSessionID uint16) *sessionExchanges {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.bySession[localSessionID]
	if !ok {
		t = &sessionExchanges{
			byKey:    make(map[exchangeKey]*ExchangeContext),
			maxCount: m.maxPerSession,
		}
		m.bySession[localSessionID] = t
	}
	return t
}

// NewExchange allocates a locally-initiated exchange on sess, bound to
// delegate. Returns ErrExchangeTableFull if the session's exchange table
// is already at capacity.
func (m *Manager) NewExchange(sess *session.SecureContext, id uint16, delegate ExchangeDelegate) (*ExchangeContext, error) {
	t := m.tableFor(sess.LocalSessionID())

	t.mu.Lock()
	defer t.mu.Unlock()

	key := exchangeKey{id: id, role: ExchangeRoleInitiator}
	if _, exists := t.byKey[key]; exists {
		return nil, ErrExchangeExists
	}
	if len(t.byKey) >= t.maxCount {
		return nil, ErrExchangeTableFull
	}

	ctx, err := NewExchangeContext(ExchangeContextConfig{
		ID:       id,
		Role:     ExchangeRoleInitiator,
		Session:  sess,
		Delegate: delegate,
	})
	if err != nil {
		return nil, err
	}
	t.byKey[key] = ctx
	return ctx, nil
}

// Dispatch routes a decrypted message to the exchange identified by
// (sess, id, initiatorFlag). If initiatorFlag is set the message opens (or
// continues) an exchange this node did not initiate; a responder exchange
// is created on first sight, bound to delegate (or the manager's default
// delegate if delegate is nil).
func (m *Manager) Dispatch(sess *session.SecureContext, id uint16, initiatorFlag bool, opcode uint8, payload []byte, delegate ExchangeDelegate) ([]byte, error) {
	ctx, err := m.findOrCreate(sess, id, initiatorFlag, delegate)
	if err != nil {
		return nil, err
	}
	if !ctx.State().CanReceive() {
		return nil, ErrExchangeClosed
	}
	return ctx.HandleMessage(opcode, payload)
}

func (m *Manager) findOrCreate(sess *session.SecureContext, id uint16, initiatorFlag bool, delegate ExchangeDelegate) (*ExchangeContext, error) {
	t := m.tableFor(sess.LocalSessionID())

	// The peer's I flag tells us which role THEY are playing; our local
	// key tracks OUR role, which is the inverse.
	var ourRole ExchangeRole
	if initiatorFlag {
		ourRole = ExchangeRoleResponder
	} else {
		ourRole = ExchangeRoleInitiator
	}
	key := exchangeKey{id: id, role: ourRole}

	t.mu.Lock()
	defer t.mu.Unlock()

	if ctx, ok := t.byKey[key]; ok {
		return ctx, nil
	}

	if !initiatorFlag {
		return nil, ErrExchangeNotFound
	}

	if len(t.byKey) >= t.maxCount {
		return nil, ErrExchangeTableFull
	}

	if delegate == nil {
		delegate = m.defaultDelegate
	}

	ctx, err := NewExchangeContext(ExchangeContextConfig{
		ID:       id,
		Role:     ourRole,
		Session:  sess,
		Delegate: delegate,
	})
	if err != nil {
		return nil, err
	}
	t.byKey[key] = ctx
	return ctx, nil
}

// Close closes and removes an exchange from its session's table.
func (m *Manager) Close(sess *session.SecureContext, id uint16, role ExchangeRole) {
	m.mu.RLock()
	t, ok := m.bySession[sess.LocalSessionID()]
	m.mu.RUnlock()
	if !ok {
		return
	}

	t.mu.Lock()
	key := exchangeKey{id: id, role: role}
	ctx, ok := t.byKey[key]
	if ok {
		delete(t.byKey, key)
	}
	t.mu.Unlock()

	if ok {
		ctx.Close()
	}
}

// RemoveSession closes and discards every exchange held open on
// localSessionID, for example once the underlying session has been torn
// down.
func (m *Manager) RemoveSession(localSessionID uint16) {
	m.mu.Lock()
	t, ok := m.bySession[localSessionID]
	delete(m.bySession, localSessionID)
	m.mu.Unlock()
	if !ok {
		return
	}

	t.mu.Lock()
	exchanges := make([]*ExchangeContext, 0, len(t.byKey))
	for _, ctx := range t.byKey {
		exchanges = append(exchanges, ctx)
	}
	t.byKey = make(map[exchangeKey]*ExchangeContext)
	t.mu.Unlock()

	for _, ctx := range exchanges {
		ctx.Close()
	}
}

// ExchangeCount returns the number of open exchanges for a session.
func (m *Manager) ExchangeCount(localSessionID uint16) int {
	m.mu.RLock()
	t, ok := m.bySession[localSessionID]
	m.mu.RUnlock()
	if !ok {
		return 0
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.byKey)
}

// IsSessionTableFull returns true if the session's exchange table is at
// capacity.
func (m *Manager) IsSessionTableFull(localSessionID uint16) bool {
	m.mu.RLock()
	t, ok := m.bySession[localSessionID]
	m.mu.RUnlock()
	if !ok {
		return false
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.byKey) >= t.maxCount
}
