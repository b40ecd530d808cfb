package exchange

import (
	"sync"

	"github.com/chip-node/matter-core/pkg/session"
)

// ExchangeDelegate handles messages delivered on an exchange.
// Implementations are registered by the protocol layer that owns the
// exchange (SecureChannel during handshake, InteractionModel afterwards).
type ExchangeDelegate interface {
	// OnMessage is invoked for each message received on the exchange.
	// opcode is the protocol-defined message type; payload is the
	// decrypted application payload. A non-nil response is sent back
	// on the same exchange.
	OnMessage(ctx *ExchangeContext, opcode uint8, payload []byte) ([]byte, error)

	// OnClose is invoked when the exchange is closed.
	OnClose(ctx *ExchangeContext)
}

// ExchangeContext represents one conversation between two nodes, bound to
// exactly one secure session and identified by {Session, ExchangeID, Role}.
//
// Spec Section 4.10.1. This type deliberately has no notion of retransmission
// or backoff: those belong to the (out-of-scope) MRP transport. It tracks
// only the single piece of MRP-adjacent state the session/exchange model
// itself names: one outstanding acknowledgement counter per exchange.
type ExchangeContext struct {
	id    uint16
	role  ExchangeRole
	state ExchangeState

	session *session.SecureContext

	delegate ExchangeDelegate

	pendingAck    uint32
	hasPendingAck bool

	mu sync.Mutex
}

// ExchangeContextConfig configures a new exchange context.
type ExchangeContextConfig struct {
	ID       uint16
	Role     ExchangeRole
	Session  *session.SecureContext
	Delegate ExchangeDelegate
}

// NewExchangeContext creates a new exchange context in the active state.
func NewExchangeContext(config ExchangeContextConfig) (*ExchangeContext, error) {
	if !config.Role.IsValid() {
		return nil, ErrInvalidRole
	}
	return &ExchangeContext{
		id:       config.ID,
		role:     config.Role,
		state:    ExchangeStateActive,
		session:  config.Session,
		delegate: config.Delegate,
	}, nil
}

// ID returns the exchange identifier, unique within its session and role.
func (c *ExchangeContext) ID() uint16 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.id
}

// Role returns whether this node initiated the exchange.
func (c *ExchangeContext) Role() ExchangeRole {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.role
}

// State returns the current lifecycle state of the exchange.
func (c *ExchangeContext) State() ExchangeState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Session returns the secure session this exchange is bound to.
func (c *ExchangeContext) Session() *session.SecureContext {
	return c.session
}

// IsInitiator returns true if this node allocated the exchange ID.
func (c *ExchangeContext) IsInitiator() bool {
	return c.Role() == ExchangeRoleInitiator
}

// SetDelegate replaces the message handler for this exchange.
func (c *ExchangeContext) SetDelegate(delegate ExchangeDelegate) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.delegate = delegate
}

// GetDelegate returns the current message handler, or nil.
func (c *ExchangeContext) GetDelegate() ExchangeDelegate {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.delegate
}

// AckPending records counter as an outstanding acknowledgement that must be
// piggybacked on (or explicitly flushed with) the next outbound message.
// Per Spec 4.10, only one acknowledgement can be outstanding per exchange.
func (c *ExchangeContext) AckPending(counter uint32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pendingAck = counter
	c.hasPendingAck = true
}

// ClearAck clears the outstanding acknowledgement, typically once it has
// been sent.
func (c *ExchangeContext) ClearAck() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.hasPendingAck = false
}

// PendingAck returns the outstanding acknowledgement counter and whether one
// is pending.
func (c *ExchangeContext) PendingAck() (uint32, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pendingAck, c.hasPendingAck
}

// CanSend returns true if this exchange may still send new messages.
func (c *ExchangeContext) CanSend() bool {
	return c.State().CanSend()
}

// IsClosed returns true if this exchange has been fully closed.
func (c *ExchangeContext) IsClosed() bool {
	return c.State() == ExchangeStateClosed
}

// HandleMessage dispatches an incoming message on this exchange to its
// delegate, returning the delegate's response (if any).
func (c *ExchangeContext) HandleMessage(opcode uint8, payload []byte) ([]byte, error) {
	delegate := c.GetDelegate()
	if delegate == nil {
		return nil, ErrNoHandler
	}
	return delegate.OnMessage(c, opcode, payload)
}

// Close transitions the exchange to closed and notifies its delegate.
// Per Spec 4.10.5.3, closing is immediate here since there is no pending
// retransmission queue to drain.
func (c *ExchangeContext) Close() {
	c.mu.Lock()
	if c.state == ExchangeStateClosed {
		c.mu.Unlock()
		return
	}
	c.state = ExchangeStateClosed
	delegate := c.delegate
	c.mu.Unlock()

	if delegate != nil {
		delegate.OnClose(c)
	}
}
