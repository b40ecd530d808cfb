package im

import (
	"github.com/chip-node/matter-core/pkg/datamodel"
	"github.com/chip-node/matter-core/pkg/exchange"
	"github.com/chip-node/matter-core/pkg/fabric"
)

// Subject describes the identity making an IM request.
// It replaces the corpus's separate pkg/acl.SubjectDescriptor: with ACL
// evaluation itself out of scope (the caller is assumed to have already
// validated access), the IM layer only needs enough identity to build a
// datamodel.SubjectDescriptor for fabric-scoped reads and data-version
// bookkeeping.
type Subject struct {
	// FabricIndex identifies the fabric the subject belongs to.
	FabricIndex fabric.FabricIndex

	// NodeID is the operational node ID of the subject.
	NodeID uint64

	// AuthMode indicates how the subject was authenticated.
	AuthMode datamodel.AuthMode

	// IsCommissioning is true during PASE-based commissioning, when implicit
	// Administer privilege is granted.
	IsCommissioning bool
}

// RequestContext provides context for IM operations.
// It wraps the exchange context and the requesting subject's identity.
// This is passed to all handler operations and can be used by clusters.
type RequestContext struct {
	// Exchange is the underlying exchange context.
	// Provides access to session info and message sending.
	Exchange *exchange.ExchangeContext

	// Subject describes the identity making the request.
	Subject Subject
}

// NewRequestContext creates a new request context.
func NewRequestContext(exchCtx *exchange.ExchangeContext, subject Subject) *RequestContext {
	return &RequestContext{
		Exchange: exchCtx,
		Subject:  subject,
	}
}

// FabricIndex returns the accessing fabric index.
func (c *RequestContext) FabricIndex() fabric.FabricIndex {
	return c.Subject.FabricIndex
}

// SourceNodeID returns the requesting node's ID.
func (c *RequestContext) SourceNodeID() uint64 {
	return c.Subject.NodeID
}

// IsCommissioning returns true if this is during PASE commissioning.
func (c *RequestContext) IsCommissioning() bool {
	return c.Subject.IsCommissioning
}

// AuthMode returns the authentication mode of the session.
func (c *RequestContext) AuthMode() datamodel.AuthMode {
	return c.Subject.AuthMode
}

// ToDataModelSubject converts the IM subject to a datamodel.SubjectDescriptor.
func (s Subject) ToDataModelSubject() *datamodel.SubjectDescriptor {
	return &datamodel.SubjectDescriptor{
		FabricIndex: s.FabricIndex,
		NodeID:      s.NodeID,
		AuthMode:    s.AuthMode,
	}
}
