package im

import (
	"bytes"
	"context"
	"errors"
	"sync"

	"github.com/chip-node/matter-core/pkg/datamodel"
	"github.com/chip-node/matter-core/pkg/exchange"
	"github.com/chip-node/matter-core/pkg/im/message"
	"github.com/chip-node/matter-core/pkg/tlv"
)

// WriteHandler errors.
var (
	ErrWriteHandlerBusy   = errors.New("write handler: busy processing another request")
	ErrWriteTimedMismatch = errors.New("write handler: timed request mismatch")
	ErrWriteListOperation = errors.New("write handler: list operations not supported")
)

// WriteHandlerState represents the handler state machine.
// Spec: 8.7 Write Interaction
type WriteHandlerState int

const (
	WriteHandlerStateIdle WriteHandlerState = iota
	WriteHandlerStateProcessing
	WriteHandlerStateReceivingChunks
	WriteHandlerStateSendingResponse
)

// String returns the state name.
func (s WriteHandlerState) String() string {
	switch s {
	case WriteHandlerStateIdle:
		return "Idle"
	case WriteHandlerStateProcessing:
		return "Processing"
	case WriteHandlerStateReceivingChunks:
		return "ReceivingChunks"
	case WriteHandlerStateSendingResponse:
		return "SendingResponse"
	default:
		return "Unknown"
	}
}

// WriteContext provides context for attribute writes.
type WriteContext struct {
	// Exchange is the underlying exchange context.
	Exchange *exchange.ExchangeContext

	// FabricIndex is the accessing fabric (0 if none).
	FabricIndex uint8

	// IsTimed indicates if this is part of a timed interaction.
	IsTimed bool

	// SourceNodeID is the requesting node.
	SourceNodeID uint64
}

// WriteHandler handles write request messages.
// This is a simplified implementation for commissioning use cases.
// Endpoint-wildcard paths are expanded when a node is attached via SetNode;
// cluster and attribute may never be wildcarded (Spec 8.7.3.2). It does NOT
// support:
//   - Chunked write requests (single message only)
//   - List operations (Add/Remove - only full Replace)
//
// Spec Reference: Section 8.7 "Write Interaction"
// C++ Reference: src/app/WriteHandler.cpp
type WriteHandler struct {
	// dispatcher routes write operations to clusters.
	dispatcher Dispatcher

	// node, when set, lets endpoint-wildcard writes (Spec 8.7.3.2) be
	// expanded across the endpoints that actually carry the target
	// cluster/attribute. Without it, endpoint-wildcard writes are rejected
	// outright, since there is no tree to expand them against.
	node datamodel.Node

	// State
	state WriteHandlerState
	ctx   *WriteContext

	// Pending response statuses
	writeStatuses []message.AttributeStatusIB

	// Suppress response flag from request
	suppressResponse bool

	mu sync.Mutex
}

// NewWriteHandler creates a new write handler.
func NewWriteHandler(dispatcher Dispatcher) *WriteHandler {
	if dispatcher == nil {
		dispatcher = NullDispatcher{}
	}
	return &WriteHandler{
		dispatcher: dispatcher,
		state:      WriteHandlerStateIdle,
	}
}

// SetNode attaches the data model tree used to expand endpoint-wildcard
// write paths. Returns h for chaining.
func (h *WriteHandler) SetNode(node datamodel.Node) *WriteHandler {
	h.node = node
	return h
}

// HandleWriteRequest processes an incoming WriteRequestMessage.
// Returns the WriteResponseMessage.
//
// Spec: 8.7.3.2 "Outgoing Write Response Action" (server-side processing)
func (h *WriteHandler) HandleWriteRequest(
	exchCtx *exchange.ExchangeContext,
	msg *message.WriteRequestMessage,
	fabricIndex uint8,
	sourceNodeID uint64,
	isTimed bool,
) (*message.WriteResponseMessage, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	// Validate timed request flag
	// Spec 8.7.2.3: TimedRequest field must match actual timed interaction state
	if msg.TimedRequest && !isTimed {
		return nil, ErrWriteTimedMismatch
	}

	// Create write context
	h.ctx = &WriteContext{
		Exchange:     exchCtx,
		FabricIndex:  fabricIndex,
		IsTimed:      isTimed,
		SourceNodeID: sourceNodeID,
	}

	h.state = WriteHandlerStateProcessing
	h.suppressResponse = msg.SuppressResponse
	h.writeStatuses = nil

	// Note: This simplified implementation does NOT support MoreChunkedMessages.
	// For commissioning, writes are small enough to fit in a single message.
	if msg.MoreChunkedMessages {
		h.state = WriteHandlerStateIdle
		return nil, ErrWriteListOperation // Chunked writes typically involve lists
	}

	// Process all attribute data IBs in the request
	for _, attrData := range msg.WriteRequests {
		statuses := h.processAttributeWrite(&attrData)
		h.writeStatuses = append(h.writeStatuses, statuses...)
	}

	// Build response
	h.state = WriteHandlerStateIdle

	// If SuppressResponse is set, return nil (no response sent)
	// Spec 8.7.2.3: "If SuppressResponse is true, no response shall be generated"
	if msg.SuppressResponse {
		return nil, nil
	}

	return &message.WriteResponseMessage{
		WriteResponses: h.writeStatuses,
	}, nil
}

// processAttributeWrite processes a single WriteRequest entry, which may
// carry a wildcard endpoint. Returns the AttributeStatusIB(s) for the
// response: one for a concrete path, none for a wildcard path that matches
// nothing, or several for an endpoint-wildcard path expanded across
// multiple endpoints.
//
// Spec: 8.7.3.2 step-by-step processing
func (h *WriteHandler) processAttributeWrite(attrData *message.AttributeDataIB) []message.AttributeStatusIB {
	path := attrData.Path

	// Spec 8.7.3.2: cluster and attribute may never be wildcarded in a
	// write; only the endpoint may.
	if path.Cluster == nil {
		return []message.AttributeStatusIB{h.createWriteStatusResponse(&path, message.StatusUnsupportedCluster)}
	}
	if path.Attribute == nil {
		return []message.AttributeStatusIB{h.createWriteStatusResponse(&path, message.StatusUnsupportedAttribute)}
	}

	if path.Endpoint == nil {
		if h.node == nil {
			// No data model tree to expand against - reject outright
			// rather than silently writing nothing.
			return []message.AttributeStatusIB{h.createWriteStatusResponse(&path, message.StatusInvalidAction)}
		}

		targets := datamodel.ExpandWriteEndpoints(h.node, datamodel.ClusterID(*path.Cluster), datamodel.AttributeID(*path.Attribute))
		statuses := make([]message.AttributeStatusIB, 0, len(targets))
		for _, t := range targets {
			ep := message.EndpointID(t.Endpoint)
			concrete := path
			concrete.Endpoint = &ep
			statuses = append(statuses, h.writeOnePath(concrete, attrData))
		}
		return statuses
	}

	return []message.AttributeStatusIB{h.writeOnePath(path, attrData)}
}

// writeOnePath writes a single, fully concrete attribute path.
func (h *WriteHandler) writeOnePath(path message.AttributePathIB, attrData *message.AttributeDataIB) message.AttributeStatusIB {
	// Check for list operations (ListIndex present).
	// Simplified implementation: we only support full attribute replacement.
	if path.ListIndex != nil {
		return h.createWriteStatusResponse(&path, message.StatusUnsupportedWrite)
	}

	writeReq := &AttributeWriteRequest{
		Path:      path,
		IMContext: nil, // Would be set from h.ctx in full implementation
		IsTimed:   h.ctx.IsTimed,
	}

	// DataVersion is optional - only set if non-zero
	if attrData.DataVersion != 0 {
		dv := attrData.DataVersion
		writeReq.DataVersion = &dv
	}

	// Dispatch to cluster via dispatcher. The dispatcher handles ACL
	// checks and routing to the correct cluster.
	r := tlv.NewReader(bytes.NewReader(attrData.Data))
	err := h.dispatcher.WriteAttribute(context.Background(), writeReq, r)

	if err != nil {
		return h.createWriteStatusResponse(&path, ErrorToStatus(err))
	}

	return h.createWriteStatusResponse(&path, message.StatusSuccess)
}

// createWriteStatusResponse creates an AttributeStatusIB for the response.
func (h *WriteHandler) createWriteStatusResponse(path *message.AttributePathIB, status message.Status) message.AttributeStatusIB {
	return message.AttributeStatusIB{
		Path: *path,
		Status: message.StatusIB{
			Status: status,
		},
	}
}

// Reset resets the handler to idle state.
func (h *WriteHandler) Reset() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.state = WriteHandlerStateIdle
	h.ctx = nil
	h.writeStatuses = nil
	h.suppressResponse = false
}

// State returns the current handler state.
func (h *WriteHandler) State() WriteHandlerState {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

// EncodeWriteResponse encodes a write response message.
func EncodeWriteResponse(msg *message.WriteResponseMessage) ([]byte, error) {
	var buf bytes.Buffer
	w := tlv.NewWriter(&buf)
	if err := msg.Encode(w); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DecodeWriteRequest decodes a write request message.
func DecodeWriteRequest(data []byte) (*message.WriteRequestMessage, error) {
	r := tlv.NewReader(bytes.NewReader(data))
	var msg message.WriteRequestMessage
	if err := msg.Decode(r); err != nil {
		return nil, err
	}
	return &msg, nil
}
