package im

import (
	"bytes"
	"sync"

	"github.com/chip-node/matter-core/pkg/datamodel"
	"github.com/chip-node/matter-core/pkg/exchange"
	imsg "github.com/chip-node/matter-core/pkg/im/message"
	"github.com/chip-node/matter-core/pkg/tlv"
)

// ProtocolID is the Interaction Model protocol ID.
// Spec: Section 10.2.1
const ProtocolID = imsg.ProtocolID

// Engine is the Interaction Model engine.
// It implements exchange.ExchangeDelegate for the IM protocol.
//
// This simplified engine supports:
//   - ReadRequest → ReportData
//   - WriteRequest → WriteResponse
//   - InvokeRequest → InvokeResponse
//   - StatusResponse (for chunked flows)
//
// It does NOT support (for commissioning simplicity):
//   - Subscriptions
//   - Timed interactions
//   - Complex chunking
//
// Spec Reference: Chapter 8 "Interaction Model Specification"
// C++ Reference: src/app/InteractionModelEngine.cpp
type Engine struct {
	// dispatcher routes operations to clusters
	dispatcher Dispatcher

	// node, when set, lets the read and write handlers expand wildcard
	// paths against the data model tree (Spec 8.2.1.6).
	node datamodel.Node

	// Handlers (pooled for reuse)
	readHandler   *ReadHandler
	writeHandler  *WriteHandler
	invokeHandler *InvokeHandler

	// maxPayload for chunked responses
	maxPayload int

	mu sync.Mutex
}

// EngineConfig configures the Engine.
type EngineConfig struct {
	// Dispatcher routes operations to cluster implementations. If nil and
	// Node is set, the engine dispatches straight against Node via
	// NewNodeDispatcher; if both are nil, it falls back to NullDispatcher.
	Dispatcher Dispatcher

	// Node, when set, lets the engine expand wildcard read/write/invoke
	// paths against the data model tree (Spec 8.2.1.6).
	Node datamodel.Node

	// MaxPayload is the maximum payload size for responses.
	// Defaults to DefaultMaxPayload if 0.
	MaxPayload int
}

// NewEngine creates a new IM engine.
func NewEngine(config EngineConfig) *Engine {
	maxPayload := config.MaxPayload
	if maxPayload == 0 {
		maxPayload = DefaultMaxPayload
	}

	dispatcher := config.Dispatcher
	if dispatcher == nil {
		if config.Node != nil {
			dispatcher = NewNodeDispatcher(config.Node)
		} else {
			dispatcher = NullDispatcher{}
		}
	}

	return &Engine{
		dispatcher:    dispatcher,
		node:          config.Node,
		maxPayload:    maxPayload,
		readHandler:   NewReadHandler(nil, maxPayload),   // Reader set per-request
		writeHandler:  NewWriteHandler(dispatcher).SetNode(config.Node),
		invokeHandler: NewInvokeHandler(nil, maxPayload), // Handler set per-request
	}
}

// subjectFromExchange derives the requesting identity from the exchange's
// bound secure session. Callers exercising the engine without a live
// session (unit tests) may pass a nil exchange context; the subject is
// then the zero value.
func subjectFromExchange(ctx *exchange.ExchangeContext) (fabricIndex uint8, sourceNodeID uint64) {
	if ctx == nil {
		return 0, 0
	}
	sess := ctx.Session()
	if sess == nil {
		return 0, 0
	}
	return uint8(sess.FabricIndex()), uint64(sess.PeerNodeID())
}

// OnMessage implements exchange.ExchangeDelegate.
// This is the main entry point for IM messages: it decodes the request for
// opcode, dispatches to the matching handler, and returns the encoded
// response payload to be sent back on the same exchange.
//
// Spec: 8.2.4 "Action" - defines valid opcodes
// C++ Reference: InteractionModelEngine::OnMessageReceived
func (e *Engine) OnMessage(ctx *exchange.ExchangeContext, opcode uint8, payload []byte) ([]byte, error) {
	switch imsg.Opcode(opcode) {
	case imsg.OpcodeReadRequest:
		return e.handleReadRequest(ctx, payload)

	case imsg.OpcodeWriteRequest:
		return e.handleWriteRequest(ctx, payload)

	case imsg.OpcodeInvokeRequest:
		return e.handleInvokeRequest(ctx, payload)

	case imsg.OpcodeStatusResponse:
		return e.handleStatusResponse(ctx, payload)

	case imsg.OpcodeSubscribeRequest, imsg.OpcodeTimedRequest:
		// Not implemented in simplified engine.
		return e.encodeStatusResponse(imsg.StatusUnsupportedAccess)

	default:
		return e.encodeStatusResponse(imsg.StatusInvalidAction)
	}
}

// OnClose implements exchange.ExchangeDelegate.
func (e *Engine) OnClose(ctx *exchange.ExchangeContext) {
	e.mu.Lock()
	defer e.mu.Unlock()

	// Reset handlers if they were active on this exchange
	e.readHandler.Reset()
	e.writeHandler.Reset()
	e.invokeHandler.Reset()
}

// handleReadRequest processes a ReadRequestMessage.
func (e *Engine) handleReadRequest(ctx *exchange.ExchangeContext, payload []byte) ([]byte, error) {
	req, err := DecodeReadRequest(payload)
	if err != nil {
		return e.encodeStatusResponse(imsg.StatusInvalidAction)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	reader := e.createAttributeReader()
	handler := NewReadHandler(reader, e.maxPayload).SetNode(e.node)

	fabricIndex, sourceNodeID := subjectFromExchange(ctx)

	resp, err := handler.HandleReadRequest(ctx, req, fabricIndex, sourceNodeID)
	if err != nil {
		return e.encodeStatusResponse(ErrorToStatus(err))
	}

	// Store handler for potential chunked continuation
	e.readHandler = handler

	return EncodeReportData(resp)
}

// handleWriteRequest processes a WriteRequestMessage.
func (e *Engine) handleWriteRequest(ctx *exchange.ExchangeContext, payload []byte) ([]byte, error) {
	req, err := DecodeWriteRequest(payload)
	if err != nil {
		return e.encodeStatusResponse(imsg.StatusInvalidAction)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	fabricIndex, sourceNodeID := subjectFromExchange(ctx)
	isTimed := false // Timed interactions not supported in simplified engine

	resp, err := e.writeHandler.HandleWriteRequest(ctx, req, fabricIndex, sourceNodeID, isTimed)
	if err != nil {
		return e.encodeStatusResponse(ErrorToStatus(err))
	}

	// If SuppressResponse was set, resp is nil
	if resp == nil {
		return nil, nil
	}

	return EncodeWriteResponse(resp)
}

// handleInvokeRequest processes an InvokeRequestMessage.
func (e *Engine) handleInvokeRequest(ctx *exchange.ExchangeContext, payload []byte) ([]byte, error) {
	req, err := DecodeInvokeRequest(payload)
	if err != nil {
		return e.encodeStatusResponse(imsg.StatusInvalidAction)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	cmdHandler := e.createCommandHandler()
	handler := NewInvokeHandler(cmdHandler, e.maxPayload).SetNode(e.node)

	fabricIndex, sourceNodeID := subjectFromExchange(ctx)
	isTimed := false

	resp, err := handler.HandleInvokeRequest(ctx, req, fabricIndex, sourceNodeID, isTimed)
	if err != nil {
		return e.encodeStatusResponse(ErrorToStatus(err))
	}

	// Store handler for potential chunked continuation
	e.invokeHandler = handler

	return EncodeInvokeResponse(resp)
}

// handleStatusResponse processes a StatusResponseMessage.
// Used for chunked response flow control: the peer's acknowledgement of one
// chunk triggers encoding of the next.
func (e *Engine) handleStatusResponse(ctx *exchange.ExchangeContext, payload []byte) ([]byte, error) {
	statusMsg, err := DecodeStatusResponse(payload)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.readHandler.State() == ReadHandlerStateSendingReport {
		resp, err := e.readHandler.HandleStatusResponse(statusMsg.Status)
		if err != nil {
			return e.encodeStatusResponse(ErrorToStatus(err))
		}
		if resp != nil {
			return EncodeReportData(resp)
		}
		return nil, nil
	}

	if e.invokeHandler.State() == InvokeHandlerStateSendingResponse {
		resp, err := e.invokeHandler.HandleStatusResponse(statusMsg.Status)
		if err != nil {
			return e.encodeStatusResponse(ErrorToStatus(err))
		}
		if resp != nil {
			return EncodeInvokeResponse(resp)
		}
		return nil, nil
	}

	// No handler expecting status response
	return nil, nil
}

// createAttributeReader creates an AttributeReader that uses the dispatcher.
func (e *Engine) createAttributeReader() AttributeReader {
	return func(ctx *ReadContext, path imsg.AttributePathIB) (*AttributeResult, error) {
		req := &AttributeReadRequest{
			Path:             path,
			IsFabricFiltered: ctx.IsFabricFiltered,
		}

		var buf bytes.Buffer
		w := tlv.NewWriter(&buf)

		err := e.dispatcher.ReadAttribute(nil, req, w)
		if err != nil {
			return &AttributeResult{
				Status: &imsg.StatusIB{
					Status: ErrorToStatus(err),
				},
			}, nil
		}

		return &AttributeResult{
			DataVersion: 1,
			Data:        buf.Bytes(),
		}, nil
	}
}

// createCommandHandler creates a CommandHandler that uses the dispatcher.
func (e *Engine) createCommandHandler() CommandHandler {
	return func(ctx *InvokeContext, path imsg.CommandPathIB, fields []byte) (*CommandResult, error) {
		req := &CommandInvokeRequest{
			Path:    path,
			IsTimed: ctx.IsTimed,
		}

		r := tlv.NewReader(bytes.NewReader(fields))

		respData, err := e.dispatcher.InvokeCommand(nil, req, r)
		if err != nil {
			return &CommandResult{
				Status: &imsg.StatusIB{
					Status: ErrorToStatus(err),
				},
			}, nil
		}

		return &CommandResult{
			ResponsePath: path,
			ResponseData: respData,
		}, nil
	}
}

// encodeStatusResponse encodes a status response message.
func (e *Engine) encodeStatusResponse(status imsg.Status) ([]byte, error) {
	return EncodeStatusResponse(status)
}

// GetProtocolID returns the protocol ID for registration with the exchange
// manager's default delegate.
func (e *Engine) GetProtocolID() uint16 {
	return ProtocolID
}
