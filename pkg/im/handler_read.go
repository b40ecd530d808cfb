package im

import (
	"bytes"
	"errors"
	"sync"

	"github.com/chip-node/matter-core/pkg/datamodel"
	"github.com/chip-node/matter-core/pkg/exchange"
	"github.com/chip-node/matter-core/pkg/im/message"
	"github.com/chip-node/matter-core/pkg/tlv"
)

// ReadHandler errors.
var (
	ErrReadHandlerBusy     = errors.New("read handler: busy processing another request")
	ErrReadPathNotFound    = errors.New("read handler: path not found")
	ErrReadAccessDenied    = errors.New("read handler: access denied")
)

// AttributeReader is called to read attribute data.
// It receives the attribute path and returns the TLV-encoded data.
type AttributeReader func(
	ctx *ReadContext,
	path message.AttributePathIB,
) (*AttributeResult, error)

// AttributeResult is the result of reading an attribute.
type AttributeResult struct {
	// DataVersion is the current data version of the cluster.
	DataVersion message.DataVersion

	// Data is the TLV-encoded attribute value.
	Data []byte

	// Status is set if the read failed with a status.
	Status *message.StatusIB
}

// ReadContext provides context for attribute reads.
type ReadContext struct {
	// Exchange is the underlying exchange context.
	Exchange *exchange.ExchangeContext

	// FabricIndex is the accessing fabric (0 if none).
	FabricIndex uint8

	// IsFabricFiltered indicates fabric-filtered read.
	IsFabricFiltered bool

	// SourceNodeID is the requesting node.
	SourceNodeID uint64
}

// ReadHandlerState represents the handler state machine.
type ReadHandlerState int

const (
	ReadHandlerStateIdle ReadHandlerState = iota
	ReadHandlerStateProcessing
	ReadHandlerStateSendingReport
)

// String returns the state name.
func (s ReadHandlerState) String() string {
	switch s {
	case ReadHandlerStateIdle:
		return "Idle"
	case ReadHandlerStateProcessing:
		return "Processing"
	case ReadHandlerStateSendingReport:
		return "SendingReport"
	default:
		return "Unknown"
	}
}

// ReadHandler handles read request messages.
// This is a simplified implementation for Descriptor/Basic clusters.
// Wildcard paths are expanded in ascending endpoint/cluster/attribute order
// when a node is attached via SetNode (Spec 8.4.3.2); without one, a
// wildcard path is passed straight through to attributeReader unexpanded.
// A report larger than maxPayload is split into chunks, sent one per
// StatusResponse from the peer. It does NOT support:
//   - Complex ACL checks (assumes caller validated access)
type ReadHandler struct {
	// attributeReader is called to read attributes.
	attributeReader AttributeReader

	// node, when set, lets wildcard paths be expanded against the data
	// model tree before each concrete path is handed to attributeReader.
	node datamodel.Node

	// fragmenter for chunked responses
	fragmenter *Fragmenter

	// State
	state ReadHandlerState
	ctx   *ReadContext

	// Pending response chunks
	pendingChunks []*message.ReportDataMessage
	chunkIndex    int

	mu sync.Mutex
}

// NewReadHandler creates a new read handler.
func NewReadHandler(reader AttributeReader, maxPayload int) *ReadHandler {
	return &ReadHandler{
		attributeReader: reader,
		fragmenter:      NewFragmenter(maxPayload),
		state:           ReadHandlerStateIdle,
	}
}

// SetNode attaches the data model tree used to expand wildcard read paths.
// Returns h for chaining.
func (h *ReadHandler) SetNode(node datamodel.Node) *ReadHandler {
	h.node = node
	return h
}

// HandleReadRequest processes an incoming ReadRequestMessage.
// Returns the ReportData response message.
func (h *ReadHandler) HandleReadRequest(
	exchCtx *exchange.ExchangeContext,
	msg *message.ReadRequestMessage,
	fabricIndex uint8,
	sourceNodeID uint64,
) (*message.ReportDataMessage, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	// Create read context
	h.ctx = &ReadContext{
		Exchange:         exchCtx,
		FabricIndex:      fabricIndex,
		IsFabricFiltered: msg.FabricFiltered,
		SourceNodeID:     sourceNodeID,
	}

	h.state = ReadHandlerStateProcessing

	// Process attribute requests
	var attributeReports []message.AttributeReportIB

	for _, attrPath := range msg.AttributeRequests {
		attributeReports = append(attributeReports, h.readOneRequest(&attrPath, msg.DataVersionFilters)...)
	}

	// Note: EventRequests are not handled in this simple implementation.
	// For WebRTC, events are pushed via unsolicited reports, not pulled.

	// Build response
	response := &message.ReportDataMessage{
		AttributeReports:    attributeReports,
		SuppressResponse:    true, // Read responses suppress further response
		MoreChunkedMessages: false,
	}

	// Check if response needs chunking
	chunks, err := h.fragmenter.FragmentReportData(response)
	if err != nil {
		h.state = ReadHandlerStateIdle
		return nil, err
	}

	if len(chunks) == 1 {
		h.state = ReadHandlerStateIdle
		return chunks[0], nil
	}

	// Chunked response
	h.state = ReadHandlerStateSendingReport
	h.pendingChunks = chunks
	h.chunkIndex = 1

	return chunks[0], nil
}

// HandleStatusResponse processes a StatusResponse during chunked transmission.
func (h *ReadHandler) HandleStatusResponse(status message.Status) (*message.ReportDataMessage, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.state != ReadHandlerStateSendingReport {
		return nil, nil
	}

	if status != message.StatusSuccess {
		h.state = ReadHandlerStateIdle
		h.pendingChunks = nil
		return nil, nil
	}

	if h.chunkIndex >= len(h.pendingChunks) {
		h.state = ReadHandlerStateIdle
		h.pendingChunks = nil
		return nil, nil
	}

	chunk := h.pendingChunks[h.chunkIndex]
	h.chunkIndex++

	if h.chunkIndex >= len(h.pendingChunks) {
		h.state = ReadHandlerStateIdle
		h.pendingChunks = nil
	}

	return chunk, nil
}

// readOneRequest handles a single entry from AttributeRequests, expanding it
// first if it carries a wildcard endpoint/cluster/attribute.
//
// Spec 8.4.3.2 / 8.2.1.6: in wildcard mode, per-attribute errors are
// silently skipped rather than reported as an AttributeStatus, so the
// reader never leaks which paths exist versus which are access-denied. A
// fully concrete path is never expanded and always yields exactly one
// report, error or not.
func (h *ReadHandler) readOneRequest(path *message.AttributePathIB, filters []message.DataVersionFilterIB) []message.AttributeReportIB {
	if h.node == nil || !datamodel.IsWildcardPath(path.Endpoint, path.Cluster, path.Attribute) {
		return []message.AttributeReportIB{h.readAttribute(path, filters)}
	}

	concretePaths := datamodel.ExpandAttributePaths(h.node, path.Endpoint, path.Cluster, path.Attribute)

	var reports []message.AttributeReportIB
	for _, cp := range concretePaths {
		ep, cl, attr := message.EndpointID(cp.Endpoint), message.ClusterID(cp.Cluster), message.AttributeID(cp.Attribute)
		concrete := *path
		concrete.Endpoint, concrete.Cluster, concrete.Attribute = &ep, &cl, &attr

		report := h.readAttribute(&concrete, filters)
		if report.AttributeStatus != nil || report.AttributeData == nil {
			// Silently skip: the attribute matched the wildcard but
			// failed to read (access denied, transient failure, data
			// version filter match, etc).
			continue
		}
		reports = append(reports, report)
	}
	return reports
}

// readAttribute reads a single attribute and returns a report IB.
func (h *ReadHandler) readAttribute(
	path *message.AttributePathIB,
	dataVersionFilters []message.DataVersionFilterIB,
) message.AttributeReportIB {
	if h.attributeReader == nil {
		return h.createAttributeStatusReport(path, message.StatusUnsupportedAttribute)
	}

	// Check data version filter
	if h.shouldSkipForDataVersion(path, dataVersionFilters) {
		// Skip - attribute unchanged. Return empty (will be filtered).
		// Per spec, if version matches, we don't report.
		// But for simplicity, we return a status indicating no change.
		// In practice, we'd just not include this in the response.
		return message.AttributeReportIB{}
	}

	result, err := h.attributeReader(h.ctx, *path)
	if err != nil {
		return h.createAttributeStatusReport(path, message.StatusFailure)
	}

	if result == nil {
		return h.createAttributeStatusReport(path, message.StatusUnsupportedAttribute)
	}

	if result.Status != nil {
		return message.AttributeReportIB{
			AttributeStatus: &message.AttributeStatusIB{
				Path:   *path,
				Status: *result.Status,
			},
		}
	}

	return message.AttributeReportIB{
		AttributeData: &message.AttributeDataIB{
			DataVersion: result.DataVersion,
			Path:        *path,
			Data:        result.Data,
		},
	}
}

// shouldSkipForDataVersion checks if the attribute should be skipped due to version filter.
func (h *ReadHandler) shouldSkipForDataVersion(
	path *message.AttributePathIB,
	filters []message.DataVersionFilterIB,
) bool {
	if len(filters) == 0 {
		return false
	}

	// Find matching filter
	for _, filter := range filters {
		if h.pathMatchesFilter(path, &filter.Path) {
			// For now, we don't track data versions, so always report.
			// A full implementation would compare filter.DataVersion with current version.
			return false
		}
	}

	return false
}

// pathMatchesFilter checks if an attribute path matches a cluster path filter.
func (h *ReadHandler) pathMatchesFilter(attrPath *message.AttributePathIB, filterPath *message.ClusterPathIB) bool {
	if filterPath.Endpoint != nil && attrPath.Endpoint != nil {
		if *filterPath.Endpoint != *attrPath.Endpoint {
			return false
		}
	}
	if filterPath.Cluster != nil && attrPath.Cluster != nil {
		if *filterPath.Cluster != *attrPath.Cluster {
			return false
		}
	}
	return true
}

// createAttributeStatusReport creates an error status report.
func (h *ReadHandler) createAttributeStatusReport(path *message.AttributePathIB, status message.Status) message.AttributeReportIB {
	return message.AttributeReportIB{
		AttributeStatus: &message.AttributeStatusIB{
			Path: *path,
			Status: message.StatusIB{
				Status: status,
			},
		},
	}
}

// Reset resets the handler to idle state.
func (h *ReadHandler) Reset() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.state = ReadHandlerStateIdle
	h.ctx = nil
	h.pendingChunks = nil
	h.chunkIndex = 0
}

// State returns the current handler state.
func (h *ReadHandler) State() ReadHandlerState {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

// EncodeReportData encodes a report data message.
func EncodeReportData(msg *message.ReportDataMessage) ([]byte, error) {
	var buf bytes.Buffer
	w := tlv.NewWriter(&buf)
	if err := msg.Encode(w); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DecodeReadRequest decodes a read request message.
func DecodeReadRequest(data []byte) (*message.ReadRequestMessage, error) {
	r := tlv.NewReader(bytes.NewReader(data))
	var msg message.ReadRequestMessage
	if err := msg.Decode(r); err != nil {
		return nil, err
	}
	return &msg, nil
}
