// Package asn1der implements a minimal DER encoder for the subset of ASN.1
// used by X.509 certificates: SEQUENCE, SET, explicit context tags, INTEGER,
// UTF8String, BIT STRING, OCTET STRING (including compound octet strings whose
// content is itself DER, used to wrap extension values), BOOLEAN, OBJECT
// IDENTIFIER and UTCTime.
//
// Unlike encoding/asn1, callers drive emission imperatively (start_seq /
// end_seq style) rather than by marshalling a Go struct. This mirrors the
// CertConsumer-style writer used to emit Matter certificates as X.509 DER:
// content is written before its length is known, and the length prefix is
// patched in once the matching end call closes the construct.
package asn1der

import "errors"

// ErrNoSpace is returned when the destination buffer cannot hold the
// requested write.
var ErrNoSpace = errors.New("asn1der: no space")

// ErrMaxDepth is returned when the nesting of SEQUENCE/SET/context
// constructs exceeds MaxDepth.
var ErrMaxDepth = errors.New("asn1der: max nesting depth exceeded")

// ErrUnbalanced is returned when an end call has no matching start call.
var ErrUnbalanced = errors.New("asn1der: unbalanced start/end")

// MaxDepth bounds the nesting depth of constructed encodings a Consumer
// will track. Certificates never nest this deeply; it exists as a sanity
// backstop against malformed input driving unbounded recursion.
const MaxDepth = 10

// Consumer is the imperative sink certificates are encoded against. Writer
// implements it to produce DER bytes.
type Consumer interface {
	StartSequence() error
	EndSequence() error

	StartSet() error
	EndSet() error

	// StartContext opens an explicit, constructed [id] context tag.
	StartContext(id uint8) error
	EndContext() error

	// Context writes a primitive (non-constructed) [id] context tag whose
	// content is val, written as-is.
	Context(id uint8, val []byte) error

	Integer(i []byte) error
	UTF8String(s string) error
	// PrintableString writes s as a PrintableString. Matter only uses this
	// for the subset of Distinguished Name attributes tagged with the
	// PrintableString offset; all other text is UTF8String.
	PrintableString(s string) error
	OID(oid []byte) error
	Boolean(b bool) error
	UTCTime(epoch uint32) error

	// OctetString writes a primitive OCTET STRING.
	OctetString(s []byte) error

	// BitString writes a BIT STRING. When truncate is true, trailing zero
	// bits are stripped and the unused-bits count reflects the shortened
	// encoding (per RFC 5280 key-usage encoding); otherwise the full
	// content is emitted with zero unused bits.
	BitString(truncate bool, s []byte) error

	// StartCompoundOctetString opens an OCTET STRING (tag 0x04) whose
	// content is written as nested DER, used to wrap an X.509 extension's
	// DER-encoded value.
	StartCompoundOctetString() error
	EndCompoundOctetString() error
}
