package asn1der

import (
	"fmt"
	"io"
	"strings"
)

// TextConsumer renders the same sequence of Consumer calls a certificate
// encoder makes as an indented, human-readable dump, mirroring the debug
// printer certificate tooling offers alongside its DER encoder.
type TextConsumer struct {
	w     io.Writer
	depth int
}

// NewTextConsumer returns a TextConsumer writing to w.
func NewTextConsumer(w io.Writer) *TextConsumer {
	return &TextConsumer{w: w}
}

func (t *TextConsumer) indent() string {
	return strings.Repeat("  ", t.depth)
}

func (t *TextConsumer) line(format string, args ...interface{}) {
	fmt.Fprintf(t.w, "%s%s\n", t.indent(), fmt.Sprintf(format, args...))
}

func (t *TextConsumer) StartSequence() error {
	t.line("SEQUENCE {")
	t.depth++
	return nil
}

func (t *TextConsumer) EndSequence() error {
	t.depth--
	t.line("}")
	return nil
}

func (t *TextConsumer) StartSet() error {
	t.line("SET {")
	t.depth++
	return nil
}

func (t *TextConsumer) EndSet() error {
	t.depth--
	t.line("}")
	return nil
}

func (t *TextConsumer) StartContext(id uint8) error {
	t.line("[%d] {", id)
	t.depth++
	return nil
}

func (t *TextConsumer) EndContext() error {
	t.depth--
	t.line("}")
	return nil
}

func (t *TextConsumer) Context(id uint8, val []byte) error {
	t.line("[%d]: %x", id, val)
	return nil
}

func (t *TextConsumer) StartCompoundOctetString() error {
	t.line("OCTET STRING (compound) {")
	t.depth++
	return nil
}

func (t *TextConsumer) EndCompoundOctetString() error {
	t.depth--
	t.line("}")
	return nil
}

func (t *TextConsumer) Integer(i []byte) error {
	t.line("INTEGER: %x", i)
	return nil
}

func (t *TextConsumer) UTF8String(s string) error {
	t.line("UTF8String: %q", s)
	return nil
}

func (t *TextConsumer) PrintableString(s string) error {
	t.line("PrintableString: %q", s)
	return nil
}

func (t *TextConsumer) OID(oid []byte) error {
	t.line("OID: %x", oid)
	return nil
}

func (t *TextConsumer) Boolean(b bool) error {
	t.line("BOOLEAN: %v", b)
	return nil
}

func (t *TextConsumer) OctetString(s []byte) error {
	t.line("OCTET STRING: %x", s)
	return nil
}

func (t *TextConsumer) BitString(truncate bool, s []byte) error {
	t.line("BIT STRING (truncate=%v): %x", truncate, s)
	return nil
}

func (t *TextConsumer) UTCTime(epoch uint32) error {
	t.line("TIME: epoch-s=%d", epoch)
	return nil
}

var _ Consumer = (*Writer)(nil)
var _ Consumer = (*TextConsumer)(nil)
