package credentials

import (
	"encoding/pem"
	"fmt"

	"github.com/chip-node/matter-core/pkg/asn1der"
)

// Well-known OID content octets, pre-encoded in base-128 DER form.
// Spec Section 6.1.1 / RFC 5280.
var (
	oidECDSAWithSHA256   = asn1der.EncodeOID(1, 2, 840, 10045, 4, 3, 2)
	oidECPublicKey       = asn1der.EncodeOID(1, 2, 840, 10045, 2, 1)
	oidPrime256v1        = asn1der.EncodeOID(1, 2, 840, 10045, 3, 1, 7)
	oidBasicConstraints  = asn1der.EncodeOID(2, 5, 29, 19)
	oidKeyUsage          = asn1der.EncodeOID(2, 5, 29, 15)
	oidExtKeyUsage       = asn1der.EncodeOID(2, 5, 29, 37)
	oidSubjectKeyID      = asn1der.EncodeOID(2, 5, 29, 14)
	oidAuthorityKeyID    = asn1der.EncodeOID(2, 5, 29, 35)
)

// MaxTBSSize is the scratch buffer size used while encoding the
// tbsCertificate portion of a certificate. It is larger than
// MaxDERCertSize, so any certificate within that ceiling fits.
const MaxTBSSize = 800

// MatterToX509 converts a Matter TLV Certificate to X.509 DER format.
//
// The encoding walks the certificate the same way signature verification
// does: the tbsCertificate is emitted first as its own complete SEQUENCE,
// then wrapped together with the signatureAlgorithm and signatureValue in
// the outer Certificate SEQUENCE. Re-encoding (rather than transcribing the
// original TLV bytes) is what lets this produce a real, independently verifiable
// X.509 document instead of an opaque blob.
func MatterToX509(cert *Certificate) ([]byte, error) {
	tbs, err := EncodeTBSDER(cert)
	if err != nil {
		return nil, err
	}

	sigValue, err := encodeECDSASigValue(cert.Signature)
	if err != nil {
		return nil, err
	}

	buf := make([]byte, len(tbs)+len(sigValue)+64)
	w := asn1der.NewWriter(buf)

	if err := w.StartSequence(); err != nil {
		return nil, err
	}
	if err := w.Raw(tbs); err != nil {
		return nil, err
	}
	if err := w.StartSequence(); err != nil {
		return nil, err
	}
	if err := w.OID(oidECDSAWithSHA256); err != nil {
		return nil, err
	}
	if err := w.EndSequence(); err != nil {
		return nil, err
	}
	if err := w.BitString(false, sigValue); err != nil {
		return nil, err
	}
	if err := w.EndSequence(); err != nil {
		return nil, err
	}

	return w.Bytes(), nil
}

// MatterToX509PEM converts a Matter TLV Certificate to PEM format.
func MatterToX509PEM(cert *Certificate) ([]byte, error) {
	der, err := MatterToX509(cert)
	if err != nil {
		return nil, err
	}

	block := &pem.Block{
		Type:  "CERTIFICATE",
		Bytes: der,
	}

	return pem.EncodeToMemory(block), nil
}

// EncodeTBSDER encodes the tbsCertificate portion of cert as its own
// complete DER SEQUENCE. This is both half of the output MatterToX509
// assembles and the exact byte string whose ECDSA signature a certificate
// carries, so chain verification re-derives it the same way.
func EncodeTBSDER(cert *Certificate) ([]byte, error) {
	buf := make([]byte, MaxTBSSize)
	w := asn1der.NewWriter(buf)
	if err := encodeTBS(cert, w); err != nil {
		return nil, err
	}
	out := make([]byte, w.Len())
	copy(out, w.Bytes())
	return out, nil
}

// encodeTBS walks the certificate fields in tbsCertificate order.
func encodeTBS(cert *Certificate, w *asn1der.Writer) error {
	if err := w.StartSequence(); err != nil {
		return err
	}

	if err := w.StartContext(0); err != nil { // [0] version
		return err
	}
	if err := w.Integer([]byte{2}); err != nil { // v3
		return err
	}
	if err := w.EndContext(); err != nil {
		return err
	}

	if err := w.Integer(cert.SerialNum); err != nil {
		return err
	}

	if cert.SigAlgo != SignatureAlgoECDSASHA256 {
		return fmt.Errorf("%w: %d", ErrInvalidSignatureAlgo, cert.SigAlgo)
	}
	if err := w.StartSequence(); err != nil { // signature AlgorithmIdentifier
		return err
	}
	if err := w.OID(oidECDSAWithSHA256); err != nil {
		return err
	}
	if err := w.EndSequence(); err != nil {
		return err
	}

	if err := encodeDN(cert.Issuer, w); err != nil {
		return fmt.Errorf("issuer: %w", err)
	}

	if err := w.StartSequence(); err != nil { // Validity
		return err
	}
	if err := w.UTCTime(cert.NotBefore); err != nil {
		return err
	}
	if err := w.UTCTime(cert.NotAfter); err != nil {
		return err
	}
	if err := w.EndSequence(); err != nil {
		return err
	}

	if err := encodeDN(cert.Subject, w); err != nil {
		return fmt.Errorf("subject: %w", err)
	}

	if cert.PubKeyAlgo != PublicKeyAlgoEC {
		return fmt.Errorf("%w: %d", ErrInvalidPublicKeyAlgo, cert.PubKeyAlgo)
	}
	if cert.ECCurveID != EllipticCurvePrime256v1 {
		return fmt.Errorf("%w: %d", ErrInvalidEllipticCurve, cert.ECCurveID)
	}
	if err := w.StartSequence(); err != nil { // SubjectPublicKeyInfo
		return err
	}
	if err := w.StartSequence(); err != nil {
		return err
	}
	if err := w.OID(oidECPublicKey); err != nil {
		return err
	}
	if err := w.OID(oidPrime256v1); err != nil {
		return err
	}
	if err := w.EndSequence(); err != nil {
		return err
	}
	if err := w.BitString(false, cert.ECPubKey); err != nil {
		return err
	}
	if err := w.EndSequence(); err != nil {
		return err
	}

	if err := encodeExtensions(cert.Extensions, w); err != nil {
		return err
	}

	// The signature is not part of the tbsCertificate.
	return w.EndSequence()
}

func encodeDN(dn DistinguishedName, w *asn1der.Writer) error {
	if err := w.StartSequence(); err != nil {
		return err
	}
	for _, attr := range dn {
		oid := TagToOID(attr.BaseTag())
		if oid == nil {
			return fmt.Errorf("%w: tag %d", ErrUnsupportedOID, attr.Tag)
		}
		if err := w.StartSet(); err != nil {
			return err
		}
		if err := w.StartSequence(); err != nil {
			return err
		}
		if err := w.OID(asn1der.EncodeOID(oid...)); err != nil {
			return err
		}
		switch {
		case attr.IsMatterSpecific():
			hexStr := MatterSpecificToHexString(attr.Uint64Value(), attr.MatterSpecificByteLength())
			if err := w.UTF8String(hexStr); err != nil {
				return err
			}
		case attr.IsPrintableString():
			if err := w.PrintableString(attr.StringValue()); err != nil {
				return err
			}
		default:
			if err := w.UTF8String(attr.StringValue()); err != nil {
				return err
			}
		}
		if err := w.EndSequence(); err != nil {
			return err
		}
		if err := w.EndSet(); err != nil {
			return err
		}
	}
	return w.EndSequence()
}

// encodeExtensionEnvelope writes the common [OID, optional critical BOOLEAN,
// compound OCTET STRING] shell every X.509 extension shares, then lets body
// fill in the extnValue content.
func encodeExtensionEnvelope(oid []byte, critical bool, w *asn1der.Writer, body func(*asn1der.Writer) error) error {
	if err := w.StartSequence(); err != nil {
		return err
	}
	if err := w.OID(oid); err != nil {
		return err
	}
	if critical {
		if err := w.Boolean(true); err != nil {
			return err
		}
	}
	if err := w.StartCompoundOctetString(); err != nil {
		return err
	}
	if err := body(w); err != nil {
		return err
	}
	if err := w.EndCompoundOctetString(); err != nil {
		return err
	}
	return w.EndSequence()
}

func encodeExtensions(ext Extensions, w *asn1der.Writer) error {
	if err := w.StartContext(3); err != nil { // [3] extensions
		return err
	}
	if err := w.StartSequence(); err != nil {
		return err
	}

	if bc := ext.BasicConstraints; bc != nil {
		err := encodeExtensionEnvelope(oidBasicConstraints, true, w, func(w *asn1der.Writer) error {
			if err := w.StartSequence(); err != nil {
				return err
			}
			if bc.IsCA {
				if err := w.Boolean(true); err != nil {
					return err
				}
			}
			if bc.PathLenConstraint != nil {
				if err := w.Integer([]byte{*bc.PathLenConstraint}); err != nil {
					return err
				}
			}
			return w.EndSequence()
		})
		if err != nil {
			return err
		}
	}

	if ku := ext.KeyUsage; ku != nil {
		err := encodeExtensionEnvelope(oidKeyUsage, true, w, func(w *asn1der.Writer) error {
			return w.BitString(true, keyUsageBits(ku.Usage))
		})
		if err != nil {
			return err
		}
	}

	if eku := ext.ExtendedKeyUsage; eku != nil {
		// Non-critical: unlike the other boolean-gated extensions, Matter
		// devices may be evaluated by relying parties that don't
		// understand a particular key purpose, so extended key usage is
		// advisory rather than a hard constraint.
		err := encodeExtensionEnvelope(oidExtKeyUsage, false, w, func(w *asn1der.Writer) error {
			if err := w.StartSequence(); err != nil {
				return err
			}
			for _, kp := range eku.KeyPurposes {
				oid := KeyPurposeToOID(kp)
				if oid == nil {
					continue
				}
				if err := w.OID(asn1der.EncodeOID(oid...)); err != nil {
					return err
				}
			}
			return w.EndSequence()
		})
		if err != nil {
			return err
		}
	}

	if skid := ext.SubjectKeyID; skid != nil {
		err := encodeExtensionEnvelope(oidSubjectKeyID, false, w, func(w *asn1der.Writer) error {
			return w.OctetString(skid.KeyID[:])
		})
		if err != nil {
			return err
		}
	}

	if akid := ext.AuthorityKeyID; akid != nil {
		err := encodeExtensionEnvelope(oidAuthorityKeyID, false, w, func(w *asn1der.Writer) error {
			if err := w.StartSequence(); err != nil {
				return err
			}
			if err := w.Context(0, akid.KeyID[:]); err != nil {
				return err
			}
			return w.EndSequence()
		})
		if err != nil {
			return err
		}
	}

	if err := w.EndSequence(); err != nil {
		return err
	}
	return w.EndContext()
}

// keyUsageBits packs the nine key usage flags into the two-byte,
// bit-reversed-per-byte layout RFC 5280's KeyUsage BIT STRING requires
// (bit 0 of the ASN.1 BIT STRING is digitalSignature, stored as the MSB of
// the first content byte).
func keyUsageBits(ku KeyUsage) []byte {
	out := [2]byte{}
	set := func(bit int, flag KeyUsage) {
		if ku&flag == 0 {
			return
		}
		byteIdx := bit / 8
		bitIdx := 7 - (bit % 8)
		out[byteIdx] |= 1 << uint(bitIdx)
	}
	set(0, KeyUsageDigitalSignature)
	set(1, KeyUsageNonRepudiation)
	set(2, KeyUsageKeyEncipherment)
	set(3, KeyUsageDataEncipherment)
	set(4, KeyUsageKeyAgreement)
	set(5, KeyUsageKeyCertSign)
	set(6, KeyUsageCRLSign)
	set(7, KeyUsageEncipherOnly)
	set(8, KeyUsageDecipherOnly)
	return out[:]
}

// encodeECDSASigValue wraps a raw r||s ECDSA signature in the
// ECDSA-Sig-Value ::= SEQUENCE { r INTEGER, s INTEGER } DER structure
// X.509 carries inside the certificate's BIT STRING signatureValue.
func encodeECDSASigValue(raw []byte) ([]byte, error) {
	if len(raw) != SignatureSize {
		return nil, fmt.Errorf("%w: expected %d bytes, got %d", ErrInvalidSignature, SignatureSize, len(raw))
	}

	buf := make([]byte, SignatureSize+16)
	w := asn1der.NewWriter(buf)
	if err := w.StartSequence(); err != nil {
		return nil, err
	}
	if err := w.Integer(raw[:32]); err != nil {
		return nil, err
	}
	if err := w.Integer(raw[32:]); err != nil {
		return nil, err
	}
	if err := w.EndSequence(); err != nil {
		return nil, err
	}

	out := make([]byte, w.Len())
	copy(out, w.Bytes())
	return out, nil
}
