package credentials

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/asn1"
	"encoding/pem"
	"fmt"
	"math/big"
)

// X509PEMToMatter parses a PEM-encoded X.509 certificate and converts it to
// a Matter TLV Certificate.
//
// This is the inverse of MatterToX509/MatterToX509PEM, used to validate
// this package against the Matter specification's own X.509 test vectors: a
// certificate published as PEM should round-trip to the exact TLV bytes the
// specification also publishes for it. Unlike the TLV-to-DER path, which has
// to reproduce one very specific byte layout and so is built on
// pkg/asn1der, parsing arbitrary third-party X.509 DER has no such
// constraint, so it goes through the standard library's X.509 parser rather
// than a hand-rolled one.
func X509PEMToMatter(pemBytes []byte) (*Certificate, error) {
	block, _ := pem.Decode(pemBytes)
	if block == nil {
		return nil, fmt.Errorf("%w: no PEM block found", ErrX509ParseFailed)
	}
	return X509DERToMatter(block.Bytes)
}

// X509DERToMatter converts a DER-encoded X.509 certificate to a Matter TLV
// Certificate.
func X509DERToMatter(der []byte) (*Certificate, error) {
	xc, err := x509.ParseCertificate(der)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrX509ParseFailed, err)
	}

	if xc.SignatureAlgorithm != x509.ECDSAWithSHA256 {
		return nil, fmt.Errorf("%w: signature algorithm %v", ErrUnsupportedX509Feature, xc.SignatureAlgorithm)
	}

	pub, ok := xc.PublicKey.(*ecdsa.PublicKey)
	if !ok || pub.Curve != elliptic.P256() {
		return nil, fmt.Errorf("%w: public key is not P-256 ECDSA", ErrUnsupportedX509Feature)
	}

	issuer, err := x509NamesToDN(xc.Issuer.Names)
	if err != nil {
		return nil, fmt.Errorf("issuer: %w", err)
	}
	subject, err := x509NamesToDN(xc.Subject.Names)
	if err != nil {
		return nil, fmt.Errorf("subject: %w", err)
	}

	sig, err := x509SignatureToRaw(xc.Signature)
	if err != nil {
		return nil, fmt.Errorf("signature: %w", err)
	}

	notAfter := TimeToMatterEpoch(xc.NotAfter)
	if xc.NotAfter.Year() >= 9999 {
		notAfter = 0
	}

	cert := &Certificate{
		SerialNum:  xc.SerialNumber.Bytes(),
		SigAlgo:    SignatureAlgoECDSASHA256,
		Issuer:     issuer,
		NotBefore:  TimeToMatterEpoch(xc.NotBefore),
		NotAfter:   notAfter,
		Subject:    subject,
		PubKeyAlgo: PublicKeyAlgoEC,
		ECCurveID:  EllipticCurvePrime256v1,
		ECPubKey:   ecPointToBytes(pub),
		Extensions: x509ExtensionsToMatter(xc),
		Signature:  sig,
	}

	return cert, nil
}

// x509NamesToDN converts the RDN sequence pkix parsed out of an X.509 name
// into a Matter DistinguishedName, preserving attribute order.
func x509NamesToDN(names []pkix.AttributeTypeAndValue) (DistinguishedName, error) {
	dn := make(DistinguishedName, 0, len(names))
	for _, atv := range names {
		tag := OIDToTag(atv.Type)
		if tag == 0 {
			return nil, fmt.Errorf("%w: %v", ErrUnsupportedOID, atv.Type)
		}

		if IsMatterSpecificTag(tag) {
			s, ok := atv.Value.(string)
			if !ok {
				return nil, fmt.Errorf("%w: matter-specific attribute is not a string", ErrInvalidDN)
			}
			value, err := HexStringToMatterSpecific(s)
			if err != nil {
				return nil, fmt.Errorf("%w: %v", ErrInvalidDN, err)
			}
			dn = append(dn, NewDNUint64(tag, value))
			continue
		}

		s, ok := atv.Value.(string)
		if !ok {
			return nil, fmt.Errorf("%w: attribute is not a string", ErrInvalidDN)
		}
		dn = append(dn, NewDNString(tag, s))
	}
	return dn, nil
}

// x509ExtensionsToMatter reads the extensions the standard library already
// decoded into typed Certificate fields and rebuilds the Matter Extensions
// list from them.
func x509ExtensionsToMatter(xc *x509.Certificate) Extensions {
	var ext Extensions

	if xc.BasicConstraintsValid {
		bc := &BasicConstraints{IsCA: xc.IsCA}
		if xc.IsCA && xc.MaxPathLen >= 0 && (xc.MaxPathLen > 0 || xc.MaxPathLenZero) {
			pl := uint8(xc.MaxPathLen)
			bc.PathLenConstraint = &pl
		}
		ext.BasicConstraints = bc
	}

	if xc.KeyUsage != 0 {
		ext.KeyUsage = &KeyUsageExt{Usage: KeyUsage(xc.KeyUsage)}
	}

	if len(xc.ExtKeyUsage) > 0 {
		eku := &ExtendedKeyUsageExt{}
		for _, u := range xc.ExtKeyUsage {
			if kp := x509ExtKeyUsageToMatter(u); kp != KeyPurposeUnknown {
				eku.KeyPurposes = append(eku.KeyPurposes, kp)
			}
		}
		ext.ExtendedKeyUsage = eku
	}

	if len(xc.SubjectKeyId) == 20 {
		ski := &SubjectKeyIDExt{}
		copy(ski.KeyID[:], xc.SubjectKeyId)
		ext.SubjectKeyID = ski
	}

	if len(xc.AuthorityKeyId) == 20 {
		aki := &AuthorityKeyIDExt{}
		copy(aki.KeyID[:], xc.AuthorityKeyId)
		ext.AuthorityKeyID = aki
	}

	return ext
}

func x509ExtKeyUsageToMatter(u x509.ExtKeyUsage) KeyPurposeID {
	switch u {
	case x509.ExtKeyUsageServerAuth:
		return KeyPurposeServerAuth
	case x509.ExtKeyUsageClientAuth:
		return KeyPurposeClientAuth
	case x509.ExtKeyUsageCodeSigning:
		return KeyPurposeCodeSigning
	case x509.ExtKeyUsageEmailProtection:
		return KeyPurposeEmailProtection
	case x509.ExtKeyUsageTimeStamping:
		return KeyPurposeTimeStamping
	case x509.ExtKeyUsageOCSPSigning:
		return KeyPurposeOCSPSigning
	default:
		return KeyPurposeUnknown
	}
}

// ecdsaSigValue mirrors the ECDSA-Sig-Value ASN.1 structure so the
// signature bit string on a parsed certificate can be split back into raw
// r || s form.
type ecdsaSigValue struct {
	R, S *big.Int
}

// x509SignatureToRaw converts a DER-encoded ECDSA-Sig-Value (as found in an
// X.509 certificate's signatureValue) to the raw 64-byte r||s form Matter
// certificates carry.
func x509SignatureToRaw(der []byte) ([]byte, error) {
	var sig ecdsaSigValue
	if _, err := asn1.Unmarshal(der, &sig); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSignatureConversionFailed, err)
	}

	raw := make([]byte, SignatureSize)
	rb := sig.R.Bytes()
	sb := sig.S.Bytes()
	if len(rb) > 32 || len(sb) > 32 {
		return nil, fmt.Errorf("%w: signature component too large", ErrSignatureConversionFailed)
	}
	copy(raw[32-len(rb):32], rb)
	copy(raw[64-len(sb):64], sb)
	return raw, nil
}

// ecPointToBytes marshals an EC public key as an uncompressed point
// (0x04 || X || Y, each coordinate fixed to the curve's byte width).
func ecPointToBytes(pub *ecdsa.PublicKey) []byte {
	byteLen := (pub.Curve.Params().BitSize + 7) / 8
	out := make([]byte, 1+2*byteLen)
	out[0] = 0x04
	pub.X.FillBytes(out[1 : 1+byteLen])
	pub.Y.FillBytes(out[1+byteLen : 1+2*byteLen])
	return out
}
