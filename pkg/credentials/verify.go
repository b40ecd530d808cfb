package credentials

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/sha256"
	"fmt"
	"math/big"
)

// VerifyChainStart begins a certificate chain verification rooted at cert.
// Each AddCert call checks that cert was issued by the candidate parent —
// both that the parent's key signed it and that the authority/subject key
// identifiers line up — then hands back a verifier for the parent, so a
// chain verifies link by link from leaf to root:
//
//	err := noc.VerifyChainStart().
//		MustAddCert(icac).
//		MustAddCert(rcac).
//		Finalise()
//
// A verifier is consumed by each call; reusing one after AddCert/Finalise
// has run on it operates on a stale, already-superseded link.
type CertVerifier struct {
	cert *Certificate
	err  error
}

// VerifyChainStart returns a CertVerifier for cert.
func (c *Certificate) VerifyChainStart() CertVerifier {
	return CertVerifier{cert: c}
}

// IsAuthority reports whether c's authority key identifier matches their's
// subject key identifier, i.e. whether their is a plausible issuer of c.
func (c *Certificate) IsAuthority(their *Certificate) bool {
	ourAuthKey := c.AuthorityKeyID()
	if ourAuthKey == nil {
		return false
	}
	theirSubjectKey := their.SubjectKeyID()
	if theirSubjectKey == nil {
		return false
	}
	if len(ourAuthKey) != len(theirSubjectKey) {
		return false
	}
	for i := range ourAuthKey {
		if ourAuthKey[i] != theirSubjectKey[i] {
			return false
		}
	}
	return true
}

// AddCert verifies that v's certificate was signed by parent, returning a
// verifier for parent so the next link up the chain can be checked.
func (v CertVerifier) AddCert(parent *Certificate) (CertVerifier, error) {
	if !v.cert.IsAuthority(parent) {
		return CertVerifier{}, ErrInvalidAuthKey
	}

	tbs, err := EncodeTBSDER(v.cert)
	if err != nil {
		return CertVerifier{}, fmt.Errorf("encode tbs: %w", err)
	}

	pub, err := parseP256PublicKey(parent.ECPubKey)
	if err != nil {
		return CertVerifier{}, fmt.Errorf("parent public key: %w", err)
	}

	if len(v.cert.Signature) != SignatureSize {
		return CertVerifier{}, fmt.Errorf("%w: signature length %d", ErrInvalidSignature, len(v.cert.Signature))
	}

	hash := sha256.Sum256(tbs)
	r := new(big.Int).SetBytes(v.cert.Signature[:32])
	s := new(big.Int).SetBytes(v.cert.Signature[32:])
	if !ecdsa.Verify(pub, hash[:], r, s) {
		return CertVerifier{}, ErrChainVerifyFailed
	}

	return CertVerifier{cert: parent}, nil
}

// MustAddCert is AddCert for fluent chaining; once a link fails, later
// MustAddCert calls pass the error along unchanged and Finalise returns the
// first error encountered. Prefer AddCert directly when per-link errors need
// distinguishing.
func (v CertVerifier) MustAddCert(parent *Certificate) CertVerifier {
	if v.err != nil {
		return v
	}
	next, err := v.AddCert(parent)
	if err != nil {
		return CertVerifier{cert: nil, err: err}
	}
	return next
}

// Finalise verifies the current certificate is self-signed, the terminal
// check for a root CA certificate at the top of a chain.
func (v CertVerifier) Finalise() error {
	if v.err != nil {
		return v.err
	}
	if v.cert == nil {
		return ErrInvalidCertificate
	}
	_, err := v.AddCert(v.cert)
	return err
}

// parseP256PublicKey parses an uncompressed P-256 public key (65 bytes,
// 0x04 prefix followed by X||Y).
func parseP256PublicKey(data []byte) (*ecdsa.PublicKey, error) {
	if len(data) != PublicKeySize || data[0] != 0x04 {
		return nil, ErrInvalidPublicKey
	}
	x := new(big.Int).SetBytes(data[1:33])
	y := new(big.Int).SetBytes(data[33:65])
	return &ecdsa.PublicKey{Curve: elliptic.P256(), X: x, Y: y}, nil
}
