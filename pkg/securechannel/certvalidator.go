package securechannel

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/sha256"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/chip-node/matter-core/pkg/credentials"
	casesession "github.com/chip-node/matter-core/pkg/securechannel/case"
)

// Certificate validation errors.
var (
	ErrCertificateParseFailed  = errors.New("securechannel: failed to parse certificate")
	ErrCertificateTypeMismatch = errors.New("securechannel: certificate type mismatch")
	ErrCertificateExpired      = errors.New("securechannel: certificate expired")
	ErrCertificateNotYetValid  = errors.New("securechannel: certificate not yet valid")
	ErrCertificateChainBroken  = errors.New("securechannel: certificate chain validation failed")
	ErrSignatureVerifyFailed   = errors.New("securechannel: signature verification failed")
	ErrPublicKeyMismatch       = errors.New("securechannel: root public key mismatch")
	ErrMissingNodeID           = errors.New("securechannel: NOC missing node ID")
	ErrMissingFabricID         = errors.New("securechannel: NOC missing fabric ID")
	ErrFabricIDMismatch        = errors.New("securechannel: fabric ID mismatch in certificate chain")
)

// NewCertValidator creates a ValidatePeerCertChainFunc that uses pkg/credentials
// to parse and validate certificates.
//
// This validator:
//  1. Parses the NOC (and ICAC if present) from Matter TLV format
//  2. Verifies the certificate signatures form a valid chain
//  3. Validates certificate types (NOC → ICAC → RCAC)
//  4. Checks certificate validity periods
//  5. Extracts and returns the peer's node ID, fabric ID, and public key
//
// The trustedRootPubKey parameter must be the expected RCAC public key (65 bytes).
func NewCertValidator() casesession.ValidatePeerCertChainFunc {
	return func(nocBytes []byte, icacBytes []byte, trustedRootPubKey [65]byte) (*casesession.PeerCertInfo, error) {
		// 1. Parse NOC
		noc, err := credentials.DecodeTLV(nocBytes)
		if err != nil {
			return nil, fmt.Errorf("%w: NOC: %v", ErrCertificateParseFailed, err)
		}

		// 2. Verify NOC is actually a NOC
		if noc.Type() != credentials.CertTypeNOC {
			return nil, fmt.Errorf("%w: expected NOC, got %s", ErrCertificateTypeMismatch, noc.Type())
		}

		// 3. Parse ICAC if present
		var icac *credentials.Certificate
		if len(icacBytes) > 0 {
			icac, err = credentials.DecodeTLV(icacBytes)
			if err != nil {
				return nil, fmt.Errorf("%w: ICAC: %v", ErrCertificateParseFailed, err)
			}

			// Verify ICAC is actually an ICAC
			if icac.Type() != credentials.CertTypeICAC {
				return nil, fmt.Errorf("%w: expected ICAC, got %s", ErrCertificateTypeMismatch, icac.Type())
			}
		}

		// 4. Validate certificate chain
		if err := validateCertChain(noc, icac, trustedRootPubKey); err != nil {
			return nil, err
		}

		// 5. Validate validity periods
		now := time.Now()
		if err := validateCertTime(noc, now); err != nil {
			return nil, fmt.Errorf("NOC: %w", err)
		}
		if icac != nil {
			if err := validateCertTime(icac, now); err != nil {
				return nil, fmt.Errorf("ICAC: %w", err)
			}
		}

		// 6. Extract peer info from NOC
		nodeID := noc.NodeID()
		if nodeID == 0 {
			return nil, ErrMissingNodeID
		}

		fabricID := noc.FabricID()
		if fabricID == 0 {
			return nil, ErrMissingFabricID
		}

		// 7. Extract public key
		var pubKey [65]byte
		if len(noc.ECPubKey) != 65 {
			return nil, fmt.Errorf("%w: invalid public key length %d", ErrCertificateParseFailed, len(noc.ECPubKey))
		}
		copy(pubKey[:], noc.ECPubKey)

		return &casesession.PeerCertInfo{
			NodeID:    nodeID,
			FabricID:  fabricID,
			PublicKey: pubKey,
		}, nil
	}
}

// validateCertChain validates the certificate chain: NOC → ICAC (optional) → RCAC.
// The trustedRootPubKey is the expected RCAC public key. Signatures are
// verified over the DER encoding of the to-be-signed certificate, exactly
// as Matter's X.509 re-encoding does, via credentials.EncodeTBSDER.
func validateCertChain(noc, icac *credentials.Certificate, trustedRootPubKey [65]byte) error {
	if icac != nil {
		// ICAC should be signed by RCAC (trustedRootPubKey). The caller
		// only hands us the root's raw public key, not a full RCAC
		// certificate, so the authority/subject key ID linkage that
		// credentials.CertVerifier checks for a cert-to-cert link can't
		// be evaluated here; only the signature itself is checked.
		if err := verifySignatureAgainstKey(icac, trustedRootPubKey); err != nil {
			return fmt.Errorf("%w: ICAC signature: %v", ErrCertificateChainBroken, err)
		}

		// Verify fabric IDs match
		nocFabricID := noc.FabricID()
		icacFabricID := icac.FabricID()
		if icacFabricID != 0 && nocFabricID != icacFabricID {
			return ErrFabricIDMismatch
		}

		if _, err := noc.VerifyChainStart().AddCert(icac); err != nil {
			return fmt.Errorf("%w: NOC signature: %v", ErrCertificateChainBroken, err)
		}
		return nil
	}

	// NOC should be signed directly by RCAC.
	if err := verifySignatureAgainstKey(noc, trustedRootPubKey); err != nil {
		return fmt.Errorf("%w: NOC signature: %v", ErrCertificateChainBroken, err)
	}
	return nil
}

// verifySignatureAgainstKey verifies that cert was signed by signerPubKey,
// hashing the DER tbsCertificate the same way credentials.CertVerifier does
// for a cert-to-cert link.
func verifySignatureAgainstKey(cert *credentials.Certificate, signerPubKey [65]byte) error {
	pubKey, err := parseP256PublicKey(signerPubKey[:])
	if err != nil {
		return fmt.Errorf("parse signer key: %w", err)
	}

	tbs, err := credentials.EncodeTBSDER(cert)
	if err != nil {
		return fmt.Errorf("encode tbs: %w", err)
	}

	if len(cert.Signature) != credentials.SignatureSize {
		return fmt.Errorf("invalid signature length: %d", len(cert.Signature))
	}

	hash := sha256.Sum256(tbs)
	r := new(big.Int).SetBytes(cert.Signature[:32])
	s := new(big.Int).SetBytes(cert.Signature[32:])

	if !ecdsa.Verify(pubKey, hash[:], r, s) {
		return ErrSignatureVerifyFailed
	}

	return nil
}

// parseP256PublicKey parses an uncompressed P-256 public key (65 bytes with 0x04 prefix).
func parseP256PublicKey(data []byte) (*ecdsa.PublicKey, error) {
	if len(data) != 65 || data[0] != 0x04 {
		return nil, fmt.Errorf("invalid uncompressed public key")
	}

	x := new(big.Int).SetBytes(data[1:33])
	y := new(big.Int).SetBytes(data[33:65])

	return &ecdsa.PublicKey{
		Curve: elliptic.P256(),
		X:     x,
		Y:     y,
	}, nil
}

// validateCertTime validates the certificate's validity period.
func validateCertTime(cert *credentials.Certificate, now time.Time) error {
	notBefore := cert.NotBeforeTime()
	if now.Before(notBefore) {
		return ErrCertificateNotYetValid
	}

	notAfter := cert.NotAfterTime()
	// Zero time means no expiration
	if !notAfter.IsZero() && now.After(notAfter) {
		return ErrCertificateExpired
	}

	return nil
}

// NewSkipCertValidator creates a validator that skips certificate validation.
// This is for testing only and should NEVER be used in production.
func NewSkipCertValidator() casesession.ValidatePeerCertChainFunc {
	return func(nocBytes []byte, icacBytes []byte, trustedRootPubKey [65]byte) (*casesession.PeerCertInfo, error) {
		// Parse NOC to extract info, but don't validate signatures
		noc, err := credentials.DecodeTLV(nocBytes)
		if err != nil {
			return nil, fmt.Errorf("%w: NOC: %v", ErrCertificateParseFailed, err)
		}

		nodeID := noc.NodeID()
		if nodeID == 0 {
			nodeID = 1 // Default for testing
		}

		fabricID := noc.FabricID()
		if fabricID == 0 {
			fabricID = 1 // Default for testing
		}

		var pubKey [65]byte
		if len(noc.ECPubKey) == 65 {
			copy(pubKey[:], noc.ECPubKey)
		}

		return &casesession.PeerCertInfo{
			NodeID:    nodeID,
			FabricID:  fabricID,
			PublicKey: pubKey,
		}, nil
	}
}
