package cryptoutils

import (
	"crypto/rsa"
	"crypto/sha256"
	"crypto/subtle"
	"crypto/x509"
	"encoding/pem"
	"fmt"

	"github.com/ruteri/tee-secret-provisioner/interfaces"
)

// GetRSAPublicKey returns the parsed RSA signing key.
// It fails with interfaces.ErrNotRSAKey for well-formed keys of any other algorithm.
func (pub SignerPubkey) GetRSAPublicKey() (*rsa.PublicKey, error) {
	if len(pub) == 0 {
		return nil, fmt.Errorf("%w: %v", interfaces.ErrKeyParse, errEmptyKey)
	}

	block, _ := pem.Decode(pub)
	if block == nil {
		return nil, fmt.Errorf("%w: signer key is not in PEM format", interfaces.ErrKeyParse)
	}

	var parsed any
	var err error
	switch block.Type {
	case "RSA PUBLIC KEY":
		parsed, err = x509.ParsePKCS1PublicKey(block.Bytes)
	case "PUBLIC KEY":
		parsed, err = x509.ParsePKIXPublicKey(block.Bytes)
	default:
		return nil, fmt.Errorf("%w: unexpected PEM block %q", interfaces.ErrKeyParse, block.Type)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", interfaces.ErrKeyParse, err)
	}

	rsaKey, ok := parsed.(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("%w: signer key is %T", interfaces.ErrNotRSAKey, parsed)
	}
	return rsaKey, nil
}

// ComputeSignerDigest returns the signer identity the attestation hardware reports
// for enclaves signed with signerPEM: SHA-256 over the RSA modulus in little-endian
// byte order, at the full key width.
func ComputeSignerDigest(signerPEM []byte) ([interfaces.SignerIDSize]byte, error) {
	rsaKey, err := SignerPubkey(signerPEM).GetRSAPublicKey()
	if err != nil {
		return [interfaces.SignerIDSize]byte{}, err
	}

	modulus := make([]byte, rsaKey.Size())
	rsaKey.N.FillBytes(modulus)
	ReverseBytes(modulus)

	return sha256.Sum256(modulus), nil
}

// ByteMismatch is one differing position between the expected and reported signer identity.
type ByteMismatch struct {
	Offset   int
	Expected byte
	Reported byte
}

// SignerCheck is the outcome of comparing a computed signer digest with a reported one.
type SignerCheck struct {
	Expected [interfaces.SignerIDSize]byte
	Reported [interfaces.SignerIDSize]byte
}

// Match reports whether the reported signer identity equals the expected one.
func (c *SignerCheck) Match() bool {
	return subtle.ConstantTimeCompare(c.Expected[:], c.Reported[:]) == 1
}

// Mismatches lists the differing byte positions, for diagnostics.
func (c *SignerCheck) Mismatches() []ByteMismatch {
	var res []ByteMismatch
	for i := range c.Expected {
		if c.Expected[i] != c.Reported[i] {
			res = append(res, ByteMismatch{Offset: i, Expected: c.Expected[i], Reported: c.Reported[i]})
		}
	}
	return res
}

// VerifySigner compares the signer digest of signerPEM against reportedSignerID.
// A mismatch is reported through SignerCheck.Match, not as an error; errors are
// reserved for unusable inputs.
func VerifySigner(signerPEM []byte, reportedSignerID []byte) (*SignerCheck, error) {
	if len(reportedSignerID) != interfaces.SignerIDSize {
		return nil, fmt.Errorf("%w: reported signer id is %d bytes, want %d", interfaces.ErrMalformedMessage, len(reportedSignerID), interfaces.SignerIDSize)
	}

	expected, err := ComputeSignerDigest(signerPEM)
	if err != nil {
		return nil, err
	}

	check := &SignerCheck{Expected: expected}
	copy(check.Reported[:], reportedSignerID)
	return check, nil
}
