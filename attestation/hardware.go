package attestation

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/binary"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/ruteri/tee-secret-provisioner/cryptoutils"
	"github.com/ruteri/tee-secret-provisioner/interfaces"
)

// Policy is the minimum product and version an enclave must report.
type Policy struct {
	// ProductID is the only accepted product identifier (little-endian uint16).
	ProductID uint16

	// MinSecurityVersion is the lowest accepted security version.
	MinSecurityVersion uint32

	// AllowDebug admits enclaves running in debug mode.
	AllowDebug bool
}

// DefaultPolicy accepts product 1 at security version 1 or later, non-debug only.
func DefaultPolicy() Policy {
	return Policy{ProductID: 1, MinSecurityVersion: 1}
}

// SignerKeyLoader provides the trusted enclave signing key.
type SignerKeyLoader interface {
	LoadSignerKey() (cryptoutils.SignerPubkey, error)
}

// FileSignerKey reads the trusted signing key from a file on every verification,
// so an operator can rotate it without restarting the provider.
type FileSignerKey string

func (path FileSignerKey) LoadSignerKey() (cryptoutils.SignerPubkey, error) {
	data, err := os.ReadFile(string(path))
	if err != nil {
		return nil, fmt.Errorf("%w: trusted signer key %q: %v", interfaces.ErrConfiguration, string(path), err)
	}
	return cryptoutils.SignerPubkey(data), nil
}

// StaticSignerKey is a trusted signing key fetched once at startup.
type StaticSignerKey cryptoutils.SignerPubkey

func (key StaticSignerKey) LoadSignerKey() (cryptoutils.SignerPubkey, error) {
	return cryptoutils.SignerPubkey(key), nil
}

// HardwareGate runs the full attestation gate. It performs, in order and stopping at
// the first failure: remote report verification, signer identity check, product and
// security version policy, and report data binding to the enclave public key.
// It never retries.
type HardwareGate struct {
	verifier  interfaces.ReportVerifier
	signerKey SignerKeyLoader
	policy    Policy
	log       *slog.Logger
}

func NewHardwareGate(verifier interfaces.ReportVerifier, signerKey SignerKeyLoader, policy Policy, log *slog.Logger) *HardwareGate {
	return &HardwareGate{
		verifier:  verifier,
		signerKey: signerKey,
		policy:    policy,
		log:       log,
	}
}

func (*HardwareGate) Mode() Mode { return ModeHardware }

func (g *HardwareGate) Verify(msg1 *interfaces.Message1) error {
	g.log.Debug("Running in hardware mode, verifying remote attestation", slog.Int("reportSize", len(msg1.Report)))

	identity, err := g.verifier.VerifyRemoteReport(msg1.Report, nil)
	if err != nil {
		return &Error{Reason: interfaces.ErrReportVerificationFailed, Detail: err.Error()}
	}
	if identity == nil {
		return &Error{Reason: interfaces.ErrReportVerificationFailed, Detail: "verifier returned no identity"}
	}
	g.log.Debug("Remote report verified")

	if err := g.verifySigner(identity); err != nil {
		return err
	}
	g.log.Debug("Signer verification passed")

	if err := g.checkPolicy(identity); err != nil {
		return err
	}

	expected := sha256.Sum256(msg1.PublicKey[:])
	if len(identity.ReportData) < len(expected) ||
		subtle.ConstantTimeCompare(identity.ReportData[:len(expected)], expected[:]) != 1 {
		return &Error{Reason: interfaces.ErrReportDataMismatch, Detail: "report data is not the SHA-256 of the enclave public key"}
	}

	g.log.Info("Remote attestation succeeded",
		slog.String("signerID", fmt.Sprintf("%x", identity.SignerID)),
		slog.Uint64("securityVersion", uint64(identity.SecurityVersion)))
	return nil
}

func (g *HardwareGate) verifySigner(identity *interfaces.ReportIdentity) error {
	signerPEM, err := g.signerKey.LoadSignerKey()
	if err != nil {
		return fmt.Errorf("loading trusted signer key: %w", err)
	}

	check, err := cryptoutils.VerifySigner(signerPEM, identity.SignerID[:])
	if err != nil {
		return fmt.Errorf("computing trusted signer identity: %w", err)
	}

	if !check.Match() {
		mismatches := check.Mismatches()
		pairs := make([]string, len(mismatches))
		for i, m := range mismatches {
			pairs[i] = fmt.Sprintf("%d:0x%02x/0x%02x", m.Offset, m.Expected, m.Reported)
		}
		g.log.Warn("Signer identity mismatch",
			slog.Int("differingBytes", len(mismatches)),
			slog.String("offsets", strings.Join(pairs, " ")))
		return &Error{
			Reason: interfaces.ErrSignerMismatch,
			Detail: fmt.Sprintf("%d of %d bytes differ", len(mismatches), interfaces.SignerIDSize),
		}
	}
	return nil
}

func (g *HardwareGate) checkPolicy(identity *interfaces.ReportIdentity) error {
	if productID := binary.LittleEndian.Uint16(identity.ProductID[:2]); productID != g.policy.ProductID {
		return &Error{
			Reason: interfaces.ErrPolicyViolation,
			Field:  "product_id",
			Detail: fmt.Sprintf("got %d, want %d", productID, g.policy.ProductID),
		}
	}

	if identity.SecurityVersion < g.policy.MinSecurityVersion {
		return &Error{
			Reason: interfaces.ErrPolicyViolation,
			Field:  "security_version",
			Detail: fmt.Sprintf("got %d, want at least %d", identity.SecurityVersion, g.policy.MinSecurityVersion),
		}
	}

	if identity.Debug && !g.policy.AllowDebug {
		return &Error{
			Reason: interfaces.ErrPolicyViolation,
			Field:  "debug",
			Detail: "debug enclaves are not accepted",
		}
	}
	return nil
}
