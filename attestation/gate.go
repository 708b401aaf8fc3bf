package attestation

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/ruteri/tee-secret-provisioner/interfaces"
)

// Mode selects how strictly message1 is checked before secrets are released.
type Mode string

const (
	// ModeSimulation bypasses the gate. Only for non-production testing.
	ModeSimulation Mode = "simulation"

	// ModeHardware runs the full remote attestation gate.
	ModeHardware Mode = "hardware"
)

// ModeFromString parses a configured attestation mode.
func ModeFromString(str string) (Mode, error) {
	switch Mode(str) {
	case ModeSimulation:
		return ModeSimulation, nil
	case ModeHardware:
		return ModeHardware, nil
	default:
		return "", fmt.Errorf("%w: unknown attestation mode %q", errors.ErrUnsupported, str)
	}
}

// Gate decides whether a message1 may receive secrets.
type Gate interface {
	Mode() Mode

	// Verify returns nil only if every check passed. Rejections are *Error values
	// wrapping one of the interfaces.ErrAttestationFailure sub-reasons.
	Verify(msg1 *interfaces.Message1) error
}

// Error is an attestation rejection. Reason is one of interfaces.ErrReportVerificationFailed,
// ErrSignerMismatch, ErrPolicyViolation or ErrReportDataMismatch.
type Error struct {
	Reason error

	// Field names the offending report field for policy violations.
	Field string

	Detail string
}

func (e *Error) Error() string {
	msg := e.Reason.Error()
	if e.Field != "" {
		msg += " (" + e.Field + ")"
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Reason
}

// NewGate returns the gate for mode. Hardware mode requires a report verifier and a
// trusted signer key.
func NewGate(mode Mode, verifier interfaces.ReportVerifier, signerKey SignerKeyLoader, policy Policy, log *slog.Logger) (Gate, error) {
	switch mode {
	case ModeSimulation:
		return NewSimulationGate(log), nil
	case ModeHardware:
		if verifier == nil {
			return nil, fmt.Errorf("%w: hardware attestation requires a report verifier", interfaces.ErrConfiguration)
		}
		if signerKey == nil {
			return nil, fmt.Errorf("%w: hardware attestation requires a trusted signer key", interfaces.ErrConfiguration)
		}
		return NewHardwareGate(verifier, signerKey, policy, log), nil
	default:
		return nil, fmt.Errorf("%w: unknown attestation mode %q", interfaces.ErrConfiguration, mode)
	}
}
