// Package attestation implements the gate that decides whether an enclave may receive
// provisioned secrets.
//
// The gate is a runtime-selected strategy. SimulationGate accepts everything and exists
// for non-production testing only. HardwareGate performs, in strict order and stopping at
// the first failure:
//
//  1. remote report verification through an interfaces.ReportVerifier
//  2. signer identity: SHA-256 of the trusted RSA key's little-endian modulus must equal
//     the reported signer id
//  3. policy: product id equal to the configured one, security version at least the
//     configured minimum, and no debug enclaves unless allowed
//  4. binding: the first 32 bytes of the report data must be SHA-256 of the enclave's
//     ephemeral public key as carried in message1
//
// Rejections are *Error values that unwrap to the matching interfaces sentinel, so callers
// can test for interfaces.ErrAttestationFailure or for a specific reason. The gate has no
// retries and no cancellation; a caller that needs a deadline enforces it outside and
// treats expiry as a report verification failure.
package attestation
