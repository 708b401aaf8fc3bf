// Package cryptoutils provides the cryptographic building blocks of the service provider.
//
// # Byte order
//
// The provisioning protocol stores every key coordinate and scalar little-endian, while
// Go's math/big and crypto packages produce big-endian integers. Every conversion in this
// package is an explicit, fixed-width reversal:
//
//   - ProviderIdentity holds gx, gy and r, each 32 bytes little-endian
//   - ParseEnclavePublicKey reads the message1 key as little-endian x || y
//   - ComputeSignerDigest hashes the RSA modulus little-endian, as the attestation
//     hardware does when it computes MRSIGNER
//
// # Signer identity
//
// ComputeSignerDigest and VerifySigner recompute the signer identity of a trusted RSA
// signing key and compare it to a reported one. A mismatch is a result, not an error,
// and SignerCheck.Mismatches lists the differing offsets for audit logging.
//
// # Encryption schemes
//
// Secrets are wrapped for the enclave's ephemeral P-256 key with a Scheme selected by
// name. The only scheme is ecies-aesgcm: ECDH, HKDF-SHA256, AES-256-GCM.
//
//	[ephemeral key length (2 bytes LE)][ephemeral key (65)][iv (12)][ciphertext || tag]
//
// A scheme's ciphertext size depends only on the plaintext size, so a receiver can trim
// the fixed-capacity message2 buffers with Scheme.CiphertextSize.
package cryptoutils
