// Package provider implements the service provider side of the secret provisioning
// protocol.
//
// A ServiceProvider is built once from operator material (its identity key, the two
// secrets and the user certificate) and an attestation gate. ProcessMessage1 takes the
// enclave's message1, checks the enclave public key, runs the gate and, if the enclave
// is trusted, encrypts the shared key and the key share to the enclave's ephemeral key:
//
//	sp, err := provider.New(&provider.Config{
//		Identity: identity,
//		Secrets:  secrets,
//		UserCert: userCert,
//		Gate:     gate,
//		Log:      log,
//	})
//	msg2, size, err := sp.ProcessMessage1(msg1)
//
// Errors wrap the categories declared in the interfaces package; no message2 is ever
// returned together with an error.
package provider
