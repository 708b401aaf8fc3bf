// Package provisioner exposes the secret provisioning exchange over HTTP.
//
// The Handler serves two endpoints:
//
//   - POST /api/attested/provision takes message1 in its binary wire format and returns
//     message2. Malformed input is answered with 400, attestation rejections with 403,
//     an attestation gate that does not finish within the verification timeout with 504,
//     and any other failure with 500.
//   - GET /api/public/provider_pubkey returns the provider public key as a C initializer
//     (format=c, the default), a Go source file (format=go) or hex (format=hex).
//
// Every provisioning response carries an X-Provisioning-Session header which matches
// the "session" attribute of the server's log lines for that exchange.
//
// ProvisioningClient is the matching client. It can reach the server over TCP or, with
// NewVsockClient, over AF_VSOCK:
//
//	client := &provisioner.ProvisioningClient{ServerAddr: "http://127.0.0.1:8080"}
//	msg2, err := client.Provision(ctx, msg1)
//	if errors.Is(err, interfaces.ErrAttestationFailure) {
//		// the enclave was not trusted
//	}
package provisioner
