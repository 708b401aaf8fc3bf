/*
Command provisioner runs the service provider of the secret provisioning protocol.

	provisioner genkey
	provisioner export-pubkey --format c --out key.c
	provisioner signer-digest --signer-key public_key.pub
	provisioner serve --shared-key vault://vault:8200/secret/provisioner?field=shared_key \
		--key-share s3://bucket/provisioner/key_share \
		--user-cert file:///etc/provisioner/user_cert.pem

The identity key defaults to $PROVISIONER_HOME/private_key.pem and can be set with
$PRIVATE_KEY_PATH. The trusted enclave signing key defaults to
$PROVISIONER_HOME/public_key.pub and is read again for every attestation, so it can be
rotated without a restart.

--attestation-mode simulation disables remote attestation entirely and must never be
used in production.
*/
package main
