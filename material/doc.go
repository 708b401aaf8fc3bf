// Package material loads operator material (the provider identity key, the provisioned
// secrets, the user certificate and the trusted enclave signing key) from local files,
// HashiCorp Vault, S3 compatible object storage or IPFS.
//
// Locations are URIs:
//
//	file:///etc/provisioner/private_key.pem
//	vault://vault.internal:8200/secret/provisioner?field=shared_key
//	s3://bucket/provisioner/key_share?region=eu-central-1
//	ipfs://localhost:5001/<cid>
//
// A location without a scheme is a local file path. Missing material is reported as
// interfaces.ErrMaterialNotFound and unreachable backends as interfaces.ErrBackendUnavailable,
// both of which are configuration errors.
package material
