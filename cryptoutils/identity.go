package cryptoutils

import (
	"bufio"
	"crypto/ecdsa"
	"crypto/elliptic"
	"fmt"
	"io"
	"math/big"
	"os"
	"strings"

	"github.com/ruteri/tee-secret-provisioner/interfaces"
)

// EC256PublicKey is a P-256 public point stored little-endian, the layout enclaves
// embed as sgx_ec256_public_t.
type EC256PublicKey struct {
	GX [interfaces.ECP256KeySize]byte
	GY [interfaces.ECP256KeySize]byte
}

// EC256PrivateKey is a P-256 scalar stored little-endian.
type EC256PrivateKey struct {
	R [interfaces.ECP256KeySize]byte
}

// ProviderIdentity is the provider's long-term key pair in canonical little-endian storage.
// It is immutable once loaded.
type ProviderIdentity struct {
	PublicKey  EC256PublicKey
	PrivateKey EC256PrivateKey
}

// LoadProviderIdentity reads a PEM-encoded EC private key from path.
func LoadProviderIdentity(path string) (*ProviderIdentity, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: private key file %q: %v (generate one with `openssl ecparam -name prime256v1 -genkey` and set $PRIVATE_KEY_PATH)", interfaces.ErrKeyFileNotFound, path, err)
	}

	identity, err := ParseProviderIdentity(data)
	if err != nil {
		return nil, fmt.Errorf("%w: unable to read private key from %q: %w", interfaces.ErrConfiguration, path, err)
	}
	return identity, nil
}

// ParseProviderIdentity derives the canonical identity from a PEM-encoded EC private key.
func ParseProviderIdentity(privPEM []byte) (*ProviderIdentity, error) {
	key, err := ProviderPrivkey(privPEM).GetECDSAPrivateKey()
	if err != nil {
		return nil, err
	}
	return NewProviderIdentity(key), nil
}

// NewProviderIdentity converts a P-256 key from the big-endian integers the crypto
// library produces into little-endian storage.
func NewProviderIdentity(key *ecdsa.PrivateKey) *ProviderIdentity {
	identity := &ProviderIdentity{}
	putLittleEndian(identity.PublicKey.GX[:], key.X)
	putLittleEndian(identity.PublicKey.GY[:], key.Y)
	putLittleEndian(identity.PrivateKey.R[:], key.D)
	return identity
}

// PublicKeyECDSA returns the public key as an ecdsa.PublicKey.
func (id *ProviderIdentity) PublicKeyECDSA() *ecdsa.PublicKey {
	return &ecdsa.PublicKey{
		Curve: elliptic.P256(),
		X:     fromLittleEndian(id.PublicKey.GX[:]),
		Y:     fromLittleEndian(id.PublicKey.GY[:]),
	}
}

// PublicKeyBytes returns gx || gy, both little-endian.
func (id *ProviderIdentity) PublicKeyBytes() [interfaces.EnclavePublicKeySize]byte {
	var res [interfaces.EnclavePublicKeySize]byte
	copy(res[:interfaces.ECP256KeySize], id.PublicKey.GX[:])
	copy(res[interfaces.ECP256KeySize:], id.PublicKey.GY[:])
	return res
}

// PublicKeyFormat selects the source language of an exported public key.
type PublicKeyFormat string

const (
	PublicKeyFormatC  PublicKeyFormat = "c"
	PublicKeyFormatGo PublicKeyFormat = "go"
)

// ExportPublicKeyCode writes the public key as a source-embeddable constant, so that a
// relying enclave or client can hard-code the provider key at build time.
func (id *ProviderIdentity) ExportPublicKeyCode(w io.Writer, format PublicKeyFormat) error {
	bw := bufio.NewWriter(w)

	switch format {
	case PublicKeyFormatC:
		fmt.Fprintf(bw, "#include \"key.h\"\n")
		fmt.Fprintf(bw, "const sgx_ec256_public_t g_sp_pub_key = {\n")
		fmt.Fprintf(bw, "{%s},\n", byteList(id.PublicKey.GX[:]))
		fmt.Fprintf(bw, "{%s}\n", byteList(id.PublicKey.GY[:]))
		fmt.Fprintf(bw, "};\n")
	case PublicKeyFormatGo:
		pub := id.PublicKeyBytes()
		fmt.Fprintf(bw, "// Code generated by provisioner export-pubkey. DO NOT EDIT.\n\n")
		fmt.Fprintf(bw, "package spkey\n\n")
		fmt.Fprintf(bw, "// ProviderPublicKey is the service provider P-256 key, little-endian gx || gy.\n")
		fmt.Fprintf(bw, "var ProviderPublicKey = [%d]byte{\n", len(pub))
		for i := 0; i < len(pub); i += 8 {
			fmt.Fprintf(bw, "\t%s,\n", byteList(pub[i:i+8]))
		}
		fmt.Fprintf(bw, "}\n")
	default:
		return fmt.Errorf("unsupported public key format %q", format)
	}

	return bw.Flush()
}

func byteList(b []byte) string {
	parts := make([]string, len(b))
	for i, v := range b {
		parts[i] = fmt.Sprintf("0x%02x", v)
	}
	return strings.Join(parts, ", ")
}

// ReverseBytes reverses b in place.
func ReverseBytes(b []byte) {
	for i, j := 0, len(b)-1; i < j; i, j = i+1, j-1 {
		b[i], b[j] = b[j], b[i]
	}
}

// putLittleEndian writes v into dst as a fixed-width little-endian integer.
// FillBytes panics if v does not fit, which cannot happen for P-256 values.
func putLittleEndian(dst []byte, v *big.Int) {
	v.FillBytes(dst)
	ReverseBytes(dst)
}

func fromLittleEndian(src []byte) *big.Int {
	be := make([]byte, len(src))
	copy(be, src)
	ReverseBytes(be)
	return new(big.Int).SetBytes(be)
}
