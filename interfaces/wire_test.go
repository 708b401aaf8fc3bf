package interfaces

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testMessage1() *Message1 {
	msg := &Message1{Report: []byte("remote report")}
	for i := range msg.PublicKey {
		msg.PublicKey[i] = byte(i)
	}
	return msg
}

func TestMessage1_Wire(t *testing.T) {
	msg := testMessage1()

	data, err := msg.MarshalBinary()
	require.NoError(t, err)
	require.Len(t, data, 4+len(msg.Report)+EnclavePublicKeySize)
	assert.Equal(t, uint32(len(msg.Report)), binary.LittleEndian.Uint32(data[:4]))
	assert.Equal(t, msg.Report, data[4:4+len(msg.Report)])
	assert.Equal(t, msg.PublicKey[:], data[4+len(msg.Report):])

	decoded, err := UnmarshalMessage1(data)
	require.NoError(t, err)
	assert.Equal(t, msg, decoded)
}

func TestUnmarshalMessage1_Malformed(t *testing.T) {
	valid, err := testMessage1().MarshalBinary()
	require.NoError(t, err)

	zeroReport := make([]byte, 4+EnclavePublicKeySize)

	oversized := make([]byte, 4+EnclavePublicKeySize)
	binary.LittleEndian.PutUint32(oversized, MaxReportSize+1)

	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"shorter than header", valid[:10]},
		{"truncated public key", valid[:len(valid)-1]},
		{"trailing bytes", append(append([]byte{}, valid...), 0)},
		{"zero report size", zeroReport},
		{"report size over limit", oversized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := UnmarshalMessage1(tt.data)
			assert.ErrorIs(t, err, ErrMalformedMessage)
		})
	}
}

func TestMessage1_MarshalRejectsEmptyReport(t *testing.T) {
	_, err := (&Message1{}).MarshalBinary()
	assert.ErrorIs(t, err, ErrMalformedMessage)
}

func TestMessage2_Wire(t *testing.T) {
	cert, err := NewUserCert([]byte("-----BEGIN CERTIFICATE-----\nMIIB\n-----END CERTIFICATE-----\n"))
	require.NoError(t, err)

	msg := &Message2{
		SharedKeyCiphertextLen: 111,
		KeyShareCiphertextLen:  111,
		UserCert:               cert,
	}
	for i := 0; i < 111; i++ {
		msg.SharedKeyCiphertext[i] = 0xaa
		msg.KeyShareCiphertext[i] = 0xbb
	}

	data, err := msg.MarshalBinary()
	require.NoError(t, err)
	require.Len(t, data, Message2Size)
	assert.Equal(t, 2516, Message2Size)

	// Unused tails of every fixed buffer are zero.
	assert.Equal(t, make([]byte, CiphertextCapacity-111), data[111:CiphertextCapacity])
	assert.Equal(t, make([]byte, CiphertextCapacity-111), data[CiphertextCapacity+111:2*CiphertextCapacity])
	certOff := 2 * CiphertextCapacity
	assert.Equal(t, []byte(cert), data[certOff:certOff+len(cert)])
	assert.Equal(t, make([]byte, MaxUserCertSize-len(cert)), data[certOff+len(cert):certOff+MaxUserCertSize])
	assert.Equal(t, uint32(len(cert)+1), binary.LittleEndian.Uint32(data[Message2Size-4:]))

	decoded, err := UnmarshalMessage2(data)
	require.NoError(t, err)
	assert.Equal(t, CiphertextCapacity, decoded.SharedKeyCiphertextLen)
	assert.Equal(t, msg.SharedKeyCiphertext, decoded.SharedKeyCiphertext)
	assert.Equal(t, msg.KeyShareCiphertext, decoded.KeyShareCiphertext)
	assert.Equal(t, cert, decoded.UserCert)
}

func TestUnmarshalMessage2_Malformed(t *testing.T) {
	valid, err := (&Message2{UserCert: UserCert("cert")}).MarshalBinary()
	require.NoError(t, err)

	withCertLen := func(n uint32) []byte {
		data := append([]byte{}, valid...)
		binary.LittleEndian.PutUint32(data[Message2Size-4:], n)
		return data
	}

	tests := []struct {
		name string
		data []byte
	}{
		{"short", valid[:Message2Size-1]},
		{"long", append(append([]byte{}, valid...), 0)},
		{"cert length zero", withCertLen(0)},
		{"cert length over buffer", withCertLen(MaxUserCertSize + 1)},
		{"cert not terminated", withCertLen(3)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := UnmarshalMessage2(tt.data)
			assert.ErrorIs(t, err, ErrMalformedMessage)
		})
	}
}
