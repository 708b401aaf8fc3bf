package interfaces

import (
	"encoding/binary"
	"fmt"
)

// Wire layout, all integers little-endian:
//
//	message1: report_size u32 | report[report_size] | public_key[64]
//	message2: shared_key_ciphertext[256] | key_share_ciphertext[256] | user_cert[2000] | user_cert_len u32

const message1Overhead = 4 + EnclavePublicKeySize

// MaxMessage1Size is the largest message1 accepted from the wire.
const MaxMessage1Size = MaxReportSize + message1Overhead

// MarshalBinary encodes message1.
func (m *Message1) MarshalBinary() ([]byte, error) {
	if len(m.Report) == 0 || len(m.Report) > MaxReportSize {
		return nil, fmt.Errorf("%w: report size %d out of range", ErrMalformedMessage, len(m.Report))
	}

	buf := make([]byte, 0, message1Overhead+len(m.Report))
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(m.Report)))
	buf = append(buf, m.Report...)
	buf = append(buf, m.PublicKey[:]...)
	return buf, nil
}

// UnmarshalMessage1 decodes message1, rejecting truncated input and trailing bytes.
func UnmarshalMessage1(data []byte) (*Message1, error) {
	if len(data) < message1Overhead {
		return nil, fmt.Errorf("%w: message1 is %d bytes: %v", ErrMalformedMessage, len(data), errShortBuffer)
	}

	reportSize := binary.LittleEndian.Uint32(data[:4])
	if reportSize == 0 || reportSize > MaxReportSize {
		return nil, fmt.Errorf("%w: report size %d out of range", ErrMalformedMessage, reportSize)
	}
	if uint64(len(data)) != uint64(message1Overhead)+uint64(reportSize) {
		return nil, fmt.Errorf("%w: message1 is %d bytes, report size %d implies %d", ErrMalformedMessage, len(data), reportSize, uint64(message1Overhead)+uint64(reportSize))
	}

	msg := &Message1{Report: make([]byte, reportSize)}
	copy(msg.Report, data[4:4+reportSize])
	copy(msg.PublicKey[:], data[4+reportSize:])
	return msg, nil
}

// MarshalBinary encodes message2 into its fixed-size layout. Unused buffer tails are zero.
func (m *Message2) MarshalBinary() ([]byte, error) {
	if m.SharedKeyCiphertextLen < 0 || m.SharedKeyCiphertextLen > CiphertextCapacity ||
		m.KeyShareCiphertextLen < 0 || m.KeyShareCiphertextLen > CiphertextCapacity {
		return nil, fmt.Errorf("%w: ciphertext length out of range", ErrMalformedMessage)
	}
	if err := m.UserCert.Validate(); err != nil {
		return nil, err
	}

	buf := make([]byte, Message2Size)
	off := 0
	copy(buf[off:], m.SharedKey())
	off += CiphertextCapacity
	copy(buf[off:], m.KeyShare())
	off += CiphertextCapacity
	copy(buf[off:], m.UserCert)
	off += MaxUserCertSize
	binary.LittleEndian.PutUint32(buf[off:], m.UserCert.WireLen())
	return buf, nil
}

// UnmarshalMessage2 decodes message2. The wire carries no ciphertext lengths, so both
// lengths are set to CiphertextCapacity; the receiver trims them using its scheme.
func UnmarshalMessage2(data []byte) (*Message2, error) {
	if len(data) != Message2Size {
		return nil, fmt.Errorf("%w: message2 must be %d bytes, got %d", ErrMalformedMessage, Message2Size, len(data))
	}

	msg := &Message2{
		SharedKeyCiphertextLen: CiphertextCapacity,
		KeyShareCiphertextLen:  CiphertextCapacity,
	}
	off := 0
	copy(msg.SharedKeyCiphertext[:], data[off:off+CiphertextCapacity])
	off += CiphertextCapacity
	copy(msg.KeyShareCiphertext[:], data[off:off+CiphertextCapacity])
	off += CiphertextCapacity
	certBuf := data[off : off+MaxUserCertSize]
	off += MaxUserCertSize

	certLen := binary.LittleEndian.Uint32(data[off:])
	if certLen < 2 || certLen > MaxUserCertSize {
		return nil, fmt.Errorf("%w: user_cert_len %d out of range", ErrMalformedMessage, certLen)
	}
	if certBuf[certLen-1] != 0 {
		return nil, fmt.Errorf("%w: user certificate is not NUL-terminated", ErrMalformedMessage)
	}

	cert, err := NewUserCert(certBuf[:certLen-1])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}
	msg.UserCert = cert
	return msg, nil
}
