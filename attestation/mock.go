package attestation

import (
	"github.com/ruteri/tee-secret-provisioner/interfaces"
	"github.com/stretchr/testify/mock"
)

// MockReportVerifier mocks the interfaces.ReportVerifier interface
type MockReportVerifier struct {
	mock.Mock
}

// VerifyRemoteReport mocks the VerifyRemoteReport method
func (m *MockReportVerifier) VerifyRemoteReport(report []byte, endorsements []byte) (*interfaces.ReportIdentity, error) {
	args := m.Called(report, endorsements)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*interfaces.ReportIdentity), args.Error(1)
}

// MockGate mocks the Gate interface
type MockGate struct {
	mock.Mock
}

// Mode mocks the Mode method
func (m *MockGate) Mode() Mode {
	args := m.Called()
	return args.Get(0).(Mode)
}

// Verify mocks the Verify method
func (m *MockGate) Verify(msg1 *interfaces.Message1) error {
	args := m.Called(msg1)
	return args.Error(0)
}
