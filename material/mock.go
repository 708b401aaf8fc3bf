package material

import (
	"context"

	"github.com/stretchr/testify/mock"
)

// MockSource mocks the interfaces.MaterialSource interface
type MockSource struct {
	mock.Mock
	URI string
}

// Fetch mocks the Fetch method
func (m *MockSource) Fetch(ctx context.Context) ([]byte, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

// LocationURI returns the configured URI
func (m *MockSource) LocationURI() string {
	return m.URI
}
