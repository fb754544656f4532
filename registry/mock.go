package registry

import (
	"context"
	"math/big"

	"github.com/ruteri/people-registry/interfaces"
	"github.com/stretchr/testify/mock"
)

// MockTreasury mocks the Treasury interface
type MockTreasury struct {
	mock.Mock
}

// Payout mocks the Payout method
func (m *MockTreasury) Payout(ctx context.Context, to interfaces.Identity, amount *big.Int) error {
	args := m.Called(ctx, to, amount)
	return args.Error(0)
}

// MockStateStore mocks the StateStore interface
type MockStateStore struct {
	mock.Mock
}

// Load mocks the Load method
func (m *MockStateStore) Load(ctx context.Context, key string) ([]byte, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

// Save mocks the Save method
func (m *MockStateStore) Save(ctx context.Context, key string, data []byte) error {
	args := m.Called(ctx, key, data)
	return args.Error(0)
}

// Available mocks the Available method
func (m *MockStateStore) Available(ctx context.Context) bool {
	args := m.Called(ctx)
	return args.Bool(0)
}

// Name returns a fixed name for logging
func (m *MockStateStore) Name() string {
	return "mock-state-store"
}

// LocationURI returns a fixed location
func (m *MockStateStore) LocationURI() string {
	return "mock:"
}
