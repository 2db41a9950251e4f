package service

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/synk/synk-server-go/internal/model"
)

type mockCodeRepo struct {
	mock.Mock
}

func (m *mockCodeRepo) FindValidByCode(ctx context.Context, code string, now time.Time) (*model.PairingCode, error) {
	args := m.Called(ctx, code, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.PairingCode), args.Error(1)
}

func (m *mockCodeRepo) FindLatestByCode(ctx context.Context, code string) (*model.PairingCode, error) {
	args := m.Called(ctx, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.PairingCode), args.Error(1)
}

func (m *mockCodeRepo) FindValidByIssuer(ctx context.Context, issuerID string, now time.Time) ([]model.PairingCode, error) {
	args := m.Called(ctx, issuerID, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.PairingCode), args.Error(1)
}

func (m *mockCodeRepo) Create(ctx context.Context, params model.CreatePairingCodeParams) (*model.PairingCode, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.PairingCode), args.Error(1)
}

func (m *mockCodeRepo) RevokeByIssuer(ctx context.Context, issuerID string) (int64, error) {
	args := m.Called(ctx, issuerID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockCodeRepo) DeleteExpired(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

type mockPairRepo struct {
	mock.Mock
}

func (m *mockPairRepo) FindByAccountID(ctx context.Context, accountID string) (*model.Pair, error) {
	args := m.Called(ctx, accountID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Pair), args.Error(1)
}

func (m *mockPairRepo) CreateFromCode(ctx context.Context, params model.RedeemCodeParams) (*model.Pair, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Pair), args.Error(1)
}

func (m *mockPairRepo) DeleteByAccountID(ctx context.Context, accountID string) (*model.Pair, error) {
	args := m.Called(ctx, accountID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Pair), args.Error(1)
}

type mockPartnerResolver struct {
	mock.Mock
}

func (m *mockPartnerResolver) GetPartner(ctx context.Context, accountID string) (string, bool, error) {
	args := m.Called(ctx, accountID)
	return args.String(0), args.Bool(1), args.Error(2)
}
