package services

import (
	"context"

	"github.com/itinero/backend/internal/models"
	"github.com/stretchr/testify/mock"
)

type MockPointsLedger struct {
	mock.Mock
}

func (m *MockPointsLedger) SpendPoints(ctx context.Context, userID string, cost int64) (bool, error) {
	args := m.Called(ctx, userID, cost)
	return args.Bool(0), args.Error(1)
}

func (m *MockPointsLedger) ManualDebit(ctx context.Context, userID string, cost int64, reason string) error {
	args := m.Called(ctx, userID, cost, reason)
	return args.Error(0)
}

func (m *MockPointsLedger) CachedBalance(ctx context.Context, userID string) (int64, bool) {
	args := m.Called(ctx, userID)
	return args.Get(0).(int64), args.Bool(1)
}

func (m *MockPointsLedger) RefreshCachedBalance(ctx context.Context, userID string) (int64, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockPointsLedger) Credit(ctx context.Context, userID string, points int64, reason string, meta map[string]any) error {
	args := m.Called(ctx, userID, points, reason, meta)
	return args.Error(0)
}

type MockTripStore struct {
	mock.Mock
}

func (m *MockTripStore) InsertTrip(ctx context.Context, trip *models.Trip) (string, error) {
	args := m.Called(ctx, trip)
	return args.String(0), args.Error(1)
}

func (m *MockTripStore) InsertItineraryItems(ctx context.Context, items []models.ItineraryItem) error {
	args := m.Called(ctx, items)
	return args.Error(0)
}

func (m *MockTripStore) DeleteTrip(ctx context.Context, tripID, userID string) error {
	args := m.Called(ctx, tripID, userID)
	return args.Error(0)
}

type MockPreviewCache struct {
	mock.Mock
}

func (m *MockPreviewCache) Read(ctx context.Context, userID string) (*models.PreviewResponse, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.PreviewResponse), args.Error(1)
}

func (m *MockPreviewCache) Clear(ctx context.Context, userID string) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

type MockCoverResolver struct {
	mock.Mock
}

func (m *MockCoverResolver) GetCoverURL(ctx context.Context, destinationID string) (*string, error) {
	args := m.Called(ctx, destinationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*string), args.Error(1)
}

type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) TripCreated(tripID, userID string) {
	m.Called(tripID, userID)
}

func (m *MockNotifier) TopupSettled(userID string, points int64, reference string) {
	m.Called(userID, points, reference)
}
