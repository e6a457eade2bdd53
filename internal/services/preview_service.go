package services

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/itinero/backend/internal/models"
)

// ErrNoPreview is returned when the user has no cached preview.
var ErrNoPreview = errors.New("no preview available")

// PreviewService holds each user's latest generated trip preview in Redis
// until it is saved as a trip or replaced. The preview is the only piece of
// itinerary state that is not durable: losing it only forces regeneration.
type PreviewService struct {
	redis *redis.Client
	ttl   time.Duration
}

func NewPreviewService(redisClient *redis.Client, ttl time.Duration) *PreviewService {
	return &PreviewService{redis: redisClient, ttl: ttl}
}

func (s *PreviewService) key(userID string) string {
	return "preview:" + userID
}

// Store replaces the user's cached preview.
func (s *PreviewService) Store(ctx context.Context, userID string, preview *models.PreviewResponse) error {
	if s.redis == nil {
		return errors.New("preview cache unavailable")
	}
	data, err := json.Marshal(preview)
	if err != nil {
		return err
	}
	return s.redis.Set(ctx, s.key(userID), data, s.ttl).Err()
}

// Read returns the cached preview, or ErrNoPreview when none exists.
func (s *PreviewService) Read(ctx context.Context, userID string) (*models.PreviewResponse, error) {
	if s.redis == nil {
		return nil, ErrNoPreview
	}
	data, err := s.redis.Get(ctx, s.key(userID)).Bytes()
	if err == redis.Nil {
		return nil, ErrNoPreview
	}
	if err != nil {
		return nil, err
	}

	var preview models.PreviewResponse
	if err := json.Unmarshal(data, &preview); err != nil {
		return nil, err
	}
	return &preview, nil
}

// Clear deletes the cached preview. Deleting a missing key is not an error.
func (s *PreviewService) Clear(ctx context.Context, userID string) error {
	if s.redis == nil {
		return nil
	}
	return s.redis.Del(ctx, s.key(userID)).Err()
}
