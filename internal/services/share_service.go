package services

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"image/png"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/skip2/go-qrcode"
	"github.com/spf13/viper"
)

// ShareService produces share artifacts for public trips. QR images are
// cached in Redis so repeat scans of a popular trip don't re-encode.
type ShareService struct {
	db    *sql.DB
	redis *redis.Client
}

func NewShareService(db *sql.DB, redis *redis.Client) *ShareService {
	return &ShareService{
		db:    db,
		redis: redis,
	}
}

var ErrTripNotShared = fmt.Errorf("trip is not public")

// ShareURL builds the public link for a trip without touching storage.
func (s *ShareService) ShareURL(tripID string) string {
	baseURL := viper.GetString("app.base_url")
	if baseURL == "" {
		baseURL = "https://itinero.app"
	}
	return fmt.Sprintf("%s/t/%s", baseURL, tripID)
}

// ShareQR returns a PNG QR code pointing at the trip's public page. Only
// trips flagged public are encodable.
func (s *ShareService) ShareQR(ctx context.Context, tripID string) ([]byte, error) {
	var isPublic bool
	err := s.db.QueryRowContext(ctx, `
		SELECT is_public FROM trips WHERE id = $1`, tripID).Scan(&isPublic)
	if err != nil {
		return nil, err
	}
	if !isPublic {
		return nil, ErrTripNotShared
	}

	key := fmt.Sprintf("share:qr:%s", tripID)
	if s.redis != nil {
		if cached, err := s.redis.Get(ctx, key).Bytes(); err == nil {
			return cached, nil
		}
	}

	qr, err := qrcode.New(s.ShareURL(tripID), qrcode.Medium)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, qr.Image(256)); err != nil {
		return nil, err
	}

	if s.redis != nil {
		s.redis.Set(ctx, key, buf.Bytes(), 24*time.Hour)
	}

	return buf.Bytes(), nil
}

// SetVisibility toggles whether a trip is publicly viewable. Only the owner
// can change it; flipping a trip private also drops the cached QR.
func (s *ShareService) SetVisibility(ctx context.Context, tripID, userID string, public bool) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE trips SET is_public = $1 WHERE id = $2 AND user_id = $3`,
		public, tripID, userID)
	if err != nil {
		return err
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return sql.ErrNoRows
	}

	if !public && s.redis != nil {
		s.redis.Del(ctx, fmt.Sprintf("share:qr:%s", tripID))
	}
	return nil
}
