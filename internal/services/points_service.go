package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/itinero/backend/internal/models"
)

// ErrInsufficientPoints is returned when a debit would take the balance
// negative. No ledger entry is written in that case.
var ErrInsufficientPoints = errors.New("insufficient points")

const balanceCacheKey = "points:balance:%s"

// PointsService owns the append-only points ledger. A user's balance is the
// sum of signed deltas; entries are never updated or deleted.
type PointsService struct {
	db       *sql.DB
	redis    *redis.Client
	audit    *LedgerAuditLogger
	cacheTTL time.Duration
}

func NewPointsService(db *sql.DB, redisClient *redis.Client, cacheTTL time.Duration) *PointsService {
	return &PointsService{
		db:       db,
		redis:    redisClient,
		audit:    NewLedgerAuditLogger(),
		cacheTTL: cacheTTL,
	}
}

// SpendPoints invokes the atomic spend_points database function. It returns
// false with no error when the balance is insufficient; any error means the
// function itself was unavailable and the caller may fall back to ManualDebit.
func (s *PointsService) SpendPoints(ctx context.Context, userID string, cost int64) (bool, error) {
	var ok bool
	err := s.db.QueryRowContext(ctx, `SELECT spend_points($1, $2)`, userID, cost).Scan(&ok)
	if err != nil {
		s.audit.LogError(userID, "spend_points", err)
		return false, err
	}
	if ok {
		s.audit.LogDebit(userID, cost, models.ReasonSaveTrip, "rpc")
	}
	return ok, nil
}

// ManualDebit is the fallback debit path: a single guarded insert that only
// writes the entry while the summed balance still covers the cost.
// RowsAffected 0 maps to ErrInsufficientPoints.
func (s *PointsService) ManualDebit(ctx context.Context, userID string, cost int64, reason string) error {
	meta, _ := json.Marshal(map[string]any{"source": "api", "at": time.Now().UTC().Format(time.RFC3339)})
	result, err := s.db.ExecContext(ctx, `
		INSERT INTO points_ledger (user_id, delta, reason, meta, created_at)
		SELECT $1, -$2::bigint, $3, $4, NOW()
		WHERE (SELECT COALESCE(SUM(delta), 0) FROM points_ledger WHERE user_id = $1) >= $2`,
		userID, cost, reason, meta)
	if err != nil {
		s.audit.LogError(userID, "manual_debit", err)
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return ErrInsufficientPoints
	}

	s.audit.LogDebit(userID, cost, reason, "manual")
	return nil
}

// Credit appends a positive ledger entry (refunds, top-ups, bonuses).
func (s *PointsService) Credit(ctx context.Context, userID string, points int64, reason string, meta map[string]any) error {
	if meta == nil {
		meta = map[string]any{}
	}
	meta["at"] = time.Now().UTC().Format(time.RFC3339)
	metaJSON, _ := json.Marshal(meta)

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO points_ledger (user_id, delta, reason, meta, created_at)
		VALUES ($1, $2, $3, $4, NOW())`,
		userID, points, reason, metaJSON)
	if err != nil {
		s.audit.LogError(userID, "credit", err)
		return err
	}

	s.audit.LogCredit(userID, points, reason)
	return nil
}

// CreditTx is Credit inside an existing database transaction.
func (s *PointsService) CreditTx(tx *sql.Tx, userID string, points int64, reason string) error {
	meta, _ := json.Marshal(map[string]any{"at": time.Now().UTC().Format(time.RFC3339)})
	_, err := tx.Exec(`
		INSERT INTO points_ledger (user_id, delta, reason, meta, created_at)
		VALUES ($1, $2, $3, $4, NOW())`,
		userID, points, reason, meta)
	return err
}

// GetBalance computes the authoritative balance from the ledger.
func (s *PointsService) GetBalance(ctx context.Context, userID string) (int64, error) {
	var balance int64
	err := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(delta), 0) FROM points_ledger WHERE user_id = $1`,
		userID).Scan(&balance)
	return balance, err
}

// CachedBalance returns the Redis-cached balance. The second return value is
// false when Redis is unavailable or the key is missing; callers must not
// treat a miss as zero.
func (s *PointsService) CachedBalance(ctx context.Context, userID string) (int64, bool) {
	if s.redis == nil {
		return 0, false
	}
	val, err := s.redis.Get(ctx, fmt.Sprintf(balanceCacheKey, userID)).Result()
	if err != nil {
		return 0, false
	}
	balance, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, false
	}
	return balance, true
}

// RefreshCachedBalance recomputes the balance and writes it through to Redis.
func (s *PointsService) RefreshCachedBalance(ctx context.Context, userID string) (int64, error) {
	balance, err := s.GetBalance(ctx, userID)
	if err != nil {
		return 0, err
	}
	if s.redis != nil {
		if err := s.redis.Set(ctx, fmt.Sprintf(balanceCacheKey, userID), balance, s.cacheTTL).Err(); err != nil {
			log.Printf("[POINTS] Failed to cache balance for %s: %v", userID, err)
		}
	}
	return balance, nil
}

func (s *PointsService) fetchLedger(ctx context.Context, userID string, limit int) ([]models.LedgerEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, delta, reason, COALESCE(meta, '{}'::jsonb), created_at
		FROM points_ledger
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := []models.LedgerEntry{}
	for rows.Next() {
		var e models.LedgerEntry
		if err := rows.Scan(&e.ID, &e.UserID, &e.Delta, &e.Reason, &e.Meta, &e.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// GetPointsBalance returns the current points balance
// @Summary Get points balance
// @Description Retrieve the authoritative points balance for the current user
// @Tags points
// @Produce json
// @Security BearerAuth
// @Success 200 {object} object{balance=int64}
// @Failure 401 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /points/balance [get]
func (s *PointsService) GetPointsBalance(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value("userID").(string)
	if !ok || userID == "" {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	balance, err := s.RefreshCachedBalance(r.Context(), userID)
	if err != nil {
		log.Printf("[POINTS] Balance lookup failed for %s: %v", userID, err)
		SendErrorResponse(w, "Failed to fetch balance", http.StatusInternalServerError, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"balance": balance})
}

// GetLedger lists recent points ledger entries
// @Summary List ledger entries
// @Description Get recent points ledger entries for the current user
// @Tags points
// @Produce json
// @Security BearerAuth
// @Param limit query int false "Number of entries to return (default: 20, max: 100)"
// @Success 200 {object} object{entries=[]models.LedgerEntry,count=int}
// @Failure 401 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /points/ledger [get]
func (s *PointsService) GetLedger(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value("userID").(string)
	if !ok || userID == "" {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	limit := 20
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l >= 1 && l <= 100 {
			limit = l
		}
	}

	entries, err := s.fetchLedger(r.Context(), userID, limit)
	if err != nil {
		log.Printf("[POINTS] Ledger fetch failed for %s: %v", userID, err)
		SendErrorResponse(w, "Failed to fetch ledger", http.StatusInternalServerError, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"entries": entries,
		"count":   len(entries),
	})
}
