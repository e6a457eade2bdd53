package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/itinero/backend/internal/models"
)

// FailureKind classifies how a save attempt failed so handlers can map each
// kind to user-facing behavior instead of inspecting error strings.
type FailureKind string

const (
	FailInsufficientPoints FailureKind = "insufficient_points"
	FailNotAuthenticated   FailureKind = "not_authenticated"
	FailPreviewMissing     FailureKind = "preview_missing"
	FailPersistence        FailureKind = "persistence_failed"
)

// WorkflowError is the single error type returned by SaveDraftAsTrip.
type WorkflowError struct {
	Kind FailureKind
	Err  error
}

func (e *WorkflowError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("save trip failed (%s): %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("save trip failed (%s)", e.Kind)
}

func (e *WorkflowError) Unwrap() error { return e.Err }

// CompensationResult records what the compensation step did after a
// post-payment failure. Compensation is best-effort: a failed refund is
// logged, never retried, because an automatic retry risks double-refunding.
type CompensationResult struct {
	Attempted   bool   `json:"attempted"`
	Refunded    bool   `json:"refunded"`
	TripDeleted bool   `json:"trip_deleted"`
	Error       string `json:"error,omitempty"`
}

// SaveOutcome is the successful result of the workflow.
type SaveOutcome struct {
	TripID     string `json:"trip_id"`
	NewBalance *int64 `json:"balance,omitempty"`
}

// Boundary dependencies, injected so tests can substitute fakes.

type pointsLedger interface {
	SpendPoints(ctx context.Context, userID string, cost int64) (bool, error)
	ManualDebit(ctx context.Context, userID string, cost int64, reason string) error
	CachedBalance(ctx context.Context, userID string) (int64, bool)
	RefreshCachedBalance(ctx context.Context, userID string) (int64, error)
	Credit(ctx context.Context, userID string, points int64, reason string, meta map[string]any) error
}

type tripStore interface {
	InsertTrip(ctx context.Context, trip *models.Trip) (string, error)
	InsertItineraryItems(ctx context.Context, items []models.ItineraryItem) error
	DeleteTrip(ctx context.Context, tripID, userID string) error
}

type previewCache interface {
	Read(ctx context.Context, userID string) (*models.PreviewResponse, error)
	Clear(ctx context.Context, userID string) error
}

type coverResolver interface {
	GetCoverURL(ctx context.Context, destinationID string) (*string, error)
}

// SaveTripService converts a cached trip preview into a durable trip exactly
// once, gated by a points debit, compensating with a refund (and orphan-trip
// delete) when persistence fails after payment.
type SaveTripService struct {
	points      pointsLedger
	trips       tripStore
	previews    previewCache
	covers      coverResolver
	notifier    Notifier
	redis       *redis.Client
	defaultCost int64
}

func NewSaveTripService(points pointsLedger, trips tripStore, previews previewCache,
	covers coverResolver, notifier Notifier, redisClient *redis.Client, defaultCost int64) *SaveTripService {
	return &SaveTripService{
		points:      points,
		trips:       trips,
		previews:    previews,
		covers:      covers,
		notifier:    notifier,
		redis:       redisClient,
		defaultCost: defaultCost,
	}
}

// acquireLock prevents a second in-flight save for the same user. Without
// Redis there is no guard; correctness then rests on the atomic debit alone.
func (s *SaveTripService) acquireLock(ctx context.Context, userID string) (bool, func()) {
	if s.redis == nil {
		return true, func() {}
	}
	key := "save:lock:" + userID
	ok, err := s.redis.SetNX(ctx, key, "1", 2*time.Minute).Result()
	if err != nil {
		log.Printf("[SAVE_TRIP] Lock acquire failed for %s, proceeding unguarded: %v", userID, err)
		return true, func() {}
	}
	if !ok {
		return false, func() {}
	}
	return true, func() {
		if err := s.redis.Del(context.Background(), key).Err(); err != nil {
			log.Printf("[SAVE_TRIP] Lock release failed for %s: %v", userID, err)
		}
	}
}

// SaveDraftAsTrip runs the full save workflow for the authenticated user.
// Steps run in strict order; each remote call must complete before the next
// starts because later steps depend on earlier postconditions (the committed
// payment flag, the generated trip id).
func (s *SaveTripService) SaveDraftAsTrip(ctx context.Context, userID string, cost int64) (*SaveOutcome, *WorkflowError) {
	if userID == "" {
		return nil, &WorkflowError{Kind: FailNotAuthenticated}
	}
	if cost <= 0 {
		cost = s.defaultCost
	}

	acquired, release := s.acquireLock(ctx, userID)
	if !acquired {
		return nil, &WorkflowError{Kind: FailPersistence, Err: fmt.Errorf("save already in progress")}
	}
	defer release()

	// Optimistic short-circuit on the cached balance. A cache miss proceeds:
	// only the server-side debit below is authoritative.
	if cached, known := s.points.CachedBalance(ctx, userID); known && cached < cost {
		return nil, &WorkflowError{Kind: FailInsufficientPoints}
	}

	preview, err := s.previews.Read(ctx, userID)
	if err != nil {
		if err == ErrNoPreview {
			return nil, &WorkflowError{Kind: FailPreviewMissing}
		}
		return nil, &WorkflowError{Kind: FailPersistence, Err: err}
	}

	// Authoritative debit: atomic function first, guarded manual insert as
	// fallback when the function itself errors. Exactly one debit can land.
	paymentCommitted := false
	ok, err := s.points.SpendPoints(ctx, userID, cost)
	if err != nil {
		log.Printf("[SAVE_TRIP] spend_points unavailable for %s, falling back to manual debit: %v", userID, err)
		if err := s.points.ManualDebit(ctx, userID, cost, models.ReasonSaveTrip); err != nil {
			if err == ErrInsufficientPoints {
				return nil, &WorkflowError{Kind: FailInsufficientPoints}
			}
			return nil, &WorkflowError{Kind: FailInsufficientPoints, Err: err}
		}
		paymentCommitted = true
	} else if !ok {
		return nil, &WorkflowError{Kind: FailInsufficientPoints}
	} else {
		paymentCommitted = true
	}

	tripID, persistErr := s.persistTrip(ctx, userID, preview)
	if persistErr != nil {
		comp := s.compensate(ctx, userID, cost, tripID, paymentCommitted)
		log.Printf("[SAVE_TRIP] Persistence failed for %s (compensation: %+v): %v", userID, comp, persistErr)
		return nil, &WorkflowError{Kind: FailPersistence, Err: persistErr}
	}

	// Post-commit side effects are best-effort: each failure is logged and
	// swallowed, the save still reports success.
	outcome := &SaveOutcome{TripID: tripID}
	if balance, err := s.points.RefreshCachedBalance(ctx, userID); err != nil {
		log.Printf("[SAVE_TRIP] Balance refresh failed for %s: %v", userID, err)
	} else {
		outcome.NewBalance = &balance
	}

	if err := s.previews.Clear(ctx, userID); err != nil {
		log.Printf("[SAVE_TRIP] Preview cleanup failed for %s: %v", userID, err)
	}

	go s.notifier.TripCreated(tripID, userID)

	log.Printf("[SAVE_TRIP] Trip %s saved for %s (cost %d)", tripID, userID, cost)
	return outcome, nil
}

// persistTrip creates the trip row and its itinerary items. It returns the
// trip id even on item-insert failure so compensation can remove the orphan.
func (s *SaveTripService) persistTrip(ctx context.Context, userID string, preview *models.PreviewResponse) (string, error) {
	trip := buildTripRow(userID, preview)

	// Cover image: destinations table is the source of truth, preview input
	// cover is the fallback, null otherwise. Lookup failure is non-fatal.
	if trip.DestinationID != nil {
		coverURL, err := s.covers.GetCoverURL(ctx, *trip.DestinationID)
		if err != nil {
			log.Printf("[SAVE_TRIP] Cover lookup failed for destination %s: %v", *trip.DestinationID, err)
		} else if coverURL != nil {
			trip.CoverURL = coverURL
		}
	}

	tripID, err := s.trips.InsertTrip(ctx, trip)
	if err != nil {
		return "", fmt.Errorf("trip insert: %w", err)
	}

	items := flattenItems(tripID, preview)
	if len(items) > 0 {
		if err := s.trips.InsertItineraryItems(ctx, items); err != nil {
			return tripID, fmt.Errorf("itinerary items insert: %w", err)
		}
	}

	return tripID, nil
}

// compensate reverses the points debit and removes an orphaned trip row after
// a post-payment failure. Both actions are best-effort and never escalate.
func (s *SaveTripService) compensate(ctx context.Context, userID string, cost int64, tripID string, paymentCommitted bool) CompensationResult {
	result := CompensationResult{}
	if !paymentCommitted {
		return result
	}

	result.Attempted = true
	meta := map[string]any{"source": "api"}
	if err := s.points.Credit(ctx, userID, cost, models.ReasonRefundSave, meta); err != nil {
		result.Error = err.Error()
		log.Printf("[SAVE_TRIP] Refund failed for %s (cost %d): %v", userID, cost, err)
	} else {
		result.Refunded = true
	}

	if tripID != "" {
		if err := s.trips.DeleteTrip(ctx, tripID, userID); err != nil {
			log.Printf("[SAVE_TRIP] Orphan trip cleanup failed for %s: %v", tripID, err)
		} else {
			result.TripDeleted = true
		}
	}

	return result
}

// buildTripRow derives the durable trip row from the preview. The title comes
// from the first destination name, falling back to a generic label.
func buildTripRow(userID string, preview *models.PreviewResponse) *models.Trip {
	trip := &models.Trip{
		UserID: userID,
		Title:  "Trip",
	}

	summary := preview.TripSummary
	trip.EstTotalCost = summary.EstTotalCost
	trip.Currency = summary.Currency
	trip.StartDate = summary.StartDate
	trip.EndDate = summary.EndDate

	ins := summary.Inputs
	if ins != nil {
		if ins.StartDate != nil {
			trip.StartDate = ins.StartDate
		}
		if ins.EndDate != nil {
			trip.EndDate = ins.EndDate
		}
		if len(ins.Destinations) > 0 {
			first := ins.Destinations[0]
			if first.Name != "" {
				trip.Title = first.Name + " Trip"
			}
			trip.DestinationID = first.ID
			trip.CoverURL = first.CoverURL
		}
		if inputsJSON, err := json.Marshal(ins); err == nil {
			trip.Inputs = inputsJSON
		}
	}

	return trip
}

// flattenItems turns every day's blocks into itinerary item rows, in day
// order then block order, all referencing the freshly created trip id.
func flattenItems(tripID string, preview *models.PreviewResponse) []models.ItineraryItem {
	items := []models.ItineraryItem{}
	for dayIndex, day := range preview.Days {
		for orderIndex, block := range day.Blocks {
			items = append(items, models.ItineraryItem{
				TripID:            tripID,
				DayIndex:          dayIndex,
				Date:              day.Date,
				OrderIndex:        orderIndex,
				When:              block.When,
				PlaceID:           block.PlaceID,
				Title:             block.Title,
				EstCost:           block.EstCost,
				DurationMin:       block.DurationMin,
				TravelMinFromPrev: block.TravelMinFromPrev,
				Notes:             block.Notes,
			})
		}
	}
	return items
}
