package services

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha512"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/itinero/backend/internal/config"
	"github.com/itinero/backend/internal/models"
	"github.com/spf13/viper"
)

// TopupService sells points through a Paystack-style payment provider: it
// initializes a checkout session, then credits the ledger when the provider's
// webhook confirms settlement. Settlement is idempotent per reference.
type TopupService struct {
	db       *sql.DB
	points   *PointsService
	notifier Notifier
	cfg      *config.PointsConfig
	client   *http.Client
}

func NewTopupService(db *sql.DB, points *PointsService, notifier Notifier, cfg *config.PointsConfig) *TopupService {
	return &TopupService{
		db:       db,
		points:   points,
		notifier: notifier,
		cfg:      cfg,
		client:   &http.Client{Timeout: 15 * time.Second},
	}
}

type topupRequest struct {
	Amount   float64 `json:"amount" validate:"required,gt=0"`            // major units
	Currency string  `json:"currency" validate:"omitempty,oneof=GHS NGN USD"`
	Email    string  `json:"email" validate:"omitempty,email"`
}

// CreateSession initializes a points top-up checkout session
// @Summary Create top-up session
// @Description Initialize a payment session for purchasing points; returns the provider checkout URL
// @Tags points
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body topupRequest true "Top-up request"
// @Success 200 {object} object{authorization_url=string,reference=string,points=int64}
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Failure 502 {object} ErrorResponse
// @Router /points/topup [post]
func (s *TopupService) CreateSession(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value("userID").(string)
	if !ok || userID == "" {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, 1_048_576)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	var req topupRequest
	if err := dec.Decode(&req); err != nil {
		SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		SendErrorResponse(w, "Request body must only contain a single JSON object", http.StatusBadRequest, nil)
		return
	}

	if err := NewValidationHelper().ValidateStruct(&req); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	currency := req.Currency
	if currency == "" {
		currency = s.cfg.DefaultCurrency
	}
	// Provider expects minor units (pesewas/kobo/cents). Round, don't
	// truncate: 4.35 must charge 435, not 434.
	amountMinor := int64(math.Round(req.Amount * 100))
	points := s.cfg.PointsFor(currency, amountMinor)
	reference := uuid.NewString()

	authURL, err := s.initializeProviderTransaction(req.Email, reference, userID, currency, amountMinor)
	if err != nil {
		log.Printf("[TOPUP] Provider initialize failed for %s: %v", userID, err)
		SendErrorResponse(w, "Payment provider unavailable", http.StatusBadGateway, nil)
		return
	}

	meta, _ := json.Marshal(map[string]any{"origin": "create_topup_session"})
	_, err = s.db.ExecContext(r.Context(), `
		INSERT INTO points_topups (user_id, reference, status, currency, amount_minor, points, meta, created_at)
		VALUES ($1, $2, 'initialized', $3, $4, $5, $6, NOW())`,
		userID, reference, currency, amountMinor, points, meta)
	if err != nil {
		log.Printf("[TOPUP] Failed to record session %s: %v", reference, err)
		SendErrorResponse(w, "Failed to create top-up session", http.StatusInternalServerError, nil)
		return
	}

	log.Printf("[TOPUP] Session %s initialized for %s: %d %s minor -> %d points", reference, userID, amountMinor, currency, points)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"authorization_url": authURL,
		"reference":         reference,
		"points":            points,
	})
}

// GetQuote prices a prospective top-up without touching the provider
// @Summary Quote top-up points
// @Description Compute how many points a given amount would buy; the quote is valid until expires_at
// @Tags points
// @Produce json
// @Security BearerAuth
// @Param amount query number true "Amount in major units"
// @Param currency query string false "Currency code (default from config)"
// @Success 200 {object} object{currency=string,amount_minor=int64,points=int64,expires_at=string}
// @Failure 400 {object} ErrorResponse
// @Router /points/quote [get]
func (s *TopupService) GetQuote(w http.ResponseWriter, r *http.Request) {
	currency := r.URL.Query().Get("currency")
	if currency == "" {
		currency = s.cfg.DefaultCurrency
	}

	amount, err := strconv.ParseFloat(r.URL.Query().Get("amount"), 64)
	if err != nil || amount <= 0 {
		SendErrorResponse(w, "A positive amount is required", http.StatusBadRequest, nil)
		return
	}

	amountMinor := int64(math.Round(amount * 100))
	points := s.cfg.PointsFor(currency, amountMinor)
	if points <= 0 {
		SendErrorResponse(w, "Unsupported currency", http.StatusBadRequest, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"currency":     currency,
		"amount_minor": amountMinor,
		"points":       points,
		"expires_at":   time.Now().Add(s.cfg.QuoteTTL).UTC().Format(time.RFC3339),
	})
}

func (s *TopupService) initializeProviderTransaction(email, reference, userID, currency string, amountMinor int64) (string, error) {
	if email == "" {
		email = "no-email@itinero.app"
	}
	payload, _ := json.Marshal(map[string]any{
		"email":     email,
		"amount":    amountMinor,
		"currency":  currency,
		"reference": reference,
		"metadata":  map[string]any{"user_id": userID, "source": "itinero-topup"},
	})

	providerURL := viper.GetString("paystack.base_url")
	if providerURL == "" {
		providerURL = "https://api.paystack.co"
	}

	httpReq, err := http.NewRequest(http.MethodPost, providerURL+"/transaction/initialize", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Authorization", "Bearer "+viper.GetString("paystack.secret_key"))
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(httpReq)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("provider returned status %d", resp.StatusCode)
	}

	var result struct {
		Data struct {
			AuthorizationURL string `json:"authorization_url"`
			Reference        string `json:"reference"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", err
	}
	return result.Data.AuthorizationURL, nil
}

// HandleWebhook settles a top-up from the provider's webhook
// @Summary Payment webhook
// @Description Settle a points top-up when the payment provider confirms success; signature-gated
// @Tags points
// @Accept json
// @Produce plain
// @Success 200 {string} string "OK"
// @Failure 401 {string} string "Signature mismatch"
// @Router /webhooks/paystack [post]
func (s *TopupService) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 1_048_576))
	if err != nil {
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}

	signature := r.Header.Get("x-paystack-signature")
	if !verifyWebhookSignature(raw, signature, viper.GetString("paystack.secret_key")) {
		log.Printf("[TOPUP] Webhook signature mismatch from %s", r.RemoteAddr)
		http.Error(w, "Signature mismatch", http.StatusUnauthorized)
		return
	}

	var event struct {
		Event string `json:"event"`
		Data  struct {
			Reference string `json:"reference"`
			Status    string `json:"status"`
			Amount    int64  `json:"amount"`
			Currency  string `json:"currency"`
			Metadata  struct {
				UserID string `json:"user_id"`
			} `json:"metadata"`
		} `json:"data"`
	}
	if err := json.Unmarshal(raw, &event); err != nil {
		log.Printf("[TOPUP] Webhook payload unparseable: %v", err)
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ignored"))
		return
	}

	if event.Event != "charge.success" || event.Data.Status != "success" || event.Data.Reference == "" {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ignored"))
		return
	}

	if err := s.settle(r, event.Data.Reference, event.Data.Metadata.UserID, event.Data.Currency, event.Data.Amount); err != nil {
		log.Printf("[TOPUP] Settlement failed for %s: %v", event.Data.Reference, err)
		// Still 200: the provider retries on non-2xx and settlement is
		// idempotent, but a burst of retries gains nothing here.
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

// settle credits the ledger exactly once per reference and marks the session
// settled. The conditional UPDATE is the idempotency gate against duplicate
// webhook deliveries.
func (s *TopupService) settle(r *http.Request, reference, userID, currency string, amountMinor int64) error {
	ctx := r.Context()

	var sessionUserID string
	var points int64
	sessionMissing := false
	err := s.db.QueryRowContext(ctx, `
		SELECT user_id, points FROM points_topups
		WHERE reference = $1`, reference).Scan(&sessionUserID, &points)
	if err == sql.ErrNoRows {
		// Settlement for a reference we never recorded (session insert lost,
		// or the charge was initialized elsewhere): price it from the event.
		sessionMissing = true
		sessionUserID = userID
		points = s.cfg.PointsFor(currency, amountMinor)
	} else if err != nil {
		return err
	}
	if sessionUserID == "" || points <= 0 {
		return fmt.Errorf("unresolvable settlement: user=%q points=%d", sessionUserID, points)
	}

	if sessionMissing {
		// The idempotency gate below flips initialized -> settled, so the
		// unknown reference needs an initialized row before it can settle.
		meta, _ := json.Marshal(map[string]any{"origin": "paystack_webhook"})
		if _, err := s.db.ExecContext(ctx, `
			INSERT INTO points_topups (user_id, reference, status, currency, amount_minor, points, meta, created_at)
			VALUES ($1, $2, 'initialized', $3, $4, $5, $6, NOW())`,
			sessionUserID, reference, currency, amountMinor, points, meta); err != nil {
			return err
		}
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE points_topups SET status = 'settled'
		WHERE reference = $1 AND status = 'initialized'`, reference)
	if err != nil {
		return err
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		log.Printf("[TOPUP] Reference %s already settled, skipping credit", reference)
		return nil
	}

	if err := s.points.Credit(ctx, sessionUserID, points, models.ReasonTopup, map[string]any{"reference": reference}); err != nil {
		return err
	}

	if _, err := s.points.RefreshCachedBalance(ctx, sessionUserID); err != nil {
		log.Printf("[TOPUP] Balance refresh failed for %s: %v", sessionUserID, err)
	}

	go s.notifier.TopupSettled(sessionUserID, points, reference)

	log.Printf("[TOPUP] Settled %s: credited %d points to %s", reference, points, sessionUserID)
	return nil
}

func verifyWebhookSignature(payload []byte, signature, secret string) bool {
	if signature == "" || secret == "" {
		return false
	}
	mac := hmac.New(sha512.New, []byte(secret))
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}
