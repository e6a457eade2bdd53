package services

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/itinero/backend/internal/config"
	"github.com/itinero/backend/internal/models"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func signPayload(payload []byte, secret string) string {
	mac := hmac.New(sha512.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

func newTopupEnv(t *testing.T) (*TopupService, sqlmock.Sqlmock, *MockNotifier) {
	db, dbMock, err := sqlmock.New()
	assert.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	points := NewPointsService(db, nil, 10*time.Minute)
	notifier := new(MockNotifier)
	cfg := &config.PointsConfig{
		PointsPerGHS:    2.5,
		PointsPerNGN:    0.1,
		PointsPerUSD:    10,
		DefaultCurrency: "GHS",
		QuoteTTL:        15 * time.Minute,
	}
	return NewTopupService(db, points, notifier, cfg), dbMock, notifier
}

func TestVerifyWebhookSignature(t *testing.T) {
	payload := []byte(`{"event":"charge.success"}`)

	t.Run("valid signature", func(t *testing.T) {
		assert.True(t, verifyWebhookSignature(payload, signPayload(payload, "secret"), "secret"))
	})

	t.Run("wrong secret", func(t *testing.T) {
		assert.False(t, verifyWebhookSignature(payload, signPayload(payload, "other"), "secret"))
	})

	t.Run("tampered payload", func(t *testing.T) {
		sig := signPayload(payload, "secret")
		assert.False(t, verifyWebhookSignature([]byte(`{"event":"charge.failed"}`), sig, "secret"))
	})

	t.Run("missing signature or secret", func(t *testing.T) {
		assert.False(t, verifyWebhookSignature(payload, "", "secret"))
		assert.False(t, verifyWebhookSignature(payload, signPayload(payload, "secret"), ""))
	})
}

func TestHandleWebhook_SignatureGate(t *testing.T) {
	viper.Set("paystack.secret_key", "test-secret")
	defer viper.Set("paystack.secret_key", "")

	svc, _, _ := newTopupEnv(t)

	payload := []byte(`{"event":"charge.success","data":{"reference":"ref-1","status":"success"}}`)
	req := httptest.NewRequest(http.MethodPost, "/webhooks/paystack", bytes.NewReader(payload))
	req.Header.Set("x-paystack-signature", "deadbeef")
	w := httptest.NewRecorder()

	svc.HandleWebhook(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestHandleWebhook_SettlesOnce(t *testing.T) {
	viper.Set("paystack.secret_key", "test-secret")
	defer viper.Set("paystack.secret_key", "")

	svc, dbMock, notifier := newTopupEnv(t)

	notified := make(chan struct{}, 1)
	notifier.On("TopupSettled", "user-1", int64(250), "ref-1").Run(func(mock.Arguments) {
		notified <- struct{}{}
	}).Return()

	dbMock.ExpectQuery(`SELECT user_id, points FROM points_topups`).
		WithArgs("ref-1").
		WillReturnRows(sqlmock.NewRows([]string{"user_id", "points"}).AddRow("user-1", int64(250)))
	dbMock.ExpectExec(`UPDATE points_topups SET status = 'settled'`).
		WithArgs("ref-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	dbMock.ExpectExec(`INSERT INTO points_ledger`).
		WithArgs("user-1", int64(250), models.ReasonTopup, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	dbMock.ExpectQuery(`SELECT COALESCE\(SUM\(delta\), 0\) FROM points_ledger`).
		WithArgs("user-1").
		WillReturnRows(sqlmock.NewRows([]string{"coalesce"}).AddRow(int64(250)))

	payload := []byte(`{"event":"charge.success","data":{"reference":"ref-1","status":"success","amount":10000,"currency":"GHS","metadata":{"user_id":"user-1"}}}`)
	req := httptest.NewRequest(http.MethodPost, "/webhooks/paystack", bytes.NewReader(payload))
	req.Header.Set("x-paystack-signature", signPayload(payload, "test-secret"))
	w := httptest.NewRecorder()

	svc.HandleWebhook(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	select {
	case <-notified:
	case <-time.After(time.Second):
		t.Fatal("settlement notification never dispatched")
	}
	assert.NoError(t, dbMock.ExpectationsWereMet())
}

func TestHandleWebhook_DuplicateDeliverySkipsCredit(t *testing.T) {
	viper.Set("paystack.secret_key", "test-secret")
	defer viper.Set("paystack.secret_key", "")

	svc, dbMock, notifier := newTopupEnv(t)

	dbMock.ExpectQuery(`SELECT user_id, points FROM points_topups`).
		WithArgs("ref-1").
		WillReturnRows(sqlmock.NewRows([]string{"user_id", "points"}).AddRow("user-1", int64(250)))
	// Already settled: the conditional update touches no rows.
	dbMock.ExpectExec(`UPDATE points_topups SET status = 'settled'`).
		WithArgs("ref-1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	payload := []byte(`{"event":"charge.success","data":{"reference":"ref-1","status":"success","amount":10000,"currency":"GHS","metadata":{"user_id":"user-1"}}}`)
	req := httptest.NewRequest(http.MethodPost, "/webhooks/paystack", bytes.NewReader(payload))
	req.Header.Set("x-paystack-signature", signPayload(payload, "test-secret"))
	w := httptest.NewRecorder()

	svc.HandleWebhook(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.NoError(t, dbMock.ExpectationsWereMet())
	notifier.AssertNotCalled(t, "TopupSettled", mock.Anything, mock.Anything, mock.Anything)
}

func TestHandleWebhook_UnknownReferenceCreatesSessionAndCredits(t *testing.T) {
	viper.Set("paystack.secret_key", "test-secret")
	defer viper.Set("paystack.secret_key", "")

	svc, dbMock, notifier := newTopupEnv(t)

	notified := make(chan struct{}, 1)
	notifier.On("TopupSettled", "user-9", int64(250), "ref-new").Run(func(mock.Arguments) {
		notified <- struct{}{}
	}).Return()

	dbMock.ExpectQuery(`SELECT user_id, points FROM points_topups`).
		WithArgs("ref-new").
		WillReturnError(sql.ErrNoRows)
	// No session on record: one gets created from the event so the
	// idempotency gate has a row to flip, then settlement proceeds.
	dbMock.ExpectExec(`INSERT INTO points_topups`).
		WithArgs("user-9", "ref-new", "GHS", int64(10000), int64(250), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	dbMock.ExpectExec(`UPDATE points_topups SET status = 'settled'`).
		WithArgs("ref-new").
		WillReturnResult(sqlmock.NewResult(0, 1))
	dbMock.ExpectExec(`INSERT INTO points_ledger`).
		WithArgs("user-9", int64(250), models.ReasonTopup, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	dbMock.ExpectQuery(`SELECT COALESCE\(SUM\(delta\), 0\) FROM points_ledger`).
		WithArgs("user-9").
		WillReturnRows(sqlmock.NewRows([]string{"coalesce"}).AddRow(int64(250)))

	payload := []byte(`{"event":"charge.success","data":{"reference":"ref-new","status":"success","amount":10000,"currency":"GHS","metadata":{"user_id":"user-9"}}}`)
	req := httptest.NewRequest(http.MethodPost, "/webhooks/paystack", bytes.NewReader(payload))
	req.Header.Set("x-paystack-signature", signPayload(payload, "test-secret"))
	w := httptest.NewRecorder()

	svc.HandleWebhook(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	select {
	case <-notified:
	case <-time.After(time.Second):
		t.Fatal("settlement notification never dispatched")
	}
	assert.NoError(t, dbMock.ExpectationsWereMet())
}

func TestHandleWebhook_UnknownReferenceWithoutUserIsRejected(t *testing.T) {
	viper.Set("paystack.secret_key", "test-secret")
	defer viper.Set("paystack.secret_key", "")

	svc, dbMock, notifier := newTopupEnv(t)

	dbMock.ExpectQuery(`SELECT user_id, points FROM points_topups`).
		WithArgs("ref-anon").
		WillReturnError(sql.ErrNoRows)

	// No metadata.user_id: nothing to credit, nothing gets written.
	payload := []byte(`{"event":"charge.success","data":{"reference":"ref-anon","status":"success","amount":10000,"currency":"GHS"}}`)
	req := httptest.NewRequest(http.MethodPost, "/webhooks/paystack", bytes.NewReader(payload))
	req.Header.Set("x-paystack-signature", signPayload(payload, "test-secret"))
	w := httptest.NewRecorder()

	svc.HandleWebhook(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.NoError(t, dbMock.ExpectationsWereMet())
	notifier.AssertNotCalled(t, "TopupSettled", mock.Anything, mock.Anything, mock.Anything)
}

func TestCreateSession_RoundsToMinorUnits(t *testing.T) {
	provider := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Amount int64 `json:"amount"`
		}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, int64(435), body.Amount)
		json.NewEncoder(w).Encode(map[string]any{
			"data": map[string]any{"authorization_url": "https://checkout.example/abc", "reference": "ignored"},
		})
	}))
	defer provider.Close()

	viper.Set("paystack.base_url", provider.URL)
	viper.Set("paystack.secret_key", "test-secret")
	defer func() {
		viper.Set("paystack.base_url", "")
		viper.Set("paystack.secret_key", "")
	}()

	svc, dbMock, _ := newTopupEnv(t)

	// 4.35 GHS rounds to 435 minor units, which quotes 10 points.
	dbMock.ExpectExec(`INSERT INTO points_topups`).
		WithArgs("user-1", sqlmock.AnyArg(), "GHS", int64(435), int64(10), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	body := []byte(`{"amount":4.35,"email":"ama@example.com"}`)
	req := httptest.NewRequest(http.MethodPost, "/points/topup", bytes.NewReader(body))
	req = req.WithContext(context.WithValue(req.Context(), "userID", "user-1"))
	w := httptest.NewRecorder()

	svc.CreateSession(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		AuthorizationURL string `json:"authorization_url"`
		Points           int64  `json:"points"`
	}
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "https://checkout.example/abc", resp.AuthorizationURL)
	assert.Equal(t, int64(10), resp.Points)
	assert.NoError(t, dbMock.ExpectationsWereMet())
}

func TestGetQuote(t *testing.T) {
	svc, _, _ := newTopupEnv(t)

	t.Run("rounds and prices", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/points/quote?amount=4.35&currency=GHS", nil)
		w := httptest.NewRecorder()

		svc.GetQuote(w, req)

		assert.Equal(t, http.StatusOK, w.Code)

		var resp struct {
			Currency    string `json:"currency"`
			AmountMinor int64  `json:"amount_minor"`
			Points      int64  `json:"points"`
			ExpiresAt   string `json:"expires_at"`
		}
		assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "GHS", resp.Currency)
		assert.Equal(t, int64(435), resp.AmountMinor)
		assert.Equal(t, int64(10), resp.Points)

		expiry, err := time.Parse(time.RFC3339, resp.ExpiresAt)
		assert.NoError(t, err)
		assert.WithinDuration(t, time.Now().Add(15*time.Minute), expiry, time.Minute)
	})

	t.Run("missing currency falls back to default", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/points/quote?amount=100", nil)
		w := httptest.NewRecorder()

		svc.GetQuote(w, req)

		assert.Equal(t, http.StatusOK, w.Code)

		var resp struct {
			Currency string `json:"currency"`
			Points   int64  `json:"points"`
		}
		assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "GHS", resp.Currency)
		assert.Equal(t, int64(250), resp.Points)
	})

	t.Run("rejects bad amount and unsupported currency", func(t *testing.T) {
		for _, target := range []string{
			"/points/quote",
			"/points/quote?amount=0",
			"/points/quote?amount=-5",
			"/points/quote?amount=10&currency=EUR",
		} {
			w := httptest.NewRecorder()
			svc.GetQuote(w, httptest.NewRequest(http.MethodGet, target, nil))
			assert.Equal(t, http.StatusBadRequest, w.Code, target)
		}
	})
}

func TestHandleWebhook_IgnoresOtherEvents(t *testing.T) {
	viper.Set("paystack.secret_key", "test-secret")
	defer viper.Set("paystack.secret_key", "")

	svc, dbMock, _ := newTopupEnv(t)

	payload := []byte(`{"event":"charge.failed","data":{"reference":"ref-1","status":"failed"}}`)
	req := httptest.NewRequest(http.MethodPost, "/webhooks/paystack", bytes.NewReader(payload))
	req.Header.Set("x-paystack-signature", signPayload(payload, "test-secret"))
	w := httptest.NewRecorder()

	svc.HandleWebhook(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.NoError(t, dbMock.ExpectationsWereMet())
}

func TestPointsFor(t *testing.T) {
	cfg := &config.PointsConfig{PointsPerGHS: 2.5, PointsPerNGN: 0.1, PointsPerUSD: 10}

	assert.Equal(t, int64(250), cfg.PointsFor("GHS", 10000))
	assert.Equal(t, int64(50), cfg.PointsFor("NGN", 50000))
	assert.Equal(t, int64(100), cfg.PointsFor("USD", 1000))
	assert.Equal(t, int64(0), cfg.PointsFor("EUR", 10000))
}
