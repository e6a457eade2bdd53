package services

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/itinero/backend/internal/models"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
)

func setArgon2TestParams() {
	viper.Set("argon2.time", 1)
	viper.Set("argon2.memory", 64*1024)
	viper.Set("argon2.threads", 4)
	viper.Set("argon2.key_length", 32)
	viper.Set("argon2.salt_length", 16)
	viper.Set("jwt.secret_key", "test-jwt-secret")
	viper.Set("jwt.expiry_hours", 24)
}

func newAuthService(t *testing.T) (*AuthService, sqlmock.Sqlmock) {
	setArgon2TestParams()
	db, dbMock, err := sqlmock.New()
	assert.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewAuthService(db, nil, 50), dbMock
}

func TestPasswordHashing(t *testing.T) {
	setArgon2TestParams()

	t.Run("roundtrip", func(t *testing.T) {
		hash, err := hashPassword("correct horse battery staple")
		assert.NoError(t, err)
		assert.True(t, verifyPassword("correct horse battery staple", hash))
		assert.False(t, verifyPassword("wrong password", hash))
	})

	t.Run("hashes are salted", func(t *testing.T) {
		first, err := hashPassword("same password")
		assert.NoError(t, err)
		second, err := hashPassword("same password")
		assert.NoError(t, err)
		assert.NotEqual(t, first, second)
	})

	t.Run("malformed stored hash fails closed", func(t *testing.T) {
		assert.False(t, verifyPassword("anything", "not-a-valid-hash"))
		assert.False(t, verifyPassword("anything", "a$b$c"))
	})
}

func TestRegister(t *testing.T) {
	t.Run("creates profile and welcome bonus in one transaction", func(t *testing.T) {
		svc, dbMock := newAuthService(t)

		dbMock.ExpectBegin()
		dbMock.ExpectExec(`INSERT INTO profiles`).
			WithArgs(sqlmock.AnyArg(), "ama@example.com", "wanderer_912", "Ama Mensah", sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(1, 1))
		dbMock.ExpectExec(`INSERT INTO points_ledger`).
			WithArgs(sqlmock.AnyArg(), int64(50), models.ReasonWelcome, sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(1, 1))
		dbMock.ExpectCommit()

		body, _ := json.Marshal(RegisterRequest{
			Email:    "Ama@example.com",
			Password: "password123",
			Username: "wanderer_912",
			FullName: "Ama Mensah",
		})
		req := httptest.NewRequest(http.MethodPost, "/auth/register", bytes.NewReader(body))
		w := httptest.NewRecorder()

		svc.Register(w, req)

		assert.Equal(t, http.StatusOK, w.Code)

		var resp AuthResponse
		assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.NotEmpty(t, resp.Token)
		assert.Equal(t, "wanderer_912", resp.User.Username)
		assert.NoError(t, dbMock.ExpectationsWereMet())
	})

	t.Run("rejects invalid payload", func(t *testing.T) {
		svc, _ := newAuthService(t)

		body := []byte(`{"email":"not-an-email","password":"x","username":"ab","full_name":""}`)
		req := httptest.NewRequest(http.MethodPost, "/auth/register", bytes.NewReader(body))
		w := httptest.NewRecorder()

		svc.Register(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("duplicate email maps to conflict", func(t *testing.T) {
		svc, dbMock := newAuthService(t)

		dbMock.ExpectBegin()
		dbMock.ExpectExec(`INSERT INTO profiles`).
			WillReturnError(assert.AnError)
		dbMock.ExpectRollback()

		body, _ := json.Marshal(RegisterRequest{
			Email:    "ama@example.com",
			Password: "password123",
			Username: "wanderer_912",
			FullName: "Ama Mensah",
		})
		req := httptest.NewRequest(http.MethodPost, "/auth/register", bytes.NewReader(body))
		w := httptest.NewRecorder()

		svc.Register(w, req)

		assert.Equal(t, http.StatusConflict, w.Code)
	})
}

func TestLogin(t *testing.T) {
	t.Run("unknown email yields generic unauthorized", func(t *testing.T) {
		svc, dbMock := newAuthService(t)

		dbMock.ExpectQuery(`SELECT id, email, username, full_name, password, role`).
			WithArgs("nobody@example.com").
			WillReturnError(assert.AnError)

		body, _ := json.Marshal(LoginRequest{Email: "nobody@example.com", Password: "password123"})
		req := httptest.NewRequest(http.MethodPost, "/auth/login", bytes.NewReader(body))
		w := httptest.NewRecorder()

		svc.Login(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("wrong password yields the same unauthorized", func(t *testing.T) {
		svc, dbMock := newAuthService(t)

		storedHash, err := hashPassword("the real password")
		assert.NoError(t, err)

		dbMock.ExpectQuery(`SELECT id, email, username, full_name, password, role`).
			WithArgs("ama@example.com").
			WillReturnRows(sqlmock.NewRows([]string{"id", "email", "username", "full_name", "password", "role"}).
				AddRow("user-1", "ama@example.com", "wanderer_912", "Ama Mensah", storedHash, "user"))

		body, _ := json.Marshal(LoginRequest{Email: "ama@example.com", Password: "a wrong guess"})
		req := httptest.NewRequest(http.MethodPost, "/auth/login", bytes.NewReader(body))
		w := httptest.NewRecorder()

		svc.Login(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("valid credentials return token", func(t *testing.T) {
		svc, dbMock := newAuthService(t)

		storedHash, err := hashPassword("password123")
		assert.NoError(t, err)

		dbMock.ExpectQuery(`SELECT id, email, username, full_name, password, role`).
			WithArgs("ama@example.com").
			WillReturnRows(sqlmock.NewRows([]string{"id", "email", "username", "full_name", "password", "role"}).
				AddRow("user-1", "ama@example.com", "wanderer_912", "Ama Mensah", storedHash, "user"))
		dbMock.ExpectExec(`UPDATE profiles SET last_login`).
			WithArgs("user-1").
			WillReturnResult(sqlmock.NewResult(0, 1))

		body, _ := json.Marshal(LoginRequest{Email: "Ama@example.com", Password: "password123"})
		req := httptest.NewRequest(http.MethodPost, "/auth/login", bytes.NewReader(body))
		w := httptest.NewRecorder()

		svc.Login(w, req)

		assert.Equal(t, http.StatusOK, w.Code)

		var resp AuthResponse
		assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.NotEmpty(t, resp.Token)
		assert.Equal(t, "user-1", resp.User.ID)
	})
}
