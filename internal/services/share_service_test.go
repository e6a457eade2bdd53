package services

import (
	"bytes"
	"context"
	"database/sql"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
)

var pngMagic = []byte{0x89, 0x50, 0x4E, 0x47}

func newShareService(t *testing.T) (*ShareService, sqlmock.Sqlmock) {
	db, dbMock, err := sqlmock.New()
	assert.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewShareService(db, nil), dbMock
}

func TestShareURL(t *testing.T) {
	svc, _ := newShareService(t)

	t.Run("default base url", func(t *testing.T) {
		viper.Set("app.base_url", "")
		assert.Equal(t, "https://itinero.app/t/trip-1", svc.ShareURL("trip-1"))
	})

	t.Run("configured base url", func(t *testing.T) {
		viper.Set("app.base_url", "https://staging.itinero.app")
		defer viper.Set("app.base_url", "")
		assert.Equal(t, "https://staging.itinero.app/t/trip-1", svc.ShareURL("trip-1"))
	})
}

func TestShareQR(t *testing.T) {
	ctx := context.Background()

	t.Run("public trip encodes to png", func(t *testing.T) {
		svc, dbMock := newShareService(t)

		dbMock.ExpectQuery(`SELECT is_public FROM trips`).
			WithArgs("trip-1").
			WillReturnRows(sqlmock.NewRows([]string{"is_public"}).AddRow(true))

		image, err := svc.ShareQR(ctx, "trip-1")
		assert.NoError(t, err)
		assert.True(t, bytes.HasPrefix(image, pngMagic))
	})

	t.Run("private trip is not encodable", func(t *testing.T) {
		svc, dbMock := newShareService(t)

		dbMock.ExpectQuery(`SELECT is_public FROM trips`).
			WithArgs("trip-1").
			WillReturnRows(sqlmock.NewRows([]string{"is_public"}).AddRow(false))

		_, err := svc.ShareQR(ctx, "trip-1")
		assert.ErrorIs(t, err, ErrTripNotShared)
	})

	t.Run("unknown trip surfaces ErrNoRows", func(t *testing.T) {
		svc, dbMock := newShareService(t)

		dbMock.ExpectQuery(`SELECT is_public FROM trips`).
			WithArgs("missing").
			WillReturnError(sql.ErrNoRows)

		_, err := svc.ShareQR(ctx, "missing")
		assert.ErrorIs(t, err, sql.ErrNoRows)
	})
}

func TestSetVisibility(t *testing.T) {
	ctx := context.Background()

	t.Run("owner can toggle", func(t *testing.T) {
		svc, dbMock := newShareService(t)

		dbMock.ExpectExec(`UPDATE trips SET is_public`).
			WithArgs(true, "trip-1", "user-1").
			WillReturnResult(sqlmock.NewResult(0, 1))

		assert.NoError(t, svc.SetVisibility(ctx, "trip-1", "user-1", true))
	})

	t.Run("non-owner touches nothing", func(t *testing.T) {
		svc, dbMock := newShareService(t)

		dbMock.ExpectExec(`UPDATE trips SET is_public`).
			WithArgs(true, "trip-1", "intruder").
			WillReturnResult(sqlmock.NewResult(0, 0))

		assert.ErrorIs(t, svc.SetVisibility(ctx, "trip-1", "intruder", true), sql.ErrNoRows)
	})
}
