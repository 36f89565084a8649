package subscription

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/finfx/finfx-server/cmd/models"
	"github.com/finfx/finfx-server/cmd/utils"
)

// newMockDB opens a gorm session over a scripted sqlmock connection, so
// handlers can run against storage without a live database.
func newMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()

	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	return db, mock
}

// authedRequest builds a request carrying the identity AuthMiddleware
// would have injected.
func authedRequest(method, target, body string, userID uint, role string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	ctx := context.WithValue(req.Context(), utils.UserIDKey, userID)
	ctx = context.WithValue(ctx, utils.RoleKey, role)
	return req.WithContext(ctx)
}

func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder) utils.Response {
	t.Helper()
	var resp utils.Response
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return resp
}

// expectBotPackageLookup scripts the package resolution the create handler
// runs first: the bot package row and its preloaded package.
func expectBotPackageLookup(mock sqlmock.Sqlmock) {
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "bot_packages"`)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "bot_id", "package_id", "price"}).
			AddRow(9, 3, 4, 49.99))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "packages"`)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "duration"}).
			AddRow(4, "Monthly", 30))
}

// expectScopedReconcile scripts the expiry update that precedes conflict
// checks and reads, flipping rowsFlipped stale rows.
func expectScopedReconcile(mock sqlmock.Sqlmock, rowsFlipped int64) {
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "bot_subscriptions" SET`)).
		WillReturnResult(sqlmock.NewResult(0, rowsFlipped))
	mock.ExpectCommit()
}

func TestCreateSubscriptionConflict(t *testing.T) {
	db, mock := newMockDB(t)
	h := NewHandler(db)

	expectBotPackageLookup(mock)
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "users"`)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(7))
	expectScopedReconcile(mock, 0)
	// One live row holds the (user, bot) slot.
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT count(*) FROM "bot_subscriptions"`)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	rec := httptest.NewRecorder()
	h.handleCreateSubscription(rec, authedRequest(http.MethodPost, "/subscriptions",
		`{"botPackageId":9,"lotSize":0.5}`, 7, models.RoleUser))

	assert.Equal(t, http.StatusConflict, rec.Code)
	resp := decodeResponse(t, rec)
	assert.Equal(t, "fail", resp.Status)
	assert.Equal(t, "already-subscribed", resp.ErrorCode)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateSubscriptionRenewsAfterExpiry(t *testing.T) {
	db, mock := newMockDB(t)
	h := NewHandler(db)

	now := time.Now()

	expectBotPackageLookup(mock)
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "users"`)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(7))
	// The lapsed row flips to expired here and frees the slot, so the
	// conflict check below sees no live rows.
	expectScopedReconcile(mock, 1)
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT count(*) FROM "bot_subscriptions"`)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT count(*) FROM "users"`)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT count(*) FROM "bots"`)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT count(*) FROM "bot_packages"`)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO "bot_subscriptions"`)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(42))
	mock.ExpectCommit()

	// Reload with preloads for the response body.
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "bot_subscriptions"`)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "bot_id", "bot_package_id", "lot_size", "status", "subscribed_at", "expires_at"}).
			AddRow(42, 7, 3, 9, 0.5, "active", now, now.AddDate(0, 0, 30)))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "bots"`)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).AddRow(3, "Aurora"))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "bot_packages"`)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "bot_id", "package_id", "price"}).
			AddRow(9, 3, 4, 49.99))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "packages"`)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "duration"}).
			AddRow(4, "Monthly", 30))

	rec := httptest.NewRecorder()
	h.handleCreateSubscription(rec, authedRequest(http.MethodPost, "/subscriptions",
		`{"botPackageId":9,"lotSize":0.5}`, 7, models.RoleUser))

	assert.Equal(t, http.StatusCreated, rec.Code)
	resp := decodeResponse(t, rec)
	assert.Equal(t, "success", resp.Status)

	data, ok := resp.Data.(map[string]interface{})
	require.True(t, ok)
	sub, ok := data["subscription"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, float64(42), sub["id"])
	assert.Equal(t, "active", sub["status"])
	assert.Equal(t, false, sub["isExpired"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateSubscriptionDuplicateKeyMapsToConflict(t *testing.T) {
	db, mock := newMockDB(t)
	h := NewHandler(db)

	expectBotPackageLookup(mock)
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "users"`)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(7))
	expectScopedReconcile(mock, 0)
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT count(*) FROM "bot_subscriptions"`)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT count(*) FROM "users"`)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT count(*) FROM "bots"`)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT count(*) FROM "bot_packages"`)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	// A concurrent create won the slot between the count and the insert;
	// the partial unique index turns the race into a constraint error.
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO "bot_subscriptions"`)).
		WillReturnError(errors.New(`pq: duplicate key value violates unique constraint "idx_subscriptions_user_bot_live"`))
	mock.ExpectRollback()

	rec := httptest.NewRecorder()
	h.handleCreateSubscription(rec, authedRequest(http.MethodPost, "/subscriptions",
		`{"botPackageId":9,"lotSize":0.5}`, 7, models.RoleUser))

	assert.Equal(t, http.StatusConflict, rec.Code)
	resp := decodeResponse(t, rec)
	assert.Equal(t, "fail", resp.Status)
	assert.Equal(t, "already-subscribed", resp.ErrorCode)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetSubscriptionHidesForeignRows(t *testing.T) {
	db, mock := newMockDB(t)
	h := NewHandler(db)

	// The lookup is scoped to the caller, so a row owned by someone else
	// comes back empty rather than forbidden.
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "bot_subscriptions"`)).
		WithArgs(1, 5, 1).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	req := authedRequest(http.MethodGet, "/subscriptions/5", "", 1, models.RoleUser)
	req = mux.SetURLVars(req, map[string]string{"id": "5"})
	rec := httptest.NewRecorder()
	h.handleGetSubscription(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	resp := decodeResponse(t, rec)
	assert.Equal(t, "fail", resp.Status)
	assert.Equal(t, "not-found", resp.ErrorCode)
	assert.Equal(t, "Subscription not found", resp.Message)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// The wire form flattens the record and carries the derived expiry flag,
// with the primary key exposed as plain "id".
func TestSubscriptionResponseJSON(t *testing.T) {
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	sub := models.BotSubscription{
		Base:         models.Base{ID: 12},
		UserID:       7,
		BotID:        3,
		BotPackageID: 9,
		LotSize:      0.5,
		Status:       models.SubscriptionActive,
		SubscribedAt: now.AddDate(0, 0, -29),
		ExpiresAt:    now.AddDate(0, 0, 1),
	}

	payload, err := json.Marshal(SubscriptionResponse{BotSubscription: sub, IsExpired: sub.IsExpired(now)})
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(payload, &decoded))

	assert.Equal(t, float64(12), decoded["id"])
	assert.Equal(t, float64(7), decoded["userId"])
	assert.Equal(t, float64(3), decoded["botId"])
	assert.Equal(t, float64(9), decoded["botPackageId"])
	assert.Equal(t, 0.5, decoded["lotSize"])
	assert.Equal(t, "active", decoded["status"])
	assert.Equal(t, false, decoded["isExpired"])
	assert.NotContains(t, decoded, "ID")
	assert.NotContains(t, decoded, "user")
}

func TestSubscriptionResponseReportsOverdueRow(t *testing.T) {
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	sub := models.BotSubscription{
		Status:    models.SubscriptionActive,
		ExpiresAt: now.Add(-time.Minute),
	}

	resp := SubscriptionResponse{BotSubscription: sub, IsExpired: sub.IsExpired(now)}

	// A stale row the sweep has not settled yet still reads as expired.
	assert.Equal(t, models.SubscriptionActive, resp.Status)
	assert.True(t, resp.IsExpired)
}
