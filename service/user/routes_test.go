package user

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/golang-jwt/jwt/v4"
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

func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder) utils.Response {
	t.Helper()
	var resp utils.Response
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return resp
}

func TestValidateBulkIDs(t *testing.T) {
	assert.NoError(t, validateBulkIDs([]uint{1, 2, 3}))
	assert.Error(t, validateBulkIDs(nil))
	assert.Error(t, validateBulkIDs([]uint{}))
	assert.Error(t, validateBulkIDs([]uint{1, 0, 3}))
}

func TestDedupeIDs(t *testing.T) {
	tests := []struct {
		name string
		ids  []uint
		want []uint
	}{
		{"no duplicates", []uint{1, 2, 3}, []uint{1, 2, 3}},
		{"duplicates collapse keeping first position", []uint{3, 1, 3, 2, 1}, []uint{3, 1, 2}},
		{"all same", []uint{5, 5, 5}, []uint{5}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, dedupeIDs(tt.ids))
		})
	}
}

func TestDeleteUserRollsBackWhenCascadeFails(t *testing.T) {
	db, mock := newMockDB(t)
	h := NewHandler(db)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "users"`)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "email"}).
			AddRow(9, "trader@finfx.dev"))

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM "bot_subscriptions"`)).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM "kyc_records"`)).
		WillReturnError(errors.New("kyc table lock timeout"))
	mock.ExpectRollback()

	req := httptest.NewRequest(http.MethodDelete, "/users/9", nil)
	req = mux.SetURLVars(req, map[string]string{"id": "9"})
	rec := httptest.NewRecorder()
	h.handleDeleteUser(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	resp := decodeResponse(t, rec)
	assert.Equal(t, "error", resp.Status)
	assert.Equal(t, "internal-error", resp.ErrorCode)
	assert.NotContains(t, resp.Message, "kyc table lock timeout")
	// The cascade stopped and rolled back before reaching the users table,
	// so the user row was never touched.
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBulkDeleteUsersCountsDistinctIDs(t *testing.T) {
	db, mock := newMockDB(t)
	h := NewHandler(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT "id" FROM "users"`)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(5))
	for _, table := range []string{
		"bot_subscriptions", "kyc_records", "platform_credentials", "signals",
		"devices", "notification_histories", "password_reset_tokens", "users",
	} {
		mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM "` + table + `"`)).
			WillReturnResult(sqlmock.NewResult(0, 1))
	}
	mock.ExpectCommit()

	rec := httptest.NewRecorder()
	h.handleBulkDeleteUsers(rec, httptest.NewRequest(http.MethodDelete, "/users",
		strings.NewReader(`{"ids":[5,5]}`)))

	assert.Equal(t, http.StatusOK, rec.Code)
	resp := decodeResponse(t, rec)
	assert.Equal(t, "success", resp.Status)

	data, ok := resp.Data.(map[string]interface{})
	require.True(t, ok)
	// The duplicate id collapses before the lookup, so the existing user
	// counts once and nothing reads as missing.
	assert.Equal(t, float64(1), data["deletedCount"])
	assert.Equal(t, float64(2), data["requestedCount"])
	assert.Equal(t, float64(0), data["notFoundCount"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGenerateAccessToken(t *testing.T) {
	t.Setenv("SECRET_KEY", "test-secret")

	admin := &models.User{
		Base: models.Base{ID: 7},
		Role: models.RoleAdmin,
	}

	tokenString, err := generateAccessToken(admin)
	require.NoError(t, err)
	require.NotEmpty(t, tokenString)

	claims := &utils.Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return []byte("test-secret"), nil
	})
	require.NoError(t, err)
	assert.True(t, token.Valid)
	assert.Equal(t, "7", claims.Subject)
	assert.Equal(t, models.RoleAdmin, claims.Role)
	assert.NotNil(t, claims.ExpiresAt)
}

func TestGenerateRefreshTokenIsUnique(t *testing.T) {
	t.Setenv("SECRET_KEY", "test-secret")

	first, err := generateRefreshToken(42)
	require.NoError(t, err)
	second, err := generateRefreshToken(42)
	require.NoError(t, err)

	assert.NotEmpty(t, first)
	assert.NotEqual(t, first, second)
}
