package utils

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePagination(t *testing.T) {
	tests := []struct {
		name        string
		query       string
		wantPage    int
		wantPerPage int
		wantErr     bool
	}{
		{"defaults when absent", "", 1, 10, false},
		{"explicit values", "page=3&perPage=25", 3, 25, false},
		{"perPage capped at the maximum", "perPage=500", 1, 100, false},
		{"perPage at the cap passes through", "perPage=100", 1, 100, false},
		{"page zero rejected", "page=0", 0, 0, true},
		{"negative page rejected", "page=-2", 0, 0, true},
		{"non-numeric page rejected", "page=abc", 0, 0, true},
		{"non-numeric perPage rejected", "perPage=ten", 0, 0, true},
		{"perPage zero rejected", "perPage=0", 0, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/subscriptions?"+tt.query, nil)
			page, perPage, err := ParsePagination(r)

			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantPage, page)
			assert.Equal(t, tt.wantPerPage, perPage)
		})
	}
}

func TestTotalPages(t *testing.T) {
	tests := []struct {
		name    string
		total   int64
		perPage int
		want    int
	}{
		{"empty collection", 0, 10, 0},
		{"single row", 1, 10, 1},
		{"exact multiple", 100, 10, 10},
		{"partial last page", 101, 10, 11},
		{"fewer rows than a page", 7, 10, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, TotalPages(tt.total, tt.perPage))
		})
	}
}

func TestOffset(t *testing.T) {
	assert.Equal(t, 0, Offset(1, 10))
	assert.Equal(t, 10, Offset(2, 10))
	assert.Equal(t, 50, Offset(3, 25))
}

func decodeResponse(t *testing.T, w *httptest.ResponseRecorder) Response {
	t.Helper()
	var resp Response
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	return resp
}

func TestWriteSuccess(t *testing.T) {
	w := httptest.NewRecorder()
	WriteSuccess(w, http.StatusCreated, "Created", map[string]interface{}{"id": 1})

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	resp := decodeResponse(t, w)
	assert.Equal(t, "success", resp.Status)
	assert.Equal(t, "Created", resp.Message)
	assert.NotNil(t, resp.Data)
	assert.Empty(t, resp.ErrorCode)
}

func TestWriteFail(t *testing.T) {
	w := httptest.NewRecorder()
	WriteFail(w, http.StatusConflict, "User already has an active subscription to this bot", "already-subscribed")

	assert.Equal(t, http.StatusConflict, w.Code)

	resp := decodeResponse(t, w)
	assert.Equal(t, "fail", resp.Status)
	assert.Equal(t, "already-subscribed", resp.ErrorCode)
	assert.Nil(t, resp.Data)
}

func TestWriteNotFound(t *testing.T) {
	w := httptest.NewRecorder()
	WriteNotFound(w, "Subscription")

	assert.Equal(t, http.StatusNotFound, w.Code)

	resp := decodeResponse(t, w)
	assert.Equal(t, "fail", resp.Status)
	assert.Equal(t, "Subscription not found", resp.Message)
	assert.Equal(t, "not-found", resp.ErrorCode)
}

func TestWriteErrorHidesDetail(t *testing.T) {
	w := httptest.NewRecorder()
	WriteError(w, "create subscription", errors.New("pq: connection refused on 10.0.0.5"))

	assert.Equal(t, http.StatusInternalServerError, w.Code)

	resp := decodeResponse(t, w)
	assert.Equal(t, "error", resp.Status)
	assert.Equal(t, "internal-error", resp.ErrorCode)
	assert.NotContains(t, resp.Message, "pq:")
	assert.NotContains(t, resp.Message, "10.0.0.5")
}
