package utils

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"
)

// Response is the envelope every endpoint answers with. Status is
// "success" for 2xx, "fail" for 4xx and "error" for 5xx. ErrorCode is a
// stable machine-readable string on failure responses.
type Response struct {
	Status    string      `json:"status"`
	Message   string      `json:"message,omitempty"`
	Data      interface{} `json:"data,omitempty"`
	ErrorCode string      `json:"errorCode,omitempty"`
}

func WriteJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("failed to encode response: %v", err)
	}
}

func WriteSuccess(w http.ResponseWriter, status int, message string, data interface{}) {
	WriteJSON(w, status, Response{Status: "success", Message: message, Data: data})
}

func WriteFail(w http.ResponseWriter, status int, message, errorCode string) {
	WriteJSON(w, status, Response{Status: "fail", Message: message, ErrorCode: errorCode})
}

// WriteError answers a 500 with a generic message. The underlying error
// stays in the server log and is never echoed to the caller.
func WriteError(w http.ResponseWriter, operation string, err error) {
	log.Printf("%s: %v", operation, err)
	WriteJSON(w, http.StatusInternalServerError, Response{
		Status:    "error",
		Message:   "An unexpected error occurred",
		ErrorCode: "internal-error",
	})
}

// WriteNotFound is the single shape for missing and foreign records, so
// ownership-scoped lookups never disclose existence.
func WriteNotFound(w http.ResponseWriter, resource string) {
	WriteFail(w, http.StatusNotFound, resource+" not found", "not-found")
}

const (
	DefaultPerPage = 10
	MaxPerPage     = 100
)

// ParsePagination reads the 1-indexed page and perPage query parameters.
// Absent parameters take the defaults; malformed or non-positive values
// are rejected rather than coerced. perPage is capped at MaxPerPage.
func ParsePagination(r *http.Request) (page, perPage int, err error) {
	page, err = parsePositiveParam(r.URL.Query().Get("page"), 1)
	if err != nil {
		return 0, 0, errors.New("page must be a positive integer")
	}
	perPage, err = parsePositiveParam(r.URL.Query().Get("perPage"), DefaultPerPage)
	if err != nil {
		return 0, 0, errors.New("perPage must be a positive integer")
	}
	if perPage > MaxPerPage {
		perPage = MaxPerPage
	}
	return page, perPage, nil
}

func parsePositiveParam(raw string, fallback int) (int, error) {
	if strings.TrimSpace(raw) == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, errors.New("not a positive integer")
	}
	return n, nil
}

// TotalPages is the page count for total rows at perPage per page.
func TotalPages(total int64, perPage int) int {
	if total == 0 {
		return 0
	}
	return int((total + int64(perPage) - 1) / int64(perPage))
}

// Offset converts a 1-indexed page to a row offset.
func Offset(page, perPage int) int {
	return (page - 1) * perPage
}
