package utils

import (
	"encoding/json"
	"math"
	"net/http"
	"strconv"
)

// Envelope is the success body shared by every JSON endpoint.
type Envelope struct {
	Success  bool        `json:"success"`
	Message  string      `json:"message,omitempty"`
	Data     any         `json:"data,omitempty"`
	Metadata *Pagination `json:"metadata,omitempty"`
}

// ErrorBody is the failure body. Code is stable and machine-readable,
// Error is for humans.
type ErrorBody struct {
	Success bool         `json:"success"`
	Code    string       `json:"code"`
	Error   string       `json:"error"`
	Fields  []FieldError `json:"fields,omitempty"`
}

type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
}

func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func WriteSuccess(w http.ResponseWriter, status int, message string, data any) {
	WriteJSON(w, status, Envelope{Success: true, Message: message, Data: data})
}

func WritePage(w http.ResponseWriter, data any, page Pagination) {
	WriteJSON(w, http.StatusOK, Envelope{Success: true, Data: data, Metadata: &page})
}

func WriteError(w http.ResponseWriter, status int, code, message string, fields ...FieldError) {
	WriteJSON(w, status, ErrorBody{Success: false, Code: code, Error: message, Fields: fields})
}

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// ParsePagination reads ?page= and ?page_size=, falling back to page 1 and
// DefaultPageSize and clamping the size to MaxPageSize.
func ParsePagination(r *http.Request) (page, size int) {
	page, err := strconv.Atoi(r.URL.Query().Get("page"))
	if err != nil || page < 1 {
		page = 1
	}
	size, err = strconv.Atoi(r.URL.Query().Get("page_size"))
	if err != nil || size < 1 {
		size = DefaultPageSize
	}
	if size > MaxPageSize {
		size = MaxPageSize
	}
	return page, size
}

func NewPagination(page, size int, total int64) Pagination {
	pages := 0
	if size > 0 {
		pages = int(math.Ceil(float64(total) / float64(size)))
	}
	return Pagination{Page: page, PageSize: size, Total: total, TotalPages: pages}
}
