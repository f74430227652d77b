package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"quickaccounting/internal/services"
)

const maxBodyBytes = 64 << 10

var errInvalidBody = errors.New("invalid request body")

// transactionRequest mirrors the POST /transaction body. Pointers tell a
// missing field from a zero value.
type transactionRequest struct {
	Amount      *float64 `json:"amount"`
	Type        string   `json:"type"`
	Category    string   `json:"category"`
	Description *string  `json:"description"`
	Date        *string  `json:"date"`
}

// ParseTransactionRequest decodes a transaction body. Type and category are
// passed through verbatim for exact matching; the description is sanitized.
// Every failure wraps errInvalidBody.
func ParseTransactionRequest(w http.ResponseWriter, r *http.Request) (services.TransactionInput, error) {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	defer body.Close()

	var req transactionRequest
	dec := json.NewDecoder(body)
	if err := dec.Decode(&req); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return services.TransactionInput{}, fmt.Errorf("%w: larger than %d bytes", errInvalidBody, maxBodyBytes)
		}
		return services.TransactionInput{}, fmt.Errorf("%w: %v", errInvalidBody, err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return services.TransactionInput{}, fmt.Errorf("%w: unexpected data after JSON object", errInvalidBody)
	}

	if req.Amount == nil {
		return services.TransactionInput{}, fmt.Errorf("%w: amount is required", errInvalidBody)
	}

	in := services.TransactionInput{
		Amount:   *req.Amount,
		Type:     req.Type,
		Category: req.Category,
		Date:     req.Date,
	}
	if req.Description != nil {
		in.Description = sanitizeInput(*req.Description)
	}
	return in, nil
}

// sanitizeInput trims whitespace and drops control characters other than tab
// and newlines.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != '\t' && r != '\n' && r != '\r' {
			return -1
		}
		return r
	}, s)
}

// clientIP prefers proxy headers and falls back to the connection address.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		return strings.TrimSpace(first)
	}
	if realIP := r.Header.Get("X-Real-IP"); realIP != "" {
		return strings.TrimSpace(realIP)
	}
	return r.RemoteAddr
}
