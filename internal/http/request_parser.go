// This file holds the request parsing helpers shared by the JSON handlers.

package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/arsenis-cmd/BudgetBot/internal/core"
	"github.com/arsenis-cmd/BudgetBot/internal/services"
)

const (
	headerUserID = "X-User-ID"
	maxBodyBytes = 64 << 10
)

// badRequest marks malformed input that never reached domain validation.
type badRequest struct{ msg string }

func (e badRequest) Error() string { return e.msg }

func badRequestf(format string, args ...any) error {
	return badRequest{msg: fmt.Sprintf(format, args...)}
}

func userIDFrom(r *http.Request) string {
	return sanitizeInput(r.Header.Get(headerUserID))
}

// withUser rejects requests without a caller identity.
func (s *Server) withUser(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if userIDFrom(r) == "" {
			writeError(w, r, errMissingUser)
			return
		}
		next(w, r)
	}
}

// decodeJSON reads a single JSON object, refusing unknown fields and trailing data.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return badRequestf("request body exceeds %d bytes", tooLarge.Limit)
		}
		return badRequestf("read body: %v", err)
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return badRequestf("request body is empty")
	}
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return badRequestf("invalid JSON: %v", err)
	}
	if dec.More() {
		return badRequestf("invalid JSON: trailing data")
	}
	return nil
}

// amountField accepts a JSON number or string and defers parsing to core.ParseAmount.
type amountField struct {
	raw string
	set bool
}

func (a *amountField) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		return nil
	}
	a.set = true
	if len(b) > 0 && b[0] == '"' {
		return json.Unmarshal(b, &a.raw)
	}
	a.raw = string(b)
	return nil
}

func (a amountField) parse() (decimal.Decimal, error) {
	if !a.set {
		return decimal.Zero, fmt.Errorf("%w: amount is required", core.ErrInvalidAmount)
	}
	return core.ParseAmount(a.raw)
}

type createTransactionRequest struct {
	Amount          amountField `json:"amount"`
	Type            string      `json:"type"`
	CategoryID      *string     `json:"category_id"`
	Description     string      `json:"description"`
	TransactionDate string      `json:"transaction_date"`
	Source          string      `json:"source"`
}

func (req createTransactionRequest) toInput(userID string, now time.Time, loc *time.Location) (services.TransactionInput, error) {
	amount, err := req.Amount.parse()
	if err != nil {
		return services.TransactionInput{}, err
	}
	kind, err := parseKind(req.Type)
	if err != nil {
		return services.TransactionInput{}, err
	}
	if kind == "" {
		return services.TransactionInput{}, core.ErrInvalidKind
	}
	occurred, err := parseDateParam(req.TransactionDate, now, loc)
	if err != nil {
		return services.TransactionInput{}, err
	}

	in := services.TransactionInput{
		UserID:      userID,
		Amount:      amount,
		Kind:        kind,
		Description: sanitizeInput(req.Description),
		OccurredAt:  occurred,
		Source:      core.Source(strings.ToLower(sanitizeInput(req.Source))),
	}
	if req.CategoryID != nil {
		in.CategoryID = sanitizeInput(*req.CategoryID)
	}
	return in, nil
}

type setGoalRequest struct {
	CategoryID  string      `json:"category_id"`
	Amount      amountField `json:"amount"`
	Granularity string      `json:"granularity"`
}

func (req setGoalRequest) toInput(userID string) (services.GoalInput, error) {
	amount, err := req.Amount.parse()
	if err != nil {
		return services.GoalInput{}, fmt.Errorf("%w: %w", core.ErrInvalidGoal, err)
	}
	g, err := parseGranularity(req.Granularity)
	if err != nil {
		return services.GoalInput{}, err
	}
	return services.GoalInput{
		UserID:      userID,
		CategoryID:  sanitizeInput(req.CategoryID),
		Amount:      amount,
		Granularity: g,
	}, nil
}

// parseKind returns "" for an empty value so callers can treat it as "any".
func parseKind(v string) (core.Kind, error) {
	v = strings.ToLower(sanitizeInput(v))
	if v == "" {
		return "", nil
	}
	k := core.Kind(v)
	if err := k.Validate(); err != nil {
		return "", err
	}
	return k, nil
}

// parseGranularity defaults to month.
func parseGranularity(v string) (core.Granularity, error) {
	v = strings.ToLower(sanitizeInput(v))
	if v == "" {
		return core.Month, nil
	}
	g := core.Granularity(v)
	if err := g.Validate(); err != nil {
		return "", err
	}
	return g, nil
}

// parseDateParam accepts RFC 3339 timestamps or plain dates in loc,
// falling back to now when empty.
func parseDateParam(v string, now time.Time, loc *time.Location) (time.Time, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return now, nil
	}
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t, nil
	}
	t, err := time.ParseInLocation(time.DateOnly, v, loc)
	if err != nil {
		return time.Time{}, badRequestf("invalid date %q: use YYYY-MM-DD or RFC 3339", v)
	}
	return t, nil
}

// parseRange reads optional from/to bounds. The to date is inclusive.
func parseRange(q url.Values, loc *time.Location) (from, to time.Time, err error) {
	if v := strings.TrimSpace(q.Get("from")); v != "" {
		if from, err = parseDateParam(v, time.Time{}, loc); err != nil {
			return
		}
	}
	if v := strings.TrimSpace(q.Get("to")); v != "" {
		if to, err = parseDateParam(v, time.Time{}, loc); err != nil {
			return
		}
		if len(v) == len(time.DateOnly) {
			to = to.AddDate(0, 0, 1)
		}
	}
	if !from.IsZero() && !to.IsZero() && !from.Before(to) {
		err = badRequestf("from must be before to")
	}
	return
}

func parseLimit(q url.Values, def, max int) (int, error) {
	v := strings.TrimSpace(q.Get("limit"))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0, badRequestf("limit must be a positive integer")
	}
	if n > max {
		n = max
	}
	return n, nil
}

// sanitizeInput trims whitespace and strips control characters.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != '\t' {
			return -1
		}
		if r == 127 {
			return -1
		}
		return r
	}, s)
}
