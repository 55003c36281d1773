package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"flowtrack/internal/auth"
	"flowtrack/internal/log"
	"flowtrack/internal/store/memory"
)

// Wednesday, 2024-03-06.
var fixedNow = time.Date(2024, 3, 6, 12, 0, 0, 0, time.UTC)

func newTestServer(t *testing.T, opts Options) *Server {
	t.Helper()
	if opts.Store == nil {
		opts.Store = memory.New()
	}
	if opts.Now == nil {
		opts.Now = func() time.Time { return fixedNow }
	}
	if opts.RateLimitPerMinute == 0 {
		opts.RateLimitPerMinute = 1000
	}
	opts.Logger = log.New(log.Config{Component: "test", Handler: slog.NewTextHandler(io.Discard, nil)})
	srv := NewServer(":0", opts)
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	return srv
}

func do(t *testing.T, srv *Server, method, path, body, token string) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return v
}

func TestHealthAndReady(t *testing.T) {
	srv := newTestServer(t, Options{})
	for _, path := range []string{"/healthz", "/readyz"} {
		rec := do(t, srv, http.MethodGet, path, "", "")
		if rec.Code != http.StatusOK {
			t.Fatalf("%s status=%d body=%s", path, rec.Code, rec.Body)
		}
	}

	failing := newTestServer(t, Options{Ready: func(context.Context) error { return io.ErrUnexpectedEOF }})
	rec := do(t, failing, http.MethodGet, "/readyz", "", "")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("readyz with failing store status=%d", rec.Code)
	}
	if body := decode[map[string]any](t, rec); body["status"] != "not_ready" {
		t.Fatalf("unexpected body %v", body)
	}
}

func TestAuthRequired(t *testing.T) {
	v := auth.NewVerifier("0123456789abcdef", "")
	srv := newTestServer(t, Options{Verifier: v})

	rec := do(t, srv, http.MethodGet, "/api/transactions", "", "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status=%d, want 401", rec.Code)
	}
	if got := decode[errorBody](t, rec); got.Error != "missing bearer token" {
		t.Fatalf("error=%q", got.Error)
	}
	if rec.Header().Get("WWW-Authenticate") == "" {
		t.Fatal("expected WWW-Authenticate header")
	}

	rec = do(t, srv, http.MethodGet, "/api/transactions", "", "forged")
	if rec.Code != http.StatusUnauthorized || decode[errorBody](t, rec).Error != "invalid token" {
		t.Fatalf("forged token: status=%d body=%s", rec.Code, rec.Body)
	}

	// Health endpoints stay public
	if rec := do(t, srv, http.MethodGet, "/healthz", "", ""); rec.Code != http.StatusOK {
		t.Fatalf("healthz status=%d", rec.Code)
	}
}

func TestOwnersAreIsolated(t *testing.T) {
	v := auth.NewVerifier("0123456789abcdef", "")
	srv := newTestServer(t, Options{Verifier: v})
	alice, _ := v.Issue("alice", time.Hour)
	bob, _ := v.Issue("bob", time.Hour)

	rec := do(t, srv, http.MethodPost, "/api/transactions",
		`{"amount":12.5,"category":"Food","date":"2024-03-05"}`, alice)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status=%d body=%s", rec.Code, rec.Body)
	}
	created := decode[transactionResponse](t, rec)

	if got := decode[[]transactionResponse](t, do(t, srv, http.MethodGet, "/api/transactions", "", bob)); len(got) != 0 {
		t.Fatalf("bob sees alice's transactions: %+v", got)
	}
	if rec := do(t, srv, http.MethodGet, "/api/transactions/"+created.ID, "", bob); rec.Code != http.StatusNotFound {
		t.Fatalf("bob get status=%d, want 404", rec.Code)
	}
	if rec := do(t, srv, http.MethodDelete, "/api/transactions/"+created.ID, "", bob); rec.Code != http.StatusNotFound {
		t.Fatalf("bob delete status=%d, want 404", rec.Code)
	}
	if got := decode[[]transactionResponse](t, do(t, srv, http.MethodGet, "/api/transactions", "", alice)); len(got) != 1 {
		t.Fatalf("alice should still have 1 transaction, got %d", len(got))
	}
}

func TestTransactionCRUD(t *testing.T) {
	srv := newTestServer(t, Options{})

	// Prime the list cache so the create below must invalidate it
	if got := decode[[]transactionResponse](t, do(t, srv, http.MethodGet, "/api/transactions", "", "")); len(got) != 0 {
		t.Fatalf("expected empty list, got %d", len(got))
	}

	rec := do(t, srv, http.MethodPost, "/api/transactions",
		`{"amount":"50.00","category":"food","notes":"  lunch  ","date":"2024-03-06"}`, "")
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status=%d body=%s", rec.Code, rec.Body)
	}
	created := decode[transactionResponse](t, rec)
	if created.ID == "" || created.Category != "Food" || created.Notes != "lunch" || created.Amount.Cents != 5000 {
		t.Fatalf("unexpected created transaction %+v", created)
	}
	if rec.Header().Get("Location") != "/api/transactions/"+created.ID {
		t.Fatalf("Location=%q", rec.Header().Get("Location"))
	}

	list := decode[[]transactionResponse](t, do(t, srv, http.MethodGet, "/api/transactions", "", ""))
	if len(list) != 1 {
		t.Fatalf("list after create has %d items, cache not invalidated?", len(list))
	}

	rec = do(t, srv, http.MethodPut, "/api/transactions/"+created.ID,
		`{"amount":75,"category":"Bills","date":"2024-03-07T09:30:00Z"}`, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("update status=%d body=%s", rec.Code, rec.Body)
	}
	updated := decode[transactionResponse](t, rec)
	if updated.Category != "Bills" || updated.Amount.Cents != 7500 || updated.Date == nil || updated.Date.Day() != 7 {
		t.Fatalf("unexpected updated transaction %+v", updated)
	}

	got := decode[transactionResponse](t, do(t, srv, http.MethodGet, "/api/transactions/"+created.ID, "", ""))
	if got.Category != "Bills" {
		t.Fatalf("get after update returned %+v", got)
	}

	if rec := do(t, srv, http.MethodDelete, "/api/transactions/"+created.ID, "", ""); rec.Code != http.StatusNoContent {
		t.Fatalf("delete status=%d", rec.Code)
	}
	if rec := do(t, srv, http.MethodGet, "/api/transactions/"+created.ID, "", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("get after delete status=%d", rec.Code)
	}
	if rec := do(t, srv, http.MethodPut, "/api/transactions/missing",
		`{"amount":1,"category":"Food","date":"2024-03-07"}`, ""); rec.Code != http.StatusNotFound {
		t.Fatalf("update missing status=%d", rec.Code)
	}
}

func TestCreateTransactionValidation(t *testing.T) {
	srv := newTestServer(t, Options{})
	tests := []struct {
		name    string
		body    string
		status  int
		errPart string
	}{
		{"malformed json", `{"amount":`, http.StatusBadRequest, "invalid JSON body"},
		{"empty body", ``, http.StatusBadRequest, "request body is empty"},
		{"unknown field", `{"amount":1,"category":"Food","date":"2024-03-01","extra":1}`, http.StatusBadRequest, "invalid JSON body"},
		{"missing amount", `{"category":"Food","date":"2024-03-01"}`, http.StatusUnprocessableEntity, "amount is required"},
		{"missing category and date", `{"amount":1}`, http.StatusUnprocessableEntity, "category is required; date is required"},
		{"negative amount", `{"amount":-5,"category":"Food","date":"2024-03-01"}`, http.StatusUnprocessableEntity, "non-negative"},
		{"unknown category", `{"amount":5,"category":"Travel","date":"2024-03-01"}`, http.StatusUnprocessableEntity, "unknown category"},
		{"bad date", `{"amount":5,"category":"Food","date":"03/01/2024"}`, http.StatusUnprocessableEntity, "invalid date"},
		{"notes too long", `{"amount":5,"category":"Food","date":"2024-03-01","notes":"` + strings.Repeat("x", 501) + `"}`, http.StatusUnprocessableEntity, "notes must be at most 500"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/transactions", bytes.NewBufferString(tt.body))
			rec := httptest.NewRecorder()
			srv.Handler.ServeHTTP(rec, req)
			if rec.Code != tt.status {
				t.Fatalf("status=%d, want %d (body %s)", rec.Code, tt.status, rec.Body)
			}
			if got := decode[errorBody](t, rec); !strings.Contains(got.Error, tt.errPart) {
				t.Fatalf("error=%q, want it to contain %q", got.Error, tt.errPart)
			}
		})
	}

	req := httptest.NewRequest(http.MethodPost, "/api/transactions", strings.NewReader(`amount=5`))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnsupportedMediaType {
		t.Fatalf("form body status=%d, want 415", rec.Code)
	}
}

func TestWeeklyChart(t *testing.T) {
	srv := newTestServer(t, Options{})
	for _, body := range []string{
		`{"amount":50,"category":"Food","date":"2024-03-06"}`,
		`{"amount":1000,"category":"Income","date":"2024-03-06"}`,
		`{"amount":20,"category":"Transport","date":"2024-03-10T23:00:00Z"}`,
		`{"amount":99,"category":"Food","date":"2024-03-03"}`,
	} {
		if rec := do(t, srv, http.MethodPost, "/api/transactions", body, ""); rec.Code != http.StatusCreated {
			t.Fatalf("seed status=%d body=%s", rec.Code, rec.Body)
		}
	}

	type bucket struct {
		Day    string  `json:"day"`
		Amount float64 `json:"amount"`
	}
	week := decode[[]bucket](t, do(t, srv, http.MethodGet, "/api/charts/weekly", "", ""))
	want := []bucket{{"Mon", 0}, {"Tue", 0}, {"Wed", 50}, {"Thu", 0}, {"Fri", 0}, {"Sat", 0}, {"Sun", 20}}
	if len(week) != len(want) {
		t.Fatalf("got %d buckets", len(week))
	}
	for i := range want {
		if week[i] != want[i] {
			t.Fatalf("bucket %d = %+v, want %+v", i, week[i], want[i])
		}
	}

	// The date parameter moves the window to the previous week
	prev := decode[[]bucket](t, do(t, srv, http.MethodGet, "/api/charts/weekly?date=2024-02-28", "", ""))
	if prev[6] != (bucket{"Sun", 99}) || prev[2].Amount != 0 {
		t.Fatalf("previous week = %+v", prev)
	}

	if rec := do(t, srv, http.MethodGet, "/api/charts/weekly?date=yesterday", "", ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("bad date status=%d", rec.Code)
	}
}

func TestMonthlyChart(t *testing.T) {
	srv := newTestServer(t, Options{})
	if got := strings.TrimSpace(do(t, srv, http.MethodGet, "/api/charts/monthly", "", "").Body.String()); got != "[]" {
		t.Fatalf("empty monthly series = %s", got)
	}

	for _, body := range []string{
		`{"amount":1000,"category":"Income","date":"2024-03-05"}`,
		`{"amount":200,"category":"Bills","date":"2024-03-10"}`,
		`{"amount":30,"category":"Food","date":"2024-02-10"}`,
	} {
		if rec := do(t, srv, http.MethodPost, "/api/transactions", body, ""); rec.Code != http.StatusCreated {
			t.Fatalf("seed status=%d body=%s", rec.Code, rec.Body)
		}
	}

	months := decode[[]map[string]any](t, do(t, srv, http.MethodGet, "/api/charts/monthly", "", ""))
	if len(months) != 2 || months[0]["month"] != "2024-02" || months[1]["month"] != "2024-03" {
		t.Fatalf("unexpected months %v", months)
	}
	march := months[1]
	for key, want := range map[string]float64{"moneyIn": 1000, "moneyOut": 200, "netCashflow": 800, "Bills": 200} {
		if march[key] != want {
			t.Errorf("%s = %v, want %v", key, march[key], want)
		}
	}
	if _, ok := march["Income"]; ok {
		t.Error("Income must not appear in the category breakdown")
	}
}

func TestSummaryReportsSkipped(t *testing.T) {
	seed := filepath.Join(t.TempDir(), "seed.json")
	data := `[
		{"id":"a","amount":10,"category":"Food","date":"2024-03-04"},
		{"id":"b","amount":99,"category":"Food","date":"not a date"}
	]`
	if err := os.WriteFile(seed, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
	st, err := memory.NewFromFile(seed, time.UTC)
	if err != nil {
		t.Fatalf("seed store: %v", err)
	}
	srv := newTestServer(t, Options{Store: st})

	rec := do(t, srv, http.MethodGet, "/api/summary", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body)
	}
	var report struct {
		Week      []map[string]any `json:"week"`
		WeekTotal float64          `json:"weekTotal"`
		Months    []map[string]any `json:"months"`
		Current   map[string]any   `json:"current"`
		Skipped   int              `json:"skipped"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &report); err != nil {
		t.Fatal(err)
	}
	if report.Skipped != 1 || report.WeekTotal != 10 || len(report.Week) != 7 || len(report.Months) != 1 {
		t.Fatalf("unexpected report %+v", report)
	}
	if report.Current["month"] != "2024-03" || report.Current["moneyOut"] != float64(10) {
		t.Fatalf("unexpected current month %v", report.Current)
	}
}

func TestCategoriesAndRouting(t *testing.T) {
	srv := newTestServer(t, Options{})

	cats := decode[[]categoryInfo](t, do(t, srv, http.MethodGet, "/api/categories", "", ""))
	if len(cats) != 7 || cats[0].Name != "Food" || !cats[6].Income {
		t.Fatalf("unexpected categories %+v", cats)
	}

	rec := do(t, srv, http.MethodPatch, "/api/transactions", "", "")
	if rec.Code != http.StatusMethodNotAllowed || rec.Header().Get("Allow") != "GET, POST" {
		t.Fatalf("PATCH status=%d allow=%q", rec.Code, rec.Header().Get("Allow"))
	}
	if decode[errorBody](t, rec).Error == "" {
		t.Fatal("405 should carry a JSON error")
	}
	if rec := do(t, srv, http.MethodPost, "/api/charts/weekly", "", ""); rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("POST weekly status=%d", rec.Code)
	}
	if rec := do(t, srv, http.MethodGet, "/api/nope", "", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("unknown api route status=%d", rec.Code)
	}
	if rec := do(t, srv, http.MethodGet, "/", "", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("root status=%d", rec.Code)
	}
}

func TestRateLimit(t *testing.T) {
	srv := newTestServer(t, Options{RateLimitPerMinute: 2})
	for i := 0; i < 2; i++ {
		if rec := do(t, srv, http.MethodGet, "/api/categories", "", ""); rec.Code != http.StatusOK {
			t.Fatalf("request %d status=%d", i+1, rec.Code)
		}
	}
	rec := do(t, srv, http.MethodGet, "/api/categories", "", "")
	if rec.Code != http.StatusTooManyRequests || rec.Header().Get("Retry-After") == "" {
		t.Fatalf("status=%d retry=%q", rec.Code, rec.Header().Get("Retry-After"))
	}
}
