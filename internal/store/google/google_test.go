package google

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	goption "google.golang.org/api/option"

	"flowtrack/internal/core"
	"flowtrack/internal/store"
)

// fakeSheets emulates the subset of the Sheets v4 REST API the client uses.
// readDelay stalls full-sheet reads so concurrent callers overlap.
type fakeSheets struct {
	mu        sync.Mutex
	rows      [][]any
	deletes   []int64
	readDelay time.Duration
}

var (
	rowRange  = regexp.MustCompile(`!A(\d+):F\d+$`)
	cellRange = regexp.MustCompile(`!A(\d+):A\d+$`)
)

func (f *fakeSheets) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodGet && strings.HasSuffix(r.URL.Path, "!A:F") {
		time.Sleep(f.readDelay)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	path := r.URL.Path
	w.Header().Set("Content-Type", "application/json")

	switch {
	case r.Method == http.MethodPost && strings.HasSuffix(path, ":batchUpdate"):
		var req struct {
			Requests []struct {
				DeleteDimension struct {
					Range struct {
						StartIndex int64 `json:"startIndex"`
					} `json:"range"`
				} `json:"deleteDimension"`
			} `json:"requests"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		for _, rq := range req.Requests {
			i := rq.DeleteDimension.Range.StartIndex
			f.deletes = append(f.deletes, i)
			if int(i) < len(f.rows) {
				f.rows = append(f.rows[:i], f.rows[i+1:]...)
			}
		}
		_, _ = w.Write([]byte(`{}`))
	case r.Method == http.MethodGet && !strings.Contains(path, "/values/"):
		_, _ = w.Write([]byte(`{"sheets":[{"properties":{"sheetId":7,"title":"Transactions"}}]}`))
	case r.Method == http.MethodPost && strings.HasSuffix(path, ":append"):
		var vr struct {
			Values [][]any `json:"values"`
		}
		_ = json.NewDecoder(r.Body).Decode(&vr)
		f.rows = append(f.rows, vr.Values...)
		_, _ = w.Write([]byte(`{}`))
	case r.Method == http.MethodPut:
		var vr struct {
			Values [][]any `json:"values"`
		}
		_ = json.NewDecoder(r.Body).Decode(&vr)
		m := rowRange.FindStringSubmatch(path)
		if m == nil {
			http.Error(w, `{"error":{"code":400,"message":"bad range"}}`, http.StatusBadRequest)
			return
		}
		n, _ := strconv.Atoi(m[1])
		for len(f.rows) < n {
			f.rows = append(f.rows, []any{})
		}
		f.rows[n-1] = vr.Values[0]
		_, _ = w.Write([]byte(`{}`))
	case r.Method == http.MethodGet && cellRange.MatchString(path):
		n, _ := strconv.Atoi(cellRange.FindStringSubmatch(path)[1])
		var rows [][]any
		if n <= len(f.rows) && len(f.rows[n-1]) > 0 {
			rows = [][]any{f.rows[n-1][:1]}
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"values": rows})
	case r.Method == http.MethodGet:
		rows := f.rows
		if strings.Contains(path, "A1:F1") && len(rows) > 1 {
			rows = rows[:1]
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"values": rows})
	default:
		http.Error(w, `{"error":{"code":404,"message":"not found"}}`, http.StatusNotFound)
	}
}

func newTestClient(t *testing.T) (*Client, *fakeSheets) {
	t.Helper()
	fake := &fakeSheets{}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)
	c, err := New(context.Background(), Options{
		SpreadsheetID: "sheet-123",
		ClientOptions: []goption.ClientOption{
			goption.WithHTTPClient(srv.Client()),
			goption.WithEndpoint(srv.URL + "/"),
		},
	})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	c.now = func() time.Time { return time.Date(2024, 3, 7, 12, 0, 0, 0, time.UTC) }
	return c, fake
}

func TestNew_MissingSpreadsheetID(t *testing.T) {
	_, err := New(context.Background(), Options{})
	if err == nil || err.Error() != "missing GOOGLE_SPREADSHEET_ID" {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestNew_MissingCredentials(t *testing.T) {
	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", "")
	_, err := New(context.Background(), Options{SpreadsheetID: "x"})
	if err == nil || !strings.Contains(err.Error(), "missing service account credentials") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestClientLifecycle(t *testing.T) {
	ctx := context.Background()
	c, fake := newTestClient(t)

	if err := c.EnsureHeader(ctx); err != nil {
		t.Fatalf("ensure header: %v", err)
	}
	if len(fake.rows) != 1 || fake.rows[0][0] != "ID" {
		t.Fatalf("expected header row, got %v", fake.rows)
	}

	created, err := c.Create(ctx, core.Transaction{
		Owner: "alice", Amount: core.Money{Cents: 5000}, Category: core.Food,
		Notes: "groceries", Date: time.Date(2024, 3, 6, 0, 0, 0, 0, time.UTC),
	})
	if err != nil || created.ID == "" {
		t.Fatalf("create: %+v err=%v", created, err)
	}
	if _, err := c.Create(ctx, core.Transaction{Owner: "alice", Category: core.Food}); !errors.Is(err, core.ErrInvalidDate) {
		t.Fatalf("expected validation error, got %v", err)
	}

	list, err := c.ListTransactions(ctx, "alice")
	if err != nil || len(list) != 1 || list[0].Amount.Cents != 5000 || list[0].Notes != "groceries" {
		t.Fatalf("unexpected list %+v err=%v", list, err)
	}
	if list[0].Date.Day() != 6 {
		t.Fatalf("date not preserved: %v", list[0].Date)
	}

	created.Amount = core.Money{Cents: 4200}
	if _, err := c.Update(ctx, created); err != nil {
		t.Fatalf("update: %v", err)
	}
	got, err := c.Get(ctx, "alice", created.ID)
	if err != nil || got.Amount.Cents != 4200 {
		t.Fatalf("unexpected get %+v err=%v", got, err)
	}
	if _, err := c.Get(ctx, "bob", created.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected not found for other owner, got %v", err)
	}

	if err := c.Delete(ctx, "alice", created.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if len(fake.deletes) != 1 || fake.deletes[0] != 1 {
		t.Fatalf("expected delete of row index 1, got %v", fake.deletes)
	}
	if err := c.Delete(ctx, "alice", created.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestClientMirrorIsIdempotent(t *testing.T) {
	ctx := context.Background()
	c, fake := newTestClient(t)
	tx := core.Transaction{
		ID: "tx-1", Owner: "alice", Amount: core.Money{Cents: 100}, Category: core.Bills,
		Date: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
	}
	for i := 0; i < 2; i++ {
		if err := c.Mirror(ctx, tx); err != nil {
			t.Fatalf("mirror %d: %v", i, err)
		}
	}
	if len(fake.rows) != 1 {
		t.Fatalf("expected one row, got %v", fake.rows)
	}
	if err := c.Remove(ctx, "tx-1"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if err := c.Remove(ctx, "tx-1"); err != nil {
		t.Fatalf("remove of missing row should succeed: %v", err)
	}
}

func seedRow(id, owner string) []any {
	return []any{id, "2024-03-01", "Food", "1.00", "", owner}
}

func (f *fakeSheets) ids() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.rows))
	for _, r := range f.rows {
		out = append(out, fmt.Sprint(r[0]))
	}
	return out
}

func TestClientConcurrentWrites(t *testing.T) {
	t1 := core.Transaction{
		ID: "t1", Owner: "alice", Amount: core.Money{Cents: 100}, Category: core.Food,
		Date: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
	}
	cases := []struct {
		name string
		seed [][]any
		ops  []func(context.Context, *Client) error
		want []string
	}{
		{
			name: "mirror of the same id appends once",
			seed: [][]any{Header},
			ops: []func(context.Context, *Client) error{
				func(ctx context.Context, c *Client) error { return c.Mirror(ctx, t1) },
				func(ctx context.Context, c *Client) error { return c.Mirror(ctx, t1) },
			},
			want: []string{"ID", "t1"},
		},
		{
			name: "deletes leave other owners alone",
			seed: [][]any{Header, seedRow("a1", "alice"), seedRow("b1", "bob"), seedRow("a2", "alice")},
			ops: []func(context.Context, *Client) error{
				func(ctx context.Context, c *Client) error { return c.Delete(ctx, "alice", "a1") },
				func(ctx context.Context, c *Client) error { return c.Delete(ctx, "alice", "a2") },
			},
			want: []string{"ID", "b1"},
		},
		{
			name: "remove and mirror of different ids",
			seed: [][]any{Header, seedRow("a1", "alice"), seedRow("b1", "bob")},
			ops: []func(context.Context, *Client) error{
				func(ctx context.Context, c *Client) error { return c.Remove(ctx, "a1") },
				func(ctx context.Context, c *Client) error { return c.Mirror(ctx, t1) },
			},
			want: []string{"ID", "b1", "t1"},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ctx := context.Background()
			c, fake := newTestClient(t)
			fake.rows = tc.seed
			fake.readDelay = 20 * time.Millisecond

			var wg sync.WaitGroup
			errs := make([]error, len(tc.ops))
			for i, op := range tc.ops {
				wg.Add(1)
				go func() {
					defer wg.Done()
					errs[i] = op(ctx, c)
				}()
			}
			wg.Wait()
			for i, err := range errs {
				if err != nil {
					t.Fatalf("op %d: %v", i, err)
				}
			}
			if got := fake.ids(); !slices.Equal(got, tc.want) {
				t.Fatalf("rows = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestDeleteRowFollowsMovedRow(t *testing.T) {
	cases := []struct {
		name    string
		idx     int
		id      string
		wantErr error
		want    []string
	}{
		{"index still matches", 3, "a2", nil, []string{"ID", "a1", "b1"}},
		{"stale index points at another row", 2, "a2", nil, []string{"ID", "a1", "b1"}},
		{"stale index past the end", 9, "a1", nil, []string{"ID", "b1", "a2"}},
		{"row already gone", 1, "zz", store.ErrNotFound, []string{"ID", "a1", "b1", "a2"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c, fake := newTestClient(t)
			fake.rows = [][]any{Header, seedRow("a1", "alice"), seedRow("b1", "bob"), seedRow("a2", "alice")}

			err := c.deleteRow(context.Background(), tc.idx, tc.id)
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("err = %v, want %v", err, tc.wantErr)
			}
			if got := fake.ids(); !slices.Equal(got, tc.want) {
				t.Fatalf("rows = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestParseRow(t *testing.T) {
	cases := []struct {
		cols    []string
		ok      bool
		cents   int64
		undated bool
	}{
		{[]string{"ID", "Date", "Category", "Amount", "Notes", "Owner"}, false, 0, false},
		{[]string{"", "2024-03-01", "Food", "1"}, false, 0, false},
		{[]string{"a", "2024-03-01", "Food", "12.50", "", "alice"}, true, 1250, false},
		{[]string{"b", "2024-03-01T10:00:00Z", "Food", "$1,234.56", "", "alice"}, true, 123456, false},
		{[]string{"c", "garbage", "Other", "3", "", "alice"}, true, 300, true},
		{[]string{"d", "2024-03-01", "Food", "n/a", "", "alice"}, false, 0, false},
	}
	for i, tc := range cases {
		tx, ok := parseRow(tc.cols, time.UTC)
		if ok != tc.ok {
			t.Fatalf("case %d: ok=%v, want %v", i, ok, tc.ok)
		}
		if !ok {
			continue
		}
		if tx.Amount.Cents != tc.cents || tx.Undated() != tc.undated {
			t.Fatalf("case %d: unexpected %+v", i, tx)
		}
	}
}

func TestParseDollarsToCents(t *testing.T) {
	cases := []struct {
		in    string
		cents int64
		ok    bool
	}{
		{"12.34", 1234, true},
		{"12,34", 1234, true},
		{"$1,000.00", 100000, true},
		{"1,234", 123400, true},
		{"$12,345,678", 1234567800, true},
		{"1,5", 150, true},
		{"1234,567", 123457, true},
		{"7", 700, true},
		{"", 0, false},
		{"-3", 0, false},
		{"abc", 0, false},
	}
	for _, tc := range cases {
		got, ok := parseDollarsToCents(tc.in)
		if ok != tc.ok || got != tc.cents {
			t.Errorf("%q: got %d,%v want %d,%v", tc.in, got, ok, tc.cents, tc.ok)
		}
	}
}
