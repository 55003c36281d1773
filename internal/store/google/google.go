package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"flowtrack/internal/core"
	"flowtrack/internal/store"
)

// DefaultSheetName is used when Options.SheetName is empty.
const DefaultSheetName = "Transactions"

// Header is written to row 1 of an empty sheet. Column order is fixed.
var Header = []any{"ID", "Date", "Category", "Amount", "Notes", "Owner"}

const (
	colID = iota
	colDate
	colCategory
	colAmount
	colNotes
	colOwner
)

// Ensure interface conformance
var _ store.TransactionStore = (*Client)(nil)

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheet         string
	loc           *time.Location
	now           func() time.Time

	// writeMu is held across each read-then-write. Row indexes read from
	// the sheet are only valid while it is held.
	writeMu sync.Mutex

	mu         sync.Mutex
	sheetID    int64
	hasSheetID bool
}

// maxDeleteAttempts bounds how often deleteRow re-reads the sheet when the
// row it was given no longer carries the expected ID.
const maxDeleteAttempts = 3

// Options configures a Sheets client. Credentials come from
// CredentialsJSON, then CredentialsFile, then GOOGLE_APPLICATION_CREDENTIALS.
type Options struct {
	SpreadsheetID   string
	SheetName       string
	CredentialsJSON string
	CredentialsFile string
	Location        *time.Location
	// ClientOptions are appended after the credentials; tests use them to
	// point the client at a fake endpoint.
	ClientOptions []goption.ClientOption
}

// New creates a Sheets client using service account credentials.
func New(ctx context.Context, opts Options) (*Client, error) {
	if strings.TrimSpace(opts.SpreadsheetID) == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	svc, err := newSheetsService(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}
	return NewWithService(svc, opts), nil
}

// NewWithService wraps an existing Sheets service.
func NewWithService(svc *gsheet.Service, opts Options) *Client {
	sheet := strings.TrimSpace(opts.SheetName)
	if sheet == "" {
		sheet = DefaultSheetName
	}
	loc := opts.Location
	if loc == nil {
		loc = time.UTC
	}
	return &Client{
		svc:           svc,
		spreadsheetID: strings.TrimSpace(opts.SpreadsheetID),
		sheet:         sheet,
		loc:           loc,
		now:           time.Now,
	}
}

func newSheetsService(ctx context.Context, opts Options) (*gsheet.Service, error) {
	clientOpts := []goption.ClientOption{goption.WithScopes(gsheet.SpreadsheetsScope)}
	credsJSON := strings.TrimSpace(opts.CredentialsJSON)
	credsFile := strings.TrimSpace(opts.CredentialsFile)
	if credsJSON == "" && credsFile == "" {
		credsFile = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	switch {
	case len(opts.ClientOptions) > 0:
		// Caller supplies transport and auth.
	case credsJSON != "":
		slog.InfoContext(ctx, "Using inline service account credentials", "json_length", len(credsJSON))
		clientOpts = append(clientOpts, goption.WithCredentialsJSON([]byte(credsJSON)))
	case credsFile != "":
		raw, err := os.ReadFile(credsFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		slog.InfoContext(ctx, "Read service account credentials", "path", credsFile, "size", len(raw))
		clientOpts = append(clientOpts, goption.WithCredentialsJSON(raw))
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}
	clientOpts = append(clientOpts, opts.ClientOptions...)

	svc, err := gsheet.NewService(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return svc, nil
}

// EnsureHeader writes the header row when the sheet is empty.
func (c *Client) EnsureHeader(ctx context.Context) error {
	rng := fmt.Sprintf("%s!A1:F1", c.sheet)
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("read %s: %w", rng, err)
	}
	if len(resp.Values) > 0 && len(resp.Values[0]) > 0 {
		return nil
	}
	vr := &gsheet.ValueRange{Values: [][]any{Header}}
	if _, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, rng, vr).
		ValueInputOption("RAW").Context(ctx).Do(); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	return nil
}

func (c *Client) Create(ctx context.Context, tx core.Transaction) (core.Transaction, error) {
	if err := tx.Validate(); err != nil {
		return core.Transaction{}, fmt.Errorf("validation failed: %w", err)
	}
	if tx.ID == "" {
		tx.ID = uuid.NewString()
	}
	now := c.now()
	tx.CreatedAt, tx.UpdatedAt = now, now
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.appendRow(ctx, tx); err != nil {
		return core.Transaction{}, err
	}
	return tx, nil
}

func (c *Client) Update(ctx context.Context, tx core.Transaction) (core.Transaction, error) {
	if err := tx.Validate(); err != nil {
		return core.Transaction{}, fmt.Errorf("validation failed: %w", err)
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	rows, err := c.readRows(ctx)
	if err != nil {
		return core.Transaction{}, err
	}
	idx := findRow(rows, tx.ID)
	if idx < 0 || safeGet(rows[idx], colOwner) != tx.Owner {
		return core.Transaction{}, store.ErrNotFound
	}
	tx.UpdatedAt = c.now()
	if err := c.writeRow(ctx, idx+1, tx); err != nil {
		return core.Transaction{}, err
	}
	return tx, nil
}

func (c *Client) Delete(ctx context.Context, owner, id string) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	rows, err := c.readRows(ctx)
	if err != nil {
		return err
	}
	idx := findRow(rows, id)
	if idx < 0 || safeGet(rows[idx], colOwner) != owner {
		return store.ErrNotFound
	}
	return c.deleteRow(ctx, idx, id)
}

func (c *Client) Get(ctx context.Context, owner, id string) (core.Transaction, error) {
	rows, err := c.readRows(ctx)
	if err != nil {
		return core.Transaction{}, err
	}
	idx := findRow(rows, id)
	if idx < 0 {
		return core.Transaction{}, store.ErrNotFound
	}
	tx, ok := parseRow(rows[idx], c.loc)
	if !ok || tx.Owner != owner {
		return core.Transaction{}, store.ErrNotFound
	}
	return tx, nil
}

func (c *Client) ListTransactions(ctx context.Context, owner string) ([]core.Transaction, error) {
	rows, err := c.readRows(ctx)
	if err != nil {
		return nil, err
	}
	var out []core.Transaction
	for _, row := range rows {
		tx, ok := parseRow(row, c.loc)
		if !ok || tx.Owner != owner {
			continue
		}
		out = append(out, tx)
	}
	store.SortNewestFirst(out)
	return out, nil
}

// Mirror writes tx to the sheet, replacing the row with the same ID when
// one exists. It is idempotent and used by the mirror worker.
func (c *Client) Mirror(ctx context.Context, tx core.Transaction) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	rows, err := c.readRows(ctx)
	if err != nil {
		return err
	}
	if idx := findRow(rows, tx.ID); idx >= 0 {
		return c.writeRow(ctx, idx+1, tx)
	}
	return c.appendRow(ctx, tx)
}

// Remove deletes the row with the given ID. A missing row is not an error.
func (c *Client) Remove(ctx context.Context, id string) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	rows, err := c.readRows(ctx)
	if err != nil {
		return err
	}
	idx := findRow(rows, id)
	if idx < 0 {
		return nil
	}
	if err := c.deleteRow(ctx, idx, id); err != nil && !errors.Is(err, store.ErrNotFound) {
		return err
	}
	return nil
}

func (c *Client) readRows(ctx context.Context) ([][]string, error) {
	if c.svc == nil {
		return nil, errors.New("sheets service not initialized")
	}
	rng := fmt.Sprintf("%s!A:F", c.sheet)
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", rng, err)
	}
	rows := make([][]string, len(resp.Values))
	for i, r := range resp.Values {
		rows[i] = toStrings(r)
	}
	return rows, nil
}

func (c *Client) appendRow(ctx context.Context, tx core.Transaction) error {
	if c.svc == nil {
		return errors.New("sheets service not initialized")
	}
	rng := fmt.Sprintf("%s!A:F", c.sheet)
	vr := &gsheet.ValueRange{Values: [][]any{formatRow(tx)}}
	_, err := c.svc.Spreadsheets.Values.Append(c.spreadsheetID, rng, vr).
		ValueInputOption("RAW").InsertDataOption("INSERT_ROWS").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("append to sheet %s: %w", c.sheet, err)
	}
	return nil
}

// writeRow overwrites the 1-based sheet row.
func (c *Client) writeRow(ctx context.Context, row int, tx core.Transaction) error {
	rng := fmt.Sprintf("%s!A%d:F%d", c.sheet, row, row)
	vr := &gsheet.ValueRange{Values: [][]any{formatRow(tx)}}
	_, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, rng, vr).
		ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("update %s: %w", rng, err)
	}
	return nil
}

// deleteRow removes the row with the given ID, starting from the 0-based
// index idx. The ID at idx is checked first; when another writer has moved
// the row it is looked up again. store.ErrNotFound means the row is gone.
func (c *Client) deleteRow(ctx context.Context, idx int, id string) error {
	for attempt := 0; attempt < maxDeleteAttempts; attempt++ {
		got, err := c.readID(ctx, idx)
		if err != nil {
			return err
		}
		if got == id {
			return c.deleteIndex(ctx, idx)
		}
		rows, err := c.readRows(ctx)
		if err != nil {
			return err
		}
		if idx = findRow(rows, id); idx < 0 {
			return store.ErrNotFound
		}
	}
	return fmt.Errorf("delete %s in %s: row moved %d times", id, c.sheet, maxDeleteAttempts)
}

// readID returns the ID cell of the 0-based row index.
func (c *Client) readID(ctx context.Context, idx int) (string, error) {
	rng := fmt.Sprintf("%s!A%d:A%d", c.sheet, idx+1, idx+1)
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("read %s: %w", rng, err)
	}
	if len(resp.Values) == 0 {
		return "", nil
	}
	return safeGet(toStrings(resp.Values[0]), colID), nil
}

// deleteIndex removes the 0-based row index from the sheet.
func (c *Client) deleteIndex(ctx context.Context, idx int) error {
	sheetID, err := c.lookupSheetID(ctx)
	if err != nil {
		return err
	}
	req := &gsheet.BatchUpdateSpreadsheetRequest{Requests: []*gsheet.Request{{
		DeleteDimension: &gsheet.DeleteDimensionRequest{Range: &gsheet.DimensionRange{
			SheetId:    sheetID,
			Dimension:  "ROWS",
			StartIndex: int64(idx),
			EndIndex:   int64(idx + 1),
		}},
	}}}
	if _, err := c.svc.Spreadsheets.BatchUpdate(c.spreadsheetID, req).Context(ctx).Do(); err != nil {
		return fmt.Errorf("delete row %d in %s: %w", idx+1, c.sheet, err)
	}
	return nil
}

func (c *Client) lookupSheetID(ctx context.Context) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.hasSheetID {
		return c.sheetID, nil
	}
	ss, err := c.svc.Spreadsheets.Get(c.spreadsheetID).Fields("sheets.properties").Context(ctx).Do()
	if err != nil {
		return 0, fmt.Errorf("read spreadsheet properties: %w", err)
	}
	for _, sh := range ss.Sheets {
		if sh.Properties != nil && sh.Properties.Title == c.sheet {
			c.sheetID, c.hasSheetID = sh.Properties.SheetId, true
			return c.sheetID, nil
		}
	}
	return 0, fmt.Errorf("sheet %q not found in spreadsheet", c.sheet)
}

func findRow(rows [][]string, id string) int {
	if strings.TrimSpace(id) == "" {
		return -1
	}
	for i, r := range rows {
		if safeGet(r, colID) == id {
			return i
		}
	}
	return -1
}
