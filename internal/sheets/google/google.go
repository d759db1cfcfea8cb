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

	"dindion/internal/core"
	ports "dindion/internal/sheets"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

const defaultSheetName = "Transactions"

// Options locate the spreadsheet and the service account used to write it.
type Options struct {
	SpreadsheetID   string
	SheetName       string
	CredentialsJSON string
	CredentialsFile string
	RowCacheTTL     time.Duration
}

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheet         string

	// The next free row is cached so consecutive exports skip a read.
	mu                 sync.Mutex
	cachedRowCount     int
	cacheExpiresAt     time.Time
	cacheValidDuration time.Duration
}

var _ ports.TransactionExporter = (*Client)(nil)

var (
	ErrMissingSpreadsheetID = errors.New("missing GOOGLE_SPREADSHEET_ID")
	errNotInitialized       = errors.New("sheets service not initialized")
)

// New creates a Sheets client authenticated with a service account.
func New(ctx context.Context, opts Options) (*Client, error) {
	if strings.TrimSpace(opts.SpreadsheetID) == "" {
		return nil, ErrMissingSpreadsheetID
	}
	creds, err := loadCredentials(ctx, opts)
	if err != nil {
		return nil, err
	}
	svc, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(creds),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	slog.InfoContext(ctx, "Google Sheets service created", "spreadsheet_id", opts.SpreadsheetID)
	return newClient(svc, opts), nil
}

func newClient(svc *gsheet.Service, opts Options) *Client {
	sheet := strings.TrimSpace(opts.SheetName)
	if sheet == "" {
		sheet = defaultSheetName
	}
	ttl := opts.RowCacheTTL
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &Client{svc: svc, spreadsheetID: opts.SpreadsheetID, sheet: sheet, cacheValidDuration: ttl}
}

// loadCredentials prefers inline JSON, then a file, then GOOGLE_APPLICATION_CREDENTIALS.
func loadCredentials(ctx context.Context, opts Options) ([]byte, error) {
	inline := strings.TrimSpace(opts.CredentialsJSON)
	file := strings.TrimSpace(opts.CredentialsFile)
	if inline == "" && file == "" {
		file = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}
	switch {
	case inline != "":
		slog.DebugContext(ctx, "Using inline service account credentials")
		return []byte(inline), nil
	case file != "":
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		return data, nil
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}
}

// Export appends one row describing tx and returns its A1 reference.
func (c *Client) Export(ctx context.Context, uid string, tx core.Transaction) (string, error) {
	if tx.ID == "" {
		return "", errors.New("transaction without id cannot be exported")
	}
	if c.svc == nil {
		return "", errNotInitialized
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	next, err := c.nextRowLocked(ctx)
	if err != nil {
		return "", err
	}
	rng := fmt.Sprintf("%s!A%d:%s%d", c.sheet, next, lastColumn, next)
	vr := &gsheet.ValueRange{Values: [][]any{transactionRow(uid, tx)}}
	_, err = c.svc.Spreadsheets.Values.Update(c.spreadsheetID, rng, vr).
		ValueInputOption("USER_ENTERED").Context(ctx).Do()
	if err != nil {
		c.cacheExpiresAt = time.Time{}
		return "", fmt.Errorf("update %s: %w", rng, err)
	}
	c.cachedRowCount = next
	return rng, nil
}

// Remove clears the row holding transaction id. Rows are cleared rather than
// deleted so row references handed out earlier stay valid.
func (c *Client) Remove(ctx context.Context, uid, id string) error {
	if c.svc == nil {
		return errNotInitialized
	}
	rng := fmt.Sprintf("%s!A:B", c.sheet)
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("read %s: %w", rng, err)
	}
	row := findRow(resp.Values, uid, id)
	if row == 0 {
		slog.DebugContext(ctx, "Transaction not present in sheet", "id", id)
		return nil
	}
	target := fmt.Sprintf("%s!A%d:%s%d", c.sheet, row, lastColumn, row)
	if _, err := c.svc.Spreadsheets.Values.Clear(c.spreadsheetID, target, &gsheet.ClearValuesRequest{}).Context(ctx).Do(); err != nil {
		return fmt.Errorf("clear %s: %w", target, err)
	}
	return nil
}

// nextRowLocked must be called with c.mu held.
func (c *Client) nextRowLocked(ctx context.Context) (int, error) {
	if time.Now().Before(c.cacheExpiresAt) {
		return c.cachedRowCount + 1, nil
	}
	rng := fmt.Sprintf("%s!A:A", c.sheet)
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return 0, fmt.Errorf("failed to get sheet dimensions for %s: %w", c.sheet, err)
	}
	c.cachedRowCount = len(resp.Values)
	if c.cachedRowCount == 0 {
		hdr := fmt.Sprintf("%s!A1:%s1", c.sheet, lastColumn)
		_, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, hdr, &gsheet.ValueRange{Values: [][]any{header}}).
			ValueInputOption("RAW").Context(ctx).Do()
		if err != nil {
			return 0, fmt.Errorf("write header %s: %w", hdr, err)
		}
		c.cachedRowCount = 1
	}
	c.cacheExpiresAt = time.Now().Add(c.cacheValidDuration)
	return c.cachedRowCount + 1, nil
}
