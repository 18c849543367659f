// Package google mirrors ledger transactions into a Google spreadsheet, one
// sheet per year.
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

	"ledgerly/internal/core"
	ports "ledgerly/internal/sheets"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

var _ ports.TransactionWriter = (*Client)(nil)

type Options struct {
	SpreadsheetID string
	// SheetBase is the sheet name without the year, e.g. "Ledger".
	SheetBase string
	// Credentials: inline service account JSON, or a path to it. When both
	// are empty GOOGLE_APPLICATION_CREDENTIALS is consulted.
	CredentialsJSON string
	CredentialsFile string
}

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetBase     string

	// Serializes find-then-write so two deliveries cannot claim one row.
	mu sync.Mutex
	// sheets already known to exist, guarded by mu.
	known map[string]bool
}

func New(ctx context.Context, opts Options) (*Client, error) {
	if strings.TrimSpace(opts.SpreadsheetID) == "" {
		return nil, errors.New("missing spreadsheet id")
	}
	base := strings.TrimSpace(opts.SheetBase)
	if base == "" {
		base = "Ledger"
	}

	svc, err := newSheetsService(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}
	return &Client{svc: svc, spreadsheetID: opts.SpreadsheetID, sheetBase: base, known: map[string]bool{}}, nil
}

// newSheetsService builds a Sheets service from service account credentials.
func newSheetsService(ctx context.Context, opts Options) (*gsheet.Service, error) {
	credentialsJSON := []byte(strings.TrimSpace(opts.CredentialsJSON))
	file := strings.TrimSpace(opts.CredentialsFile)
	if len(credentialsJSON) == 0 && file == "" {
		file = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	switch {
	case len(credentialsJSON) > 0:
		slog.InfoContext(ctx, "Using inline service account credentials")
	case file != "":
		b, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		credentialsJSON = b
		slog.InfoContext(ctx, "Read service account credentials", "path", file)
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}

	svc, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return svc, nil
}

// Upsert writes the transaction over its existing row, or appends it.
func (c *Client) Upsert(ctx context.Context, tx core.Transaction) (string, error) {
	if c.svc == nil {
		return "", errors.New("sheets service not initialized")
	}
	if tx.ID == "" {
		return "", errors.New("transaction without id")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	sheet := sheetForDate(c.sheetBase, tx.Date, time.Now().Year())
	if err := c.ensureSheet(ctx, sheet); err != nil {
		return "", err
	}
	colA, err := c.readIDs(ctx, sheet)
	if err != nil {
		// The sheet may have been deleted by hand; look again next time.
		delete(c.known, sheet)
		return "", err
	}

	row := findRow(colA, tx.ID)
	if row == 0 {
		row = nextRow(colA)
		if len(colA) == 0 {
			if err := c.writeRow(ctx, sheet, 1, header); err != nil {
				return "", err
			}
		}
	}
	if err := c.writeRow(ctx, sheet, row, rowFor(tx)); err != nil {
		return "", err
	}

	ref := rowRange(sheet, row)
	slog.DebugContext(ctx, "Mirrored transaction", "id", tx.ID, "sheets_ref", ref)
	return ref, nil
}

func (c *Client) Remove(ctx context.Context, id, date string) error {
	if c.svc == nil {
		return errors.New("sheets service not initialized")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	sheet := sheetForDate(c.sheetBase, date, time.Now().Year())
	exists, err := c.sheetExists(ctx, sheet)
	if err != nil {
		return err
	}
	if !exists {
		slog.InfoContext(ctx, "Sheet missing, nothing to remove", "id", id, "sheet", sheet)
		return nil
	}
	colA, err := c.readIDs(ctx, sheet)
	if err != nil {
		return err
	}
	row := findRow(colA, id)
	if row == 0 {
		slog.InfoContext(ctx, "Transaction not mirrored, nothing to remove", "id", id, "sheet", sheet)
		return nil
	}

	rng := rowRange(sheet, row)
	_, err = c.svc.Spreadsheets.Values.Clear(c.spreadsheetID, rng, &gsheet.ClearValuesRequest{}).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("clear %s: %w", rng, err)
	}
	return nil
}

// sheetExists reports whether the spreadsheet has a sheet titled name.
// Positive answers are remembered. Callers hold c.mu.
func (c *Client) sheetExists(ctx context.Context, name string) (bool, error) {
	if c.known[name] {
		return true, nil
	}
	ss, err := c.svc.Spreadsheets.Get(c.spreadsheetID).Fields("sheets.properties.title").Context(ctx).Do()
	if err != nil {
		return false, fmt.Errorf("list sheets: %w", err)
	}
	for _, title := range sheetTitles(ss) {
		c.known[title] = true
	}
	return c.known[name], nil
}

// ensureSheet adds the sheet when it does not exist yet, so the first
// transaction of a new year needs no manual setup. Callers hold c.mu.
func (c *Client) ensureSheet(ctx context.Context, name string) error {
	exists, err := c.sheetExists(ctx, name)
	if err != nil || exists {
		return err
	}
	_, err = c.svc.Spreadsheets.BatchUpdate(c.spreadsheetID, addSheetRequest(name)).Context(ctx).Do()
	if err != nil && !alreadyExists(err) {
		return fmt.Errorf("add sheet %q: %w", name, err)
	}
	c.known[name] = true
	slog.InfoContext(ctx, "Added yearly sheet", "sheet", name)
	return nil
}

func (c *Client) readIDs(ctx context.Context, sheet string) ([][]any, error) {
	rng := fmt.Sprintf("'%s'!A:A", sheet)
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", rng, err)
	}
	return resp.Values, nil
}

func (c *Client) writeRow(ctx context.Context, sheet string, row int, values []any) error {
	rng := rowRange(sheet, row)
	vr := &gsheet.ValueRange{Values: [][]any{values}}
	// RAW keeps user text such as "=SUM(...)" from being read as a formula.
	_, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, rng, vr).
		ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("update %s: %w", rng, err)
	}
	return nil
}
