package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"hisaab/internal/ledger"
	ports "hisaab/internal/sheets"
)

const maxTabName = 100

var header = []any{"Date", "Time", "Type", "Payment Method", "Description", "Amount", "Balance"}

// Mirror writes ledgers into tabs of one spreadsheet.
type Mirror struct {
	svc           *gsheet.Service
	spreadsheetID string
}

var _ ports.LedgerMirror = (*Mirror)(nil)

func New(svc *gsheet.Service, spreadsheetID string) *Mirror {
	return &Mirror{svc: svc, spreadsheetID: spreadsheetID}
}

// NewFromCredentials builds a mirror authenticated as a service account.
func NewFromCredentials(ctx context.Context, spreadsheetID string, credentialsJSON []byte) (*Mirror, error) {
	if strings.TrimSpace(spreadsheetID) == "" {
		return nil, errors.New("missing spreadsheet id")
	}
	svc, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	slog.InfoContext(ctx, "Google Sheets service created", "spreadsheet_id", spreadsheetID)
	return New(svc, spreadsheetID), nil
}

// LoadCredentials returns inline JSON when set, otherwise the file contents.
func LoadCredentials(inlineJSON, file string) ([]byte, error) {
	inlineJSON, file = strings.TrimSpace(inlineJSON), strings.TrimSpace(file)
	switch {
	case inlineJSON != "":
		return []byte(inlineJSON), nil
	case file != "":
		b, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		return b, nil
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON or GOOGLE_SERVICE_ACCOUNT_FILE)")
	}
}

func (m *Mirror) WriteLedger(ctx context.Context, tab string, entries []ledger.Entry) error {
	if m.svc == nil {
		return errors.New("sheets service not initialized")
	}
	tab = TabName(tab)
	if err := m.ensureTab(ctx, tab); err != nil {
		return err
	}

	all := quoteRange(tab, "A:G")
	if _, err := m.svc.Spreadsheets.Values.Clear(m.spreadsheetID, all, &gsheet.ClearValuesRequest{}).Context(ctx).Do(); err != nil {
		return fmt.Errorf("clear %s: %w", all, err)
	}

	vr := &gsheet.ValueRange{Values: LedgerValues(entries)}
	start := quoteRange(tab, "A1")
	_, err := m.svc.Spreadsheets.Values.Update(m.spreadsheetID, start, vr).
		ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("write %s: %w", start, err)
	}
	slog.DebugContext(ctx, "Ledger mirrored", "tab", tab, "rows", len(entries))
	return nil
}

func (m *Mirror) ensureTab(ctx context.Context, tab string) error {
	ss, err := m.svc.Spreadsheets.Get(m.spreadsheetID).Fields("sheets.properties.title").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("read spreadsheet: %w", err)
	}
	for _, s := range ss.Sheets {
		if s.Properties != nil && s.Properties.Title == tab {
			return nil
		}
	}
	req := &gsheet.BatchUpdateSpreadsheetRequest{Requests: []*gsheet.Request{{
		AddSheet: &gsheet.AddSheetRequest{Properties: &gsheet.SheetProperties{Title: tab}},
	}}}
	if _, err := m.svc.Spreadsheets.BatchUpdate(m.spreadsheetID, req).Context(ctx).Do(); err != nil {
		return fmt.Errorf("add tab %q: %w", tab, err)
	}
	slog.InfoContext(ctx, "Created spreadsheet tab", "tab", tab)
	return nil
}

// LedgerValues renders entries as a header row plus one row per entry.
// Amounts are signed so the sheet can sum the column.
func LedgerValues(entries []ledger.Entry) [][]any {
	rows := make([][]any, 0, len(entries)+1)
	rows = append(rows, header)
	for _, e := range entries {
		at := ""
		if e.OccurredAt.Valid() {
			at = e.OccurredAt.String()
		}
		rows = append(rows, []any{
			e.OccurredOn.String(),
			at,
			string(e.Kind),
			e.PaymentMethod.Label(),
			e.Description,
			e.Kind.Signed(e.Amount).StringFixed(2),
			e.RunningBalance.StringFixed(2),
		})
	}
	return rows
}

// TabName strips characters Sheets refuses in tab titles and caps the length.
func TabName(s string) string {
	s = strings.Map(func(r rune) rune {
		switch r {
		case '[', ']', '*', '?', '/', '\\', ':':
			return '_'
		}
		return r
	}, strings.TrimSpace(s))
	if s == "" {
		s = "Ledger"
	}
	if r := []rune(s); len(r) > maxTabName {
		s = string(r[:maxTabName])
	}
	return s
}

func quoteRange(tab, cells string) string {
	return "'" + strings.ReplaceAll(tab, "'", "''") + "'!" + cells
}
