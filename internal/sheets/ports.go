// Package sheets defines the spreadsheet mirror port. The worker keeps one
// tab per user in sync with that user's ledger.
package sheets

import (
	"context"

	"hisaab/internal/ledger"
)

// LedgerMirror replaces the contents of a tab with a ledger, newest entry
// first, creating the tab when needed.
type LedgerMirror interface {
	WriteLedger(ctx context.Context, tab string, entries []ledger.Entry) error
}
