// Package telemetry provides the conservation-audit ledger: a per-step CSV
// record of charge deposited, injected, and received across the boundary-
// exchange core, plus the structured and plain-text logging surfaces the
// rest of the module reports soft errors through.
package telemetry

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/gocarina/gocsv"
)

// AuditRecord is one step's conservation summary for one rank (spec.md
// §4.7). DepositedCharge is the sum of field.Deposit's absorbed charge;
// InjectedCharge is the sum of charge the Mover Scan sent outbound across
// all six faces plus the local custom-handler buffer; ReceivedCharge is the
// sum of charge the Reinjector replayed back in. Under invariant I1, a
// step's DepositedCharge plus whatever crosses a true domain boundary is
// the only charge this rank may lose; everything else must reappear as
// ReceivedCharge.
type AuditRecord struct {
	Tick             int32   `csv:"tick"`
	Rank             int     `csv:"rank"`
	DepositedCharge  float64 `csv:"deposited_charge"`
	InjectedCharge   float64 `csv:"injected_charge"`
	ReceivedCharge   float64 `csv:"received_charge"`
	UnclassifiedHits int     `csv:"unclassified_hits"`
}

// LogValue implements slog.LogValuer for structured logging, mirroring the
// teacher's WindowStats.LogValue.
func (r AuditRecord) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("tick", int(r.Tick)),
		slog.Int("rank", r.Rank),
		slog.Float64("deposited_charge", r.DepositedCharge),
		slog.Float64("injected_charge", r.InjectedCharge),
		slog.Float64("received_charge", r.ReceivedCharge),
		slog.Int("unclassified_hits", r.UnclassifiedHits),
	)
}

// Ledger writes one audit.csv per run directory and emits a slog record per
// step, mirroring the teacher's OutputManager/telemetry.csv pairing.
type Ledger struct {
	dir           string
	file          *os.File
	headerWritten bool
	logger        *slog.Logger
}

// NewLedger creates the ledger's output directory and opens audit.csv. If
// dir is empty, the ledger still logs through logger but writes no CSV.
func NewLedger(dir string, logger *slog.Logger) (*Ledger, error) {
	l := &Ledger{logger: logger}
	if dir == "" {
		return l, nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("telemetry: creating output directory: %w", err)
	}
	f, err := os.Create(filepath.Join(dir, "audit.csv"))
	if err != nil {
		return nil, fmt.Errorf("telemetry: creating audit.csv: %w", err)
	}
	l.dir = dir
	l.file = f
	return l, nil
}

// Record appends rec to audit.csv and logs it at info level.
func (l *Ledger) Record(rec AuditRecord) error {
	if l.logger != nil {
		l.logger.Info("conservation audit", "audit", rec)
	}
	if l.file == nil {
		return nil
	}
	rows := []AuditRecord{rec}
	if !l.headerWritten {
		if err := gocsv.Marshal(rows, l.file); err != nil {
			return fmt.Errorf("telemetry: writing audit record: %w", err)
		}
		l.headerWritten = true
		return nil
	}
	if err := gocsv.MarshalWithoutHeaders(rows, l.file); err != nil {
		return fmt.Errorf("telemetry: writing audit record: %w", err)
	}
	return nil
}

// Dir returns the ledger's output directory, or "" if CSV output is disabled.
func (l *Ledger) Dir() string { return l.dir }

// Close flushes and closes audit.csv.
func (l *Ledger) Close() error {
	if l.file == nil {
		return nil
	}
	return l.file.Close()
}
