// Package importer loads the resident roster from an .xlsx export and
// upserts it keyed on resident_id.
package importer

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"dunning/internal/records"
	"dunning/internal/verification"
	id "dunning/pkg/domain"
	dErrors "dunning/pkg/domain-errors"
	"dunning/pkg/platform/audit"
)

// Column headers, matched case-insensitively.
const (
	colResidentID    = "resident id"
	colResidentFirst = "resident first name"
	colResidentLast  = "resident last name"
	colContactFirst  = "contact first name"
	colContactLast   = "contact last name"
	colContactNumber = "contact number"
	colDateOfBirth   = "date of birth"
	colTotal         = "total"
	colAsOfDate      = "as of date"
	colFacilityName  = "facility name"
	colFacilityCode  = "facility code"
	colPayerDesc     = "payer desc"
)

type Store interface {
	UpsertResident(ctx context.Context, r records.Resident) error
}

// TxRunner is satisfied by tx.Runner and tx.NoopRunner.
type TxRunner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// RowError reports a spreadsheet row that was skipped. Row is 1-based as
// shown in the spreadsheet.
type RowError struct {
	Row    int    `json:"row"`
	Reason string `json:"reason"`
}

// Summary describes one import run.
type Summary struct {
	Sheet    string     `json:"sheet"`
	Rows     int        `json:"rows"`
	Imported int        `json:"imported"`
	Skipped  []RowError `json:"skipped,omitempty"`
}

type Importer struct {
	store   Store
	tx      TxRunner
	auditor AuditPublisher
	logger  *slog.Logger
	sheet   string
}

type Option func(*Importer)

func WithAuditor(a AuditPublisher) Option {
	return func(i *Importer) { i.auditor = a }
}

func WithLogger(l *slog.Logger) Option {
	return func(i *Importer) { i.logger = l }
}

// WithSheet selects a sheet by name. The first sheet is read by default.
func WithSheet(name string) Option {
	return func(i *Importer) { i.sheet = name }
}

func New(store Store, runner TxRunner, opts ...Option) *Importer {
	i := &Importer{store: store, tx: runner, logger: slog.Default()}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// ImportFile reads the workbook at path.
func (i *Importer) ImportFile(ctx context.Context, path string) (*Summary, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeValidation, "failed to open workbook")
	}
	defer f.Close()
	return i.importWorkbook(ctx, f)
}

// Import reads a workbook from r.
func (i *Importer) Import(ctx context.Context, r io.Reader) (*Summary, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeValidation, "failed to open workbook")
	}
	defer f.Close()
	return i.importWorkbook(ctx, f)
}

func (i *Importer) importWorkbook(ctx context.Context, f *excelize.File) (*Summary, error) {
	sheet := i.sheet
	if sheet == "" {
		sheet = f.GetSheetName(0)
	}
	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeValidation, fmt.Sprintf("failed to read sheet %q", sheet))
	}
	if len(rows) == 0 {
		return nil, dErrors.New(dErrors.CodeValidation, "sheet has no header row")
	}

	cols := headerIndex(rows[0])
	if _, ok := cols[colResidentID]; !ok {
		return nil, dErrors.New(dErrors.CodeValidation, "missing required column \"Resident ID\"")
	}

	summary := &Summary{Sheet: sheet}
	var parsed []records.Resident
	for n, row := range rows[1:] {
		if blank(row) {
			continue
		}
		summary.Rows++
		r, err := parseRow(cols, row)
		if err != nil {
			summary.Skipped = append(summary.Skipped, RowError{Row: n + 2, Reason: err.Error()})
			continue
		}
		parsed = append(parsed, r)
	}

	err = i.tx.RunInTx(ctx, func(ctx context.Context) error {
		for _, r := range parsed {
			if err := i.store.UpsertResident(ctx, r); err != nil {
				return fmt.Errorf("upsert resident %s: %w", r.ResidentID, err)
			}
		}
		return nil
	})
	if err != nil {
		i.logger.ErrorContext(ctx, "resident import failed", "sheet", sheet, "error", err)
		return nil, dErrors.Wrap(err, dErrors.CodeStorage, "failed to import residents")
	}
	summary.Imported = len(parsed)

	i.logger.InfoContext(ctx, "residents imported",
		"sheet", sheet,
		"rows", summary.Rows,
		"imported", summary.Imported,
		"skipped", len(summary.Skipped),
	)
	if i.auditor != nil {
		event := audit.Event{
			Action: string(audit.EventResidentsImported),
			Reason: fmt.Sprintf("%d imported, %d skipped", summary.Imported, len(summary.Skipped)),
		}
		if err := i.auditor.Emit(ctx, event); err != nil {
			i.logger.WarnContext(ctx, "failed to emit import audit event", "error", err)
		}
	}
	return summary, nil
}

func headerIndex(header []string) map[string]int {
	out := make(map[string]int, len(header))
	for n, h := range header {
		key := strings.ToLower(strings.Join(strings.Fields(h), " "))
		if key == "" {
			continue
		}
		if _, dup := out[key]; !dup {
			out[key] = n
		}
	}
	return out
}

func blank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

func parseRow(cols map[string]int, row []string) (records.Resident, error) {
	cell := func(name string) string {
		n, ok := cols[name]
		if !ok || n >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[n])
	}

	r := records.Resident{
		ResidentID:       id.ResidentID(cell(colResidentID)),
		FirstName:        cell(colResidentFirst),
		LastName:         cell(colResidentLast),
		ContactFirstName: cell(colContactFirst),
		ContactLastName:  cell(colContactLast),
		ContactNumber:    cell(colContactNumber),
		FacilityName:     cell(colFacilityName),
		FacilityCode:     cell(colFacilityCode),
		PayerDesc:        cell(colPayerDesc),
	}
	if r.ResidentID == "" {
		return r, fmt.Errorf("resident id is empty")
	}

	if raw := cell(colDateOfBirth); raw != "" {
		dob, err := parseCellDate(raw)
		if err != nil {
			return r, fmt.Errorf("date of birth %q: %w", raw, err)
		}
		r.DateOfBirth = dob.Format("2006-01-02")
	}
	if raw := cell(colAsOfDate); raw != "" {
		due, err := parseCellDate(raw)
		if err != nil {
			return r, fmt.Errorf("as of date %q: %w", raw, err)
		}
		r.DueDate = &due
	}
	if raw := cell(colTotal); raw != "" {
		balance, err := parseCellAmount(raw)
		if err != nil {
			return r, fmt.Errorf("total %q: %w", raw, err)
		}
		r.Balance = balance
	}
	return r, nil
}

// parseCellDate accepts an Excel serial date or any text date ParseDate knows.
func parseCellDate(raw string) (time.Time, error) {
	if serial, err := strconv.ParseFloat(raw, 64); err == nil {
		t, err := excelize.ExcelDateToTime(serial, false)
		if err != nil {
			return time.Time{}, err
		}
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
	}
	return verification.ParseDate(raw)
}

func parseCellAmount(raw string) (id.Cents, error) {
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		return id.CentsFromFloat(f), nil
	}
	return id.ParseCents(raw)
}
