// Package residents answers contact lookups for the voice agent and loads
// the resident roster from spreadsheets.
package residents

import (
	"context"
	"log/slog"
	"strings"

	"dunning/internal/records"
	"dunning/internal/verification"
	dErrors "dunning/pkg/domain-errors"
)

type Store interface {
	SearchResidents(ctx context.Context, f records.ResidentFilter, limit int) ([]records.Resident, error)
}

type Service struct {
	store  Store
	logger *slog.Logger
}

func NewService(store Store, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, logger: logger}
}

// Lookup returns the first resident matching every set filter. Names match
// as case-insensitive substrings; a date of birth in any accepted spelling is
// normalized before the exact comparison.
func (s *Service) Lookup(ctx context.Context, f records.ResidentFilter) (*records.Resident, error) {
	f = normalize(f)
	if f.IsEmpty() {
		return nil, dErrors.New(dErrors.CodeValidation, "at least one of resident_id, resident_name, date_of_birth or contact_name is required")
	}

	found, err := s.store.SearchResidents(ctx, f, 1)
	if err != nil {
		s.logger.ErrorContext(ctx, "resident lookup failed", "error", err)
		return nil, dErrors.Wrap(err, dErrors.CodeStorage, "resident lookup failed")
	}
	if len(found) == 0 {
		return nil, dErrors.New(dErrors.CodeNotFound, "resident not found")
	}
	return &found[0], nil
}

func normalize(f records.ResidentFilter) records.ResidentFilter {
	f.ResidentID = strings.TrimSpace(f.ResidentID)
	f.ResidentName = strings.Join(strings.Fields(f.ResidentName), " ")
	f.ContactName = strings.Join(strings.Fields(f.ContactName), " ")
	f.DateOfBirth = strings.TrimSpace(f.DateOfBirth)
	if f.DateOfBirth != "" {
		if d, err := verification.ParseDate(f.DateOfBirth); err == nil {
			f.DateOfBirth = d.Format("2006-01-02")
		}
	}
	return f
}
