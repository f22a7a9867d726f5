package verification

import (
	"context"
	"errors"
	"log/slog"

	"dunning/internal/platform/metrics"
	"dunning/internal/records"
	id "dunning/pkg/domain"
	dErrors "dunning/pkg/domain-errors"
	"dunning/pkg/platform/audit"
	"dunning/pkg/platform/sentinel"
)

// ResidentStore is the read side the verifier needs.
type ResidentStore interface {
	FindResident(ctx context.Context, residentID id.ResidentID) (*records.Resident, error)
}

// AuditPublisher records verification outcomes.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Service verifies identity claims.
type Service struct {
	store   ResidentStore
	auditor AuditPublisher
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

func WithAuditor(a AuditPublisher) Option {
	return func(s *Service) { s.auditor = a }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// NewService constructs a verifier over store.
func NewService(store ResidentStore, opts ...Option) *Service {
	s := &Service{store: store, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Verify matches claim against the stored resident. An unknown resident is
// not_found; any other failure is internal and discloses nothing.
func (s *Service) Verify(ctx context.Context, claim Claim) (*Result, error) {
	resident, err := s.store.FindResident(ctx, claim.ResidentID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			s.metrics.IncVerification("not_found")
			return nil, dErrors.New(dErrors.CodeNotFound, "resident not found")
		}
		s.logger.ErrorContext(ctx, "failed to load resident for verification", "error", err)
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "verification failed")
	}

	res := Evaluate(claim, resident)

	outcome := "not_verified"
	action := audit.EventIdentityNotVerified
	if res.Verified {
		outcome = "verified"
		action = audit.EventIdentityVerified
	}
	s.metrics.IncVerification(outcome)
	if s.auditor != nil {
		if err := s.auditor.Emit(ctx, audit.Event{
			Action:      string(action),
			SubjectHash: audit.SubjectHash(claim.ResidentID.String()),
			Decision:    outcome,
		}); err != nil {
			s.logger.WarnContext(ctx, "failed to emit verification audit event", "error", err)
		}
	}
	s.logger.InfoContext(ctx, "identity verification completed",
		"verified", res.Verified,
		"fname_score", res.FirstNameScore,
		"lname_score", res.LastNameScore,
		"dob_match", res.DOBMatch,
	)
	return res, nil
}

// Evaluate scores claim against resident without touching storage.
func Evaluate(claim Claim, resident *records.Resident) *Result {
	res := &Result{
		ResidentID:     claim.ResidentID,
		FirstNameScore: Score(claim.FirstName, resident.FirstName),
		LastNameScore:  Score(claim.LastName, resident.LastName),
		DOBMatch:       SameDate(claim.DateOfBirth, resident.DateOfBirth),
	}
	res.NameMatch = NameMatches(res.FirstNameScore, res.LastNameScore, resident.FirstName, resident.LastName)
	res.Verified = res.NameMatch && res.DOBMatch
	if !res.Verified {
		return res
	}

	d := &Disclosure{
		Balance:      resident.Balance,
		PayerDesc:    resident.PayerDesc,
		FacilityName: resident.FacilityName,
	}
	if resident.DueDate != nil {
		due := *resident.DueDate
		d.DueDate = &due
		d.Pronunciation = Pronounce(due).String()
	}
	res.Disclosure = d
	return res
}
