package scheduling

import (
	"context"
	"time"

	"dunning/internal/providers/calendar"
)

//go:generate mockgen -source=calendar.go -destination=mocks/calendar_mock.go -package=mocks

// Calendar is the shared calendar resource.
type Calendar interface {
	CalendarID() string
	ListEvents(ctx context.Context, from, to time.Time) ([]calendar.Event, error)
	CreateEvent(ctx context.Context, e calendar.NewEvent) (calendar.Event, error)
}
