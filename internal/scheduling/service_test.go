package scheduling_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"dunning/internal/compliance"
	"dunning/internal/platform/metrics"
	"dunning/internal/providers"
	"dunning/internal/providers/calendar"
	"dunning/internal/records"
	"dunning/internal/scheduling"
	"dunning/internal/scheduling/mocks"
	dErrors "dunning/pkg/domain-errors"
	"dunning/pkg/platform/audit"
	"dunning/pkg/platform/audit/publisher"
	auditmemory "dunning/pkg/platform/audit/store/memory"
	"dunning/pkg/requestcontext"
)

func TestOverlaps(t *testing.T) {
	base := time.Date(2025, 5, 1, 14, 0, 0, 0, time.UTC)
	hour := func(h float64) time.Time { return base.Add(time.Duration(h * float64(time.Hour))) }
	reqStart, reqEnd := hour(0), hour(1)

	cases := []struct {
		name       string
		start, end time.Time
		want       bool
	}{
		{"existing fully contains request", hour(-1), hour(2), true},
		{"existing contained by request", hour(0.25), hour(0.75), true},
		{"identical interval", hour(0), hour(1), true},
		{"overlaps start", hour(-0.5), hour(0.5), true},
		{"overlaps end", hour(0.5), hour(1.5), true},
		{"ends exactly at request start", hour(-1), hour(0), false},
		{"starts exactly at request end", hour(1), hour(2), false},
		{"entirely before", hour(-3), hour(-2), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, scheduling.Overlaps(reqStart, reqEnd, tc.start, tc.end))
			assert.Equal(t, tc.want, scheduling.Overlaps(tc.start, tc.end, reqStart, reqEnd))
		})
	}
}

type BookingSuite struct {
	suite.Suite
	ctrl       *gomock.Controller
	calendar   *mocks.MockCalendar
	store      *records.MemoryStore
	auditStore *auditmemory.InMemoryStore
	metrics    *metrics.Metrics
	service    *scheduling.Service
	denver     *time.Location
}

func TestBookingSuite(t *testing.T) {
	suite.Run(t, new(BookingSuite))
}

func (s *BookingSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.calendar = mocks.NewMockCalendar(s.ctrl)
	s.calendar.EXPECT().CalendarID().Return("primary").AnyTimes()
	s.store = records.NewMemory()
	s.auditStore = auditmemory.NewInMemoryStore()
	s.metrics = metrics.New(prometheus.NewRegistry())

	zone, err := compliance.NewFixedZone("America/Denver")
	s.Require().NoError(err)
	s.denver, err = time.LoadLocation("America/Denver")
	s.Require().NoError(err)

	s.service = scheduling.NewService(s.calendar, s.store, compliance.New(zone),
		scheduling.WithAuditor(publisher.NewPublisher(s.auditStore)),
		scheduling.WithMetrics(s.metrics),
	)
}

func (s *BookingSuite) ctxAt(hour int) context.Context {
	return requestcontext.WithTime(context.Background(), time.Date(2025, 5, 1, hour, 0, 0, 0, s.denver))
}

func (s *BookingSuite) request() scheduling.Request {
	return scheduling.Request{
		CallID:          "call-1",
		ResidentID:      "600999",
		ContactEmail:    "emma@example.com",
		Start:           time.Date(2025, 5, 2, 10, 0, 0, 0, s.denver),
		DurationMinutes: 30,
		Title:           "Payment plan review",
	}
}

func (s *BookingSuite) actions() []string {
	events, err := s.auditStore.ListRecent(context.Background(), 50)
	s.Require().NoError(err)
	var out []string
	for _, e := range events {
		out = append(out, e.Action)
	}
	return out
}

func (s *BookingSuite) TestBook_FreeSlot() {
	req := s.request()
	s.calendar.EXPECT().ListEvents(gomock.Any(), req.Start, req.End()).Return(nil, nil)
	s.calendar.EXPECT().CreateEvent(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, e calendar.NewEvent) (calendar.Event, error) {
			s.Equal([]string{"emma@example.com"}, e.Attendees)
			s.Equal(req.Start.Add(30*time.Minute), e.End)
			return calendar.Event{ID: "evt-1", Start: e.Start, End: e.End}, nil
		})

	appt, err := s.service.Book(s.ctxAt(11), req)
	s.Require().NoError(err)
	s.Equal("evt-1", appt.CalendarEventID.String())
	s.Len(s.store.Appointments(), 1)
	s.Equal([]string{string(audit.EventAppointmentBooked)}, s.actions())
}

func (s *BookingSuite) TestBook_AdjacentEventIsNotAConflict() {
	req := s.request()
	s.calendar.EXPECT().ListEvents(gomock.Any(), gomock.Any(), gomock.Any()).Return([]calendar.Event{
		{ID: "before", Start: req.Start.Add(-time.Hour), End: req.Start},
	}, nil)
	s.calendar.EXPECT().CreateEvent(gomock.Any(), gomock.Any()).Return(calendar.Event{ID: "evt-2"}, nil)

	_, err := s.service.Book(s.ctxAt(11), req)
	s.Require().NoError(err)
}

// An existing event spanning the whole slot blocks the booking entirely.
func (s *BookingSuite) TestBook_ConflictWritesNothing() {
	req := s.request()
	s.calendar.EXPECT().ListEvents(gomock.Any(), gomock.Any(), gomock.Any()).Return([]calendar.Event{
		{ID: "busy", Start: req.Start.Add(-time.Hour), End: req.End().Add(time.Hour)},
	}, nil)

	_, err := s.service.Book(s.ctxAt(11), req)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	s.Empty(s.store.Appointments())
	s.Equal(1.0, promtest.ToFloat64(s.metrics.BookingConflicts))
	s.Equal([]string{string(audit.EventAppointmentConflict)}, s.actions())
}

func (s *BookingSuite) TestBook_OutsideWindowTouchesNothing() {
	_, err := s.service.Book(s.ctxAt(21), s.request())
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeComplianceRejected))
	s.Empty(s.store.Appointments())
	s.Equal([]string{string(audit.EventComplianceRejected)}, s.actions())
}

func (s *BookingSuite) TestBook_CalendarFailureIsAProviderError() {
	s.calendar.EXPECT().ListEvents(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(nil, providers.FromStatus(calendar.ProviderName, "list_events", 503, "backend error"))

	_, err := s.service.Book(s.ctxAt(11), s.request())
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeProvider))
	s.False(dErrors.HasCode(err, dErrors.CodeConflict))
	s.Empty(s.store.Appointments())
}

func (s *BookingSuite) TestBook_Validation() {
	cases := map[string]func(r *scheduling.Request){
		"missing resident": func(r *scheduling.Request) { r.ResidentID = "" },
		"bad email":        func(r *scheduling.Request) { r.ContactEmail = "emma" },
		"zero duration":    func(r *scheduling.Request) { r.DurationMinutes = 0 },
		"too long":         func(r *scheduling.Request) { r.DurationMinutes = 481 },
		"missing title":    func(r *scheduling.Request) { r.Title = " " },
		"missing start":    func(r *scheduling.Request) { r.Start = time.Time{} },
	}
	for name, mutate := range cases {
		s.Run(name, func() {
			req := s.request()
			mutate(&req)
			_, err := s.service.Book(s.ctxAt(11), req)
			s.True(dErrors.HasCode(err, dErrors.CodeValidation))
		})
	}
}

// calendarFake records events so concurrent bookings see each other's writes.
type calendarFake struct {
	mu     sync.Mutex
	events []calendar.Event
}

func (c *calendarFake) CalendarID() string { return "primary" }

func (c *calendarFake) ListEvents(_ context.Context, from, to time.Time) ([]calendar.Event, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []calendar.Event
	for _, e := range c.events {
		if e.Start.Before(to) && from.Before(e.End) {
			out = append(out, e)
		}
	}
	// widen the race window between list and create
	time.Sleep(2 * time.Millisecond)
	return out, nil
}

func (c *calendarFake) CreateEvent(_ context.Context, e calendar.NewEvent) (calendar.Event, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ev := calendar.Event{ID: e.Start.String(), Start: e.Start, End: e.End}
	c.events = append(c.events, ev)
	return ev, nil
}

func TestBook_ConcurrentSameSlotBooksOnce(t *testing.T) {
	zone, err := compliance.NewFixedZone("UTC")
	require.NoError(t, err)
	store := records.NewMemory()
	svc := scheduling.NewService(&calendarFake{}, store, compliance.New(zone))
	ctx := requestcontext.WithTime(context.Background(), time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC))

	var wg sync.WaitGroup
	errs := make([]error, 6)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.Book(ctx, scheduling.Request{
				ResidentID:      "600999",
				ContactEmail:    "emma@example.com",
				Start:           time.Date(2025, 5, 2, 15, 0, 0, 0, time.UTC),
				DurationMinutes: 60,
				Title:           "Review",
			})
		}(i)
	}
	wg.Wait()

	var conflicts int
	for _, err := range errs {
		if err != nil {
			assert.True(t, dErrors.HasCode(err, dErrors.CodeConflict), "unexpected error %v", err)
			conflicts++
		}
	}
	assert.Equal(t, len(errs)-1, conflicts)
	assert.Len(t, store.Appointments(), 1)
}
