// Package calendar talks to the Google Calendar v3 REST API for the shared
// follow-up calendar.
package calendar

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-resty/resty/v2"

	"dunning/internal/platform/config"
	"dunning/internal/providers"
)

const ProviderName = "google_calendar"

// Reminder offsets applied to every booked appointment.
var ReminderOffsets = []time.Duration{24 * time.Hour, time.Hour}

// Event is a calendar entry reduced to what booking needs.
type Event struct {
	ID      string
	Summary string
	Start   time.Time
	End     time.Time
}

// NewEvent describes an event to create.
type NewEvent struct {
	Summary     string
	Description string
	Start       time.Time
	End         time.Time
	Attendees   []string
}

// Google is a Calendar client bound to one calendar.
type Google struct {
	http       *resty.Client
	calendarID string
	timeZone   string
}

func NewGoogle(cfg config.GoogleCalendarConfig, timeout time.Duration) *Google {
	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(timeout).
		SetAuthToken(cfg.AccessToken).
		SetHeader("Accept", "application/json")
	return &Google{http: client, calendarID: cfg.CalendarID, timeZone: cfg.TimeZone}
}

// CalendarID identifies the shared resource bookings serialize on.
func (g *Google) CalendarID() string { return g.calendarID }

type eventTime struct {
	DateTime string `json:"dateTime,omitempty"`
	Date     string `json:"date,omitempty"`
	TimeZone string `json:"timeZone,omitempty"`
}

func (et eventTime) parse() (time.Time, error) {
	if et.DateTime != "" {
		return time.Parse(time.RFC3339, et.DateTime)
	}
	return time.Parse("2006-01-02", et.Date)
}

type eventResource struct {
	ID          string          `json:"id,omitempty"`
	Summary     string          `json:"summary,omitempty"`
	Description string          `json:"description,omitempty"`
	Start       eventTime       `json:"start"`
	End         eventTime       `json:"end"`
	Attendees   []attendee      `json:"attendees,omitempty"`
	Reminders   *eventReminders `json:"reminders,omitempty"`
}

type attendee struct {
	Email string `json:"email"`
}

type eventReminders struct {
	UseDefault bool               `json:"useDefault"`
	Overrides  []reminderOverride `json:"overrides"`
}

type reminderOverride struct {
	Method  string `json:"method"`
	Minutes int    `json:"minutes"`
}

func (r eventResource) toEvent() (Event, error) {
	start, err := r.Start.parse()
	if err != nil {
		return Event{}, err
	}
	end, err := r.End.parse()
	if err != nil {
		return Event{}, err
	}
	return Event{ID: r.ID, Summary: r.Summary, Start: start, End: end}, nil
}

// ListEvents returns single events that overlap [from, to). The API
// excludes events ending exactly at from.
func (g *Google) ListEvents(ctx context.Context, from, to time.Time) ([]Event, error) {
	resp, err := g.http.R().
		SetContext(ctx).
		SetPathParam("calendarId", g.calendarID).
		SetQueryParams(map[string]string{
			"timeMin":      from.Format(time.RFC3339),
			"timeMax":      to.Format(time.RFC3339),
			"singleEvents": "true",
			"orderBy":      "startTime",
		}).
		Get("/calendars/{calendarId}/events")
	if err != nil {
		return nil, providers.FromTransport(ProviderName, "list_events", err)
	}
	if resp.IsError() {
		return nil, providers.FromStatus(ProviderName, "list_events", resp.StatusCode(), resp.String())
	}

	var out struct {
		Items []eventResource `json:"items"`
	}
	if err := json.Unmarshal(resp.Body(), &out); err != nil {
		return nil, providers.NewProviderError(providers.ErrorBadData, ProviderName, "list_events", "malformed events payload", err)
	}
	events := make([]Event, 0, len(out.Items))
	for _, item := range out.Items {
		e, err := item.toEvent()
		if err != nil {
			return nil, providers.NewProviderError(providers.ErrorBadData, ProviderName, "list_events", "malformed event time", err)
		}
		events = append(events, e)
	}
	return events, nil
}

// CreateEvent inserts the event, invites attendees and sets email reminders
// a day and an hour before the start.
func (g *Google) CreateEvent(ctx context.Context, e NewEvent) (Event, error) {
	body := eventResource{
		Summary:     e.Summary,
		Description: e.Description,
		Start:       eventTime{DateTime: e.Start.Format(time.RFC3339), TimeZone: g.timeZone},
		End:         eventTime{DateTime: e.End.Format(time.RFC3339), TimeZone: g.timeZone},
		Reminders:   &eventReminders{},
	}
	for _, email := range e.Attendees {
		body.Attendees = append(body.Attendees, attendee{Email: email})
	}
	for _, offset := range ReminderOffsets {
		body.Reminders.Overrides = append(body.Reminders.Overrides, reminderOverride{
			Method:  "email",
			Minutes: int(offset / time.Minute),
		})
	}

	resp, err := g.http.R().
		SetContext(ctx).
		SetPathParam("calendarId", g.calendarID).
		SetQueryParam("sendUpdates", "all").
		SetHeader("Content-Type", "application/json").
		SetBody(body).
		Post("/calendars/{calendarId}/events")
	if err != nil {
		return Event{}, providers.FromTransport(ProviderName, "create_event", err)
	}
	if resp.IsError() {
		return Event{}, providers.FromStatus(ProviderName, "create_event", resp.StatusCode(), resp.String())
	}

	var created eventResource
	if err := json.Unmarshal(resp.Body(), &created); err != nil || created.ID == "" {
		return Event{}, providers.NewProviderError(providers.ErrorBadData, ProviderName, "create_event", "response missing event id", err)
	}
	return Event{ID: created.ID, Summary: e.Summary, Start: e.Start, End: e.End}, nil
}
