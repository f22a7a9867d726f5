package records

import (
	"context"
	"sort"
	"strings"
	"sync"

	id "dunning/pkg/domain"
	"dunning/pkg/platform/sentinel"
)

// MemoryStore is an in-process store with the same uniqueness rules as
// PostgresStore.
type MemoryStore struct {
	mu sync.RWMutex

	residents    map[id.ResidentID]Resident
	reminders    []Reminder
	payments     []Payment
	appointments []Appointment
	calls        map[id.CallID]CallAttempt
	callOrder    []id.CallID
	notes        []ConversationNote
	events       []CallEvent
	eventHashes  map[string]struct{}
	nextID       int64
}

// NewMemory constructs an empty in-memory store.
func NewMemory() *MemoryStore {
	return &MemoryStore{
		residents:   make(map[id.ResidentID]Resident),
		calls:       make(map[id.CallID]CallAttempt),
		eventHashes: make(map[string]struct{}),
	}
}

func (s *MemoryStore) nextSeq() int64 {
	s.nextID++
	return s.nextID
}

func (s *MemoryStore) UpsertResident(_ context.Context, r Resident) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.residents[r.ResidentID] = r
	return nil
}

func (s *MemoryStore) FindResident(_ context.Context, residentID id.ResidentID) (*Resident, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.residents[residentID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return &r, nil
}

func (s *MemoryStore) SearchResidents(_ context.Context, f ResidentFilter, limit int) ([]Resident, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Resident
	for _, r := range s.residents {
		if f.ResidentID != "" && r.ResidentID.String() != f.ResidentID {
			continue
		}
		if f.ResidentName != "" && !containsFold(r.FullName(), f.ResidentName) {
			continue
		}
		if f.DateOfBirth != "" && r.DateOfBirth != f.DateOfBirth {
			continue
		}
		if f.ContactName != "" && !containsFold(r.ContactName(), f.ContactName) {
			continue
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ResidentID < out[j].ResidentID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func containsFold(s, sub string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(sub))
}

func (s *MemoryStore) InsertReminder(_ context.Context, r Reminder) (*Reminder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r.ReminderID = s.nextSeq()
	s.reminders = append(s.reminders, r)
	return &r, nil
}

func (s *MemoryStore) LatestReminder(_ context.Context, residentID id.ResidentID, typ ReminderType) (*Reminder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i := len(s.reminders) - 1; i >= 0; i-- {
		r := s.reminders[i]
		if r.Type == typ && r.ResidentID != nil && *r.ResidentID == residentID {
			return &r, nil
		}
	}
	return nil, sentinel.ErrNotFound
}

func (s *MemoryStore) ListReminders(_ context.Context, limit int) ([]Reminder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return newestFirst(s.reminders, limit), nil
}

func (s *MemoryStore) InsertPayment(_ context.Context, p Payment) (*Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p.PaymentID = s.nextSeq()
	s.payments = append(s.payments, p)
	return &p, nil
}

func (s *MemoryStore) ListPayments(_ context.Context, limit int) ([]Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return newestFirst(s.payments, limit), nil
}

func (s *MemoryStore) InsertAppointment(_ context.Context, a Appointment) (*Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.appointments {
		if existing.CalendarEventID == a.CalendarEventID {
			return nil, sentinel.ErrConflict
		}
	}
	a.AppointmentID = s.nextSeq()
	s.appointments = append(s.appointments, a)
	return &a, nil
}

// Appointments returns every stored appointment in insertion order.
func (s *MemoryStore) Appointments() []Appointment {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Appointment(nil), s.appointments...)
}

func (s *MemoryStore) InsertCallAttempt(_ context.Context, c CallAttempt) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.calls[c.CallID]; ok {
		return sentinel.ErrAlreadyUsed
	}
	s.calls[c.CallID] = c
	s.callOrder = append(s.callOrder, c.CallID)
	return nil
}

func (s *MemoryStore) FindCallAttempt(_ context.Context, callID id.CallID) (*CallAttempt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.calls[callID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return &c, nil
}

func (s *MemoryStore) ListCallAttempts(_ context.Context, limit int) ([]CallAttempt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	all := make([]CallAttempt, 0, len(s.callOrder))
	for _, cid := range s.callOrder {
		all = append(all, s.calls[cid])
	}
	return newestFirst(all, limit), nil
}

func (s *MemoryStore) InsertNote(_ context.Context, n ConversationNote) (*ConversationNote, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n.NoteID = s.nextSeq()
	s.notes = append(s.notes, n)
	return &n, nil
}

// Notes returns every stored note in insertion order.
func (s *MemoryStore) Notes() []ConversationNote {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]ConversationNote(nil), s.notes...)
}

func (s *MemoryStore) InsertCallEvent(_ context.Context, e CallEvent) (*CallEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.eventHashes[e.EventHash]; ok {
		return nil, sentinel.ErrAlreadyUsed
	}
	e.EventID = s.nextSeq()
	s.eventHashes[e.EventHash] = struct{}{}
	s.events = append(s.events, e)
	return &e, nil
}

func (s *MemoryStore) ListCallEvents(_ context.Context, callID id.CallID) ([]CallEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []CallEvent
	for _, e := range s.events {
		if e.CallID == callID {
			out = append(out, e)
		}
	}
	return out, nil
}

// newestFirst reverses insertion order, which is creation order for this store.
func newestFirst[T any](in []T, limit int) []T {
	n := len(in)
	if limit > 0 && n > limit {
		n = limit
	}
	out := make([]T, 0, n)
	for i := len(in) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, in[i])
	}
	return out
}
