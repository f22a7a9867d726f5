// Package compliance decides whether an outbound contact may happen now.
//
// The permitted window is [StartHour, EndHour) in the recipient's local time.
// The recipient zone comes from a ZoneResolver; when nothing better is known
// the configured business zone is used. Evaluation reads the request clock
// from requestcontext.Now and has no side effects.
package compliance

import (
	"context"
	"fmt"
	"time"

	id "dunning/pkg/domain"
	dErrors "dunning/pkg/domain-errors"
	"dunning/pkg/requestcontext"
)

// Channel is the outbound channel being gated.
type Channel string

const (
	ChannelCall        Channel = "call"
	ChannelSMS         Channel = "sms"
	ChannelAppointment Channel = "appointment"
)

// ReasonOutsideWindow is the rejection reason recorded in audit events.
const ReasonOutsideWindow = "outside_permitted_hours"

// Subject describes who is about to be contacted.
type Subject struct {
	Channel    Channel
	Phone      string
	ResidentID id.ResidentID
}

// Decision is the outcome of one evaluation.
type Decision struct {
	Permitted bool
	Zone      string
	LocalTime time.Time
	Reason    string
}

// Gate evaluates the permitted-hours rule.
type Gate struct {
	resolver  ZoneResolver
	startHour int
	endHour   int
}

// Option configures a Gate.
type Option func(*Gate)

// WithWindow overrides the default 8 to 21 window.
func WithWindow(startHour, endHour int) Option {
	return func(g *Gate) {
		g.startHour = startHour
		g.endHour = endHour
	}
}

// New constructs a Gate. The default window is 08:00 inclusive to 21:00 exclusive.
func New(resolver ZoneResolver, opts ...Option) *Gate {
	g := &Gate{resolver: resolver, startHour: 8, endHour: 21}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Evaluate returns the decision for subject at the request time.
func (g *Gate) Evaluate(ctx context.Context, subject Subject) Decision {
	loc := g.resolver.Resolve(subject)
	local := requestcontext.Now(ctx).In(loc)
	hour := local.Hour()
	d := Decision{
		Permitted: hour >= g.startHour && hour < g.endHour,
		Zone:      loc.String(),
		LocalTime: local,
	}
	if !d.Permitted {
		d.Reason = ReasonOutsideWindow
	}
	return d
}

// IsPermitted reports whether contact is allowed now.
func (g *Gate) IsPermitted(ctx context.Context, subject Subject) bool {
	return g.Evaluate(ctx, subject).Permitted
}

// Check returns a compliance_rejected error when contact is not allowed.
func (g *Gate) Check(ctx context.Context, subject Subject) (Decision, error) {
	d := g.Evaluate(ctx, subject)
	if d.Permitted {
		return d, nil
	}
	return d, dErrors.New(dErrors.CodeComplianceRejected,
		fmt.Sprintf("%s contact is only permitted between %02d:00 and %02d:00 recipient local time", subject.Channel, g.startHour, g.endHour))
}
