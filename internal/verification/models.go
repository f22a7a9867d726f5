// Package verification matches caller-supplied identity claims against a
// resident record before any balance is disclosed.
package verification

import (
	"strings"
	"time"

	id "dunning/pkg/domain"
)

// NameThreshold is the minimum score, out of 100, for a name to match.
const NameThreshold = 75

// Claim is what the caller says about themselves. It is request scoped and
// must never be logged.
type Claim struct {
	ResidentID  id.ResidentID
	FirstName   string
	LastName    string
	DateOfBirth string
}

// Result carries the match diagnostics. Disclosure is set only when Verified.
type Result struct {
	ResidentID     id.ResidentID
	Verified       bool
	FirstNameScore int
	LastNameScore  int
	NameMatch      bool
	DOBMatch       bool
	Disclosure     *Disclosure
}

// Disclosure holds the financial fields released after a successful match.
type Disclosure struct {
	Balance       id.Cents
	DueDate       *time.Time
	Pronunciation string
	PayerDesc     string
	FacilityName  string
}

// Message summarizes the outcome for the voice agent.
func (r Result) Message() string {
	if r.Verified {
		return "Verification successful"
	}
	var reasons []string
	if !r.NameMatch {
		reasons = append(reasons, "Incorrect name")
	}
	if !r.DOBMatch {
		reasons = append(reasons, "Incorrect DOB")
	}
	return "Verification failed: " + strings.Join(reasons, " and ")
}
