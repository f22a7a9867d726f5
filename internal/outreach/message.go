package outreach

import (
	"fmt"
	"strings"
)

// DebtDisclosure is appended to every collection message.
const DebtDisclosure = "This is an attempt to collect a debt."

// ReminderText renders the SMS body. The disclosure is always last.
func ReminderText(org, paymentURL string, req SMSRequest) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s reminds you about %s's $%s", org, strings.TrimSpace(req.ResidentName), req.Balance)
	if due := strings.TrimSpace(req.DueDate); due != "" {
		fmt.Fprintf(&b, " due by %s", due)
	}
	if facility := strings.TrimSpace(req.FacilityName); facility != "" {
		fmt.Fprintf(&b, " at %s", facility)
	}
	b.WriteString(".")
	if paymentURL != "" {
		fmt.Fprintf(&b, " Visit %s.", paymentURL)
	}
	b.WriteString(" ")
	b.WriteString(DebtDisclosure)
	return b.String()
}
