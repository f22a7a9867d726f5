package outreach_test

import (
	"context"
	"encoding/hex"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"dunning/internal/compliance"
	"dunning/internal/outreach"
	"dunning/internal/platform/config"
	"dunning/internal/providers"
	"dunning/internal/records"
	id "dunning/pkg/domain"
	dErrors "dunning/pkg/domain-errors"
	"dunning/pkg/platform/audit"
	"dunning/pkg/platform/audit/publisher"
	auditmemory "dunning/pkg/platform/audit/store/memory"
	"dunning/pkg/platform/phi"
	"dunning/pkg/requestcontext"
)

type fakeSender struct {
	sent []string
	to   []string
	err  error
}

func (f *fakeSender) Send(_ context.Context, to, body string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.to = append(f.to, to)
	f.sent = append(f.sent, body)
	return "SM" + strings.Repeat("0", 31) + "1", nil
}

type OutreachSuite struct {
	suite.Suite
	store      *records.MemoryStore
	sender     *fakeSender
	auditStore *auditmemory.InMemoryStore
	sealer     *phi.Sealer
	service    *outreach.Service
	denver     *time.Location
}

func TestOutreachSuite(t *testing.T) {
	suite.Run(t, new(OutreachSuite))
}

func (s *OutreachSuite) SetupTest() {
	s.store = records.NewMemory()
	s.Require().NoError(s.store.UpsertResident(context.Background(), records.Resident{
		ResidentID:    "600999",
		FirstName:     "Liam",
		LastName:      "Johnson",
		ContactNumber: "+18015550100",
	}))
	s.sender = &fakeSender{}
	s.auditStore = auditmemory.NewInMemoryStore()

	var err error
	s.sealer, err = phi.NewSealer(hex.EncodeToString([]byte("0123456789abcdef0123456789abcdef")))
	s.Require().NoError(err)
	zone, err := compliance.NewFixedZone("America/Denver")
	s.Require().NoError(err)
	s.denver, err = time.LoadLocation("America/Denver")
	s.Require().NoError(err)

	s.service = outreach.NewService(s.store, s.sender, compliance.New(zone),
		config.OutreachConfig{OrgName: "Healthcare Corporation", PaymentURL: "www.hcprovo.com"},
		outreach.WithAuditor(publisher.NewPublisher(s.auditStore)),
		outreach.WithSealer(s.sealer),
	)
}

func (s *OutreachSuite) at(hour int) context.Context {
	return requestcontext.WithTime(context.Background(), time.Date(2025, 5, 1, hour, 30, 0, 0, s.denver))
}

func (s *OutreachSuite) smsRequest() outreach.SMSRequest {
	return outreach.SMSRequest{
		ContactNumber: "+18015550100",
		ContactName:   "Emma Johnson",
		ResidentID:    "600999",
		ResidentName:  "Liam Johnson",
		Balance:       id.Cents(123456),
		DueDate:       "May 31",
		FacilityName:  "Provo Care",
	}
}

func (s *OutreachSuite) reminders() []records.Reminder {
	out, err := s.store.ListReminders(context.Background(), 100)
	s.Require().NoError(err)
	return out
}

func (s *OutreachSuite) TestSendSMS_WithinWindow() {
	res, err := s.service.SendSMS(s.at(10), s.smsRequest())
	s.Require().NoError(err)
	s.NotEmpty(res.MessageID)

	s.Require().Len(s.sender.sent, 1)
	s.Equal("Healthcare Corporation reminds you about Liam Johnson's $1234.56 due by May 31 at Provo Care. Visit www.hcprovo.com. This is an attempt to collect a debt.", s.sender.sent[0])

	rows := s.reminders()
	s.Require().Len(rows, 1)
	s.Equal(records.ReminderSMS, rows[0].Type)
	s.Equal(res.MessageID, rows[0].MessageID)
	s.Equal(res.ReminderID, rows[0].ReminderID)
}

// At 22:00 local nothing is sent and nothing is written.
func (s *OutreachSuite) TestSendSMS_OutsideWindow() {
	_, err := s.service.SendSMS(s.at(22), s.smsRequest())
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeComplianceRejected))
	s.Empty(s.sender.sent)
	s.Empty(s.reminders())

	events, err := s.auditStore.ListRecent(context.Background(), 10)
	s.Require().NoError(err)
	s.Require().Len(events, 1)
	s.Equal(string(audit.EventComplianceRejected), events[0].Action)
	s.NotContains(events[0].SubjectHash, "600999")
}

func (s *OutreachSuite) TestSendSMS_ProviderFailureWritesNothing() {
	s.sender.err = providers.FromStatus("twilio", "send_message", 400, `{"code":21211,"message":"invalid 'To' number"}`)
	_, err := s.service.SendSMS(s.at(10), s.smsRequest())
	s.True(dErrors.HasCode(err, dErrors.CodeProvider))
	s.Empty(s.reminders())
}

func (s *OutreachSuite) TestScheduleAndReschedule() {
	first, err := s.service.ScheduleCall(s.at(9), outreach.ScheduleRequest{
		ResidentID:   "600999",
		ContactName:  "Emma Johnson",
		ScheduleTime: time.Date(2025, 5, 2, 14, 0, 0, 0, s.denver),
	})
	s.Require().NoError(err)
	s.Nil(first.Supersedes)

	second, err := s.service.RescheduleCall(s.at(9), outreach.ScheduleRequest{
		ResidentID:   "600999",
		ContactName:  "Emma Johnson",
		ScheduleTime: time.Date(2025, 5, 3, 14, 0, 0, 0, s.denver),
	})
	s.Require().NoError(err)
	s.Require().NotNil(second.Supersedes)
	s.Equal(first.ReminderID, *second.Supersedes)

	rows := s.reminders()
	s.Require().Len(rows, 2, "reschedule keeps the earlier reminder")
	s.True(rows[1].ScheduleTime.Equal(first.ScheduleTime))
}

func (s *OutreachSuite) TestScheduleCall_OutsideWindow() {
	_, err := s.service.ScheduleCall(s.at(7), outreach.ScheduleRequest{
		ResidentID:   "600999",
		ScheduleTime: time.Date(2025, 5, 2, 14, 0, 0, 0, s.denver),
	})
	s.True(dErrors.HasCode(err, dErrors.CodeComplianceRejected))
	s.Empty(s.reminders())
}

func (s *OutreachSuite) TestRecordNotes_SealsResidentID() {
	note, err := s.service.RecordNotes(s.at(10), outreach.NotesRequest{
		CallID:     "call-1",
		ResidentID: "600999",
		Notes:      "  Agreed to a payment plan  ",
	})
	s.Require().NoError(err)
	s.Equal("Agreed to a payment plan", note.Notes)
	s.NotContains(note.PHIData, "600999")

	var payload map[string]string
	s.Require().NoError(s.sealer.OpenJSON(note.PHIData, phi.AAD("conversation_note", "call-1"), &payload))
	s.Equal("600999", payload["resident_id"])

	s.Error(s.sealer.OpenJSON(note.PHIData, phi.AAD("conversation_note", "call-2"), &payload))
}

func (s *OutreachSuite) TestProcessPayment() {
	p, err := s.service.ProcessPayment(s.at(10), outreach.PaymentRequest{ResidentID: "600999", Method: outreach.MethodOnline, Amount: 5000})
	s.Require().NoError(err)
	s.Equal(records.PaymentPending, p.Status)

	listed, err := s.service.ListPayments(context.Background(), 10)
	s.Require().NoError(err)
	s.Len(listed, 1)

	_, err = s.service.ProcessPayment(s.at(10), outreach.PaymentRequest{ResidentID: "600999", Method: "crypto", Amount: 5000})
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	_, err = s.service.ProcessPayment(s.at(10), outreach.PaymentRequest{ResidentID: "600999", Method: outreach.MethodMail, Amount: 0})
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
}

type brokenListStore struct {
	*records.MemoryStore
}

func (brokenListStore) ListCallAttempts(context.Context, int) ([]records.CallAttempt, error) {
	return nil, errors.New("relation call_logs does not exist")
}

func TestListCallLogs_StorageError(t *testing.T) {
	zone, err := compliance.NewFixedZone("UTC")
	require.NoError(t, err)
	svc := outreach.NewService(brokenListStore{records.NewMemory()}, &fakeSender{}, compliance.New(zone), config.OutreachConfig{})

	_, err = svc.ListCallLogs(context.Background(), 100)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeStorage))
}

func TestReminderText(t *testing.T) {
	t.Run("optional parts are left out", func(t *testing.T) {
		got := outreach.ReminderText("Acme", "", outreach.SMSRequest{ResidentName: "Liam", Balance: 500})
		assert.Equal(t, "Acme reminds you about Liam's $5.00. This is an attempt to collect a debt.", got)
	})
	t.Run("disclosure always ends the message", func(t *testing.T) {
		got := outreach.ReminderText("Acme", "pay.example", outreach.SMSRequest{ResidentName: "Liam", Balance: 1, FacilityName: "North"})
		assert.True(t, strings.HasSuffix(got, outreach.DebtDisclosure))
	})
}
