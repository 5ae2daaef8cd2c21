package notify

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Maristella28/Bms-111725-sub004/internal/domain"
)

type recordingEmail struct {
	to      string
	subject string
	body    string
	err     error
	calls   int
}

func (r *recordingEmail) SendEmail(_ context.Context, to, subject, body string) error {
	r.calls++
	if r.err != nil {
		return r.err
	}
	r.to, r.subject, r.body = to, subject, body
	return nil
}

type recordingSMS struct {
	number  string
	message string
	err     error
	calls   int
}

func (r *recordingSMS) SendSMS(_ context.Context, number, message string) error {
	r.calls++
	if r.err != nil {
		return r.err
	}
	r.number, r.message = number, message
	return nil
}

func household() domain.Household {
	return domain.Household{
		ID:          uuid.New(),
		HouseholdNo: "HH-2024-0042",
		HeadName:    "Maria Santos",
		Email:       "maria@example.com",
		Phone:       "+639171234567",
		Active:      true,
	}
}

func instance(method domain.NotificationMethod) *domain.SurveyInstance {
	expires, _ := time.Parse(time.RFC3339, "2024-03-24T09:00:00Z")
	return &domain.SurveyInstance{
		ID:                 uuid.New(),
		AccessToken:        "tok-xyz789",
		SurveyType:         domain.SurveyContact,
		NotificationMethod: method,
		Status:             domain.SurveyPending,
		ExpiresAt:          expires,
	}
}

func TestLink(t *testing.T) {
	d := NewDispatcher(nil, nil, "https://survey.barangay.local/")
	assert.Equal(t, "https://survey.barangay.local/s/tok-xyz789", d.Link("tok-xyz789"))
}

func TestDispatch_Email(t *testing.T) {
	email := &recordingEmail{}
	d := NewDispatcher(email, nil, "https://survey.example.com")

	require.NoError(t, d.Dispatch(context.Background(), household(), instance(domain.NotifyEmail)))
	assert.Equal(t, "maria@example.com", email.to)
	assert.Contains(t, email.subject, "HH-2024-0042")
	assert.Contains(t, email.body, "Maria Santos")
	assert.Contains(t, email.body, "https://survey.example.com/s/tok-xyz789")
	assert.Contains(t, email.body, "March 24, 2024")
}

func TestDispatch_EmailMissingAddress(t *testing.T) {
	email := &recordingEmail{}
	d := NewDispatcher(email, nil, "https://survey.example.com")

	h := household()
	h.Email = ""
	err := d.Dispatch(context.Background(), h, instance(domain.NotifyEmail))
	assert.ErrorIs(t, err, ErrNoEmail)
	assert.Zero(t, email.calls)
}

func TestDispatch_SMS(t *testing.T) {
	sms := &recordingSMS{}
	d := NewDispatcher(nil, sms, "https://survey.example.com")

	require.NoError(t, d.Dispatch(context.Background(), household(), instance(domain.NotifySMS)))
	assert.Equal(t, "+639171234567", sms.number)
	assert.Contains(t, sms.message, "/s/tok-xyz789")
	assert.True(t, strings.HasPrefix(sms.message, "BARANGAY SURVEY:"))
}

func TestDispatch_SMSCustomMessage(t *testing.T) {
	sms := &recordingSMS{}
	d := NewDispatcher(nil, sms, "https://survey.example.com")

	si := instance(domain.NotifySMS)
	si.CustomMessage = "Annual census week is here."
	require.NoError(t, d.Dispatch(context.Background(), household(), si))
	assert.Contains(t, sms.message, "Annual census week is here.")
}

func TestDispatch_BothOneChannelSuffices(t *testing.T) {
	email := &recordingEmail{err: errors.New("ses throttled")}
	sms := &recordingSMS{}
	d := NewDispatcher(email, sms, "https://survey.example.com")

	require.NoError(t, d.Dispatch(context.Background(), household(), instance(domain.NotifyBoth)))
	assert.Equal(t, 1, sms.calls)
}

func TestDispatch_BothAllFail(t *testing.T) {
	email := &recordingEmail{err: errors.New("ses throttled")}
	sms := &recordingSMS{err: errors.New("gateway down")}
	d := NewDispatcher(email, sms, "https://survey.example.com")

	err := d.Dispatch(context.Background(), household(), instance(domain.NotifyBoth))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "all channels failed")
}

func TestDispatch_ChannelNotConfigured(t *testing.T) {
	d := NewDispatcher(nil, nil, "https://survey.example.com")

	err := d.Dispatch(context.Background(), household(), instance(domain.NotifySMS))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not configured")
}

func TestDispatch_UnknownMethod(t *testing.T) {
	d := NewDispatcher(&recordingEmail{}, &recordingSMS{}, "https://survey.example.com")

	err := d.Dispatch(context.Background(), household(), instance("carrier_pigeon"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown notification method")
}
