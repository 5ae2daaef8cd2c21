// Package notify delivers survey access links to households over the
// schedule's chosen channel. Send failures are per-call values the caller
// logs and counts; nothing here aborts a dispatch batch.
package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Maristella28/Bms-111725-sub004/internal/domain"
)

// Errors returned when a household cannot be reached on a channel.
var (
	ErrNoEmail = errors.New("household has no email address")
	ErrNoPhone = errors.New("household has no phone number")
)

// EmailSender delivers one email message.
type EmailSender interface {
	SendEmail(ctx context.Context, to, subject, body string) error
}

// SMSSender delivers one text message.
type SMSSender interface {
	SendSMS(ctx context.Context, number, message string) error
}

// Dispatcher fans a survey notification out to the channels its
// notification method names.
type Dispatcher struct {
	email   EmailSender
	sms     SMSSender
	baseURL string
}

// NewDispatcher creates a dispatcher. Either sender may be nil when the
// deployment has no such channel configured; sends to a missing channel
// fail per-call like any transport error.
func NewDispatcher(email EmailSender, sms SMSSender, publicBaseURL string) *Dispatcher {
	return &Dispatcher{email: email, sms: sms, baseURL: strings.TrimRight(publicBaseURL, "/")}
}

// Link returns the resident-facing access URL for a survey token.
func (d *Dispatcher) Link(token string) string {
	return d.baseURL + "/s/" + token
}

// Dispatch notifies the household of its survey link. For method "both",
// the dispatch counts as delivered when at least one channel succeeds.
func (d *Dispatcher) Dispatch(ctx context.Context, h domain.Household, si *domain.SurveyInstance) error {
	link := d.Link(si.AccessToken)

	switch si.NotificationMethod {
	case domain.NotifyEmail:
		return d.sendEmail(ctx, h, si, link)
	case domain.NotifySMS:
		return d.sendSMS(ctx, h, si, link)
	case domain.NotifyBoth:
		emailErr := d.sendEmail(ctx, h, si, link)
		smsErr := d.sendSMS(ctx, h, si, link)
		if emailErr != nil && smsErr != nil {
			return fmt.Errorf("all channels failed: email: %v; sms: %v", emailErr, smsErr)
		}
		return nil
	default:
		return fmt.Errorf("unknown notification method %q", si.NotificationMethod)
	}
}

func (d *Dispatcher) sendEmail(ctx context.Context, h domain.Household, si *domain.SurveyInstance, link string) error {
	if d.email == nil {
		return errors.New("email channel not configured")
	}
	if h.Email == "" {
		return ErrNoEmail
	}
	subject := fmt.Sprintf("Barangay household survey for %s", h.HouseholdNo)
	return d.email.SendEmail(ctx, h.Email, subject, emailBody(h, si, link))
}

func (d *Dispatcher) sendSMS(ctx context.Context, h domain.Household, si *domain.SurveyInstance, link string) error {
	if d.sms == nil {
		return errors.New("sms channel not configured")
	}
	if h.Phone == "" {
		return ErrNoPhone
	}
	return d.sms.SendSMS(ctx, h.Phone, smsBody(h, si, link))
}

func emailBody(h domain.Household, si *domain.SurveyInstance, link string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Good day %s,\n\n", h.HeadName)
	b.WriteString("The barangay office requests your household to answer a short survey.\n")
	if si.CustomMessage != "" {
		b.WriteString("\n" + si.CustomMessage + "\n")
	}
	fmt.Fprintf(&b, "\nAnswer here: %s\n", link)
	fmt.Fprintf(&b, "The link is valid until %s.\n", si.ExpiresAt.Format("January 2, 2006"))
	b.WriteString("\nThank you,\nBarangay Records Office")
	return b.String()
}

func smsBody(h domain.Household, si *domain.SurveyInstance, link string) string {
	msg := fmt.Sprintf("BARANGAY SURVEY: Hello %s, please answer our household survey: %s (valid until %s)",
		h.HeadName, link, si.ExpiresAt.Format("Jan 2"))
	if si.CustomMessage != "" {
		msg = fmt.Sprintf("BARANGAY SURVEY: %s %s (valid until %s)",
			si.CustomMessage, link, si.ExpiresAt.Format("Jan 2"))
	}
	return msg
}
