package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	appconfig "github.com/Maristella28/Bms-111725-sub004/internal/config"
)

// SMSGatewaySender posts messages to an HTTP SMS gateway. The gateway
// accepts a JSON body and replies with a status field; anything other
// than "queued" or "sent" is treated as a failure.
type SMSGatewaySender struct {
	httpClient *resty.Client
	apiKey     string
	senderName string
}

type smsRequest struct {
	Number     string `json:"number"`
	Message    string `json:"message"`
	SenderName string `json:"sender_name,omitempty"`
}

type smsResponse struct {
	Status    string `json:"status"`
	MessageID string `json:"message_id,omitempty"`
	Error     string `json:"error,omitempty"`
}

// NewSMSGatewaySender creates a gateway client with retries configured
// from the SMS settings.
func NewSMSGatewaySender(cfg appconfig.SMSConfig) *SMSGatewaySender {
	client := resty.New().
		SetBaseURL(cfg.GatewayURL).
		SetTimeout(time.Duration(cfg.TimeoutSeconds) * time.Second).
		SetRetryCount(cfg.MaxRetries).
		SetRetryWaitTime(1 * time.Second).
		SetRetryMaxWaitTime(5 * time.Second).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")

	return &SMSGatewaySender{
		httpClient: client,
		apiKey:     cfg.APIKey,
		senderName: cfg.SenderName,
	}
}

// SendSMS delivers one text message to a mobile number.
func (s *SMSGatewaySender) SendSMS(ctx context.Context, number, message string) error {
	req := smsRequest{
		Number:     number,
		Message:    message,
		SenderName: s.senderName,
	}

	var out smsResponse
	resp, err := s.httpClient.R().
		SetContext(ctx).
		SetAuthToken(s.apiKey).
		SetBody(req).
		SetResult(&out).
		Post("/messages")
	if err != nil {
		return fmt.Errorf("calling sms gateway: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("sms gateway returned %d: %s", resp.StatusCode(), out.Error)
	}
	if out.Status != "queued" && out.Status != "sent" {
		return fmt.Errorf("sms gateway rejected message: %s", out.Error)
	}
	return nil
}
