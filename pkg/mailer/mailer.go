package mailer

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-resty/resty/v2"

	"github.com/dmarrero/fanlink-backend/pkg/config"
	"github.com/dmarrero/fanlink-backend/pkg/logger"
)

// Mail is a single outbound email.
type Mail struct {
	To      string
	Subject string
	Body    string
}

// Sender delivers mail through an external provider.
type Sender interface {
	Send(ctx context.Context, mail Mail) error
}

// TransientError marks a delivery failure worth retrying.
type TransientError struct {
	Err error
}

func (e TransientError) Error() string {
	if e.Err == nil {
		return "transient mail failure"
	}
	return e.Err.Error()
}

func (e TransientError) Unwrap() error { return e.Err }

// PermanentError marks a delivery failure that retries cannot fix.
type PermanentError struct {
	Err error
}

func (e PermanentError) Error() string {
	if e.Err == nil {
		return "permanent mail failure"
	}
	return e.Err.Error()
}

func (e PermanentError) Unwrap() error { return e.Err }

// IsTransient reports whether err is retryable.
func IsTransient(err error) bool {
	var transient TransientError
	return errors.As(err, &transient)
}

// HTTPSender sends mail through the provider's v3 HTTP API.
type HTTPSender struct {
	client *resty.Client
	from   string
	logg   *logger.Logger
}

type sendRequest struct {
	Personalizations []personalization `json:"personalizations"`
	From             emailAddress      `json:"from"`
	Subject          string            `json:"subject"`
	Content          []mailContent     `json:"content"`
}

type personalization struct {
	To []emailAddress `json:"to"`
}

type emailAddress struct {
	Email string `json:"email"`
}

type mailContent struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

// NewHTTPSender builds a sender against the configured provider.
func NewHTTPSender(cfg config.MailConfig, logg *logger.Logger) (*HTTPSender, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("mail api key is required")
	}
	if cfg.DefaultFrom == "" {
		return nil, errors.New("mail default from address is required")
	}
	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetAuthToken(cfg.APIKey).
		SetHeader("Content-Type", "application/json")
	return &HTTPSender{client: client, from: cfg.DefaultFrom, logg: logg}, nil
}

// Send posts the mail. 5xx and 429 responses come back as TransientError,
// other 4xx as PermanentError.
func (s *HTTPSender) Send(ctx context.Context, mail Mail) error {
	if mail.To == "" {
		return PermanentError{Err: errors.New("recipient address is required")}
	}

	body := sendRequest{
		Personalizations: []personalization{{To: []emailAddress{{Email: mail.To}}}},
		From:             emailAddress{Email: s.from},
		Subject:          mail.Subject,
		Content:          []mailContent{{Type: "text/plain", Value: mail.Body}},
	}

	resp, err := s.client.R().
		SetContext(ctx).
		SetBody(body).
		Post("/v3/mail/send")
	if err != nil {
		return TransientError{Err: fmt.Errorf("mail request: %w", err)}
	}

	status := resp.StatusCode()
	switch {
	case status < http.StatusMultipleChoices:
		return nil
	case status == http.StatusTooManyRequests || status >= http.StatusInternalServerError:
		return TransientError{Err: fmt.Errorf("mail provider returned %d: %s", status, resp.String())}
	default:
		return PermanentError{Err: fmt.Errorf("mail provider rejected request with %d: %s", status, resp.String())}
	}
}
