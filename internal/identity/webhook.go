package identity

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	svix "github.com/svix/svix-webhooks/go"
)

// Svix delivery headers
const (
	HeaderID        = "svix-id"
	HeaderTimestamp = "svix-timestamp"
	HeaderSignature = "svix-signature"
)

// WebhookTolerance is how far a delivery timestamp may drift from now
const WebhookTolerance = 5 * time.Minute

var (
	ErrMissingHeaders   = errors.New("missing webhook headers")
	ErrInvalidSignature = errors.New("invalid webhook signature")
	ErrTimestampExpired = errors.New("webhook timestamp outside tolerance")
	ErrInvalidSecret    = errors.New("invalid webhook secret")
)

// Event types handled by the service
const (
	EventUserCreated = "user.created"
	EventUserUpdated = "user.updated"
	EventUserDeleted = "user.deleted"
)

// WebhookVerifier checks signed deliveries from the identity provider
type WebhookVerifier struct {
	wh        *svix.Webhook
	tolerance time.Duration
	now       func() time.Time
}

// NewWebhookVerifier parses a "whsec_<base64>" secret
func NewWebhookVerifier(secret string) (*WebhookVerifier, error) {
	key, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(secret, "whsec_"))
	if err != nil || len(key) == 0 {
		return nil, ErrInvalidSecret
	}
	wh, err := svix.NewWebhook(secret)
	if err != nil {
		return nil, ErrInvalidSecret
	}
	return &WebhookVerifier{wh: wh, tolerance: WebhookTolerance, now: time.Now}, nil
}

// Sign returns the signature header value for a delivery
func (w *WebhookVerifier) Sign(id string, ts time.Time, body []byte) (string, error) {
	return w.wh.Sign(id, ts, body)
}

// Verify checks the delivery headers against body. Header presence and the
// timestamp window are checked first so callers can tell the failures apart.
func (w *WebhookVerifier) Verify(headers http.Header, body []byte) error {
	id := headers.Get(HeaderID)
	timestamp := headers.Get(HeaderTimestamp)
	signatures := headers.Get(HeaderSignature)
	if id == "" || timestamp == "" || signatures == "" {
		return ErrMissingHeaders
	}

	unix, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return ErrInvalidSignature
	}
	drift := w.now().Sub(time.Unix(unix, 0))
	if drift < 0 {
		drift = -drift
	}
	if drift > w.tolerance {
		return ErrTimestampExpired
	}

	if err := w.wh.Verify(body, headers); err != nil {
		return ErrInvalidSignature
	}
	return nil
}

// UserEvent is a webhook delivery about a user account
type UserEvent struct {
	Type string   `json:"type"`
	Data UserData `json:"data"`
}

// EmailAddress is one of a user's addresses
type EmailAddress struct {
	EmailAddress string `json:"email_address"`
}

// UserData is the account payload. Deleted events carry only ID.
type UserData struct {
	ID             string         `json:"id"`
	FirstName      *string        `json:"first_name"`
	LastName       *string        `json:"last_name"`
	Username       *string        `json:"username"`
	ImageURL       string         `json:"image_url"`
	EmailAddresses []EmailAddress `json:"email_addresses"`
	Deleted        bool           `json:"deleted"`
}

// ParseUserEvent decodes a webhook body
func ParseUserEvent(body []byte) (*UserEvent, error) {
	var event UserEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return nil, err
	}
	return &event, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// DisplayName derives the name shown for a user: "first last" trimmed,
// else the username, else the local part of the first email, else "User".
func (d *UserData) DisplayName() string {
	var email string
	if len(d.EmailAddresses) > 0 {
		email = d.EmailAddresses[0].EmailAddress
	}
	return DisplayName(deref(d.FirstName), deref(d.LastName), deref(d.Username), email)
}

// DisplayName applies the display-name fallback chain
func DisplayName(first, last, username, email string) string {
	if name := strings.TrimSpace(first + " " + last); name != "" {
		return name
	}
	if username = strings.TrimSpace(username); username != "" {
		return username
	}
	if local, _, _ := strings.Cut(email, "@"); strings.TrimSpace(local) != "" {
		return strings.TrimSpace(local)
	}
	return "User"
}
