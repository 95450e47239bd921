package identity

import (
	"encoding/base64"
	"net/http"
	"strconv"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

var testSecret = "whsec_" + base64.StdEncoding.EncodeToString([]byte("identity-webhook-test-key"))

func newTestWebhookVerifier(t *testing.T, now time.Time) *WebhookVerifier {
	t.Helper()
	v, err := NewWebhookVerifier(testSecret)
	if err != nil {
		t.Fatalf("NewWebhookVerifier failed: %v", err)
	}
	v.now = func() time.Time { return now }
	return v
}

func mustSign(t *testing.T, v *WebhookVerifier, id string, ts time.Time, body []byte) string {
	t.Helper()
	sig, err := v.Sign(id, ts, body)
	if err != nil {
		t.Fatalf("Sign failed: %v", err)
	}
	return sig
}

func deliveryHeaders(id string, ts time.Time, signature string) http.Header {
	return rawHeaders(id, strconv.FormatInt(ts.Unix(), 10), signature)
}

func rawHeaders(id, timestamp, signature string) http.Header {
	h := http.Header{}
	h.Set(HeaderID, id)
	h.Set(HeaderTimestamp, timestamp)
	h.Set(HeaderSignature, signature)
	return h
}

func TestNewWebhookVerifier_InvalidSecret(t *testing.T) {
	for _, secret := range []string{"", "whsec_", "whsec_!!!"} {
		if _, err := NewWebhookVerifier(secret); err != ErrInvalidSecret {
			t.Errorf("NewWebhookVerifier(%q) error = %v, want ErrInvalidSecret", secret, err)
		}
	}
}

func TestWebhookVerifier_Verify(t *testing.T) {
	now := time.Now()
	v := newTestWebhookVerifier(t, now)
	body := []byte(`{"type":"user.created","data":{"id":"user_1"}}`)
	good := mustSign(t, v, "msg_1", now, body)
	stale := now.Add(-6 * time.Minute)
	future := now.Add(6 * time.Minute)

	tests := []struct {
		name    string
		headers http.Header
		body    []byte
		wantErr error
	}{
		{"valid", deliveryHeaders("msg_1", now, good), body, nil},
		{"valid among several", deliveryHeaders("msg_1", now, "v1,bm9wZQ== "+good), body, nil},
		{"missing id", deliveryHeaders("", now, good), body, ErrMissingHeaders},
		{"missing signature", deliveryHeaders("msg_1", now, ""), body, ErrMissingHeaders},
		{"other id", deliveryHeaders("msg_2", now, good), body, ErrInvalidSignature},
		{"tampered body", deliveryHeaders("msg_1", now, good), []byte(`{}`), ErrInvalidSignature},
		{"unknown version", deliveryHeaders("msg_1", now, "v2,"+good[3:]), body, ErrInvalidSignature},
		{"other secret", deliveryHeaders("msg_1", now, mustSign(t, otherVerifier(t), "msg_1", now, body)), body, ErrInvalidSignature},
		{"bad timestamp", rawHeaders("msg_1", "soon", good), body, ErrInvalidSignature},
		{"stale", deliveryHeaders("msg_1", stale, mustSign(t, v, "msg_1", stale, body)), body, ErrTimestampExpired},
		{"future", deliveryHeaders("msg_1", future, mustSign(t, v, "msg_1", future, body)), body, ErrTimestampExpired},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := v.Verify(tt.headers, tt.body); err != tt.wantErr {
				t.Errorf("Verify() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func otherVerifier(t *testing.T) *WebhookVerifier {
	t.Helper()
	v, err := NewWebhookVerifier("whsec_" + base64.StdEncoding.EncodeToString([]byte("some-other-key")))
	if err != nil {
		t.Fatalf("NewWebhookVerifier failed: %v", err)
	}
	return v
}

func TestProperty_WebhookSignatureRoundTrip(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	now := time.Now()
	v := newTestWebhookVerifier(t, now)

	properties.Property("signed deliveries verify and tampered ones fail", prop.ForAll(
		func(id, body string) bool {
			sig, err := v.Sign(id, now, []byte(body))
			if err != nil {
				return false
			}
			ok := v.Verify(deliveryHeaders(id, now, sig), []byte(body)) == nil
			tampered := v.Verify(deliveryHeaders(id, now, sig), []byte(body+"x")) == ErrInvalidSignature
			return ok && tampered
		},
		gen.Identifier(),
		gen.AnyString(),
	))

	properties.TestingRun(t)
}

func strp(s string) *string { return &s }

func TestDisplayName(t *testing.T) {
	tests := []struct {
		name string
		data UserData
		want string
	}{
		{"first and last", UserData{FirstName: strp("Ada"), LastName: strp("Lovelace")}, "Ada Lovelace"},
		{"first only", UserData{FirstName: strp("Ada")}, "Ada"},
		{"last only", UserData{LastName: strp(" Lovelace ")}, "Lovelace"},
		{"blank names fall back to username", UserData{FirstName: strp(" "), Username: strp("ada")}, "ada"},
		{"email local part", UserData{EmailAddresses: []EmailAddress{{"ada@example.com"}, {"other@example.com"}}}, "ada"},
		{"nothing", UserData{}, "User"},
		{"email without local part", UserData{EmailAddresses: []EmailAddress{{"@example.com"}}}, "User"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.data.DisplayName(); got != tt.want {
				t.Errorf("DisplayName() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParseUserEvent(t *testing.T) {
	body := []byte(`{"type":"user.created","data":{"id":"user_1","first_name":"Ada","last_name":null,"username":null,"image_url":"https://img.example/a.png","email_addresses":[{"email_address":"ada@example.com"}]}}`)
	event, err := ParseUserEvent(body)
	if err != nil {
		t.Fatalf("ParseUserEvent failed: %v", err)
	}
	if event.Type != EventUserCreated || event.Data.ID != "user_1" {
		t.Errorf("unexpected event: %+v", event)
	}
	if event.Data.DisplayName() != "Ada" {
		t.Errorf("expected display name Ada, got %q", event.Data.DisplayName())
	}

	if _, err := ParseUserEvent([]byte("{")); err == nil {
		t.Error("expected error for malformed body")
	}
}
