package whatsapp

import (
	"encoding/json"
	"net/url"
	"testing"

	"github.com/Rohianon/chatcommerce/pkg/crypto"
)

const metaPayload = `{
  "object": "whatsapp_business_account",
  "entry": [{
    "id": "WABA",
    "changes": [{
      "field": "messages",
      "value": {
        "messaging_product": "whatsapp",
        "metadata": {"display_phone_number": "15550000000", "phone_number_id": "123"},
        "contacts": [{"profile": {"name": "Ada"}, "wa_id": "2348012345678"}],
        "messages": [
          {"from": "2348012345678", "id": "wamid.1", "type": "text", "text": {"body": "menu"}},
          {"from": "2348012345678", "id": "wamid.2", "type": "image", "image": {"id": "media-9", "mime_type": "image/jpeg"}},
          {"from": "2348012345678", "id": "wamid.3", "type": "sticker"}
        ],
        "statuses": [{"id": "wamid.0", "status": "delivered"}]
      }
    }]
  }]
}`

func TestParseMeta(t *testing.T) {
	var payload WebhookPayload
	if err := json.Unmarshal([]byte(metaPayload), &payload); err != nil {
		t.Fatal(err)
	}

	msgs := ParseMeta(&payload)
	if len(msgs) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(msgs))
	}

	if msgs[0].Text != "menu" || msgs[0].From != "2348012345678" || msgs[0].Name != "Ada" {
		t.Errorf("text message = %+v", msgs[0])
	}
	if msgs[1].MediaID != "media-9" {
		t.Errorf("image message = %+v", msgs[1])
	}
}

func TestParseMeta_StatusOnly(t *testing.T) {
	payload := WebhookPayload{Entry: []Entry{{Changes: []Change{{Value: ChangeValue{
		Statuses: []Status{{ID: "x", Status: "read"}},
	}}}}}}

	if msgs := ParseMeta(&payload); len(msgs) != 0 {
		t.Errorf("status callbacks should yield no messages, got %d", len(msgs))
	}
}

func TestParseTwilio(t *testing.T) {
	form := url.Values{}
	form.Set("From", "whatsapp:+2348012345678")
	form.Set("Body", "1")
	form.Set("MessageSid", "SM1")

	in, ok := ParseTwilio(form)
	if !ok {
		t.Fatal("ParseTwilio() should accept the form")
	}
	if in.From != "+2348012345678" || in.Text != "1" {
		t.Errorf("inbound = %+v", in)
	}

	if _, ok := ParseTwilio(url.Values{}); ok {
		t.Error("ParseTwilio() should reject a form without From")
	}
}

func TestVerifySignature(t *testing.T) {
	body := []byte(metaPayload)
	good := "sha256=" + crypto.SignSHA256("app-secret", body)

	tests := []struct {
		name   string
		secret string
		header string
		want   bool
	}{
		{"valid", "app-secret", good, true},
		{"wrong secret", "other", good, false},
		{"missing prefix", "app-secret", crypto.SignSHA256("app-secret", body), false},
		{"disabled", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := VerifySignature(tt.secret, body, tt.header); got != tt.want {
				t.Errorf("VerifySignature() = %v, want %v", got, tt.want)
			}
		})
	}
}
