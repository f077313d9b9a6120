package whatsapp

import (
	"net/url"
	"strings"

	"github.com/Rohianon/chatcommerce/pkg/crypto"
)

// ParseMeta flattens a Meta webhook delivery into inbound messages.
// Delivery-status callbacks and unsupported message types are skipped.
func ParseMeta(payload *WebhookPayload) []Inbound {
	var out []Inbound
	for _, entry := range payload.Entry {
		for _, change := range entry.Changes {
			names := make(map[string]string, len(change.Value.Contacts))
			for _, c := range change.Value.Contacts {
				names[c.WaID] = c.Profile.Name
			}

			for _, m := range change.Value.Messages {
				in := Inbound{MessageID: m.ID, From: m.From, Name: names[m.From]}
				switch m.Type {
				case "text":
					if m.Text == nil {
						continue
					}
					in.Text = m.Text.Body
				case "image":
					if m.Image == nil {
						continue
					}
					in.MediaID = m.Image.ID
					in.Text = m.Image.Caption
				case "interactive":
					if m.Interactive == nil {
						continue
					}
					switch {
					case m.Interactive.ButtonReply != nil:
						in.Text = m.Interactive.ButtonReply.ID
					case m.Interactive.ListReply != nil:
						in.Text = m.Interactive.ListReply.ID
					default:
						continue
					}
				default:
					continue
				}
				out = append(out, in)
			}
		}
	}
	return out
}

// ParseTwilio reads a Twilio WhatsApp form callback.
func ParseTwilio(form url.Values) (Inbound, bool) {
	from := strings.TrimPrefix(form.Get("From"), "whatsapp:")
	if from == "" {
		return Inbound{}, false
	}

	in := Inbound{
		MessageID: form.Get("MessageSid"),
		From:      from,
		Name:      form.Get("ProfileName"),
		Text:      form.Get("Body"),
	}
	if form.Get("NumMedia") != "" && form.Get("NumMedia") != "0" {
		in.MediaID = form.Get("MediaUrl0")
	}
	return in, true
}

// VerifySignature checks Meta's X-Hub-Signature-256 header against body.
// An empty appSecret disables verification.
func VerifySignature(appSecret string, body []byte, header string) bool {
	if appSecret == "" {
		return true
	}
	sig, ok := strings.CutPrefix(header, "sha256=")
	if !ok {
		return false
	}
	return crypto.VerifySignature(crypto.SignSHA256(appSecret, body), sig)
}
