package core_domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// TemplateStatus mirrors the provider's moderation state. Only approved
// templates may be sent.
type TemplateStatus string

const (
	TemplateStatusPending  TemplateStatus = "pending"
	TemplateStatusApproved TemplateStatus = "approved"
	TemplateStatusRejected TemplateStatus = "rejected"
)

// HeaderFormat is the declared format of a template HEADER component.
type HeaderFormat string

const (
	HeaderFormatText     HeaderFormat = "TEXT"
	HeaderFormatImage    HeaderFormat = "IMAGE"
	HeaderFormatVideo    HeaderFormat = "VIDEO"
	HeaderFormatDocument HeaderFormat = "DOCUMENT"
)

// TemplateComponent is the tagged union over the component kinds a template
// may declare. Components are decoded once when the template row is loaded;
// downstream code switches on the concrete type instead of re-reading maps.
type TemplateComponent interface {
	componentKind() string
}

// HeaderComponent is a template header: either formatted media or text that
// may carry a placeholder.
type HeaderComponent struct {
	Format   HeaderFormat `json:"format"`
	Text     string       `json:"text,omitempty"`
	MediaURL string       `json:"media_url,omitempty"`
}

// BodyComponent is the main message text with {{n}}/{{name}} placeholders.
type BodyComponent struct {
	Text string `json:"text"`
}

// ButtonsComponent declares the template's quick-reply buttons.
type ButtonsComponent struct {
	Buttons []TemplateButton `json:"buttons"`
}

// TemplateButton is one declared button.
type TemplateButton struct {
	Type    string `json:"type"` // QUICK_REPLY, URL, ...
	Text    string `json:"text"`
	Payload string `json:"payload,omitempty"`
}

// FooterComponent is static footer text. The provider forbids footer
// parameters, so this kind never contributes to an outgoing payload.
type FooterComponent struct {
	Text string `json:"text"`
}

func (HeaderComponent) componentKind() string  { return "HEADER" }
func (BodyComponent) componentKind() string    { return "BODY" }
func (ButtonsComponent) componentKind() string { return "BUTTONS" }
func (FooterComponent) componentKind() string  { return "FOOTER" }

// Template is a reusable, provider-approved message definition.
type Template struct {
	ID           uuid.UUID           `json:"id"`
	Name         string              `json:"name"`
	ProviderName string              `json:"provider_name"` // name registered with the Cloud API catalog
	Language     string              `json:"language"`
	Body         string              `json:"body"`
	Components   []TemplateComponent `json:"components,omitempty"`
	Status       TemplateStatus      `json:"status"`
	CreatedAt    time.Time           `json:"created_at"`
	UpdatedAt    time.Time           `json:"updated_at"`
}

// rawComponent is the loose persisted shape of a component before decoding.
type rawComponent struct {
	Type     string           `json:"type"`
	Format   string           `json:"format,omitempty"`
	Text     string           `json:"text,omitempty"`
	MediaURL string           `json:"media_url,omitempty"`
	Buttons  []TemplateButton `json:"buttons,omitempty"`
}

// DecodeComponents turns the persisted jsonb array into the tagged union.
// Components with an unknown or missing type tag are skipped rather than
// failing the whole template; a single bad component must not block sends.
func DecodeComponents(raw json.RawMessage) ([]TemplateComponent, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var rawList []rawComponent
	if err := json.Unmarshal(raw, &rawList); err != nil {
		return nil, err
	}

	components := make([]TemplateComponent, 0, len(rawList))
	for _, rc := range rawList {
		switch rc.Type {
		case "HEADER":
			format := HeaderFormat(rc.Format)
			if format == "" {
				format = HeaderFormatText
			}
			components = append(components, HeaderComponent{Format: format, Text: rc.Text, MediaURL: rc.MediaURL})
		case "BODY":
			components = append(components, BodyComponent{Text: rc.Text})
		case "BUTTONS":
			if len(rc.Buttons) == 0 {
				continue
			}
			components = append(components, ButtonsComponent{Buttons: rc.Buttons})
		case "FOOTER":
			components = append(components, FooterComponent{Text: rc.Text})
		default:
			// Unknown component kind; skip.
		}
	}
	return components, nil
}

// EncodeComponents serializes the tagged union back to the persisted shape.
func EncodeComponents(components []TemplateComponent) (json.RawMessage, error) {
	rawList := make([]rawComponent, 0, len(components))
	for _, comp := range components {
		switch c := comp.(type) {
		case HeaderComponent:
			rawList = append(rawList, rawComponent{Type: "HEADER", Format: string(c.Format), Text: c.Text, MediaURL: c.MediaURL})
		case BodyComponent:
			rawList = append(rawList, rawComponent{Type: "BODY", Text: c.Text})
		case ButtonsComponent:
			rawList = append(rawList, rawComponent{Type: "BUTTONS", Buttons: c.Buttons})
		case FooterComponent:
			rawList = append(rawList, rawComponent{Type: "FOOTER", Text: c.Text})
		}
	}
	return json.Marshal(rawList)
}
