package whatsapp

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/relayline/wabroadcast/internal/core_domain"
)

// TemplatePayload is the Cloud API request body for a template send.
type TemplatePayload struct {
	MessagingProduct string          `json:"messaging_product"`
	RecipientType    string          `json:"recipient_type"`
	To               string          `json:"to"`
	Type             string          `json:"type"`
	Template         TemplateMessage `json:"template"`
}

// TemplateMessage names the catalog template and carries its parameters.
type TemplateMessage struct {
	Name       string             `json:"name"`
	Language   LanguageCode       `json:"language"`
	Components []PayloadComponent `json:"components,omitempty"`
}

// LanguageCode wraps the template language per the provider's schema.
type LanguageCode struct {
	Code string `json:"code"`
}

// PayloadComponent is one header/body/button entry in the outgoing payload.
// Static headers are emitted with no parameters: the provider rejects
// parameters on static components.
type PayloadComponent struct {
	Type       string      `json:"type"`
	SubType    string      `json:"sub_type,omitempty"`
	Index      string      `json:"index,omitempty"`
	Parameters []Parameter `json:"parameters,omitempty"`
}

// Parameter is a single component parameter.
type Parameter struct {
	Type     string     `json:"type"`
	Text     string     `json:"text,omitempty"`
	Payload  string     `json:"payload,omitempty"`
	Image    *MediaLink `json:"image,omitempty"`
	Video    *MediaLink `json:"video,omitempty"`
	Document *MediaLink `json:"document,omitempty"`
}

// MediaLink references header media by URL.
type MediaLink struct {
	Link string `json:"link"`
}

var placeholderRe = regexp.MustCompile(`\{\{\s*([A-Za-z0-9_]+)\s*\}\}`)

// ResolvePlaceholders substitutes {{token}} markers in text. Numeric tokens
// are positional ({{1}} reads variables["param1"], falling back to
// variables["1"]); named tokens resolve from campaign variables first, then
// contact built-ins (name/phone/email), then contact metadata. Unresolved
// tokens become the empty string rather than failing the send.
func ResolvePlaceholders(text string, variables map[string]string, contact *core_domain.Contact) string {
	return placeholderRe.ReplaceAllStringFunc(text, func(match string) string {
		token := strings.TrimSpace(strings.Trim(match, "{}"))

		if _, err := strconv.Atoi(token); err == nil {
			if v, ok := variables["param"+token]; ok {
				return v
			}
			return variables[token]
		}

		if v, ok := variables[token]; ok {
			return v
		}
		if contact != nil {
			switch token {
			case "name":
				return contact.Name
			case "phone":
				return contact.Phone
			case "email":
				return contact.Email
			}
			if v, ok := contact.Metadata[token]; ok {
				return v
			}
		}
		return ""
	})
}

// BuildTemplatePayload assembles the provider payload for one contact.
// Malformed or unsupported components are skipped so a single bad component
// cannot block the whole payload; footer components are never emitted.
func BuildTemplatePayload(tmpl *core_domain.Template, variables map[string]string, contact *core_domain.Contact, toPhone string) *TemplatePayload {
	payload := &TemplatePayload{
		MessagingProduct: "whatsapp",
		RecipientType:    "individual",
		To:               toPhone,
		Type:             "template",
		Template: TemplateMessage{
			Name:     tmpl.ProviderName,
			Language: LanguageCode{Code: languageOrDefault(tmpl.Language)},
		},
	}

	var components []PayloadComponent
	bodyEmitted := false

	for _, comp := range tmpl.Components {
		switch c := comp.(type) {
		case core_domain.HeaderComponent:
			if hc, ok := buildHeaderComponent(c, variables, contact); ok {
				components = append(components, hc)
			}
		case core_domain.BodyComponent:
			components = append(components, buildBodyComponent(c.Text, variables, contact))
			bodyEmitted = true
		case core_domain.ButtonsComponent:
			for i, btn := range c.Buttons {
				if !strings.EqualFold(btn.Type, "QUICK_REPLY") {
					continue
				}
				payloadText := btn.Payload
				if payloadText == "" {
					payloadText = btn.Text
				}
				components = append(components, PayloadComponent{
					Type:    "button",
					SubType: "quick_reply",
					Index:   strconv.Itoa(i),
					Parameters: []Parameter{
						{Type: "payload", Payload: payloadText},
					},
				})
			}
		case core_domain.FooterComponent:
			// Provider forbids footer parameters.
		}
	}

	if !bodyEmitted && tmpl.Body != "" && placeholderRe.MatchString(tmpl.Body) {
		components = append(components, buildBodyComponent(tmpl.Body, variables, contact))
	}

	payload.Template.Components = components
	return payload
}

func buildBodyComponent(text string, variables map[string]string, contact *core_domain.Contact) PayloadComponent {
	tokens := placeholderRe.FindAllString(text, -1)
	params := make([]Parameter, 0, len(tokens))
	for _, tok := range tokens {
		params = append(params, Parameter{
			Type: "text",
			Text: ResolvePlaceholders(tok, variables, contact),
		})
	}
	return PayloadComponent{Type: "body", Parameters: params}
}

func buildHeaderComponent(header core_domain.HeaderComponent, variables map[string]string, contact *core_domain.Contact) (PayloadComponent, bool) {
	switch header.Format {
	case core_domain.HeaderFormatImage, core_domain.HeaderFormatVideo, core_domain.HeaderFormatDocument:
		if header.MediaURL == "" {
			// No media supplied; skip rather than send a broken reference.
			return PayloadComponent{}, false
		}
		param := Parameter{Type: strings.ToLower(string(header.Format))}
		link := &MediaLink{Link: header.MediaURL}
		switch header.Format {
		case core_domain.HeaderFormatImage:
			param.Image = link
		case core_domain.HeaderFormatVideo:
			param.Video = link
		case core_domain.HeaderFormatDocument:
			param.Document = link
		}
		return PayloadComponent{Type: "header", Parameters: []Parameter{param}}, true
	case core_domain.HeaderFormatText:
		if placeholderRe.MatchString(header.Text) {
			return PayloadComponent{
				Type: "header",
				Parameters: []Parameter{
					{Type: "text", Text: ResolvePlaceholders(header.Text, variables, contact)},
				},
			}, true
		}
		// Static text header: bare marker, no parameters.
		return PayloadComponent{Type: "header"}, true
	default:
		return PayloadComponent{}, false
	}
}

func languageOrDefault(lang string) string {
	if lang == "" {
		return "en"
	}
	return lang
}
