package domain

// Provider webhook envelope shapes (WhatsApp Cloud API). Only the fields the
// processors read are declared; everything else is ignored on unmarshal.

type WebhookPayload struct {
	Object string  `json:"object"`
	Entry  []Entry `json:"entry"`
}

type Entry struct {
	ID      string   `json:"id"`
	Changes []Change `json:"changes"`
}

type Change struct {
	Field string      `json:"field"` // messages, message_template_status_update
	Value ChangeValue `json:"value"`
}

type ChangeValue struct {
	MessagingProduct string           `json:"messaging_product,omitempty"`
	Metadata         *Metadata        `json:"metadata,omitempty"`
	Contacts         []WebhookContact `json:"contacts,omitempty"`
	Messages         []InboundMessage `json:"messages,omitempty"`
	Statuses         []StatusUpdate   `json:"statuses,omitempty"`

	// message_template_status_update fields.
	Event               string `json:"event,omitempty"` // APPROVED, REJECTED, PENDING
	MessageTemplateName string `json:"message_template_name,omitempty"`
}

type Metadata struct {
	DisplayPhoneNumber string `json:"display_phone_number"`
	PhoneNumberID      string `json:"phone_number_id"`
}

type WebhookContact struct {
	WaID    string  `json:"wa_id"`
	Profile Profile `json:"profile"`
}

type Profile struct {
	Name string `json:"name"`
}

// InboundMessage is one message from a contact. Type selects which of the
// optional sub-objects is present.
type InboundMessage struct {
	From      string `json:"from"`
	ID        string `json:"id"`
	Timestamp string `json:"timestamp"` // unix seconds as string
	Type      string `json:"type"`      // text, button, interactive, image, video, audio, document, sticker, ...

	Text        *TextBody        `json:"text,omitempty"`
	Button      *ButtonReply     `json:"button,omitempty"`
	Interactive *InteractiveBody `json:"interactive,omitempty"`
	Image       *MediaBody       `json:"image,omitempty"`
	Video       *MediaBody       `json:"video,omitempty"`
	Audio       *MediaBody       `json:"audio,omitempty"`
	Document    *MediaBody       `json:"document,omitempty"`
}

type TextBody struct {
	Body string `json:"body"`
}

// ButtonReply is a press of a quick-reply button declared on a template.
type ButtonReply struct {
	Payload string `json:"payload"`
	Text    string `json:"text"`
}

type InteractiveBody struct {
	Type        string          `json:"type"` // button_reply, list_reply
	ButtonReply *ReplySelection `json:"button_reply,omitempty"`
	ListReply   *ReplySelection `json:"list_reply,omitempty"`
}

type ReplySelection struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

type MediaBody struct {
	ID       string `json:"id"`
	MimeType string `json:"mime_type,omitempty"`
	Caption  string `json:"caption,omitempty"`
}

// StatusUpdate is a delivery lifecycle callback for an outbound message.
type StatusUpdate struct {
	ID          string        `json:"id"`     // provider message id
	Status      string        `json:"status"` // sent, delivered, read, failed
	Timestamp   string        `json:"timestamp"`
	RecipientID string        `json:"recipient_id"`
	Errors      []StatusError `json:"errors,omitempty"`
}

type StatusError struct {
	Code    int    `json:"code"`
	Title   string `json:"title"`
	Message string `json:"message,omitempty"`
}
