package core_domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ContactStatus is the subscription state of a recipient.
type ContactStatus string

const (
	ContactStatusActive   ContactStatus = "active"
	ContactStatusOptedOut ContactStatus = "opted_out"
)

// Contact is a message recipient. It is read-only input to the send loop but
// may be created implicitly when an inbound message arrives from an unknown
// number.
type Contact struct {
	ID        uuid.UUID         `json:"id"`
	Phone     string            `json:"phone"`
	Name      string            `json:"name"`
	Email     string            `json:"email,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	Status    ContactStatus     `json:"status"`
	CreatedAt time.Time         `json:"created_at"`
}

// Eligible reports whether the contact may receive campaign sends.
func (c *Contact) Eligible() bool {
	return c.Status == ContactStatusActive
}

// NewImplicitContact builds the placeholder contact created when an inbound
// message arrives from an unknown phone number. profileName may be empty.
func NewImplicitContact(phone, profileName string) *Contact {
	name := profileName
	if name == "" {
		suffix := phone
		if len(suffix) > 4 {
			suffix = suffix[len(suffix)-4:]
		}
		name = fmt.Sprintf("WhatsApp User %s", suffix)
	}
	return &Contact{
		ID:        uuid.New(),
		Phone:     phone,
		Name:      name,
		Status:    ContactStatusActive,
		CreatedAt: time.Now().UTC(),
	}
}
