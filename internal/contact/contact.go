// Package contact manages the contact roster and its CSV/JSON
// persistence.
package contact

import (
	"time"
)

// Status represents where a contact is in the outreach lifecycle.
type Status string

const (
	StatusPending Status = "pending"
	StatusSent    Status = "sent"
	StatusReplied Status = "replied"
	StatusBounced Status = "bounced"
)

// GreetingStyle names a configured greeting pattern.
type GreetingStyle string

const (
	GreetingFormal       GreetingStyle = "formal"
	GreetingSemiFormal   GreetingStyle = "semi_formal"
	GreetingCasual       GreetingStyle = "casual"
	GreetingProfessional GreetingStyle = "professional"
)

// Contact is one roster entry. It is owned by the Store and mutated
// only through the Store's update operations.
type Contact struct {
	ID            string            `json:"id"`
	Email         string            `json:"email"`
	FirstName     string            `json:"first_name"`
	LastName      string            `json:"last_name"`
	Title         string            `json:"title,omitempty"`
	Company       string            `json:"company"`
	JobTitle      string            `json:"job_title"`
	Department    string            `json:"department"`
	GreetingStyle GreetingStyle     `json:"greeting_style"`
	CustomFields  map[string]string `json:"custom_fields"`
	Status        Status            `json:"status"`
	LastContacted *time.Time        `json:"last_contacted"`
}

// FullName returns the contact's display name.
func (c *Contact) FullName() string {
	if c.LastName != "" {
		return c.FirstName + " " + c.LastName
	}
	return c.FirstName
}

// Statistics holds contact counts by status.
type Statistics struct {
	Total   int `json:"total"`
	Pending int `json:"pending"`
	Sent    int `json:"sent"`
	Replied int `json:"replied"`
	Bounced int `json:"bounced"`
}
