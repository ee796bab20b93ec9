package model

import "strings"

// Contact is an addressable recipient of reminders.
type Contact struct {
	ID        string `mapstructure:"id" yaml:"id" json:"id"`
	Name      string `mapstructure:"name" yaml:"name" json:"name"`
	Email     string `mapstructure:"email" yaml:"email" json:"email,omitempty"`
	Phone     string `mapstructure:"phone" yaml:"phone" json:"phone,omitempty"`
	PushToken string `mapstructure:"push_token" yaml:"push_token" json:"push_token,omitempty"`
}

// Directory resolves recipient identifiers to contacts.
type Directory map[string]Contact

// NewDirectory indexes contacts by ID.
func NewDirectory(contacts []Contact) Directory {
	d := make(Directory, len(contacts))
	for _, c := range contacts {
		d[c.ID] = c
	}
	return d
}

// Resolve returns the contact for a recipient. Unknown recipients that look
// like an email address or an E.164 phone number are used verbatim.
func (d Directory) Resolve(recipient string) Contact {
	if c, ok := d[recipient]; ok {
		return c
	}
	c := Contact{ID: recipient, Name: recipient}
	switch {
	case strings.Contains(recipient, "@"):
		c.Email = recipient
	case strings.HasPrefix(recipient, "+"):
		c.Phone = recipient
	}
	return c
}
