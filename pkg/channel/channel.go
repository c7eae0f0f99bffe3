// Package channel resolves which delivery channels can reach a user.
package channel

import (
	"regexp"
	"slices"
	"strings"
)

// Channel is a delivery medium.
type Channel string

const (
	Push     Channel = "push"
	Email    Channel = "email"
	SMS      Channel = "sms"
	WhatsApp Channel = "whatsapp"
)

// All lists every channel in selection order.
var All = []Channel{Push, Email, SMS, WhatsApp}

// Valid reports whether c is a known channel.
func (c Channel) Valid() bool {
	return slices.Contains(All, c)
}

func (c Channel) String() string { return string(c) }

// Category groups notifications for opt-out purposes.
type Category string

const (
	CategoryTimesheet     Category = "timesheet"
	CategoryMaterialOrder Category = "material_order"
	CategoryReminder      Category = "reminder"
	CategoryDigest        Category = "digest"
	CategoryCertificate   Category = "certificate"
)

// Preference holds a user's contact destinations and per-category opt-outs.
// It is owned by the user directory and read-only here.
type Preference struct {
	Email        string                 `json:"email,omitempty" bson:"email,omitempty"`
	Phone        string                 `json:"phone,omitempty" bson:"phone,omitempty"`
	WhatsApp     string                 `json:"whatsapp,omitempty" bson:"whatsapp,omitempty"`
	DeviceTokens []string               `json:"deviceTokens,omitempty" bson:"deviceTokens,omitempty"`
	OptOuts      map[Category][]Channel `json:"optOuts,omitempty" bson:"optOuts,omitempty"`
}

// OptedOut reports whether the user turned the channel off for the category.
func (p Preference) OptedOut(cat Category, ch Channel) bool {
	return slices.Contains(p.OptOuts[cat], ch)
}

var (
	emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)
	phoneRegex = regexp.MustCompile(`^\+[1-9][0-9]{6,14}$`)
)

// ValidEmail reports whether v looks like a deliverable email address.
func ValidEmail(v string) bool {
	return emailRegex.MatchString(v)
}

// ValidPhone reports whether v is an E.164 phone number.
func ValidPhone(v string) bool {
	return phoneRegex.MatchString(v)
}

// Destination returns the address the channel delivers to for this user.
// The second result is false when the user has no valid destination.
func Destination(p Preference, ch Channel) (string, bool) {
	switch ch {
	case Push:
		for _, tok := range p.DeviceTokens {
			if tok = strings.TrimSpace(tok); tok != "" {
				return tok, true
			}
		}
	case Email:
		if v := strings.TrimSpace(p.Email); ValidEmail(v) {
			return v, true
		}
	case SMS:
		if v := strings.TrimSpace(p.Phone); ValidPhone(v) {
			return v, true
		}
	case WhatsApp:
		if v := strings.TrimSpace(p.WhatsApp); ValidPhone(v) {
			return v, true
		}
	}
	return "", false
}
