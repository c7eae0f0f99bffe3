package workforce

import (
	"slices"
	"time"

	"github.com/dmitrymomot/crewnotify/pkg/channel"
)

// Role is a user's function in the organisation.
type Role string

const (
	RoleAdmin     Role = "admin"
	RoleForeman   Role = "foreman"
	RoleWarehouse Role = "warehouse"
	RoleEmployee  Role = "employee"
)

// User is a person who can receive notifications.
type User struct {
	ID         string             `json:"id" bson:"_id"`
	Name       string             `json:"name" bson:"name"`
	Role       Role               `json:"role" bson:"role"`
	Preference channel.Preference `json:"preference" bson:"preference"`
}

// Certificate is a credential held by a user that expires.
type Certificate struct {
	ID       string    `json:"id" bson:"_id"`
	HolderID string    `json:"holderId" bson:"holderId"`
	Name     string    `json:"name" bson:"name"`
	Expires  time.Time `json:"expiresAt" bson:"expiresAt"`
	// NotifiedThresholds lists the day thresholds already announced.
	NotifiedThresholds []int `json:"notifiedThresholds,omitempty" bson:"notifiedThresholds,omitempty"`
}

// Notified reports whether the threshold has already fired.
func (c Certificate) Notified(days int) bool {
	return slices.Contains(c.NotifiedThresholds, days)
}
