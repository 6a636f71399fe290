package models

import (
	"encoding/json"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type User struct {
	gorm.Model
	FirstName           string         `json:"firstName"`
	LastName            string         `json:"lastName"`
	Email               string         `json:"email" gorm:"uniqueIndex"`
	PhoneNumber         string         `json:"phoneNumber"`
	Password            string         `json:"-"`
	AvatarURL           string         `json:"avatarURL"`
	PushTokens          datatypes.JSON `json:"pushTokens"`
	AllowsNotifications *bool          `json:"allowsNotifications"`
	Properties          []Property     `json:"properties" gorm:"foreignKey:RealtorID;references:ID"`
	Role                string         `json:"role" gorm:"type:varchar(20);default:guest;index"` // guest, realtor, admin
}

// Custom JSON marshaling so PushTokens renders as an array instead of raw jsonb
func (u *User) MarshalJSON() ([]byte, error) {
	type Alias User
	aux := &struct {
		PushTokens []string `json:"pushTokens,omitempty"`
		*Alias
	}{
		PushTokens: []string{},
		Alias:      (*Alias)(u),
	}

	if u.PushTokens != nil {
		var tokens []string
		if err := json.Unmarshal(u.PushTokens, &tokens); err == nil {
			aux.PushTokens = tokens
		}
	}

	return json.Marshal(aux)
}
