package users

import (
	"github.com/angelmondragon/topupstore-backend/pkg/db/models"
	"github.com/angelmondragon/topupstore-backend/pkg/enums"
	"github.com/google/uuid"
)

// Account is the read model of the authenticated user.
type Account struct {
	ID                   uuid.UUID `json:"id"`
	Email                string    `json:"email"`
	Phone                string    `json:"phone,omitempty"`
	DisplayName          string    `json:"display_name,omitempty"`
	SavedEmail           string    `json:"saved_email,omitempty"`
	SavedMessagingHandle string    `json:"saved_messaging_handle,omitempty"`
}

// FromModel maps the persisted user onto an Account.
func FromModel(m *models.User) *Account {
	if m == nil {
		return nil
	}
	return &Account{
		ID:                   m.ID,
		Email:                m.Email,
		Phone:                deref(m.Phone),
		DisplayName:          m.DisplayName,
		SavedEmail:           deref(m.SavedEmail),
		SavedMessagingHandle: deref(m.SavedMessagingHandle),
	}
}

// DefaultContact returns the prefill for the given delivery method: the saved
// contact for that method, else the account email or phone. It may be empty.
func (a *Account) DefaultContact(method enums.DeliveryMethod) string {
	if a == nil {
		return ""
	}
	switch method {
	case enums.DeliveryMethodEmail:
		if a.SavedEmail != "" {
			return a.SavedEmail
		}
		return a.Email
	case enums.DeliveryMethodMessaging:
		if a.SavedMessagingHandle != "" {
			return a.SavedMessagingHandle
		}
		return a.Phone
	default:
		return ""
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
