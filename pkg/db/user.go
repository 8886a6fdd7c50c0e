// Database model for users
package db

// User is the minimal projection of the identity service this subsystem
// needs: display details for outgoing payloads, the assistant flag for the
// synthetic AI identity, and the per-user AI opt-out.
type User struct {
	ID          int64  `json:"id" gorm:"primaryKey;autoIncrement"`
	FirstName   string `json:"first_name" gorm:"size:64;not null"`
	LastName    string `json:"last_name" gorm:"size:64;not null"`
	Image       string `json:"image,omitempty" gorm:"size:255"`
	IsAssistant bool   `json:"is_assistant" gorm:"default:false"`

	// AiOptOut hides the user's messages from the assistant's context fetch
	// and suppresses orchestration for their sends.
	AiOptOut bool `json:"ai_opt_out" gorm:"default:false"`
}

func (User) TableName() string {
	return "users"
}

// DisplayName is the name rendered in mention fragments.
func (u *User) DisplayName() string {
	if u.LastName == "" {
		return u.FirstName
	}
	return u.FirstName + " " + u.LastName
}
