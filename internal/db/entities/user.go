package entities

import (
	"strings"
	"time"
)

// User represents an account. Staff users may author posts.
type User struct {
	ID           int64     `json:"id" db:"id"`
	Username     string    `json:"username" db:"username"`
	Email        string    `json:"email" db:"email"`
	PasswordHash string    `json:"-" db:"password_hash"`
	IsStaff      bool      `json:"is_staff" db:"is_staff"`
	DateJoined   time.Time `json:"date_joined" db:"date_joined"`
}

const maxUsernameLen = 150

// DisplayName is what pages show as the author of a post or comment.
func (u User) DisplayName() string {
	return u.Username
}

func (u *User) Validate() error {
	u.Username = strings.TrimSpace(u.Username)
	if u.Username == "" {
		return invalid("username", "is required")
	}
	if len([]rune(u.Username)) > maxUsernameLen {
		return invalid("username", "must be at most %d characters", maxUsernameLen)
	}
	return nil
}
