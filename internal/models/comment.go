package models

import "time"

// Profile is the denormalized author view joined onto messages and comments.
type Profile struct {
	ID       string  `db:"id" json:"id"`
	FullName *string `db:"full_name" json:"full_name"`
	Username *string `db:"username" json:"username"`
	Email    string  `db:"email" json:"email"`
}

// DisplayName picks the best available name for rendering.
func (p Profile) DisplayName() string {
	if p.FullName != nil && *p.FullName != "" {
		return *p.FullName
	}
	if p.Username != nil && *p.Username != "" {
		return *p.Username
	}
	return p.Email
}

// Comment is a threaded reply attached to a message. MessageID is immutable
// after creation.
type Comment struct {
	ID          string    `db:"id" json:"id"`
	MessageID   string    `db:"message_id" json:"message_id"`
	UserID      string    `db:"user_id" json:"user_id"`
	Content     string    `db:"content" json:"content"`
	IsAnonymous bool      `db:"is_anonymous" json:"is_anonymous"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	Author      *Profile  `db:"-" json:"profiles,omitempty"`
}
