package models

import "time"

// ContentType describes what a message carries.
type ContentType string

const (
	ContentText  ContentType = "text"
	ContentAudio ContentType = "audio"
	ContentImage ContentType = "image"
)

// ListenerType selects who responds to a confession.
type ListenerType string

const (
	ListenerAI    ListenerType = "ai"
	ListenerHuman ListenerType = "human"
	ListenerBoth  ListenerType = "both"
)

// Tab is a client-side view filter over a user's accessible messages.
type Tab string

const (
	TabSent      Tab = "sent"
	TabReceived  Tab = "received"
	TabResponses Tab = "responses"
)

// Valid reports whether t is one of the known tabs.
func (t Tab) Valid() bool {
	switch t {
	case TabSent, TabReceived, TabResponses:
		return true
	}
	return false
}

// Message is a user-authored emotional post, optionally anonymous/public,
// optionally carrying audio.
type Message struct {
	ID              string       `db:"id" json:"id"`
	Title           *string      `db:"title" json:"title"`
	Content         string       `db:"content" json:"content"`
	ContentType     ContentType  `db:"content_type" json:"content_type"`
	AudioURL        *string      `db:"audio_url" json:"audio_url"`
	EmotionCategory string       `db:"emotion_category" json:"emotion_category"`
	IsPublic        bool         `db:"is_public" json:"is_public"`
	IsAnonymous     bool         `db:"is_anonymous" json:"is_anonymous"`
	ListenerType    ListenerType `db:"listener_type" json:"listener_type"`
	AIResponse      *string      `db:"ai_response" json:"ai_response"`
	HumanResponse   *string      `db:"human_response" json:"human_response"`
	LikesCount      int          `db:"likes_count" json:"likes_count"`
	CommentsCount   int          `db:"comments_count" json:"comments_count"`
	CreatedAt       time.Time    `db:"created_at" json:"created_at"`
	UserID          string       `db:"user_id" json:"user_id"`
	Author          *Profile     `db:"-" json:"profiles,omitempty"`
}

// HasResponse reports whether anyone answered the message: an AI response, a
// human response, or at least one comment.
func (m Message) HasResponse() bool {
	if m.AIResponse != nil && *m.AIResponse != "" {
		return true
	}
	if m.HumanResponse != nil && *m.HumanResponse != "" {
		return true
	}
	return m.CommentsCount > 0
}
