package models

import (
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type User struct {
	ID          primitive.ObjectID `json:"id,omitempty" bson:"_id,omitempty"`
	Email       string             `json:"email" bson:"email"`
	DisplayName string             `json:"display_name" bson:"display_name"`
	AvatarURL   string             `json:"avatar_url,omitempty" bson:"avatar_url,omitempty"`
	Provider    string             `json:"provider,omitempty" bson:"provider,omitempty"`
	CreatedAt   time.Time          `json:"created_at" bson:"created_at"`
	UpdatedAt   time.Time          `json:"updated_at" bson:"updated_at"`
}

// Session is the read-only identity a request is executed as.
type Session struct {
	UserID      primitive.ObjectID `json:"id"`
	Email       string             `json:"email"`
	DisplayName string             `json:"display_name"`
	AvatarURL   *string            `json:"avatar_url"`
}

func (u *User) Session() *Session {
	s := &Session{
		UserID:      u.ID,
		Email:       u.Email,
		DisplayName: u.DisplayName,
	}
	if u.AvatarURL != "" {
		avatar := u.AvatarURL
		s.AvatarURL = &avatar
	}
	return s
}

// Initials returns at most two upper-cased initials of the display name.
func (s *Session) Initials() string {
	var b strings.Builder
	for _, part := range strings.Fields(s.DisplayName) {
		r, _ := utf8.DecodeRuneInString(part)
		b.WriteRune(unicode.ToUpper(r))
		if utf8.RuneCountInString(b.String()) == 2 {
			break
		}
	}
	return b.String()
}

type Profile struct {
	*Session
	Initials string `json:"initials"`
}
