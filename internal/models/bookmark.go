package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Bookmark struct {
	ID        primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	URL       string             `json:"url" bson:"url"`
	Title     string             `json:"title" bson:"title"`
	UserID    primitive.ObjectID `json:"user_id" bson:"user_id"`
	CreatedAt time.Time          `json:"created_at" bson:"created_at"`
}

// AddBookmarkRequestBody fields are validated in declaration order, so title
// problems are reported before url problems.
type AddBookmarkRequestBody struct {
	Title string `json:"title" validate:"required,max=512"`
	URL   string `json:"url" validate:"required,max=2048,url"`
}

type BookmarksResponse struct {
	Bookmarks []Bookmark `json:"bookmarks"`
}

type BookmarkResponse struct {
	Bookmark *Bookmark `json:"bookmark"`
}

type DeleteResponse struct {
	Success bool `json:"success"`
}

type ErrorResponse struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}
