// Package models contains data structures for the application's domain models.
package models

import "time"

// CommentState is the moderation state of a comment.
type CommentState string

const (
	// CommentStateSubmitted is the initial state of every new comment.
	CommentStateSubmitted CommentState = "submitted"
	// CommentStateSpam is a legacy provisional marker with no outgoing transitions.
	CommentStateSpam CommentState = "spam"
	// CommentStateHam means the checker found the comment clean; it waits for review.
	CommentStateHam CommentState = "ham"
	// CommentStatePotentialSpam means the checker was unsure; it waits for review.
	CommentStatePotentialSpam CommentState = "potential_spam"
	// CommentStateRejectedSpam means the checker flagged blatant spam.
	CommentStateRejectedSpam CommentState = "rejected_spam"
	// CommentStatePublished is a reviewed clean comment.
	CommentStatePublished CommentState = "published"
	// CommentStatePublishedHam is a reviewed comment the checker had suspected.
	CommentStatePublishedHam CommentState = "published_ham"
	// CommentStateRejected is a comment turned down by a reviewer.
	CommentStateRejected CommentState = "rejected"
)

// CommentStates lists every valid state.
var CommentStates = []CommentState{
	CommentStateSubmitted,
	CommentStateSpam,
	CommentStateHam,
	CommentStatePotentialSpam,
	CommentStateRejectedSpam,
	CommentStatePublished,
	CommentStatePublishedHam,
	CommentStateRejected,
}

// Valid reports whether s is one of the enumerated states.
func (s CommentState) Valid() bool {
	for _, known := range CommentStates {
		if s == known {
			return true
		}
	}
	return false
}

// Terminal reports whether no further classification or review can happen.
func (s CommentState) Terminal() bool {
	switch s {
	case CommentStatePublished, CommentStatePublishedHam, CommentStateRejected, CommentStateRejectedSpam:
		return true
	}
	return false
}

// Published reports whether the comment is visible on the conference page.
func (s CommentState) Published() bool {
	return s == CommentStatePublished || s == CommentStatePublishedHam
}

// Comment represents a guestbook entry left on a conference page.
type Comment struct {
	ID            uint         `gorm:"primaryKey" json:"id"`
	ConferenceID  uint         `gorm:"not null;index" json:"conference_id"`
	Conference    *Conference  `gorm:"foreignKey:ConferenceID" json:"conference,omitempty"`
	Author        string       `gorm:"size:255;not null" json:"author"`
	Text          string       `gorm:"type:text;not null" json:"text"`
	Email         string       `gorm:"size:255;not null" json:"-"`
	PhotoFilename string       `gorm:"size:255" json:"photo_filename,omitempty"`
	State         CommentState `gorm:"type:varchar(32);not null;default:'submitted';index" json:"state"`
	Optimized     bool         `gorm:"not null;default:false" json:"optimized"`
	Version       uint         `gorm:"not null;default:0" json:"-"`
	CreatedAt     time.Time    `json:"created_at"`
	UpdatedAt     time.Time    `json:"updated_at"`
}

// TableName specifies the table name for GORM.
func (Comment) TableName() string {
	return "comments"
}

// HasPhoto reports whether a stored photo is attached.
func (c *Comment) HasPhoto() bool {
	return c.PhotoFilename != ""
}
