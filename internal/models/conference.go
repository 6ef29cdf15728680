package models

import (
	"fmt"
	"time"
)

// Conference represents one edition of a conference that accepts guestbook comments.
type Conference struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	City            string    `gorm:"size:255;not null" json:"city"`
	Year            string    `gorm:"size:4;not null" json:"year"`
	IsInternational bool      `gorm:"not null;default:false" json:"is_international"`
	Slug            string    `gorm:"size:255;not null;uniqueIndex" json:"slug"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// TableName specifies the table name for GORM.
func (Conference) TableName() string {
	return "conferences"
}

func (c Conference) String() string {
	return fmt.Sprintf("%s %s", c.City, c.Year)
}
