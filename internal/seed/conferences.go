package seed

import (
	"fmt"

	"guestbook/internal/models"
	"guestbook/internal/validation"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// BuiltInConference is a conference every environment starts with.
type BuiltInConference struct {
	City            string
	Year            string
	IsInternational bool
}

// BuiltInConferences defines the permanent conferences.
var BuiltInConferences = []BuiltInConference{
	{City: "Amsterdam", Year: "2019", IsInternational: true},
	{City: "Paris", Year: "2020", IsInternational: false},
}

// Conferences upserts the built-in conferences by slug.
func Conferences(db *gorm.DB) ([]models.Conference, error) {
	out := make([]models.Conference, 0, len(BuiltInConferences))
	for _, item := range BuiltInConferences {
		if err := validation.ValidateConference(item.City, item.Year); err != nil {
			return nil, fmt.Errorf("built-in conference %s %s: %w", item.City, item.Year, err)
		}
		conference := models.Conference{
			City:            item.City,
			Year:            item.Year,
			IsInternational: item.IsInternational,
			Slug:            validation.ConferenceSlug(item.City, item.Year),
		}

		if err := db.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "slug"}},
			DoUpdates: clause.AssignmentColumns([]string{"city", "year", "is_international", "updated_at"}),
		}).Create(&conference).Error; err != nil {
			return nil, fmt.Errorf("seed built-in conference %s: %w", conference.Slug, err)
		}

		if err := db.Where("slug = ?", conference.Slug).First(&conference).Error; err != nil {
			return nil, fmt.Errorf("reload conference %s: %w", conference.Slug, err)
		}
		out = append(out, conference)
	}
	return out, nil
}
