package database

import "guestbook/internal/models"

// PersistentModels returns the authoritative set of schema-managed GORM models.
func PersistentModels() []interface{} {
	return []interface{}{
		&models.Conference{},
		&models.Comment{},
	}
}
