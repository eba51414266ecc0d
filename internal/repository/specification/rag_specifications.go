package specification

import "gorm.io/gorm"

// ByIntent filters examples by their classified intent
type ByIntent struct {
	Intent string
}

func (s ByIntent) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("intent = ?", s.Intent)
}

// ByQuestion filters by the exact question text
type ByQuestion struct {
	Question string
}

func (s ByQuestion) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("question = ?", s.Question)
}

// ActiveOnly keeps examples whose embedding has been generated
type ActiveOnly struct{}

func (s ActiveOnly) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("active = ?", true)
}
