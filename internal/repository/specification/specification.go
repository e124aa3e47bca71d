package specification

import (
	"fmt"

	"gorm.io/gorm"
)

// Specification defines the interface for query specifications
type Specification interface {
	Apply(db *gorm.DB) *gorm.DB
}

// ByDocument filters update log rows by document name
type ByDocument struct {
	Document string
}

func (s ByDocument) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("document = ?", s.Document)
}

// AfterSequence keeps rows past a known position in the log
type AfterSequence struct {
	Sequence int64
}

func (s AfterSequence) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("sequence > ?", s.Sequence)
}

// OrderBy applies ordering
type OrderBy struct {
	Field string
	Desc  bool
}

func (s OrderBy) Apply(db *gorm.DB) *gorm.DB {
	direction := "ASC"
	if s.Desc {
		direction = "DESC"
	}
	return db.Order(fmt.Sprintf("%s %s", s.Field, direction))
}

// Pagination
type Pagination struct {
	Limit  int
	Offset int
}

func (s Pagination) Apply(db *gorm.DB) *gorm.DB {
	return db.Limit(s.Limit).Offset(s.Offset)
}
