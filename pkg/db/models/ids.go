package models

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ensureID assigns a v4 identifier when the caller left it empty so inserts
// behave the same on Postgres and the sqlite test harness.
func ensureID(id *uuid.UUID) {
	if *id == uuid.Nil {
		*id = uuid.New()
	}
}

func (e *OutboxEvent) BeforeCreate(*gorm.DB) error {
	ensureID(&e.ID)
	return nil
}

func (d *OutboxDLQ) BeforeCreate(*gorm.DB) error {
	ensureID(&d.ID)
	return nil
}
