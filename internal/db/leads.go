package db

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// FindLeadByUUID loads a lead by its external identity.
func FindLeadByUUID(db *gorm.DB, id uuid.UUID) (*Lead, error) {
	var l Lead
	if err := db.Where("uuid = ?", id).First(&l).Error; err != nil {
		return nil, err
	}
	return &l, nil
}

// WithLead runs fn on the row-locked lead identified by uuid, then saves the
// mutated lead. Same per-record atomicity boundary as WithSession.
func WithLead(db *gorm.DB, id uuid.UUID, fn func(tx *gorm.DB, l *Lead) error) error {
	return db.Transaction(func(tx *gorm.DB) error {
		var l Lead
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("uuid = ?", id).First(&l).Error; err != nil {
			return err
		}
		if err := fn(tx, &l); err != nil {
			return err
		}
		return tx.Save(&l).Error
	})
}

// SessionForLead returns the session linked to a lead, if any. Used to
// refresh that session's intent score after funnel progress.
func SessionForLead(db *gorm.DB, leadID uint) (*Session, error) {
	var s Session
	err := db.Where("lead_id = ?", leadID).Order("last_activity_at DESC").First(&s).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}
