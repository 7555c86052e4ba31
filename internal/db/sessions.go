package db

import (
	"crypto/rand"
	"encoding/hex"
	"log"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// NewSessionToken returns a fresh 32-hex session token.
func NewSessionToken() string {
	b := make([]byte, 16)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

// FindResumableSession returns the active session for token whose last
// activity falls inside the freshness window, or nil when no such session
// exists. Reading without a lock is fine here: a resume race with a
// near-simultaneous expiry just creates a new session instead.
func FindResumableSession(db *gorm.DB, token string, window time.Duration) (*Session, error) {
	if token == "" {
		return nil, nil
	}
	var s Session
	cutoff := time.Now().Add(-window)
	err := db.Where("token = ? AND status = ? AND last_activity_at >= ?", token, SessionActive, cutoff).
		First(&s).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// CountVisitorSessions returns how many sessions a visitor already has.
func CountVisitorSessions(db *gorm.DB, visitorID string) (int64, error) {
	var n int64
	err := db.Model(&Session{}).Where("visitor_id = ?", visitorID).Count(&n).Error
	return n, err
}

// WithSession runs fn on the session identified by token inside a
// transaction holding a row lock, then saves the mutated session. This is
// the per-record atomicity boundary for concurrent events from one tab.
func WithSession(db *gorm.DB, token string, fn func(tx *gorm.DB, s *Session) error) error {
	return db.Transaction(func(tx *gorm.DB) error {
		var s Session
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("token = ?", token).First(&s).Error; err != nil {
			return err
		}
		if err := fn(tx, &s); err != nil {
			return err
		}
		return tx.Save(&s).Error
	})
}

// OpenPageView returns the session's currently-open page view (exited_at
// null, latest entered_at), or nil.
func OpenPageView(tx *gorm.DB, sessionID uint) (*PageView, error) {
	var pv PageView
	err := tx.Where("session_id = ? AND exited_at IS NULL", sessionID).
		Order("entered_at DESC").First(&pv).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &pv, nil
}

// RecalcSessionTimes refreshes the session's running time totals from the
// sum over its page views. Called after every engagement update so the
// totals stay eventually correct without incremental drift.
func RecalcSessionTimes(tx *gorm.DB, s *Session) error {
	var out struct {
		Total   int
		Engaged int
	}
	err := tx.Model(&PageView{}).
		Select("COALESCE(SUM(time_on_page_seconds),0) AS total, COALESCE(SUM(engaged_time_seconds),0) AS engaged").
		Where("session_id = ?", s.ID).
		Scan(&out).Error
	if err != nil {
		return err
	}
	s.TotalTimeSeconds = out.Total
	s.EngagedTimeSeconds = out.Engaged
	return nil
}

// StartSessionSweepWorker marks sessions ended once they have been idle
// longer than the resumption window. Runs every 10 minutes.
func StartSessionSweepWorker(db *gorm.DB, window time.Duration) {
	go func() {
		sweep := func() {
			cutoff := time.Now().Add(-window)
			now := time.Now()
			res := db.Model(&Session{}).
				Where("status = ? AND last_activity_at < ?", SessionActive, cutoff).
				Updates(map[string]interface{}{"status": SessionEnded, "ended_at": now})
			if res.Error != nil {
				log.Printf("session sweep error: %v", res.Error)
			} else if res.RowsAffected > 0 {
				log.Printf("session sweep ended %d stale sessions", res.RowsAffected)
			}
		}

		sweep()
		ticker := time.NewTicker(10 * time.Minute)
		defer ticker.Stop()
		for range ticker.C {
			sweep()
		}
	}()
}
