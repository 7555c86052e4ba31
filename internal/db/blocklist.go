package db

import (
	"log"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// IsBlocked reports whether an IP currently has a non-expired block entry.
// Lookup errors fail open: tracking traffic must never be dropped because
// the blocklist backend is unavailable.
func IsBlocked(db *gorm.DB, ip string) bool {
	var n int64
	err := db.Model(&BlockedIP{}).
		Where("ip = ? AND expires_at > ?", ip, time.Now()).
		Count(&n).Error
	if err != nil {
		log.Printf("blocklist lookup failed for %s, failing open: %v", ip, err)
		return false
	}
	return n > 0
}

// BlockIP inserts or overwrites a block entry for the IP, expiring after d.
func BlockIP(db *gorm.DB, ip, reason string, d time.Duration) error {
	entry := BlockedIP{
		IP:        ip,
		Reason:    reason,
		ExpiresAt: time.Now().Add(d),
	}
	return db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "ip"}},
		DoUpdates: clause.AssignmentColumns([]string{"reason", "expires_at"}),
	}).Create(&entry).Error
}

// StartBlockCleanupWorker deletes expired block entries once at startup and
// then hourly. Expired rows are already ignored on read; this is hygiene.
func StartBlockCleanupWorker(db *gorm.DB) {
	go func() {
		run := func() {
			if err := db.Where("expires_at <= ?", time.Now()).Delete(&BlockedIP{}).Error; err != nil {
				log.Printf("blocklist cleanup error: %v", err)
			}
		}

		run()
		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()
		for range ticker.C {
			run()
		}
	}()
}
