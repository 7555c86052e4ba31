package db

import (
	"log"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// sensitiveAttemptKeys are stripped from audit payloads before storage.
var sensitiveAttemptKeys = []string{"email", "phone", "message", "name"}

// SanitizeAttemptPayload returns a copy of payload with sensitive fields
// removed, suitable for the audit log.
func SanitizeAttemptPayload(payload map[string]any) datatypes.JSONMap {
	out := datatypes.JSONMap{}
	for k, v := range payload {
		out[k] = v
	}
	for _, k := range sensitiveAttemptKeys {
		delete(out, k)
	}
	return out
}

// RecordAttempt appends one audit row for a funnel API call. Audit failures
// are logged but never fail the parent request.
func RecordAttempt(db *gorm.DB, a *LeadAttempt) {
	if err := db.Create(a).Error; err != nil {
		log.Printf("failed to record lead attempt (%s %s): %v", a.Action, a.LeadUUID, err)
	}
}

// CountRecentAttempts counts funnel attempts from an IP inside the trailing
// window. Backs the too-many-attempts spam signal.
func CountRecentAttempts(db *gorm.DB, ip string, window time.Duration) (int, error) {
	var n int64
	cutoff := time.Now().Add(-window)
	err := db.Model(&LeadAttempt{}).
		Where("ip = ? AND created_at >= ?", ip, cutoff).
		Count(&n).Error
	return int(n), err
}

// CountSpamAttempts counts prior spam-flagged attempts from an IP, the
// basis of the IP reputation sub-score.
func CountSpamAttempts(db *gorm.DB, ip string) (int, error) {
	var n int64
	err := db.Model(&LeadAttempt{}).
		Where("ip = ? AND is_spam = ?", ip, true).
		Count(&n).Error
	return int(n), err
}

// StartRetentionWorker launches a background goroutine that deletes audit
// attempts older than the retention period, once at startup and then daily.
func StartRetentionWorker(db *gorm.DB, retentionDays int) {
	if retentionDays <= 0 {
		return
	}
	go func() {
		run := func() {
			cutoff := time.Now().Add(-time.Duration(retentionDays) * 24 * time.Hour)
			if err := db.Where("created_at < ?", cutoff).Delete(&LeadAttempt{}).Error; err != nil {
				log.Printf("attempt retention cleanup error: %v", err)
			}
		}

		run()
		ticker := time.NewTicker(24 * time.Hour)
		defer ticker.Stop()
		for range ticker.C {
			run()
		}
	}()
}
