package spam

import (
	"time"

	"gorm.io/gorm"

	"leadpulse/internal/db"
)

// GormAttemptStats reads the classifier's counters from the audit-log table.
type GormAttemptStats struct {
	DB *gorm.DB
}

func (s GormAttemptStats) CountRecent(ip string, window time.Duration) (int, error) {
	return db.CountRecentAttempts(s.DB, ip, window)
}

func (s GormAttemptStats) CountSpam(ip string) (int, error) {
	return db.CountSpamAttempts(s.DB, ip)
}

// GormBlocklist backs the classifier's blocklist with the blocked_ips table.
type GormBlocklist struct {
	DB *gorm.DB
}

func (b GormBlocklist) IsBlocked(ip string) bool {
	return db.IsBlocked(b.DB, ip)
}

func (b GormBlocklist) Block(ip, reason string, d time.Duration) error {
	return db.BlockIP(b.DB, ip, reason, d)
}
