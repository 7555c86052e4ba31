package db

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Session statuses and intent levels. A session only ever moves from
// active to ended, never back.
const (
	SessionActive = "active"
	SessionEnded  = "ended"
)

const (
	LeadInProgress = "in_progress"
	LeadCompleted  = "completed"
)

// Session represents one browser session of one visitor. Counters and flags
// are running totals; the intent score is always recomputed from them in
// full, never incrementally patched.
type Session struct {
	ID uint `gorm:"primaryKey"`

	// Token identifies the session on the wire. It rotates per session,
	// while VisitorID is stable per browser.
	Token     string `gorm:"uniqueIndex;size:64;not null"`
	VisitorID string `gorm:"index;size:64;not null"`

	Status string `gorm:"size:16;not null;default:active"`

	FirstSeenAt    time.Time
	StartedAt      time.Time
	LastActivityAt time.Time `gorm:"index"`
	EndedAt        *time.Time

	PageViewsCount int
	EventsCount    int

	VisitedPricing   bool
	VisitedServices  bool
	VisitedPortfolio bool
	VisitedContact   bool
	StartedForm      bool
	CompletedForm    bool
	ClickedCTA       bool
	WatchedVideo     bool
	IsReturning      bool

	TotalTimeSeconds   int
	EngagedTimeSeconds int
	// ScrollDepthMax only ever goes up; engagement updates raise it via max().
	ScrollDepthMax int

	LandingPage    string `gorm:"size:2048"`
	ReferrerURL    string `gorm:"size:2048"`
	ReferrerDomain string `gorm:"size:255"`
	ReferrerType   string `gorm:"size:32"`
	UTMSource      string `gorm:"size:255"`
	UTMMedium      string `gorm:"size:255"`
	UTMCampaign    string `gorm:"size:255"`
	UTMTerm        string `gorm:"size:255"`
	UTMContent     string `gorm:"size:255"`

	DeviceType string `gorm:"size:16"`
	UserAgent  string `gorm:"size:512"`
	Locale     string `gorm:"size:16"`
	Timezone   string `gorm:"size:64"`

	Country     string `gorm:"size:2"`
	CountryName string `gorm:"size:64"`
	City        string `gorm:"size:128"`
	Region      string `gorm:"size:128"`

	// PreviousSessionsCount is the number of sessions this visitor had
	// before this one, captured at creation time.
	PreviousSessionsCount int

	// LeadID links the session to a funnel attempt once known.
	LeadID *uint `gorm:"index"`

	IntentScore     float64
	IntentLevel     string            `gorm:"size:16"`
	IntentBreakdown datatypes.JSONMap `gorm:"type:json"`
}

// PageView represents a single navigation within a session. ExitedAt stays
// nil while the page is the session's current one; the record is closed on
// the next navigation and its engagement metrics are filled in by the
// engagement-update call. Afterwards it is immutable.
type PageView struct {
	ID uint `gorm:"primaryKey"`

	SessionID uint `gorm:"index;not null"`

	URL         string `gorm:"size:2048"`
	Path        string `gorm:"size:1024"`
	PageType    string `gorm:"size:32;index"`
	Title       string `gorm:"size:512"`
	PreviousURL string `gorm:"size:2048"`

	ViewportWidth  int
	ViewportHeight int
	LoadTimeMs     int

	EnteredAt time.Time
	ExitedAt  *time.Time

	TimeOnPageSeconds  int
	EngagedTimeSeconds int
	ScrollDepth        int

	Interacted bool
	Bounced    bool
}

// Event represents one discrete visitor interaction. Append-only.
type Event struct {
	ID uint `gorm:"primaryKey"`

	SessionID  uint  `gorm:"index;not null"`
	PageViewID *uint `gorm:"index"`

	Type     string `gorm:"size:32;index;not null"`
	Category string `gorm:"size:32"`

	ElementID   string `gorm:"size:255"`
	ElementText string `gorm:"size:512"`

	ClickX        int
	ClickY        int
	ScrollPercent int

	IntentPoints      int
	IsConversionEvent bool
	IsEngagementEvent bool

	OccurredAt               time.Time
	MsSincePageLoad          int64
	SecondsSinceSessionStart int64
}

// Lead represents one lead-capture funnel attempt. The UUID is the external
// identity used on the API; the numeric ID stays internal. The core never
// deletes leads; spam ones just carry IsSpam for downstream filtering.
type Lead struct {
	ID   uint      `gorm:"primaryKey"`
	UUID uuid.UUID `gorm:"type:uuid;uniqueIndex;not null"`

	CreatedAt time.Time
	UpdatedAt time.Time

	Name          string `gorm:"size:255"`
	Email         string `gorm:"size:255"`
	Company       string `gorm:"size:255"`
	HasWebsite    *bool
	WebsiteURL    string `gorm:"size:2048"`
	Industry      string `gorm:"size:128"`
	OtherIndustry string `gorm:"size:255"`

	Services datatypes.JSONSlice[string] `gorm:"type:json"`
	Message  string                      `gorm:"type:text"`

	DiscoveryAnswers datatypes.JSONMap `gorm:"type:json"`
	TermsAccepted    bool

	Status string `gorm:"size:16;not null;default:in_progress"`
	// CurrentStep never regresses even when steps arrive out of order.
	CurrentStep int

	IsSpam    bool `gorm:"index"`
	SpamScore int

	SourceSite string `gorm:"size:64;index"`

	ReferrerURL  string `gorm:"size:2048"`
	ReferrerType string `gorm:"size:32"`
	UTMSource    string `gorm:"size:255"`
	UTMMedium    string `gorm:"size:255"`
	UTMCampaign  string `gorm:"size:255"`
	UTMTerm      string `gorm:"size:255"`
	UTMContent   string `gorm:"size:255"`

	Country string `gorm:"size:2"`
	City    string `gorm:"size:128"`

	CompletedAt *time.Time
}

// LeadAttempt is the append-only audit log of every funnel API call. It is
// evidence for the spam and rate-limit subsystems, never mutated.
type LeadAttempt struct {
	ID uint `gorm:"primaryKey"`

	CreatedAt time.Time `gorm:"index"`

	LeadUUID string `gorm:"size:36;index"`
	Action   string `gorm:"size:16;not null"`
	StepID   string `gorm:"size:32"`

	IP        string `gorm:"size:45;index"`
	UserAgent string `gorm:"size:512"`

	Success     bool
	RateLimited bool

	IsSpam      bool `gorm:"index"`
	SpamScore   int
	SpamReasons datatypes.JSONMap `gorm:"type:json"`

	// Payload keeps the raw request minus sensitive fields, for forensics.
	Payload datatypes.JSONMap `gorm:"type:json"`
}

// BlockedIP is a temporary block entry. Expired rows count as not-blocked
// on read; the cleanup worker removes them for hygiene.
type BlockedIP struct {
	ID uint `gorm:"primaryKey"`

	CreatedAt time.Time

	IP        string    `gorm:"uniqueIndex;size:45;not null"`
	Reason    string    `gorm:"size:255"`
	ExpiresAt time.Time `gorm:"index;not null"`
}
