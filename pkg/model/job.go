// Package model defines the durable records exchanged between the wire
// protocol, the job store, the priority queue, and the dispatcher.
package model

import "time"

// Status is a job's lifecycle state.
type Status string

const (
	StatusPending   Status = "pending"
	StatusPrinting  Status = "printing"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// PageSize is a supported print media size.
type PageSize string

const (
	PageSizeA4     PageSize = "A4"
	PageSizeA3     PageSize = "A3"
	PageSizeA5     PageSize = "A5"
	PageSizeLetter PageSize = "Letter"
	PageSizeLegal  PageSize = "Legal"
)

// Orientation is a supported page orientation.
type Orientation string

const (
	OrientationPortrait  Orientation = "portrait"
	OrientationLandscape Orientation = "landscape"
)

// Quality is a supported print quality level.
type Quality string

const (
	QualityDraft  Quality = "draft"
	QualityNormal Quality = "normal"
	QualityHigh   Quality = "high"
)

// Margins holds the four page margins in millimetres.
type Margins struct {
	TopMM    float64 `json:"top_mm"`
	BottomMM float64 `json:"bottom_mm"`
	LeftMM   float64 `json:"left_mm"`
	RightMM  float64 `json:"right_mm"`
}

// DefaultMaxRetries is the number of retries a job gets before it is
// permanently failed, per spec §3.
const DefaultMaxRetries = 3

// Job is the durable record for one print submission.
type Job struct {
	// InternalID is the store's monotonically increasing sequence number,
	// assigned at creation and persisted with the job record. No wire
	// response carries it; get_job_by_internal uses it as a stable,
	// gap-tolerant alternative key to job_id.
	InternalID uint64 `json:"internal_id"`

	JobID    string `json:"job_id"`
	ClientID string `json:"client_id"`
	UserName string `json:"user_name"`

	DocumentName  string `json:"document_name"`
	FileFormat    string `json:"file_format"`
	FileSizeBytes int64  `json:"file_size_bytes"`
	PageCount     int    `json:"page_count"`

	PageSize    PageSize    `json:"page_size"`
	Orientation Orientation `json:"orientation"`
	Copies      int         `json:"copies"`
	Color       bool        `json:"color"`
	Duplex      bool        `json:"duplex"`
	Quality     Quality     `json:"quality"`
	Margins     Margins     `json:"margins"`

	Priority      int    `json:"priority"`
	QueuePosition int    `json:"queue_position"`
	RetryCount    int    `json:"retry_count"`
	MaxRetries    int    `json:"max_retries"`

	Status           Status     `json:"status"`
	CreatedAt        time.Time  `json:"created_at"`
	StartedAt        *time.Time `json:"started_at,omitempty"`
	CompletedAt      *time.Time `json:"completed_at,omitempty"`
	ProcessingTimeMs int64      `json:"processing_time_ms,omitempty"`
	ErrorMessage     string     `json:"error_message,omitempty"`

	// TempFilePath is the resolved path of the materialized payload on
	// disk. It is internal bookkeeping, persisted with the job record so the
	// dispatcher can find the payload; no wire response carries it.
	TempFilePath string `json:"temp_file_path,omitempty"`
}

// JobPatch is a partial update applied to a job by the store's UpdateJob.
// Nil fields are left untouched.
type JobPatch struct {
	Status           *Status
	StartedAt        *time.Time
	CompletedAt      *time.Time
	ProcessingTimeMs *int64
	ErrorMessage     *string
	RetryCount       *int
	Priority         *int
	QueuePosition    *int
}

// Client is the durable record of a workstation that has submitted jobs.
type Client struct {
	ClientID       string    `json:"client_id"`
	LastSeenIP     string    `json:"last_seen_ip"`
	Hostname       string    `json:"hostname"`
	FirstSeen      time.Time `json:"first_seen"`
	LastSeen       time.Time `json:"last_seen"`
	TotalJobs      int64     `json:"total_jobs"`
	TotalPages     int64     `json:"total_pages"`
	IsActive       bool      `json:"is_active"`
}

// Role is a user's authorization level.
type Role string

const (
	RoleAdmin  Role = "admin"
	RoleUser   Role = "user"
	RoleViewer Role = "viewer"
)

// User is the durable record of a login principal.
type User struct {
	Username           string     `json:"username"`
	PasswordHash       string     `json:"password_hash"`
	PasswordSalt       string     `json:"password_salt"`
	Role               Role       `json:"role"`
	IsActive           bool       `json:"is_active"`
	CreatedAt          time.Time  `json:"created_at"`
	LastLogin          *time.Time `json:"last_login,omitempty"`
	PasswordChangedAt  *time.Time `json:"password_changed_at,omitempty"`
}

// DailyStats is the per-calendar-day counters record.
type DailyStats struct {
	Date                     string  `json:"date"` // YYYY-MM-DD
	TotalJobs                int64   `json:"total_jobs"`
	CompletedJobs            int64   `json:"completed_jobs"`
	FailedJobs               int64   `json:"failed_jobs"`
	CancelledJobs            int64   `json:"cancelled_jobs"`
	TotalPages               int64   `json:"total_pages"`
	AverageProcessingTimeMs  float64 `json:"average_processing_time_ms"`
	UptimeSeconds            int64   `json:"uptime_seconds"`
	RateLimitedCount         int64   `json:"rate_limited_count"`
	ValidationRejectedCount  int64   `json:"validation_rejected_count"`
}

// DateKey formats t as the YYYY-MM-DD key DailyStats records are bucketed
// under, anchored to UTC so a calendar day has one key regardless of the
// server's local timezone.
func DateKey(t time.Time) string { return t.UTC().Format("2006-01-02") }

// Summary is the aggregated dashboard snapshot returned by the store.
type Summary struct {
	TotalJobs      int64 `json:"total_jobs"`
	PendingJobs    int64 `json:"pending_jobs"`
	PrintingJobs   int64 `json:"printing_jobs"`
	CompletedJobs  int64 `json:"completed_jobs"`
	FailedJobs     int64 `json:"failed_jobs"`
	CancelledJobs  int64 `json:"cancelled_jobs"`
	TotalClients   int64 `json:"total_clients"`
	TotalUsers     int64 `json:"total_users"`
}
