package types

import (
	"encoding/json"
	"time"
)

// Job is the durable unit of work (spec §3, §4.1).
type Job struct {
	ID          string          `json:"id" gorm:"primaryKey"`
	Type        JobType         `json:"type" gorm:"index:idx_job_claim"`
	Status      JobStatus       `json:"status" gorm:"index:idx_job_claim;index"`
	Priority    int             `json:"priority" gorm:"index:idx_job_claim"`
	CreatedAt   time.Time       `json:"created_at" gorm:"index:idx_job_claim"`
	StartedAt   *time.Time      `json:"started_at,omitempty"`
	FinishedAt  *time.Time      `json:"finished_at,omitempty"`
	Attempts    int             `json:"attempts"`
	MaxAttempts int             `json:"max_attempts"`
	LastError   string          `json:"last_error,omitempty"`
	// ReadyAt gates claiming during a retry backoff window (spec §4.1
	// "next attempt is gated in time"); nil means immediately claimable.
	ReadyAt     *time.Time      `json:"ready_at,omitempty"`
	ProgressCurrent int         `json:"progress_current"`
	ProgressTotal   int         `json:"progress_total"`
	DesignID    *string         `json:"design_id,omitempty" gorm:"index"`
	ChannelID   *string         `json:"channel_id,omitempty"`
	PayloadJSON json.RawMessage `json:"payload,omitempty" gorm:"type:text"`
	ResultJSON  json.RawMessage `json:"result,omitempty" gorm:"type:text"`
	DisplayName string          `json:"display_name,omitempty"`
}

// JobProgress is the nested progress sub-object kept inside Job.PayloadJSON
// (spec §4.1 update_progress; SPEC_FULL.md §C).
type JobProgress struct {
	CurrentFile      string `json:"current_file,omitempty"`
	CurrentFileBytes int64  `json:"current_file_bytes,omitempty"`
	CurrentFileTotal int64  `json:"current_file_total,omitempty"`
}

// JobPayload is the generic envelope workers decode PayloadJSON into before
// pulling out their job-specific fields; Progress is maintained by the
// queue/worker runtime, not by job-specific code.
type JobPayload struct {
	Progress *JobProgress `json:"progress,omitempty"`
	Extra    map[string]json.RawMessage `json:"-"`
}

// MaxErrorLen truncates last_error to the ~500 char bound from spec §7.
const MaxErrorLen = 500

// TruncateError truncates an error message to MaxErrorLen runes.
func TruncateError(msg string) string {
	r := []rune(msg)
	if len(r) <= MaxErrorLen {
		return msg
	}
	return string(r[:MaxErrorLen])
}

// DiscoveredChannel is an upstream source referenced by content but not yet
// monitored (spec §3, §4.11).
type DiscoveredChannel struct {
	ID             string    `json:"id" gorm:"primaryKey"`
	PeerID         string    `json:"peer_id,omitempty" gorm:"index"`
	Username       string    `json:"username,omitempty" gorm:"index"`
	InviteHash     string    `json:"invite_hash,omitempty" gorm:"index"`
	Title          string    `json:"title,omitempty"`
	ReferenceCount int       `json:"reference_count" gorm:"default:1"`
	SourceTypes    string    `json:"source_types"` // comma-joined DiscoverySourceType set
	FirstSeenAt    time.Time `json:"first_seen_at"`
	LastSeenAt     time.Time `json:"last_seen_at"`
}

// DuplicateCandidate is a (design_a, design_b) pair plus the strongest
// matching signal (spec §3, §4.8). design_a is always the newer design.
type DuplicateCandidate struct {
	ID         string              `json:"id" gorm:"primaryKey"`
	DesignAID  string              `json:"design_a_id" gorm:"index"`
	DesignBID  string              `json:"design_b_id" gorm:"index"`
	MatchType  DuplicateMatchType  `json:"match_type"`
	Confidence float64             `json:"confidence"`
	Status     DuplicateStatus     `json:"status" gorm:"default:PENDING"`
	CreatedAt  time.Time           `json:"created_at"`
}
