package models

import "time"

// ScanTrigger records what started an orchestrator run
type ScanTrigger string

const (
	TriggerScheduled ScanTrigger = "scheduled"
	TriggerManual    ScanTrigger = "manual"
	TriggerCLI       ScanTrigger = "cli"
)

// ScanResult is the audit record written once per orchestrator run
type ScanResult struct {
	ID             int         `json:"id" db:"id"`
	RunID          string      `json:"run_id" db:"run_id"`
	Timestamp      time.Time   `json:"timestamp" db:"timestamp"`
	PostsScanned   int         `json:"posts_scanned" db:"posts_scanned"`
	NewPosts       int         `json:"new_posts" db:"new_posts"`
	IssuesFound    int         `json:"issues_found" db:"issues_found"`
	ScanDurationMS int64       `json:"scan_duration_ms" db:"scan_duration_ms"`
	Success        bool        `json:"success" db:"success"`
	ErrorMessage   string      `json:"error_message,omitempty" db:"error_message"`
	Trigger        ScanTrigger `json:"trigger" db:"trigger_source"`
	CreatedAt      time.Time   `json:"created_at" db:"created_at"`
}
