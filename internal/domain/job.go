package domain

import "time"

// Job is the persisted record of a background job.
type Job struct {
	ID           int64     `db:"id" json:"id"`
	UserID       int64     `db:"user_id" json:"-"`
	Kind         JobKind   `db:"kind" json:"kind"`
	Status       JobStatus `db:"status" json:"status"`
	Progress     int       `db:"progress" json:"progress"`
	ErrorMessage *string   `db:"error_message" json:"error_message"`
	JobCounters

	CreatedAt  time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time  `db:"updated_at" json:"updated_at"`
	StartedAt  *time.Time `db:"started_at" json:"started_at"`
	FinishedAt *time.Time `db:"finished_at" json:"finished_at"`
}

// JobCounters are the typed per-kind counters. Import uses
// Created/Skipped/Errors/Failed, dead-link uses Checked/Alive/Problematic/Errors,
// enrichment uses Checked/Skipped/Errors.
type JobCounters struct {
	Targets     int `db:"targets" json:"targets"`
	Created     int `db:"created" json:"created"`
	Skipped     int `db:"skipped" json:"skipped"`
	Checked     int `db:"checked" json:"checked"`
	Alive       int `db:"alive" json:"alive"`
	Problematic int `db:"problematic" json:"problematic"`
	Errors      int `db:"errors" json:"errors"`
	Failed      int `db:"failed" json:"failed"`
}

// ImportEntry is one bookmark parsed from an uploaded file.
type ImportEntry struct {
	URL        string
	Title      string
	Notes      string
	Tags       []string
	FolderPath []string
}

// JobRuntime is the live, in-memory view of a running job. It is kept
// outside the durable record so pollers can read it without a query.
type JobRuntime struct {
	JobID          int64      `json:"job_id"`
	Kind           JobKind    `json:"kind"`
	Status         JobStatus  `json:"status"`
	StartedAt      *time.Time `json:"started_at,omitempty"`
	FinishedAt     *time.Time `json:"finished_at,omitempty"`
	ProcessedItems int        `json:"processed_items"`
	TotalItems     int        `json:"total_items"`
	CurrentTitle   *string    `json:"current_title,omitempty"`
	CurrentURL     *string    `json:"current_url,omitempty"`
	StatusMessage  string     `json:"status_message,omitempty"`
}
