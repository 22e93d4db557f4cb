package domain

import (
	"errors"
	"fmt"
	"strings"
)

// EntityType is the kind of entity a sync event or push operation targets.
type EntityType string

const (
	EntityBookmark EntityType = "bookmark"
	EntityFolder   EntityType = "folder"
)

// ParseEntityType maps the wire value to an EntityType, ignoring case and
// surrounding space. Empty defaults to bookmark.
func ParseEntityType(s string) (EntityType, error) {
	et := EntityType(strings.ToLower(strings.TrimSpace(s)))
	switch et {
	case "":
		return EntityBookmark, nil
	case EntityBookmark, EntityFolder:
		return et, nil
	}
	return "", fmt.Errorf("unsupported entity type %q", s)
}

// Action is the mutation recorded by a sync event.
type Action string

const (
	ActionCreate  Action = "create"
	ActionUpdate  Action = "update"
	ActionDelete  Action = "delete"
	ActionRestore Action = "restore"
	ActionPurge   Action = "purge"
)

// Valid reports whether a is one of the known actions.
func (a Action) Valid() bool {
	switch a {
	case ActionCreate, ActionUpdate, ActionDelete, ActionRestore, ActionPurge:
		return true
	}
	return false
}

// SyncMode selects a first-sync reconciliation strategy.
type SyncMode string

const (
	ModeReplaceLocalWithServer SyncMode = "replace_local_with_server"
	ModeReplaceServerWithLocal SyncMode = "replace_server_with_local"
	ModeTwoWayMerge            SyncMode = "two_way_merge"
)

// ErrInvalidMode is returned by ParseSyncMode for unknown modes.
var ErrInvalidMode = errors.New("invalid mode")

// ParseSyncMode maps the wire value to a SyncMode. Empty defaults to
// replace_local_with_server.
func ParseSyncMode(s string) (SyncMode, error) {
	switch SyncMode(s) {
	case "":
		return ModeReplaceLocalWithServer, nil
	case ModeReplaceLocalWithServer, ModeReplaceServerWithLocal, ModeTwoWayMerge:
		return SyncMode(s), nil
	}
	return "", ErrInvalidMode
}

// ConfirmPhrase is the exact text a user must type to run the mode.
func (m SyncMode) ConfirmPhrase() string {
	switch m {
	case ModeReplaceServerWithLocal:
		return "DELETE ALL SERVER BOOKMARKS"
	case ModeTwoWayMerge:
		return "SYNC BOOKMARKS BOTH WAYS"
	default:
		return "DELETE ALL LOCAL BOOKMARKS"
	}
}

// Warning describes the consequences of the mode to the user.
func (m SyncMode) Warning() string {
	switch m {
	case ModeReplaceServerWithLocal:
		return "This will permanently replace all server bookmarks with this browser's bookmarks."
	case ModeTwoWayMerge:
		return "This will merge browser and server bookmarks. Missing bookmarks will be added on both sides."
	default:
		return "This will permanently replace all local browser bookmarks with server bookmarks."
	}
}

// JobKind identifies a background job type.
type JobKind string

const (
	JobImport     JobKind = "import"
	JobDeadLink   JobKind = "dead_link"
	JobEnrichment JobKind = "enrichment"
)

// JobStatus is the persisted lifecycle state of a job.
type JobStatus string

const (
	JobPending JobStatus = "pending"
	JobRunning JobStatus = "running"
	JobDone    JobStatus = "done"
	JobFailed  JobStatus = "failed"
	JobStopped JobStatus = "stopped"
)

// Terminal reports whether no further transition is possible.
func (s JobStatus) Terminal() bool {
	return s == JobDone || s == JobFailed || s == JobStopped
}

// Active reports whether the job may still be stopped.
func (s JobStatus) Active() bool {
	return s == JobPending || s == JobRunning
}

// Link classification results.
const (
	LinkAlive       = "alive"
	LinkNotFound    = "not_found"
	LinkTimeout     = "timeout"
	LinkDNSError    = "dns_error"
	LinkUnreachable = "unreachable"
	LinkServerError = "server_error"
	LinkNotApplic   = "N/A"
)

// IsProblematic reports whether a link status counts as a dead or failing link.
func IsProblematic(status string) bool {
	switch status {
	case LinkNotFound, "404", LinkDNSError, LinkUnreachable, LinkServerError, LinkTimeout:
		return true
	}
	return false
}

// IsTransient reports whether a failed fetch with this status is worth retrying.
func IsTransient(status string) bool {
	switch status {
	case LinkTimeout, LinkUnreachable, LinkServerError:
		return true
	}
	return false
}
