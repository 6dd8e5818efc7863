// Package jobs runs exports off the request path.
//
// A job moves pending -> processing -> completed|failed. The only shortcut is
// pending -> failed, used when a job cannot be handed to its queue. Every
// transition is written through a Store and announced on a Hub.
package jobs

import (
	"errors"
	"fmt"
	"time"

	"expensetracker/internal/core"
	"expensetracker/internal/export"
)

type (
	Method string
	Status string
)

const (
	MethodDownload  Method = "download"
	MethodCloudSync Method = "cloud-sync"
	MethodShareLink Method = "share-link"
)

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

var (
	ErrNotFound           = errors.New("export job not found")
	ErrInvalidTransition  = errors.New("invalid status transition")
	ErrInvalidMethod      = errors.New("invalid export method")
	ErrUnknownDestination = errors.New("unknown export destination")
	ErrExpired            = errors.New("share link expired")
	ErrClaimed            = errors.New("export job already claimed")
)

// Job is the persisted record of one export request. RecordCount and
// TotalAmount are captured when the job is submitted.
type Job struct {
	ID          string         `json:"id"`
	Method      Method         `json:"method"`
	Destination string         `json:"destination,omitempty"`
	Template    string         `json:"template,omitempty"`
	Options     export.Options `json:"options"`
	Status      Status         `json:"status"`
	RecordCount int            `json:"recordCount"`
	TotalAmount core.Money     `json:"totalAmount"`
	Artifact    string         `json:"artifact,omitempty"`
	ShareToken  string         `json:"shareToken,omitempty"`
	ExpiresAt   *time.Time     `json:"expiresAt,omitempty"`
	ViewCount   int            `json:"viewCount"`
	Error       string         `json:"error,omitempty"`
	CreatedAt   time.Time      `json:"createdAt"`
	UpdatedAt   time.Time      `json:"updatedAt"`
}

// Update carries the fields a transition may set alongside the new status.
type Update struct {
	Artifact string
	Error    string
}

func ParseMethod(s string) (Method, error) {
	switch m := Method(s); m {
	case MethodDownload, MethodCloudSync, MethodShareLink:
		return m, nil
	case "":
		return MethodDownload, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidMethod, s)
}

// Terminal reports whether no further transition is possible.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// CanTransition reports whether from -> to is allowed.
func CanTransition(from, to Status) bool {
	switch from {
	case StatusPending:
		return to == StatusProcessing || to == StatusFailed
	case StatusProcessing:
		return to == StatusCompleted || to == StatusFailed
	}
	return false
}

// Apply moves j to status to, or returns ErrInvalidTransition.
func (j *Job) Apply(to Status, u Update, at time.Time) error {
	if !CanTransition(j.Status, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, j.Status, to)
	}
	j.Status = to
	if u.Artifact != "" {
		j.Artifact = u.Artifact
	}
	if u.Error != "" {
		j.Error = u.Error
	}
	j.UpdatedAt = at
	return nil
}

// Claim moves j to processing for a runner that last read it as seen. If j
// changed since that read the claim fails with ErrClaimed. A stale
// processing job can be claimed again.
func (j *Job) Claim(seen Job, at time.Time) error {
	if j.Status != seen.Status || !j.UpdatedAt.Equal(seen.UpdatedAt) {
		return ErrClaimed
	}
	if j.Status != StatusPending && j.Status != StatusProcessing {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, j.Status, StatusProcessing)
	}
	j.Status = StatusProcessing
	j.UpdatedAt = at
	return nil
}

// Expired reports whether a share link has passed its expiry at now.
func (j Job) Expired(now time.Time) bool {
	return j.ExpiresAt != nil && !now.Before(*j.ExpiresAt)
}
