package jobs

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"expensetracker/internal/export"
	"expensetracker/internal/log"
)

var ErrInvalidExpiry = errors.New("share link expiry must be in the future")

// Request describes an export to run in the background.
type Request struct {
	Method      Method         `json:"method"`
	Destination string         `json:"destination,omitempty"`
	Template    string         `json:"template,omitempty"`
	Options     export.Options `json:"options"`
	// ExpiresAt applies to share links only.
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
}

// Service accepts export requests and serves share links. It is constructed
// once by the application root and passed to the handlers that need it.
type Service struct {
	store  Store
	source Source
	queue  Queue
	hub    *Hub

	Clock    func() time.Time
	NewID    func() string
	NewToken func() string
}

func NewService(store Store, source Source, queue Queue, hub *Hub) *Service {
	return &Service{
		store:    store,
		source:   source,
		queue:    queue,
		hub:      hub,
		Clock:    time.Now,
		NewID:    uuid.NewString,
		NewToken: func() string { return strings.ReplaceAll(uuid.NewString(), "-", "") },
	}
}

func (s *Service) validate(req *Request) error {
	m, err := ParseMethod(string(req.Method))
	if err != nil {
		return err
	}
	req.Method = m
	f, err := export.ParseFormat(string(req.Options.Format))
	if err != nil {
		return err
	}
	req.Options.Format = f
	if req.Template != "" {
		if _, err := export.LookupTemplate(req.Template); err != nil {
			return err
		}
	}
	if req.ExpiresAt != nil && !req.ExpiresAt.After(s.Clock()) {
		return ErrInvalidExpiry
	}
	return nil
}

// Submit records a pending job and queues it. Share links are completed
// before Submit returns. When the queue rejects the job it is marked failed
// and returned together with the error.
func (s *Service) Submit(ctx context.Context, req Request) (Job, error) {
	if err := s.validate(&req); err != nil {
		return Job{}, err
	}

	now := s.Clock()
	summary := export.Summary(s.source.List(ctx), req.Options)
	j := Job{
		ID:          s.NewID(),
		Method:      req.Method,
		Destination: req.Destination,
		Template:    req.Template,
		Options:     req.Options,
		Status:      StatusPending,
		RecordCount: summary.RecordCount,
		TotalAmount: summary.TotalAmount,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if req.Method == MethodShareLink {
		j.ShareToken = s.NewToken()
		j.ExpiresAt = req.ExpiresAt
	}

	if err := s.store.CreateJob(ctx, j); err != nil {
		return Job{}, fmt.Errorf("create job: %w", err)
	}
	logger(ctx).InfoContext(ctx, "Export job submitted",
		log.FieldOperation, log.OpExport,
		log.FieldJobID, j.ID,
		"method", j.Method,
		log.FieldFormat, j.Options.Format,
		"record_count", j.RecordCount)
	s.hub.Publish(Event{JobID: j.ID, Method: j.Method, Status: j.Status, At: now})

	if req.Method == MethodShareLink {
		return s.completeShareLink(ctx, j)
	}

	if s.queue == nil {
		return s.fail(ctx, j, errors.New("export queue not available"))
	}
	if err := s.queue.Enqueue(ctx, j.ID); err != nil {
		return s.fail(ctx, j, err)
	}
	return j, nil
}

func (s *Service) completeShareLink(ctx context.Context, j Job) (Job, error) {
	j, err := transition(ctx, s.store, s.hub, j, StatusProcessing, Update{}, s.Clock())
	if err != nil {
		return j, err
	}
	return transition(ctx, s.store, s.hub, j, StatusCompleted, Update{Artifact: "shared/" + j.ShareToken}, s.Clock())
}

func (s *Service) fail(ctx context.Context, j Job, cause error) (Job, error) {
	logger(ctx).ErrorContext(ctx, "Failed to enqueue export job", log.FieldJobID, j.ID, log.FieldError, cause)
	failed, err := transition(ctx, s.store, s.hub, j, StatusFailed, Update{Error: cause.Error()}, s.Clock())
	if err != nil {
		return j, errors.Join(cause, err)
	}
	return failed, fmt.Errorf("enqueue export job: %w", cause)
}

func (s *Service) Get(ctx context.Context, id string) (Job, error) {
	return s.store.GetJob(ctx, id)
}

// List returns the export history, newest first.
func (s *Service) List(ctx context.Context, limit int) ([]Job, error) {
	return s.store.ListJobs(ctx, limit)
}

// Shared renders the export behind a share token from the current data and
// counts the view.
func (s *Service) Shared(ctx context.Context, token string) (Job, export.Payload, error) {
	j, err := s.ShareLink(ctx, token)
	if err != nil {
		return j, export.Payload{}, err
	}
	now := s.Clock()
	payload, err := render(j, s.source.List(ctx), now)
	if err != nil {
		return j, export.Payload{}, fmt.Errorf("render shared export: %w", err)
	}
	j, err = s.store.IncrementViews(ctx, j.ID, now)
	if err != nil {
		return j, export.Payload{}, fmt.Errorf("count view: %w", err)
	}
	return j, payload, nil
}

// ShareLink returns the completed share-link job behind token without
// counting a view. An expired link is returned with ErrExpired.
func (s *Service) ShareLink(ctx context.Context, token string) (Job, error) {
	j, err := s.store.GetJobByShareToken(ctx, token)
	if err != nil {
		return Job{}, err
	}
	if j.Status != StatusCompleted {
		return Job{}, ErrNotFound
	}
	if j.Expired(s.Clock()) {
		return j, ErrExpired
	}
	return j, nil
}

// Subscribe registers fn for every status change made through this service
// or a Runner sharing its hub.
func (s *Service) Subscribe(fn func(Event)) {
	s.hub.Subscribe(fn)
}
