package jobs

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"expensetracker/internal/core"
	"expensetracker/internal/export"
	"expensetracker/internal/sheets/memory"
)

type fakeSource struct{ expenses []core.Expense }

func (f fakeSource) List(context.Context) []core.Expense { return f.expenses }

type recordingDest struct {
	mu    sync.Mutex
	got   []Delivery
	err   error
	calls int
}

func (d *recordingDest) Deliver(_ context.Context, in Delivery) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls++
	if d.err != nil {
		return "", d.err
	}
	d.got = append(d.got, in)
	return "dest:" + in.Payload.Filename, nil
}

type fixedClock struct{ t time.Time }

func (c *fixedClock) Now() time.Time { return c.t }

func testSource() fakeSource {
	return fakeSource{expenses: []core.Expense{
		{ID: "a", Date: core.NewDate(2025, 1, 5), Amount: core.Money{Cents: 4599}, Category: core.Food, Description: "Groceries"},
		{ID: "b", Date: core.NewDate(2025, 1, 20), Amount: core.Money{Cents: 1250}, Category: core.Transportation, Description: "Bus"},
		{ID: "c", Date: core.NewDate(2025, 2, 1), Amount: core.Money{Cents: 10000}, Category: core.Bills, Description: "Internet"},
	}}
}

type harness struct {
	store  *MemoryStore
	hub    *Hub
	clock  *fixedClock
	svc    *Service
	runner *Runner
	dest   *recordingDest

	mu     sync.Mutex
	events []Event
	queued []string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		store: NewMemoryStore(),
		hub:   NewHub(),
		clock: &fixedClock{t: time.Date(2025, 2, 10, 12, 0, 0, 0, time.UTC)},
		dest:  &recordingDest{},
	}
	h.hub.Subscribe(func(e Event) {
		h.mu.Lock()
		defer h.mu.Unlock()
		h.events = append(h.events, e)
	})
	src := testSource()
	h.runner = NewRunner(h.store, src, h.hub, map[string]Destination{DestinationFile: h.dest})
	h.runner.Clock = h.clock.Now
	queue := QueueFunc(func(_ context.Context, id string) error {
		h.queued = append(h.queued, id)
		return nil
	})
	h.svc = NewService(h.store, src, queue, h.hub)
	h.svc.Clock = h.clock.Now
	n := 0
	h.svc.NewID = func() string { n++; return "job-" + string(rune('0'+n)) }
	h.svc.NewToken = func() string { return "tok" }
	return h
}

func (h *harness) statuses() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	var s []string
	for _, e := range h.events {
		s = append(s, string(e.Status))
	}
	return strings.Join(s, ",")
}

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to Status
		ok       bool
	}{
		{StatusPending, StatusProcessing, true},
		{StatusPending, StatusFailed, true},
		{StatusPending, StatusCompleted, false},
		{StatusProcessing, StatusCompleted, true},
		{StatusProcessing, StatusFailed, true},
		{StatusProcessing, StatusPending, false},
		{StatusCompleted, StatusFailed, false},
		{StatusFailed, StatusProcessing, false},
	}
	for _, tc := range cases {
		if got := CanTransition(tc.from, tc.to); got != tc.ok {
			t.Fatalf("%s -> %s = %v, want %v", tc.from, tc.to, got, tc.ok)
		}
	}

	j := Job{Status: StatusCompleted}
	if err := j.Apply(StatusProcessing, Update{}, time.Now()); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
}

func TestSubmitAndRun(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	start, end := core.NewDate(2025, 1, 1), core.NewDate(2025, 1, 31)

	j, err := h.svc.Submit(ctx, Request{
		Method:  MethodDownload,
		Options: export.Options{Format: "JSON", DateRange: export.DateRange{Start: &start, End: &end}},
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if j.Status != StatusPending || j.RecordCount != 2 || j.TotalAmount.Cents != 5849 {
		t.Fatalf("unexpected submitted job %+v", j)
	}
	if j.Options.Format != export.JSON {
		t.Fatalf("format should be normalised, got %q", j.Options.Format)
	}
	if len(h.queued) != 1 || h.queued[0] != j.ID {
		t.Fatalf("job was not queued: %v", h.queued)
	}

	h.clock.t = h.clock.t.Add(time.Minute)
	if err := h.runner.Run(ctx, j.ID); err != nil {
		t.Fatalf("run: %v", err)
	}
	got, _ := h.svc.Get(ctx, j.ID)
	if got.Status != StatusCompleted || got.Artifact != "dest:expenses-2025-02-10.json" {
		t.Fatalf("unexpected finished job %+v", got)
	}
	if !got.UpdatedAt.Equal(h.clock.t) || got.CreatedAt.Equal(got.UpdatedAt) {
		t.Fatalf("timestamps not maintained: %+v", got)
	}
	if h.statuses() != "pending,processing,completed" {
		t.Fatalf("events = %s", h.statuses())
	}
	if len(h.dest.got[0].Expenses) != 2 {
		t.Fatalf("destination should receive the working set")
	}

	// a redelivered message is a no-op
	if err := h.runner.Run(ctx, j.ID); err != nil || h.dest.calls != 1 {
		t.Fatalf("rerun should be skipped: err=%v calls=%d", err, h.dest.calls)
	}
}

// racingStore lets a rival runner claim the job between another runner's
// read and its claim.
type racingStore struct {
	*MemoryStore
	once  sync.Once
	rival func()
}

func (s *racingStore) ClaimJob(ctx context.Context, seen Job, at time.Time) (Job, error) {
	s.once.Do(s.rival)
	return s.MemoryStore.ClaimJob(ctx, seen, at)
}

func TestRunLosesClaim(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	j, err := h.svc.Submit(ctx, Request{Method: MethodDownload, Options: export.Options{Format: "CSV"}})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	store := &racingStore{MemoryStore: h.store}
	store.rival = func() {
		if err := h.runner.Run(ctx, j.ID); err != nil {
			t.Errorf("rival run: %v", err)
		}
	}
	late := NewRunner(store, testSource(), h.hub, map[string]Destination{DestinationFile: h.dest})
	late.Clock = h.clock.Now

	if err := late.Run(ctx, j.ID); err != nil {
		t.Fatalf("run: %v", err)
	}
	if h.dest.calls != 1 {
		t.Fatalf("job delivered %d times, want 1", h.dest.calls)
	}
	if h.statuses() != "pending,processing,completed" {
		t.Fatalf("events = %s", h.statuses())
	}
}

func TestConcurrentRunsDeliverOnce(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	j, err := h.svc.Submit(ctx, Request{Method: MethodDownload, Options: export.Options{Format: "CSV"}})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := h.runner.Run(ctx, j.ID); err != nil {
				t.Errorf("run: %v", err)
			}
		}()
	}
	wg.Wait()

	if h.dest.calls != 1 {
		t.Fatalf("job delivered %d times, want 1", h.dest.calls)
	}
	got, _ := h.store.GetJob(ctx, j.ID)
	if got.Status != StatusCompleted {
		t.Fatalf("status = %s, want completed", got.Status)
	}
}

func TestRunSkipsActiveProcessing(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	at := h.clock.t.Add(-10 * time.Second)
	if err := h.store.CreateJob(ctx, Job{ID: "p", Method: MethodDownload, Status: StatusProcessing,
		Options: export.Options{Format: export.CSV}, CreatedAt: at, UpdatedAt: at}); err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := h.runner.Run(ctx, "p"); err != nil {
		t.Fatalf("run: %v", err)
	}
	if h.dest.calls != 0 {
		t.Fatalf("a job processed elsewhere must not be delivered, calls=%d", h.dest.calls)
	}

	h.clock.t = h.clock.t.Add(2 * DefaultStaleAfter)
	if err := h.runner.Run(ctx, "p"); err != nil {
		t.Fatalf("run stale: %v", err)
	}
	got, _ := h.store.GetJob(ctx, "p")
	if h.dest.calls != 1 || got.Status != StatusCompleted {
		t.Fatalf("stale job should be reclaimed: calls=%d status=%s", h.dest.calls, got.Status)
	}
}

func TestMemoryStoreClaimJob(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	seen := Job{ID: "a", Status: StatusPending, CreatedAt: base, UpdatedAt: base}
	if err := s.CreateJob(ctx, seen); err != nil {
		t.Fatalf("create: %v", err)
	}

	at := base.Add(time.Second)
	claimed, err := s.ClaimJob(ctx, seen, at)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if claimed.Status != StatusProcessing || !claimed.UpdatedAt.Equal(at) {
		t.Fatalf("claimed job %+v", claimed)
	}
	if _, err := s.ClaimJob(ctx, seen, at); !errors.Is(err, ErrClaimed) {
		t.Fatalf("second claim from the same read: want ErrClaimed, got %v", err)
	}
	if _, err := s.ClaimJob(ctx, Job{ID: "zz"}, at); !errors.Is(err, ErrNotFound) {
		t.Fatalf("claim missing: want ErrNotFound, got %v", err)
	}

	done, err := s.TransitionJob(ctx, "a", StatusCompleted, Update{}, at)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if _, err := s.ClaimJob(ctx, done, at); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("claim completed job: want ErrInvalidTransition, got %v", err)
	}
}

func TestSubmitValidation(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	past := h.clock.t.Add(-time.Hour)

	cases := []struct {
		name string
		req  Request
		want error
	}{
		{"format", Request{Options: export.Options{Format: "xml"}}, export.ErrUnsupportedFormat},
		{"method", Request{Method: "email"}, ErrInvalidMethod},
		{"template", Request{Template: "nope"}, export.ErrUnknownTemplate},
		{"expiry", Request{Method: MethodShareLink, ExpiresAt: &past}, ErrInvalidExpiry},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := h.svc.Submit(ctx, tc.req); !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
	if jobs, _ := h.svc.List(ctx, 0); len(jobs) != 0 {
		t.Fatalf("rejected requests must not create jobs")
	}
}

func TestSubmitEnqueueFailure(t *testing.T) {
	h := newHarness(t)
	boom := errors.New("broker down")
	h.svc.queue = QueueFunc(func(context.Context, string) error { return boom })

	j, err := h.svc.Submit(context.Background(), Request{})
	if !errors.Is(err, boom) {
		t.Fatalf("expected broker error, got %v", err)
	}
	if j.Status != StatusFailed || j.Error != "broker down" {
		t.Fatalf("job should be failed: %+v", j)
	}
	if h.statuses() != "pending,failed" {
		t.Fatalf("events = %s", h.statuses())
	}
}

func TestRunFailures(t *testing.T) {
	ctx := context.Background()

	t.Run("unknown destination", func(t *testing.T) {
		h := newHarness(t)
		j, _ := h.svc.Submit(ctx, Request{Method: MethodCloudSync})
		if err := h.runner.Run(ctx, j.ID); err != nil {
			t.Fatalf("run: %v", err)
		}
		got, _ := h.svc.Get(ctx, j.ID)
		if got.Status != StatusFailed || !strings.Contains(got.Error, "unknown export destination") {
			t.Fatalf("unexpected job %+v", got)
		}
	})

	t.Run("delivery error", func(t *testing.T) {
		h := newHarness(t)
		h.dest.err = errors.New("disk full")
		j, _ := h.svc.Submit(ctx, Request{})
		if err := h.runner.Run(ctx, j.ID); err != nil {
			t.Fatalf("run: %v", err)
		}
		got, _ := h.svc.Get(ctx, j.ID)
		if got.Status != StatusFailed || !strings.Contains(got.Error, "disk full") {
			t.Fatalf("unexpected job %+v", got)
		}
		if h.statuses() != "pending,processing,failed" {
			t.Fatalf("events = %s", h.statuses())
		}
	})

	t.Run("missing job", func(t *testing.T) {
		h := newHarness(t)
		if err := h.runner.Run(ctx, "ghost"); err != nil {
			t.Fatalf("missing jobs are skipped, got %v", err)
		}
	})
}

func TestTemplateJob(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	j, err := h.svc.Submit(ctx, Request{Template: string(export.BudgetTracker)})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if err := h.runner.Run(ctx, j.ID); err != nil {
		t.Fatalf("run: %v", err)
	}
	d := h.dest.got[0]
	if d.Payload.Filename != "budget-tracker-2025-02-10.json" {
		t.Fatalf("filename = %q", d.Payload.Filename)
	}
	if !strings.Contains(string(d.Payload.Body), `"budgetAmount"`) {
		t.Fatalf("unexpected template body %s", d.Payload.Body)
	}
}

func TestShareLink(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	expires := h.clock.t.Add(24 * time.Hour)

	j, err := h.svc.Submit(ctx, Request{
		Method:    MethodShareLink,
		Options:   export.Options{Format: export.PDF},
		ExpiresAt: &expires,
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if j.Status != StatusCompleted || j.ShareToken != "tok" {
		t.Fatalf("share links complete immediately: %+v", j)
	}
	if len(h.queued) != 0 {
		t.Fatalf("share links are not queued")
	}

	for i := 1; i <= 2; i++ {
		got, p, err := h.svc.Shared(ctx, "tok")
		if err != nil {
			t.Fatalf("shared: %v", err)
		}
		if got.ViewCount != i {
			t.Fatalf("view count = %d, want %d", got.ViewCount, i)
		}
		if !strings.HasPrefix(string(p.Body), "<!DOCTYPE html>") {
			t.Fatalf("expected html payload")
		}
	}

	if link, err := h.svc.ShareLink(ctx, "tok"); err != nil || link.ViewCount != 2 {
		t.Fatalf("ShareLink must not count a view: %+v, %v", link, err)
	}
	if _, _, err := h.svc.Shared(ctx, "other"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	h.clock.t = expires
	if _, _, err := h.svc.Shared(ctx, "tok"); !errors.Is(err, ErrExpired) {
		t.Fatalf("expected ErrExpired, got %v", err)
	}
}

func TestLocalQueue(t *testing.T) {
	h := newHarness(t)
	q := NewLocalQueue(h.runner, 2, 4)
	h.svc.queue = q

	done := make(chan struct{}, 8)
	h.hub.Subscribe(func(e Event) {
		if e.Status.Terminal() {
			done <- struct{}{}
		}
	})

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- q.Start(ctx) }()

	for i := 0; i < 3; i++ {
		if _, err := h.svc.Submit(ctx, Request{}); err != nil {
			t.Fatalf("submit %d: %v", i, err)
		}
	}
	for i := 0; i < 3; i++ {
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Fatalf("timed out waiting for job %d", i)
		}
	}
	cancel()
	if err := <-errc; err != nil {
		t.Fatalf("queue stopped with %v", err)
	}
	jobs, _ := h.store.ListJobs(context.Background(), 0)
	for _, j := range jobs {
		if j.Status != StatusCompleted {
			t.Fatalf("job %s is %s", j.ID, j.Status)
		}
	}
}

func TestLocalQueueFull(t *testing.T) {
	q := NewLocalQueue(nil, 1, 1)
	if err := q.Enqueue(context.Background(), "a"); err != nil {
		t.Fatalf("first enqueue: %v", err)
	}
	if err := q.Enqueue(context.Background(), "b"); !errors.Is(err, ErrQueueFull) {
		t.Fatalf("expected ErrQueueFull, got %v", err)
	}
}

func TestMemoryStoreListOrder(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range []string{"a", "b", "c"} {
		if err := s.CreateJob(ctx, Job{ID: id, Status: StatusPending, CreatedAt: base.Add(time.Duration(i) * time.Minute)}); err != nil {
			t.Fatalf("create: %v", err)
		}
	}
	if err := s.CreateJob(ctx, Job{ID: "a"}); err == nil {
		t.Fatalf("duplicate ids must be rejected")
	}
	jobs, _ := s.ListJobs(ctx, 2)
	if len(jobs) != 2 || jobs[0].ID != "c" || jobs[1].ID != "b" {
		t.Fatalf("expected newest first, got %+v", jobs)
	}
	if _, err := s.TransitionJob(ctx, "zz", StatusFailed, Update{}, base); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestFileDestination(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "exports")
	d := FileDestination{Dir: dir}
	path, err := d.Deliver(context.Background(), Delivery{
		Job:     Job{ID: "j1"},
		Payload: export.Payload{Filename: "expenses.csv", Body: []byte("Date,Amount")},
	})
	if err != nil {
		t.Fatalf("deliver: %v", err)
	}
	if path != filepath.Join(dir, "j1-expenses.csv") {
		t.Fatalf("path = %q", path)
	}
	b, err := os.ReadFile(path)
	if err != nil || string(b) != "Date,Amount" {
		t.Fatalf("file content %q %v", b, err)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Fatalf("temporary file left behind")
	}
}

func TestSheetsDestination(t *testing.T) {
	sheet := memory.New("Expenses")
	d := SheetsDestination{Rows: sheet}
	ref, err := d.Deliver(context.Background(), Delivery{Expenses: testSource().expenses[:2]})
	if err != nil || ref != "Expenses!A2:E3" {
		t.Fatalf("deliver: ref=%q err=%v", ref, err)
	}
	rows := sheet.Rows()
	if len(rows) != 3 || rows[2][3] != "Bus" {
		t.Fatalf("unexpected rows %v", rows)
	}

	if _, err := (SheetsDestination{}).Deliver(context.Background(), Delivery{}); err == nil {
		t.Fatalf("expected error without a sheets client")
	}
}
