package timers

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"timetrack-backend/pkg/apperr"
	"timetrack-backend/pkg/database"
	"timetrack-backend/pkg/models"
	"timetrack-backend/pkg/notify"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type event struct {
	userID, name string
}

type recorder struct {
	mu     sync.Mutex
	events []event
}

func (r *recorder) BroadcastToUser(_ context.Context, userID, name string, _ interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event{userID, name})
}

func (r *recorder) names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	for i, e := range r.events {
		out[i] = e.name
	}
	return out
}

// failingHistory makes every snapshot write fail.
type failingHistory struct {
	*database.SQLDatabase
}

func (failingHistory) CreateTimerHistory(context.Context, *models.TimerHistory) error {
	return errors.New("disk full")
}

type fixture struct {
	db    *database.SQLDatabase
	clk   *clock
	rec   *recorder
	svc   *Service
	store Store
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	db, err := database.NewSQLiteDatabase(ctx, filepath.Join(t.TempDir(), "timers.db"), zerolog.Nop())
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	f := &fixture{db: db, clk: &clock{now: t0}, rec: &recorder{}, store: db}
	f.svc = NewService(db, f.rec, zerolog.Nop(), WithClock(f.clk.Now))
	return f
}

func (f *fixture) history(t *testing.T, timerID string) []models.TimerHistory {
	t.Helper()
	h, err := f.db.ListTimerHistory(context.Background(), timerID)
	if err != nil {
		t.Fatalf("ListTimerHistory: %v", err)
	}
	return h
}

func TestStartStopDuration(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tm, err := f.svc.Start(ctx, "alice", models.StartTimerRequest{Task: "design"})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	f.clk.Advance(125 * time.Second)

	stopped, err := f.svc.Stop(ctx, tm.ID)
	if err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if stopped.Duration == nil || *stopped.Duration != 125 {
		t.Fatalf("duration = %v, want 125", stopped.Duration)
	}
	if got := *stopped.ActiveDuration(); got != 125 {
		t.Fatalf("activeDuration = %d, want 125", got)
	}
	if stopped.IsActive {
		t.Fatal("stopped timer still active")
	}

	h := f.history(t, tm.ID)
	if len(h) != 1 || h[0].Action != ActionStop || !h[0].IsActive || h[0].Duration != nil {
		t.Fatalf("want one pre-stop snapshot, got %+v", h)
	}

	want := []string{notify.EventTimerStarted, notify.EventTimerStopped}
	if got := f.rec.names(); len(got) != 2 || got[0] != want[0] || got[1] != want[1] {
		t.Fatalf("events = %v, want %v", got, want)
	}
}

func TestPauseResumeRoundTrip(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tm, err := f.svc.Start(ctx, "alice", models.StartTimerRequest{Task: "t"})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	steps := []struct {
		advance time.Duration
		op      func(context.Context, string) (*models.Timer, error)
	}{
		{10 * time.Second, f.svc.Pause},
		{30 * time.Second, f.svc.Resume},
		{10 * time.Second, f.svc.Pause},
		{15 * time.Second, f.svc.Resume},
		{35 * time.Second, f.svc.Stop},
	}
	var last *models.Timer
	for i, step := range steps {
		f.clk.Advance(step.advance)
		if last, err = step.op(ctx, tm.ID); err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
	}

	if last.TotalPausedTime != 45 {
		t.Errorf("totalPausedTime = %d, want 45", last.TotalPausedTime)
	}
	if *last.Duration != 100 {
		t.Errorf("duration = %d, want 100", *last.Duration)
	}
	if *last.ActiveDuration() != 55 {
		t.Errorf("activeDuration = %d, want 55", *last.ActiveDuration())
	}
	events := f.rec.names()
	if len(events) != 6 || events[1] != notify.EventTimerPaused || events[2] != notify.EventTimerResumed {
		t.Errorf("events = %v", events)
	}
}

func TestStartConflictCarriesActiveTimer(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.svc.Start(ctx, "alice", models.StartTimerRequest{Task: "a"})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	_, err = f.svc.Start(ctx, "alice", models.StartTimerRequest{Task: "b"})
	var appErr *apperr.Error
	if !errors.As(err, &appErr) || appErr.Kind != apperr.KindConflict {
		t.Fatalf("err = %v, want Conflict", err)
	}
	view, ok := appErr.Data["timer"].(models.TimerView)
	if !ok || view.ID != first.ID {
		t.Fatalf("conflict data = %#v, want timer %s", appErr.Data, first.ID)
	}
}

func TestStartRequiresTask(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Start(context.Background(), "alice", models.StartTimerRequest{Task: "   "})
	if !apperr.Is(err, apperr.KindBadRequest) {
		t.Fatalf("err = %v, want BadRequest", err)
	}
}

func TestConcurrentStarts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	const n = 10
	var wg sync.WaitGroup
	results := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.Start(ctx, "alice", models.StartTimerRequest{Task: "race"})
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	started := 0
	for err := range results {
		switch {
		case err == nil:
			started++
		case apperr.Is(err, apperr.KindConflict):
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if started != 1 {
		t.Fatalf("%d timers started, want exactly 1", started)
	}
}

func TestInvalidTransitions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tm, err := f.svc.Start(ctx, "alice", models.StartTimerRequest{Task: "t"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.svc.Resume(ctx, tm.ID); !apperr.Is(err, apperr.KindNotFound) {
		t.Errorf("resume running: %v", err)
	}
	if _, err := f.svc.Stop(ctx, tm.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := f.svc.Pause(ctx, tm.ID); !apperr.Is(err, apperr.KindNotFound) {
		t.Errorf("pause stopped: %v", err)
	}
	if _, err := f.svc.Stop(ctx, tm.ID); !apperr.Is(err, apperr.KindNotFound) {
		t.Errorf("stop stopped: %v", err)
	}
	if len(f.history(t, tm.ID)) != 1 {
		t.Error("rejected stop wrote history")
	}
	if _, err := f.svc.Pause(ctx, "missing"); !apperr.Is(err, apperr.KindNotFound) {
		t.Errorf("pause missing: %v", err)
	}
}

func TestResumeCorruptTimerIsInternal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tm := &models.Timer{UserID: "alice", Task: "t", StartTime: t0, IsActive: true, IsPaused: true}
	if err := f.db.CreateTimer(ctx, tm); err != nil {
		t.Fatal(err)
	}
	if _, err := f.svc.Resume(ctx, tm.ID); !apperr.Is(err, apperr.KindInternal) {
		t.Fatalf("err = %v, want Internal", err)
	}
}

func TestDeleteSnapshotsFirst(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tm, err := f.svc.Start(ctx, "alice", models.StartTimerRequest{Task: "t", Note: "keep me"})
	if err != nil {
		t.Fatal(err)
	}
	if err := f.svc.Delete(ctx, tm.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	h := f.history(t, tm.ID)
	if len(h) != 1 || h[0].Action != ActionDelete || h[0].Note != "keep me" {
		t.Fatalf("history = %+v", h)
	}
	if _, err := f.svc.Get(ctx, tm.ID); !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("Get after delete: %v", err)
	}
}

func TestFailedSnapshotAbortsMutation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tm, err := f.svc.Start(ctx, "alice", models.StartTimerRequest{Task: "t", Note: "original"})
	if err != nil {
		t.Fatal(err)
	}
	broken := NewService(failingHistory{f.db}, notify.Nop{}, zerolog.Nop(), WithClock(f.clk.Now))

	if _, err := broken.UpdateNote(ctx, tm.ID, "changed"); !apperr.Is(err, apperr.KindInternal) {
		t.Fatalf("UpdateNote err = %v, want Internal", err)
	}
	if _, err := broken.Stop(ctx, tm.ID); !apperr.Is(err, apperr.KindInternal) {
		t.Fatalf("Stop err = %v, want Internal", err)
	}
	if err := broken.Delete(ctx, tm.ID); !apperr.Is(err, apperr.KindInternal) {
		t.Fatalf("Delete err = %v, want Internal", err)
	}

	got, err := f.svc.Get(ctx, tm.ID)
	if err != nil {
		t.Fatalf("timer gone after failed delete: %v", err)
	}
	if got.Note != "original" || !got.IsActive {
		t.Fatalf("timer mutated despite failed snapshot: %+v", got)
	}
}

func TestNoteEditsAndFullEdit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tm, err := f.svc.Start(ctx, "alice", models.StartTimerRequest{Task: "t"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.svc.UpdateNote(ctx, tm.ID, "first"); err != nil {
		t.Fatal(err)
	}
	if _, err := f.svc.DeleteNote(ctx, tm.ID); err != nil {
		t.Fatal(err)
	}
	edited, err := f.svc.Edit(ctx, tm.ID, models.EditTimerRequest{Task: "renamed", Client: "Acme", Project: "Site"})
	if err != nil {
		t.Fatal(err)
	}
	if edited.Task != "renamed" || edited.Client != "Acme" || edited.Note != "" {
		t.Fatalf("edited = %+v", edited)
	}
	if h := f.history(t, tm.ID); len(h) != 3 {
		t.Fatalf("history rows = %d, want 3", len(h))
	}
}

func TestListPaginationAndTeamExpansion(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for i := 0; i < 25; i++ {
		tm, err := f.svc.Start(ctx, "alice", models.StartTimerRequest{Task: "t"})
		if err != nil {
			t.Fatal(err)
		}
		f.clk.Advance(time.Minute)
		if _, err := f.svc.Stop(ctx, tm.ID); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := f.svc.Start(ctx, "bob", models.StartTimerRequest{Task: "bob's"}); err != nil {
		t.Fatal(err)
	}

	q := ListQuery{Page: 2, Limit: 10, SortBy: "startTime", Desc: true}
	page, err := f.svc.List(ctx, "alice", false, q)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(page.Timers) != 10 || page.TotalPages != 3 || page.CurrentPage != 2 || page.Total != 25 {
		t.Fatalf("page = len %d, totalPages %d, currentPage %d, total %d",
			len(page.Timers), page.TotalPages, page.CurrentPage, page.Total)
	}

	// alice owns an org with bob as a member.
	org := &models.Organization{Name: "Acme", OwnerID: "alice"}
	if err := f.db.CreateOrganization(ctx, org); err != nil {
		t.Fatal(err)
	}
	if err := f.db.CreateTeamMember(ctx, &models.TeamMember{OrganizationID: org.ID, UserID: "bob",
		Email: "bob@example.com", Role: models.OrgRoleEmployee, Status: models.MemberActive}); err != nil {
		t.Fatal(err)
	}

	page, err = f.svc.List(ctx, "alice", true, ListQuery{Page: 1, Limit: 100, SortBy: "startTime", Desc: true})
	if err != nil {
		t.Fatalf("List expanded: %v", err)
	}
	if page.Total != 26 {
		t.Fatalf("expanded total = %d, want 26", page.Total)
	}

	page, err = f.svc.List(ctx, "bob", true, ListQuery{Page: 1, Limit: 100, SortBy: "startTime", Desc: true})
	if err != nil {
		t.Fatalf("List bob: %v", err)
	}
	if page.Total != 1 {
		t.Fatalf("bob owns no organization, total = %d, want 1", page.Total)
	}
}
