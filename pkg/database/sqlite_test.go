package database

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"timetrack-backend/pkg/models"
)

func newTestDB(t *testing.T) *SQLDatabase {
	t.Helper()
	ctx := context.Background()
	db, err := NewSQLiteDatabase(ctx, filepath.Join(t.TempDir(), "test.db"), zerolog.Nop())
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func TestMigrateIsIdempotent(t *testing.T) {
	db := newTestDB(t)
	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("second migrate: %v", err)
	}
}

func TestRebind(t *testing.T) {
	lite := &SQLDatabase{dialect: dialectSQLite}
	pg := &SQLDatabase{dialect: dialectPostgres}
	q := "SELECT * FROM t WHERE a = $1 AND b IN ($2, $10)"
	if got := lite.rebind(q); got != "SELECT * FROM t WHERE a = ?1 AND b IN (?2, ?10)" {
		t.Fatalf("sqlite rebind = %q", got)
	}
	if got := pg.rebind(q); got != q {
		t.Fatalf("postgres rebind changed query: %q", got)
	}
}

func TestUserRoundTrip(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	u := &models.User{Email: " Alice@Example.com ", Name: "Alice", Password: "hash"}
	if err := db.CreateUser(ctx, u); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	got, err := db.GetUserByEmail(ctx, "alice@example.com")
	if err != nil {
		t.Fatalf("GetUserByEmail: %v", err)
	}
	if got.ID != u.ID || got.Role != models.GlobalRoleUser || got.Provider != "email" {
		t.Fatalf("unexpected user: %+v", got)
	}

	if err := db.CreateUser(ctx, &models.User{Email: "alice@example.com"}); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("duplicate email err = %v, want ErrDuplicate", err)
	}
	if _, err := db.GetUserByID(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing user err = %v, want ErrNotFound", err)
	}
}

func TestCreateTimerRejectsSecondActiveTimer(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	first := &models.Timer{UserID: "u1", Task: "a", StartTime: time.Now(), IsActive: true}
	if err := db.CreateTimer(ctx, first); err != nil {
		t.Fatalf("first CreateTimer: %v", err)
	}
	second := &models.Timer{UserID: "u1", Task: "b", StartTime: time.Now(), IsActive: true}
	if err := db.CreateTimer(ctx, second); !errors.Is(err, ErrActiveTimerExists) {
		t.Fatalf("second CreateTimer err = %v, want ErrActiveTimerExists", err)
	}

	// Another user is unaffected.
	other := &models.Timer{UserID: "u2", Task: "c", StartTime: time.Now(), IsActive: true}
	if err := db.CreateTimer(ctx, other); err != nil {
		t.Fatalf("other user CreateTimer: %v", err)
	}

	// Once stopped, a new timer may start.
	first.IsActive = false
	end := time.Now()
	first.EndTime = &end
	if err := db.UpdateTimer(ctx, first); err != nil {
		t.Fatalf("UpdateTimer: %v", err)
	}
	if err := db.CreateTimer(ctx, second); err != nil {
		t.Fatalf("CreateTimer after stop: %v", err)
	}
}

func TestCreateTimerDuplicateIDIsNotActiveConflict(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	end := time.Now()
	d := int64(60)
	stopped := &models.Timer{UserID: "u1", Task: "done", StartTime: end.Add(-time.Minute), EndTime: &end, Duration: &d}
	if err := db.CreateTimer(ctx, stopped); err != nil {
		t.Fatalf("CreateTimer: %v", err)
	}

	clash := &models.Timer{ID: stopped.ID, UserID: "u2", Task: "new", StartTime: time.Now(), IsActive: true}
	err := db.CreateTimer(ctx, clash)
	if errors.Is(err, ErrActiveTimerExists) {
		t.Fatalf("id collision reported as active timer conflict: %v", err)
	}
	if !errors.Is(err, ErrDuplicate) {
		t.Fatalf("err = %v, want ErrDuplicate", err)
	}
}

func TestConcurrentStartsLeaveOneActiveTimer(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	const n = 8
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- db.CreateTimer(ctx, &models.Timer{UserID: "u1", Task: "t", StartTime: time.Now(), IsActive: true})
		}()
	}
	wg.Wait()
	close(errs)

	ok := 0
	for err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, ErrActiveTimerExists):
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if ok != 1 {
		t.Fatalf("%d starts succeeded, want 1", ok)
	}

	_, total, err := db.ListTimers(ctx, TimerFilter{UserIDs: []string{"u1"}, Limit: 10})
	if err != nil {
		t.Fatalf("ListTimers: %v", err)
	}
	if total != 1 {
		t.Fatalf("total = %d, want 1", total)
	}
}

func seedStoppedTimers(t *testing.T, db *SQLDatabase, userID string, n int, base time.Time) {
	t.Helper()
	for i := 0; i < n; i++ {
		start := base.Add(time.Duration(i) * time.Hour)
		end := start.Add(30 * time.Minute)
		d := int64(1800)
		tm := &models.Timer{UserID: userID, Task: "task", StartTime: start, EndTime: &end, Duration: &d}
		if err := db.CreateTimer(context.Background(), tm); err != nil {
			t.Fatalf("seed timer %d: %v", i, err)
		}
	}
}

func TestListTimersPagination(t *testing.T) {
	db := newTestDB(t)
	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	seedStoppedTimers(t, db, "u1", 25, base)

	timers, total, err := db.ListTimers(context.Background(), TimerFilter{
		UserIDs:    []string{"u1"},
		SortColumn: "startTime",
		Desc:       true,
		Limit:      10,
		Offset:     10,
	})
	if err != nil {
		t.Fatalf("ListTimers: %v", err)
	}
	if total != 25 {
		t.Fatalf("total = %d, want 25", total)
	}
	if len(timers) != 10 {
		t.Fatalf("len = %d, want 10", len(timers))
	}
	// Descending: page 2 starts at the 11th newest timer.
	want := base.Add(14 * time.Hour)
	if !timers[0].StartTime.Equal(want) {
		t.Fatalf("first start = %v, want %v", timers[0].StartTime, want)
	}
	for i := 1; i < len(timers); i++ {
		if timers[i].StartTime.After(timers[i-1].StartTime) {
			t.Fatalf("timers not in descending order at %d", i)
		}
	}
}

func TestListTimersDateRange(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	// 48 hourly timers across 2024-03-01 and 2024-03-02.
	seedStoppedTimers(t, db, "u1", 48, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC))

	from := time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 3, 2, 23, 59, 59, int(999*time.Millisecond), time.UTC)
	timers, total, err := db.ListTimers(ctx, TimerFilter{UserIDs: []string{"u1"}, From: &from, To: &to, Limit: 100})
	if err != nil {
		t.Fatalf("ListTimers: %v", err)
	}
	if total != 24 || len(timers) != 24 {
		t.Fatalf("got total=%d len=%d, want 24", total, len(timers))
	}
	for _, tm := range timers {
		if tm.StartTime.Before(from) || tm.StartTime.After(to) {
			t.Fatalf("timer %s outside range: %v", tm.ID, tm.StartTime)
		}
	}
}

func TestListTimersScopesByUser(t *testing.T) {
	db := newTestDB(t)
	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	seedStoppedTimers(t, db, "u1", 3, base)
	seedStoppedTimers(t, db, "u2", 2, base)

	_, total, err := db.ListTimers(context.Background(), TimerFilter{UserIDs: []string{"u2"}, Limit: 10})
	if err != nil {
		t.Fatalf("ListTimers: %v", err)
	}
	if total != 2 {
		t.Fatalf("total = %d, want 2", total)
	}
	_, total, err = db.ListTimers(context.Background(), TimerFilter{UserIDs: []string{"u1", "u2"}, Limit: 10})
	if err != nil {
		t.Fatalf("ListTimers: %v", err)
	}
	if total != 5 {
		t.Fatalf("total = %d, want 5", total)
	}
}

func TestTimerHistoryIsAppendOnly(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	tm := &models.Timer{UserID: "u1", Task: "a", StartTime: time.Now(), IsActive: true}
	if err := db.CreateTimer(ctx, tm); err != nil {
		t.Fatalf("CreateTimer: %v", err)
	}
	h := &models.TimerHistory{TimerID: tm.ID, UserID: tm.UserID, Action: "stop", Task: tm.Task,
		StartTime: tm.StartTime, IsActive: true}
	if err := db.CreateTimerHistory(ctx, h); err != nil {
		t.Fatalf("CreateTimerHistory: %v", err)
	}
	if err := db.DeleteTimer(ctx, tm.ID); err != nil {
		t.Fatalf("DeleteTimer: %v", err)
	}

	history, err := db.ListTimerHistory(ctx, tm.ID)
	if err != nil {
		t.Fatalf("ListTimerHistory: %v", err)
	}
	if len(history) != 1 || history[0].Action != "stop" || !history[0].IsActive {
		t.Fatalf("unexpected history: %+v", history)
	}
	if _, err := db.GetTimer(ctx, tm.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("GetTimer after delete err = %v, want ErrNotFound", err)
	}
}

func TestTeamMembershipLifecycle(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	org := &models.Organization{Name: "Acme", OwnerID: "owner"}
	if err := db.CreateOrganization(ctx, org); err != nil {
		t.Fatalf("CreateOrganization: %v", err)
	}
	m := &models.TeamMember{OrganizationID: org.ID, Email: "Bob@Example.com", Role: models.OrgRoleManager}
	if err := db.CreateTeamMember(ctx, m); err != nil {
		t.Fatalf("CreateTeamMember: %v", err)
	}

	if _, err := db.GetActiveTeamMemberByUserID(ctx, "bob"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("pending member resolved before login: %v", err)
	}
	n, err := db.ActivatePendingMemberships(ctx, "bob", "bob@example.com")
	if err != nil || n != 1 {
		t.Fatalf("ActivatePendingMemberships = %d, %v", n, err)
	}
	got, err := db.GetActiveTeamMemberByUserID(ctx, "bob")
	if err != nil {
		t.Fatalf("GetActiveTeamMemberByUserID: %v", err)
	}
	if got.Status != models.MemberActive || got.Role != models.OrgRoleManager {
		t.Fatalf("unexpected member: %+v", got)
	}

	got.DeleteStatus = models.MemberArchived
	if err := db.UpdateTeamMember(ctx, got); err != nil {
		t.Fatalf("UpdateTeamMember: %v", err)
	}
	if _, err := db.GetActiveTeamMemberByUserID(ctx, "bob"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("archived member still resolves: %v", err)
	}
	members, err := db.ListTeamMembers(ctx, []string{org.ID})
	if err != nil || len(members) != 0 {
		t.Fatalf("ListTeamMembers = %v, %v; want none", members, err)
	}
}

func TestActivatePendingMembershipsJoinsOneOrganization(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	var orgIDs []string
	for _, name := range []string{"Acme", "Globex"} {
		org := &models.Organization{Name: name, OwnerID: "owner-" + name}
		if err := db.CreateOrganization(ctx, org); err != nil {
			t.Fatalf("CreateOrganization: %v", err)
		}
		orgIDs = append(orgIDs, org.ID)
		m := &models.TeamMember{OrganizationID: org.ID, Email: "new@example.com", Role: models.OrgRoleEmployee}
		if err := db.CreateTeamMember(ctx, m); err != nil {
			t.Fatalf("CreateTeamMember: %v", err)
		}
	}

	if _, err := db.GetPendingTeamMemberByEmail(ctx, "NEW@example.com"); err != nil {
		t.Fatalf("GetPendingTeamMemberByEmail: %v", err)
	}

	n, err := db.ActivatePendingMemberships(ctx, "u1", "new@example.com")
	if err != nil || n != 1 {
		t.Fatalf("ActivatePendingMemberships = %d, %v; want 1", n, err)
	}
	members, err := db.ListTeamMembers(ctx, orgIDs)
	if err != nil {
		t.Fatalf("ListTeamMembers: %v", err)
	}
	if len(members) != 1 || members[0].UserID != "u1" || members[0].Status != models.MemberActive {
		t.Fatalf("members = %+v, want a single active membership", members)
	}
	if _, err := db.GetPendingTeamMemberByEmail(ctx, "new@example.com"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("pending invitation left behind: %v", err)
	}

	// A later login activates nothing new.
	if n, err := db.ActivatePendingMemberships(ctx, "u1", "new@example.com"); err != nil || n != 0 {
		t.Fatalf("second activation = %d, %v; want 0", n, err)
	}
}

func TestPermissionRolesRoundTrip(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	p := &models.Permission{Name: "READ_TIMER_OTHERS", Roles: []models.OrgRole{models.OrgRoleManager, models.OrgRoleAdmin}}
	if err := db.CreatePermission(ctx, p); err != nil {
		t.Fatalf("CreatePermission: %v", err)
	}
	p.Roles = []models.OrgRole{models.OrgRoleAdmin}
	if err := db.UpdatePermission(ctx, p); err != nil {
		t.Fatalf("UpdatePermission: %v", err)
	}
	got, err := db.GetPermissionByName(ctx, "READ_TIMER_OTHERS")
	if err != nil {
		t.Fatalf("GetPermissionByName: %v", err)
	}
	if len(got.Roles) != 1 || got.Roles[0] != models.OrgRoleAdmin {
		t.Fatalf("roles = %v", got.Roles)
	}
}

func TestLatestOtp(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	for _, hash := range []string{"old", "new"} {
		o := &models.Otp{UserID: "u1", Purpose: models.OtpPurposeVerifyEmail, CodeHash: hash,
			ExpiresAt: time.Now().Add(time.Minute)}
		if err := db.CreateOtp(ctx, o); err != nil {
			t.Fatalf("CreateOtp: %v", err)
		}
		time.Sleep(2 * time.Millisecond)
	}
	got, err := db.GetLatestOtp(ctx, "u1", models.OtpPurposeVerifyEmail)
	if err != nil {
		t.Fatalf("GetLatestOtp: %v", err)
	}
	if got.CodeHash != "new" {
		t.Fatalf("latest code = %q, want new", got.CodeHash)
	}
}
