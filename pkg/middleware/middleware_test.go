package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"timetrack-backend/pkg/apperr"
	"timetrack-backend/pkg/config"
	"timetrack-backend/pkg/database"
	"timetrack-backend/pkg/models"
	"timetrack-backend/pkg/permissions"
	"timetrack-backend/pkg/utils"
)

var testCfg = &config.Config{Environment: "test", AllowedOrigins: []string{"https://app.example.com", "http://localhost:*"}}

type memberStore struct {
	members map[string]models.OrgRole
	perms   map[models.PermissionName][]models.OrgRole
}

func (s *memberStore) GetActiveTeamMemberByUserID(_ context.Context, userID string) (*models.TeamMember, error) {
	role, ok := s.members[userID]
	if !ok {
		return nil, database.ErrNotFound
	}
	return &models.TeamMember{UserID: userID, Role: role, Status: models.MemberActive}, nil
}

func (s *memberStore) GetPermissionByName(_ context.Context, name models.PermissionName) (*models.Permission, error) {
	roles, ok := s.perms[name]
	if !ok {
		return nil, database.ErrNotFound
	}
	return &models.Permission{Name: name, Roles: roles}, nil
}

func ok(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return body
}

func TestAuthMiddleware(t *testing.T) {
	jwtSvc := utils.NewJWTService("secret", time.Minute, time.Hour)
	pair, err := jwtSvc.GenerateTokenPair(&models.User{ID: "u1", Email: "a@b.c", Role: models.GlobalRoleUser})
	if err != nil {
		t.Fatalf("tokens: %v", err)
	}

	var seen permissions.Identity
	h := AuthMiddleware(testCfg, jwtSvc)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = GetIdentity(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	tests := []struct {
		name    string
		header  string
		query   string
		upgrade bool
		want    int
	}{
		{name: "missing header", want: http.StatusUnauthorized},
		{name: "not bearer", header: "Token " + pair.AccessToken, want: http.StatusUnauthorized},
		{name: "refresh token", header: "Bearer " + pair.RefreshToken, want: http.StatusUnauthorized},
		{name: "garbage", header: "Bearer abc.def.ghi", want: http.StatusUnauthorized},
		{name: "access token", header: "Bearer " + pair.AccessToken, want: http.StatusNoContent},
		{name: "query token without upgrade", query: pair.AccessToken, want: http.StatusUnauthorized},
		{name: "query token on upgrade", query: pair.AccessToken, upgrade: true, want: http.StatusNoContent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seen = permissions.Identity{}
			target := "/x"
			if tt.query != "" {
				target += "?token=" + tt.query
			}
			req := httptest.NewRequest(http.MethodGet, target, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			if tt.upgrade {
				req.Header.Set("Upgrade", "websocket")
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			if rec.Code != tt.want {
				t.Fatalf("status = %d, want %d", rec.Code, tt.want)
			}
			if tt.want == http.StatusNoContent && seen.UserID != "u1" {
				t.Fatalf("identity = %+v", seen)
			}
			if tt.want == http.StatusUnauthorized {
				if body := decodeBody(t, rec); body["success"] != false || body["error"] != "UNAUTHORIZED" {
					t.Fatalf("body = %v", body)
				}
			}
		})
	}
}

func TestRequireOwnership(t *testing.T) {
	store := &memberStore{
		members: map[string]models.OrgRole{"alice": models.OrgRoleEmployee, "bob": models.OrgRoleManager},
		perms: map[models.PermissionName][]models.OrgRole{
			"UPDATE_TIMER":        {models.OrgRoleEmployee, models.OrgRoleManager},
			"UPDATE_TIMER_OTHERS": {models.OrgRoleManager},
		},
	}
	gate := NewGate(testCfg, permissions.NewResolver(store))
	owners := map[string]string{"t-alice": "alice", "t-bob": "bob"}
	lookup := func(_ context.Context, id string) (string, error) {
		owner, ok := owners[id]
		if !ok {
			return "", apperr.NotFound("timer not found")
		}
		return owner, nil
	}

	r := chi.NewRouter()
	r.With(gate.RequireOwnership(permissions.UpdateTimer, "timerId", lookup)).Put("/timers/{timerId}", ok)

	tests := []struct {
		name  string
		id    permissions.Identity
		timer string
		want  int
	}{
		{"employee on own timer", permissions.Identity{UserID: "alice", Role: models.GlobalRoleUser}, "t-alice", http.StatusNoContent},
		{"employee on other's timer", permissions.Identity{UserID: "alice", Role: models.GlobalRoleUser}, "t-bob", http.StatusForbidden},
		{"manager on other's timer", permissions.Identity{UserID: "bob", Role: models.GlobalRoleUser}, "t-alice", http.StatusNoContent},
		{"no membership", permissions.Identity{UserID: "carol", Role: models.GlobalRoleUser}, "t-alice", http.StatusForbidden},
		{"global admin", permissions.Identity{UserID: "root", Role: models.GlobalRoleAdmin}, "t-alice", http.StatusNoContent},
		{"missing timer", permissions.Identity{UserID: "alice", Role: models.GlobalRoleUser}, "t-none", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPut, "/timers/"+tt.timer, nil)
			req = req.WithContext(WithIdentity(req.Context(), tt.id))
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, req)
			if rec.Code != tt.want {
				t.Fatalf("status = %d, want %d (%s)", rec.Code, tt.want, rec.Body.String())
			}
		})
	}
}

func TestRequirePermissionUnknownIsInternal(t *testing.T) {
	store := &memberStore{
		members: map[string]models.OrgRole{"alice": models.OrgRoleEmployee},
		perms:   map[models.PermissionName][]models.OrgRole{},
	}
	gate := NewGate(testCfg, permissions.NewResolver(store))
	h := gate.RequirePermission("CREATE_TIMRE")(http.HandlerFunc(ok))

	req := httptest.NewRequest(http.MethodPost, "/timers/start", nil)
	req = req.WithContext(WithIdentity(req.Context(), permissions.Identity{UserID: "alice", Role: models.GlobalRoleUser}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/timers/start", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous status = %d, want 401", rec.Code)
	}
}

func TestRequireGlobalAdmin(t *testing.T) {
	gate := NewGate(testCfg, permissions.NewResolver(&memberStore{}))
	h := gate.RequireGlobalAdmin()(http.HandlerFunc(ok))

	for role, want := range map[models.GlobalRole]int{
		models.GlobalRoleUser:  http.StatusForbidden,
		models.GlobalRoleAdmin: http.StatusNoContent,
	} {
		req := httptest.NewRequest(http.MethodGet, "/permissions", nil)
		req = req.WithContext(WithIdentity(req.Context(), permissions.Identity{UserID: "u", Role: role}))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != want {
			t.Errorf("%s: status = %d, want %d", role, rec.Code, want)
		}
	}
}

func TestContentTypeJSON(t *testing.T) {
	h := ContentTypeJSON(testCfg)(http.HandlerFunc(ok))

	tests := []struct {
		name        string
		method      string
		body        string
		contentType string
		want        int
	}{
		{"bodyless put", http.MethodPut, "", "", http.StatusNoContent},
		{"json post", http.MethodPost, `{"task":"x"}`, "application/json; charset=utf-8", http.StatusNoContent},
		{"form post", http.MethodPost, "task=x", "application/x-www-form-urlencoded", http.StatusBadRequest},
		{"get ignored", http.MethodGet, "", "text/plain", http.StatusNoContent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/", strings.NewReader(tt.body))
			if tt.contentType != "" {
				req.Header.Set("Content-Type", tt.contentType)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			if rec.Code != tt.want {
				t.Fatalf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}

func TestRecoveryHidesStackOutsideDevelopment(t *testing.T) {
	boom := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { panic("boom") })

	for _, env := range []string{"production", "development"} {
		cfg := &config.Config{Environment: env}
		rec := httptest.NewRecorder()
		Recovery(cfg)(boom).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		if rec.Code != http.StatusInternalServerError {
			t.Fatalf("%s: status = %d", env, rec.Code)
		}
		body := decodeBody(t, rec)
		_, hasStack := body["stack"]
		if hasStack != (env == "development") {
			t.Errorf("%s: stack present = %v", env, hasStack)
		}
		if body["success"] != false {
			t.Errorf("%s: body = %v", env, body)
		}
	}
}

func TestRecoveryPassesThroughAbortAndNormalResponses(t *testing.T) {
	cfg := &config.Config{Environment: "production"}

	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) })
	rec := httptest.NewRecorder()
	Recovery(cfg)(ok).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", rec.Code)
	}

	abort := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { panic(http.ErrAbortHandler) })
	defer func() {
		if got := recover(); got != http.ErrAbortHandler {
			t.Fatalf("recovered %v, want http.ErrAbortHandler", got)
		}
	}()
	Recovery(cfg)(abort).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	t.Fatal("ErrAbortHandler was swallowed")
}

func TestOriginAllowed(t *testing.T) {
	tests := map[string]bool{
		"":                        true,
		"https://app.example.com": true,
		"http://localhost:5173":   true,
		"https://evil.example":    false,
	}
	for origin, want := range tests {
		if got := OriginAllowed(testCfg, origin); got != want {
			t.Errorf("OriginAllowed(%q) = %v, want %v", origin, got, want)
		}
	}
	if !OriginAllowed(&config.Config{AllowedOrigins: []string{"*"}}, "https://anything") {
		t.Error("wildcard should allow every origin")
	}
}

func TestNormalizeTrimsTrailingSlash(t *testing.T) {
	var path string
	h := Normalize()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { path = r.URL.Path }))
	for in, want := range map[string]string{"/timers/": "/timers", "/": "/", "/timers/active": "/timers/active"} {
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, in, nil))
		if path != want {
			t.Errorf("Normalize(%q) = %q, want %q", in, path, want)
		}
	}
}
