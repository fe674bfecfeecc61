package api

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/me/cognilearn/internal/apitest"
	"github.com/me/cognilearn/pkg/model"
)

func newTestClient(t *testing.T) (*Client, *apitest.Server) {
	t.Helper()
	srv := apitest.New()
	t.Cleanup(srv.Close)
	return New(srv.URL, WithTimeout(5*time.Second)), srv
}

func TestClient_Login(t *testing.T) {
	c, srv := newTestClient(t)
	id := srv.AddUser("a@b.com", "pw", "teacher")
	ctx := context.Background()

	resp, err := c.Login(ctx, "a@b.com", "pw")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if resp.ID != id || resp.Role != "teacher" || resp.AccessToken == "" {
		t.Errorf("Login = %+v", resp)
	}
	if srv.LastAuthorization() != "" {
		t.Errorf("login sent Authorization %q before any token was set", srv.LastAuthorization())
	}
}

func TestClient_Login_Unauthorized(t *testing.T) {
	c, srv := newTestClient(t)
	srv.AddUser("demo@x.com", "right", "student")

	_, err := c.Login(context.Background(), "demo@x.com", "wrong")
	if !IsUnauthorized(err) {
		t.Fatalf("err = %v, want 401", err)
	}
	if Detail(err) != "Invalid credentials" {
		t.Errorf("Detail = %q", Detail(err))
	}
}

func TestClient_Login_Validation(t *testing.T) {
	c, srv := newTestClient(t)

	_, err := c.Login(context.Background(), "not-an-email", "")
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("err = %v, want ValidationError", err)
	}
	if len(ve.Fields) != 2 {
		t.Errorf("Fields = %+v, want email and password", ve.Fields)
	}
	if !strings.Contains(ve.Error(), "email must be a valid email address") {
		t.Errorf("message = %q", ve.Error())
	}
	if srv.TotalHits() != 0 {
		t.Error("invalid request reached the server")
	}
}

func TestClient_Register(t *testing.T) {
	c, srv := newTestClient(t)
	ctx := context.Background()

	if err := c.Register(ctx, "new@b.com", "pw", model.RoleParent); err != nil {
		t.Fatalf("Register: %v", err)
	}
	err := c.Register(ctx, "new@b.com", "pw", model.RoleParent)
	if StatusCode(err) != http.StatusBadRequest || Detail(err) != "Email already registered" {
		t.Errorf("duplicate Register err = %v", err)
	}
	if srv.Hits("/register") != 2 {
		t.Errorf("register hits = %d", srv.Hits("/register"))
	}

	if err := c.Register(ctx, "x@b.com", "pw", model.Role("admin")); err == nil {
		t.Error("expected validation error for unknown role")
	}
}

func TestClient_AuthHeader(t *testing.T) {
	c, srv := newTestClient(t)
	ctx := context.Background()
	id := srv.AddUser("s@b.com", "pw", "student")

	if _, err := c.Dashboard(ctx, id); !errors.Is(err, ErrNotAuthenticated) {
		t.Fatalf("Dashboard without token: err = %v", err)
	}

	resp, err := c.Login(ctx, "s@b.com", "pw")
	if err != nil {
		t.Fatal(err)
	}
	c.SetToken(resp.AccessToken)
	if got := c.AuthHeader(); got != "Bearer "+resp.AccessToken {
		t.Errorf("AuthHeader = %q", got)
	}

	d, err := c.Dashboard(ctx, id)
	if err != nil {
		t.Fatalf("Dashboard: %v", err)
	}
	if srv.LastAuthorization() != "Bearer "+resp.AccessToken {
		t.Errorf("server saw Authorization %q", srv.LastAuthorization())
	}
	if d.StudyTime.Or(0) != 120 || len(d.LearningProgress) != 5 || len(d.Alerts) != 2 {
		t.Errorf("Dashboard = %+v", d)
	}

	c.ClearToken()
	if c.AuthHeader() != "" {
		t.Error("AuthHeader not cleared")
	}
}

func TestClient_DataEndpoints(t *testing.T) {
	c, srv := newTestClient(t)
	ctx := context.Background()
	id := srv.AddUser("t@b.com", "pw", "teacher")
	c.SetToken(srv.IssueToken(id, "teacher", time.Hour))

	d, err := c.Dashboard(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if d.ClassOverview != "30 students active" || len(d.AtRiskStudents) != 2 || d.StudyTime.Set {
		t.Errorf("teacher dashboard = %+v", d)
	}

	cg, err := c.Cognitive(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if cg.LearningType != "Visual" || cg.AtRisk.Set {
		t.Errorf("Cognitive = %+v", cg)
	}

	wk, err := c.Report(ctx, model.PeriodWeekly, id)
	if err != nil {
		t.Fatal(err)
	}
	if wk.ImprovementPercentage.Or(0) != 15 || wk.EngagementScore.Set {
		t.Errorf("weekly = %+v", wk)
	}
	mo, err := c.Report(ctx, model.PeriodMonthly, id)
	if err != nil {
		t.Fatal(err)
	}
	if len(mo.AccuracyTrend) != 4 || !mo.MistakeReduction.Or(false) {
		t.Errorf("monthly = %+v", mo)
	}

	if _, err := c.Report(ctx, "daily", id); err == nil {
		t.Error("expected error for unknown period")
	}
}

func TestClient_InvalidToken(t *testing.T) {
	c, srv := newTestClient(t)
	id := srv.AddUser("s@b.com", "pw", "student")
	c.SetToken("demo-token-123")

	_, err := c.Dashboard(context.Background(), id)
	if !IsUnauthorized(err) {
		t.Errorf("err = %v, want 401", err)
	}
}

func TestClient_LogBehavior(t *testing.T) {
	c, srv := newTestClient(t)
	ctx := context.Background()
	id := srv.AddUser("s@b.com", "pw", "student")

	entry := model.BehaviorLog{
		UserID: id, Action: "quiz_completed", ResponseTime: 4.5,
		RetryCount: 1, Mistakes: 1, LessonID: "lesson_1_math", FocusScore: 93, StudyDuration: 4.5,
	}
	if err := c.LogBehavior(ctx, entry); !errors.Is(err, ErrNotAuthenticated) {
		t.Fatalf("err = %v, want ErrNotAuthenticated", err)
	}

	c.SetToken(srv.IssueToken(id, "student", time.Hour))
	if err := c.LogBehavior(ctx, entry); err != nil {
		t.Fatalf("LogBehavior: %v", err)
	}
	logs := srv.BehaviorLogs()
	if len(logs) != 1 || logs[0] != entry {
		t.Errorf("server logs = %+v", logs)
	}

	bad := entry
	bad.Mistakes = -1
	if err := c.LogBehavior(ctx, bad); err == nil {
		t.Error("expected validation error for negative mistakes")
	}
}

func TestClient_RequestID(t *testing.T) {
	c, srv := newTestClient(t)
	srv.AddUser("a@b.com", "pw", "student")

	var (
		mu   sync.Mutex
		seen []string
	)
	srv.SetOnRequest(func(r *http.Request) {
		mu.Lock()
		seen = append(seen, r.Header.Get(RequestIDHeader))
		mu.Unlock()
	})
	c.Login(context.Background(), "a@b.com", "pw")
	c.Login(context.Background(), "a@b.com", "pw")

	mu.Lock()
	defer mu.Unlock()
	if len(seen) != 2 || seen[0] == "" || seen[0] == seen[1] {
		t.Errorf("request ids = %v", seen)
	}
}

func TestClient_NetworkError(t *testing.T) {
	srv := apitest.New()
	url := srv.URL
	srv.Close()

	_, err := New(url).Login(context.Background(), "a@b.com", "pw")
	if err == nil {
		t.Fatal("expected network error")
	}
	if StatusCode(err) != 0 {
		t.Errorf("network error reported status %d", StatusCode(err))
	}
}

func TestNewHTTPError(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		detail string
	}{
		{"string detail", `{"detail":"Email already registered"}`, "Email already registered"},
		{"list detail", `{"detail":[{"msg":"field required"},{"msg":"value is not a valid email"}]}`, "field required; value is not a valid email"},
		{"no detail", `{"error":"x"}`, ""},
		{"not json", `<html>`, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newHTTPError(422, []byte(tt.body))
			if e.Detail != tt.detail {
				t.Errorf("Detail = %q, want %q", e.Detail, tt.detail)
			}
			if tt.detail == "" && e.Error() != "HTTP 422" {
				t.Errorf("Error() = %q", e.Error())
			}
		})
	}
}
