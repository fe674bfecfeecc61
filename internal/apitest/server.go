// Package apitest runs an in-memory stand-in for the CogniLearn backend.
//
// It mimics the HTTP contract the client consumes (status codes, field
// names, {"detail": ...} error bodies, HS256 bearer tokens) so the client
// packages can be tested end to end without a real server.
package apitest

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/me/cognilearn/pkg/model"
)

type account struct {
	id       string
	email    string
	role     string
	password []byte // bcrypt hash
}

// Server is a fake backend. Its zero value is not usable; call New.
type Server struct {
	*httptest.Server

	router chi.Router
	secret []byte

	mu       sync.Mutex
	accounts map[string]*account // by email
	logs     []model.BehaviorLog
	hits     map[string]int // by route pattern
	lastAuth string
	tokenTTL time.Duration
	hook     func(r *http.Request)
}

// New starts a fake backend. Close it when done.
func New() *Server {
	s := &Server{
		router:   chi.NewRouter(),
		secret:   []byte(uuid.NewString()),
		accounts: make(map[string]*account),
		hits:     make(map[string]int),
		tokenTTL: time.Hour,
	}
	s.routes()
	s.Server = httptest.NewServer(s.router)
	return s
}

func (s *Server) routes() {
	r := s.router
	r.Use(middleware.Recoverer)
	r.Use(s.observe)

	r.Post("/register", s.handleRegister)
	r.Post("/login", s.handleLogin)

	r.Group(func(r chi.Router) {
		r.Use(s.requireToken)
		r.Post("/behavior-log", s.handleBehaviorLog)
		r.Get("/dashboard/{userID}", s.handleDashboard)
		r.Get("/cognitive/{userID}", s.handleCognitive)
		r.Get("/weekly-report/{userID}", s.handleReport(model.PeriodWeekly))
		r.Get("/monthly-report/{userID}", s.handleReport(model.PeriodMonthly))
	})
}

// AddUser creates an account directly and returns its id. role is stored
// verbatim so tests can provoke unexpected values.
func (s *Server) AddUser(email, password, role string) string {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		panic(err)
	}
	a := &account{id: uuid.NewString(), email: email, role: role, password: hash}
	s.mu.Lock()
	s.accounts[email] = a
	s.mu.Unlock()
	return a.id
}

// SetTokenTTL sets the lifetime of tokens issued by /login.
func (s *Server) SetTokenTTL(d time.Duration) {
	s.mu.Lock()
	s.tokenTTL = d
	s.mu.Unlock()
}

// SetOnRequest installs fn to run before every handler.
func (s *Server) SetOnRequest(fn func(r *http.Request)) {
	s.mu.Lock()
	s.hook = fn
	s.mu.Unlock()
}

// Hits returns how many requests reached path. Parameterised routes are
// counted under their prefix, e.g. "/dashboard".
func (s *Server) Hits(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits[path]
}

// TotalHits returns the number of requests served.
func (s *Server) TotalHits() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, v := range s.hits {
		n += v
	}
	return n
}

// LastAuthorization returns the Authorization header of the latest request.
func (s *Server) LastAuthorization() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastAuth
}

// BehaviorLogs returns the behavior records received so far.
func (s *Server) BehaviorLogs() []model.BehaviorLog {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.BehaviorLog(nil), s.logs...)
}

// IssueToken signs a token for userID with the given expiry offset.
func (s *Server) IssueToken(userID, role string, ttl time.Duration) string {
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"id":   userID,
		"role": role,
		"exp":  time.Now().Add(ttl).Unix(),
	})
	signed, err := tok.SignedString(s.secret)
	if err != nil {
		panic(err)
	}
	return signed
}

func (s *Server) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.URL.Path
		if i := strings.Index(key[1:], "/"); i >= 0 {
			key = key[:i+1]
		}
		s.mu.Lock()
		s.hits[key]++
		s.lastAuth = r.Header.Get("Authorization")
		hook := s.hook
		s.mu.Unlock()
		if hook != nil {
			hook(r)
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) requireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || raw == "" {
			respondDetail(w, http.StatusUnauthorized, "Not authenticated")
			return
		}
		_, err := jwt.Parse(raw, func(t *jwt.Token) (any, error) { return s.secret, nil },
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
		if err != nil {
			respondDetail(w, http.StatusUnauthorized, "Could not validate credentials")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
		Role     string `json:"role"`
	}
	if !decode(w, r, &req) {
		return
	}
	if req.Email == "" || req.Password == "" || req.Role == "" {
		respondJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"detail": []map[string]string{{"msg": "field required"}},
		})
		return
	}
	s.mu.Lock()
	_, exists := s.accounts[req.Email]
	s.mu.Unlock()
	if exists {
		respondDetail(w, http.StatusBadRequest, "Email already registered")
		return
	}
	id := s.AddUser(req.Email, req.Password, req.Role)
	respondJSON(w, http.StatusOK, map[string]string{
		"message": "User created successfully", "id": id, "role": req.Role,
	})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if !decode(w, r, &req) {
		return
	}
	s.mu.Lock()
	a := s.accounts[req.Email]
	ttl := s.tokenTTL
	s.mu.Unlock()
	if a == nil || bcrypt.CompareHashAndPassword(a.password, []byte(req.Password)) != nil {
		respondDetail(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{
		"access_token": s.IssueToken(a.id, a.role, ttl),
		"role":         a.role,
		"id":           a.id,
		"email":        a.email,
	})
}

func (s *Server) handleBehaviorLog(w http.ResponseWriter, r *http.Request) {
	var entry model.BehaviorLog
	if !decode(w, r, &entry) {
		return
	}
	s.mu.Lock()
	s.logs = append(s.logs, entry)
	s.mu.Unlock()
	respondJSON(w, http.StatusOK, map[string]string{
		"message": "Behavior logged successfully", "log_id": uuid.NewString(),
	})
}

func (s *Server) accountByID(id string) *account {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.accounts {
		if a.id == id {
			return a
		}
	}
	return nil
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	a := s.accountByID(chi.URLParam(r, "userID"))
	if a == nil {
		respondDetail(w, http.StatusNotFound, "User not found")
		return
	}
	switch a.role {
	case "student":
		respondJSON(w, http.StatusOK, map[string]any{
			"study_time":        120,
			"focus_score":       85,
			"learning_progress": []int{10, 20, 30, 40, 50},
			"alerts":            []string{"Great job focusing today!", "Check out the new math lesson."},
		})
	case "parent":
		respondJSON(w, http.StatusOK, map[string]any{
			"child_performance": "Good",
			"weekly_overview":   "Completed 5 lessons, 85% average focus.",
			"alerts":            []string{"Your child reached their goal today!"},
		})
	default:
		respondJSON(w, http.StatusOK, map[string]any{
			"class_overview":   "30 students active",
			"at_risk_students": []string{"Student A", "Student B"},
			"alerts":           []string{},
		})
	}
}

func (s *Server) handleCognitive(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"learning_type":   "Visual",
		"focus_score":     85,
		"curiosity_index": 70,
		"recommendations": []string{"Watch video tutorials", "Try interactive games"},
	})
}

func (s *Server) handleReport(period model.ReportPeriod) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if period == model.PeriodWeekly {
			respondJSON(w, http.StatusOK, map[string]any{
				"accuracy_trend":         []int{60, 65, 70, 75, 80},
				"improvement_percentage": 15,
				"mistake_reduction":      true,
			})
			return
		}
		respondJSON(w, http.StatusOK, map[string]any{
			"accuracy_trend":         []int{50, 60, 70, 85},
			"improvement_percentage": 35,
			"engagement_score":       78,
			"mistake_reduction":      true,
		})
	}
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var syn *json.SyntaxError
		msg := "invalid request body"
		if errors.As(err, &syn) {
			msg = fmt.Sprintf("invalid JSON at offset %d", syn.Offset)
		}
		respondDetail(w, http.StatusUnprocessableEntity, msg)
		return false
	}
	return true
}

func respondDetail(w http.ResponseWriter, status int, detail string) {
	respondJSON(w, status, map[string]string{"detail": detail})
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
