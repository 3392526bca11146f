package server

import (
	"encoding/json"
	"errors"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/VVITTRC/Textbook-reading-club/internal/metrics"
	"github.com/VVITTRC/Textbook-reading-club/internal/ratelimit"
	"github.com/VVITTRC/Textbook-reading-club/internal/util"
	"github.com/VVITTRC/Textbook-reading-club/pkg/domain"
	"github.com/VVITTRC/Textbook-reading-club/pkg/storage"
	"github.com/VVITTRC/Textbook-reading-club/services/api/internal/app"
)

const maxJSONBody = 1 << 20

// Config wires required dependencies for the HTTP server.
type Config struct {
	App *app.App
	// Limiters are optional; nil disables rate limiting of that route.
	LoginLimiter       *ratelimit.FixedWindowLimiter
	SignupLimiter      *ratelimit.FixedWindowLimiter
	TrustedProxies     *util.TrustedProxies
	MaxUploadBytes     int64
	CORSAllowedOrigins []string
	Metrics            metrics.Recorder
	// Gatherer backs /metrics; nil leaves the route unregistered.
	Gatherer prometheus.Gatherer
}

// Server exposes the reading club HTTP API.
type Server struct {
	app            *app.App
	mux            *http.ServeMux
	loginLimiter   *ratelimit.FixedWindowLimiter
	signupLimiter  *ratelimit.FixedWindowLimiter
	trustedProxies *util.TrustedProxies
	maxUploadBytes int64
	corsOrigins    []string
	metrics        metrics.Recorder
	gatherer       prometheus.Gatherer
}

// New constructs the server with routes configured.
func New(cfg Config) *Server {
	rec := cfg.Metrics
	if rec == nil {
		rec = metrics.Nop{}
	}
	s := &Server{
		app:            cfg.App,
		mux:            http.NewServeMux(),
		loginLimiter:   cfg.LoginLimiter,
		signupLimiter:  cfg.SignupLimiter,
		trustedProxies: cfg.TrustedProxies,
		maxUploadBytes: normalizeMaxBytes(cfg.MaxUploadBytes),
		corsOrigins:    cfg.CORSAllowedOrigins,
		metrics:        rec,
		gatherer:       cfg.Gatherer,
	}
	s.routes()
	return s
}

// Router returns the configured handler with the middleware chain applied.
func (s *Server) Router() http.Handler {
	var h http.Handler = s.mux
	h = util.WithCORS(s.corsOrigins, h)
	h = util.WithSecurityHeaders("/uploads/", h)
	h = metrics.WithHTTPMetrics(s.metrics, h)
	h = util.WithRequestLog("api", h)
	return util.WithRequestID(h)
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /{$}", s.handleRoot)
	s.mux.HandleFunc("GET /healthz", s.handleHealth)
	if s.gatherer != nil {
		s.mux.Handle("GET /metrics", metrics.Handler(s.gatherer))
	}

	// users
	s.mux.HandleFunc("POST /login/{$}", s.handleLogin)
	s.mux.HandleFunc("POST /users/{$}", s.handleRegister)
	s.mux.HandleFunc("GET /users/{$}", s.handleListUsers)
	s.mux.HandleFunc("GET /users/{id}", s.handleGetUser)

	// cohorts
	s.mux.HandleFunc("POST /cohorts/{$}", s.handleCreateCohort)
	s.mux.HandleFunc("GET /cohorts/{$}", s.handleListCohorts)
	s.mux.HandleFunc("GET /cohorts/{id}", s.handleGetCohort)
	s.mux.HandleFunc("POST /cohorts/{id}/upload-pdf", s.handleUploadDocument)
	s.mux.HandleFunc("GET /uploads/{name}", s.handleServeDocument)

	// memberships
	s.mux.HandleFunc("POST /cohort-members/{$}", s.handleJoinCohort)
	s.mux.HandleFunc("GET /cohort-members/user/{id}", s.handleUserCohorts)
	s.mux.HandleFunc("GET /cohort-members/cohort/{id}", s.handleCohortMembers)

	// notes & chat
	s.mux.HandleFunc("POST /private-notes/{$}", s.handleCreateNote(domain.NotePrivate))
	s.mux.HandleFunc("GET /private-notes/user/{uid}/cohort/{cid}", s.handlePrivateNotes)
	s.mux.HandleFunc("POST /public-notes/{$}", s.handleCreateNote(domain.NotePublic))
	s.mux.HandleFunc("GET /public-notes/cohort/{id}", s.handlePublicNotes)
	s.mux.HandleFunc("POST /chat-messages/{$}", s.handlePostChatMessage)
	s.mux.HandleFunc("GET /chat-messages/cohort/{id}", s.handleChatMessages)

	// admin
	s.mux.HandleFunc("GET /admin/stats", s.handleAdminStats)
	s.mux.HandleFunc("GET /admin/cohorts/{id}/activity", s.handleCohortActivity)
}

func (s *Server) handleRoot(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": "Textbook Reading Club API"})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if !s.allowRate(w, r, s.loginLimiter, "login", "too many login attempts") {
		s.audit(r, "api.login", "rate_limited")
		return
	}
	var req domain.LoginRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	user, err := s.app.Login(req.Username, req.Password)
	if err != nil {
		s.audit(r, "api.login", "fail", "username", req.Username)
		writeAppError(w, r, err)
		return
	}
	s.audit(r, "api.login", "success", "user_id", user.ID, "role", user.Role)
	writeJSON(w, http.StatusOK, user)
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	if !s.allowRate(w, r, s.signupLimiter, "signup", "too many signup attempts") {
		s.audit(r, "api.signup", "rate_limited")
		return
	}
	var req domain.RegisterRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	user, err := s.app.Register(req)
	if err != nil {
		s.audit(r, "api.signup", "fail", "reason", err.Error())
		writeAppError(w, r, err)
		return
	}
	s.audit(r, "api.signup", "success", "user_id", user.ID, "role", user.Role)
	writeJSON(w, http.StatusOK, user)
}

func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	skip, ok := queryInt(w, r, "skip", 0)
	if !ok {
		return
	}
	limit, ok := queryInt(w, r, "limit", 100)
	if !ok {
		return
	}
	users, err := s.app.ListUsers(skip, limit)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, users)
}

func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	user, err := s.app.GetUser(id)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (s *Server) handleCreateCohort(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateCohortRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	cohort, err := s.app.CreateCohort(req)
	if err != nil {
		if errors.Is(err, app.ErrCohortAdminOnly) {
			s.audit(r, "api.cohort.create", "fail", "user_id", req.CreatedBy, "reason", "forbidden")
		}
		writeAppError(w, r, err)
		return
	}
	s.audit(r, "api.cohort.create", "success", "user_id", req.CreatedBy, "cohort_id", cohort.ID)
	writeJSON(w, http.StatusOK, cohort)
}

func (s *Server) handleListCohorts(w http.ResponseWriter, r *http.Request) {
	cohorts, err := s.app.ListCohorts()
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cohorts)
}

func (s *Server) handleGetCohort(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	cohort, err := s.app.GetCohort(id)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cohort)
}

func (s *Server) handleUploadDocument(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "file too large")
			return
		}
		writeError(w, http.StatusBadRequest, "invalid form data")
		return
	}
	defer r.MultipartForm.RemoveAll()
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file is required (field: file)")
		return
	}
	defer file.Close()

	res, err := s.app.UploadDocument(r.Context(), id, header.Filename, file, header.Size)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleServeDocument(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	obj, info, err := s.app.OpenDocument(r.Context(), name)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			writeError(w, http.StatusNotFound, "File not found")
			return
		}
		writeAppError(w, r, err)
		return
	}
	defer obj.Close()
	if info.ContentType != "" {
		w.Header().Set("Content-Type", info.ContentType)
	} else if strings.HasSuffix(strings.ToLower(name), ".pdf") {
		w.Header().Set("Content-Type", "application/pdf")
	}
	http.ServeContent(w, r, name, info.ModTime, obj)
}

func (s *Server) handleJoinCohort(w http.ResponseWriter, r *http.Request) {
	var req domain.JoinRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	membership, err := s.app.JoinCohort(req)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, membership)
}

func (s *Server) handleUserCohorts(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	cohorts, err := s.app.UserCohorts(id)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cohorts)
}

func (s *Server) handleCohortMembers(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	users, err := s.app.CohortMembers(id)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, users)
}

func (s *Server) handleCreateNote(visibility domain.NoteVisibility) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req domain.CreateNoteRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		note, err := s.app.CreateNote(visibility, req)
		if err != nil {
			writeAppError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, note)
	}
}

func (s *Server) handlePrivateNotes(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathID(w, r, "uid")
	if !ok {
		return
	}
	cohortID, ok := pathID(w, r, "cid")
	if !ok {
		return
	}
	notes, err := s.app.PrivateNotes(userID, cohortID)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, notes)
}

func (s *Server) handlePublicNotes(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	notes, err := s.app.PublicNotes(id)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, notes)
}

func (s *Server) handlePostChatMessage(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateChatMessageRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	msg, err := s.app.PostChatMessage(req)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, msg)
}

func (s *Server) handleChatMessages(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	msgs, err := s.app.ChatMessages(id)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, msgs)
}

func (s *Server) handleAdminStats(w http.ResponseWriter, r *http.Request) {
	callerID, ok := requiredQueryID(w, r, "user_id")
	if !ok {
		return
	}
	stats, err := s.app.Stats(callerID)
	if err != nil {
		s.adminDenied(r, callerID, err)
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleCohortActivity(w http.ResponseWriter, r *http.Request) {
	cohortID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	callerID, ok := requiredQueryID(w, r, "user_id")
	if !ok {
		return
	}
	activity, err := s.app.Activity(callerID, cohortID)
	if err != nil {
		s.adminDenied(r, callerID, err)
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, activity)
}

func (s *Server) adminDenied(r *http.Request, callerID int64, err error) {
	if errors.Is(err, app.ErrAdminRequired) {
		s.audit(r, "api.admin.authorize", "fail", "user_id", callerID, "reason", "forbidden")
	}
}

func (s *Server) audit(r *http.Request, event, outcome string, attrs ...any) {
	logAttrs := []any{
		"event", event,
		"outcome", outcome,
		"path", r.URL.Path,
		"method", r.Method,
		"ip", util.ClientIP(r, s.trustedProxies),
	}
	logAttrs = append(logAttrs, attrs...)
	logger := util.LoggerFromContext(r.Context())
	if outcome == "success" {
		logger.Info("security_event", logAttrs...)
		return
	}
	logger.Warn("security_event", logAttrs...)
}

func (s *Server) allowRate(w http.ResponseWriter, r *http.Request, limiter *ratelimit.FixedWindowLimiter, route, msg string) bool {
	if limiter == nil {
		return true
	}
	key := r.URL.Path + "|" + util.ClientIP(r, s.trustedProxies)
	decision := limiter.Allow(r.Context(), key)
	if decision.Allowed {
		return true
	}
	s.metrics.RecordRateLimited(route)
	retry := int(math.Ceil(decision.RetryAfter.Seconds()))
	if retry < 1 {
		retry = 1
	}
	w.Header().Set("Retry-After", strconv.Itoa(retry))
	writeError(w, http.StatusTooManyRequests, msg)
	return false
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(io.LimitReader(r.Body, maxJSONBody)).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

func pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid "+name)
		return 0, false
	}
	return id, true
}

func requiredQueryID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, name+" query parameter is required")
		return 0, false
	}
	return id, true
}

func queryInt(w http.ResponseWriter, r *http.Request, name string, def int) (int, bool) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return def, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		writeError(w, http.StatusBadRequest, "invalid "+name)
		return 0, false
	}
	return n, true
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// writeError emits the {"detail": msg} body clients read error text from.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"detail": msg})
}

func writeAppError(w http.ResponseWriter, r *http.Request, err error) {
	var inputErr *app.InputError
	switch {
	case errors.As(err, &inputErr):
		writeError(w, http.StatusBadRequest, inputErr.Message)
	case errors.Is(err, app.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, "Invalid username or password")
	case errors.Is(err, app.ErrUsernameTaken):
		writeError(w, http.StatusBadRequest, "Username already exists")
	case errors.Is(err, app.ErrEmailTaken):
		writeError(w, http.StatusBadRequest, "Email already exists")
	case errors.Is(err, app.ErrUserNotFound):
		writeError(w, http.StatusNotFound, "User not found")
	case errors.Is(err, app.ErrCohortNotFound):
		writeError(w, http.StatusNotFound, "Cohort not found")
	case errors.Is(err, app.ErrCohortNameTaken):
		writeError(w, http.StatusBadRequest, "Cohort name already exists")
	case errors.Is(err, app.ErrCohortAdminOnly):
		writeError(w, http.StatusForbidden, "Only admins can create cohorts")
	case errors.Is(err, app.ErrAdminRequired):
		writeError(w, http.StatusForbidden, "Admin access required")
	case errors.Is(err, app.ErrAlreadyMember):
		writeError(w, http.StatusBadRequest, "User is already a member of this cohort")
	case errors.Is(err, app.ErrNotPDF):
		writeError(w, http.StatusBadRequest, "Only PDF files are allowed")
	default:
		util.LoggerFromContext(r.Context()).Error("request failed", "path", r.URL.Path, "err", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

func normalizeMaxBytes(value int64) int64 {
	if value <= 0 {
		return 50 * 1024 * 1024
	}
	return value
}
