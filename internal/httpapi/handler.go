// Package httpapi exposes the engine as a thin JSON surface: students,
// session lifecycle, mastery snapshots, pool stats and reports. All payloads
// are plain data; there is no auth.
package httpapi

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/mux"

	"github.com/ssat-prep/backend/internal/mastery"
	"github.com/ssat-prep/backend/internal/models"
	"github.com/ssat-prep/backend/internal/pool"
	"github.com/ssat-prep/backend/internal/session"
	"github.com/ssat-prep/backend/internal/students"
)

type Handler struct {
	students *students.Store
	progress *students.Progress
	sessions *session.Service
	attempts *session.Store
	tracker  *mastery.Tracker
	pool     *pool.Manager

	mu     sync.Mutex
	active map[int64]*session.Progression
}

func NewHandler(studentStore *students.Store, progress *students.Progress, sessions *session.Service,
	attempts *session.Store, tracker *mastery.Tracker, poolMgr *pool.Manager) *Handler {
	return &Handler{
		students: studentStore,
		progress: progress,
		sessions: sessions,
		attempts: attempts,
		tracker:  tracker,
		pool:     poolMgr,
		active:   map[int64]*session.Progression{},
	}
}

func (h *Handler) Routes(r *mux.Router) {
	api := r.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/students", h.CreateStudent).Methods("POST")
	api.HandleFunc("/students", h.ListStudents).Methods("GET")
	api.HandleFunc("/students/{id}", h.GetStudent).Methods("GET")
	api.HandleFunc("/students/{id}/progress", h.GetProgress).Methods("GET")
	api.HandleFunc("/students/{id}/level", h.ChangeLevel).Methods("POST")
	api.HandleFunc("/students/{id}/mastery", h.GetMastery).Methods("GET")
	api.HandleFunc("/students/{id}/pool", h.GetPoolStats).Methods("GET")
	api.HandleFunc("/students/{id}/sessions", h.ListSessions).Methods("GET")

	api.HandleFunc("/students/{id}/session", h.StartSession).Methods("POST")
	api.HandleFunc("/students/{id}/session", h.GetSession).Methods("GET")
	api.HandleFunc("/students/{id}/session/answer", h.SubmitAnswer).Methods("POST")
	api.HandleFunc("/students/{id}/session/confirm", h.ConfirmAnswer).Methods("POST")
	api.HandleFunc("/students/{id}/session/back", h.GoBack).Methods("POST")
	api.HandleFunc("/students/{id}/session/next", h.NextQuestion).Methods("POST")
	api.HandleFunc("/students/{id}/session/skip", h.SkipQuestion).Methods("POST")

	api.HandleFunc("/sessions/{id}", h.GetAttempt).Methods("GET")
	api.HandleFunc("/admin/generate", h.Pregenerate).Methods("POST")
}

// ── Students ────────────────────────────────────────────

func (h *Handler) CreateStudent(w http.ResponseWriter, r *http.Request) {
	var req models.CreateStudentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: "Invalid request body"})
		return
	}
	if req.Name == "" {
		writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: "name is required"})
		return
	}
	if !models.ValidLevels[req.Level] {
		writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: "level must be 'elementary' or 'middle'"})
		return
	}
	student, err := h.students.Create(req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, student)
}

func (h *Handler) ListStudents(w http.ResponseWriter, r *http.Request) {
	list, err := h.students.List()
	if err != nil {
		writeError(w, err)
		return
	}
	if list == nil {
		list = []models.Student{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *Handler) GetStudent(w http.ResponseWriter, r *http.Request) {
	student, ok := h.loadStudent(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, student)
}

func (h *Handler) GetProgress(w http.ResponseWriter, r *http.Request) {
	student, ok := h.loadStudent(w, r)
	if !ok {
		return
	}
	overview, err := h.progress.Overview(student.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, overview)
}

func (h *Handler) ChangeLevel(w http.ResponseWriter, r *http.Request) {
	student, ok := h.loadStudent(w, r)
	if !ok {
		return
	}
	var req struct {
		Direction models.LevelRecommendation `json:"direction"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: "Invalid request body"})
		return
	}
	updated, err := h.progress.ApplyLevelChange(student.ID, req.Direction)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (h *Handler) GetMastery(w http.ResponseWriter, r *http.Request) {
	student, ok := h.loadStudent(w, r)
	if !ok {
		return
	}
	snapshots, err := h.tracker.Snapshot(student.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snapshots)
}

func (h *Handler) GetPoolStats(w http.ResponseWriter, r *http.Request) {
	student, ok := h.loadStudent(w, r)
	if !ok {
		return
	}
	stats, err := h.pool.Stats(student.ID, student.Level)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *Handler) ListSessions(w http.ResponseWriter, r *http.Request) {
	student, ok := h.loadStudent(w, r)
	if !ok {
		return
	}
	limit := intQueryParam(r, "limit", 20)
	attempts, err := h.attempts.ListAttempts(student.ID, limit)
	if err != nil {
		writeError(w, err)
		return
	}
	if attempts == nil {
		attempts = []models.SessionAttempt{}
	}
	writeJSON(w, http.StatusOK, attempts)
}

func (h *Handler) GetAttempt(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: "invalid session id"})
		return
	}
	attempt, err := h.attempts.GetAttempt(id)
	if err != nil {
		writeError(w, err)
		return
	}
	if attempt == nil {
		writeJSON(w, http.StatusNotFound, models.ErrorResponse{Error: "session not found"})
		return
	}
	writeJSON(w, http.StatusOK, attempt)
}

// ── Session lifecycle ───────────────────────────────────

// sessionView is the machine's externally visible state after each request.
type sessionView struct {
	State          session.State          `json:"state"`
	Mode           models.SessionMode     `json:"mode"`
	Index          int                    `json:"index"`
	Total          int                    `json:"total"`
	Shortfall      int                    `json:"shortfall,omitempty"`
	ChangedAnswers int                    `json:"changed_answers"`
	Deadline       *time.Time             `json:"deadline,omitempty"`
	Question       *models.ServedQuestion `json:"question,omitempty"`
	Feedback       *session.Feedback      `json:"feedback,omitempty"`
	Report         *models.ScoreReport    `json:"report,omitempty"`
}

func viewOf(p *session.Progression, fb *session.Feedback) sessionView {
	v := sessionView{
		State:          p.State(),
		Mode:           p.Mode(),
		Index:          p.Index(),
		Total:          p.Total(),
		Shortfall:      p.Shortfall(),
		ChangedAnswers: p.ChangedAnswers(),
		Feedback:       fb,
		Report:         p.Report(),
	}
	if deadline, timed := p.Deadline(); timed {
		v.Deadline = &deadline
	}
	if q, err := p.Current(); err == nil {
		v.Question = q
	}
	return v
}

func (h *Handler) StartSession(w http.ResponseWriter, r *http.Request) {
	student, ok := h.loadStudent(w, r)
	if !ok {
		return
	}
	var params session.StartParams
	if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
		writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: "Invalid request body"})
		return
	}

	h.mu.Lock()
	if p, exists := h.active[student.ID]; exists && p.State() != session.StateComplete {
		h.mu.Unlock()
		writeJSON(w, http.StatusConflict, models.ErrorResponse{Error: "a session is already in progress for this student"})
		return
	}
	h.mu.Unlock()

	p, err := h.sessions.Start(r.Context(), *student, params)
	if err != nil {
		writeError(w, err)
		return
	}

	h.mu.Lock()
	h.active[student.ID] = p
	h.mu.Unlock()

	writeJSON(w, http.StatusCreated, viewOf(p, nil))
}

func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	p, ok := h.activeProgression(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, viewOf(p, nil))
}

func (h *Handler) SubmitAnswer(w http.ResponseWriter, r *http.Request) {
	p, ok := h.activeProgression(w, r)
	if !ok {
		return
	}
	var req struct {
		Choice string `json:"choice"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: "Invalid request body"})
		return
	}
	if err := p.Submit(r.Context(), req.Choice); err != nil {
		writeError(w, err)
		return
	}
	h.release(p)
	writeJSON(w, http.StatusOK, viewOf(p, nil))
}

func (h *Handler) ConfirmAnswer(w http.ResponseWriter, r *http.Request) {
	p, ok := h.activeProgression(w, r)
	if !ok {
		return
	}
	fb, err := p.Commit(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	h.release(p)
	writeJSON(w, http.StatusOK, viewOf(p, fb))
}

func (h *Handler) GoBack(w http.ResponseWriter, r *http.Request) {
	p, ok := h.activeProgression(w, r)
	if !ok {
		return
	}
	if err := p.GoBack(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	h.release(p)
	writeJSON(w, http.StatusOK, viewOf(p, nil))
}

func (h *Handler) NextQuestion(w http.ResponseWriter, r *http.Request) {
	p, ok := h.activeProgression(w, r)
	if !ok {
		return
	}
	if err := p.Next(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	h.release(p)
	writeJSON(w, http.StatusOK, viewOf(p, nil))
}

func (h *Handler) SkipQuestion(w http.ResponseWriter, r *http.Request) {
	p, ok := h.activeProgression(w, r)
	if !ok {
		return
	}
	if err := p.Skip(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	h.release(p)
	writeJSON(w, http.StatusOK, viewOf(p, nil))
}

// release drops a finished progression from the registry so the student can
// start the next one.
func (h *Handler) release(p *session.Progression) {
	if p.State() != session.StateComplete {
		return
	}
	h.mu.Lock()
	for id, active := range h.active {
		if active == p {
			delete(h.active, id)
			break
		}
	}
	h.mu.Unlock()
}

// ── Admin ───────────────────────────────────────────────

func (h *Handler) Pregenerate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Topic      models.Topic `json:"topic"`
		Level      models.Level `json:"level"`
		Difficulty float64      `json:"difficulty"`
		Count      int          `json:"count"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: "Invalid request body"})
		return
	}
	if !models.ValidTopics[req.Topic] || !models.ValidLevels[req.Level] {
		writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: "invalid topic or level"})
		return
	}
	difficulty := models.ClampDifficulty(req.Difficulty)

	accepted, err := h.pool.Pregenerate(r.Context(), req.Topic, req.Level, difficulty, req.Count)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]int{"accepted": accepted})
}

// ── Helpers ─────────────────────────────────────────────

func (h *Handler) loadStudent(w http.ResponseWriter, r *http.Request) (*models.Student, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: "invalid student id"})
		return nil, false
	}
	student, err := h.students.Get(id)
	if err != nil {
		writeError(w, err)
		return nil, false
	}
	if student == nil {
		writeJSON(w, http.StatusNotFound, models.ErrorResponse{Error: "student not found"})
		return nil, false
	}
	return student, true
}

func (h *Handler) activeProgression(w http.ResponseWriter, r *http.Request) (*session.Progression, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: "invalid student id"})
		return nil, false
	}
	h.mu.Lock()
	p, ok := h.active[id]
	h.mu.Unlock()
	if !ok {
		writeJSON(w, http.StatusNotFound, models.ErrorResponse{Error: "no session in progress"})
		return nil, false
	}
	return p, true
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, models.ErrValidation):
		writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: err.Error()})
	case errors.Is(err, models.ErrStorage):
		log.Printf("storage error: %v", err)
		writeJSON(w, http.StatusServiceUnavailable, models.ErrorResponse{Error: "storage unavailable, please retry"})
	case errors.Is(err, models.ErrProvider):
		log.Printf("provider error: %v", err)
		writeJSON(w, http.StatusBadGateway, models.ErrorResponse{Error: "question generation failed"})
	default:
		log.Printf("internal error: %v", err)
		writeJSON(w, http.StatusInternalServerError, models.ErrorResponse{Error: "internal error"})
	}
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func intQueryParam(r *http.Request, key string, defaultVal int) int {
	s := r.URL.Query().Get(key)
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil || v <= 0 {
		return defaultVal
	}
	return v
}
