package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/soundbites/quizapi/internal/models"
	pkghttp "github.com/soundbites/quizapi/pkg/http"
)

// QuizService defines the quiz content operations
type QuizService interface {
	ListQuestions(ctx context.Context, activeOnly bool) ([]*models.Question, error)
	CreateQuestion(ctx context.Context, q *models.Question) (*models.Question, error)
	UpdateQuestion(ctx context.Context, q *models.Question) (*models.Question, error)
	DeleteQuestion(ctx context.Context, id string) error
	SubmitResult(ctx context.Context, result *models.QuizResult, lead *models.Lead) (*models.QuizResult, error)
	ListResults(ctx context.Context, limit, offset int) ([]*models.QuizResult, error)
	ListLeads(ctx context.Context, limit, offset int) ([]*models.Lead, error)
}

// QuizHandler serves the public quiz widget and the admin content endpoints
type QuizHandler struct {
	service QuizService
}

func NewQuizHandler(service QuizService) *QuizHandler {
	return &QuizHandler{service: service}
}

// QuestionRequest is the body for creating or replacing a question
type QuestionRequest struct {
	Text     string   `json:"text" validate:"required,max=500"`
	Options  []string `json:"options" validate:"required,min=2,max=10,dive,required,max=200"`
	Category string   `json:"category" validate:"max=100"`
	Position int      `json:"position" validate:"gte=0"`
	Active   *bool    `json:"active"`
}

func (req QuestionRequest) toModel(id string) *models.Question {
	active := true
	if req.Active != nil {
		active = *req.Active
	}
	return &models.Question{
		ID:       id,
		Text:     req.Text,
		Options:  req.Options,
		Category: req.Category,
		Position: req.Position,
		Active:   active,
	}
}

// SubmitResultRequest is a finished quiz, optionally with contact details
type SubmitResultRequest struct {
	Score   int            `json:"score" validate:"gte=0"`
	Answers map[string]int `json:"answers"`
	Email   string         `json:"email" validate:"omitempty,email,max=254"`
	Name    string         `json:"name" validate:"max=200"`
}

// ListQuestions handles GET /quiz/questions (active questions only)
func (h *QuizHandler) ListQuestions(w http.ResponseWriter, r *http.Request) {
	questions, err := h.service.ListQuestions(r.Context(), true)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	pkghttp.WriteJSON(w, http.StatusOK, map[string]interface{}{"questions": questions})
}

// SubmitResult handles POST /quiz/results
func (h *QuizHandler) SubmitResult(w http.ResponseWriter, r *http.Request) {
	var req SubmitResultRequest
	if err := decodeAndValidate(w, r, &req); err != nil {
		writeServiceError(w, err)
		return
	}

	var lead *models.Lead
	if req.Email != "" {
		lead = &models.Lead{Email: req.Email, Name: req.Name}
	}

	result, err := h.service.SubmitResult(r.Context(), &models.QuizResult{Score: req.Score, Answers: req.Answers}, lead)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	pkghttp.WriteJSON(w, http.StatusCreated, result)
}

// AdminListQuestions handles GET /admin/questions, including inactive ones
func (h *QuizHandler) AdminListQuestions(w http.ResponseWriter, r *http.Request) {
	questions, err := h.service.ListQuestions(r.Context(), false)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	pkghttp.WriteJSON(w, http.StatusOK, map[string]interface{}{"questions": questions})
}

// CreateQuestion handles POST /admin/questions
func (h *QuizHandler) CreateQuestion(w http.ResponseWriter, r *http.Request) {
	var req QuestionRequest
	if err := decodeAndValidate(w, r, &req); err != nil {
		writeServiceError(w, err)
		return
	}

	created, err := h.service.CreateQuestion(r.Context(), req.toModel(""))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	pkghttp.WriteJSON(w, http.StatusCreated, created)
}

// UpdateQuestion handles PUT /admin/questions/{id}
func (h *QuizHandler) UpdateQuestion(w http.ResponseWriter, r *http.Request) {
	var req QuestionRequest
	if err := decodeAndValidate(w, r, &req); err != nil {
		writeServiceError(w, err)
		return
	}

	updated, err := h.service.UpdateQuestion(r.Context(), req.toModel(chi.URLParam(r, "id")))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	pkghttp.WriteJSON(w, http.StatusOK, updated)
}

// DeleteQuestion handles DELETE /admin/questions/{id}
func (h *QuizHandler) DeleteQuestion(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteQuestion(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListResults handles GET /admin/results
func (h *QuizHandler) ListResults(w http.ResponseWriter, r *http.Request) {
	limit, offset := parsePagination(r)
	results, err := h.service.ListResults(r.Context(), limit, offset)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	pkghttp.WriteJSON(w, http.StatusOK, map[string]interface{}{"results": results, "limit": limit, "offset": offset})
}

// ListLeads handles GET /admin/leads
func (h *QuizHandler) ListLeads(w http.ResponseWriter, r *http.Request) {
	limit, offset := parsePagination(r)
	leads, err := h.service.ListLeads(r.Context(), limit, offset)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	pkghttp.WriteJSON(w, http.StatusOK, map[string]interface{}{"leads": leads, "limit": limit, "offset": offset})
}
