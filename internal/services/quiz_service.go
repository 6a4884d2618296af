package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/soundbites/quizapi/internal/models"
)

// QuizRepository stores questions, results and leads
type QuizRepository interface {
	ListQuestions(ctx context.Context, activeOnly bool) ([]*models.Question, error)
	GetQuestion(ctx context.Context, id string) (*models.Question, error)
	CreateQuestion(ctx context.Context, q *models.Question) (*models.Question, error)
	UpdateQuestion(ctx context.Context, q *models.Question) (*models.Question, error)
	DeleteQuestion(ctx context.Context, id string) error
	CreateResult(ctx context.Context, result *models.QuizResult, lead *models.Lead) (*models.QuizResult, error)
	ListResults(ctx context.Context, limit, offset int) ([]*models.QuizResult, error)
	ListLeads(ctx context.Context, limit, offset int) ([]*models.Lead, error)
}

// QuizService is thin CRUD over the quiz content. Scoring happens in the widget.
type QuizService struct {
	repo   QuizRepository
	logger *slog.Logger
}

func NewQuizService(repo QuizRepository, logger *slog.Logger) *QuizService {
	return &QuizService{repo: repo, logger: logger}
}

func (s *QuizService) ListQuestions(ctx context.Context, activeOnly bool) ([]*models.Question, error) {
	questions, err := s.repo.ListQuestions(ctx, activeOnly)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to list questions", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}
	return questions, nil
}

func (s *QuizService) CreateQuestion(ctx context.Context, q *models.Question) (*models.Question, error) {
	if err := validateQuestion(q); err != nil {
		return nil, err
	}
	created, err := s.repo.CreateQuestion(ctx, q)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to create question", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}
	return created, nil
}

func (s *QuizService) UpdateQuestion(ctx context.Context, q *models.Question) (*models.Question, error) {
	if err := validateQuestion(q); err != nil {
		return nil, err
	}
	updated, err := s.repo.UpdateQuestion(ctx, q)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrNotFound
		}
		s.logger.ErrorContext(ctx, "failed to update question", slog.String("question_id", q.ID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}
	return updated, nil
}

func (s *QuizService) DeleteQuestion(ctx context.Context, id string) error {
	if err := s.repo.DeleteQuestion(ctx, id); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return models.ErrNotFound
		}
		s.logger.ErrorContext(ctx, "failed to delete question", slog.String("question_id", id), slog.Any("error", err))
		return models.ErrInternalServer
	}
	return nil
}

// SubmitResult stores a result; a lead with an email is upserted and linked
func (s *QuizService) SubmitResult(ctx context.Context, result *models.QuizResult, lead *models.Lead) (*models.QuizResult, error) {
	if result.Score < 0 {
		return nil, models.NewValidationError("score", "must not be negative")
	}
	if lead != nil {
		lead.Email = strings.TrimSpace(lead.Email)
		if lead.Email == "" {
			lead = nil
		} else if !isEmailAddress(lead.Email) {
			return nil, models.NewValidationError("email", "must be a valid email address")
		}
	}

	created, err := s.repo.CreateResult(ctx, result, lead)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to store quiz result", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}
	return created, nil
}

func (s *QuizService) ListResults(ctx context.Context, limit, offset int) ([]*models.QuizResult, error) {
	results, err := s.repo.ListResults(ctx, limit, offset)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to list results", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}
	return results, nil
}

func (s *QuizService) ListLeads(ctx context.Context, limit, offset int) ([]*models.Lead, error) {
	leads, err := s.repo.ListLeads(ctx, limit, offset)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to list leads", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}
	return leads, nil
}

func validateQuestion(q *models.Question) error {
	q.Text = strings.TrimSpace(q.Text)
	if q.Text == "" {
		return models.NewValidationError("text", "is required")
	}
	if len(q.Options) < 2 {
		return models.NewValidationError("options", "at least two options are required")
	}
	for i, opt := range q.Options {
		if strings.TrimSpace(opt) == "" {
			return models.NewValidationError("options", fmt.Sprintf("option %d is empty", i+1))
		}
	}
	if q.Position < 0 {
		return models.NewValidationError("position", "must not be negative")
	}
	return nil
}
