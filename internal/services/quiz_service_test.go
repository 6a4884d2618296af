package services

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soundbites/quizapi/internal/models"
	"github.com/soundbites/quizapi/internal/repositories"
)

func TestQuizService_QuestionLifecycle(t *testing.T) {
	ctx := context.Background()
	svc := NewQuizService(repositories.NewMemoryQuizStore(), slog.Default())

	created, err := svc.CreateQuestion(ctx, &models.Question{
		Text:    "  Which genre fits you?  ",
		Options: []string{"Jazz", "Techno"},
		Active:  true,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, "Which genre fits you?", created.Text)

	created.Options = append(created.Options, "Folk")
	updated, err := svc.UpdateQuestion(ctx, created)
	require.NoError(t, err)
	assert.Len(t, updated.Options, 3)

	questions, err := svc.ListQuestions(ctx, true)
	require.NoError(t, err)
	assert.Len(t, questions, 1)

	require.NoError(t, svc.DeleteQuestion(ctx, created.ID))
	assert.ErrorIs(t, svc.DeleteQuestion(ctx, created.ID), models.ErrNotFound)

	_, err = svc.UpdateQuestion(ctx, created)
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestQuizService_QuestionValidation(t *testing.T) {
	tests := []struct {
		name     string
		question models.Question
		field    string
	}{
		{name: "blank text", question: models.Question{Text: " ", Options: []string{"a", "b"}}, field: "text"},
		{name: "one option", question: models.Question{Text: "q", Options: []string{"a"}}, field: "options"},
		{name: "empty option", question: models.Question{Text: "q", Options: []string{"a", " "}}, field: "options"},
		{name: "negative position", question: models.Question{Text: "q", Options: []string{"a", "b"}, Position: -1}, field: "position"},
	}

	svc := NewQuizService(&MockQuizRepository{}, slog.Default())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := tt.question
			_, err := svc.CreateQuestion(context.Background(), &q)
			var verr *models.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.field, verr.Field)
		})
	}
}

func TestQuizService_SubmitResult(t *testing.T) {
	ctx := context.Background()

	var gotLead *models.Lead
	repo := &MockQuizRepository{
		CreateResultFunc: func(ctx context.Context, result *models.QuizResult, lead *models.Lead) (*models.QuizResult, error) {
			gotLead = lead
			result.ID = "res-1"
			return result, nil
		},
	}
	svc := NewQuizService(repo, slog.Default())

	result, err := svc.SubmitResult(ctx, &models.QuizResult{Score: 7}, &models.Lead{Email: " fan@example.com ", Name: "Fan"})
	require.NoError(t, err)
	assert.Equal(t, "res-1", result.ID)
	require.NotNil(t, gotLead)
	assert.Equal(t, "fan@example.com", gotLead.Email)

	_, err = svc.SubmitResult(ctx, &models.QuizResult{Score: 1}, &models.Lead{Email: ""})
	require.NoError(t, err)
	assert.Nil(t, gotLead, "a lead without email is dropped")

	_, err = svc.SubmitResult(ctx, &models.QuizResult{Score: 1}, &models.Lead{Email: "not-an-email"})
	assert.ErrorIs(t, err, models.ErrValidation)

	_, err = svc.SubmitResult(ctx, &models.QuizResult{Score: -1}, nil)
	assert.ErrorIs(t, err, models.ErrValidation)
}

func TestQuizService_StoreErrorsAreInternal(t *testing.T) {
	storeErr := errors.New("db down")
	repo := &MockQuizRepository{
		ListQuestionsFunc: func(ctx context.Context, activeOnly bool) ([]*models.Question, error) {
			return nil, storeErr
		},
		ListResultsFunc: func(ctx context.Context, limit, offset int) ([]*models.QuizResult, error) {
			return nil, storeErr
		},
		ListLeadsFunc: func(ctx context.Context, limit, offset int) ([]*models.Lead, error) {
			return nil, storeErr
		},
	}
	svc := NewQuizService(repo, slog.Default())
	ctx := context.Background()

	_, err := svc.ListQuestions(ctx, false)
	assert.ErrorIs(t, err, models.ErrInternalServer)
	_, err = svc.ListResults(ctx, 10, 0)
	assert.ErrorIs(t, err, models.ErrInternalServer)
	_, err = svc.ListLeads(ctx, 10, 0)
	assert.ErrorIs(t, err, models.ErrInternalServer)
}
