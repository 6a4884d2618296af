package repositories

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/soundbites/quizapi/internal/database"
	"github.com/soundbites/quizapi/internal/models"
)

const questionColumns = `id, text, options, category, position, active, created_at, updated_at`

// QuizRepository stores questions, leads and submitted results
type QuizRepository struct {
	pool *pgxpool.Pool
}

func NewQuizRepository(db *database.DB) *QuizRepository {
	return &QuizRepository{pool: db.Pool}
}

func scanQuestionRow(scanner rowScanner) (*models.Question, error) {
	var q models.Question
	err := scanner.Scan(&q.ID, &q.Text, &q.Options, &q.Category, &q.Position, &q.Active, &q.CreatedAt, &q.UpdatedAt)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}
	if q.Options == nil {
		q.Options = []string{}
	}
	return &q, nil
}

func (r *QuizRepository) ListQuestions(ctx context.Context, activeOnly bool) ([]*models.Question, error) {
	query := `SELECT ` + questionColumns + ` FROM quiz_questions`
	if activeOnly {
		query += ` WHERE active`
	}
	query += ` ORDER BY position ASC, created_at ASC`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query questions: %w", err)
	}
	defer rows.Close()

	questions := make([]*models.Question, 0)
	for rows.Next() {
		q, err := scanQuestionRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan question: %w", err)
		}
		questions = append(questions, q)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return questions, nil
}

func (r *QuizRepository) GetQuestion(ctx context.Context, id string) (*models.Question, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, models.ErrNotFound
	}
	query := `SELECT ` + questionColumns + ` FROM quiz_questions WHERE id = $1`
	return scanQuestionRow(r.pool.QueryRow(ctx, query, id))
}

func (r *QuizRepository) CreateQuestion(ctx context.Context, q *models.Question) (*models.Question, error) {
	now := time.Now().UTC()
	q.ID = uuid.New().String()
	q.CreatedAt = now
	q.UpdatedAt = now

	query := `
		INSERT INTO quiz_questions (id, text, options, category, position, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING ` + questionColumns

	return scanQuestionRow(r.pool.QueryRow(ctx, query,
		q.ID, q.Text, q.Options, q.Category, q.Position, q.Active, q.CreatedAt, q.UpdatedAt,
	))
}

func (r *QuizRepository) UpdateQuestion(ctx context.Context, q *models.Question) (*models.Question, error) {
	if _, err := uuid.Parse(q.ID); err != nil {
		return nil, models.ErrNotFound
	}

	query := `
		UPDATE quiz_questions
		SET text = $2, options = $3, category = $4, position = $5, active = $6, updated_at = now()
		WHERE id = $1
		RETURNING ` + questionColumns

	return scanQuestionRow(r.pool.QueryRow(ctx, query,
		q.ID, q.Text, q.Options, q.Category, q.Position, q.Active,
	))
}

func (r *QuizRepository) DeleteQuestion(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return models.ErrNotFound
	}
	tag, err := r.pool.Exec(ctx, `DELETE FROM quiz_questions WHERE id = $1`, id)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

// CreateResult stores a quiz result. When lead is given it is upserted by
// email first and linked to the result.
func (r *QuizRepository) CreateResult(ctx context.Context, result *models.QuizResult, lead *models.Lead) (*models.QuizResult, error) {
	result.ID = uuid.New().String()
	result.CreatedAt = time.Now().UTC()
	if result.Answers == nil {
		result.Answers = map[string]int{}
	}

	err := database.WithTransaction(ctx, r.pool, func(tx pgx.Tx) error {
		if lead != nil {
			upsert := `
				INSERT INTO leads (id, email, name, created_at, updated_at)
				VALUES ($1, $2, $3, $4, $4)
				ON CONFLICT (email) DO UPDATE
				SET name = COALESCE(NULLIF(EXCLUDED.name, ''), leads.name), updated_at = EXCLUDED.updated_at
				RETURNING id
			`
			var leadID string
			err := tx.QueryRow(ctx, upsert,
				uuid.New().String(), strings.ToLower(strings.TrimSpace(lead.Email)), lead.Name, result.CreatedAt,
			).Scan(&leadID)
			if err != nil {
				return database.MapPostgresError(err)
			}
			result.LeadID = &leadID
		}

		insert := `
			INSERT INTO quiz_results (id, score, answers, lead_id, created_at)
			VALUES ($1, $2, $3, $4, $5)
		`
		if _, err := tx.Exec(ctx, insert, result.ID, result.Score, result.Answers, result.LeadID, result.CreatedAt); err != nil {
			return database.MapPostgresError(err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (r *QuizRepository) ListResults(ctx context.Context, limit, offset int) ([]*models.QuizResult, error) {
	query := `
		SELECT id, score, answers, lead_id, created_at
		FROM quiz_results ORDER BY created_at DESC LIMIT $1 OFFSET $2
	`
	rows, err := r.pool.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query results: %w", err)
	}
	defer rows.Close()

	results := make([]*models.QuizResult, 0)
	for rows.Next() {
		var res models.QuizResult
		if err := rows.Scan(&res.ID, &res.Score, &res.Answers, &res.LeadID, &res.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan result: %w", err)
		}
		results = append(results, &res)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return results, nil
}

func (r *QuizRepository) ListLeads(ctx context.Context, limit, offset int) ([]*models.Lead, error) {
	query := `
		SELECT id, email, name, created_at, updated_at
		FROM leads ORDER BY created_at DESC LIMIT $1 OFFSET $2
	`
	rows, err := r.pool.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query leads: %w", err)
	}
	defer rows.Close()

	leads := make([]*models.Lead, 0)
	for rows.Next() {
		var l models.Lead
		if err := rows.Scan(&l.ID, &l.Email, &l.Name, &l.CreatedAt, &l.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan lead: %w", err)
		}
		leads = append(leads, &l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return leads, nil
}
