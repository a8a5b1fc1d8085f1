package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shenikar/cityvoice/internal/models"
	"github.com/shenikar/cityvoice/internal/service"
)

const issueColumns = `
	id,
	title,
	description,
	category,
	status,
	latitude,
	longitude,
	address,
	images,
	reported_by,
	votes,
	comments,
	version,
	created_at,
	updated_at`

type PostgresIssueRepository struct {
	db *pgxpool.Pool
}

func NewPostgresIssueRepository(db *pgxpool.Pool) service.IssueRepository {
	return &PostgresIssueRepository{db: db}
}

func scanIssue(row pgx.Row) (*models.Issue, error) {
	issue := &models.Issue{}
	err := row.Scan(
		&issue.ID,
		&issue.Title,
		&issue.Description,
		&issue.Category,
		&issue.Status,
		&issue.Location.Latitude,
		&issue.Location.Longitude,
		&issue.Location.Address,
		&issue.Images,
		&issue.ReportedBy,
		&issue.Votes,
		&issue.Comments,
		&issue.Version,
		&issue.CreatedAt,
		&issue.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return issue, nil
}

// List возвращает все обращения в порядке создания
func (r *PostgresIssueRepository) List(ctx context.Context) ([]*models.Issue, error) {
	query := `SELECT ` + issueColumns + ` FROM issues ORDER BY created_at, id;`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list issues: %w", err)
	}
	defer rows.Close()

	issues := make([]*models.Issue, 0)
	for rows.Next() {
		issue, err := scanIssue(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan issue row: %w", err)
		}
		issues = append(issues, issue)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error list iteration: %w", err)
	}
	return issues, nil
}

// Create сохраняет обращение, поля которого уже заполнены сервисом
func (r *PostgresIssueRepository) Create(ctx context.Context, issue *models.Issue) error {
	query := `
		INSERT INTO issues (` + issueColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15);
	`
	images := issue.Images
	if images == nil {
		images = []string{}
	}
	_, err := r.db.Exec(ctx, query,
		issue.ID,
		issue.Title,
		issue.Description,
		issue.Category,
		issue.Status,
		issue.Location.Latitude,
		issue.Location.Longitude,
		issue.Location.Address,
		images,
		issue.ReportedBy,
		issue.Votes,
		issue.Comments,
		issue.Version,
		issue.CreatedAt,
		issue.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create issue: %w", err)
	}
	return nil
}

// GetByID возвращает обращение по его UUID
func (r *PostgresIssueRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Issue, error) {
	query := `SELECT ` + issueColumns + ` FROM issues WHERE id = $1;`

	issue, err := scanIssue(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("issue with id %s: %w", id, service.ErrIssueNotFound)
		}
		return nil, fmt.Errorf("failed to get issue by id: %w", err)
	}
	return issue, nil
}

// UpdateStatus перезаписывает статус; при expectedVersion != 0 обновление условное
func (r *PostgresIssueRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status models.IssueStatus, expectedVersion int64) (*models.Issue, error) {
	query := `
		UPDATE issues SET
			status = $1,
			version = version + 1,
			updated_at = NOW()
		WHERE id = $2 AND ($3::bigint = 0 OR version = $3::bigint)
		RETURNING ` + issueColumns + `;
	`
	issue, err := scanIssue(r.db.QueryRow(ctx, query, status, id, expectedVersion))
	if err == nil {
		return issue, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("failed to update issue status: %w", err)
	}

	// Ни одна строка не обновлена: либо обращения нет, либо версия устарела
	var exists bool
	if err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM issues WHERE id = $1);`, id).Scan(&exists); err != nil {
		return nil, fmt.Errorf("failed to check issue existence: %w", err)
	}
	if !exists {
		return nil, fmt.Errorf("issue with id %s not found for update: %w", id, service.ErrIssueNotFound)
	}
	return nil, fmt.Errorf("issue with id %s, expected version %d: %w", id, expectedVersion, service.ErrVersionConflict)
}

// ToggleVote в одной транзакции добавляет или удаляет голос и пересчитывает счетчик
func (r *PostgresIssueRepository) ToggleVote(ctx context.Context, issueID, userID uuid.UUID) (bool, int, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return false, 0, fmt.Errorf("failed to begin vote transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	// Блокируем строку обращения до конца транзакции
	var votes int
	err = tx.QueryRow(ctx, `SELECT votes FROM issues WHERE id = $1 FOR UPDATE;`, issueID).Scan(&votes)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, 0, fmt.Errorf("issue with id %s: %w", issueID, service.ErrIssueNotFound)
		}
		return false, 0, fmt.Errorf("failed to lock issue for vote: %w", err)
	}

	cmdTag, err := tx.Exec(ctx, `DELETE FROM issue_votes WHERE issue_id = $1 AND user_id = $2;`, issueID, userID)
	if err != nil {
		return false, 0, fmt.Errorf("failed to remove vote: %w", err)
	}

	voted := cmdTag.RowsAffected() == 0
	delta := -1
	if voted {
		if _, err := tx.Exec(ctx, `INSERT INTO issue_votes (issue_id, user_id) VALUES ($1, $2);`, issueID, userID); err != nil {
			return false, 0, fmt.Errorf("failed to add vote: %w", err)
		}
		delta = 1
	}

	err = tx.QueryRow(ctx, `
		UPDATE issues SET
			votes = GREATEST(votes + $1, 0),
			version = version + 1,
			updated_at = NOW()
		WHERE id = $2
		RETURNING votes;
	`, delta, issueID).Scan(&votes)
	if err != nil {
		return false, 0, fmt.Errorf("failed to update vote counter: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return false, 0, fmt.Errorf("failed to commit vote transaction: %w", err)
	}
	return voted, votes, nil
}
