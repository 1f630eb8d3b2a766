package feed

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/clintrovert/ourstreet/pkg/types"
)

var (
	// ErrNoSource is returned when an issue must be looked up but no store is configured
	ErrNoSource = errors.New("no issue source configured")

	// ErrNotFound is returned when an issue id does not exist
	ErrNotFound = errors.New("issue not found")
)

const issueColumns = `id, title, description, category, location, photo_url, status, priority, created_at`

// IssueQuery selects recently created issues
type IssueQuery struct {
	// Since is inclusive
	Since time.Time
	// Priorities filters by priority; empty matches all
	Priorities []types.Priority
	// Exclude skips issues that were already delivered
	Exclude []string
	Limit   int
}

// Source reads reported issues from the issue store
type Source interface {
	// NewIssues returns issues matching q, oldest first
	NewIssues(ctx context.Context, q IssueQuery) ([]*types.Issue, error)
	// Issue returns a single issue by id
	Issue(ctx context.Context, id string) (*types.Issue, error)
}

// PostgresSource reads issues from the platform's Postgres (Supabase) issues table
type PostgresSource struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewPostgresSource opens a connection pool to the issue store
func NewPostgresSource(dsn string, logger *zap.Logger) (*PostgresSource, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open issue store: %w", err)
	}
	db.SetMaxOpenConns(4)
	db.SetConnMaxIdleTime(5 * time.Minute)

	return NewPostgresSourceFromDB(db, logger), nil
}

// NewPostgresSourceFromDB wraps an existing pool
func NewPostgresSourceFromDB(db *sql.DB, logger *zap.Logger) *PostgresSource {
	return &PostgresSource{db: db, logger: logger}
}

// Ping checks the store is reachable
func (s *PostgresSource) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the pool
func (s *PostgresSource) Close() error {
	return s.db.Close()
}

// NewIssues implements Source
func (s *PostgresSource) NewIssues(ctx context.Context, q IssueQuery) ([]*types.Issue, error) {
	query := `SELECT ` + issueColumns + ` FROM issues WHERE created_at >= $1`
	args := []any{q.Since}
	if len(q.Priorities) > 0 {
		wanted := make([]string, len(q.Priorities))
		for i, p := range q.Priorities {
			wanted[i] = string(p)
		}
		args = append(args, pq.Array(wanted))
		query += fmt.Sprintf(` AND priority = ANY($%d)`, len(args))
	}
	if len(q.Exclude) > 0 {
		args = append(args, pq.Array(q.Exclude))
		query += fmt.Sprintf(` AND id::text <> ALL($%d)`, len(args))
	}
	query += fmt.Sprintf(` ORDER BY created_at ASC LIMIT %d`, q.Limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query new issues: %w", err)
	}
	defer rows.Close()

	var issues []*types.Issue
	for rows.Next() {
		issue, err := scanIssue(rows)
		if err != nil {
			s.logger.Warn("failed to scan issue row", zap.Error(err))
			continue
		}
		issues = append(issues, issue)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read new issues: %w", err)
	}

	return issues, nil
}

// Issue implements Source
func (s *PostgresSource) Issue(ctx context.Context, id string) (*types.Issue, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+issueColumns+` FROM issues WHERE id = $1`, id)
	issue, err := scanIssue(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get issue %s: %w", id, err)
	}
	return issue, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanIssue(row scanner) (*types.Issue, error) {
	var (
		issue                                  types.Issue
		description, location, photo, priority sql.NullString
		category, status                       string
	)

	err := row.Scan(
		&issue.ID,
		&issue.Title,
		&description,
		&category,
		&location,
		&photo,
		&status,
		&priority,
		&issue.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	issue.Description = description.String
	issue.Category = types.Category(category)
	issue.Location = location.String
	issue.PhotoURL = photo.String
	issue.Status = types.Status(status)
	issue.Priority = types.Priority(priority.String)
	if issue.Priority == "" {
		issue.Priority = types.PriorityMedium
	}

	return &issue, nil
}
