package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/templui/sharebox/internal/model"
)

var ErrActivityNotFound = errors.New("activity not found")

type ActivityRepository interface {
	Create(ctx context.Context, activity *model.Activity) error
	List(ctx context.Context, filter model.ActivityFilter) ([]*model.Activity, error)
	Count(ctx context.Context, filter model.ActivityFilter) (int, error)
	Delete(ctx context.Context, id string) error
	DeleteAll(ctx context.Context) (int64, error)
	WithTx(tx *sqlx.Tx) ActivityRepository
}

type activityRepository struct {
	db sqlx.ExtContext
}

func NewActivityRepository(db *sqlx.DB) ActivityRepository {
	return &activityRepository{db: db}
}

func (r *activityRepository) WithTx(tx *sqlx.Tx) ActivityRepository {
	return &activityRepository{db: tx}
}

func (r *activityRepository) Create(ctx context.Context, a *model.Activity) error {
	query := `INSERT INTO activity (id, type, details, category, created_at, changed_by, user_id,
		endpoint, http_method, ip_address, user_agent, request_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	_, err := r.db.ExecContext(ctx, query,
		a.ID,
		a.Type,
		a.Details,
		a.Category,
		a.CreatedAt,
		a.ChangedBy,
		a.UserID,
		a.Endpoint,
		a.HTTPMethod,
		a.IPAddress,
		a.UserAgent,
		a.RequestID,
	)
	return err
}

const activityFrom = `FROM activity a
	LEFT JOIN users cb ON cb.id = a.changed_by
	LEFT JOIN users u ON u.id = a.user_id`

// List returns matching activity, newest first.
func (r *activityRepository) List(ctx context.Context, filter model.ActivityFilter) ([]*model.Activity, error) {
	where, args := activityWhere(filter)

	query := `SELECT a.id, a.type, a.details, a.category, a.created_at, a.changed_by, a.user_id,
		a.endpoint, a.http_method, a.ip_address, a.user_agent, a.request_id,
		cb.username AS changed_by_name, u.username AS username ` + activityFrom + where +
		` ORDER BY a.created_at DESC, a.id`

	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
		if filter.Offset > 0 {
			args = append(args, filter.Offset)
			query += fmt.Sprintf(" OFFSET $%d", len(args))
		}
	}

	var activities []*model.Activity
	err := sqlx.SelectContext(ctx, r.db, &activities, query, args...)
	if err != nil {
		return nil, err
	}

	return activities, nil
}

func (r *activityRepository) Count(ctx context.Context, filter model.ActivityFilter) (int, error) {
	where, args := activityWhere(filter)

	var count int
	err := sqlx.GetContext(ctx, r.db, &count, `SELECT COUNT(*) `+activityFrom+where, args...)
	if err != nil {
		return 0, err
	}

	return count, nil
}

func (r *activityRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM activity WHERE id = $1`, id)
	if err != nil {
		return err
	}

	return requireAffected(result, ErrActivityNotFound)
}

func (r *activityRepository) DeleteAll(ctx context.Context) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM activity`)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// activityWhere builds the WHERE clause with placeholders numbered in argument order.
func activityWhere(f model.ActivityFilter) (string, []any) {
	var clauses []string
	var args []any

	next := func(arg any) string {
		args = append(args, arg)
		return fmt.Sprintf("$%d", len(args))
	}

	if f.Username != "" {
		pattern := "%" + strings.ToLower(f.Username) + "%"
		clauses = append(clauses, fmt.Sprintf("(LOWER(cb.username) LIKE %s OR LOWER(u.username) LIKE %s)", next(pattern), next(pattern)))
	}
	if f.Details != "" {
		clauses = append(clauses, "LOWER(a.details) LIKE "+next("%"+strings.ToLower(f.Details)+"%"))
	}
	if f.Category != "" {
		clauses = append(clauses, "a.category = "+next(f.Category))
	}
	if f.UserID != "" {
		clauses = append(clauses, fmt.Sprintf("(a.user_id = %s OR a.changed_by = %s)", next(f.UserID), next(f.UserID)))
	}
	if f.From != nil {
		clauses = append(clauses, "a.created_at >= "+next(f.From.UTC()))
	}
	if f.To != nil {
		clauses = append(clauses, "a.created_at <= "+next(f.To.UTC()))
	}

	if len(clauses) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}
