package tasks

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"tasker/cmd/identity"
)

// PostgresStore implements Store over PostgreSQL.
//
// The pgx pool is owned by the caller; this store must NOT close it.
type PostgresStore struct {
	pool   *pgxpool.Pool
	schema string
}

// PostgresOption configures the store.
type PostgresOption func(*PostgresStore) error

// WithSchema sets the Postgres schema (default "tasker").
func WithSchema(schema string) PostgresOption {
	return func(s *PostgresStore) error {
		schema = strings.TrimSpace(schema)
		if !identity.PgIdentIsValid(schema) {
			return fmt.Errorf("tasks: invalid schema identifier %q", schema)
		}
		s.schema = schema
		return nil
	}
}

// NewPostgresStore constructs a PostgresStore.
func NewPostgresStore(pool *pgxpool.Pool, opts ...PostgresOption) (*PostgresStore, error) {
	st := &PostgresStore{pool: pool, schema: "tasker"}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(st); err != nil {
			return nil, err
		}
	}
	if st.pool == nil {
		return nil, errors.New("tasks: nil pool")
	}
	return st, nil
}

var _ Store = (*PostgresStore)(nil)

const taskColumns = `id, title, description, is_completed, priority, tags, owner_id, created_at, updated_at`

// sortColumns whitelists ORDER BY targets.
var sortColumns = map[SortField]string{
	SortByID:          "id",
	SortByTitle:       "title",
	SortByDescription: "description",
	SortByIsCompleted: "is_completed",
	SortByPriority:    "priority",
	SortByCreatedAt:   "created_at",
	SortByUpdatedAt:   "updated_at",
}

func scanTask(row pgx.Row, t *Task) error {
	if err := row.Scan(&t.ID, &t.Title, &t.Description, &t.IsCompleted, &t.Priority,
		&t.Tags, &t.OwnerID, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return err
	}
	if t.Tags == nil {
		t.Tags = []string{}
	}
	return nil
}

func (s *PostgresStore) table() string {
	return pgx.Identifier{s.schema, "tasks"}.Sanitize()
}

func (s *PostgresStore) List(ctx context.Context, ownerID string, q Query) ([]Task, error) {
	const op = "tasks.List"

	where := []string{"owner_id = $1"}
	args := []any{ownerID}
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if q.IsCompleted != nil {
		where = append(where, "is_completed = "+arg(*q.IsCompleted))
	}
	if q.Priority != nil {
		where = append(where, "priority = "+arg(*q.Priority))
	}
	if len(q.Tags) > 0 {
		where = append(where, "tags && "+arg(q.Tags)+"::text[]")
	}
	if q.Search != "" {
		where = append(where, "title ILIKE "+arg("%"+escapeLike(q.Search)+"%")+` ESCAPE '\'`)
	}

	col, ok := sortColumns[q.SortBy]
	if !ok {
		col = "created_at"
	}
	dir := "ASC"
	if q.SortDesc {
		dir = "DESC"
	}

	sql := `SELECT ` + taskColumns + ` FROM ` + s.table() +
		` WHERE ` + strings.Join(where, " AND ") +
		` ORDER BY ` + col + ` ` + dir + `, id ` + dir

	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	out := make([]Task, 0)
	for rows.Next() {
		var t Task
		if err := scanTask(rows, &t); err != nil {
			return nil, fmt.Errorf("%s: scan: %w", op, err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return out, nil
}

func (s *PostgresStore) Get(ctx context.Context, id string) (Task, error) {
	const op = "tasks.Get"

	var t Task
	err := scanTask(s.pool.QueryRow(ctx,
		`SELECT `+taskColumns+` FROM `+s.table()+` WHERE id = $1`, id), &t)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Task{}, ErrNotFound
		}
		return Task{}, fmt.Errorf("%s: %w", op, err)
	}
	return t, nil
}

func (s *PostgresStore) Create(ctx context.Context, t Task) (Task, error) {
	const op = "tasks.Create"

	var out Task
	err := scanTask(s.pool.QueryRow(ctx,
		`INSERT INTO `+s.table()+` (`+taskColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 RETURNING `+taskColumns,
		t.ID, t.Title, t.Description, t.IsCompleted, t.Priority, nonNilTags(t.Tags),
		t.OwnerID, t.CreatedAt, t.UpdatedAt,
	), &out)
	if err != nil {
		return Task{}, fmt.Errorf("%s: %w", op, err)
	}
	return out, nil
}

func (s *PostgresStore) Update(ctx context.Context, ownerID string, t Task) (Task, error) {
	const op = "tasks.Update"

	var out Task
	err := scanTask(s.pool.QueryRow(ctx,
		`UPDATE `+s.table()+`
		 SET title = $3, description = $4, is_completed = $5, priority = $6, tags = $7, updated_at = $8
		 WHERE id = $1 AND owner_id = $2
		 RETURNING `+taskColumns,
		t.ID, ownerID, t.Title, t.Description, t.IsCompleted, t.Priority, nonNilTags(t.Tags), t.UpdatedAt,
	), &out)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Task{}, ErrNotFound
		}
		return Task{}, fmt.Errorf("%s: %w", op, err)
	}
	return out, nil
}

func (s *PostgresStore) Delete(ctx context.Context, ownerID, id string) error {
	const op = "tasks.Delete"

	tag, err := s.pool.Exec(ctx, `DELETE FROM `+s.table()+` WHERE id = $1 AND owner_id = $2`, id, ownerID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// escapeLike makes s match literally inside a LIKE pattern.
func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

func nonNilTags(tags []string) []string {
	if tags == nil {
		return []string{}
	}
	return tags
}
