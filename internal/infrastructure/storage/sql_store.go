package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/glebarez/go-sqlite"
	_ "github.com/lib/pq"

	"DailyBriefing/internal/domain"
	"DailyBriefing/internal/ports"
)

// Supported SQL dialects.
const (
	DialectPostgres = "postgres"
	DialectSQLite   = "sqlite"
)

// SQLStore keeps users, their sources and the delivery history in a
// relational database.
type SQLStore struct {
	db      *sql.DB
	dialect string
	sb      sq.StatementBuilderType
}

var (
	_ ports.UserRegistry = (*SQLStore)(nil)
	_ ports.HistoryStore = (*SQLStore)(nil)
)

// Open connects to the database named by driver ("postgres" or "sqlite").
func Open(driver, dsn string) (*sql.DB, error) {
	dialect, err := normalizeDialect(driver)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open(dialect, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", dialect, err)
	}
	if dialect == DialectSQLite {
		db.SetMaxOpenConns(1)
	}
	return db, nil
}

// NewSQLStore wraps an open database handle.
func NewSQLStore(db *sql.DB, driver string) (*SQLStore, error) {
	dialect, err := normalizeDialect(driver)
	if err != nil {
		return nil, err
	}
	placeholder := sq.Question
	if dialect == DialectPostgres {
		placeholder = sq.Dollar
	}
	return &SQLStore{
		db:      db,
		dialect: dialect,
		sb:      sq.StatementBuilder.PlaceholderFormat(placeholder),
	}, nil
}

func normalizeDialect(driver string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "postgres", "postgresql", "pq":
		return DialectPostgres, nil
	case "sqlite", "sqlite3", "":
		return DialectSQLite, nil
	default:
		return "", fmt.Errorf("unsupported database driver %q", driver)
	}
}

// Migrate creates the schema when it does not exist yet.
func (s *SQLStore) Migrate(ctx context.Context) error {
	stmts := sqliteSchema
	if s.dialect == DialectPostgres {
		stmts = postgresSchema
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

// ActiveUsers returns active users ordered by id, each with its active
// sources in registry order.
func (s *SQLStore) ActiveUsers(ctx context.Context) ([]domain.User, error) {
	query, args, err := s.sb.
		Select("id", "name", "email", "kindle_email", "topics").
		From("users").
		Where(sq.Eq{"active": true}).
		OrderBy("id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build users query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query users: %w", err)
	}
	defer rows.Close()

	var (
		users []domain.User
		ids   []int64
		index = make(map[int64]int)
	)
	for rows.Next() {
		var (
			u      domain.User
			topics string
		)
		if err := rows.Scan(&u.ID, &u.Name, &u.Email, &u.KindleEmail, &topics); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		u.Active = true
		if u.Topics, err = decodeTopics(topics); err != nil {
			return nil, fmt.Errorf("user %d topics: %w", u.ID, err)
		}
		index[u.ID] = len(users)
		ids = append(ids, u.ID)
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	if err := rows.Close(); err != nil {
		return nil, fmt.Errorf("close rows: %w", err)
	}
	if len(users) == 0 {
		return nil, nil
	}

	sources, err := s.activeSources(ctx, ids)
	if err != nil {
		return nil, err
	}
	for _, src := range sources {
		i := index[src.UserID]
		users[i].Sources = append(users[i].Sources, src)
	}

	return users, nil
}

func (s *SQLStore) activeSources(ctx context.Context, userIDs []int64) ([]domain.Source, error) {
	query, args, err := s.sb.
		Select("id", "user_id", "name", "url").
		From("sources").
		Where(sq.Eq{"user_id": userIDs, "active": true}).
		OrderBy("user_id", "id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build sources query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query sources: %w", err)
	}
	defer rows.Close()

	var sources []domain.Source
	for rows.Next() {
		src := domain.Source{Active: true}
		if err := rows.Scan(&src.ID, &src.UserID, &src.Name, &src.URL); err != nil {
			return nil, fmt.Errorf("scan source: %w", err)
		}
		sources = append(sources, src)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return sources, nil
}

// Delivered returns the subset of urls already delivered to the user.
func (s *SQLStore) Delivered(ctx context.Context, userID int64, urls []string) (map[string]bool, error) {
	result := make(map[string]bool)
	if len(urls) == 0 {
		return result, nil
	}

	query, args, err := s.sb.
		Select("DISTINCT url").
		From("news_history").
		Where(sq.Eq{"user_id": userID, "url": urls}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build history query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var url string
		if err := rows.Scan(&url); err != nil {
			return nil, fmt.Errorf("scan url: %w", err)
		}
		result[url] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}

	return result, nil
}

// Record stores all entries of one delivery in a single transaction.
func (s *SQLStore) Record(ctx context.Context, userID int64, entries []domain.HistoryEntry) error {
	if len(entries) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UTC()
	for _, e := range entries {
		delivered := e.DeliveredAt
		if delivered.IsZero() {
			delivered = now
		}
		query, args, err := s.sb.
			Insert("news_history").
			Columns("user_id", "title", "url", "published_at", "delivered_at").
			Values(userID, e.Title, e.URL, nullTime(e.PublishedAt), delivered.UTC()).
			ToSql()
		if err != nil {
			return fmt.Errorf("build insert: %w", err)
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("insert history %s: %w", e.URL, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// SeedUsers inserts users and their sources, skipping users whose name is
// already registered. It returns how many users were created.
func (s *SQLStore) SeedUsers(ctx context.Context, users []domain.User) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	created := 0
	for _, u := range users {
		exists, err := s.userExists(ctx, tx, u.Name)
		if err != nil {
			return 0, err
		}
		if exists {
			continue
		}

		topics, err := json.Marshal(nonNil(u.Topics))
		if err != nil {
			return 0, fmt.Errorf("encode topics: %w", err)
		}
		query, args, err := s.sb.
			Insert("users").
			Columns("name", "email", "kindle_email", "active", "topics").
			Values(u.Name, u.Email, u.KindleEmail, u.Active, string(topics)).
			Suffix("RETURNING id").
			ToSql()
		if err != nil {
			return 0, fmt.Errorf("build user insert: %w", err)
		}
		var id int64
		if err := tx.QueryRowContext(ctx, query, args...).Scan(&id); err != nil {
			return 0, fmt.Errorf("insert user %s: %w", u.Name, err)
		}

		for _, src := range u.Sources {
			query, args, err := s.sb.
				Insert("sources").
				Columns("user_id", "name", "url", "active").
				Values(id, src.Name, src.URL, src.Active).
				ToSql()
			if err != nil {
				return 0, fmt.Errorf("build source insert: %w", err)
			}
			if _, err := tx.ExecContext(ctx, query, args...); err != nil {
				return 0, fmt.Errorf("insert source %s: %w", src.Name, err)
			}
		}
		created++
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return created, nil
}

func (s *SQLStore) userExists(ctx context.Context, tx *sql.Tx, name string) (bool, error) {
	query, args, err := s.sb.
		Select("COUNT(*)").
		From("users").
		Where(sq.Eq{"name": name}).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("build lookup: %w", err)
	}
	var n int
	if err := tx.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return false, fmt.Errorf("lookup user %s: %w", name, err)
	}
	return n > 0, nil
}

func decodeTopics(raw string) ([]string, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	var topics []string
	if err := json.Unmarshal([]byte(raw), &topics); err != nil {
		return nil, err
	}
	return topics, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
