package postgres

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"feedback_service/internal/config"
	"feedback_service/internal/models"
	"feedback_service/internal/storage"
	"feedback_service/internal/storage/postgres/migrations"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

const uniqueViolation = "23505"

// seq breaks ties between messages stored within the same timestamp.
const messagesQuery = `
	SELECT id, content, created_at
	FROM messages
	WHERE user_id = $1
	ORDER BY created_at DESC, seq DESC;
`

type PostgresRepo struct {
	pool *pgxpool.Pool
}

func New(ctx context.Context, cfg *config.Config) (*PostgresRepo, error) {
	const op = "storage.postgres.New"

	dsn := dsn(cfg)

	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to parse config: %w", op, err)
	}

	poolConfig.MaxConns = 10
	poolConfig.MinConns = 2
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = time.Minute * 30

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to create pool: %w", op, err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("%s: failed to ping database: %w", op, err)
	}

	if err := migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("%s: failed to run migrations: %w", op, err)
	}

	return &PostgresRepo{pool: pool}, nil
}

// * migrate applies the embedded goose migrations through a database/sql view of the pool.
func migrate(ctx context.Context, pool *pgxpool.Pool) error {
	db := stdlib.OpenDBFromPool(pool)
	defer db.Close()

	goose.SetBaseFS(migrations.Migrations)

	if err := goose.SetDialect("pgx"); err != nil {
		return err
	}

	return goose.UpContext(ctx, db, ".")
}

func (r *PostgresRepo) SaveUser(ctx context.Context, acc models.Account) (string, error) {
	const op = "storage.postgres.SaveUser"

	query := `
		INSERT INTO users (username, email, password_hash, is_verified, verification_code,
		                   verification_code_expiry, is_accepting_messages, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id;
	`

	var id int64

	err := r.pool.QueryRow(ctx, query,
		acc.Username,
		acc.Email,
		acc.PassHash,
		acc.IsVerified,
		acc.VerificationCode,
		acc.VerificationCodeExpiry,
		acc.IsAcceptingMessages,
		acc.CreatedAt,
	).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return "", storage.ErrUserExists
		}

		return "", fmt.Errorf("%s: failed to save user: %w", op, err)
	}

	return strconv.FormatInt(id, 10), nil
}

const selectUser = `
	SELECT id, username, email, password_hash, is_verified, verification_code,
	       verification_code_expiry, is_accepting_messages, created_at
	FROM users
`

func (r *PostgresRepo) User(ctx context.Context, email string) (models.Account, error) {
	return r.queryUser(ctx, selectUser+`WHERE email = $1;`, email)
}

func (r *PostgresRepo) UserByUsername(ctx context.Context, username string) (models.Account, error) {
	return r.queryUser(ctx, selectUser+`WHERE username = $1;`, username)
}

func (r *PostgresRepo) UserByIdentifier(ctx context.Context, identifier string) (models.Account, error) {
	return r.queryUser(ctx, selectUser+`WHERE username = $1 OR email = $1 LIMIT 1;`, identifier)
}

func (r *PostgresRepo) UserByID(ctx context.Context, id string) (models.Account, error) {
	uid, err := parseID(id)
	if err != nil {
		return models.Account{}, storage.ErrUserNotFound
	}

	return r.queryUser(ctx, selectUser+`WHERE id = $1;`, uid)
}

func (r *PostgresRepo) UpdatePendingUser(ctx context.Context, id string, passHash []byte, code string, expiresAt time.Time) error {
	query := `
		UPDATE users
		SET password_hash = $1, verification_code = $2, verification_code_expiry = $3
		WHERE id = $4
	`

	return r.execByID(ctx, "storage.postgres.UpdatePendingUser", query, id, passHash, code, expiresAt)
}

func (r *PostgresRepo) SetVerificationCode(ctx context.Context, id string, code string, expiresAt time.Time) error {
	query := `
		UPDATE users
		SET verification_code = $1, verification_code_expiry = $2
		WHERE id = $3
	`

	return r.execByID(ctx, "storage.postgres.SetVerificationCode", query, id, code, expiresAt)
}

// SetEmailVerified flips the account to verified only while it is unverified and still holds code.
func (r *PostgresRepo) SetEmailVerified(ctx context.Context, id string, code string) error {
	const op = "storage.postgres.SetEmailVerified"

	uid, err := parseID(id)
	if err != nil {
		return storage.ErrUserNotFound
	}

	query := `
		UPDATE users
		SET is_verified = TRUE, verification_code = ''
		WHERE id = $1 AND is_verified = FALSE AND verification_code = $2
	`

	tag, err := r.pool.Exec(ctx, query, uid, code)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if tag.RowsAffected() == 0 {
		return storage.ErrUserNotFound
	}

	return nil
}

func (r *PostgresRepo) SetAcceptingMessages(ctx context.Context, id string, accept bool) (models.Account, error) {
	uid, err := parseID(id)
	if err != nil {
		return models.Account{}, storage.ErrUserNotFound
	}

	query := `
		UPDATE users SET is_accepting_messages = $1
		WHERE id = $2
		RETURNING id, username, email, password_hash, is_verified, verification_code,
		          verification_code_expiry, is_accepting_messages, created_at;
	`

	return r.queryUser(ctx, query, accept, uid)
}

func (r *PostgresRepo) AppendMessage(ctx context.Context, id string, msg models.Message) (models.Message, error) {
	const op = "storage.postgres.AppendMessage"

	uid, err := parseID(id)
	if err != nil {
		return models.Message{}, storage.ErrUserNotFound
	}

	msg.ID = uuid.NewString()

	query := `
		INSERT INTO messages (id, user_id, content, created_at)
		SELECT $1, id, $3, $4 FROM users WHERE id = $2
	`

	tag, err := r.pool.Exec(ctx, query, msg.ID, uid, msg.Content, msg.CreatedAt)
	if err != nil {
		return models.Message{}, fmt.Errorf("%s: %w", op, err)
	}

	if tag.RowsAffected() == 0 {
		return models.Message{}, storage.ErrUserNotFound
	}

	return msg, nil
}

func (r *PostgresRepo) Messages(ctx context.Context, id string) ([]models.Message, error) {
	const op = "storage.postgres.Messages"

	uid, err := parseID(id)
	if err != nil {
		return nil, storage.ErrUserNotFound
	}

	var exists bool
	if err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE id = $1)`, uid).Scan(&exists); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if !exists {
		return nil, storage.ErrUserNotFound
	}

	rows, err := r.pool.Query(ctx, messagesQuery, uid)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	msgs := []models.Message{}

	for rows.Next() {
		var m models.Message

		if err := rows.Scan(&m.ID, &m.Content, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}

		msgs = append(msgs, m)
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("%s: %w", op, rows.Err())
	}

	return msgs, nil
}

func (r *PostgresRepo) DeleteMessage(ctx context.Context, id string, messageID string) error {
	const op = "storage.postgres.DeleteMessage"

	uid, err := parseID(id)
	if err != nil {
		return storage.ErrMessageNotFound
	}

	if _, err := uuid.Parse(messageID); err != nil {
		return storage.ErrMessageNotFound
	}

	tag, err := r.pool.Exec(ctx, `DELETE FROM messages WHERE id = $1 AND user_id = $2`, messageID, uid)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if tag.RowsAffected() == 0 {
		return storage.ErrMessageNotFound
	}

	return nil
}

func (r *PostgresRepo) Close() {
	r.pool.Close()
}

func (r *PostgresRepo) queryUser(ctx context.Context, query string, args ...any) (models.Account, error) {
	var u models.Account
	var id int64

	err := r.pool.QueryRow(ctx, query, args...).Scan(
		&id,
		&u.Username,
		&u.Email,
		&u.PassHash,
		&u.IsVerified,
		&u.VerificationCode,
		&u.VerificationCodeExpiry,
		&u.IsAcceptingMessages,
		&u.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Account{}, storage.ErrUserNotFound
		}

		return models.Account{}, err
	}

	u.ID = strconv.FormatInt(id, 10)

	return u, nil
}

func (r *PostgresRepo) execByID(ctx context.Context, op, query, id string, args ...any) error {
	uid, err := parseID(id)
	if err != nil {
		return storage.ErrUserNotFound
	}

	tag, err := r.pool.Exec(ctx, query, append(args, uid)...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if tag.RowsAffected() == 0 {
		return storage.ErrUserNotFound
	}

	return nil
}

func parseID(id string) (int64, error) {
	return strconv.ParseInt(id, 10, 64)
}

// * dsn builds the key/value connection string from config.
func dsn(cfg *config.Config) string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s database=%s sslmode=%s",
		cfg.Postgres.Host,
		cfg.Postgres.Port,
		cfg.Postgres.User,
		cfg.Postgres.Password,
		cfg.Postgres.DBName,
		cfg.Postgres.SSLMode,
	)
}
