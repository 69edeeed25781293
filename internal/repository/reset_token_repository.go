package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrResetTokenNotFound is returned when no reset token matches
var ErrResetTokenNotFound = errors.New("password reset token not found")

// ResetTokenRepository defines data access for password reset tokens
type ResetTokenRepository interface {
	Create(ctx context.Context, token *PasswordResetToken) error
	// GetByTokenHash returns the row even when it is past expiry; callers
	// check ExpiresAt themselves
	GetByTokenHash(ctx context.Context, tokenHash string) (*PasswordResetToken, error)
	Delete(ctx context.Context, id uuid.UUID) error
	DeleteByUserID(ctx context.Context, userID uuid.UUID) error
	CleanupExpired(ctx context.Context) (int64, error)
}

type resetTokenRepository struct {
	pool *pgxpool.Pool
}

// NewResetTokenRepository creates a new ResetTokenRepository instance
func NewResetTokenRepository(pool *pgxpool.Pool) ResetTokenRepository {
	return &resetTokenRepository{pool: pool}
}

func (r *resetTokenRepository) Create(ctx context.Context, token *PasswordResetToken) error {
	query := `
		INSERT INTO password_reset_tokens (user_id, token_hash, expires_at)
		VALUES ($1, $2, $3)
		RETURNING id, created_at
	`

	return r.pool.QueryRow(ctx, query,
		token.UserID,
		token.TokenHash,
		token.ExpiresAt,
	).Scan(&token.ID, &token.CreatedAt)
}

func (r *resetTokenRepository) GetByTokenHash(ctx context.Context, tokenHash string) (*PasswordResetToken, error) {
	query := `
		SELECT id, user_id, token_hash, expires_at, created_at
		FROM password_reset_tokens
		WHERE token_hash = $1
	`

	token := &PasswordResetToken{}
	err := r.pool.QueryRow(ctx, query, tokenHash).Scan(
		&token.ID,
		&token.UserID,
		&token.TokenHash,
		&token.ExpiresAt,
		&token.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrResetTokenNotFound
		}
		return nil, err
	}

	return token, nil
}

func (r *resetTokenRepository) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM password_reset_tokens WHERE id = $1`, id)
	return err
}

func (r *resetTokenRepository) DeleteByUserID(ctx context.Context, userID uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM password_reset_tokens WHERE user_id = $1`, userID)
	return err
}

func (r *resetTokenRepository) CleanupExpired(ctx context.Context) (int64, error) {
	result, err := r.pool.Exec(ctx, `DELETE FROM password_reset_tokens WHERE expires_at < $1`, time.Now().UTC())
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}
