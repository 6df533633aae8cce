package db

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
)

var ErrResetNotFound = errors.New("reset token not found")

// PasswordResetToken stores only the hash of the 6-digit code mailed to the
// user. UsedAt nil means the code has not been redeemed yet.
type PasswordResetToken struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	CodeHash  string
	ExpiresAt time.Time
	CreatedAt time.Time
	UsedAt    *time.Time
}

type ResetRepository struct {
	db *DB
}

func NewResetRepository(db *DB) *ResetRepository {
	return &ResetRepository{db: db}
}

func (r *ResetRepository) Create(ctx context.Context, token *PasswordResetToken) error {
	query := `
		INSERT INTO password_reset_tokens (id, user_id, code_hash, expires_at, created_at, used_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := r.db.ExecContext(ctx, query,
		token.ID, token.UserID, token.CodeHash, token.ExpiresAt, token.CreatedAt, token.UsedAt,
	)
	return err
}

// InvalidateActiveForUser marks every outstanding unused code for the user as
// used. Requesting a new code supersedes older ones.
func (r *ResetRepository) InvalidateActiveForUser(ctx context.Context, userID uuid.UUID) error {
	query := `
		UPDATE password_reset_tokens
		SET used_at = NOW()
		WHERE user_id = $1 AND used_at IS NULL
	`

	_, err := r.db.ExecContext(ctx, query, userID)
	return err
}

// FindActive returns the unused, unexpired reset record matching the code
// hash, or ErrResetNotFound.
func (r *ResetRepository) FindActive(ctx context.Context, userID uuid.UUID, codeHash string) (*PasswordResetToken, error) {
	query := `
		SELECT id, user_id, code_hash, expires_at, created_at, used_at
		FROM password_reset_tokens
		WHERE user_id = $1 AND code_hash = $2 AND used_at IS NULL AND expires_at > NOW()
	`

	token := &PasswordResetToken{}
	err := r.db.QueryRowContext(ctx, query, userID, codeHash).Scan(
		&token.ID, &token.UserID, &token.CodeHash, &token.ExpiresAt, &token.CreatedAt, &token.UsedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrResetNotFound
		}
		return nil, err
	}
	return token, nil
}

// CompleteReset redeems an active reset code and applies the new password
// hash in a single transaction: the code is marked used, the user's password
// is replaced, and all of the user's refresh tokens are revoked. If the code
// is unknown, expired, or already used, nothing changes and ErrResetNotFound
// is returned.
func (r *ResetRepository) CompleteReset(ctx context.Context, userID uuid.UUID, codeHash, newPasswordHash string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	markUsed := `
		UPDATE password_reset_tokens
		SET used_at = NOW()
		WHERE user_id = $1 AND code_hash = $2 AND used_at IS NULL AND expires_at > NOW()
		RETURNING id
	`

	var tokenID uuid.UUID
	err = tx.QueryRowContext(ctx, markUsed, userID, codeHash).Scan(&tokenID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrResetNotFound
		}
		return err
	}

	updatePassword := `
		UPDATE users
		SET password_hash = $1, updated_at = NOW()
		WHERE id = $2 AND deleted_at IS NULL
	`

	result, err := tx.ExecContext(ctx, updatePassword, newPasswordHash, userID)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrUserNotFound
	}

	revokeSessions := `
		UPDATE refresh_tokens
		SET revoked_at = NOW()
		WHERE user_id = $1 AND revoked_at IS NULL
	`

	if _, err := tx.ExecContext(ctx, revokeSessions, userID); err != nil {
		return err
	}

	return tx.Commit()
}

func (r *ResetRepository) DeleteExpired(ctx context.Context) error {
	query := `
		DELETE FROM password_reset_tokens
		WHERE expires_at < NOW() OR used_at IS NOT NULL
	`

	_, err := r.db.ExecContext(ctx, query)
	return err
}
