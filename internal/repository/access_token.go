package repository

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"challan-ledger/internal/domain"
)

type AccessTokenRepository struct {
	db *sql.DB
}

func NewAccessTokenRepository(db *sql.DB) *AccessTokenRepository {
	return &AccessTokenRepository{db: db}
}

// FindByPlainToken resolves a bearer token of the form "<id>|<secret>" (or a
// bare secret) to its stored sha256 hash.
func (r *AccessTokenRepository) FindByPlainToken(ctx context.Context, plainToken string) (*domain.AccessToken, error) {
	plainToken = strings.TrimSpace(plainToken)
	if plainToken == "" {
		return nil, errors.New("empty token")
	}

	var (
		tokenID   *int64
		tokenPart string
	)

	if idx := strings.Index(plainToken, "|"); idx > 0 {
		if id, err := strconv.ParseInt(plainToken[:idx], 10, 64); err == nil {
			tokenID = &id
		}
		tokenPart = plainToken[idx+1:]
	} else {
		tokenPart = plainToken
	}

	sum := sha256.Sum256([]byte(tokenPart))
	hashStr := fmt.Sprintf("%x", sum)

	var t domain.AccessToken

	if tokenID != nil {
		err := r.db.QueryRowContext(ctx, `
			SELECT id, token, user_id, abilities, expires_at
			FROM access_tokens
			WHERE id = $1 AND (expires_at IS NULL OR expires_at > $2)
		`, *tokenID, time.Now()).Scan(
			&t.ID, &t.TokenHash, &t.UserID, &t.Abilities, &t.ExpiresAt,
		)
		if err == nil && t.TokenHash == hashStr {
			return &t, nil
		}
	}

	err := r.db.QueryRowContext(ctx, `
		SELECT id, token, user_id, abilities, expires_at
		FROM access_tokens
		WHERE token = $1 AND (expires_at IS NULL OR expires_at > $2)
	`, hashStr, time.Now()).Scan(
		&t.ID, &t.TokenHash, &t.UserID, &t.Abilities, &t.ExpiresAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errors.New("token not found")
		}
		return nil, &domain.StorageError{Op: "select access token", Err: err}
	}
	return &t, nil
}

// FindUserByID resolves the acting cashier so collections can stamp the
// display name on the receipt.
func (r *AccessTokenRepository) FindUserByID(ctx context.Context, id int64) (*domain.User, error) {
	var u domain.User

	err := r.db.QueryRowContext(ctx, `
		SELECT id, first_name, last_name, middle_name, username, email, phone
		FROM users
		WHERE id = $1 AND deleted_at IS NULL
	`, id).Scan(
		&u.ID, &u.FirstName, &u.LastName, &u.MiddleName, &u.Username, &u.Email, &u.Phone,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errors.New("user not found")
		}
		return nil, &domain.StorageError{Op: "select user", Err: err}
	}
	return &u, nil
}
