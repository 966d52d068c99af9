package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
)

var ErrDuplicateEmail = errors.New("email already registered")

const userColumns = `
    id, email, hashed_password, full_name, role, is_active, is_verified,
    whop_community_id, whop_community_name, whop_api_key,
    stripe_account_id, stripe_onboarding_complete,
    last_login, created_at, updated_at`

// CreateUserParams represents parameters for creating a user
type CreateUserParams struct {
	Email          string
	HashedPassword string
	FullName       string
}

const sqlCreateUser = `
INSERT INTO users (email, hashed_password, full_name)
VALUES ($1, $2, $3)
RETURNING` + userColumns

func (s *Store) CreateUser(ctx context.Context, params CreateUserParams) (User, error) {
	var user User
	err := s.db.GetContext(ctx, &user, sqlCreateUser,
		params.Email, params.HashedPassword, params.FullName)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return User{}, ErrDuplicateEmail
		}
		s.logger.Error(ctx, "failed to create user", err)
		return User{}, fmt.Errorf("failed to create user: %w", err)
	}
	return user, nil
}

const sqlGetUserByEmail = `
SELECT` + userColumns + `
FROM users
WHERE email = $1`

func (s *Store) GetUserByEmail(ctx context.Context, email string) (User, error) {
	var user User
	err := s.db.GetContext(ctx, &user, sqlGetUserByEmail, email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return User{}, ErrNotFound
		}
		return User{}, fmt.Errorf("failed to get user by email: %w", err)
	}
	return user, nil
}

const sqlGetUserByID = `
SELECT` + userColumns + `
FROM users
WHERE id = $1`

func (s *Store) GetUserByID(ctx context.Context, id uuid.UUID) (User, error) {
	var user User
	err := s.db.GetContext(ctx, &user, sqlGetUserByID, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return User{}, ErrNotFound
		}
		return User{}, fmt.Errorf("failed to get user by id: %w", err)
	}
	return user, nil
}

const sqlUpdateUserLastLogin = `
UPDATE users
SET last_login = NOW(), updated_at = NOW()
WHERE id = $1`

func (s *Store) UpdateUserLastLogin(ctx context.Context, id uuid.UUID) error {
	_, err := s.db.ExecContext(ctx, sqlUpdateUserLastLogin, id)
	if err != nil {
		return fmt.Errorf("failed to update last login: %w", err)
	}
	return nil
}

// UpdateUserProfileParams represents the mutable profile fields
type UpdateUserProfileParams struct {
	FullName          *string
	WhopCommunityID   *string
	WhopCommunityName *string
	WhopAPIKey        *string
}

const sqlUpdateUserProfile = `
UPDATE users
SET full_name = COALESCE($2, full_name),
    whop_community_id = COALESCE($3, whop_community_id),
    whop_community_name = COALESCE($4, whop_community_name),
    whop_api_key = COALESCE($5, whop_api_key),
    updated_at = NOW()
WHERE id = $1
RETURNING` + userColumns

func (s *Store) UpdateUserProfile(ctx context.Context, id uuid.UUID, params UpdateUserProfileParams) (User, error) {
	var user User
	err := s.db.GetContext(ctx, &user, sqlUpdateUserProfile, id,
		params.FullName, params.WhopCommunityID, params.WhopCommunityName, params.WhopAPIKey)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return User{}, ErrNotFound
		}
		s.logger.Error(ctx, "failed to update user profile", err)
		return User{}, fmt.Errorf("failed to update user profile: %w", err)
	}
	return user, nil
}

const sqlUpdateUserStripeAccount = `
UPDATE users
SET stripe_account_id = $2, stripe_onboarding_complete = $3, updated_at = NOW()
WHERE id = $1`

func (s *Store) UpdateUserStripeAccount(ctx context.Context, id uuid.UUID, accountID string, onboardingComplete bool) error {
	_, err := s.db.ExecContext(ctx, sqlUpdateUserStripeAccount, id, accountID, onboardingComplete)
	if err != nil {
		return fmt.Errorf("failed to update stripe account: %w", err)
	}
	return nil
}

const sqlListUserIDs = `
SELECT id FROM users WHERE is_active = true`

// ListUserIDs returns the ids of all active users. Used by scheduled jobs.
func (s *Store) ListUserIDs(ctx context.Context) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := s.db.SelectContext(ctx, &ids, sqlListUserIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to list user ids: %w", err)
	}
	return ids, nil
}
