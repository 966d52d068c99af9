package processor

import (
	"context"
	"errors"
	"time"

	"lead-engine/internal/observability"
	"lead-engine/internal/store"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrEmailAlreadyExists = errors.New("email already exists")
	ErrInvalidCredentials = errors.New("invalid email or password")
)

// AuthStore defines the database operations required by AuthProcessor
type AuthStore interface {
	CreateUser(ctx context.Context, params store.CreateUserParams) (store.User, error)
	GetUserByEmail(ctx context.Context, email string) (store.User, error)
	GetUserByID(ctx context.Context, id uuid.UUID) (store.User, error)
	UpdateUserLastLogin(ctx context.Context, id uuid.UUID) error
	UpdateUserProfile(ctx context.Context, id uuid.UUID, params store.UpdateUserProfileParams) (store.User, error)
}

type AuthProcessor struct {
	store     AuthStore
	jwtSecret string
	logger    *observability.Logger
}

func New(store AuthStore, jwtSecret string, logger *observability.Logger) AuthProcessor {
	return AuthProcessor{
		store:     store,
		jwtSecret: jwtSecret,
		logger:    logger,
	}
}

// UserProfile is the user shape returned to API clients. The password hash
// and Whop API key never leave the processor.
type UserProfile struct {
	ID                       uuid.UUID `json:"id"`
	Email                    string    `json:"email"`
	FullName                 string    `json:"full_name"`
	Role                     string    `json:"role"`
	WhopCommunityID          *string   `json:"whop_community_id,omitempty"`
	WhopCommunityName        *string   `json:"whop_community_name,omitempty"`
	StripeAccountID          *string   `json:"stripe_account_id,omitempty"`
	StripeOnboardingComplete bool      `json:"stripe_onboarding_complete"`
}

func profileFromUser(user store.User) UserProfile {
	return UserProfile{
		ID:                       user.ID,
		Email:                    user.Email,
		FullName:                 user.FullName,
		Role:                     user.Role,
		WhopCommunityID:          user.WhopCommunityID,
		WhopCommunityName:        user.WhopCommunityName,
		StripeAccountID:          user.StripeAccountID,
		StripeOnboardingComplete: user.StripeOnboardingComplete,
	}
}

func (p *AuthProcessor) Signup(ctx context.Context, fullName, email, password string) (UserProfile, string, error) {
	ctx = observability.WithFields(ctx, observability.Field{Key: "email", Value: email})

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		p.logger.Error(ctx, "failed to hash password", err)
		return UserProfile{}, "", err
	}

	user, err := p.store.CreateUser(ctx, store.CreateUserParams{
		Email:          email,
		HashedPassword: string(hashedPassword),
		FullName:       fullName,
	})
	if err != nil {
		if errors.Is(err, store.ErrDuplicateEmail) {
			return UserProfile{}, "", ErrEmailAlreadyExists
		}
		p.logger.Error(ctx, "failed to create user", err)
		return UserProfile{}, "", err
	}

	token, err := p.generateJWTToken(user)
	if err != nil {
		p.logger.Error(ctx, "failed to generate jwt token", err)
		return UserProfile{}, "", err
	}
	return profileFromUser(user), token, nil
}

func (p *AuthProcessor) Login(ctx context.Context, email, password string) (UserProfile, string, error) {
	ctx = observability.WithFields(ctx, observability.Field{Key: "email", Value: email})

	user, err := p.store.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return UserProfile{}, "", ErrInvalidCredentials
		}
		p.logger.Error(ctx, "failed to get user by email", err)
		return UserProfile{}, "", err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.HashedPassword), []byte(password)); err != nil {
		return UserProfile{}, "", ErrInvalidCredentials
	}

	if err := p.store.UpdateUserLastLogin(ctx, user.ID); err != nil {
		p.logger.InfoWithError(ctx, "failed to update last login", err)
	}

	token, err := p.generateJWTToken(user)
	if err != nil {
		p.logger.Error(ctx, "failed to generate jwt token", err)
		return UserProfile{}, "", err
	}
	return profileFromUser(user), token, nil
}

func (p *AuthProcessor) GetProfile(ctx context.Context, userID uuid.UUID) (UserProfile, error) {
	user, err := p.store.GetUserByID(ctx, userID)
	if err != nil {
		p.logger.Error(ctx, "failed to get user by id", err)
		return UserProfile{}, err
	}
	return profileFromUser(user), nil
}

// UpdateProfileParams carries the user-editable profile fields. Nil fields
// are left unchanged.
type UpdateProfileParams struct {
	FullName          *string
	WhopCommunityID   *string
	WhopCommunityName *string
	WhopAPIKey        *string
}

func (p *AuthProcessor) UpdateProfile(ctx context.Context, userID uuid.UUID, params UpdateProfileParams) (UserProfile, error) {
	user, err := p.store.UpdateUserProfile(ctx, userID, store.UpdateUserProfileParams{
		FullName:          params.FullName,
		WhopCommunityID:   params.WhopCommunityID,
		WhopCommunityName: params.WhopCommunityName,
		WhopAPIKey:        params.WhopAPIKey,
	})
	if err != nil {
		p.logger.Error(ctx, "failed to update user profile", err)
		return UserProfile{}, err
	}
	return profileFromUser(user), nil
}

func (p *AuthProcessor) generateJWTToken(user store.User) (string, error) {
	expirationTime := time.Now().Add(24 * time.Hour) // Token valid for 24 hours
	claims := jwt.MapClaims{
		"sub":  user.ID.String(),
		"role": user.Role,
		"iss":  "lead-engine",
		"aud":  "lead-engine",
		"exp":  expirationTime.Unix(),
		"iat":  time.Now().Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(p.jwtSecret))
	if err != nil {
		return "", err
	}
	return tokenString, nil
}
