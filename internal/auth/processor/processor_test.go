package processor

import (
	"context"
	"testing"
	"time"

	"lead-engine/internal/observability"
	"lead-engine/internal/store"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type fakeAuthStore struct {
	users          map[string]store.User
	lastLoginCalls int
}

func newFakeAuthStore() *fakeAuthStore {
	return &fakeAuthStore{users: make(map[string]store.User)}
}

func (f *fakeAuthStore) CreateUser(ctx context.Context, params store.CreateUserParams) (store.User, error) {
	if _, ok := f.users[params.Email]; ok {
		return store.User{}, store.ErrDuplicateEmail
	}
	user := store.User{
		ID:             uuid.New(),
		Email:          params.Email,
		HashedPassword: params.HashedPassword,
		FullName:       params.FullName,
		Role:           "user",
		IsActive:       true,
	}
	f.users[params.Email] = user
	return user, nil
}

func (f *fakeAuthStore) GetUserByEmail(ctx context.Context, email string) (store.User, error) {
	user, ok := f.users[email]
	if !ok {
		return store.User{}, store.ErrNotFound
	}
	return user, nil
}

func (f *fakeAuthStore) GetUserByID(ctx context.Context, id uuid.UUID) (store.User, error) {
	for _, user := range f.users {
		if user.ID == id {
			return user, nil
		}
	}
	return store.User{}, store.ErrNotFound
}

func (f *fakeAuthStore) UpdateUserLastLogin(ctx context.Context, id uuid.UUID) error {
	f.lastLoginCalls++
	return nil
}

func (f *fakeAuthStore) UpdateUserProfile(ctx context.Context, id uuid.UUID, params store.UpdateUserProfileParams) (store.User, error) {
	for email, user := range f.users {
		if user.ID != id {
			continue
		}
		if params.FullName != nil {
			user.FullName = *params.FullName
		}
		if params.WhopCommunityID != nil {
			user.WhopCommunityID = params.WhopCommunityID
		}
		if params.WhopCommunityName != nil {
			user.WhopCommunityName = params.WhopCommunityName
		}
		if params.WhopAPIKey != nil {
			user.WhopAPIKey = params.WhopAPIKey
		}
		f.users[email] = user
		return user, nil
	}
	return store.User{}, store.ErrNotFound
}

func newTestAuthProcessor(s AuthStore) AuthProcessor {
	return New(s, "test-secret", observability.NewLogger())
}

func TestSignup_DuplicateEmail(t *testing.T) {
	authStore := newFakeAuthStore()
	p := newTestAuthProcessor(authStore)

	_, _, err := p.Signup(context.Background(), "First User", "dup@example.com", "password123")
	require.NoError(t, err)

	_, _, err = p.Signup(context.Background(), "Second User", "dup@example.com", "password456")
	require.ErrorIs(t, err, ErrEmailAlreadyExists)
}

func TestSignup_HashesPassword(t *testing.T) {
	authStore := newFakeAuthStore()
	p := newTestAuthProcessor(authStore)

	_, token, err := p.Signup(context.Background(), "Jane Doe", "jane@example.com", "password123")
	require.NoError(t, err)
	assert.NotEmpty(t, token)

	stored := authStore.users["jane@example.com"]
	assert.NotEqual(t, "password123", stored.HashedPassword)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(stored.HashedPassword), []byte("password123")))
}

func TestLogin_Success(t *testing.T) {
	authStore := newFakeAuthStore()
	p := newTestAuthProcessor(authStore)

	_, _, err := p.Signup(context.Background(), "Jane Doe", "jane@example.com", "password123")
	require.NoError(t, err)

	user, token, err := p.Login(context.Background(), "jane@example.com", "password123")
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.Equal(t, "jane@example.com", user.Email)
	assert.Equal(t, 1, authStore.lastLoginCalls)
}

func TestLogin_WrongPassword(t *testing.T) {
	authStore := newFakeAuthStore()
	p := newTestAuthProcessor(authStore)

	_, _, err := p.Signup(context.Background(), "Jane Doe", "jane@example.com", "password123")
	require.NoError(t, err)

	_, _, err = p.Login(context.Background(), "jane@example.com", "wrongpassword")
	require.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestLogin_UnknownEmail(t *testing.T) {
	p := newTestAuthProcessor(newFakeAuthStore())

	_, _, err := p.Login(context.Background(), "nobody@example.com", "password123")
	require.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestJWT_RoundTrip(t *testing.T) {
	authStore := newFakeAuthStore()
	p := newTestAuthProcessor(authStore)

	user, token, err := p.Signup(context.Background(), "Jane Doe", "jane@example.com", "password123")
	require.NoError(t, err)

	claims, err := p.ValidateJWTToken(context.Background(), token)
	require.NoError(t, err)

	sub, err := claims.GetSubject()
	require.NoError(t, err)
	assert.Equal(t, user.ID.String(), sub)
	assert.Equal(t, "lead-engine", claims.Issuer)
	assert.Equal(t, "user", claims.Role)
	assert.WithinDuration(t, time.Now().Add(24*time.Hour), claims.ExpirationTime.Time, time.Minute)
}

func TestJWT_WrongSecretRejected(t *testing.T) {
	authStore := newFakeAuthStore()
	p := newTestAuthProcessor(authStore)

	_, token, err := p.Signup(context.Background(), "Jane Doe", "jane@example.com", "password123")
	require.NoError(t, err)

	other := New(authStore, "different-secret", observability.NewLogger())
	_, err = other.ValidateJWTToken(context.Background(), token)
	require.ErrorIs(t, err, ErrParseJWTToken)
}

func TestJWT_GarbageRejected(t *testing.T) {
	p := newTestAuthProcessor(newFakeAuthStore())

	_, err := p.ValidateJWTToken(context.Background(), "not.a.token")
	require.Error(t, err)
}

func TestUpdateProfile_PartialUpdate(t *testing.T) {
	authStore := newFakeAuthStore()
	p := newTestAuthProcessor(authStore)

	created, _, err := p.Signup(context.Background(), "Jane Doe", "jane@example.com", "password123")
	require.NoError(t, err)

	communityID := "comm_123"
	updated, err := p.UpdateProfile(context.Background(), created.ID, UpdateProfileParams{
		WhopCommunityID: &communityID,
	})
	require.NoError(t, err)
	assert.Equal(t, "Jane Doe", updated.FullName)
	require.NotNil(t, updated.WhopCommunityID)
	assert.Equal(t, "comm_123", *updated.WhopCommunityID)
}
