package tokenmanager

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nkiryanov/videotube/internal/apperrors"
	"github.com/nkiryanov/videotube/internal/models"
)

func mustParseTime(value string) time.Time {
	dt, err := time.Parse("2006-01-02 15:04:05Z07:00", value)
	if err != nil {
		panic(err)
	}
	return dt
}

// Clock that may be moved forward by test
type testClock struct {
	now time.Time
}

func (c *testClock) Now() time.Time            { return c.now }
func (c *testClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func Test_TokenManager(t *testing.T) {
	t.Parallel()

	testUser := models.UserInfo{
		ID:        uuid.New(),
		CreatedAt: mustParseTime("2024-01-01 19:00:01Z"),
		Username:  "testuser",
		Email:     "test@example.com",
	}

	newManager := func(t *testing.T, clock *testClock) *TokenManager {
		m, err := New(Config{
			AccessSecret:  "access-secret",
			RefreshSecret: "refresh-secret",
			AccessTTL:     15 * time.Minute,
			RefreshTTL:    24 * time.Hour,
			Now:           clock.Now,
		})
		require.NoError(t, err, "token manager should be created without errors")
		return m
	}

	t.Run("new defaults", func(t *testing.T) {
		m, err := New(Config{AccessSecret: "a", RefreshSecret: "r"})
		require.NoError(t, err, "token manager should be created without errors")

		require.Equal(t, DefaultAccessTokenTTL, m.AccessTTL(), "default access token TTL should be set")
		require.Equal(t, DefaultRefreshTokenTTL, m.RefreshTTL(), "default refresh token TTL")
		require.Equal(t, defaultSigningMethod, m.alg.Alg(), "default signing method should be set")
	})

	t.Run("new invalid config", func(t *testing.T) {
		tests := []struct {
			name string
			cfg  Config
		}{
			{"empty access secret", Config{RefreshSecret: "r"}},
			{"empty refresh secret", Config{AccessSecret: "a"}},
			{"same secrets", Config{AccessSecret: "same", RefreshSecret: "same"}},
			{"unknown alg", Config{AccessSecret: "a", RefreshSecret: "r", Alg: "HS1024"}},
			{"not hmac alg", Config{AccessSecret: "a", RefreshSecret: "r", Alg: "RS256"}},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				_, err := New(tt.cfg)
				require.Error(t, err)
			})
		}
	})

	t.Run("IssuePair", func(t *testing.T) {
		t.Run("return token pair", func(t *testing.T) {
			clock := &testClock{now: mustParseTime("2025-05-05 10:00:00Z")}
			m := newManager(t, clock)

			pair, err := m.IssuePair(testUser)

			require.NoError(t, err)
			assert.NotEmpty(t, pair.Access.Value, "access token should not be empty")
			assert.Equal(t, clock.now.Add(15*time.Minute), pair.Access.ExpiresAt)
			assert.NotEmpty(t, pair.Refresh.Value, "refresh token should not be empty")
			assert.Equal(t, clock.now.Add(24*time.Hour), pair.Refresh.ExpiresAt)
		})

		t.Run("access claims", func(t *testing.T) {
			clock := &testClock{now: time.Now()}
			m := newManager(t, clock)
			access, err := m.IssueAccess(testUser)
			require.NoError(t, err)

			token, err := jwt.ParseWithClaims(access.Value, &Claims{}, func(token *jwt.Token) (any, error) {
				return []byte("access-secret"), nil
			})
			require.NoError(t, err)
			require.True(t, token.Valid, "access token should be valid")

			claims, ok := token.Claims.(*Claims)
			require.True(t, ok, "claims should be of type Claims")
			assert.Equal(t, testUser.ID, claims.UserID, "user ID in token should match")
			assert.Equal(t, testUser.Username, claims.Username)
			assert.NotEmpty(t, claims.ID, "token has to has jti")
			assert.Equal(t, "HS256", token.Method.Alg())
			assert.WithinDuration(t, access.ExpiresAt, claims.ExpiresAt.Time, 0, "access expires at should match issued token")
		})

		t.Run("generate different tokens within same second", func(t *testing.T) {
			clock := &testClock{now: mustParseTime("2025-05-05 10:00:00Z")}
			m := newManager(t, clock)

			pair1, err := m.IssuePair(testUser)
			require.NoError(t, err)
			pair2, err := m.IssuePair(testUser)
			require.NoError(t, err)

			assert.NotEqual(t, pair1.Refresh.Value, pair2.Refresh.Value, "refresh tokens should be different")
			assert.NotEqual(t, pair1.Access.Value, pair2.Access.Value, "access tokens should be different")
		})
	})

	t.Run("Parse", func(t *testing.T) {
		t.Run("round trip", func(t *testing.T) {
			clock := &testClock{now: time.Now()}
			m := newManager(t, clock)
			pair, err := m.IssuePair(testUser)
			require.NoError(t, err)

			access, err := m.ParseAccess(pair.Access.Value)
			require.NoError(t, err)
			assert.Equal(t, testUser.ID, access.UserID)
			assert.Equal(t, testUser.Username, access.Username)
			assert.NotEmpty(t, access.ID)
			assert.True(t, access.ExpiresAt.Equal(pair.Access.ExpiresAt))

			refresh, err := m.ParseRefresh(pair.Refresh.Value)
			require.NoError(t, err)
			assert.Equal(t, testUser.ID, refresh.UserID)
			assert.NotEqual(t, access.ID, refresh.ID)
		})

		t.Run("cross secret rejected", func(t *testing.T) {
			clock := &testClock{now: time.Now()}
			m := newManager(t, clock)
			pair, err := m.IssuePair(testUser)
			require.NoError(t, err)

			_, err = m.ParseAccess(pair.Refresh.Value)
			require.ErrorIs(t, err, apperrors.ErrSignatureInvalid, "refresh token must not pass as access")

			_, err = m.ParseRefresh(pair.Access.Value)
			require.ErrorIs(t, err, apperrors.ErrSignatureInvalid, "access token must not pass as refresh")
		})

		t.Run("other manager secret rejected", func(t *testing.T) {
			clock := &testClock{now: time.Now()}
			other, err := New(Config{AccessSecret: "other-a", RefreshSecret: "other-r", Now: clock.Now})
			require.NoError(t, err)
			pair, err := other.IssuePair(testUser)
			require.NoError(t, err)

			_, err = newManager(t, clock).ParseAccess(pair.Access.Value)
			require.ErrorIs(t, err, apperrors.ErrSignatureInvalid)
		})

		t.Run("not a token", func(t *testing.T) {
			m := newManager(t, &testClock{now: time.Now()})

			_, err := m.ParseAccess("invalid token")
			require.ErrorIs(t, err, apperrors.ErrMalformedToken, "parsing even not a token should return an error")

			_, err = m.ParseRefresh("")
			require.ErrorIs(t, err, apperrors.ErrMalformedToken)
		})

		t.Run("expired token", func(t *testing.T) {
			clock := &testClock{now: time.Now()}
			m := newManager(t, clock)
			pair, err := m.IssuePair(testUser)
			require.NoError(t, err)

			clock.Advance(15*time.Minute - time.Second)
			_, err = m.ParseAccess(pair.Access.Value)
			require.NoError(t, err, "token is still valid just before ttl ends")

			clock.Advance(time.Second)
			_, err = m.ParseAccess(pair.Access.Value)
			require.ErrorIs(t, err, apperrors.ErrTokenExpired, "token has to become expired")

			_, err = m.ParseRefresh(pair.Refresh.Value)
			require.NoError(t, err, "refresh lives longer")

			clock.Advance(24 * time.Hour)
			_, err = m.ParseRefresh(pair.Refresh.Value)
			require.ErrorIs(t, err, apperrors.ErrTokenExpired)
		})

		t.Run("expired token with wrong signature", func(t *testing.T) {
			clock := &testClock{now: time.Now()}
			m := newManager(t, clock)
			pair, err := m.IssuePair(testUser)
			require.NoError(t, err)

			clock.Advance(48 * time.Hour)
			_, err = m.ParseRefresh(pair.Access.Value)
			require.ErrorIs(t, err, apperrors.ErrSignatureInvalid, "signature is checked before expiration")
		})

		t.Run("not signed token", func(t *testing.T) {
			m := newManager(t, &testClock{now: time.Now()})
			token := jwt.NewWithClaims(
				jwt.SigningMethodNone,
				Claims{
					RegisteredClaims: jwt.RegisteredClaims{
						ID:        uuid.NewString(),
						IssuedAt:  jwt.NewNumericDate(time.Now()),
						ExpiresAt: jwt.NewNumericDate(time.Now().Add(15 * time.Minute)),
					},
					UserID: testUser.ID,
				},
			)
			access, err := token.SignedString(jwt.UnsafeAllowNoneSignatureType)
			require.NoError(t, err)

			_, err = m.ParseAccess(access)
			require.ErrorIs(t, err, apperrors.ErrSignatureInvalid, "Valid token with empty alg must fail")
		})

		t.Run("other hmac alg rejected", func(t *testing.T) {
			m := newManager(t, &testClock{now: time.Now()})
			token := jwt.NewWithClaims(
				jwt.SigningMethodHS512,
				Claims{
					RegisteredClaims: jwt.RegisteredClaims{
						ID:        uuid.NewString(),
						ExpiresAt: jwt.NewNumericDate(time.Now().Add(15 * time.Minute)),
					},
					UserID: testUser.ID,
				},
			)
			access, err := token.SignedString([]byte("access-secret"))
			require.NoError(t, err)

			_, err = m.ParseAccess(access)
			require.ErrorIs(t, err, apperrors.ErrSignatureInvalid)
		})

		t.Run("token without expiration", func(t *testing.T) {
			m := newManager(t, &testClock{now: time.Now()})
			token := jwt.NewWithClaims(
				jwt.SigningMethodHS256,
				Claims{
					RegisteredClaims: jwt.RegisteredClaims{ID: uuid.NewString()},
					UserID:           testUser.ID,
				},
			)
			access, err := token.SignedString([]byte("access-secret"))
			require.NoError(t, err)

			_, err = m.ParseAccess(access)
			require.ErrorIs(t, err, apperrors.ErrMalformedToken)
		})

		t.Run("token without user", func(t *testing.T) {
			m := newManager(t, &testClock{now: time.Now()})
			token := jwt.NewWithClaims(
				jwt.SigningMethodHS256,
				Claims{
					RegisteredClaims: jwt.RegisteredClaims{
						ID:        uuid.NewString(),
						ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
					},
				},
			)
			access, err := token.SignedString([]byte("access-secret"))
			require.NoError(t, err)

			_, err = m.ParseAccess(access)
			require.ErrorIs(t, err, apperrors.ErrMalformedToken)
		})
	})
}
