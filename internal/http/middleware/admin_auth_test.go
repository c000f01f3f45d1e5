package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func serveWithAuth(secret, header string, next http.HandlerFunc) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	rec := httptest.NewRecorder()
	AdminJWT(secret)(next).ServeHTTP(rec, req)
	return rec
}

func noop(http.ResponseWriter, *http.Request) {}

func TestAdminJWT_Rejects(t *testing.T) {
	cases := map[string]struct {
		secret string
		header string
	}{
		"missing secret": {"", "Bearer " + signedAdminToken(t, "secret", "dr.lee")},
		"missing header": {"secret", ""},
		"wrong scheme":   {"secret", "Basic abc"},
		"wrong key":      {"secret", "Bearer " + signedAdminToken(t, "wrong", "dr.lee")},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			rec := serveWithAuth(tc.secret, tc.header, noop)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
			assert.Contains(t, rec.Body.String(), `"code":"CSE-4010"`)
		})
	}
}

func TestAdminJWT_ValidTokenSetsActor(t *testing.T) {
	var actor string
	rec := serveWithAuth("secret", "Bearer "+signedAdminToken(t, "secret", "dr.lee"), func(w http.ResponseWriter, r *http.Request) {
		_, ok := AdminClaimsFromContext(r.Context())
		require.True(t, ok)
		actor = Actor(r.Context())
		w.WriteHeader(http.StatusOK)
	})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "dr.lee", actor)
}

func TestActor_DefaultsToAdmin(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.Equal(t, "admin", Actor(req.Context()))
}

func signedAdminToken(t *testing.T, secret, subject string) string {
	t.Helper()
	claims := jwt.RegisteredClaims{
		Subject:   subject,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(5 * time.Minute)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}
