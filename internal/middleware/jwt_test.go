package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/peerlearn/backend/internal/auth"
)

func runJWT(t *testing.T, svc *auth.JWTService, header string) (*gin.Context, *httptest.ResponseRecorder) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/users/me", nil)
	if header != "" {
		c.Request.Header.Set("Authorization", header)
	}
	JWT(svc)(c)
	return c, rec
}

func TestJWTMiddlewareSetsClaims(t *testing.T) {
	svc := auth.NewJWTService("test-secret", 24)
	userID := uuid.New()
	token, err := svc.Generate(userID, "priya@example.com", "Priya", "instructor")
	require.NoError(t, err)

	c, _ := runJWT(t, svc, "Bearer "+token)

	assert.False(t, c.IsAborted())
	assert.Equal(t, userID, c.MustGet(auth.ContextUserID).(uuid.UUID))
	assert.Equal(t, "instructor", c.MustGet(auth.ContextUserRole).(string))
	assert.Equal(t, "Priya", c.MustGet(auth.ContextUserName).(string))
}

func TestJWTMiddlewareRejectsBadHeaders(t *testing.T) {
	svc := auth.NewJWTService("test-secret", 24)

	for _, header := range []string{"", "Bearer not.a.token", "Basic abc123"} {
		c, rec := runJWT(t, svc, header)
		assert.True(t, c.IsAborted(), "header %q", header)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, "header %q", header)
	}
}

func TestRequireRole(t *testing.T) {
	gin.SetMode(gin.TestMode)

	cases := []struct {
		role    string
		allowed bool
	}{
		{"instructor", true},
		{"student", false},
		{"", false},
	}
	for _, tc := range cases {
		rec := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(rec)
		c.Request = httptest.NewRequest(http.MethodPatch, "/users/session-status", nil)
		if tc.role != "" {
			c.Set(auth.ContextUserRole, tc.role)
		}
		RequireRole("instructor")(c)
		assert.Equal(t, tc.allowed, !c.IsAborted(), "role %q", tc.role)
	}
}
