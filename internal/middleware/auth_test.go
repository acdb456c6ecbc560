package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"stackcommunity_backend/internal/config"
	"stackcommunity_backend/internal/model"
	"stackcommunity_backend/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.JWT.Secret = "middleware-secret"
	return cfg
}

func tokenFor(t *testing.T, cfg *config.Config, role model.UserRole) string {
	t.Helper()
	user := &model.User{Username: "alice", Role: role}
	user.ID = 7
	token, err := util.GenerateJWT(user, cfg.JWT.Secret, time.Hour)
	require.NoError(t, err)
	return token
}

func newRouter(handlers ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	handlers = append(handlers, func(c *gin.Context) {
		claims := util.GetUserFromContext(c)
		if claims == nil {
			c.String(http.StatusOK, "guest")
			return
		}
		c.String(http.StatusOK, claims.Username)
	})
	r.GET("/", handlers...)
	return r
}

func do(r *gin.Engine, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuthMiddleware(t *testing.T) {
	cfg := testConfig()
	r := newRouter(AuthMiddleware(cfg))

	assert.Equal(t, http.StatusUnauthorized, do(r, "").Code)
	assert.Equal(t, http.StatusUnauthorized, do(r, "garbage").Code)

	w := do(r, tokenFor(t, cfg, model.Member))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "alice", w.Body.String())
}

func TestTryAuthMiddlewareFallsBackToGuest(t *testing.T) {
	cfg := testConfig()
	r := newRouter(TryAuthMiddleware(cfg))

	assert.Equal(t, "guest", do(r, "").Body.String())
	assert.Equal(t, "guest", do(r, "garbage").Body.String())
	assert.Equal(t, "alice", do(r, tokenFor(t, cfg, model.Member)).Body.String())
}

func TestRoleMiddleware(t *testing.T) {
	cfg := testConfig()
	r := newRouter(AuthMiddleware(cfg), RoleMiddleware(model.Admin))

	assert.Equal(t, http.StatusForbidden, do(r, tokenFor(t, cfg, model.Member)).Code)
	assert.Equal(t, http.StatusOK, do(r, tokenFor(t, cfg, model.Admin)).Code)
}
