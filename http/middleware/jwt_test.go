package middlewares

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tnqbao/gau-document-gateway/config"
	"github.com/tnqbao/gau-document-gateway/entity"
	"github.com/tnqbao/gau-document-gateway/identity"
	"github.com/tnqbao/gau-document-gateway/infra"
	"github.com/tnqbao/gau-document-gateway/testutil"
)

type stubChecker struct {
	err    error
	tokens []string
}

func (s *stubChecker) CheckAccessToken(token string) error {
	s.tokens = append(s.tokens, token)
	return s.err
}

func testEnv() *config.EnvConfig {
	cfg := &config.EnvConfig{}
	cfg.JWT.SecretKey = "middleware-secret"
	cfg.JWT.Algorithm = "HS256"
	return cfg
}

func signToken(t *testing.T, cfg *config.EnvConfig, claims jwt.MapClaims) string {
	t.Helper()
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(cfg.JWT.SecretKey))
	require.NoError(t, err)
	return signed
}

func newRouter(checker TokenChecker, classifier identity.Classifier, cfg *config.EnvConfig, seen **identity.Context) *gin.Engine {
	gin.SetMode(gin.TestMode)
	logger := infra.NewLoggerClient(slog.New(slog.NewTextHandler(io.Discard, nil)))

	r := gin.New()
	r.Use(AuthMiddleware(checker, classifier, logger, cfg))
	r.GET("/whoami", func(c *gin.Context) {
		id, _ := identity.FromContext(c.Request.Context())
		*seen = id
		c.String(http.StatusOK, c.GetString("user_id"))
	})
	return r
}

func TestAuthMiddlewareAttachesIdentity(t *testing.T) {
	cfg := testEnv()
	classifier := &testutil.StaticClassifier{Classes: map[string]entity.Classification{"official": entity.ClassificationPrivileged}}
	checker := &stubChecker{}
	var seen *identity.Context
	r := newRouter(checker, classifier, cfg, &seen)

	tok := signToken(t, cfg, jwt.MapClaims{"user_id": "official", "permission": "admin", "exp": time.Now().Add(time.Hour).Unix()})
	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "official", w.Body.String())
	assert.Equal(t, []string{tok}, checker.tokens)
	require.NotNil(t, seen)
	assert.Equal(t, "admin", seen.Permission())

	// Classification stays lazy until something asks for it.
	assert.Equal(t, 0, classifier.Calls())
	class, err := seen.Classification(req.Context())
	require.NoError(t, err)
	assert.True(t, class.IsPrivileged())
}

func TestAuthMiddlewareRejects(t *testing.T) {
	cfg := testEnv()
	valid := signToken(t, cfg, jwt.MapClaims{"user_id": "alice", "exp": time.Now().Add(time.Hour).Unix()})

	tests := []struct {
		name    string
		checker TokenChecker
		token   string
	}{
		{"missing token", nil, ""},
		{"revoked token", &stubChecker{err: errors.New("revoked")}, valid},
		{"expired token", nil, signToken(t, cfg, jwt.MapClaims{"user_id": "alice", "exp": time.Now().Add(-time.Hour).Unix()})},
		{"no user id", nil, signToken(t, cfg, jwt.MapClaims{"exp": time.Now().Add(time.Hour).Unix()})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var seen *identity.Context
			r := newRouter(tt.checker, nil, cfg, &seen)

			req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
			if tt.token != "" {
				req.Header.Set("Authorization", "Bearer "+tt.token)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			assert.Equal(t, http.StatusUnauthorized, w.Code)
			assert.Nil(t, seen)
		})
	}
}

func TestCORSMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cfg := testEnv()
	cfg.CORS.AllowDomains = "https://portal.example.gov, https://admin.example.gov"

	r := gin.New()
	r.Use(CORSMiddleware(cfg))
	r.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("Origin", "https://admin.example.gov")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "https://admin.example.gov", w.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)
}
