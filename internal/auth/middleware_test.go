package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func middlewareRouter(svc *TokenService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/probe", svc.Middleware(), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})
	return router
}

func probe(router *gin.Engine, header string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/probe", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestMiddlewareRequiresBearerToken(t *testing.T) {
	token, _, err := GenerateToken()
	require.NoError(t, err)
	router := middlewareRouter(NewTokenService([]string{token}, zap.NewNop()))

	assert.Equal(t, http.StatusUnauthorized, probe(router, "").Code)
	assert.Equal(t, http.StatusUnauthorized, probe(router, "Basic dXNlcg==").Code)
	assert.Equal(t, http.StatusUnauthorized, probe(router, "Bearer rio_wrong").Code)
	assert.Equal(t, http.StatusOK, probe(router, "Bearer "+token).Code)
}

func TestMiddlewarePassthroughWhenDisabled(t *testing.T) {
	router := middlewareRouter(NewTokenService(nil, zap.NewNop()))

	assert.Equal(t, http.StatusOK, probe(router, "").Code)
	assert.Equal(t, http.StatusOK, probe(router, "Bearer anything").Code)
}
