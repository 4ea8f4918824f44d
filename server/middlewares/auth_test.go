package middlewares

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/a2aruntime/a2a/a2a"
	config "github.com/a2aruntime/a2a/server/config"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestSecurityValidator(t *testing.T) {
	gin.SetMode(gin.TestMode)
	logger := zap.NewNop()

	t.Run("NewSecurityValidator with auth disabled", func(t *testing.T) {
		cfg := config.Config{AuthConfig: config.AuthConfig{Enable: false}}

		validator := NewSecurityValidator(logger, cfg)
		_, ok := validator.(*SecurityValidatorNoop)
		assert.True(t, ok)
	})

	t.Run("NewSecurityValidator with auth enabled", func(t *testing.T) {
		cfg := config.Config{AuthConfig: config.AuthConfig{Enable: true}}

		validator := NewSecurityValidator(logger, cfg)
		_, ok := validator.(*SecurityValidatorImpl)
		assert.True(t, ok)
	})
}

func TestSecurityValidatorImpl_ValidateSecurityRequirements(t *testing.T) {
	logger := zap.NewNop()
	validator := &SecurityValidatorImpl{logger: logger}

	tests := []struct {
		name           string
		card           *a2a.AgentCard
		setupRequest   func(*gin.Context)
		expectedStatus int
	}{
		{
			name:           "no agent card - allow through",
			card:           nil,
			setupRequest:   func(c *gin.Context) {},
			expectedStatus: http.StatusOK,
		},
		{
			name:           "no security requirements - allow through",
			card:           &a2a.AgentCard{Name: "test-agent"},
			setupRequest:   func(c *gin.Context) {},
			expectedStatus: http.StatusOK,
		},
		{
			name: "OIDC security satisfied",
			card: &a2a.AgentCard{
				Name:           "test-agent",
				Authentication: &a2a.AuthenticationRequirement{Schemes: []string{"oidc"}},
			},
			setupRequest: func(c *gin.Context) {
				c.Set(string(IDTokenContextKey), "valid-token")
			},
			expectedStatus: http.StatusOK,
		},
		{
			name: "OIDC security not satisfied",
			card: &a2a.AgentCard{
				Name:           "test-agent",
				Authentication: &a2a.AuthenticationRequirement{Schemes: []string{"oidc"}},
			},
			setupRequest:   func(c *gin.Context) {},
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name: "Bearer token security satisfied",
			card: &a2a.AgentCard{
				Name:           "test-agent",
				Authentication: &a2a.AuthenticationRequirement{Schemes: []string{"bearer"}},
			},
			setupRequest: func(c *gin.Context) {
				c.Request.Header.Set("Authorization", "Bearer test-token")
			},
			expectedStatus: http.StatusOK,
		},
		{
			name: "Bearer token security not satisfied",
			card: &a2a.AgentCard{
				Name:           "test-agent",
				Authentication: &a2a.AuthenticationRequirement{Schemes: []string{"bearer"}},
			},
			setupRequest:   func(c *gin.Context) {},
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name: "API key security satisfied",
			card: &a2a.AgentCard{
				Name:           "test-agent",
				Authentication: &a2a.AuthenticationRequirement{Schemes: []string{"apikey"}},
			},
			setupRequest: func(c *gin.Context) {
				c.Request.Header.Set("X-API-Key", "test-key")
			},
			expectedStatus: http.StatusOK,
		},
		{
			name: "API key security not satisfied",
			card: &a2a.AgentCard{
				Name:           "test-agent",
				Authentication: &a2a.AuthenticationRequirement{Schemes: []string{"apikey"}},
			},
			setupRequest:   func(c *gin.Context) {},
			expectedStatus: http.StatusUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := gin.New()

			nextCalled := false
			middleware := validator.ValidateSecurityRequirements(tt.card)

			setupMiddleware := func(c *gin.Context) {
				tt.setupRequest(c)
				c.Next()
			}

			router.POST("/a2a", setupMiddleware, middleware, func(c *gin.Context) {
				nextCalled = true
				c.JSON(http.StatusOK, gin.H{"success": true})
			})

			w := httptest.NewRecorder()
			req := httptest.NewRequest("POST", "/a2a", nil)

			router.ServeHTTP(w, req)

			if tt.expectedStatus == http.StatusOK {
				assert.True(t, nextCalled)
				assert.Equal(t, http.StatusOK, w.Code)
			} else {
				assert.False(t, nextCalled)
				assert.Equal(t, tt.expectedStatus, w.Code)
			}
		})
	}
}

func TestValidateSecurityScheme(t *testing.T) {
	logger := zap.NewNop()
	validator := &SecurityValidatorImpl{logger: logger}

	tests := []struct {
		name         string
		scheme       string
		setupRequest func(*gin.Context)
		expected     bool
	}{
		{
			name:   "OIDC with valid token",
			scheme: "oidc",
			setupRequest: func(c *gin.Context) {
				c.Set(string(IDTokenContextKey), "valid-token")
			},
			expected: true,
		},
		{
			name:         "OIDC without token",
			scheme:       "oidc",
			setupRequest: func(c *gin.Context) {},
			expected:     false,
		},
		{
			name:   "Bearer token valid",
			scheme: "bearer",
			setupRequest: func(c *gin.Context) {
				c.Request.Header.Set("Authorization", "Bearer test-token")
			},
			expected: true,
		},
		{
			name:   "Basic auth valid",
			scheme: "basic",
			setupRequest: func(c *gin.Context) {
				c.Request.Header.Set("Authorization", "Basic dGVzdDp0ZXN0")
			},
			expected: true,
		},
		{
			name:   "API key in header",
			scheme: "apikey",
			setupRequest: func(c *gin.Context) {
				c.Request.Header.Set("X-API-Key", "test-key")
			},
			expected: true,
		},
		{
			name:         "Unknown scheme rejected",
			scheme:       "carrier-pigeon",
			setupRequest: func(c *gin.Context) {},
			expected:     false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			c.Request = httptest.NewRequest("POST", "/a2a", nil)

			tt.setupRequest(c)

			result := validator.satisfies(c, tt.scheme)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestSecurityValidatorNoop(t *testing.T) {
	validator := &SecurityValidatorNoop{}
	card := &a2a.AgentCard{
		Name:           "test-agent",
		Authentication: &a2a.AuthenticationRequirement{Schemes: []string{"oidc"}},
	}

	router := gin.New()

	nextCalled := false
	middleware := validator.ValidateSecurityRequirements(card)

	router.POST("/a2a", middleware, func(c *gin.Context) {
		nextCalled = true
		c.JSON(http.StatusOK, gin.H{"success": true})
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/a2a", nil)

	router.ServeHTTP(w, req)

	assert.True(t, nextCalled, "Noop validator should always call next")
	assert.Equal(t, http.StatusOK, w.Code)
}
