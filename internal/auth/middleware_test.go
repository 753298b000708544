package auth

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/aragnam/BTMliveTrackerApp/internal/models"
	"github.com/aragnam/BTMliveTrackerApp/pkg/utils"
)

// tokenRepo хранилище, из которого тесты читают только токены
type tokenRepo struct {
	tokens map[string]string
	calls  int
}

func (r *tokenRepo) CheckDeviceToken(ctx context.Context, token string) (string, error) {
	r.calls++
	deviceID, ok := r.tokens[token]
	if !ok {
		return "", fmt.Errorf("unknown token")
	}
	return deviceID, nil
}

func (r *tokenRepo) Ping(ctx context.Context) error { return nil }
func (r *tokenRepo) Close() error                   { return nil }
func (r *tokenRepo) CreateTrack(ctx context.Context, track *models.Track) error {
	return nil
}
func (r *tokenRepo) AppendPoint(ctx context.Context, trackID string, point *models.EnrichedPoint) error {
	return nil
}
func (r *tokenRepo) GetTrack(ctx context.Context, trackID string) (*models.Track, error) {
	return nil, nil
}
func (r *tokenRepo) ListTracks(ctx context.Context) ([]*models.Track, error) { return nil, nil }
func (r *tokenRepo) DeleteTrack(ctx context.Context, trackID string) error   { return nil }
func (r *tokenRepo) SaveGeofence(ctx context.Context, fence *models.Geofence) error {
	return nil
}
func (r *tokenRepo) ListGeofences(ctx context.Context) ([]models.Geofence, error) {
	return nil, nil
}
func (r *tokenRepo) DeleteGeofence(ctx context.Context, fenceID string) error { return nil }
func (r *tokenRepo) PushAlert(ctx context.Context, alert *models.Alert) error { return nil }
func (r *tokenRepo) RecentAlerts(ctx context.Context, limit int) ([]models.Alert, error) {
	return nil, nil
}
func (r *tokenRepo) SaveDeviceToken(ctx context.Context, token, deviceID string) error {
	return nil
}

func setupAuthRouter(repo *tokenRepo) *gin.Engine {
	gin.SetMode(gin.TestMode)
	logger := utils.NewLogger("error", "text")
	validator := NewValidator(repo, logger)

	router := gin.New()
	router.Use(Middleware(validator, logger))
	router.GET("/protected", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"device_id": c.GetString("device_id")})
	})
	return router
}

func doRequest(router *gin.Engine, authorization string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestMiddleware_ValidToken(t *testing.T) {
	repo := &tokenRepo{tokens: map[string]string{"secret-1": "dev-1"}}
	router := setupAuthRouter(repo)

	w := doRequest(router, "Bearer secret-1")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "dev-1")
}

func TestMiddleware_MissingHeader(t *testing.T) {
	repo := &tokenRepo{tokens: map[string]string{}}
	router := setupAuthRouter(repo)

	w := doRequest(router, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestMiddleware_WrongScheme(t *testing.T) {
	repo := &tokenRepo{tokens: map[string]string{"secret-1": "dev-1"}}
	router := setupAuthRouter(repo)

	w := doRequest(router, "Basic secret-1")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestMiddleware_UnknownToken(t *testing.T) {
	repo := &tokenRepo{tokens: map[string]string{}}
	router := setupAuthRouter(repo)

	w := doRequest(router, "Bearer nope")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestValidator_CachesToken(t *testing.T) {
	repo := &tokenRepo{tokens: map[string]string{"secret-1": "dev-1"}}
	router := setupAuthRouter(repo)

	doRequest(router, "Bearer secret-1")
	doRequest(router, "Bearer secret-1")
	doRequest(router, "Bearer secret-1")

	// Хранилище опрашивается один раз, дальше работает кэш
	assert.Equal(t, 1, repo.calls)
}

func TestValidator_CacheExpires(t *testing.T) {
	repo := &tokenRepo{tokens: map[string]string{"secret-1": "dev-1"}}
	logger := utils.NewLogger("error", "text")
	validator := NewValidator(repo, logger)
	validator.cacheTTL = time.Millisecond

	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(Middleware(validator, logger))
	router.GET("/protected", func(c *gin.Context) { c.Status(http.StatusOK) })

	doRequest(router, "Bearer secret-1")
	time.Sleep(5 * time.Millisecond)
	doRequest(router, "Bearer secret-1")

	assert.Equal(t, 2, repo.calls)
}
