// Package auth проверяет Bearer токены устройств на защищенных endpoint'ах.
package auth

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/aragnam/BTMliveTrackerApp/internal/repository"
	"github.com/aragnam/BTMliveTrackerApp/pkg/utils"
)

// cacheEntry запись локального кэша токенов
type cacheEntry struct {
	deviceID  string
	expiresAt time.Time
}

// Validator проверяет токены устройств с локальным кэшем поверх хранилища
type Validator struct {
	repo     repository.Repository
	logger   *utils.Logger
	cacheTTL time.Duration

	mu    sync.RWMutex
	cache map[string]cacheEntry
}

// NewValidator создает новый валидатор токенов
func NewValidator(repo repository.Repository, logger *utils.Logger) *Validator {
	return &Validator{
		repo:     repo,
		logger:   logger,
		cacheTTL: 5 * time.Minute,
		cache:    make(map[string]cacheEntry),
	}
}

// Validate возвращает device_id для токена
func (v *Validator) Validate(c *gin.Context, token string) (string, bool) {
	v.mu.RLock()
	entry, ok := v.cache[token]
	v.mu.RUnlock()
	if ok && time.Now().Before(entry.expiresAt) {
		return entry.deviceID, true
	}

	deviceID, err := v.repo.CheckDeviceToken(c.Request.Context(), token)
	if err != nil {
		return "", false
	}

	v.mu.Lock()
	v.cache[token] = cacheEntry{deviceID: deviceID, expiresAt: time.Now().Add(v.cacheTTL)}
	v.mu.Unlock()

	return deviceID, true
}

// Middleware gin middleware, требующий валидный Bearer токен устройства.
// Идентификатор устройства кладется в контекст под ключом "device_id".
func Middleware(validator *Validator, logger *utils.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"code":    "unauthorized",
				"message": "Bearer token required",
			})
			return
		}

		token := strings.TrimPrefix(header, "Bearer ")
		deviceID, ok := validator.Validate(c, token)
		if !ok {
			logger.WithField("path", c.Request.URL.Path).Warn("Rejected request with invalid token")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"code":    "unauthorized",
				"message": "Invalid device token",
			})
			return
		}

		c.Set("device_id", deviceID)
		c.Next()
	}
}
