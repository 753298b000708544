package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/aragnam/BTMliveTrackerApp/internal/models"
	"github.com/aragnam/BTMliveTrackerApp/internal/repository"
	"github.com/aragnam/BTMliveTrackerApp/internal/service"
	"github.com/aragnam/BTMliveTrackerApp/pkg/utils"
)

// RESTHandler обработчик REST API endpoints
type RESTHandler struct {
	repo     repository.Repository
	recorder *service.Recorder
	logger   *utils.Logger
	timeout  time.Duration
}

// NewRESTHandler создает новый REST handler
func NewRESTHandler(repo repository.Repository, recorder *service.Recorder, logger *utils.Logger) *RESTHandler {
	return &RESTHandler{
		repo:     repo,
		recorder: recorder,
		logger:   logger,
		timeout:  30 * time.Second,
	}
}

// trackSummary краткое представление трека в списках
type trackSummary struct {
	ID        string    `json:"id"`
	DeviceID  string    `json:"device_id"`
	Points    int       `json:"points"`
	DistanceM float64   `json:"distance_m"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
}

// GetTracks возвращает список треков
// GET /api/v1/tracks
func (h *RESTHandler) GetTracks(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	tracks, err := h.repo.ListTracks(ctx)
	if err != nil {
		h.logger.WithField("error", err).Error("Failed to list tracks")
		errorResponse(c, http.StatusInternalServerError, "storage_error", "Failed to list tracks")
		return
	}

	summaries := make([]trackSummary, 0, len(tracks))
	for _, track := range tracks {
		summaries = append(summaries, trackSummary{
			ID:        track.ID,
			DeviceID:  track.DeviceID,
			Points:    len(track.Points),
			DistanceM: track.DistanceM(),
			StartTime: track.StartTime,
			EndTime:   track.EndTime,
		})
	}

	c.JSON(http.StatusOK, gin.H{"tracks": summaries})
}

// GetTrack возвращает трек с точками
// GET /api/v1/track/:id
func (h *RESTHandler) GetTrack(c *gin.Context) {
	trackID, err := requireParam(c, "id")
	if err != nil {
		errorResponse(c, http.StatusBadRequest, "invalid_track_id", "Track id is required")
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	track, err := h.repo.GetTrack(ctx, trackID)
	if err != nil {
		errorResponse(c, http.StatusNotFound, "track_not_found", "Track not found")
		return
	}

	c.JSON(http.StatusOK, track)
}

// DeleteTrack удаляет трек целиком
// DELETE /api/v1/track/:id
func (h *RESTHandler) DeleteTrack(c *gin.Context) {
	trackID, err := requireParam(c, "id")
	if err != nil {
		errorResponse(c, http.StatusBadRequest, "invalid_track_id", "Track id is required")
		return
	}

	if h.recorder != nil && h.recorder.ActiveTrackID() == trackID {
		errorResponse(c, http.StatusConflict, "track_recording", "Cannot delete the track being recorded")
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	if err := h.repo.DeleteTrack(ctx, trackID); err != nil {
		h.logger.WithFields(map[string]interface{}{
			"track_id": trackID,
			"error":    err,
		}).Error("Failed to delete track")
		errorResponse(c, http.StatusInternalServerError, "storage_error", "Failed to delete track")
		return
	}

	c.Status(http.StatusNoContent)
}

// GetGeofences возвращает активные геозоны
// GET /api/v1/geofences
func (h *RESTHandler) GetGeofences(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	fences, err := h.repo.ListGeofences(ctx)
	if err != nil {
		h.logger.WithField("error", err).Error("Failed to list geofences")
		errorResponse(c, http.StatusInternalServerError, "storage_error", "Failed to list geofences")
		return
	}

	c.JSON(http.StatusOK, gin.H{"geofences": fences})
}

// PostGeofence создает или обновляет геозону
// POST /api/v1/geofences
func (h *RESTHandler) PostGeofence(c *gin.Context) {
	var fence models.Geofence
	if err := c.ShouldBindJSON(&fence); err != nil {
		errorResponse(c, http.StatusBadRequest, "invalid_body", "Invalid geofence payload")
		return
	}
	if err := fence.Validate(); err != nil {
		errorResponse(c, http.StatusBadRequest, "invalid_geofence", err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	if err := h.repo.SaveGeofence(ctx, &fence); err != nil {
		h.logger.WithField("error", err).Error("Failed to save geofence")
		errorResponse(c, http.StatusInternalServerError, "storage_error", "Failed to save geofence")
		return
	}

	if h.recorder != nil {
		if err := h.recorder.RefreshGeofences(ctx); err != nil {
			h.logger.WithField("error", err).Warn("Failed to refresh recorder geofences")
		}
	}

	c.JSON(http.StatusCreated, fence)
}

// DeleteGeofence удаляет геозону
// DELETE /api/v1/geofences/:id
func (h *RESTHandler) DeleteGeofence(c *gin.Context) {
	fenceID, err := requireParam(c, "id")
	if err != nil {
		errorResponse(c, http.StatusBadRequest, "invalid_geofence_id", "Geofence id is required")
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	if err := h.repo.DeleteGeofence(ctx, fenceID); err != nil {
		h.logger.WithField("error", err).Error("Failed to delete geofence")
		errorResponse(c, http.StatusInternalServerError, "storage_error", "Failed to delete geofence")
		return
	}

	if h.recorder != nil {
		if err := h.recorder.RefreshGeofences(ctx); err != nil {
			h.logger.WithField("error", err).Warn("Failed to refresh recorder geofences")
		}
	}

	c.Status(http.StatusNoContent)
}

// GetAlerts возвращает последние алерты
// GET /api/v1/alerts?limit=50
func (h *RESTHandler) GetAlerts(c *gin.Context) {
	limit := 50
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 || parsed > 500 {
			errorResponse(c, http.StatusBadRequest, "invalid_limit", "Limit must be between 1 and 500")
			return
		}
		limit = parsed
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	alerts, err := h.repo.RecentAlerts(ctx, limit)
	if err != nil {
		h.logger.WithField("error", err).Error("Failed to read alerts")
		errorResponse(c, http.StatusInternalServerError, "storage_error", "Failed to read alerts")
		return
	}

	c.JSON(http.StatusOK, gin.H{"alerts": alerts})
}

// StartSession начинает новую запись для устройства
// POST /api/v1/session/start
func (h *RESTHandler) StartSession(c *gin.Context) {
	if h.recorder == nil {
		errorResponse(c, http.StatusServiceUnavailable, "recorder_unavailable", "Recorder is not configured")
		return
	}

	deviceID := c.GetString("device_id")

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	trackID, err := h.recorder.StartSession(ctx, deviceID)
	if err != nil {
		errorResponse(c, http.StatusConflict, "session_error", err.Error())
		return
	}

	c.JSON(http.StatusCreated, gin.H{"track_id": trackID})
}

// StopSession завершает активную запись
// POST /api/v1/session/stop
func (h *RESTHandler) StopSession(c *gin.Context) {
	if h.recorder == nil {
		errorResponse(c, http.StatusServiceUnavailable, "recorder_unavailable", "Recorder is not configured")
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	if err := h.recorder.StopSession(ctx); err != nil {
		errorResponse(c, http.StatusConflict, "session_error", err.Error())
		return
	}

	c.Status(http.StatusNoContent)
}

// PostPosition принимает сырой фикс от устройства
// POST /api/v1/position
func (h *RESTHandler) PostPosition(c *gin.Context) {
	if h.recorder == nil {
		errorResponse(c, http.StatusServiceUnavailable, "recorder_unavailable", "Recorder is not configured")
		return
	}

	var fix models.RawFix
	if err := c.ShouldBindJSON(&fix); err != nil {
		errorResponse(c, http.StatusBadRequest, "invalid_body", "Invalid fix payload")
		return
	}
	if err := fix.Validate(); err != nil {
		errorResponse(c, http.StatusBadRequest, "invalid_fix", err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	point, alerts, err := h.recorder.HandleFix(ctx, &fix)
	if err != nil {
		errorResponse(c, http.StatusConflict, "session_error", err.Error())
		return
	}
	if point == nil {
		// Фикс пропущен энергосберегающим фильтром
		c.Status(http.StatusAccepted)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"point":  point,
		"alerts": alerts,
	})
}
