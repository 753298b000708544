// Package service связывает конвейер обработки фиксов с хранилищами,
// детектором аномалий и трансляцией обновлений.
package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/aragnam/BTMliveTrackerApp/internal/anomaly"
	"github.com/aragnam/BTMliveTrackerApp/internal/config"
	"github.com/aragnam/BTMliveTrackerApp/internal/metrics"
	"github.com/aragnam/BTMliveTrackerApp/internal/models"
	"github.com/aragnam/BTMliveTrackerApp/internal/pipeline"
	"github.com/aragnam/BTMliveTrackerApp/internal/repository"
	"github.com/aragnam/BTMliveTrackerApp/pkg/utils"
)

// Broadcaster интерфейс трансляции обновлений подписчикам
type Broadcaster interface {
	BroadcastPoint(trackID string, point *models.EnrichedPoint)
	BroadcastAlert(alert *models.Alert)
}

// Recorder управляет сессией записи: принимает фиксы, прогоняет их через
// конвейер, сохраняет обогащенные точки и проверяет аномалии.
//
// Фиксы обрабатываются строго по одному; сохранение в историю асинхронно
// и не задерживает прием следующего фикса.
type Recorder struct {
	mu sync.Mutex

	cfg         *config.Config
	logger      *utils.Logger
	pipeline    *pipeline.Pipeline
	detector    *anomaly.Detector
	repo        repository.Repository
	history     repository.HistoryRepository
	writer      *BatchWriter
	broadcaster Broadcaster

	active       bool
	track        *models.Track
	snapshot     []*models.Track
	fences       []models.Geofence
	lastAccepted *models.GeoPoint
}

// NewRecorder создает новый Recorder. history, writer и broadcaster
// опциональны.
func NewRecorder(cfg *config.Config, repo repository.Repository, history repository.HistoryRepository, writer *BatchWriter, broadcaster Broadcaster, logger *utils.Logger) (*Recorder, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if repo == nil {
		return nil, fmt.Errorf("repository cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}

	return &Recorder{
		cfg:         cfg,
		logger:      logger,
		pipeline:    pipeline.NewPipeline(cfg.Pipeline, logger),
		detector:    anomaly.NewDetector(cfg.Anomaly, logger),
		repo:        repo,
		history:     history,
		writer:      writer,
		broadcaster: broadcaster,
	}, nil
}

// StartSession начинает новую запись для устройства и возвращает
// идентификатор трека. Снимки сохраненных треков и геозон берутся один раз:
// сравнение маршрутов по ходу записи не читает изменяющиеся данные.
func (r *Recorder) StartSession(ctx context.Context, deviceID string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if deviceID == "" {
		return "", fmt.Errorf("device id is required")
	}
	if r.active {
		return "", fmt.Errorf("recording session already active")
	}

	trackID := fmt.Sprintf("%s-%d", deviceID, time.Now().UnixMilli())
	track := &models.Track{ID: trackID, DeviceID: deviceID}
	if err := r.repo.CreateTrack(ctx, track); err != nil {
		return "", fmt.Errorf("failed to create track: %w", err)
	}
	if r.history != nil {
		if err := r.history.SaveTrack(ctx, track); err != nil {
			r.logger.WithField("error", err).Warn("Failed to register track in history")
		}
	}

	snapshot, err := r.repo.ListTracks(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to snapshot tracks: %w", err)
	}

	fences, err := r.repo.ListGeofences(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to load geofences: %w", err)
	}

	r.pipeline.ResetSession()
	r.detector.ResetSession(trackID)

	r.active = true
	r.track = track
	r.snapshot = snapshot
	r.fences = fences
	r.lastAccepted = nil

	metrics.ActiveSessions.Inc()
	r.logger.WithFields(map[string]interface{}{
		"track_id":        trackID,
		"device_id":       deviceID,
		"snapshot_tracks": len(snapshot),
		"geofences":       len(fences),
	}).Info("Recording session started")

	return trackID, nil
}

// HandleFix обрабатывает один фикс активной сессии
func (r *Recorder) HandleFix(ctx context.Context, fix *models.RawFix) (*models.EnrichedPoint, []models.Alert, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.active {
		return nil, nil, fmt.Errorf("no active recording session")
	}

	// Энергосберегающий режим: крошечные перемещения пропускаются
	if r.cfg.Pipeline.MinMovementM > 0 && r.lastAccepted != nil {
		if r.lastAccepted.DistanceTo(fix.Position) < r.cfg.Pipeline.MinMovementM {
			metrics.FixesSkipped.Inc()
			return nil, nil, nil
		}
	}

	point, err := r.pipeline.Process(fix)
	if err != nil {
		return nil, nil, err
	}

	r.track.Append(point)
	if err := r.repo.AppendPoint(ctx, r.track.ID, point); err != nil {
		// Горячее хранилище отстает; точка остается в памяти трека
		r.logger.WithFields(map[string]interface{}{
			"track_id": r.track.ID,
			"error":    err,
		}).Error("Failed to append point to hot storage")
	}

	if r.writer != nil {
		r.writer.Enqueue(r.track.ID, point)
	}

	alerts := r.detector.Check(point, r.snapshot, r.fences)
	for i := range alerts {
		if err := r.repo.PushAlert(ctx, &alerts[i]); err != nil {
			r.logger.WithField("error", err).Warn("Failed to store alert")
		}
		if r.broadcaster != nil {
			r.broadcaster.BroadcastAlert(&alerts[i])
		}
	}

	if r.broadcaster != nil {
		r.broadcaster.BroadcastPoint(r.track.ID, point)
	}

	position := point.Filtered.Position
	r.lastAccepted = &position

	return point, alerts, nil
}

// StopSession завершает активную запись. Последняя обогащенная точка
// остается финальным состоянием трека.
func (r *Recorder) StopSession(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.active {
		return fmt.Errorf("no active recording session")
	}

	r.active = false
	metrics.ActiveSessions.Dec()

	if r.history != nil {
		if err := r.history.SaveTrack(ctx, r.track); err != nil {
			r.logger.WithField("error", err).Warn("Failed to finalize track in history")
		}
	}

	r.logger.WithFields(map[string]interface{}{
		"track_id": r.track.ID,
		"points":   len(r.track.Points),
	}).Info("Recording session stopped")

	r.track = nil
	r.snapshot = nil
	r.fences = nil
	r.lastAccepted = nil

	return nil
}

// ActiveTrackID возвращает идентификатор записываемого трека ("" если
// запись не идет)
func (r *Recorder) ActiveTrackID() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.active {
		return ""
	}
	return r.track.ID
}

// RefreshGeofences обновляет снимок геозон без прерывания записи
func (r *Recorder) RefreshGeofences(ctx context.Context) error {
	fences, err := r.repo.ListGeofences(ctx)
	if err != nil {
		return fmt.Errorf("failed to reload geofences: %w", err)
	}

	r.mu.Lock()
	r.fences = fences
	r.mu.Unlock()
	return nil
}
