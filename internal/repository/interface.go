package repository

import (
	"context"
	"time"

	"github.com/aragnam/BTMliveTrackerApp/internal/models"
)

// Repository интерфейс горячего хранилища (активные треки, геозоны, алерты)
type Repository interface {
	// Проверка соединения
	Ping(ctx context.Context) error
	Close() error

	// Операции с треками
	CreateTrack(ctx context.Context, track *models.Track) error
	AppendPoint(ctx context.Context, trackID string, point *models.EnrichedPoint) error
	GetTrack(ctx context.Context, trackID string) (*models.Track, error)
	ListTracks(ctx context.Context) ([]*models.Track, error)
	DeleteTrack(ctx context.Context, trackID string) error

	// Операции с геозонами
	SaveGeofence(ctx context.Context, fence *models.Geofence) error
	ListGeofences(ctx context.Context) ([]models.Geofence, error)
	DeleteGeofence(ctx context.Context, fenceID string) error

	// Алерты
	PushAlert(ctx context.Context, alert *models.Alert) error
	RecentAlerts(ctx context.Context, limit int) ([]models.Alert, error)

	// Токены устройств
	CheckDeviceToken(ctx context.Context, token string) (string, error)
	SaveDeviceToken(ctx context.Context, token, deviceID string) error
}

// HistoryRepository интерфейс исторического хранилища завершенных треков.
// Исторические треки читаются снимком перед началом записи и используются
// детектором отклонения от маршрута.
type HistoryRepository interface {
	Ping(ctx context.Context) error
	Close() error

	SaveTrack(ctx context.Context, track *models.Track) error
	SavePointsBatch(ctx context.Context, trackID string, points []*models.EnrichedPoint) error
	LoadTracks(ctx context.Context, limit int) ([]*models.Track, error)
	DeleteTrack(ctx context.Context, trackID string) error
	CleanupOldTracks(ctx context.Context, olderThan time.Duration) error
}

// Ensure implementations
var _ Repository = (*RedisRepository)(nil)
var _ HistoryRepository = (*MySQLRepository)(nil)
