package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/aragnam/BTMliveTrackerApp/internal/config"
	"github.com/aragnam/BTMliveTrackerApp/internal/metrics"
	"github.com/aragnam/BTMliveTrackerApp/internal/models"
	"github.com/aragnam/BTMliveTrackerApp/pkg/utils"
)

const (
	// Ключи и префиксы
	TracksIndexKey    = "tracks:index"  // Z-SET идентификаторов треков по времени старта
	TrackMetaPrefix   = "track:meta:"   // track:meta:{id} - хеш метаданных трека
	TrackPointsPrefix = "track:points:" // track:points:{id} - список обогащенных точек
	GeofencesKey      = "geofences"     // SET идентификаторов геозон
	GeofencePrefix    = "geofence:"     // geofence:{id}
	AlertsKey         = "alerts:recent" // Список последних алертов
	AuthTokenPrefix   = "auth:token:"   // auth:token:{token}

	// TTL для данных
	TrackTTL     = 24 * time.Hour
	AuthTokenTTL = 12 * time.Hour

	// Ограничения списков
	MaxStoredAlerts = 499
)

// RedisRepository горячее хранилище: активные треки, геозоны, последние алерты
type RedisRepository struct {
	client *redis.Client
	logger *utils.Logger
	config *config.RedisConfig
}

// NewRedisRepository создает новый Redis репозиторий
func NewRedisRepository(cfg *config.RedisConfig, logger *utils.Logger) (*RedisRepository, error) {
	if cfg == nil {
		return nil, fmt.Errorf("redis config cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}

	opt, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	opt.Password = cfg.Password
	opt.DB = cfg.DB
	opt.PoolSize = cfg.PoolSize
	opt.MinIdleConns = cfg.MinIdleConns
	opt.ConnMaxIdleTime = 30 * time.Minute
	opt.DialTimeout = 10 * time.Second
	opt.ReadTimeout = 3 * time.Second
	opt.WriteTimeout = 3 * time.Second

	return &RedisRepository{
		client: redis.NewClient(opt),
		logger: logger,
		config: cfg,
	}, nil
}

// Ping проверяет соединение с Redis
func (r *RedisRepository) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close закрывает соединение с Redis
func (r *RedisRepository) Close() error {
	return r.client.Close()
}

// CreateTrack регистрирует новый трек
func (r *RedisRepository) CreateTrack(ctx context.Context, track *models.Track) error {
	if track == nil || track.ID == "" {
		return fmt.Errorf("track with non-empty id is required")
	}

	start := time.Now()
	pipe := r.client.Pipeline()
	pipe.HSet(ctx, TrackMetaPrefix+track.ID, map[string]interface{}{
		"device_id":  track.DeviceID,
		"start_time": track.StartTime.UnixMilli(),
		"end_time":   track.EndTime.UnixMilli(),
	})
	pipe.Expire(ctx, TrackMetaPrefix+track.ID, TrackTTL)
	pipe.ZAdd(ctx, TracksIndexKey, redis.Z{
		Score:  float64(track.StartTime.UnixMilli()),
		Member: track.ID,
	})
	_, err := pipe.Exec(ctx)

	metrics.RedisOperationDuration.WithLabelValues("create_track").Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.RedisOperationErrors.WithLabelValues("create_track").Inc()
		return fmt.Errorf("failed to create track: %w", err)
	}
	return nil
}

// AppendPoint добавляет точку в конец трека. Порядок точек не меняется.
func (r *RedisRepository) AppendPoint(ctx context.Context, trackID string, point *models.EnrichedPoint) error {
	if point == nil {
		return fmt.Errorf("point cannot be nil")
	}

	data, err := json.Marshal(point)
	if err != nil {
		return fmt.Errorf("failed to marshal point: %w", err)
	}

	start := time.Now()
	pipe := r.client.Pipeline()
	pipe.RPush(ctx, TrackPointsPrefix+trackID, data)
	pipe.Expire(ctx, TrackPointsPrefix+trackID, TrackTTL)
	pipe.HSet(ctx, TrackMetaPrefix+trackID, "end_time", point.CapturedAt.UnixMilli())
	_, err = pipe.Exec(ctx)

	metrics.RedisOperationDuration.WithLabelValues("append_point").Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.RedisOperationErrors.WithLabelValues("append_point").Inc()
		return fmt.Errorf("failed to append point: %w", err)
	}
	return nil
}

// GetTrack возвращает трек с точками
func (r *RedisRepository) GetTrack(ctx context.Context, trackID string) (*models.Track, error) {
	meta, err := r.client.HGetAll(ctx, TrackMetaPrefix+trackID).Result()
	if err != nil {
		metrics.RedisOperationErrors.WithLabelValues("get_track").Inc()
		return nil, fmt.Errorf("failed to get track meta: %w", err)
	}
	if len(meta) == 0 {
		return nil, fmt.Errorf("track %s not found", trackID)
	}

	raw, err := r.client.LRange(ctx, TrackPointsPrefix+trackID, 0, -1).Result()
	if err != nil {
		metrics.RedisOperationErrors.WithLabelValues("get_track").Inc()
		return nil, fmt.Errorf("failed to get track points: %w", err)
	}

	track := &models.Track{
		ID:       trackID,
		DeviceID: meta["device_id"],
		Points:   make([]*models.EnrichedPoint, 0, len(raw)),
	}
	track.StartTime = parseMilli(meta["start_time"])
	track.EndTime = parseMilli(meta["end_time"])

	for _, item := range raw {
		var point models.EnrichedPoint
		if err := json.Unmarshal([]byte(item), &point); err != nil {
			r.logger.WithFields(map[string]interface{}{
				"track_id": trackID,
				"error":    err,
			}).Warn("Skipping unreadable track point")
			continue
		}
		track.Points = append(track.Points, &point)
	}

	return track, nil
}

// ListTracks возвращает все зарегистрированные треки с точками
func (r *RedisRepository) ListTracks(ctx context.Context) ([]*models.Track, error) {
	ids, err := r.client.ZRange(ctx, TracksIndexKey, 0, -1).Result()
	if err != nil {
		metrics.RedisOperationErrors.WithLabelValues("list_tracks").Inc()
		return nil, fmt.Errorf("failed to list tracks: %w", err)
	}

	tracks := make([]*models.Track, 0, len(ids))
	for _, id := range ids {
		track, err := r.GetTrack(ctx, id)
		if err != nil {
			// Метаданные могли истечь раньше индекса
			r.logger.WithField("track_id", id).Debug("Track in index but not readable")
			continue
		}
		tracks = append(tracks, track)
	}

	return tracks, nil
}

// DeleteTrack удаляет трек целиком: метаданные, точки и запись в индексе
func (r *RedisRepository) DeleteTrack(ctx context.Context, trackID string) error {
	start := time.Now()
	pipe := r.client.Pipeline()
	pipe.Del(ctx, TrackMetaPrefix+trackID)
	pipe.Del(ctx, TrackPointsPrefix+trackID)
	pipe.ZRem(ctx, TracksIndexKey, trackID)
	_, err := pipe.Exec(ctx)

	metrics.RedisOperationDuration.WithLabelValues("delete_track").Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.RedisOperationErrors.WithLabelValues("delete_track").Inc()
		return fmt.Errorf("failed to delete track: %w", err)
	}
	return nil
}

// SaveGeofence сохраняет геозону
func (r *RedisRepository) SaveGeofence(ctx context.Context, fence *models.Geofence) error {
	if fence == nil {
		return fmt.Errorf("geofence cannot be nil")
	}
	if err := fence.Validate(); err != nil {
		return err
	}

	data, err := json.Marshal(fence)
	if err != nil {
		return fmt.Errorf("failed to marshal geofence: %w", err)
	}

	pipe := r.client.Pipeline()
	pipe.Set(ctx, GeofencePrefix+fence.ID, data, 0)
	pipe.SAdd(ctx, GeofencesKey, fence.ID)
	if _, err := pipe.Exec(ctx); err != nil {
		metrics.RedisOperationErrors.WithLabelValues("save_geofence").Inc()
		return fmt.Errorf("failed to save geofence: %w", err)
	}
	return nil
}

// ListGeofences возвращает все активные геозоны
func (r *RedisRepository) ListGeofences(ctx context.Context) ([]models.Geofence, error) {
	ids, err := r.client.SMembers(ctx, GeofencesKey).Result()
	if err != nil {
		metrics.RedisOperationErrors.WithLabelValues("list_geofences").Inc()
		return nil, fmt.Errorf("failed to list geofences: %w", err)
	}

	fences := make([]models.Geofence, 0, len(ids))
	for _, id := range ids {
		data, err := r.client.Get(ctx, GeofencePrefix+id).Result()
		if err != nil {
			continue
		}
		var fence models.Geofence
		if err := json.Unmarshal([]byte(data), &fence); err != nil {
			r.logger.WithField("geofence_id", id).Warn("Skipping unreadable geofence")
			continue
		}
		fences = append(fences, fence)
	}

	return fences, nil
}

// DeleteGeofence удаляет геозону
func (r *RedisRepository) DeleteGeofence(ctx context.Context, fenceID string) error {
	pipe := r.client.Pipeline()
	pipe.Del(ctx, GeofencePrefix+fenceID)
	pipe.SRem(ctx, GeofencesKey, fenceID)
	if _, err := pipe.Exec(ctx); err != nil {
		metrics.RedisOperationErrors.WithLabelValues("delete_geofence").Inc()
		return fmt.Errorf("failed to delete geofence: %w", err)
	}
	return nil
}

// PushAlert сохраняет алерт в ограниченный список последних алертов
func (r *RedisRepository) PushAlert(ctx context.Context, alert *models.Alert) error {
	if alert == nil {
		return fmt.Errorf("alert cannot be nil")
	}

	data, err := json.Marshal(alert)
	if err != nil {
		return fmt.Errorf("failed to marshal alert: %w", err)
	}

	pipe := r.client.Pipeline()
	pipe.LPush(ctx, AlertsKey, data)
	pipe.LTrim(ctx, AlertsKey, 0, MaxStoredAlerts)
	if _, err := pipe.Exec(ctx); err != nil {
		metrics.RedisOperationErrors.WithLabelValues("push_alert").Inc()
		return fmt.Errorf("failed to push alert: %w", err)
	}
	return nil
}

// RecentAlerts возвращает последние алерты, новые первыми
func (r *RedisRepository) RecentAlerts(ctx context.Context, limit int) ([]models.Alert, error) {
	if limit <= 0 {
		limit = 50
	}

	raw, err := r.client.LRange(ctx, AlertsKey, 0, int64(limit-1)).Result()
	if err != nil {
		metrics.RedisOperationErrors.WithLabelValues("recent_alerts").Inc()
		return nil, fmt.Errorf("failed to read alerts: %w", err)
	}

	alerts := make([]models.Alert, 0, len(raw))
	for _, item := range raw {
		var alert models.Alert
		if err := json.Unmarshal([]byte(item), &alert); err != nil {
			continue
		}
		alerts = append(alerts, alert)
	}

	return alerts, nil
}

// CheckDeviceToken возвращает device_id для токена или ошибку
func (r *RedisRepository) CheckDeviceToken(ctx context.Context, token string) (string, error) {
	deviceID, err := r.client.Get(ctx, AuthTokenPrefix+token).Result()
	if err == redis.Nil {
		return "", fmt.Errorf("unknown token")
	}
	if err != nil {
		metrics.RedisOperationErrors.WithLabelValues("check_token").Inc()
		return "", fmt.Errorf("failed to check token: %w", err)
	}
	return deviceID, nil
}

// SaveDeviceToken сохраняет токен устройства
func (r *RedisRepository) SaveDeviceToken(ctx context.Context, token, deviceID string) error {
	if token == "" || deviceID == "" {
		return fmt.Errorf("token and device id are required")
	}
	return r.client.Set(ctx, AuthTokenPrefix+token, deviceID, AuthTokenTTL).Err()
}

func parseMilli(value string) time.Time {
	var ms int64
	if _, err := fmt.Sscanf(value, "%d", &ms); err != nil || ms <= 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}
