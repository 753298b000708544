package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"

	"github.com/aragnam/BTMliveTrackerApp/internal/config"
	"github.com/aragnam/BTMliveTrackerApp/internal/metrics"
	"github.com/aragnam/BTMliveTrackerApp/internal/models"
	"github.com/aragnam/BTMliveTrackerApp/pkg/utils"
)

// MySQLRepository историческое хранилище завершенных треков.
// Схема: track (id, device_id, start_time, end_time) и track_point
// (track_id, seq, latitude, longitude, altitude, speed_kmh, activity, score,
// flags, confidence, suggested_action, captured_at).
type MySQLRepository struct {
	db     *sql.DB
	logger *utils.Logger
	config *config.MySQLConfig
}

// NewMySQLRepository создает новый MySQL репозиторий
func NewMySQLRepository(cfg *config.MySQLConfig, logger *utils.Logger) (*MySQLRepository, error) {
	if cfg == nil {
		return nil, fmt.Errorf("mysql config cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	if cfg.DSN == "" {
		return nil, fmt.Errorf("mysql DSN is required")
	}

	db, err := sql.Open("mysql", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open MySQL connection: %w", err)
	}

	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetConnMaxLifetime(1 * time.Hour)

	return &MySQLRepository{
		db:     db,
		logger: logger,
		config: cfg,
	}, nil
}

// Ping проверяет соединение с MySQL
func (r *MySQLRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Close закрывает соединение с MySQL
func (r *MySQLRepository) Close() error {
	return r.db.Close()
}

// SaveTrack сохраняет метаданные трека
func (r *MySQLRepository) SaveTrack(ctx context.Context, track *models.Track) error {
	if track == nil || track.ID == "" {
		return fmt.Errorf("track with non-empty id is required")
	}

	query := `
		INSERT INTO track (id, device_id, start_time, end_time)
		VALUES (?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE end_time = VALUES(end_time)
	`
	if _, err := r.db.ExecContext(ctx, query, track.ID, track.DeviceID, track.StartTime, track.EndTime); err != nil {
		metrics.MySQLWriteErrors.Inc()
		return fmt.Errorf("failed to save track: %w", err)
	}
	return nil
}

// SavePointsBatch сохраняет пачку точек одним запросом
func (r *MySQLRepository) SavePointsBatch(ctx context.Context, trackID string, points []*models.EnrichedPoint) error {
	if len(points) == 0 {
		return nil
	}

	var sb strings.Builder
	sb.WriteString(`
		INSERT INTO track_point
			(track_id, latitude, longitude, altitude, speed_kmh, activity,
			 score, flags, confidence, suggested_action, captured_at)
		VALUES `)

	args := make([]interface{}, 0, len(points)*11)
	for i, point := range points {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString("(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)")

		flags, err := json.Marshal(point.Quality.Flags)
		if err != nil {
			return fmt.Errorf("failed to marshal flags: %w", err)
		}

		var altitude sql.NullFloat64
		if point.Filtered.Altitude != nil {
			altitude = sql.NullFloat64{Float64: *point.Filtered.Altitude, Valid: true}
		}

		args = append(args,
			trackID,
			point.Filtered.Position.Latitude,
			point.Filtered.Position.Longitude,
			altitude,
			point.Filtered.SpeedKmh,
			string(point.Filtered.Activity),
			point.Quality.Score,
			string(flags),
			point.Confidence,
			string(point.Action),
			point.CapturedAt,
		)
	}

	if _, err := r.db.ExecContext(ctx, sb.String(), args...); err != nil {
		metrics.MySQLWriteErrors.Inc()
		return fmt.Errorf("failed to save points batch: %w", err)
	}

	metrics.MySQLBatchSize.Observe(float64(len(points)))
	return nil
}

// LoadTracks загружает последние треки с точками, используется как снимок
// для сравнения маршрутов перед началом записи
func (r *MySQLRepository) LoadTracks(ctx context.Context, limit int) ([]*models.Track, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, device_id, start_time, end_time
		FROM track
		ORDER BY start_time DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query tracks: %w", err)
	}
	defer rows.Close()

	var tracks []*models.Track
	for rows.Next() {
		track := &models.Track{}
		if err := rows.Scan(&track.ID, &track.DeviceID, &track.StartTime, &track.EndTime); err != nil {
			return nil, fmt.Errorf("failed to scan track: %w", err)
		}
		tracks = append(tracks, track)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate tracks: %w", err)
	}

	for _, track := range tracks {
		if err := r.loadPoints(ctx, track); err != nil {
			return nil, err
		}
	}

	return tracks, nil
}

// loadPoints загружает точки трека в порядке записи
func (r *MySQLRepository) loadPoints(ctx context.Context, track *models.Track) error {
	rows, err := r.db.QueryContext(ctx, `
		SELECT latitude, longitude, altitude, speed_kmh, activity,
		       score, flags, confidence, suggested_action, captured_at
		FROM track_point
		WHERE track_id = ?
		ORDER BY captured_at ASC
	`, track.ID)
	if err != nil {
		return fmt.Errorf("failed to query track points: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			point    models.EnrichedPoint
			altitude sql.NullFloat64
			activity string
			flags    string
			action   string
		)
		if err := rows.Scan(
			&point.Filtered.Position.Latitude,
			&point.Filtered.Position.Longitude,
			&altitude,
			&point.Filtered.SpeedKmh,
			&activity,
			&point.Quality.Score,
			&flags,
			&point.Confidence,
			&action,
			&point.CapturedAt,
		); err != nil {
			return fmt.Errorf("failed to scan track point: %w", err)
		}

		if altitude.Valid {
			point.Filtered.Altitude = &altitude.Float64
		}
		point.Filtered.Activity = models.ActivityLabel(activity)
		point.Action = models.Action(action)
		if err := json.Unmarshal([]byte(flags), &point.Quality.Flags); err != nil {
			r.logger.WithField("track_id", track.ID).Warn("Unreadable flags on stored point")
		}

		track.Points = append(track.Points, &point)
	}

	return rows.Err()
}

// DeleteTrack удаляет трек и его точки атомарно
func (r *MySQLRepository) DeleteTrack(ctx context.Context, trackID string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM track_point WHERE track_id = ?", trackID); err != nil {
		tx.Rollback()
		metrics.MySQLWriteErrors.Inc()
		return fmt.Errorf("failed to delete track points: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM track WHERE id = ?", trackID); err != nil {
		tx.Rollback()
		metrics.MySQLWriteErrors.Inc()
		return fmt.Errorf("failed to delete track: %w", err)
	}

	return tx.Commit()
}

// CleanupOldTracks удаляет треки старше заданного возраста
func (r *MySQLRepository) CleanupOldTracks(ctx context.Context, olderThan time.Duration) error {
	cutoff := time.Now().Add(-olderThan)

	result, err := r.db.ExecContext(ctx, `
		DELETE tp, t
		FROM track t
		LEFT JOIN track_point tp ON tp.track_id = t.id
		WHERE t.end_time < ?
	`, cutoff)
	if err != nil {
		metrics.MySQLWriteErrors.Inc()
		return fmt.Errorf("failed to cleanup old tracks: %w", err)
	}

	if affected, err := result.RowsAffected(); err == nil && affected > 0 {
		r.logger.WithField("rows", affected).Info("Cleaned up old tracks")
	}
	return nil
}
