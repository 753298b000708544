// Package anomaly проверяет поток обогащенных точек на аномалии уровня трека:
// скачки скорости, резкие повороты, отклонение от исторических маршрутов,
// выходы из геозон и разрывы GPS.
package anomaly

import (
	"fmt"
	"math"

	"github.com/aragnam/BTMliveTrackerApp/internal/config"
	"github.com/aragnam/BTMliveTrackerApp/internal/metrics"
	"github.com/aragnam/BTMliveTrackerApp/internal/models"
	"github.com/aragnam/BTMliveTrackerApp/pkg/utils"
)

// Detector детектор аномалий одной сессии записи.
// Держит ссылку на предыдущую обогащенную точку и читает сохраненные треки
// без изменения; параллельная модификация сравниваемых треков не
// поддерживается, хранилище должно отдавать снимок.
type Detector struct {
	cfg            config.AnomalyConfig
	logger         *utils.Logger
	sessionTrackID string
	prev           *models.EnrichedPoint
}

// NewDetector создает новый детектор аномалий
func NewDetector(cfg config.AnomalyConfig, logger *utils.Logger) *Detector {
	return &Detector{cfg: cfg, logger: logger}
}

// ResetSession сбрасывает состояние детектора для новой записи.
// trackID - идентификатор записываемого трека; он исключается из сравнения
// маршрутов.
func (d *Detector) ResetSession(trackID string) {
	d.sessionTrackID = trackID
	d.prev = nil
}

// Check проверяет новую обогащенную точку. tracks - все сохраненные треки,
// fences - активные геозоны. Детектор записывает вычисленный азимут в точку
// для сравнения на следующей итерации.
func (d *Detector) Check(point *models.EnrichedPoint, tracks []*models.Track, fences []models.Geofence) []models.Alert {
	var alerts []models.Alert

	// Разрыв GPS: интервал с последнего принятого фикса
	if d.prev != nil {
		gapSec := float64(point.Raw.Timestamp-d.prev.Raw.Timestamp) / 1000
		if gapSec > d.cfg.GapSec {
			alerts = append(alerts, d.newAlert(models.AlertGPSGap,
				fmt.Sprintf("GPS signal lost for %.0f seconds", gapSec),
				point, &gapSec))
		}
	}

	if d.prev != nil {
		alerts = append(alerts, d.checkSpeedJump(point)...)
		alerts = append(alerts, d.checkSharpTurn(point)...)
		alerts = append(alerts, d.checkRouteDeviation(point, tracks)...)
	}

	alerts = append(alerts, d.checkGeofences(point, fences)...)

	for _, a := range alerts {
		metrics.AlertsTotal.WithLabelValues(string(a.Kind)).Inc()
	}

	d.prev = point
	return alerts
}

// checkSpeedJump сравнивает сглаженные скорости соседних точек
func (d *Detector) checkSpeedJump(point *models.EnrichedPoint) []models.Alert {
	delta := point.Filtered.SpeedKmh - d.prev.Filtered.SpeedKmh
	if delta <= d.cfg.SpeedJumpKmh {
		return nil
	}

	d.logger.WithFields(map[string]interface{}{
		"prev_kmh": d.prev.Filtered.SpeedKmh,
		"curr_kmh": point.Filtered.SpeedKmh,
	}).Warn("Sudden speed jump detected")

	return []models.Alert{d.newAlert(models.AlertDeviation,
		fmt.Sprintf("Sudden speed jump: +%.1f km/h", delta),
		point, &delta)}
}

// checkSharpTurn сравнивает азимут к текущей точке с азимутом предыдущей
func (d *Detector) checkSharpTurn(point *models.EnrichedPoint) []models.Alert {
	bearing := d.prev.Filtered.Position.BearingTo(point.Filtered.Position)
	prevBearing := d.prev.Bearing
	point.Bearing = &bearing

	if prevBearing == nil {
		return nil
	}

	diff := models.AngularDiff(*prevBearing, bearing)
	if math.Abs(diff) <= d.cfg.SharpTurnDeg {
		return nil
	}

	return []models.Alert{d.newAlert(models.AlertSharpTurn,
		fmt.Sprintf("Sharp turn: %.0f degrees", diff),
		point, &diff)}
}

// checkRouteDeviation сравнивает точку с сэмплами исторических треков.
// Каждый трек сэмплируется с шагом, ограничивающим стоимость сравнения
// бюджетом сэмплов независимо от длины трека. Отклонение фиксируется, только
// если минимальная дистанция до каждого сравненного трека превышает дальний
// порог; точка в ближнем пороге от любого сэмпла снимает проверку целиком.
func (d *Detector) checkRouteDeviation(point *models.EnrichedPoint, tracks []*models.Track) []models.Alert {
	position := point.Filtered.Position
	compared := 0
	allFar := true

	for _, track := range tracks {
		if track.ID == d.sessionTrackID || len(track.Points) < d.cfg.MinTrackPoints {
			continue
		}
		compared++

		stride := len(track.Points) / d.cfg.MaxSamplesPerTrack
		if stride < 1 {
			stride = 1
		}

		minDist := math.MaxFloat64
		for i := 0; i < len(track.Points); i += stride {
			dist := position.DistanceTo(track.Points[i].Filtered.Position)
			if dist < minDist {
				minDist = dist
			}
			if dist <= d.cfg.DeviationNearM {
				// Точка на известном маршруте
				return nil
			}
		}

		if minDist <= d.cfg.DeviationFarM {
			allFar = false
		}
	}

	if compared == 0 || !allFar {
		return nil
	}

	d.logger.WithFields(map[string]interface{}{
		"compared_tracks": compared,
		"lat":             position.Latitude,
		"lon":             position.Longitude,
	}).Warn("Route deviation from all known tracks")

	return []models.Alert{d.newAlert(models.AlertDeviation,
		"Route deviates from all recorded tracks", point, nil)}
}

// checkGeofences сигнализирует для каждой геозоны, вне которой находится
// точка. Сигнал уровневый, а не по фронту: повторяется на каждом фиксе вне
// зоны, как в исходной реализации.
func (d *Detector) checkGeofences(point *models.EnrichedPoint, fences []models.Geofence) []models.Alert {
	var alerts []models.Alert
	for _, fence := range fences {
		dist := fence.Center.DistanceTo(point.Filtered.Position)
		if dist > fence.RadiusM {
			overshoot := dist - fence.RadiusM
			alerts = append(alerts, d.newAlert(models.AlertGeofence,
				fmt.Sprintf("Outside geofence %q by %.0f m", fence.Name, overshoot),
				point, &overshoot))
		}
	}
	return alerts
}

func (d *Detector) newAlert(kind models.AlertKind, message string, point *models.EnrichedPoint, value *float64) models.Alert {
	position := point.Filtered.Position
	return models.Alert{
		Kind:      kind,
		Message:   message,
		Position:  &position,
		Value:     value,
		Timestamp: point.CapturedAt,
	}
}
