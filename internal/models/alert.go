package models

import "time"

// AlertKind вид аномалии
type AlertKind string

const (
	AlertGPSGap    AlertKind = "gps_gap"
	AlertSharpTurn AlertKind = "sharp_turn"
	AlertDeviation AlertKind = "deviation"
	AlertGeofence  AlertKind = "geofence"
	AlertGeneric   AlertKind = "generic"
)

// Alert аномалия, обнаруженная детектором по обогащенной точке
type Alert struct {
	Kind      AlertKind `json:"kind"`
	Message   string    `json:"message"`
	Position  *GeoPoint `json:"position,omitempty"`
	Value     *float64  `json:"value,omitempty"` // Числовая нагрузка: секунды разрыва, градусы поворота и т.п.
	Timestamp time.Time `json:"timestamp"`
}
