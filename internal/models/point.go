package models

import "time"

// ActivityLabel метка активности
type ActivityLabel string

const (
	ActivityStationary ActivityLabel = "stationary"
	ActivityWalking    ActivityLabel = "walking"
	ActivityRunning    ActivityLabel = "running"
	ActivityCycling    ActivityLabel = "cycling"
	ActivityDriving    ActivityLabel = "driving"
)

// Action рекомендуемое действие для фикса
type Action string

const (
	ActionKeep   Action = "keep"
	ActionReview Action = "review"
)

// FilteredView очищенное представление фикса после прохождения конвейера
type FilteredView struct {
	Position       GeoPoint      `json:"position"`
	Altitude       *float64      `json:"altitude,omitempty"`
	SpeedKmh       float64       `json:"speed_kmh"`
	Activity       ActivityLabel `json:"activity"`
	IsQualityPoint bool          `json:"is_quality_point"`
}

// EnrichedPoint единица хранения трека: сырой фикс плюс его оценка,
// отфильтрованные значения, уверенность и рекомендация.
// После создания не изменяется, за одним исключением: детектор аномалий
// записывает в Bearing вычисленный азимут для сравнения на следующей итерации.
type EnrichedPoint struct {
	Raw        RawFix            `json:"raw"`
	Quality    QualityAssessment `json:"quality"`
	Filtered   FilteredView      `json:"filtered"`
	Confidence float64           `json:"confidence"`
	Action     Action            `json:"suggested_action"`
	CapturedAt time.Time         `json:"captured_at"`
	Bearing    *float64          `json:"bearing,omitempty"`
}
