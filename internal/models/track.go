package models

import "time"

// Track упорядоченная append-only последовательность обогащенных точек.
// Точки никогда не переупорядочиваются; удаление убирает трек целиком.
type Track struct {
	ID        string           `json:"id"`
	DeviceID  string           `json:"device_id"`
	Points    []*EnrichedPoint `json:"points"`
	StartTime time.Time        `json:"start_time"`
	EndTime   time.Time        `json:"end_time"`
}

// Append добавляет точку в конец трека
func (t *Track) Append(point *EnrichedPoint) {
	t.Points = append(t.Points, point)
	if t.StartTime.IsZero() {
		t.StartTime = point.CapturedAt
	}
	t.EndTime = point.CapturedAt
}

// Duration возвращает продолжительность трека
func (t *Track) Duration() time.Duration {
	if t.EndTime.IsZero() || t.StartTime.IsZero() {
		return 0
	}
	return t.EndTime.Sub(t.StartTime)
}

// DistanceM возвращает суммарную дистанцию трека в метрах по отфильтрованным позициям
func (t *Track) DistanceM() float64 {
	total := 0.0
	for i := 1; i < len(t.Points); i++ {
		total += t.Points[i-1].Filtered.Position.DistanceTo(t.Points[i].Filtered.Position)
	}
	return total
}
