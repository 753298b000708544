package pipeline

import (
	"math"

	"github.com/aragnam/BTMliveTrackerApp/internal/config"
)

// AltitudeFilter отклоняет неправдоподобные скачки высоты, подставляя вместо
// них последнюю принятую высоту. Фильтр не смешивает значения: кандидат либо
// принимается, либо заменяется предыдущим отфильтрованным значением.
type AltitudeFilter struct {
	cfg    config.PipelineConfig
	lastMs int64    // время последней принятой высоты
	last   *float64 // последняя отфильтрованная высота
}

// NewAltitudeFilter создает новый высотный фильтр
func NewAltitudeFilter(cfg config.PipelineConfig) *AltitudeFilter {
	return &AltitudeFilter{cfg: cfg}
}

// Reset сбрасывает состояние фильтра
func (f *AltitudeFilter) Reset() {
	f.last = nil
	f.lastMs = 0
}

// Filter обрабатывает кандидата на высоту. Отсутствующая высота проходит как
// отсутствующая; без предыдущего значения кандидат принимается как есть.
func (f *AltitudeFilter) Filter(candidate *float64, timestampMs int64) *float64 {
	if candidate == nil {
		return nil
	}

	if f.last == nil {
		f.accept(*candidate, timestampMs)
		return candidate
	}

	elapsedSec := float64(timestampMs-f.lastMs) / 1000
	if elapsedSec <= 0 {
		elapsedSec = 1
	}

	verticalSpeed := math.Abs(*candidate-*f.last) / elapsedSec
	if verticalSpeed > f.cfg.VerticalSpeedMaxMs {
		// Выброс: держим предыдущее значение
		held := *f.last
		f.lastMs = timestampMs
		return &held
	}

	f.accept(*candidate, timestampMs)
	return candidate
}

func (f *AltitudeFilter) accept(value float64, timestampMs int64) {
	f.last = &value
	f.lastMs = timestampMs
}
