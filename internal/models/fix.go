package models

import (
	"fmt"
	"math"
	"time"
)

// RawFix представляет один сырой отсчет геолокации от устройства.
// Опциональные поля (высота, курс, скорость) моделируются указателями:
// отсутствующее значение отличимо от нуля.
type RawFix struct {
	Position  GeoPoint `json:"position"`
	AccuracyM float64  `json:"accuracy"`           // Оценка точности в метрах, >= 0
	Altitude  *float64 `json:"altitude,omitempty"` // Высота в метрах
	Heading   *float64 `json:"heading,omitempty"`  // Курс в градусах [0, 360)
	SpeedMs   *float64 `json:"speed,omitempty"`    // Сообщенная устройством скорость, м/с
	Timestamp int64    `json:"timestamp"`          // Миллисекунды эпохи
}

// Time возвращает время фикса
func (f *RawFix) Time() time.Time {
	return time.UnixMilli(f.Timestamp)
}

// SpeedKmh возвращает сообщенную устройством скорость в км/ч (0 если отсутствует или не конечна)
func (f *RawFix) SpeedKmh() float64 {
	if f.SpeedMs == nil || math.IsNaN(*f.SpeedMs) || math.IsInf(*f.SpeedMs, 0) {
		return 0
	}
	return *f.SpeedMs * 3.6
}

// Validate проверяет, что фикс пригоден для обработки
func (f *RawFix) Validate() error {
	if err := f.Position.Validate(); err != nil {
		return err
	}
	if math.IsNaN(f.AccuracyM) || math.IsInf(f.AccuracyM, 0) || f.AccuracyM < 0 {
		return fmt.Errorf("invalid accuracy: %f", f.AccuracyM)
	}
	if f.Timestamp <= 0 {
		return fmt.Errorf("invalid timestamp: %d", f.Timestamp)
	}
	return nil
}

// Float64Ptr возвращает указатель на значение (для опциональных полей)
func Float64Ptr(v float64) *float64 {
	return &v
}
