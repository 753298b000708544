package models

// Flag диагностический флаг качества фикса
type Flag string

// Фиксированный словарь флагов. Экспортируемые значения попадают в CSV/forensic
// выгрузки и не должны меняться.
const (
	FlagPoorAccuracy        Flag = "poor_accuracy"
	FlagMediumAccuracy      Flag = "medium_accuracy"
	FlagImplausibleSpeed    Flag = "implausible_speed"
	FlagHighSpeed           Flag = "high_speed"
	FlagImplausibleAltitude Flag = "implausible_altitude"
	FlagExtremeAltitude     Flag = "extreme_altitude"
	FlagLargeTimeGap        Flag = "large_time_gap"
	FlagPositionSpike       Flag = "position_spike"
	FlagHighSpeedJump       Flag = "high_speed_jump"
	FlagAltitudeSpike       Flag = "altitude_spike"
	FlagRapidAltitudeChange Flag = "rapid_altitude_change"
)

// QualityAssessment оценка качества одного фикса: балл 0-100 и набор флагов
type QualityAssessment struct {
	Score int    `json:"score"`
	Flags []Flag `json:"flags"`
}

// HasFlag проверяет наличие флага
func (q *QualityAssessment) HasFlag(flag Flag) bool {
	for _, f := range q.Flags {
		if f == flag {
			return true
		}
	}
	return false
}

// AddFlags добавляет флаги к оценке
func (q *QualityAssessment) AddFlags(flags ...Flag) {
	q.Flags = append(q.Flags, flags...)
}
