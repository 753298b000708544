package models

import (
	"fmt"
	"math"

	"github.com/mmcloughlin/geohash"
)

// EarthRadiusM средний радиус Земли в метрах
const EarthRadiusM = 6371000.0

// GeoPoint представляет географическую точку
type GeoPoint struct {
	Latitude  float64 `json:"lat"`
	Longitude float64 `json:"lon"`
}

// Validate проверяет корректность координат
func (p GeoPoint) Validate() error {
	if math.IsNaN(p.Latitude) || math.IsInf(p.Latitude, 0) ||
		math.IsNaN(p.Longitude) || math.IsInf(p.Longitude, 0) {
		return fmt.Errorf("coordinates must be finite: lat=%f lon=%f", p.Latitude, p.Longitude)
	}
	if p.Latitude < -90 || p.Latitude > 90 {
		return fmt.Errorf("invalid latitude: %f", p.Latitude)
	}
	if p.Longitude < -180 || p.Longitude > 180 {
		return fmt.Errorf("invalid longitude: %f", p.Longitude)
	}
	return nil
}

// DistanceTo вычисляет расстояние до другой точки в метрах (формула Haversine)
func (p GeoPoint) DistanceTo(other GeoPoint) float64 {
	lat1Rad := Radians(p.Latitude)
	lat2Rad := Radians(other.Latitude)
	deltaLat := Radians(other.Latitude - p.Latitude)
	deltaLon := Radians(other.Longitude - p.Longitude)

	a := math.Sin(deltaLat/2)*math.Sin(deltaLat/2) +
		math.Cos(lat1Rad)*math.Cos(lat2Rad)*
			math.Sin(deltaLon/2)*math.Sin(deltaLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return EarthRadiusM * c
}

// BearingTo вычисляет начальный азимут на другую точку в градусах [0, 360)
func (p GeoPoint) BearingTo(other GeoPoint) float64 {
	lat1Rad := Radians(p.Latitude)
	lat2Rad := Radians(other.Latitude)
	deltaLon := Radians(other.Longitude - p.Longitude)

	y := math.Sin(deltaLon) * math.Cos(lat2Rad)
	x := math.Cos(lat1Rad)*math.Sin(lat2Rad) -
		math.Sin(lat1Rad)*math.Cos(lat2Rad)*math.Cos(deltaLon)

	bearing := Degrees(math.Atan2(y, x))
	return math.Mod(bearing+360, 360)
}

// Geohash возвращает geohash для точки с заданной точностью
func (p GeoPoint) Geohash(precision int) string {
	return geohash.EncodeWithPrecision(p.Latitude, p.Longitude, uint(precision))
}

// Radians конвертирует градусы в радианы
func Radians(deg float64) float64 {
	return deg * math.Pi / 180
}

// Degrees конвертирует радианы в градусы
func Degrees(rad float64) float64 {
	return rad * 180 / math.Pi
}

// AngularDiff возвращает минимальную знаковую разность двух азимутов в градусах (-180, 180]
func AngularDiff(from, to float64) float64 {
	diff := math.Mod(to-from+540, 360) - 180
	return diff
}
