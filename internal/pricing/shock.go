package pricing

import (
	"math"
	"time"

	"github.com/cwklurks/tokyo-market-risk-dashboard/pkg/models"
)

const earthRadiusKM = 6371.0

// HaversineKM returns the great-circle distance between two coordinates in
// kilometers.
func HaversineKM(a, b models.Coordinates) float64 {
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLon := (b.Lon - a.Lon) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusKM * math.Asin(math.Sqrt(h))
}

// magnitudeFactor grows monotonically with magnitude. Quadratic on a 0-10
// scale so major quakes dominate; a parametrized heuristic, not a fitted
// attenuation model.
func magnitudeFactor(magnitude float64) float64 {
	if magnitude <= 0 {
		return 0
	}
	m := math.Min(magnitude, 10) / 10
	return m * m
}

// proximityFactor falls off linearly with epicenter distance and is zero at
// or beyond the configured radius.
func proximityFactor(distanceKM, radiusKM float64) float64 {
	if radiusKM <= 0 || distanceKM >= radiusKM {
		return 0
	}
	if distanceKM < 0 {
		distanceKM = 0
	}
	return 1 - distanceKM/radiusKM
}

// decayFactor falls off linearly with event age and is zero at or beyond the
// decay window. Events timestamped in the future count as fresh.
func decayFactor(age, window time.Duration) float64 {
	if window <= 0 || age >= window {
		return 0
	}
	if age < 0 {
		age = 0
	}
	return 1 - float64(age)/float64(window)
}

// EventShock returns one event's volatility add-on for an entity at the
// given coordinates.
func EventShock(coords models.Coordinates, event models.SeismicEvent, p Params) float64 {
	distance := HaversineKM(coords, event.Epicenter)
	age := p.Now.Sub(event.Time)
	return magnitudeFactor(event.Magnitude) *
		proximityFactor(distance, p.ShockRadiusKM) *
		decayFactor(age, p.ShockDecayWindow)
}

// TotalShock sums the add-ons of all active events. With no active events
// the shock is exactly zero and pricing reduces to the unshocked closed
// form.
func TotalShock(coords models.Coordinates, events []models.SeismicEvent, p Params) float64 {
	var total float64
	for _, ev := range events {
		total += EventShock(coords, ev, p)
	}
	return total
}
