package models

import (
	"math"

	dErrors "propnest/pkg/domain-errors"
)

const earthRadiusMeters = 6371000.0

// Location is the postal location of a property with an optional geo point.
// Properties without a point are invisible to proximity search.
type Location struct {
	Address string    `json:"address,omitempty"`
	Area    string    `json:"area,omitempty"`
	City    string    `json:"city,omitempty"`
	State   string    `json:"state,omitempty"`
	Pincode string    `json:"pincode,omitempty"`
	Point   *GeoPoint `json:"point,omitempty"`
}

// GeoPoint is a WGS84 coordinate.
type GeoPoint struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// NewGeoPoint builds a point from a GeoJSON-ordered [lng, lat] pair.
func NewGeoPoint(pair []float64) (*GeoPoint, error) {
	if len(pair) != 2 {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "coordinates must be a [lng, lat] pair")
	}
	p := &GeoPoint{Lng: pair[0], Lat: pair[1]}
	if !p.Valid() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "coordinates out of range")
	}
	return p, nil
}

// Valid reports whether the point is a finite coordinate within WGS84 bounds.
func (p *GeoPoint) Valid() bool {
	if p == nil {
		return false
	}
	if math.IsNaN(p.Lat) || math.IsNaN(p.Lng) || math.IsInf(p.Lat, 0) || math.IsInf(p.Lng, 0) {
		return false
	}
	return p.Lat >= -90 && p.Lat <= 90 && p.Lng >= -180 && p.Lng <= 180
}

// Pair returns the point in GeoJSON [lng, lat] order.
func (p *GeoPoint) Pair() []float64 {
	if p == nil {
		return nil
	}
	return []float64{p.Lng, p.Lat}
}

// DistanceMeters returns the great-circle distance between two points.
func DistanceMeters(a, b GeoPoint) float64 {
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLng := (b.Lng - a.Lng) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * earthRadiusMeters * math.Asin(math.Min(1, math.Sqrt(h)))
}

// Box is a lat/lng rectangle. When it crosses the antimeridian MinLng is
// greater than MaxLng and the longitude range wraps through 180.
type Box struct {
	MinLat, MaxLat float64
	MinLng, MaxLng float64
}

// Wraps reports whether the longitude range crosses the antimeridian.
func (b Box) Wraps() bool {
	return b.MinLng > b.MaxLng
}

// Contains reports whether p lies inside the box, edges included.
func (b Box) Contains(p GeoPoint) bool {
	if p.Lat < b.MinLat || p.Lat > b.MaxLat {
		return false
	}
	if b.Wraps() {
		return p.Lng >= b.MinLng || p.Lng <= b.MaxLng
	}
	return p.Lng >= b.MinLng && p.Lng <= b.MaxLng
}

// BoundingBox returns the box enclosing a radius around p. Used as an
// index-friendly prefilter before the exact distance check. Longitudes are
// folded back into [-180, 180]; a box reaching a pole spans every longitude.
func BoundingBox(p GeoPoint, radiusMeters float64) Box {
	dLat := radiusMeters / earthRadiusMeters * 180 / math.Pi
	box := Box{
		MinLat: math.Max(-90, p.Lat-dLat),
		MaxLat: math.Min(90, p.Lat+dLat),
		MinLng: -180,
		MaxLng: 180,
	}
	if box.MinLat == -90 || box.MaxLat == 90 {
		return box
	}
	dLng := dLat / math.Cos(p.Lat*math.Pi/180)
	if dLng >= 180 {
		return box
	}
	box.MinLng = wrapLng(p.Lng - dLng)
	box.MaxLng = wrapLng(p.Lng + dLng)
	return box
}

func wrapLng(lng float64) float64 {
	switch {
	case lng < -180:
		return lng + 360
	case lng > 180:
		return lng - 360
	}
	return lng
}
