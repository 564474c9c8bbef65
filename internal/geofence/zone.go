// ABOUTME: Delivery-zone polygon test using ray casting over lat/lng vertices
// ABOUTME: An absent or degenerate zone means no restriction and always matches

package geofence

// Point is a WGS84 coordinate.
type Point struct {
	Lat float64 `json:"lat" toml:"lat"`
	Lng float64 `json:"lng" toml:"lng"`
}

// Polygon is an ordered ring of vertices. The closing edge is implicit.
type Polygon []Point

// Defined reports whether the polygon restricts anything at all.
func (p Polygon) Defined() bool {
	return len(p) >= 3
}

// IsInZone reports whether point lies inside polygon.
// Undefined polygons (nil or fewer than 3 vertices) always contain the point.
func IsInZone(point Point, polygon Polygon) bool {
	if !polygon.Defined() {
		return true
	}

	inside := false
	for i, j := 0, len(polygon)-1; i < len(polygon); j, i = i, i+1 {
		a, b := polygon[i], polygon[j]
		if (a.Lng > point.Lng) != (b.Lng > point.Lng) &&
			point.Lat < (b.Lat-a.Lat)*(point.Lng-a.Lng)/(b.Lng-a.Lng)+a.Lat {
			inside = !inside
		}
	}
	return inside
}

// PolygonFromPairs converts [[lat, lng], ...] pairs as stored in config and the
// database. Pairs with fewer than two numbers are skipped.
func PolygonFromPairs(pairs [][]float64) Polygon {
	if len(pairs) == 0 {
		return nil
	}
	poly := make(Polygon, 0, len(pairs))
	for _, pair := range pairs {
		if len(pair) < 2 {
			continue
		}
		poly = append(poly, Point{Lat: pair[0], Lng: pair[1]})
	}
	return poly
}

// Pairs is the inverse of PolygonFromPairs.
func (p Polygon) Pairs() [][]float64 {
	pairs := make([][]float64, 0, len(p))
	for _, pt := range p {
		pairs = append(pairs, []float64{pt.Lat, pt.Lng})
	}
	return pairs
}
