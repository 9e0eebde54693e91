package projection

import (
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/wroge/wgs84"
)

// UTM grid constants.
const (
	SouthernOffset  = 10000000.0
	minLatitudeDeg  = -80.0
	maxLatitudeDeg  = 84.0
	zoneWidthDeg    = 6.0
	bandLetters     = "CDEFGHJKLMNPQRSTUVWXX"
	bandHeightDeg   = 8.0
	radiansToDegree = 180 / math.Pi
)

// ErrOutOfBounds reports a position UTM does not cover.
var ErrOutOfBounds = errors.New("position outside UTM coverage")

// Planar is a projected position.
type Planar struct {
	X    float64 // easting
	Y    float64 // northing, always positive
	Zone string  // e.g. "32V"
}

// Projector converts longitude/latitude in radians to a planar position.
type Projector interface {
	Project(longitude, latitude float64) (Planar, error)
}

// zoneProjection is the transverse Mercator for one zone.
type zoneProjection struct {
	number  int
	convert func(lon, lat, h float64) (east, north, height float64)
}

// Northern hemisphere parameters are used for every zone so southern
// northings come back negative and get SouthernOffset applied in Project.
func newZoneProjection(number int) *zoneProjection {
	return &zoneProjection{
		number:  number,
		convert: wgs84.LonLat().To(wgs84.UTM(float64(number), true)),
	}
}

// forward returns easting and signed northing (negative south of the equator)
// for a position in degrees.
func (z *zoneProjection) forward(lonDeg, latDeg float64) (float64, float64) {
	east, north, _ := z.convert(lonDeg, latDeg, 0)
	return east, north
}

// ZoneCache memoizes zone projections across calls.
type ZoneCache struct {
	mu    sync.Mutex
	zones map[int]*zoneProjection
}

// NewZoneCache returns an empty cache.
func NewZoneCache() *ZoneCache {
	return &ZoneCache{zones: make(map[int]*zoneProjection)}
}

// Len returns the number of zones built so far.
func (c *ZoneCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.zones)
}

func (c *ZoneCache) zone(number int) *zoneProjection {
	c.mu.Lock()
	defer c.mu.Unlock()
	z, ok := c.zones[number]
	if !ok {
		z = newZoneProjection(number)
		c.zones[number] = z
	}
	return z
}

// UTM projects onto the Universal Transverse Mercator grid.
type UTM struct {
	cache *ZoneCache
}

// NewUTM creates a projector backed by cache. A nil cache gets a private one.
func NewUTM(cache *ZoneCache) *UTM {
	if cache == nil {
		cache = NewZoneCache()
	}
	return &UTM{cache: cache}
}

// Project converts longitude/latitude in radians. Southern northings are
// offset by SouthernOffset so they stay positive.
func (u *UTM) Project(longitude, latitude float64) (Planar, error) {
	lonDeg := longitude * radiansToDegree
	latDeg := latitude * radiansToDegree
	if math.IsNaN(lonDeg) || math.IsInf(lonDeg, 0) || math.IsNaN(latDeg) ||
		latDeg < minLatitudeDeg || latDeg > maxLatitudeDeg {
		return Planar{}, fmt.Errorf("%w: lon=%.6f° lat=%.6f°", ErrOutOfBounds, lonDeg, latDeg)
	}
	lonDeg = normalizeLongitude(lonDeg)

	number := ZoneNumber(lonDeg, latDeg)
	x, y := u.cache.zone(number).forward(lonDeg, latDeg)
	if y < 0 {
		y += SouthernOffset
	}
	return Planar{
		X:    x,
		Y:    y,
		Zone: fmt.Sprintf("%d%c", number, BandLetter(latDeg)),
	}, nil
}

// ZoneNumber returns the UTM zone for a position in degrees, including the
// Norway and Svalbard exceptions.
func ZoneNumber(lonDeg, latDeg float64) int {
	if latDeg >= 56 && latDeg < 64 && lonDeg >= 3 && lonDeg < 12 {
		return 32
	}
	if latDeg >= 72 && latDeg < 84 && lonDeg >= 0 && lonDeg < 42 {
		switch {
		case lonDeg < 9:
			return 31
		case lonDeg < 21:
			return 33
		case lonDeg < 33:
			return 35
		default:
			return 37
		}
	}
	return int((lonDeg+180)/zoneWidthDeg)%60 + 1
}

// BandLetter returns the latitude band letter. Callers must bound latDeg.
func BandLetter(latDeg float64) byte {
	i := int((latDeg - minLatitudeDeg) / bandHeightDeg)
	if i >= len(bandLetters) {
		i = len(bandLetters) - 1
	}
	return bandLetters[i]
}

func normalizeLongitude(lonDeg float64) float64 {
	lonDeg = math.Mod(lonDeg+180, 360)
	if lonDeg < 0 {
		lonDeg += 360
	}
	return lonDeg - 180
}
