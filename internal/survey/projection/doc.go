// Package projection converts geodetic longitude/latitude into UTM planar
// coordinates.
//
// Conversion state is kept per UTM zone in a ZoneCache that the caller owns
// and injects; there is no package-level state. A ZoneCache is safe for
// concurrent use.
package projection
