// Package pipeline runs a complete survey: read the sonar log, fuse the GNSS
// and speed of sound streams onto it, geolocate every detection and hand the
// result to the configured sinks.
package pipeline
