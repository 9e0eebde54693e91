// Package geolocate converts fused sonar detections into absolute 3D
// positions.
//
// Per line the platform position is projected once; each detection's range
// comes from its sample index and the local speed of sound, and its planar
// offset from the sample angle and the platform attitude. Trigonometry runs
// in float64, everything else in decimal.
//
// Heave is deliberately not applied to the point altitude.
package geolocate
