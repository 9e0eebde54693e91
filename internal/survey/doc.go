// Package survey owns the record shapes shared by every stage of the sonar
// survey pipeline.
//
// Stages, leaf first: records (read + normalize), fusion, geolocate,
// pipeline. Each stage consumes the previous stage's output and returns a
// new collection. The one exception is fusion, which extends SonarLine.Fields
// in place before geolocation reads the line.
//
// Dependency rule: survey imports nothing from its sub-packages.
package survey
