// Package fusion attaches auxiliary sensor fields onto sonar lines.
//
// Two alignment strategies are kept side by side. The index strategy maps a
// sonar time straight to a record position and is only valid while the
// auxiliary stream is a gapless arithmetic progression. The nearest strategy
// scans the whole stream and stays correct when rows were dropped or the
// frequency is unusable.
package fusion
