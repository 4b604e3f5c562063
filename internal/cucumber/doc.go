// Package cucumber runs the feature files under features/ against the
// throttle and math tracker with godog.
package cucumber
