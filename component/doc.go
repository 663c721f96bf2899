// Package component defines the lifecycle interfaces shared by long-lived
// netmanager parts, so a host application can start, stop and health-check
// them uniformly.
package component
