// Package model provides the data structures shared across the pipeline packages.
// It defines the step metadata, the step statuses, and the interfaces implemented
// by pipeline options such as the drawer and the measure collector.
package model
