// Package app is the root package of all domain related packages.
//
// All entity types are defined in this package.
package app

// Default formats
const (
	DateTimeFormat = "2006.01.02 15:04"
	FloatFormat    = "#,###.##"
)

// EntityShort is a short representation of an entity.
type EntityShort[T comparable] struct {
	ID   T
	Name string
}
