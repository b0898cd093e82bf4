// Package connection holds the lazily established provider session shared
// by all calendar operations.
package connection
