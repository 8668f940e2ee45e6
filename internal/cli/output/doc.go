// Package output renders apanic-cli results.
//
// Formats are table (the default), json and yaml. The table formatter
// flattens nested structs into dotted FIELD/VALUE rows and renders slices
// of structs as one row per element. JSON field names are used throughout
// so that every format shows the same keys.
//
// ProgressWriter reports bytes written while a segment is saved to a file.
package output
