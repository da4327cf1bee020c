// Package output renders command results as a table, JSON or YAML.
//
// Tables are built from slices of structs (one row per element, columns from
// json tags), single structs (field/value rows) or an explicit *Table.
// Struct fields tagged `table:"wide"` only appear in wide mode and fields
// tagged `table:"-"` never do. YAML output is derived from the JSON encoding,
// so both machine formats share field names and order.
package output
