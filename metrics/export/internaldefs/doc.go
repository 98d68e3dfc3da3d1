// Package internaldefs holds the metric names and bucket bounds shared by
// the Prometheus and OTel exporters.
//
// Renaming a definition here renames it in every exporter.
//
// # What this package must NOT do
//
//   - Import an exporter package.
//   - Perform I/O.
package internaldefs
