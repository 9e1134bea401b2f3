// Package storage writes JSON files atomically and exports run results.
//
// WriteJSON encodes into a temporary file in the destination directory,
// syncs it, and renames it over the target, so readers only ever see the
// previous content or the complete new content. The ledger file store and
// the run Exporter both go through it.
//
//	exporter, err := storage.NewExporter("./results", log)
//	path, err := exporter.SaveRun(resp)
package storage
