// Package storage manages the downloaded media tree and its per-asset lock.
//
// Files land at {base}/{asset_uid}/{submission_uuid}/{filename}. Writes go
// through a temp file in the destination directory followed by a rename,
// so an existing path always holds a complete download and is never
// fetched again.
package storage
