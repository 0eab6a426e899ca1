// Package archive packs a downloaded asset tree into a single ZIP.
package archive
