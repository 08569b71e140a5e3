// Package units holds the byte-size constants referenced by the teacher's
// buffer pool and carried forward here for the buffer pool and the
// store's badger sizing. The teacher's own units package lives in a
// sibling module that was not part of the retrieval pack; this is a
// minimal subset of it.
package units

const (
	Kb = 1024
	Mb = 1024 * Kb
	Gb = 1024 * Mb
)
