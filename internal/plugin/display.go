package plugin

import (
	"io"
	"maps"
	"slices"
	"sync"
)

// Display is the surface a trial renders to.
type Display interface {
	io.Writer

	// Clear removes the current content.
	Clear()

	AddClasses(classes ...string)
	RemoveClasses(classes ...string)
}

// WriterDisplay renders to a plain writer, e.g. a terminal. Clear is a no-op
// on the writer; the class set is tracked for inspection.
type WriterDisplay struct {
	mu      sync.Mutex
	w       io.Writer
	classes map[string]struct{}
	clears  int
}

// NewWriterDisplay wraps w.
func NewWriterDisplay(w io.Writer) *WriterDisplay {
	return &WriterDisplay{w: w, classes: make(map[string]struct{})}
}

func (d *WriterDisplay) Write(p []byte) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.w.Write(p)
}

func (d *WriterDisplay) Clear() {
	d.mu.Lock()
	d.clears++
	d.mu.Unlock()
}

func (d *WriterDisplay) AddClasses(classes ...string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, c := range classes {
		d.classes[c] = struct{}{}
	}
}

func (d *WriterDisplay) RemoveClasses(classes ...string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, c := range classes {
		delete(d.classes, c)
	}
}

// Classes returns the active classes in sorted order.
func (d *WriterDisplay) Classes() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return slices.Sorted(maps.Keys(d.classes))
}

// Clears reports how many times Clear was called.
func (d *WriterDisplay) Clears() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.clears
}
