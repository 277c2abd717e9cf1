package plugin

import "sync"

// Deferred is a one-shot completion handle for trial data.
//
// The first call to Resolve or Reject wins; later calls are ignored. Safe for
// concurrent use.
type Deferred struct {
	once sync.Once
	done chan struct{}
	data map[string]any
	err  error
}

// NewDeferred returns an unresolved Deferred.
func NewDeferred() *Deferred {
	return &Deferred{done: make(chan struct{})}
}

// Resolved returns a Deferred already resolved with data.
func Resolved(data map[string]any) *Deferred {
	d := NewDeferred()
	d.Resolve(data)
	return d
}

// Rejected returns a Deferred already failed with err.
func Rejected(err error) *Deferred {
	d := NewDeferred()
	d.Reject(err)
	return d
}

// Resolve completes the Deferred with data.
func (d *Deferred) Resolve(data map[string]any) {
	d.once.Do(func() {
		d.data = data
		close(d.done)
	})
}

// Reject completes the Deferred with an error.
func (d *Deferred) Reject(err error) {
	d.once.Do(func() {
		d.err = err
		close(d.done)
	})
}

// Done is closed once the Deferred is resolved or rejected.
func (d *Deferred) Done() <-chan struct{} {
	return d.done
}

// IsDone reports whether the Deferred has completed.
func (d *Deferred) IsDone() bool {
	select {
	case <-d.done:
		return true
	default:
		return false
	}
}

// Result returns the outcome. It must only be called after Done is closed.
func (d *Deferred) Result() (map[string]any, error) {
	return d.data, d.err
}
