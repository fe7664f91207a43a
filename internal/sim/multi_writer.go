package sim

import (
	"errors"
	"io"

	"codevolt/internal/telemetry"
)

// MultiWriter fan-outs live snapshots, events and incidents to every writer
// that implements the matching interface.
type MultiWriter struct {
	live      []LiveWriter
	events    []EventWriter
	incidents []IncidentWriter
	closers   []io.Closer
	all       []any
}

// NewMultiWriter sorts writers by the interfaces they implement. A value that
// implements none of them is ignored.
func NewMultiWriter(writers ...any) *MultiWriter {
	mw := &MultiWriter{}
	for _, w := range writers {
		if w == nil {
			continue
		}
		mw.all = append(mw.all, w)
		if lw, ok := w.(LiveWriter); ok {
			mw.live = append(mw.live, lw)
		}
		if ew, ok := w.(EventWriter); ok {
			mw.events = append(mw.events, ew)
		}
		if iw, ok := w.(IncidentWriter); ok {
			mw.incidents = append(mw.incidents, iw)
		}
		if c, ok := w.(io.Closer); ok {
			mw.closers = append(mw.closers, c)
		}
	}
	return mw
}

// WriteLive sends a snapshot to all live writers. Every writer is tried; the
// errors are joined.
func (mw *MultiWriter) WriteLive(state telemetry.StateRow, readings []telemetry.ReadingRow) error {
	var errs []error
	for _, w := range mw.live {
		if err := w.WriteLive(state, readings); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// WriteEvent sends an event to all event writers.
func (mw *MultiWriter) WriteEvent(row telemetry.EventRow) error {
	return mw.WriteEvents([]telemetry.EventRow{row})
}

// WriteEvents sends multiple events to all event writers, using batch if supported.
func (mw *MultiWriter) WriteEvents(rows []telemetry.EventRow) error {
	var errs []error
	for _, w := range mw.events {
		if err := writeEvents(w, rows); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// WriteIncident sends a dispatch report to all incident writers.
func (mw *MultiWriter) WriteIncident(row telemetry.IncidentRow) error {
	var errs []error
	for _, w := range mw.incidents {
		if err := w.WriteIncident(row); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close closes every writer that holds resources.
func (mw *MultiWriter) Close() error {
	var errs []error
	for _, c := range mw.closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// SetControls forwards the session controls to writers that accept them.
func (mw *MultiWriter) SetControls(c Controls) {
	for _, w := range mw.all {
		if cw, ok := w.(controlAware); ok {
			cw.SetControls(c)
		}
	}
}

// SetAdminStatus forwards the admin server state to writers that display it.
func (mw *MultiWriter) SetAdminStatus(listening bool) {
	for _, w := range mw.all {
		if aw, ok := w.(AdminStatusWriter); ok {
			aw.SetAdminStatus(listening)
		}
	}
}
