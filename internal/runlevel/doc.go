// Package runlevel implements the two-phase runlevel transition and
// the signal/shutdown semantics of spec.md §4.7: stop the set of
// services no longer eligible, converge the scheduler onto the new
// mask, and for 0/6 delegate to a shutdown helper.
package runlevel
