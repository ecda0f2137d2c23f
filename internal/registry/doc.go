// Package registry holds the service entity table: one Service per
// (name, id) pair, in deterministic insertion order, plus the
// mark-and-sweep bookkeeping fields (dirty/clean/seen/protected) the
// configuration reload algorithm needs. It has no behaviour of its
// own beyond storage and iteration - internal/sched drives the state
// machine, internal/config drives reload.
package registry
