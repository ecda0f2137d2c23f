// Package plugin implements the named-hook-point dispatcher of
// spec.md §4.8: built-in modules register a callback per hook plus a
// dependency list, and the dispatcher runs them in topological order.
package plugin
