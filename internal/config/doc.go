// Package config parses the declarative directive files that feed
// services into internal/registry (spec.md §4.5), watches the
// configuration directories for changes via fsnotify, and runs the
// mark-and-sweep reload algorithm against a registry.Registry. Value
// coercion uses spf13/cast, environment-file parsing uses
// subosito/gotenv, and the decoded global directive set is shaped by
// mitchellh/mapstructure, the same three-library split
// original_source/src/conf.c covers with hand-rolled C helpers
// (get_bool/strtonum, parse_env, and direct struct-field assignment
// respectively).
package config
