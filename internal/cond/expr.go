package cond

import "strings"

// Atom is one term of a condition expression: a key, whether it is
// negated, and whether it opts out of config-reload handling (the
// leading '!' in "!service/foo/ready" - on change the referencing
// service must be fully restarted rather than sent a reload signal).
type Atom struct {
	Key          string
	Negate       bool
	IgnoreReload bool
}

// Expression is an AND of Atoms; disjunction is never expressed here,
// callers register two services with different expressions instead.
type Expression []Atom

// ParseExpression parses a space-separated list of atoms such as
// "service/net/ready !usr/foo <net/eth0/up".
//
// Atom syntax: an optional leading '!' sets IgnoreReload, an optional
// leading '<' is accepted and stripped as a no-op separator some
// configuration dialects use before a condition clause, and a '-'
// prefix on the key negates it.
func ParseExpression(s string) Expression {
	fields := strings.Fields(s)
	expr := make(Expression, 0, len(fields))
	for _, f := range fields {
		a := Atom{}
		f = strings.TrimPrefix(f, "<")
		if strings.HasPrefix(f, "!") {
			a.IgnoreReload = true
			f = f[1:]
		}
		if strings.HasPrefix(f, "-") {
			a.Negate = true
			f = f[1:]
		}
		a.Key = f
		if a.Key == "" {
			continue
		}
		expr = append(expr, a)
	}
	return expr
}

// Eval reports whether every atom currently holds against s: an
// un-negated atom requires On, a negated atom requires not-On (Off or
// Flux both count as "not asserted").
func (e Expression) Eval(s *Store) bool {
	for _, a := range e {
		on := s.Get(a.Key) == On
		if a.Negate {
			on = !on
		}
		if !on {
			return false
		}
	}
	return true
}

// HasFlux reports whether any referenced key is currently FLUX, the
// signal a service uses to decide whether it should move to WAITING
// or merely accept a reload.
func (e Expression) HasFlux(s *Store) bool {
	for _, a := range e {
		if s.Get(a.Key) == Flux {
			return true
		}
	}
	return false
}

// SupportsReload reports whether every atom in the expression allows
// the referencing service to handle a dependency change via SIGHUP
// rather than a full restart.
func (e Expression) SupportsReload() bool {
	for _, a := range e {
		if a.IgnoreReload {
			return false
		}
	}
	return true
}

// Keys returns the distinct condition keys this expression reads,
// used by the registry to build the reverse-dependency index for
// dirty propagation during reload.
func (e Expression) Keys() []string {
	seen := make(map[string]bool, len(e))
	keys := make([]string, 0, len(e))
	for _, a := range e {
		if seen[a.Key] {
			continue
		}
		seen[a.Key] = true
		keys = append(keys, a.Key)
	}
	return keys
}
