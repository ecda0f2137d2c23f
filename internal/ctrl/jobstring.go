package ctrl

import (
	"strconv"
	"strings"

	"github.com/gone-svc/initd/internal/registry"
)

// Selector is one parsed element of a job-string: `name[:id]` or
// `jobid[:id]` — a numeric-leading token names a job id rather than a
// service name (spec.md §4.6).
type Selector struct {
	raw     string
	ByJobID bool
	JobID   int
	Name    string
	ID      string
}

// ParseJobString splits a comma-separated job-string into Selectors.
func ParseJobString(s string) []Selector {
	var out []Selector
	for _, tok := range strings.Split(s, ",") {
		tok = strings.TrimSpace(tok)
		if tok == "" {
			continue
		}
		out = append(out, parseSelector(tok))
	}
	return out
}

func parseSelector(tok string) Selector {
	sel := Selector{raw: tok}

	name, id, hasID := strings.Cut(tok, ":")
	if hasID {
		sel.ID = id
	}

	if n, err := strconv.Atoi(name); err == nil {
		sel.ByJobID = true
		sel.JobID = n
		return sel
	}

	sel.Name = name
	return sel
}

// Resolve matches every selector against reg, returning every service
// matched (duplicates collapsed) and every selector that matched
// nothing, in selector order (spec.md §4.6: "a selector matches zero
// or more services; per-service action is applied iteratively").
func Resolve(reg *registry.Registry, sels []Selector) (matched []*registry.Service, unmatched []Selector) {
	seen := make(map[registry.Key]bool)

	for _, sel := range sels {
		var found []*registry.Service

		switch {
		case sel.ByJobID:
			if svc := reg.ByJobID(sel.JobID); svc != nil {
				found = append(found, svc)
			}
		case sel.ID != "":
			if svc := reg.Get(registry.Key{Name: sel.Name, ID: sel.ID}); svc != nil {
				found = append(found, svc)
			}
		default:
			found = reg.ByName(sel.Name)
		}

		if len(found) == 0 {
			unmatched = append(unmatched, sel)
			continue
		}
		for _, svc := range found {
			key := svc.Key()
			if seen[key] {
				continue
			}
			seen[key] = true
			matched = append(matched, svc)
		}
	}

	return matched, unmatched
}
