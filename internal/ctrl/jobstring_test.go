package ctrl

import (
	"testing"

	"github.com/gone-svc/initd/internal/registry"
)

func TestParseJobStringMixedSelectors(t *testing.T) {
	sels := ParseJobString("web, db:1, 7")
	if len(sels) != 3 {
		t.Fatalf("expected 3 selectors, got %d", len(sels))
	}
	if sels[0].Name != "web" || sels[0].ByJobID {
		t.Fatalf("unexpected selector 0: %+v", sels[0])
	}
	if sels[1].Name != "db" || sels[1].ID != "1" {
		t.Fatalf("unexpected selector 1: %+v", sels[1])
	}
	if !sels[2].ByJobID || sels[2].JobID != 7 {
		t.Fatalf("expected numeric-leading selector to be a job id: %+v", sels[2])
	}
}

func TestResolveByNameAndJobID(t *testing.T) {
	reg := registry.New()
	web := reg.Put(&registry.Service{Name: "web"})
	reg.Put(&registry.Service{Name: "db", ID: "1"})

	matched, unmatched := Resolve(reg, []Selector{
		{Name: "web"},
		{ByJobID: true, JobID: web.JobID},
		{Name: "missing"},
	})

	if len(unmatched) != 1 || unmatched[0].Name != "missing" {
		t.Fatalf("expected exactly one unmatched selector, got %+v", unmatched)
	}
	if len(matched) != 1 || matched[0] != web {
		t.Fatalf("expected web matched once (deduped across selectors), got %+v", matched)
	}
}
