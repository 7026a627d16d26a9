package runner

import (
	"strings"
	"testing"

	"golang.org/x/exp/slices"
)

func TestTopologicalSort(t *testing.T) {
	dm := NewDAGManager()
	dm.AddNode("binary", []string{"srctree"})
	dm.AddNode("srctree", []string{"tarball"})
	dm.AddNode("tarball", nil)

	order, err := dm.TopologicalSort()
	if err != nil {
		t.Fatalf("TopologicalSort failed: %v", err)
	}

	if len(order) != 3 {
		t.Fatalf("expected 3 nodes, got %d", len(order))
	}

	if slices.Index(order, "tarball") > slices.Index(order, "srctree") {
		t.Error("tarball ordered after srctree")
	}
	if slices.Index(order, "srctree") > slices.Index(order, "binary") {
		t.Error("srctree ordered after binary")
	}
}

func TestTopologicalSortCycle(t *testing.T) {
	dm := NewDAGManager()
	dm.AddNode("a", []string{"b"})
	dm.AddNode("b", []string{"a"})

	_, err := dm.TopologicalSort()
	if err == nil || !strings.Contains(err.Error(), "cycle") {
		t.Errorf("expected cycle error, got %v", err)
	}
}

func TestDependents(t *testing.T) {
	dm := NewDAGManager()
	dm.AddNode("binary", []string{"srctree"})
	dm.AddNode("docs", []string{"srctree"})
	dm.AddNode("srctree", []string{"tarball"})
	dm.AddNode("tarball", nil)

	deps := dm.Dependents("tarball")
	want := []string{"binary", "docs", "srctree"}
	if !slices.Equal(deps, want) {
		t.Errorf("Dependents(tarball) = %v, want %v", deps, want)
	}

	if got := dm.Dependents("binary"); len(got) != 0 {
		t.Errorf("Dependents(binary) = %v, want none", got)
	}
}
