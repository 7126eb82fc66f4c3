package orgs

import (
	"sort"
	"testing"

	"github.com/Sharmarajnish/KTSecure-CodeSignIn/internal/db"
)

func buildHierarchy(links map[string]string) *Hierarchy {
	orgs := []db.Organization{}
	for id, parent := range links {
		org := db.Organization{ID: id}
		if parent != "" {
			p := parent
			org.ParentID = &p
		}
		orgs = append(orgs, org)
	}
	return NewHierarchy(orgs)
}

func TestWouldCreateCycle(t *testing.T) {
	// root -> a -> b -> c
	h := buildHierarchy(map[string]string{
		"root": "",
		"a":    "root",
		"b":    "a",
		"c":    "b",
	})

	tests := []struct {
		name      string
		orgID     string
		newParent string
		want      bool
	}{
		{"self parent", "a", "a", true},
		{"reparent under own descendant", "a", "c", true},
		{"reparent under direct child", "a", "b", true},
		{"reparent under sibling tree", "c", "root", false},
		{"reparent root under leaf", "root", "c", true},
		{"valid deep reparent", "b", "root", false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := h.WouldCreateCycle(tc.orgID, tc.newParent); got != tc.want {
				t.Errorf("WouldCreateCycle(%s, %s) = %v, want %v", tc.orgID, tc.newParent, got, tc.want)
			}
		})
	}
}

func TestAncestorsAndDepth(t *testing.T) {
	h := buildHierarchy(map[string]string{
		"root": "",
		"a":    "root",
		"b":    "a",
	})

	ancestors := h.Ancestors("b")
	want := []string{"a", "root"}
	if len(ancestors) != len(want) {
		t.Fatalf("Ancestors(b) = %v, want %v", ancestors, want)
	}
	for i := range want {
		if ancestors[i] != want[i] {
			t.Errorf("Ancestors(b)[%d] = %s, want %s", i, ancestors[i], want[i])
		}
	}

	if got := h.Depth("root"); got != 0 {
		t.Errorf("Depth(root) = %d, want 0", got)
	}
	if got := h.Depth("b"); got != 2 {
		t.Errorf("Depth(b) = %d, want 2", got)
	}
}

func TestDescendants(t *testing.T) {
	h := buildHierarchy(map[string]string{
		"root":  "",
		"a":     "root",
		"b":     "root",
		"a1":    "a",
		"a2":    "a",
		"other": "",
	})

	got := h.Descendants("root")
	sort.Strings(got)
	want := []string{"a", "a1", "a2", "b"}
	if len(got) != len(want) {
		t.Fatalf("Descendants(root) = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Descendants(root)[%d] = %s, want %s", i, got[i], want[i])
		}
	}

	if ds := h.Descendants("other"); len(ds) != 0 {
		t.Errorf("Descendants(other) = %v, want none", ds)
	}
}

func TestValidate(t *testing.T) {
	t.Run("clean forest", func(t *testing.T) {
		h := buildHierarchy(map[string]string{
			"root": "",
			"a":    "root",
			"b":    "a",
		})

		report := h.Validate()
		if !report.IsValid {
			t.Errorf("report.IsValid = false for a clean forest: %+v", report)
		}
		if report.MaxDepth != 2 {
			t.Errorf("MaxDepth = %d, want 2", report.MaxDepth)
		}
		if report.TotalOrganizations != 3 {
			t.Errorf("TotalOrganizations = %d, want 3", report.TotalOrganizations)
		}
	})

	t.Run("detects a loop", func(t *testing.T) {
		h := buildHierarchy(map[string]string{
			"a": "b",
			"b": "c",
			"c": "a",
		})

		report := h.Validate()
		if report.IsValid {
			t.Error("report.IsValid = true for a looped hierarchy")
		}
		if len(report.Cycles) == 0 {
			t.Fatal("no cycles reported")
		}
		if len(report.Cycles[0]) != 3 {
			t.Errorf("cycle = %v, want all three organizations", report.Cycles[0])
		}
	})

	t.Run("detects orphaned parent links", func(t *testing.T) {
		h := buildHierarchy(map[string]string{
			"a": "gone",
		})

		report := h.Validate()
		if report.IsValid {
			t.Error("report.IsValid = true with a dangling parent link")
		}
		if len(report.Orphans) != 1 || report.Orphans[0] != "a" {
			t.Errorf("Orphans = %v, want [a]", report.Orphans)
		}
	})
}
