// Package orgs validates the organization parent-child hierarchy. Parent
// links form a forest; a reparenting that would close a loop is rejected
// before it reaches the database.
package orgs

import (
	"github.com/Sharmarajnish/KTSecure-CodeSignIn/internal/db"
)

// Hierarchy is a snapshot of organization parent links.
type Hierarchy struct {
	parents map[string]*string
}

// NewHierarchy builds a hierarchy from organization rows.
func NewHierarchy(organizations []db.Organization) *Hierarchy {
	parents := make(map[string]*string, len(organizations))
	for i := range organizations {
		parents[organizations[i].ID] = organizations[i].ParentID
	}
	return &Hierarchy{parents: parents}
}

// WouldCreateCycle reports whether setting newParentID as the parent of orgID
// would close a loop. Walks up from the proposed parent; bounded by a visited
// set so a pre-existing loop cannot hang the walk.
func (h *Hierarchy) WouldCreateCycle(orgID, newParentID string) bool {
	if orgID == newParentID {
		return true
	}

	visited := make(map[string]bool)
	current := &newParentID
	for current != nil {
		if *current == orgID {
			return true
		}
		if visited[*current] {
			return true
		}
		visited[*current] = true
		current = h.parents[*current]
	}
	return false
}

// Ancestors returns the chain from parent to root for orgID.
func (h *Hierarchy) Ancestors(orgID string) []string {
	ancestors := []string{}
	visited := make(map[string]bool)

	current := h.parents[orgID]
	for current != nil && !visited[*current] {
		ancestors = append(ancestors, *current)
		visited[*current] = true
		current = h.parents[*current]
	}
	return ancestors
}

// Descendants returns every organization below orgID, breadth first.
func (h *Hierarchy) Descendants(orgID string) []string {
	children := make(map[string][]string)
	for id, parent := range h.parents {
		if parent != nil {
			children[*parent] = append(children[*parent], id)
		}
	}

	descendants := []string{}
	queue := append([]string{}, children[orgID]...)
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		descendants = append(descendants, current)
		queue = append(queue, children[current]...)
	}
	return descendants
}

// Depth returns how many ancestors orgID has; roots are at depth zero.
func (h *Hierarchy) Depth(orgID string) int {
	return len(h.Ancestors(orgID))
}

// Cycles finds every loop in the current parent links.
func (h *Hierarchy) Cycles() [][]string {
	cycles := [][]string{}
	visited := make(map[string]bool)

	for id := range h.parents {
		if visited[id] {
			continue
		}

		// Walk up from id, recording the path. A node revisited within this
		// walk closes a loop; a node seen in an earlier walk was already
		// classified.
		path := []string{}
		index := make(map[string]int)
		current := &id
		for current != nil && !visited[*current] {
			if at, seen := index[*current]; seen {
				cycles = append(cycles, append([]string{}, path[at:]...))
				break
			}
			index[*current] = len(path)
			path = append(path, *current)
			current = h.parents[*current]
		}
		for _, node := range path {
			visited[node] = true
		}
	}
	return cycles
}

// Report is the result of a full hierarchy validation.
type Report struct {
	IsValid            bool       `json:"is_valid"`
	Cycles             [][]string `json:"cycles"`
	Orphans            []string   `json:"orphans"`
	MaxDepth           int        `json:"max_depth"`
	TotalOrganizations int        `json:"total_organizations"`
}

// Validate scans the whole hierarchy for cycles, orphaned parent links and
// the maximum nesting depth.
func (h *Hierarchy) Validate() Report {
	cycles := h.Cycles()

	maxDepth := 0
	orphans := []string{}
	for id, parent := range h.parents {
		if depth := h.Depth(id); depth > maxDepth {
			maxDepth = depth
		}
		if parent != nil {
			if _, ok := h.parents[*parent]; !ok {
				orphans = append(orphans, id)
			}
		}
	}

	return Report{
		IsValid:            len(cycles) == 0 && len(orphans) == 0,
		Cycles:             cycles,
		Orphans:            orphans,
		MaxDepth:           maxDepth,
		TotalOrganizations: len(h.parents),
	}
}
