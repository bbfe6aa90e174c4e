// Package atlas resolves hierarchical atlas structures into voxel masks.
//
// A structure hierarchy is a tree of nodes carrying an id, an acronym and
// a full name. A structure's spatial extent in an annotation volume is
// the union of its own voxels and every descendant's voxels, so mask
// derivation is a set-membership test over the closure of the resolved
// node. The hierarchy is read-only after load and safe to share across
// concurrent resolutions.
package atlas

import (
	"os"
	"strings"

	"github.com/goccy/go-json"

	verrors "voxelpart/pkg/errors"
)

// Structure is one node of the atlas hierarchy.
type Structure struct {
	ID       int64        `json:"id"`
	Acronym  string       `json:"acronym"`
	Name     string       `json:"name"`
	Children []*Structure `json:"children"`
}

// Hierarchy is an indexed, read-only structure tree.
type Hierarchy struct {
	roots     []*Structure
	byID      map[int64]*Structure
	byAcronym map[string][]*Structure
	byName    map[string][]*Structure
}

// NewHierarchy indexes the given root structures. Duplicate structure ids
// are rejected; acronym and name collisions are allowed at index time and
// surface as ambiguity errors at resolution time.
func NewHierarchy(roots ...*Structure) (*Hierarchy, error) {
	h := &Hierarchy{
		roots:     roots,
		byID:      make(map[int64]*Structure),
		byAcronym: make(map[string][]*Structure),
		byName:    make(map[string][]*Structure),
	}
	for _, root := range roots {
		if err := h.index(root); err != nil {
			return nil, err
		}
	}
	return h, nil
}

func (h *Hierarchy) index(s *Structure) error {
	if _, exists := h.byID[s.ID]; exists {
		return verrors.New(verrors.KindSourceFormat,
			"structure hierarchy contains duplicate id %d", s.ID)
	}
	h.byID[s.ID] = s
	if s.Acronym != "" {
		key := strings.ToLower(s.Acronym)
		h.byAcronym[key] = append(h.byAcronym[key], s)
	}
	if s.Name != "" {
		key := strings.ToLower(s.Name)
		h.byName[key] = append(h.byName[key], s)
	}
	for _, child := range s.Children {
		if err := h.index(child); err != nil {
			return err
		}
	}
	return nil
}

// hierarchyDocument matches the Allen structure graph download format: a
// "msg" envelope holding the root nodes. A bare node or bare node list is
// accepted as well.
type hierarchyDocument struct {
	Msg []*Structure `json:"msg"`
}

// LoadHierarchy reads a structure hierarchy from a JSON file.
func LoadHierarchy(path string) (*Hierarchy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, verrors.Wrap(err, verrors.KindSourceNotFound,
			"cannot open structure hierarchy %q", path)
	}

	var doc hierarchyDocument
	if err := json.Unmarshal(data, &doc); err == nil && len(doc.Msg) > 0 {
		return NewHierarchy(doc.Msg...)
	}

	var roots []*Structure
	if err := json.Unmarshal(data, &roots); err == nil && len(roots) > 0 {
		return NewHierarchy(roots...)
	}

	var root Structure
	if err := json.Unmarshal(data, &root); err != nil || root.ID == 0 {
		return nil, verrors.New(verrors.KindSourceFormat,
			"cannot parse structure hierarchy %q", path)
	}
	return NewHierarchy(&root)
}

// Roots returns the root structures of the hierarchy.
func (h *Hierarchy) Roots() []*Structure {
	return h.roots
}

// Get returns the structure with the given id, if any.
func (h *Hierarchy) Get(id int64) (*Structure, bool) {
	s, ok := h.byID[id]
	return s, ok
}

// ClosureIDs returns the id set of the structure and all of its
// descendants.
func ClosureIDs(s *Structure) map[int64]struct{} {
	ids := make(map[int64]struct{})
	var walk func(*Structure)
	walk = func(node *Structure) {
		ids[node.ID] = struct{}{}
		for _, child := range node.Children {
			walk(child)
		}
	}
	walk(s)
	return ids
}
