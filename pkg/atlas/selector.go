package atlas

import (
	"fmt"
	"strings"

	verrors "voxelpart/pkg/errors"
	"voxelpart/pkg/mask"
	"voxelpart/pkg/raster"
)

// selectorKind discriminates the accepted identifier forms.
type selectorKind int

const (
	selectByID selectorKind = iota
	selectByAcronym
	selectByName
	selectByText
)

// Selector identifies one structure in a hierarchy. It is a tagged union
// over the accepted identifier forms: numeric id, acronym, full name, or
// free text matched against both acronym and name.
type Selector struct {
	kind selectorKind
	id   int64
	text string
}

// ByID selects a structure by its numeric id.
func ByID(id int64) Selector {
	return Selector{kind: selectByID, id: id}
}

// ByAcronym selects a structure by its acronym, case-insensitively.
func ByAcronym(acronym string) Selector {
	return Selector{kind: selectByAcronym, text: acronym}
}

// ByName selects a structure by its full name, case-insensitively.
func ByName(name string) Selector {
	return Selector{kind: selectByName, text: name}
}

// ByText selects a structure whose acronym or full name matches the given
// text, case-insensitively. This is the form descriptor files use for
// struct_name.
func ByText(text string) Selector {
	return Selector{kind: selectByText, text: text}
}

// String describes the selector for error messages.
func (s Selector) String() string {
	if s.kind == selectByID {
		return fmt.Sprintf("id %d", s.id)
	}
	return fmt.Sprintf("%q", s.text)
}

// Resolve finds the unique structure the selector identifies. It fails
// when no structure matches, or when more than one does.
func (h *Hierarchy) Resolve(sel Selector) (*Structure, error) {
	var matches []*Structure
	switch sel.kind {
	case selectByID:
		if s, ok := h.byID[sel.id]; ok {
			matches = append(matches, s)
		}
	case selectByAcronym:
		matches = h.byAcronym[strings.ToLower(sel.text)]
	case selectByName:
		matches = h.byName[strings.ToLower(sel.text)]
	case selectByText:
		key := strings.ToLower(sel.text)
		seen := make(map[*Structure]struct{})
		for _, s := range h.byAcronym[key] {
			seen[s] = struct{}{}
			matches = append(matches, s)
		}
		for _, s := range h.byName[key] {
			if _, dup := seen[s]; !dup {
				matches = append(matches, s)
			}
		}
	}

	switch len(matches) {
	case 0:
		return nil, verrors.New(verrors.KindUnknownStructure,
			"no structure matches %s", sel)
	case 1:
		return matches[0], nil
	default:
		return nil, verrors.New(verrors.KindAmbiguousStructure,
			"structure identifier %s matches %d structures", sel, len(matches))
	}
}

// StructureMask resolves the selector and derives the mask of every
// annotation cell whose id belongs to the closure of the resolved
// structure: the node itself plus all of its descendants. Multiple
// distinct leaf ids can all belong to one ancestor structure, so this is
// a set-membership test per voxel, not an equality test.
func (h *Hierarchy) StructureMask(sel Selector, annotation *raster.Volume) (*mask.Mask, error) {
	s, err := h.Resolve(sel)
	if err != nil {
		return nil, err
	}
	return mask.FromSet(annotation, ClosureIDs(s)), nil
}
