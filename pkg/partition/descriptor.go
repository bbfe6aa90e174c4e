// Package partition turns declarative partition descriptors into voxel
// sets: it loads the raster sources, resolves the selection mask, merges
// multiple sources under one supermask and builds the final VoxelSet.
package partition

import (
	"fmt"

	verrors "voxelpart/pkg/errors"
)

// Descriptor kinds.
const (
	// TypeNRRD marks a raster-kind partition built from NRRD sources.
	TypeNRRD = "nrrd"
	// TypeAllen marks a structure-kind partition whose mask derives from
	// an atlas structure resolved against the annotation source.
	TypeAllen = "allen"
)

// VoxelSize is the per-axis physical voxel size. In YAML it unmarshals
// from either a scalar (isotropic) or a 3-element list (anisotropic).
type VoxelSize [3]float64

// UnmarshalYAML accepts a scalar or a 3-vector.
func (v *VoxelSize) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var scalar float64
	if err := unmarshal(&scalar); err == nil {
		*v = VoxelSize{scalar, scalar, scalar}
		return nil
	}
	var vec []float64
	if err := unmarshal(&vec); err != nil {
		return fmt.Errorf("voxel_size must be a number or a 3-element list: %w", err)
	}
	if len(vec) != 3 {
		return fmt.Errorf("voxel_size list must have 3 elements, got %d", len(vec))
	}
	copy(v[:], vec)
	return nil
}

// Descriptor is the declarative description of one partition, as produced
// by the configuration layer.
type Descriptor struct {
	// Type selects the partition kind: nrrd or allen.
	Type string `yaml:"type"`

	// Source names a single raster file; Sources names several, in
	// declaration order. Exactly one of the two forms is used.
	Source  string   `yaml:"source,omitempty"`
	Sources []string `yaml:"sources,omitempty"`

	// MaskValue selects cells equal to the given scalar instead of the
	// default nonzero test.
	MaskValue *float64 `yaml:"mask_value,omitempty"`

	// MaskSource names a dedicated raster file to derive the mask from.
	// When given it takes precedence over any structure identifier.
	MaskSource string `yaml:"mask_source,omitempty"`

	// StructName and StructID identify an atlas structure for allen-kind
	// partitions; at most one of the two is set. StructName matches an
	// acronym or a full name.
	StructName string `yaml:"struct_name,omitempty"`
	StructID   *int64 `yaml:"struct_id,omitempty"`

	// Hierarchy names the structure hierarchy JSON file used to resolve
	// StructName/StructID, unless a preloaded hierarchy is passed in the
	// build options.
	Hierarchy string `yaml:"hierarchy,omitempty"`

	// Keys optionally names the data columns, positionally, one per
	// source.
	Keys []string `yaml:"keys,omitempty"`

	// VoxelSize is the physical voxel size. Required, strictly positive.
	VoxelSize VoxelSize `yaml:"voxel_size"`
}

// SourceList returns the declared sources in order, folding the single
// Source form into a one-element list.
func (d *Descriptor) SourceList() []string {
	if d.Source != "" {
		return append([]string{d.Source}, d.Sources...)
	}
	return d.Sources
}

// hasStructure reports whether the descriptor names an atlas structure.
func (d *Descriptor) hasStructure() bool {
	return d.StructName != "" || d.StructID != nil
}

// Validate checks the descriptor before any raster is loaded. Key count
// mismatches are rejected here, before any voxel is computed.
func (d *Descriptor) Validate() error {
	switch d.Type {
	case TypeNRRD, TypeAllen:
	default:
		return verrors.New(verrors.KindValidation,
			"unknown partition type %q", d.Type)
	}

	sources := d.SourceList()
	if len(sources) == 0 {
		return verrors.New(verrors.KindValidation,
			"partition declares no sources")
	}
	if d.Keys != nil && len(d.Keys) != len(sources) {
		return verrors.New(verrors.KindKeyCountMismatch,
			"%d keys declared for %d sources", len(d.Keys), len(sources))
	}
	for axis, vs := range d.VoxelSize {
		if vs <= 0 {
			return verrors.New(verrors.KindValidation,
				"voxel_size must be positive, got %g on axis %d", vs, axis)
		}
	}
	if d.StructName != "" && d.StructID != nil {
		return verrors.New(verrors.KindValidation,
			"struct_name and struct_id are mutually exclusive")
	}
	if d.Type == TypeAllen && !d.hasStructure() && d.MaskSource == "" {
		return verrors.New(verrors.KindValidation,
			"allen partition needs struct_name, struct_id or mask_source")
	}
	if d.Type == TypeNRRD && d.hasStructure() {
		return verrors.New(verrors.KindValidation,
			"struct_name/struct_id is only valid for allen partitions")
	}
	return nil
}
