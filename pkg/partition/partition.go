package partition

import (
	"go.uber.org/zap"

	"voxelpart/pkg/atlas"
	verrors "voxelpart/pkg/errors"
	"voxelpart/pkg/logger"
	"voxelpart/pkg/mask"
	"voxelpart/pkg/raster"
	"voxelpart/pkg/voxelset"
)

// Policy selects how per-source masks combine into a supermask when no
// explicit mask is given.
type Policy int

const (
	// CombineUnion retains every voxel selected by any source, so a
	// voxel can be structurally present even if zero in some columns.
	// This is the default.
	CombineUnion Policy = iota
	// CombineIntersection retains only voxels selected by every source.
	CombineIntersection
)

// Options tunes a partition build.
type Options struct {
	// Policy is the supermask combination policy. Zero value is union.
	Policy Policy

	// Hierarchy, when non-nil, is used to resolve structure identifiers
	// instead of loading the descriptor's Hierarchy file. It is
	// read-only and may be shared across concurrent builds.
	Hierarchy *atlas.Hierarchy
}

// Build constructs the VoxelSet described by the descriptor using default
// options.
func Build(desc *Descriptor) (*voxelset.VoxelSet, error) {
	return BuildWith(desc, Options{})
}

// BuildWith runs the full pipeline: validate the descriptor, load every
// source, resolve the mask, merge, and build the voxel set. It fails fast;
// no partially-built VoxelSet is ever returned.
func BuildWith(desc *Descriptor, opts Options) (*voxelset.VoxelSet, error) {
	if err := desc.Validate(); err != nil {
		return nil, err
	}

	paths := desc.SourceList()
	sources := make([]*raster.Volume, len(paths))
	for pos, path := range paths {
		vol, err := raster.Load(path)
		if err != nil {
			return nil, err
		}
		if pos > 0 && !vol.SameShape(sources[0]) {
			return nil, verrors.New(verrors.KindShapeMismatch,
				"source %q has shape %v, expected %v like %q",
				path, vol.Shape, sources[0].Shape, paths[0])
		}
		sources[pos] = vol
		logger.Debug("loaded raster source",
			zap.String("path", path),
			zap.Ints("shape", vol.Shape[:]))
	}

	explicit, err := resolveMask(desc, opts, sources)
	if err != nil {
		return nil, err
	}

	supermask, err := Merge(sources, explicit, opts.Policy)
	if err != nil {
		return nil, err
	}

	set, err := voxelset.Build(supermask, sources, desc.Keys,
		[3]float64(desc.VoxelSize), sources[0].Origin)
	if err != nil {
		return nil, err
	}
	logger.Info("built partition",
		zap.Int("voxels", set.Len()),
		zap.Int("columns", set.NumColumns()),
		zap.Int("sources", len(sources)))
	return set, nil
}

// resolveMask derives the explicit mask named by the descriptor, or nil
// when the merger should compute the implicit per-source supermask.
// Precedence: a dedicated mask file beats a structure identifier, which
// beats a mask_value equality test on the sources themselves.
func resolveMask(desc *Descriptor, opts Options, sources []*raster.Volume) (*mask.Mask, error) {
	if desc.MaskSource != "" {
		vol, err := raster.Load(desc.MaskSource)
		if err != nil {
			return nil, err
		}
		if !vol.SameShape(sources[0]) {
			return nil, verrors.New(verrors.KindShapeMismatch,
				"mask source %q has shape %v, sources have shape %v",
				desc.MaskSource, vol.Shape, sources[0].Shape)
		}
		if desc.MaskValue != nil {
			return mask.Equal(vol, *desc.MaskValue), nil
		}
		return mask.NonZero(vol), nil
	}

	if desc.hasStructure() {
		hierarchy := opts.Hierarchy
		if hierarchy == nil {
			if desc.Hierarchy == "" {
				return nil, verrors.New(verrors.KindValidation,
					"structure identifier given but no hierarchy available")
			}
			var err error
			hierarchy, err = atlas.LoadHierarchy(desc.Hierarchy)
			if err != nil {
				return nil, err
			}
		}
		sel := atlas.ByText(desc.StructName)
		if desc.StructID != nil {
			sel = atlas.ByID(*desc.StructID)
		}
		// The first source is the annotation volume for allen kinds.
		return hierarchy.StructureMask(sel, sources[0])
	}

	if desc.MaskValue != nil {
		return equalityMask(sources, *desc.MaskValue, opts.Policy)
	}
	return nil, nil
}

// equalityMask combines per-source equality masks under the configured
// policy.
func equalityMask(sources []*raster.Volume, value float64, policy Policy) (*mask.Mask, error) {
	combined := mask.Equal(sources[0], value)
	for _, src := range sources[1:] {
		next := mask.Equal(src, value)
		var err error
		if policy == CombineIntersection {
			err = combined.Intersect(next)
		} else {
			err = combined.Union(next)
		}
		if err != nil {
			return nil, err
		}
	}
	return combined, nil
}

// Merge applies the explicit mask to every source, or derives the
// supermask from each source's own nonzero cells under the given policy.
// A selection of zero voxels is rejected; an invalid partition must never
// silently become "no voxels".
func Merge(sources []*raster.Volume, explicit *mask.Mask, policy Policy) (*mask.Mask, error) {
	if len(sources) == 0 {
		return nil, verrors.New(verrors.KindValidation, "no sources to merge")
	}

	var supermask *mask.Mask
	if explicit != nil {
		for _, src := range sources {
			if err := explicit.CheckApplicable(src); err != nil {
				return nil, err
			}
		}
		supermask = explicit
	} else {
		supermask = mask.NonZero(sources[0])
		for _, src := range sources[1:] {
			next := mask.NonZero(src)
			var err error
			if policy == CombineIntersection {
				err = supermask.Intersect(next)
			} else {
				err = supermask.Union(next)
			}
			if err != nil {
				return nil, err
			}
		}
	}

	if supermask.Count() == 0 {
		return nil, verrors.New(verrors.KindEmptySelection,
			"combined mask selects no voxels across %d sources", len(sources))
	}
	logger.Debug("merged sources",
		zap.Int("sources", len(sources)),
		zap.Int("selected", supermask.Count()),
		zap.Bool("explicit_mask", explicit != nil))
	return supermask, nil
}
