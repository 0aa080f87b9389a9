// Package series models the ordered list of 2D frames that make up one
// imaging series.
package series

import (
	"errors"
	"fmt"
	"sort"
)

// Instance is one 2D frame of a series together with the metadata the
// viewer consumes. Instances are immutable once fetched.
type Instance struct {
	ID string `json:"id"`

	Rows    int `json:"rows"`
	Columns int `json:"columns"`

	// PixelSpacing is the physical distance in mm between adjacent rows
	// (index 0) and adjacent columns (index 1). Zero means unknown.
	PixelSpacing   [2]float64 `json:"pixel_spacing"`
	SliceThickness float64    `json:"slice_thickness"`

	RescaleSlope     float64 `json:"rescale_slope"`
	RescaleIntercept float64 `json:"rescale_intercept"`
	WindowCenter     float64 `json:"window_center"`
	WindowWidth      float64 `json:"window_width"`

	// PixelRepresentation is 0 for unsigned and 1 for signed samples.
	PixelRepresentation int     `json:"pixel_representation"`
	TransferSyntax      string  `json:"transfer_syntax"`
	SortKey             float64 `json:"sort_key"`
}

// HasSpacing reports whether both pixel spacing components are known.
func (in Instance) HasSpacing() bool {
	return in.PixelSpacing[0] > 0 && in.PixelSpacing[1] > 0
}

// Slope returns the rescale slope, treating zero as the identity slope.
func (in Instance) Slope() float64 {
	if in.RescaleSlope == 0 {
		return 1
	}
	return in.RescaleSlope
}

// Validate checks the fields every frame needs before it can be decoded.
func (in Instance) Validate() error {
	if in.ID == "" {
		return errors.New("instance id is empty")
	}
	if in.Rows < 0 || in.Columns < 0 {
		return fmt.Errorf("instance %s: negative dimensions %dx%d", in.ID, in.Columns, in.Rows)
	}
	if in.PixelRepresentation != 0 && in.PixelRepresentation != 1 {
		return fmt.Errorf("instance %s: pixel representation %d not 0 or 1", in.ID, in.PixelRepresentation)
	}
	return nil
}

// Sort orders instances by sort key, breaking ties by id so the order is
// deterministic. The input slice is not modified.
func Sort(instances []Instance) []Instance {
	out := make([]Instance, len(instances))
	copy(out, instances)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].SortKey != out[j].SortKey {
			return out[i].SortKey < out[j].SortKey
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// IDs returns the instance ids in order.
func IDs(instances []Instance) []string {
	ids := make([]string, len(instances))
	for i, in := range instances {
		ids[i] = in.ID
	}
	return ids
}

// ValidateAll validates every instance and rejects duplicate ids.
func ValidateAll(instances []Instance) error {
	seen := make(map[string]struct{}, len(instances))
	for _, in := range instances {
		if err := in.Validate(); err != nil {
			return err
		}
		if _, dup := seen[in.ID]; dup {
			return fmt.Errorf("duplicate instance id %s", in.ID)
		}
		seen[in.ID] = struct{}{}
	}
	return nil
}
