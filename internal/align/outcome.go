package align

import (
	"image"
	"time"

	"github.com/ironsheep/slider-align/internal/config"
	"github.com/ironsheep/slider-align/internal/features"
	"github.com/ironsheep/slider-align/internal/imaging"
	"github.com/ironsheep/slider-align/internal/search"
)

// Outcome is what one method produced for one pair.
type Outcome struct {
	Pair   string `json:"pair" yaml:"pair"`
	Method Method `json:"method" yaml:"method"`

	// BeforeSize and AfterSize are the full-resolution image sizes.
	BeforeSize image.Point `json:"before_size" yaml:"before_size"`
	AfterSize  image.Point `json:"after_size" yaml:"after_size"`

	// Crop is set for the crop method.
	Crop *config.CropPreset `json:"crop,omitempty" yaml:"crop,omitempty"`

	// BeforeThumb and AfterThumb are the search resolutions; Search holds
	// the winning candidate and Placement its full-resolution geometry
	// (only when outputs were written).
	BeforeThumb image.Point       `json:"before_thumb,omitempty" yaml:"before_thumb,omitempty"`
	AfterThumb  image.Point       `json:"after_thumb,omitempty" yaml:"after_thumb,omitempty"`
	MaskedText  int               `json:"masked_text,omitempty" yaml:"masked_text,omitempty"`
	Search      *search.Result    `json:"search,omitempty" yaml:"search,omitempty"`
	Placement   *search.Placement `json:"placement,omitempty" yaml:"placement,omitempty"`
	Features    *features.Result  `json:"features,omitempty" yaml:"features,omitempty"`

	Outputs  []string        `json:"outputs,omitempty" yaml:"outputs,omitempty"`
	Delta    *imaging.DeltaE `json:"delta_e,omitempty" yaml:"delta_e,omitempty"`
	Duration time.Duration   `json:"duration" yaml:"duration"`

	Err   error  `json:"-" yaml:"-"`
	Error string `json:"error,omitempty" yaml:"error,omitempty"`
}

func (o *Outcome) setErr(err error) {
	o.Err = err
	o.Error = err.Error()
}

// Failed reports whether the pair could not be aligned.
func (o *Outcome) Failed() bool {
	return o.Err != nil || o.Error != ""
}
