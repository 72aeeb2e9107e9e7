// Package post corrects and scores simulated imagery: flat-field
// generation from repeated exposures, dark-level subtraction,
// DN-to-radiance calibration, and the standard evaluation metrics.
package post

import (
	"fmt"
	"math"

	"github.com/treeview-data/eosim/internal/sensor"
	"github.com/treeview-data/eosim/internal/signal"
)

// GenerateFlatField derives a per-pixel gain frame from repeated
// exposures of a uniform reference scene: transform the repeat-stacked
// reference, subtract the mean dark level, normalise each frame by its
// spatial mean, and take the per-pixel median over repeats to reject
// shot-noise outliers.
func GenerateFlatField(ref *signal.Signal, s *sensor.TDICMOS, repeats int) (*signal.Signal, error) {
	if repeats < 1 {
		return nil, fmt.Errorf("%w: %d repeats", signal.ErrShapeMismatch, repeats)
	}
	parts := make([]*signal.Signal, repeats)
	for i := range parts {
		parts[i] = ref.Copy()
	}
	stacked, err := signal.Stack(signal.Dim(signal.DimRepeat, repeats), parts...)
	if err != nil {
		return nil, err
	}
	im, err := s.Transform(stacked)
	if err != nil {
		return nil, err
	}
	dark, err := s.Transform(signal.ZerosLike(stacked))
	if err != nil {
		return nil, err
	}
	darkLevel := dark.Mean()
	im = im.Apply(func(v float64) float64 { return v - darkLevel })

	spatialMean, err := im.MeanOver(signal.DimX, signal.DimY)
	if err != nil {
		return nil, err
	}
	norm, err := im.Combine(spatialMean, safeDiv)
	if err != nil {
		return nil, err
	}
	return norm.MedianOver(signal.DimRepeat)
}

// FlatFieldCorrect removes the dark level and fixed-pattern gain from
// a raw DN frame: (signal - mean(dark)) / flatField.
func FlatFieldCorrect(sig, darkFrame, flatField *signal.Signal) (*signal.Signal, error) {
	darkLevel := darkFrame.Mean()
	out := sig.Apply(func(v float64) float64 { return v - darkLevel })
	return out.Combine(flatField, safeDiv)
}

// NoiseCorrectedSignal images the signal with the imaging sensor and a
// zero scene with the dark-region sensor, then flat-field corrects the
// difference. The two sensors share their column-offset pattern, so
// the subtraction cancels it.
func NoiseCorrectedSignal(sig *signal.Signal, imageSensor, darkSensor *sensor.TDICMOS, flatField *signal.Signal) (*signal.Signal, error) {
	darkFrame, err := darkSensor.Transform(signal.ZerosLike(sig))
	if err != nil {
		return nil, err
	}
	im, err := imageSensor.Transform(sig)
	if err != nil {
		return nil, err
	}
	return FlatFieldCorrect(im, darkFrame, flatField)
}

// NoiseCorrectedReflectance converts a DN frame to apparent
// reflectance by ratioing against a corrected 100%-reflectance
// reference image.
func NoiseCorrectedReflectance(sig, reference *signal.Signal, imageSensor, darkSensor *sensor.TDICMOS, flatField *signal.Signal) (*signal.Signal, error) {
	darkFrame, err := darkSensor.Transform(signal.ZerosLike(reference))
	if err != nil {
		return nil, err
	}
	refRaw, err := imageSensor.Transform(reference)
	if err != nil {
		return nil, err
	}
	refImage, err := FlatFieldCorrect(refRaw, darkFrame, flatField)
	if err != nil {
		return nil, err
	}
	return sig.Combine(refImage, safeDiv)
}

// RMSE is the root-mean-square error between two equal-shaped signals.
func RMSE(a, b *signal.Signal) (float64, error) {
	diff, err := a.Combine(b, func(x, y float64) float64 {
		d := x - y
		return d * d
	})
	if err != nil {
		return 0, err
	}
	if diff.Size() != b.Size() {
		return 0, fmt.Errorf("%w: RMSE over unequal shapes", signal.ErrShapeMismatch)
	}
	sum := 0.0
	for _, v := range diff.Values() {
		sum += v
	}
	return math.Sqrt(sum / float64(diff.Size())), nil
}

func safeDiv(a, b float64) float64 {
	if b == 0 {
		return 0
	}
	return a / b
}
