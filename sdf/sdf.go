// Package sdf implements the signed distance function kernel used to model
// the enclosure parts. Distances are negative inside a solid.
package sdf

import (
	"errors"
	"fmt"
	"math"
	"runtime"

	"github.com/soypat/workbox/internal/d3"
	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/gonum/spatial/r3"
)

// SDF3 is the interface to a 3d signed distance function object.
type SDF3 interface {
	// Evaluate takes a point in 3D space as input and returns
	// the minimum distance of the SDF3 to the point. The distance
	// is negative if the point is contained within the SDF3.
	Evaluate(p r3.Vec) float64
	// Bounds returns the bounding box that completely contains
	// the SDF3.
	Bounds() r3.Box
}

// SDF2 is the interface to a 2d signed distance function object.
type SDF2 interface {
	Evaluate(p r2.Vec) float64
	Bounds() r2.Box
}

// ErrNilSDF is returned when a nil shape is passed to an operation.
var ErrNilSDF = errors.New("nil SDF argument")

// errMsg returns an error with a message, function name and line number.
func errMsg(msg string) error {
	pc, _, line, ok := runtime.Caller(1)
	if !ok {
		return fmt.Errorf("?: %s", msg)
	}
	fn := runtime.FuncForPC(pc)
	return fmt.Errorf("%s line %d: %s", fn.Name(), line, msg)
}

// empty3 is a shape that contains no points.
type empty3 struct {
	center r3.Vec
}

var _ SDF3 = empty3{}

// Empty3D returns a shape with no volume located at center.
func Empty3D(center r3.Vec) SDF3 {
	return empty3{center: center}
}

func (e empty3) Evaluate(r3.Vec) float64 {
	return math.MaxFloat64
}

func (e empty3) Bounds() r3.Box {
	return r3.Box{
		Min: e.center,
		Max: e.center,
	}
}

// Center returns the center of the bounding box of s.
func Center(s SDF3) r3.Vec {
	return d3.Box(s.Bounds()).Center()
}

// Size returns the size of the bounding box of s.
func Size(s SDF3) r3.Vec {
	return d3.Box(s.Bounds()).Size()
}

func r2Of(p r3.Vec) r2.Vec { return r2.Vec{X: p.X, Y: p.Y} }
