// Package classmap maps categorical segmentation colours to small integer
// class ids and back.
//
// A Table is built once from configuration and shared by the tiler, the
// stitcher's callers and the coverage analyzer so that every stage agrees on
// the same colours and tolerance.
package classmap

import (
	"errors"
	"fmt"
	"image"
	"image/color"
)

// DefaultTolerance is the maximum per-channel difference for a pixel to
// match a class colour
const DefaultTolerance = 10

// Background is the class id every unmatched pixel falls back to
const Background = 0

var (
	// ErrUnknownClass is returned when a class id is outside the table
	ErrUnknownClass = errors.New("unknown class id")

	// ErrInvalidTable is returned by NewTable for unusable class lists
	ErrInvalidTable = errors.New("invalid class table")
)

// Class is one entry of the class colour table
type Class struct {
	// Name is the human readable class name used in coverage reports
	Name string

	// Color is the canonical display colour. Alpha is ignored.
	Color color.NRGBA

	// Aliases are additional colours that classify as this class.
	// Label masks in the field data set were drawn with two slightly
	// different sorghum blues.
	Aliases []color.NRGBA
}

// Table is an ordered mapping from class id to colour. Class ids are the
// indices into the table; id 0 is background.
type Table struct {
	classes   []Class
	tolerance int
}

// NewTable builds a table from classes in id order
func NewTable(classes []Class, tolerance int) (*Table, error) {
	if len(classes) == 0 {
		return nil, fmt.Errorf("%w: no classes", ErrInvalidTable)
	}
	if len(classes) > 256 {
		return nil, fmt.Errorf("%w: %d classes exceed the 8-bit id range", ErrInvalidTable, len(classes))
	}
	if tolerance < 0 || tolerance > 255 {
		return nil, fmt.Errorf("%w: tolerance %d out of range", ErrInvalidTable, tolerance)
	}

	names := make(map[string]bool, len(classes))
	colors := make(map[[3]uint8]bool, len(classes))
	for _, c := range classes {
		if c.Name == "" {
			return nil, fmt.Errorf("%w: class without a name", ErrInvalidTable)
		}
		if names[c.Name] {
			return nil, fmt.Errorf("%w: duplicate class name %q", ErrInvalidTable, c.Name)
		}
		names[c.Name] = true

		key := [3]uint8{c.Color.R, c.Color.G, c.Color.B}
		if colors[key] {
			return nil, fmt.Errorf("%w: duplicate colour for class %q", ErrInvalidTable, c.Name)
		}
		colors[key] = true
	}

	t := &Table{
		classes:   make([]Class, len(classes)),
		tolerance: tolerance,
	}
	copy(t.classes, classes)
	return t, nil
}

// DefaultTable returns the background / sorghum / weeds table used for the
// field imagery
func DefaultTable() *Table {
	t, err := NewTable([]Class{
		{Name: "background", Color: color.NRGBA{R: 195, G: 195, B: 195, A: 255}},
		{
			Name:    "sorghum",
			Color:   color.NRGBA{R: 31, G: 119, B: 189, A: 255},
			Aliases: []color.NRGBA{{R: 31, G: 119, B: 180, A: 255}},
		},
		{Name: "weeds", Color: color.NRGBA{R: 255, G: 127, B: 14, A: 255}},
	}, DefaultTolerance)
	if err != nil {
		panic(err)
	}
	return t
}

// Len returns the number of classes
func (t *Table) Len() int {
	return len(t.classes)
}

// Tolerance returns the per-channel match tolerance
func (t *Table) Tolerance() int {
	return t.tolerance
}

// Classes returns a copy of the table entries in id order
func (t *Table) Classes() []Class {
	out := make([]Class, len(t.classes))
	copy(out, t.classes)
	return out
}

// Name returns the name of class id
func (t *Table) Name(id int) (string, error) {
	if id < 0 || id >= len(t.classes) {
		return "", fmt.Errorf("%w: %d", ErrUnknownClass, id)
	}
	return t.classes[id].Name, nil
}

// ColorOf returns the canonical colour of class id, fully opaque
func (t *Table) ColorOf(id int) (color.NRGBA, error) {
	if id < 0 || id >= len(t.classes) {
		return color.NRGBA{}, fmt.Errorf("%w: %d", ErrUnknownClass, id)
	}
	c := t.classes[id].Color
	c.A = 255
	return c, nil
}

// Classify returns the id of the first class whose colour is within
// tolerance of c. Pixels matching nothing are background.
func (t *Table) Classify(c color.Color) int {
	r, g, b := rgb8(c)
	for id := range t.classes {
		if t.matchRGB(r, g, b, id) {
			return id
		}
	}
	return Background
}

// Matches reports whether c is within tolerance of class id's colour or one
// of its aliases
func (t *Table) Matches(c color.Color, id int) bool {
	if id < 0 || id >= len(t.classes) {
		return false
	}
	r, g, b := rgb8(c)
	return t.matchRGB(r, g, b, id)
}

func (t *Table) matchRGB(r, g, b uint8, id int) bool {
	cls := &t.classes[id]
	if within(r, g, b, cls.Color, t.tolerance) {
		return true
	}
	for _, a := range cls.Aliases {
		if within(r, g, b, a, t.tolerance) {
			return true
		}
	}
	return false
}

// Relevant reports whether any pixel of img classifies as a non-background
// class
func (t *Table) Relevant(img image.Image) bool {
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if t.Classify(img.At(x, y)) != Background {
				return true
			}
		}
	}
	return false
}

// within is the L-infinity tolerance test
func within(r, g, b uint8, ref color.NRGBA, tol int) bool {
	return absDiff(r, ref.R) <= tol && absDiff(g, ref.G) <= tol && absDiff(b, ref.B) <= tol
}

func absDiff(a, b uint8) int {
	if a > b {
		return int(a - b)
	}
	return int(b - a)
}

// rgb8 returns the 8-bit colour channels of c ignoring alpha
func rgb8(c color.Color) (uint8, uint8, uint8) {
	switch v := c.(type) {
	case color.NRGBA:
		return v.R, v.G, v.B
	case color.RGBA:
		if v.A == 255 {
			return v.R, v.G, v.B
		}
	}
	n := color.NRGBAModel.Convert(c).(color.NRGBA)
	return n.R, n.G, n.B
}
