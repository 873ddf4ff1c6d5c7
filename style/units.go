package style

import (
	"strconv"
	"strings"
)

// This file defines unit-safe types for lengths written in a style sheet.

// OneEm is the glyph size, in pixels, that text metrics are expressed at.
const OneEm = 24.0

// Unit represents the original unit of a length value as written in the DSL.
type Unit int

const (
	UnitNone Unit = iota // unit-less numbers; interpreted in the property's native unit
	UnitPx               // pixels at the tile's pixel ratio
	UnitEm               // multiples of the font size (OneEm px)
	UnitDeg              // degrees, for rotations
)

// UnitToString returns a short string for a Unit value.
func UnitToString(u Unit) string {
	switch u {
	case UnitPx:
		return "px"
	case UnitEm:
		return "em"
	case UnitDeg:
		return "deg"
	default:
		return ""
	}
}

// Length preserves a numeric value with its unit.
type Length struct {
	Value float64 `json:"value"`
	Unit  Unit    `json:"unit"`
}

func (l Length) IsZero() bool { return l.Value == 0 }

// To converts this length to target, which must be UnitPx or UnitEm.
// Unit-less values are assumed to already be in target.
func (l Length) To(target Unit) float64 {
	switch l.Unit {
	case UnitPx:
		if target == UnitEm {
			return l.Value / OneEm
		}
	case UnitEm:
		if target == UnitPx {
			return l.Value * OneEm
		}
	}
	return l.Value
}

func (l Length) ToPx() float64 { return l.To(UnitPx) }
func (l Length) ToEm() float64 { return l.To(UnitEm) }

// ParseRawLength parses a DSL number such as "12", "1.5em" or "-4px".
func ParseRawLength(value string) (Length, error) {
	v := strings.ToLower(strings.TrimSpace(value))
	if v == "" {
		return Length{}, nil
	}
	unit := UnitNone
	num := v
	for _, suf := range []struct {
		s string
		u Unit
	}{{"px", UnitPx}, {"em", UnitEm}, {"deg", UnitDeg}} {
		if strings.HasSuffix(v, suf.s) {
			unit = suf.u
			num = strings.TrimSpace(strings.TrimSuffix(v, suf.s))
			break
		}
	}
	f, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return Length{}, err
	}
	return Length{Value: f, Unit: unit}, nil
}

// LineHeightKind distinguishes factor-based vs absolute line-height specification.
type LineHeightKind int

const (
	LineHeightFactor LineHeightKind = iota
	LineHeightAbsolute
)

// LineHeightSpec keeps text-line-height as written: an em factor (1.2) or a pixel length (28px).
type LineHeightSpec struct {
	Kind   LineHeightKind `json:"kind"`
	Factor float64        `json:"factor,omitempty"`
	Len    Length         `json:"len,omitempty"`
}

// Ems resolves the line height in ems.
func (s LineHeightSpec) Ems() float64 {
	switch s.Kind {
	case LineHeightFactor:
		return s.Factor
	case LineHeightAbsolute:
		return s.Len.ToEm()
	default:
		return 1.2
	}
}
