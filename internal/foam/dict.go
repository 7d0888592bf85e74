// Package foam renders OpenFOAM case input as typed dictionary records.
// Every generated file goes through the Dict serializer; there is no
// string-templated OpenFOAM syntax anywhere else in the service, which
// keeps formatting identical across call sites.
package foam

import (
	"fmt"
	"strings"
)

// Dict is an ordered OpenFOAM dictionary. Insertion order is preserved
// because OpenFOAM readers report errors positionally and humans diff the
// generated files.
type Dict struct {
	entries []entry
}

type entry struct {
	key   string
	value any
}

// NewDict returns an empty dictionary.
func NewDict() *Dict {
	return &Dict{}
}

// Set appends or replaces a keyword entry. Accepted value types: int,
// float64, string (emitted verbatim), bool (on/off), *Dict (nested block),
// List (parenthesized multi-line list), and Tuple (inline parenthesized
// vector).
func (d *Dict) Set(key string, value any) *Dict {
	for i := range d.entries {
		if d.entries[i].key == key {
			d.entries[i].value = value
			return d
		}
	}
	d.entries = append(d.entries, entry{key: key, value: value})
	return d
}

// List is a multi-line parenthesized list, one element per line.
type List []any

// Tuple is an inline parenthesized vector, e.g. "(0 0 1.75)".
type Tuple []any

// Dimensions is the 7-component physical dimension set of a field.
type Dimensions [7]int

var (
	// DimVelocity is m/s.
	DimVelocity = Dimensions{0, 1, -1, 0, 0, 0, 0}
	// DimKinematicPressure is m²/s² (pressure over density).
	DimKinematicPressure = Dimensions{0, 2, -2, 0, 0, 0, 0}
	// DimKineticEnergy is m²/s².
	DimKineticEnergy = Dimensions{0, 2, -2, 0, 0, 0, 0}
	// DimDissipation is m²/s³.
	DimDissipation = Dimensions{0, 2, -3, 0, 0, 0, 0}
	// DimViscosity is m²/s.
	DimViscosity = Dimensions{0, 2, -1, 0, 0, 0, 0}
)

// Render serializes the dictionary body (no FoamFile header).
func (d *Dict) Render() string {
	var sb strings.Builder
	d.render(&sb, 0)
	return sb.String()
}

// File serializes a complete OpenFOAM file: the FoamFile header block for
// the given class and object name, followed by the dictionary body.
func (d *Dict) File(class, object string) string {
	header := NewDict().Set("FoamFile", NewDict().
		Set("version", "2.0").
		Set("format", "ascii").
		Set("class", class).
		Set("object", object))
	return header.Render() + "\n" + d.Render()
}

func (d *Dict) render(sb *strings.Builder, depth int) {
	indent := strings.Repeat("    ", depth)
	for _, e := range d.entries {
		switch v := e.value.(type) {
		case *Dict:
			fmt.Fprintf(sb, "%s%s\n%s{\n", indent, e.key, indent)
			v.render(sb, depth+1)
			fmt.Fprintf(sb, "%s}\n", indent)
		case List:
			fmt.Fprintf(sb, "%s%s\n%s(\n", indent, e.key, indent)
			for _, item := range v {
				renderListItem(sb, item, depth+1)
			}
			fmt.Fprintf(sb, "%s);\n", indent)
		default:
			fmt.Fprintf(sb, "%s%s %s;\n", indent, e.key, scalar(e.value))
		}
	}
}

func renderListItem(sb *strings.Builder, item any, depth int) {
	indent := strings.Repeat("    ", depth)
	switch v := item.(type) {
	case *Dict:
		v.render(sb, depth)
	case namedBlock:
		fmt.Fprintf(sb, "%s%s\n%s{\n", indent, v.name, indent)
		v.body.render(sb, depth+1)
		fmt.Fprintf(sb, "%s}\n", indent)
	default:
		fmt.Fprintf(sb, "%s%s\n", indent, scalar(item))
	}
}

// namedBlock is a "name { ... }" element inside a list, as used by the
// blockMesh boundary section.
type namedBlock struct {
	name string
	body *Dict
}

// Block wraps a dictionary with a name for use inside a List.
func Block(name string, body *Dict) any {
	return namedBlock{name: name, body: body}
}

func scalar(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case bool:
		if x {
			return "true"
		}
		return "false"
	case int:
		return fmt.Sprintf("%d", x)
	case float64:
		return fmt.Sprintf("%g", x)
	case Tuple:
		parts := make([]string, len(x))
		for i, item := range x {
			parts[i] = scalar(item)
		}
		return "(" + strings.Join(parts, " ") + ")"
	case Dimensions:
		parts := make([]string, len(x))
		for i, n := range x {
			parts[i] = fmt.Sprintf("%d", n)
		}
		return "[" + strings.Join(parts, " ") + "]"
	default:
		return fmt.Sprintf("%v", x)
	}
}

// Uniform renders a "uniform <value>" field entry.
func Uniform(v any) string {
	return "uniform " + scalar(v)
}
