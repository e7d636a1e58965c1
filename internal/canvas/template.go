// SPDX-License-Identifier: MIT

// Package canvas models overlay templates as closed sum types that are
// validated exactly once, at construction. A Template that exists is
// valid; no use site needs to re-check geometry or variant shape.
package canvas

import (
	"fmt"

	"github.com/clipforge/clipforge/internal/media"
	"github.com/google/uuid"
)

// Position places an element on the canvas. Both axes are percentages of
// the video frame in [0,100].
type Position struct {
	X float64
	Y float64
}

func (p Position) validate(field string) error {
	if p.X < 0 || p.X > 100 {
		return &media.ValidationError{Field: field + ".x", Reason: "position must be between 0 and 100"}
	}
	if p.Y < 0 || p.Y > 100 {
		return &media.ValidationError{Field: field + ".y", Reason: "position must be between 0 and 100"}
	}
	return nil
}

// Background is the closed set of background variants: flat color,
// two-color gradient, or image. No other implementations exist.
type Background interface {
	isBackground()
	validate() error
	spec() media.BackgroundSpec
}

// ColorBackground fills the canvas with a single flat color.
type ColorBackground struct {
	Color string
}

// GradientBackground fills the canvas with a two-color gradient.
type GradientBackground struct {
	StartColor string
	EndColor   string
}

// ImageBackground fills the canvas with an image file.
type ImageBackground struct {
	Path string
}

func (ColorBackground) isBackground()    {}
func (GradientBackground) isBackground() {}
func (ImageBackground) isBackground()    {}

func (b ColorBackground) validate() error    { return nil }
func (b GradientBackground) validate() error { return nil }

func (b ImageBackground) validate() error {
	if b.Path == "" {
		return &media.ValidationError{Field: "background.path", Reason: "must not be empty"}
	}
	return nil
}

func (b ColorBackground) spec() media.BackgroundSpec {
	return media.BackgroundSpec{Type: media.BackgroundTypeColor, Color: b.Color}
}

func (b GradientBackground) spec() media.BackgroundSpec {
	return media.BackgroundSpec{Type: media.BackgroundTypeGradient, StartColor: b.StartColor, EndColor: b.EndColor}
}

func (b ImageBackground) spec() media.BackgroundSpec {
	return media.BackgroundSpec{Type: media.BackgroundTypeImage, Path: b.Path}
}

// Element is the closed set of canvas element variants: positioned text
// or a positioned image.
type Element interface {
	isElement()
	validate(field string) error
	spec() media.CanvasElemSpec
}

// TextElement renders a text string at a position.
type TextElement struct {
	Content  string
	Font     string
	FontSize int
	Color    string
	Outline  string // optional outline color
	Position Position
}

// ImageElement renders an image file scaled to Width x Height at a position.
type ImageElement struct {
	Path     string
	Width    float64
	Height   float64
	Position Position
}

func (TextElement) isElement()  {}
func (ImageElement) isElement() {}

func (e TextElement) validate(field string) error {
	if e.FontSize <= 0 {
		return &media.ValidationError{Field: field + ".font_size", Reason: "must be positive"}
	}
	return e.Position.validate(field)
}

func (e ImageElement) validate(field string) error {
	if e.Path == "" {
		return &media.ValidationError{Field: field + ".path", Reason: "must not be empty"}
	}
	return e.Position.validate(field)
}

func (e TextElement) spec() media.CanvasElemSpec {
	return media.CanvasElemSpec{
		Type:     media.ElementTypeText,
		X:        e.Position.X,
		Y:        e.Position.Y,
		Content:  e.Content,
		Font:     e.Font,
		FontSize: e.FontSize,
		Color:    e.Color,
		Outline:  e.Outline,
	}
}

func (e ImageElement) spec() media.CanvasElemSpec {
	return media.CanvasElemSpec{
		Type:   media.ElementTypeImage,
		X:      e.Position.X,
		Y:      e.Position.Y,
		Path:   e.Path,
		Width:  e.Width,
		Height: e.Height,
	}
}

// Template is a validated overlay description. Construct it through
// NewTemplate or FromWire; a zero Template is not usable.
type Template struct {
	id         string
	name       string
	background Background
	elements   []Element
}

// NewTemplate validates the background and every element and returns the
// template, or the first validation error found. Partially-valid
// templates are never accepted.
func NewTemplate(name string, background Background, elements ...Element) (*Template, error) {
	if name == "" {
		return nil, &media.ValidationError{Field: "name", Reason: "must not be empty"}
	}
	if background == nil {
		return nil, &media.ValidationError{Field: "background", Reason: "must be set"}
	}
	if err := background.validate(); err != nil {
		return nil, err
	}
	for i, elem := range elements {
		if err := elem.validate(fmt.Sprintf("elements[%d]", i)); err != nil {
			return nil, err
		}
	}
	return &Template{
		id:         uuid.New().String(),
		name:       name,
		background: background,
		elements:   append([]Element(nil), elements...),
	}, nil
}

// ID returns the template identifier.
func (t *Template) ID() string { return t.id }

// Name returns the template display name.
func (t *Template) Name() string { return t.name }

// Background returns the background variant.
func (t *Template) Background() Background { return t.background }

// Elements returns a copy of the element list in render order.
func (t *Template) Elements() []Element {
	return append([]Element(nil), t.elements...)
}

// Wire converts the template to its wire shape for the engine payload.
func (t *Template) Wire() media.CanvasTemplate {
	specs := make([]media.CanvasElemSpec, 0, len(t.elements))
	for _, elem := range t.elements {
		specs = append(specs, elem.spec())
	}
	return media.CanvasTemplate{
		ID:         t.id,
		Name:       t.name,
		Background: t.background.spec(),
		Elements:   specs,
	}
}

// FromWire parses and validates a wire-shaped template, typically received
// from the API. Unknown variant tags and invalid geometry are rejected
// with the offending field named.
func FromWire(spec media.CanvasTemplate) (*Template, error) {
	background, err := backgroundFromSpec(spec.Background)
	if err != nil {
		return nil, err
	}

	elements := make([]Element, 0, len(spec.Elements))
	for i, es := range spec.Elements {
		elem, err := elementFromSpec(es, fmt.Sprintf("elements[%d]", i))
		if err != nil {
			return nil, err
		}
		elements = append(elements, elem)
	}

	tpl, err := NewTemplate(spec.Name, background, elements...)
	if err != nil {
		return nil, err
	}
	if spec.ID != "" {
		tpl.id = spec.ID
	}
	return tpl, nil
}

func backgroundFromSpec(spec media.BackgroundSpec) (Background, error) {
	switch spec.Type {
	case media.BackgroundTypeColor:
		return ColorBackground{Color: spec.Color}, nil
	case media.BackgroundTypeGradient:
		return GradientBackground{StartColor: spec.StartColor, EndColor: spec.EndColor}, nil
	case media.BackgroundTypeImage:
		return ImageBackground{Path: spec.Path}, nil
	default:
		return nil, &media.ValidationError{Field: "background.type", Reason: fmt.Sprintf("unknown variant %q", spec.Type)}
	}
}

func elementFromSpec(spec media.CanvasElemSpec, field string) (Element, error) {
	switch spec.Type {
	case media.ElementTypeText:
		return TextElement{
			Content:  spec.Content,
			Font:     spec.Font,
			FontSize: spec.FontSize,
			Color:    spec.Color,
			Outline:  spec.Outline,
			Position: Position{X: spec.X, Y: spec.Y},
		}, nil
	case media.ElementTypeImage:
		return ImageElement{
			Path:     spec.Path,
			Width:    spec.Width,
			Height:   spec.Height,
			Position: Position{X: spec.X, Y: spec.Y},
		}, nil
	default:
		return nil, &media.ValidationError{Field: field + ".type", Reason: fmt.Sprintf("unknown variant %q", spec.Type)}
	}
}
