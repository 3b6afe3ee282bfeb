package overlay

import (
	"context"

	"github.com/temcen/crosssale/pkg/models"
)

// EntryHandle identifies one displayed recommendation inside a Renderer.
type EntryHandle interface{}

// Renderer draws the overlay. The session calls it from whichever goroutine
// delivers user actions; implementations that own a UI thread marshal the
// calls themselves.
type Renderer interface {
	DisplayEntry(info models.ProductInfo) EntryHandle
	RemoveEntry(h EntryHandle)
	Show()
	Hide()
	Close()
}

// RendererFactory builds the renderer for a new session, anchored to the
// caller's UI element.
type RendererFactory func(anchor any) Renderer

// Notifier surfaces a failure to the user. Notify blocks until the user has
// acknowledged it.
type Notifier interface {
	Notify(ctx context.Context, err error)
}

// NotifierFunc adapts a plain function to Notifier.
type NotifierFunc func(ctx context.Context, err error)

func (f NotifierFunc) Notify(ctx context.Context, err error) { f(ctx, err) }

// DefaultAlphaCoefficient gives the full 0..255 alpha range over certainty.
const DefaultAlphaCoefficient = 255

// Emphasis maps a certainty in [0,1] to an alpha channel value. The larger the
// coefficient, the stronger the contrast between close certainties:
// alpha = (255 - k) + k*certainty.
func Emphasis(certainty float64, coefficient int) uint8 {
	if coefficient < 0 {
		coefficient = 0
	}
	if coefficient > 255 {
		coefficient = 255
	}
	if certainty < 0 {
		certainty = 0
	}
	if certainty > 1 {
		certainty = 1
	}
	return uint8(float64(255-coefficient) + float64(coefficient)*certainty)
}
