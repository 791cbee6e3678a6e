package fragment

import (
	"context"
	"errors"
	"fmt"
	"html/template"

	"go.uber.org/zap"

	"github.com/kjstillabower/microstore/internal/observability"
	"github.com/kjstillabower/microstore/internal/traffic"
)

// ErrPanic wraps a value recovered from a panicking loader.
var ErrPanic = errors.New("fragment panicked")

// Result is the outcome of rendering one view through a Boundary.
type Result struct {
	Ref      Ref
	HTML     template.HTML
	Fallback bool
	// Category is set when Fallback is true.
	Category ErrorCategory
}

// Boundary isolates a page from its fragments: whatever the loader does,
// Render produces markup.
type Boundary struct {
	loader Loader
	logger *zap.Logger
}

// NewBoundary wraps loader. logger is used when the request context carries none.
func NewBoundary(loader Loader, logger *zap.Logger) *Boundary {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Boundary{loader: loader, logger: logger}
}

// Render loads ref and returns its markup. On a load error or a panic it
// returns Fallback(ref, props) instead. Render never returns an error.
func (b *Boundary) Render(ctx context.Context, ref Ref, props Props) Result {
	html, err := b.load(ctx, ref, props)
	if err == nil {
		traffic.RecordRendered(ref.Fragment)
		return Result{Ref: ref, HTML: html}
	}

	category := CategorizeError(err)
	observability.FragmentFallbacksTotal.WithLabelValues(ref.Fragment, ref.View, string(category)).Inc()
	traffic.RecordFallback(ref.Fragment)
	b.loggerFrom(ctx).Warn("fragment unavailable, rendering fallback",
		zap.String("fragment", ref.Fragment),
		zap.String("view", ref.View),
		zap.String("category", string(category)),
		zap.Error(err),
	)
	return Result{Ref: ref, HTML: Fallback(ref, props), Fallback: true, Category: category}
}

func (b *Boundary) load(ctx context.Context, ref Ref, props Props) (html template.HTML, err error) {
	defer func() {
		if r := recover(); r != nil {
			html = ""
			err = fmt.Errorf("%w: %s: %v", ErrPanic, ref, r)
		}
	}()
	if b.loader == nil {
		return "", fmt.Errorf("%w: no loader for %s", ErrUnknownFragment, ref)
	}
	return b.loader.Load(ctx, ref, props)
}

func (b *Boundary) loggerFrom(ctx context.Context) *zap.Logger {
	if logger, ok := ctx.Value("logger").(*zap.Logger); ok && logger != nil {
		return logger
	}
	return b.logger
}
