package fragment

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/kjstillabower/microstore/internal/traffic"
)

// loaderFunc adapts a function to Loader.
type loaderFunc func(ctx context.Context, ref Ref, props Props) (template.HTML, error)

func (f loaderFunc) Load(ctx context.Context, ref Ref, props Props) (template.HTML, error) {
	return f(ctx, ref, props)
}

func TestBoundary_Render_Success(t *testing.T) {
	traffic.Reset()
	b := NewBoundary(loaderFunc(func(ctx context.Context, ref Ref, props Props) (template.HTML, error) {
		return "<header>ok</header>", nil
	}), nil)

	res := b.Render(context.Background(), Ref{Header, ViewHeader}, Props{})
	if res.Fallback {
		t.Error("Render() Fallback = true, want false")
	}
	if res.HTML != "<header>ok</header>" {
		t.Errorf("Render() HTML = %q", res.HTML)
	}
	if got := traffic.ByFragment(time.Minute); len(got) != 1 || got[0].Rendered != 1 {
		t.Errorf("traffic.ByFragment() = %+v, want one rendered header", got)
	}
}

// TestBoundary_Render_FallbackOnAnyError verifies that every load failure
// renders the designated fallback view instead of escaping the boundary.
func TestBoundary_Render_FallbackOnAnyError(t *testing.T) {
	errs := []error{
		ErrRemoteUnavailable,
		fmt.Errorf("%w: Cart/Cart", ErrViewNotFound),
		ErrBadResponse,
		context.DeadlineExceeded,
		errors.New("something else"),
	}
	refs := []Ref{
		{Header, ViewHeader},
		{Products, ViewProductList},
		{Cart, ViewCart},
		{Cart, ViewCartButton},
		{User, ViewLogin},
		{User, ViewProfile},
		{User, ViewUserSettings},
	}
	for _, loadErr := range errs {
		for _, ref := range refs {
			b := NewBoundary(loaderFunc(func(ctx context.Context, r Ref, p Props) (template.HTML, error) {
				return "", loadErr
			}), nil)
			props := Props{ItemCount: 2}
			res := b.Render(context.Background(), ref, props)
			if !res.Fallback {
				t.Errorf("Render(%s) with %v: Fallback = false", ref, loadErr)
			}
			if want := Fallback(ref, props); res.HTML != want {
				t.Errorf("Render(%s) HTML = %q, want %q", ref, res.HTML, want)
			}
			if res.Category == "" {
				t.Errorf("Render(%s) Category empty", ref)
			}
		}
	}
}

func TestBoundary_Render_RecoversPanic(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	b := NewBoundary(loaderFunc(func(ctx context.Context, ref Ref, props Props) (template.HTML, error) {
		panic("render exploded")
	}), zap.New(core))

	res := b.Render(context.Background(), Ref{Products, ViewProductList}, Props{})
	if !res.Fallback || res.Category != ErrorCategoryPanic {
		t.Errorf("Render() = %+v, want panic fallback", res)
	}
	if !strings.Contains(string(res.HTML), "Product MF no disponible") {
		t.Errorf("Render() HTML = %q", res.HTML)
	}
	entries := logs.FilterMessage("fragment unavailable, rendering fallback").All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 warning, got %d", len(entries))
	}
	if got := entries[0].ContextMap()["fragment"]; got != Products {
		t.Errorf("logged fragment = %v, want %q", got, Products)
	}
}

func TestBoundary_Render_UsesContextLogger(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	reqLogger := zap.New(core).With(zap.String("correlation_id", "abc"))
	ctx := context.WithValue(context.Background(), "logger", reqLogger)

	b := NewBoundary(loaderFunc(func(ctx context.Context, ref Ref, props Props) (template.HTML, error) {
		return "", ErrRemoteUnavailable
	}), zap.NewNop())
	b.Render(ctx, Ref{Cart, ViewCart}, Props{})

	if logs.Len() != 1 {
		t.Fatalf("expected request logger to receive 1 entry, got %d", logs.Len())
	}
	if got := logs.All()[0].ContextMap()["correlation_id"]; got != "abc" {
		t.Errorf("correlation_id = %v, want abc", got)
	}
}

func TestBoundary_Render_NilLoader(t *testing.T) {
	res := NewBoundary(nil, nil).Render(context.Background(), Ref{Header, ViewHeader}, Props{})
	if !res.Fallback || res.Category != ErrorCategoryUnknownFragment {
		t.Errorf("Render() = %+v, want unknown_fragment fallback", res)
	}
}
