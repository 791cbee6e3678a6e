package http

import (
	"testing"

	"github.com/kjstillabower/microstore/internal/fragment"
)

// BenchmarkShell_Home benchmarks a full home page render with every fragment up.
func BenchmarkShell_Home(b *testing.B) {
	resetGlobals(b)
	s := newTestStack(b)
	_ = s.page(b)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = s.page(b)
	}
}

// BenchmarkShell_HomeCartDown benchmarks a home page render with the cart fragment unreachable.
func BenchmarkShell_HomeCartDown(b *testing.B) {
	resetGlobals(b)
	s := newTestStack(b, fragment.Cart)
	_ = s.page(b)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = s.page(b)
	}
}
