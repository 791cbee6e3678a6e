package store

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kjstillabower/microstore/internal/models"
	"github.com/kjstillabower/microstore/internal/observability"
)

// Key prefixes kept from the browser storage keys they replace.
const (
	cartKeyPrefix = "microfrontend-cart:"
	userKeyPrefix = "microfrontend-user:"
	uiKeyPrefix   = "microfrontend-ui:"
)

// Views the shell can show in its main area.
const (
	ViewProducts = "products"
	ViewProfile  = "profile"
)

// UIState is the shell's per-session presentation state.
type UIState struct {
	View     string `json:"view"`
	Category string `json:"category"`
	CartOpen bool   `json:"cartOpen"`
	// Notice and LoginError are one-shot messages shown on the next page render.
	Notice     string `json:"notice,omitempty"`
	LoginError string `json:"loginError,omitempty"`
}

// DefaultUIState is what a new session starts with.
func DefaultUIState() UIState {
	return UIState{View: ViewProducts, Category: "all"}
}

// Sessions reads and writes per-session state on top of a Store. Read errors
// and undecodable values are logged and treated as empty state.
type Sessions struct {
	store  Store
	ttl    time.Duration
	logger *zap.Logger
}

// NewSessions wraps st. ttl applies to every write; logger may be nil.
func NewSessions(st Store, ttl time.Duration, logger *zap.Logger) *Sessions {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sessions{store: st, ttl: ttl, logger: logger}
}

// Cart returns the stored cart lines for sid.
func (s *Sessions) Cart(ctx context.Context, sid string) []models.CartItem {
	var items []models.CartItem
	if !s.get(ctx, cartKeyPrefix+sid, &items) {
		return nil
	}
	return items
}

// SaveCart stores the cart lines for sid.
func (s *Sessions) SaveCart(ctx context.Context, sid string, items []models.CartItem) error {
	if items == nil {
		items = []models.CartItem{}
	}
	return s.set(ctx, cartKeyPrefix+sid, items)
}

// User returns the logged-in user for sid, or nil.
func (s *Sessions) User(ctx context.Context, sid string) *models.User {
	var u models.User
	if !s.get(ctx, userKeyPrefix+sid, &u) || u.ID == "" {
		return nil
	}
	return &u
}

// SaveUser stores the logged-in user for sid.
func (s *Sessions) SaveUser(ctx context.Context, sid string, u models.User) error {
	return s.set(ctx, userKeyPrefix+sid, u)
}

// ClearUser logs sid out.
func (s *Sessions) ClearUser(ctx context.Context, sid string) error {
	if err := s.store.Delete(ctx, userKeyPrefix+sid); err != nil {
		s.recordError("delete", err)
		return err
	}
	return nil
}

// UI returns the presentation state for sid, falling back to defaults.
func (s *Sessions) UI(ctx context.Context, sid string) UIState {
	st := DefaultUIState()
	if !s.get(ctx, uiKeyPrefix+sid, &st) {
		return DefaultUIState()
	}
	if st.View != ViewProducts && st.View != ViewProfile {
		st.View = ViewProducts
	}
	if strings.TrimSpace(st.Category) == "" {
		st.Category = "all"
	}
	return st
}

// SaveUI stores the presentation state for sid.
func (s *Sessions) SaveUI(ctx context.Context, sid string, st UIState) error {
	return s.set(ctx, uiKeyPrefix+sid, st)
}

func (s *Sessions) get(ctx context.Context, key string, dst any) bool {
	ok, err := s.store.Get(ctx, key, dst)
	if err != nil {
		s.recordError("get", err)
		s.logger.Warn("session state unreadable, using empty state", zap.String("key", key), zap.Error(err))
		return false
	}
	return ok
}

func (s *Sessions) set(ctx context.Context, key string, v any) error {
	if err := s.store.Set(ctx, key, v, s.ttl); err != nil {
		s.recordError("set", err)
		s.logger.Warn("session state write failed", zap.String("key", key), zap.Error(err))
		return err
	}
	return nil
}

func (s *Sessions) recordError(op string, err error) {
	observability.StoreErrorsTotal.WithLabelValues(op, categorizeStoreError(err)).Inc()
}

// categorizeStoreError returns a stable label for store error metrics.
func categorizeStoreError(err error) string {
	if err == nil {
		return "unknown"
	}
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
		return "decode"
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return "timeout"
	}
	errStr := err.Error()
	if strings.Contains(errStr, "timeout") {
		return "timeout"
	}
	if strings.Contains(errStr, "connection") || strings.Contains(errStr, "network") {
		return "connection"
	}
	return "unknown"
}
