package settings

import (
	"context"

	"github.com/spf13/cast"
)

// Typed accessors coerce stored values with cast and fall back to def when
// the value is missing or does not convert.

// String returns key coerced to a string, or def.
func (r *Repository) String(ctx context.Context, key, def string) string {
	s, err := cast.ToStringE(r.Get(ctx, key, def))
	if err != nil {
		return def
	}
	return s
}

// Int returns key coerced to an int, or def.
func (r *Repository) Int(ctx context.Context, key string, def int) int {
	i, err := cast.ToIntE(r.Get(ctx, key, def))
	if err != nil {
		return def
	}
	return i
}

// Bool returns key coerced to a bool, or def.
func (r *Repository) Bool(ctx context.Context, key string, def bool) bool {
	b, err := cast.ToBoolE(r.Get(ctx, key, def))
	if err != nil {
		return def
	}
	return b
}

// Float returns key coerced to a float64, or def.
func (r *Repository) Float(ctx context.Context, key string, def float64) float64 {
	f, err := cast.ToFloat64E(r.Get(ctx, key, def))
	if err != nil {
		return def
	}
	return f
}
