package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Query paths need a live database; what runs everywhere is the clock
// wiring the timeseries tiling depends on.
func TestNewPostgresClockInjectable(t *testing.T) {
	s := NewPostgres(nil)
	require.NotNil(t, s.Now)

	fixed := time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)
	s.Now = func() time.Time { return fixed }
	assert.Equal(t, fixed, s.Now())
}
