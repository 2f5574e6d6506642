package dashboard

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/postdevai/postdevai/internal/hybrid"
)

func TestPlainRenderer_Run_PrintsAtLeastOneLineThenStopsOnCancel(t *testing.T) {
	var buf bytes.Buffer
	cfg := NewConfig(&buf, WithPollInterval(5*time.Millisecond))
	r := NewPlainRenderer(cfg)

	src := fakeSource{metrics: hybrid.Metrics{
		TotalEntries: 3, RAMEntries: 1, PersistentEntries: 3, CacheHitRate: 0.5,
	}}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := r.Run(ctx, src)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "total=3")
	assert.Contains(t, buf.String(), "cache_hit=50.0%")
	assert.Contains(t, buf.String(), "last_sync=never")
}
