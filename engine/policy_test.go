package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSyncPolicy_ZeroValueIsManual(t *testing.T) {
	var p SyncPolicy
	assert.True(t, p.IsManual())
	assert.Equal(t, "manual", p.String())
	assert.Zero(t, p.Interval())
}

func TestParseSyncPolicy(t *testing.T) {
	tests := []struct {
		in   string
		want SyncPolicy
	}{
		{"", Manual()},
		{"manual", Manual()},
		{" Manual ", Manual()},
		{"every-write", EveryWrite()},
		{"every_write", EveryWrite()},
		{"periodic:5s", Periodic(5 * time.Second)},
		{"periodic:250ms", Periodic(250 * time.Millisecond)},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseSyncPolicy(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseSyncPolicy_Invalid(t *testing.T) {
	for _, in := range []string{"never", "periodic", "periodic:", "periodic:soon", "periodic:0s", "periodic:-1s"} {
		_, err := ParseSyncPolicy(in)
		assert.Error(t, err, in)
	}
}

func TestSyncPolicy_StringRoundTrips(t *testing.T) {
	for _, p := range []SyncPolicy{Manual(), EveryWrite(), Periodic(90 * time.Second)} {
		parsed, err := ParseSyncPolicy(p.String())
		require.NoError(t, err)
		assert.Equal(t, p, parsed)
	}
	assert.Equal(t, "periodic:1m30s", Periodic(90*time.Second).String())
	assert.Equal(t, 90*time.Second, Periodic(90*time.Second).Interval())
	assert.Zero(t, EveryWrite().Interval())
}
