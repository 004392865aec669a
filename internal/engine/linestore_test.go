package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLineStore_SnapshotIsStable(t *testing.T) {
	ls := NewLineStore()
	ls.Append([]string{"a", "b"}, 4)
	snap, v1 := ls.Snapshot()

	ls.Append([]string{"c"}, 2)
	snap2, v2 := ls.Snapshot()

	assert.Equal(t, []string{"a", "b"}, snap)
	assert.Equal(t, 2, cap(snap))
	assert.Equal(t, []string{"a", "b", "c"}, snap2)
	assert.Greater(t, v2, v1)

	read, total, complete := ls.Progress()
	assert.Equal(t, int64(6), read)
	assert.Equal(t, int64(6), total)
	assert.False(t, complete)

	ls.Reset()
	assert.Equal(t, 0, ls.Len())
	assert.Greater(t, ls.Version(), v2)
}

func TestDetectLevel(t *testing.T) {
	tests := []struct {
		line string
		want string
	}{
		{"2024-01-01 ERROR boom", "ERROR"},
		{"[warning] disk", "WARN"},
		{"level=info msg=ok", "INFO"},
		{"panic: nil map", "FATAL"},
		{"errors everywhere", "UNKNOWN"},
		{"", "UNKNOWN"},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			assert.Equal(t, tt.want, DecodeLevel(DetectLevel(tt.line)))
		})
	}
}
