package inventory

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInventoryPathSet(t *testing.T) {
	inv := &Inventory{
		FormType:    "f1040",
		FormVersion: "2024",
		Fields: []FieldDescriptor{
			{FieldPath: "a[0]"},
			{FieldPath: "b[0]"},
		},
	}

	set := inv.PathSet()
	assert.Len(t, set, 2)
	assert.Contains(t, set, "a[0]")
	assert.Contains(t, set, "b[0]")
}

func TestInventoryByPath(t *testing.T) {
	inv := &Inventory{
		Fields: []FieldDescriptor{
			{FieldPath: "a[0]", Kind: FieldKindText, Page: 2},
		},
	}

	f, ok := inv.ByPath("a[0]")
	require.True(t, ok)
	assert.Equal(t, 2, f.Page)

	_, ok = inv.ByPath("missing")
	assert.False(t, ok)
}

func TestTruncateLabel(t *testing.T) {
	assert.Equal(t, "short", truncateLabel("short"))

	long := strings.Repeat("x", maxLabelLength+40)
	got := truncateLabel(long)
	assert.Len(t, got, maxLabelLength)
}
