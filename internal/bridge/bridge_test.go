package bridge

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEditingHandoffIsOneShot(t *testing.T) {
	b := New()

	_, ok := b.TakeEditing()
	assert.False(t, ok)

	b.SetEditing(EditingContext{PageID: "page_a", NodeID: "node_x", OpenedAt: time.Now()})

	got, ok := b.TakeEditing()
	require.True(t, ok)
	assert.Equal(t, "node_x", got.NodeID)

	_, ok = b.TakeEditing()
	assert.False(t, ok)
}

func TestPeekDoesNotConsume(t *testing.T) {
	b := New()
	b.SetEditing(EditingContext{NodeID: "node_x"})

	_, ok := b.PeekEditing()
	require.True(t, ok)
	_, ok = b.TakeEditing()
	assert.True(t, ok)
}

func TestNewerHandoffReplacesOlder(t *testing.T) {
	b := New()
	b.SetCrop(CropResult{ItemID: "item_old"})
	b.SetCrop(CropResult{ItemID: "item_new", Src: "data:image/png;base64,x", Width: 40, Height: 30})

	got, ok := b.TakeCrop()
	require.True(t, ok)
	assert.Equal(t, "item_new", got.ItemID)
	assert.Equal(t, 40.0, got.Width)
}

func TestClearDropsEverything(t *testing.T) {
	b := New()
	b.SetEditing(EditingContext{NodeID: "node_x"})
	b.SetCrop(CropResult{ItemID: "item_y"})
	b.Clear()

	_, ok := b.TakeEditing()
	assert.False(t, ok)
	_, ok = b.TakeCrop()
	assert.False(t, ok)
}
