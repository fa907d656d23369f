package zone

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEditorConfirmNeedsFourPoints(t *testing.T) {
	for n := 0; n < MinPoints; n++ {
		e := NewEditor()
		for i := 0; i < n; i++ {
			e.AddPoint(i, i*2)
		}
		require.False(t, e.IsReady())
		require.ErrorIs(t, e.Confirm(), ErrZoneIncomplete)
		require.Equal(t, PhaseEditing, e.Phase())
		require.Nil(t, e.Polygon())
	}
}

func TestEditorLifecycle(t *testing.T) {
	e := NewEditor()
	require.Equal(t, PhaseEditing, e.Phase())

	e.HandlePointer(Pointer{Action: PointerAdd, X: 1, Y: 1})
	e.HandlePointer(Pointer{Action: PointerAdd, X: 2, Y: 2})
	require.True(t, e.HandlePointer(Pointer{Action: PointerReset}))
	require.Empty(t, e.Points())

	for _, pt := range square {
		require.True(t, e.AddPoint(pt.X, pt.Y))
	}
	require.True(t, e.IsReady())
	require.NoError(t, e.Confirm())
	require.Equal(t, PhaseDetecting, e.Phase())
	require.Equal(t, square, e.Polygon())

	// Frozen after confirm.
	require.False(t, e.AddPoint(99, 99))
	require.False(t, e.Reset())
	require.NoError(t, e.Confirm())
	require.Equal(t, square, e.Polygon())

	// Returned polygons are copies.
	poly := e.Polygon()
	poly[0].X = 1000
	require.Equal(t, square, e.Polygon())
}

func TestEditorRejectedConfirmKeepsEditing(t *testing.T) {
	e := NewEditor()
	e.AddPoint(0, 0)
	e.AddPoint(0, 10)
	e.AddPoint(10, 10)
	require.ErrorIs(t, e.Confirm(), ErrZoneIncomplete)

	require.True(t, e.AddPoint(10, 0))
	require.NoError(t, e.Confirm())
	require.Equal(t, square, e.Polygon())
}

func TestEditorIgnoresUnknownPointer(t *testing.T) {
	e := NewEditor()
	require.False(t, e.HandlePointer(Pointer{}))
	require.Empty(t, e.Points())
}
