package navigation

import (
	"testing"

	"github.com/NomadCrew/nomad-crew-planner/logger"
	"github.com/NomadCrew/nomad-crew-planner/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	logger.IsTest = true
}

func TestTripPath(t *testing.T) {
	assert.Equal(t, "index/index/trip/t1/user/u1", TripPath("t1", "u1"))
}

func TestParseTripPath(t *testing.T) {
	tests := []struct {
		path   string
		want   types.NavigationParams
		wantOK bool
	}{
		{"index/index/trip/t1/user/u1", types.NavigationParams{TripID: "t1", UserID: "u1"}, true},
		{"/index/index/trip/t1/user/u1/", types.NavigationParams{TripID: "t1", UserID: "u1"}, true},
		{"index/index/trip/t1/user/", types.NavigationParams{TripID: "t1"}, true},
		{"index/index/trip//user/u1", types.NavigationParams{}, false},
		{"index/index", types.NavigationParams{}, false},
		{"index/other/trip/t1/user/u1", types.NavigationParams{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got, ok := ParseTripPath(tt.path)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestHistory_NonTriggeringNavigation(t *testing.T) {
	h := NewHistory()
	routed := 0
	h.OnRoute(func(string) { routed++ })

	var seen []Entry
	h.Subscribe(func(e Entry) { seen = append(seen, e) })

	require.NoError(t, h.Navigate(TripPath("t1", "u1"), Options{}))

	assert.Equal(t, "index/index/trip/t1/user/u1", h.Current())
	assert.Equal(t, 0, routed)
	assert.Equal(t, []Entry{{Path: "index/index/trip/t1/user/u1"}}, seen)
}

func TestHistory_TriggeringNavigation(t *testing.T) {
	h := NewHistory()
	var routed []string
	h.OnRoute(func(p string) { routed = append(routed, p) })

	require.NoError(t, h.Navigate("/index/index", Options{Trigger: true}))
	assert.Equal(t, []string{"index/index"}, routed)
}

func TestHistory_ReplaceAndBack(t *testing.T) {
	h := NewHistory()
	require.NoError(t, h.Navigate("a", Options{}))
	require.NoError(t, h.Navigate("b", Options{}))
	require.NoError(t, h.Navigate("c", Options{Replace: true}))

	assert.Equal(t, 2, h.Len())
	prev, ok := h.Back()
	assert.True(t, ok)
	assert.Equal(t, "a", prev)
	_, ok = h.Back()
	assert.False(t, ok)
}

func TestHistory_EmptyPath(t *testing.T) {
	assert.Error(t, NewHistory().Navigate("/", Options{}))
}
