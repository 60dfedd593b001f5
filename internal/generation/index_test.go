package generation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolveChartIndex(t *testing.T) {
	cases := []struct {
		name     string
		prompt   string
		explicit int
		count    int
		want     int
	}{
		{"text index wins", "chart 2: make bars red", 0, 3, 1},
		{"hash form", "fix chart #3 please", 0, 3, 2},
		{"out of range clamps to zero", "update chart 99", 1, 2, 0},
		{"zero in text clamps to zero", "chart 0 tweak", 1, 2, 0},
		{"explicit used when no text index", "make bars red", 1, 3, 1},
		{"explicit out of range falls to zero", "make bars red", 7, 3, 0},
		{"negative explicit falls to zero", "make bars red", -1, 3, 0},
		{"unknown count passes text index through", "chart 2: make bars red", 0, 0, 1},
		{"unknown count passes explicit through", "make bars red", 5, 0, 5},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ResolveChartIndex(tc.prompt, tc.explicit, tc.count))
		})
	}
}

func TestDetectRegion(t *testing.T) {
	assert.Equal(t, "Dubai", DetectRegion(nil, "Show AI skill demand in Dubai"))
	assert.Equal(t, "Abu Dhabi", DetectRegion(nil, "compare abu dhabi and dubai"))
	assert.Equal(t, "Riyadh", DetectRegion(map[string]any{"region": "Riyadh"}, "anything"))
	assert.Equal(t, "", DetectRegion(nil, "show global trends"))
	assert.Equal(t, "Qatar", DetectRegion(map[string]any{"region": "  "}, "hiring in qatar"))
}
