package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsNewer(t *testing.T) {
	cases := []struct {
		installed, latest string
		want              bool
	}{
		{"1.0.0", "1.0.1", true},
		{"23.01", "24.08", true},
		{"1.2.10", "1.2.9", false},
		{"2.0", "2.0.0", false},
		{"< 1.5", "1.6", true},
		{"v3.1", "3.2", true},
		{"Unknown", "1.0", false},
		{"", "1.0", false},
		{"1.0", "", false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, IsNewer(tc.installed, tc.latest), "%q -> %q", tc.installed, tc.latest)
	}
}
