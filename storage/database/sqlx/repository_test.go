package sqlxrepos

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func Test_likePatterns(t *testing.T) {
	tests := []struct {
		in         string
		wantContains string
		wantPrefix string
	}{
		{in: "kon", wantContains: "%kon%", wantPrefix: "kon%"},
		{in: "100%", wantContains: `%100\%%`, wantPrefix: `100\%%`},
		{in: "a_b", wantContains: `%a\_b%`, wantPrefix: `a\_b%`},
		{in: `c:\x`, wantContains: `%c:\\x%`, wantPrefix: `c:\\x%`},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.wantContains, containsPattern(tt.in))
			assert.Equal(t, tt.wantPrefix, prefixPattern(tt.in))
		})
	}
}
