package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParse(t *testing.T) {
	tests := []struct {
		in                     string
		major, minor, fix, pre int
	}{
		{"0.1.0", 0, 1, 0, 0},
		{"1.12.3", 1, 12, 3, 0},
		{"2.0.1-pr7", 2, 0, 1, 7},
		{"3", 3, 0, 0, 0},
		{"", 0, 0, 0, 0},
	}
	for _, tt := range tests {
		t.Run(
			tt.in, func(t *testing.T) {
				major, minor, fix, pre := parse(tt.in)
				assert.Equal(t, tt.major, major)
				assert.Equal(t, tt.minor, minor)
				assert.Equal(t, tt.fix, fix)
				assert.Equal(t, tt.pre, pre)
			},
		)
	}
}

func TestEmbeddedVersion(t *testing.T) {
	assert.NotEmpty(t, VERSION)
	assert.NotContains(t, VERSION, "\n")
	assert.Equal(t, "credtrust/"+VERSION, UserAgent())
}
