package vi

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStripComments(t *testing.T) {
	cases := []struct {
		name    string
		src     string
		want    string
		lineMap []int
	}{
		{
			name:    "line comment",
			src:     "x = 1 # one\ny = 2",
			want:    "x = 1\ny = 2",
			lineMap: []int{1, 2},
		},
		{
			name:    "block comment on one line",
			src:     "x = <# note #> 1",
			want:    "x =  1",
			lineMap: []int{1},
		},
		{
			name:    "block comment joins its tail to the opening line",
			src:     "x = 1\n<# first\nsecond #>y = 2\nz = 3",
			want:    "x = 1\ny = 2\nz = 3",
			lineMap: []int{1, 2, 4},
		},
		{
			name:    "markers inside strings are kept",
			src:     `s = "a # b <# c #>"`,
			want:    `s = "a # b <# c #>"`,
			lineMap: []int{1},
		},
		{
			name:    "escaped quote does not end the string",
			src:     `s = "say \"#hi\"" # done`,
			want:    `s = "say \"#hi\""`,
			lineMap: []int{1},
		},
		{
			name:    "unterminated block runs to the end",
			src:     "x = 1\n<# open\nstill open",
			want:    "x = 1\n",
			lineMap: []int{1, 2},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, lineMap := StripComments(tc.src)
			assert.Equal(t, tc.want, got)
			assert.Equal(t, tc.lineMap, lineMap)
		})
	}
}

func TestStripCommentsIdempotent(t *testing.T) {
	sources := []string{
		"x = 1 # c\n<# a\nb #>y = 2\n",
		`greeting = "hello # world"` + "\n# only a comment\n",
		"main app:\n    text_content = \"hi\" <# inline #>\n",
	}
	for _, src := range sources {
		once, _ := StripComments(src)
		twice, _ := StripComments(once)
		assert.Equal(t, once, twice)
		assert.NotContains(t, strings.ReplaceAll(once, `"hello # world"`, ""), "#")
	}
}
