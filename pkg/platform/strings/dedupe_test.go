package strings

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDedupeAndTrim(t *testing.T) {
	tests := []struct {
		name  string
		input []string
		want  []string
	}{
		{name: "nil stays nil", input: nil, want: nil},
		{name: "empty stays empty", input: []string{}, want: []string{}},
		{
			name:  "media urls keep first occurrence",
			input: []string{"https://cdn/a.jpg", " https://cdn/b.jpg ", "https://cdn/a.jpg"},
			want:  []string{"https://cdn/a.jpg", "https://cdn/b.jpg"},
		},
		{name: "blanks dropped", input: []string{"", "  ", "\t"}, want: []string{}},
		{name: "case is significant", input: []string{"A.jpg", "a.jpg"}, want: []string{"A.jpg", "a.jpg"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DedupeAndTrim(tt.input))
		})
	}
}

func TestSplitAndDedupe(t *testing.T) {
	assert.Nil(t, SplitAndDedupe("", ","))
	assert.Nil(t, SplitAndDedupe(" , ,", ","))
	assert.Equal(t, []string{"a:9092", "b:9092"}, SplitAndDedupe("a:9092, b:9092,a:9092", ","))
}
