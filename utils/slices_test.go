package utils

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMap(t *testing.T) {
	t.Run("nil slice", func(t *testing.T) {
		var input []int
		assert.Nil(t, Map(input, strconv.Itoa))
	})

	t.Run("non-nil slice", func(t *testing.T) {
		assert.Equal(t, []string{"1", "2", "3"}, Map([]int{1, 2, 3}, strconv.Itoa))
	})
}

func TestFilter(t *testing.T) {
	even := func(e int) bool { return e%2 == 0 }

	assert.Nil(t, Filter(nil, even))
	assert.Equal(t, []int{2, 4}, Filter([]int{1, 2, 3, 4, 5}, even))
}

func TestAll(t *testing.T) {
	positive := func(e int) bool { return e > 0 }

	assert.True(t, All(nil, positive))
	assert.True(t, All([]int{1, 2, 3}, positive))
	assert.False(t, All([]int{1, -2, 3}, positive))
}

func TestChunk(t *testing.T) {
	tests := map[string]struct {
		input    []int
		size     int
		expected [][]int
	}{
		"empty": {
			input: nil,
			size:  2,
		},
		"even split": {
			input:    []int{1, 2, 3, 4},
			size:     2,
			expected: [][]int{{1, 2}, {3, 4}},
		},
		"remainder": {
			input:    []int{1, 2, 3},
			size:     2,
			expected: [][]int{{1, 2}, {3}},
		},
	}

	for desc, test := range tests {
		t.Run(desc, func(t *testing.T) {
			assert.Equal(t, test.expected, Chunk(test.input, test.size))
		})
	}

	assert.Panics(t, func() { Chunk([]int{1}, 0) })
}
