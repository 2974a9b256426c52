package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRingBuffer_Overwrite(t *testing.T) {
	rb := NewRingBuffer[int](3)
	for i := 1; i <= 5; i++ {
		rb.Push(i)
	}

	assert.Equal(t, 3, rb.Len())
	assert.Equal(t, []int{3, 4, 5}, rb.Last(0))
	assert.Equal(t, []int{4, 5}, rb.Last(2))
	assert.Equal(t, []int{3, 4, 5}, rb.Last(10))
}

func TestRingBuffer_PartiallyFilled(t *testing.T) {
	rb := NewRingBuffer[string](4)
	assert.Empty(t, rb.Last(0))

	rb.Push("a")
	rb.Push("b")
	assert.Equal(t, []string{"a", "b"}, rb.Last(0))
	assert.Equal(t, []string{"b"}, rb.Last(1))
}
