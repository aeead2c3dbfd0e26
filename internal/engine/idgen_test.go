package engine

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUUIDv7GeneratorProducesValidV7(t *testing.T) {
	gen := UUIDv7Generator{}

	first := gen.Generate()
	second := gen.Generate()
	assert.NotEqual(t, first, second)

	parsed, err := uuid.Parse(first)
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(7), parsed.Version())
}

func TestFixedGeneratorReturnsInOrder(t *testing.T) {
	gen := NewFixedGenerator("cp-1", "cp-2")

	assert.Equal(t, "cp-1", gen.Generate())
	assert.Equal(t, "cp-2", gen.Generate())
	assert.Panics(t, func() { gen.Generate() })
}
