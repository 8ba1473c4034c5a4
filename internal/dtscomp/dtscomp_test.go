package dtscomp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bootlin/elixir/internal/family"
)

func TestFindC(t *testing.T) {
	src := []byte("static const struct of_device_id foo[] = {\n\t{ .compatible = \"vendor,widget\" },\n};\n")
	matches, err := Find(src, family.C)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "vendor%2Cwidget", matches[0].Ident)
	assert.Equal(t, 2, matches[0].Line)
}

func TestFindDTS(t *testing.T) {
	src := []byte("foo@0 {\n\tcompatible = \"vendor,widget\", \"vendor,widget-v2\";\n};\n")
	matches, err := Find(src, family.D)
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, "vendor%2Cwidget", matches[0].Ident)
	assert.Equal(t, "vendor%2Cwidget-v2", matches[1].Ident)
}

func TestFindBindings(t *testing.T) {
	src := []byte("Required properties:\n- compatible: must be \"vendor,widget\"\n")
	matches, err := Find(src, family.B)
	require.NoError(t, err)
	assert.NotEmpty(t, matches)
}

func TestFindUnsupportedFamily(t *testing.T) {
	_, err := Find([]byte("x"), family.K)
	assert.Error(t, err)
}
