package family

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyFilename(t *testing.T) {
	cases := []struct {
		name string
		want Family
	}{
		{"foo.c", C},
		{"foo.H", C},
		{"foo.S", C},
		{"bar.dts", D},
		{"bar.DTSI", D},
		{"Kconfig", K},
		{"Kconfig-nommu", K},
		{"kconfig.rst", None},
		{"Makefile", M},
		{"Makefile.build", M},
		{"makefile.rst", None},
		{"README.md", None},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, ClassifyFilename(c.name), c.name)
	}
}

func TestIsUnderDTBindings(t *testing.T) {
	require.True(t, IsUnderDTBindings("/Documentation/devicetree/bindings/vendor-dev.yaml"))
	require.False(t, IsUnderDTBindings("/drivers/foo.c"))
}

func TestCompatibleDef(t *testing.T) {
	noMacros := map[Family]bool{}
	assert.True(t, CompatibleDef(A, C, noMacros))
	assert.True(t, CompatibleDef(C, C, noMacros))
	assert.True(t, CompatibleDef(C, K, noMacros))
	assert.False(t, CompatibleDef(C, D, noMacros))
	assert.True(t, CompatibleDef(C, D, map[Family]bool{K: true}))
	assert.False(t, CompatibleDef(K, C, noMacros))

	assert.True(t, CompatibleDef(D, D, noMacros))
	assert.False(t, CompatibleDef(D, C, noMacros))
	assert.True(t, CompatibleDef(D, C, map[Family]bool{C: true}))
	assert.True(t, CompatibleDef(D, M, map[Family]bool{M: true}))
}

func TestCompatibleRef(t *testing.T) {
	assert.True(t, CompatibleRef(A, D))
	assert.True(t, CompatibleRef(C, K))
	assert.False(t, CompatibleRef(K, C))
}

func TestSatisfiesCache(t *testing.T) {
	families := map[Family]bool{K: true}
	assert.True(t, SatisfiesCache(K, families, nil))
	assert.True(t, SatisfiesCache(C, families, nil))
	assert.False(t, SatisfiesCache(D, families, nil))
	assert.True(t, SatisfiesCache(D, families, map[Family]bool{C: true}))
}

func TestLookupPrefix(t *testing.T) {
	assert.Equal(t, "CONFIG_", LookupPrefix(K))
	assert.Equal(t, "", LookupPrefix(C))
}
