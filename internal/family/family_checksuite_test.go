package family

import (
	"testing"

	. "gopkg.in/check.v1"
)

// Hook up gopkg.in/check.v1 into go test, alongside the testify-based
// tests in family_test.go — the teacher's go.mod carries both testing idioms.
func TestFamilyCheckSuite(t *testing.T) { TestingT(t) }

type FamilySuite struct{}

var _ = Suite(&FamilySuite{})

func (s *FamilySuite) TestMacroRuleAsymmetry(c *C) {
	// D accepts both C-macro and M-macro definitions; M only accepts
	// K-macro definitions. The table is intentionally asymmetric (spec
	// §9 Open Questions).
	c.Check(CompatibleDef(D, Family('X'), map[Family]bool{C: true}), Equals, true)
	c.Check(CompatibleDef(D, Family('X'), map[Family]bool{M: true}), Equals, true)
	c.Check(CompatibleDef(M, Family('X'), map[Family]bool{K: true}), Equals, true)
	c.Check(CompatibleDef(M, Family('X'), map[Family]bool{D: true}), Equals, false)
}

func (s *FamilySuite) TestValidFamilies(c *C) {
	for _, f := range []Family{A, B, C, D, K, M} {
		c.Check(Valid(f), Equals, true)
	}
	c.Check(Valid(None), Equals, false)
	c.Check(Valid(Family('Z')), Equals, false)
}
