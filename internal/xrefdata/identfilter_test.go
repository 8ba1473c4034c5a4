package xrefdata

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAcceptIdentifierRejectsEveryBlacklistEntry(t *testing.T) {
	for tok := range blacklist {
		assert.False(t, AcceptIdentifier(tok), "blacklisted token %q must be rejected", tok)
	}
}

func TestAcceptIdentifierRejectsShortAndTildeTokens(t *testing.T) {
	assert.False(t, AcceptIdentifier(""))
	assert.False(t, AcceptIdentifier("a"))
	assert.False(t, AcceptIdentifier("~foo"))
}

func TestAcceptIdentifierAcceptsMeaningfulTokens(t *testing.T) {
	for _, tok := range []string{"do_fork", "schedule", "CONFIG_NET", "main_loop", "skb_clone"} {
		assert.True(t, AcceptIdentifier(tok), "%q should be accepted", tok)
	}
}
