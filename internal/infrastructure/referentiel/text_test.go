package referentiel

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCleanText(t *testing.T) {
	// "e" followed by a combining acute accent composes to "é".
	assert.Equal(t, "Cesson-S\u00e9vign\u00e9", cleanText("  Cesson-Se\u0301vigne\u0301 "))
	assert.Equal(t, "A B", cleanText("A \t\n B"))
	assert.Empty(t, cleanText("   "))
}

func TestCleanOptional(t *testing.T) {
	blank := "  "
	assert.Nil(t, cleanOptional(nil))
	assert.Nil(t, cleanOptional(&blank))
}

func TestFoldKey(t *testing.T) {
	assert.Equal(t, foldKey("LYCEE GENERAL EMILE ZOLA"), foldKey("Lycée  Général Émile Zola"))
	assert.NotEqual(t, foldKey("Lycée Zola"), foldKey("Lycée Hugo"))
}
