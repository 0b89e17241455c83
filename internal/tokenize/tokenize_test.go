package tokenize

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWordsLowercasesAndStripsPunctuation(t *testing.T) {
	got := Words("UPI Timeout: on Axis-Bank!")
	assert.Equal(t, []string{"upi", "timeout", "on", "axis", "bank"}, got)
}

func TestNGramsDropsUnigramStopwords(t *testing.T) {
	tokens := Words("the payment is stuck")
	grams := NGrams(tokens)
	assert.NotContains(t, grams, "the")
	assert.Contains(t, grams, "payment")
	assert.Contains(t, grams, "the payment")
}
