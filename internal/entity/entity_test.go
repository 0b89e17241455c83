package entity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testVocab() *Vocabulary {
	return NewVocabulary(
		[]string{"Snapdeal", "Flipkart"},
		[]string{"Pinelabs", "Razorpay"},
		[]string{"Axis Bank", "HDFC"},
	)
}

func TestExtractMixedEntities(t *testing.T) {
	v := testVocab()
	matches := v.Extract("Snapdeal checkout fails via Pinelabs with Axis Bank settlement delay")
	require.Len(t, matches, 3)
	assert.True(t, HasKind(matches, KindMerchant))
	assert.True(t, HasKind(matches, KindGateway))
	assert.True(t, HasKind(matches, KindBank))
}

func TestExtractCaseInsensitiveWordBoundary(t *testing.T) {
	v := testVocab()
	matches := v.Extract("snapdeal's pinelabs integration broke")
	require.Len(t, matches, 2)

	// "Pinelabsx" must not match "Pinelabs" (word boundary).
	matches = v.Extract("Pinelabsx is unrelated")
	assert.Empty(t, matches)
}

func TestExtractDeduplicatesRepeatedMentions(t *testing.T) {
	v := testVocab()
	matches := v.Extract("Snapdeal Snapdeal SNAPDEAL issue")
	require.Len(t, matches, 1)
}

func TestOverlap(t *testing.T) {
	v := testVocab()
	q := v.Extract("Snapdeal Pinelabs issue")
	c := v.Extract("Snapdeal Axis Bank issue")
	assert.Equal(t, 1, Overlap(q, c))
}
