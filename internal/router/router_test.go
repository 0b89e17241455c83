package router

import (
	"testing"

	"incidentrag/internal/core"
	"incidentrag/internal/entity"

	"github.com/stretchr/testify/assert"
)

func testRouter() *Router {
	vocab := entity.NewVocabulary(
		[]string{"Snapdeal"},
		[]string{"Pinelabs"},
		[]string{"Axis Bank"},
	)
	known := func(id string) bool { return id == "JSP-1052" }
	return New(vocab, []string{"upi", "webhook", "gateway"}, known, 64)
}

func TestClassifyExactIDEquality(t *testing.T) {
	r := testRouter()
	c := r.Classify("JSP-1052")
	assert.Equal(t, core.ComplexityExactID, c.Complexity)
	assert.Equal(t, "JSP-1052", c.ExactID)
}

func TestClassifyExactIDInsideProse(t *testing.T) {
	r := testRouter()
	c := r.Classify("any update on jsp-1052 please")
	assert.Equal(t, core.ComplexityExactID, c.Complexity)
	assert.Equal(t, "JSP-1052", c.ExactID)
}

func TestClassifyUnknownIDIsNotExactID(t *testing.T) {
	r := testRouter()
	c := r.Classify("what about JSP-9999")
	assert.NotEqual(t, core.ComplexityExactID, c.Complexity)
}

func TestClassifyOutOfDomain(t *testing.T) {
	r := testRouter()
	c := r.Classify("how to bake a cake")
	assert.Equal(t, core.ComplexityOutOfDomain, c.Complexity)
}

func TestClassifySimpleVsComplex(t *testing.T) {
	r := testRouter()
	simple := r.Classify("UPI timeout")
	assert.Equal(t, core.ComplexitySimple, simple.Complexity)

	complex_ := r.Classify("why do UPI timeouts keep happening in gateway webhooks")
	assert.Equal(t, core.ComplexityComplex, complex_.Complexity)
}

func TestClassifyCachesDecision(t *testing.T) {
	r := testRouter()
	first := r.Classify("UPI timeout")
	r.InvalidateCache()
	second := r.Classify("UPI timeout")
	assert.Equal(t, first, second)

	before := r.Classify("what about JSP-9999")
	r.Known = func(string) bool { return true }
	cached := r.Classify("what about JSP-9999")
	assert.Equal(t, before, cached, "a repeated query is answered from the cache")

	r.InvalidateCache()
	fresh := r.Classify("what about JSP-9999")
	assert.Equal(t, core.ComplexityExactID, fresh.Complexity)
}
