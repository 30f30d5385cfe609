package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeTitle(t *testing.T) {
	assert.Equal(t, "algebra i", normalizeTitle("  Algebra  I!  "))
	assert.Equal(t, "ielts speaking b2", normalizeTitle("IELTS - Speaking (B2)"))
	assert.Equal(t, "", normalizeTitle("---"))
}

func TestLevenshtein(t *testing.T) {
	assert.Equal(t, 0, levenshtein("algebra", "algebra"))
	assert.Equal(t, 3, levenshtein("kitten", "sitting"))
	assert.Equal(t, 7, levenshtein("", "algebra"))
}

func TestTitleSimilarity(t *testing.T) {
	assert.Equal(t, 1.0, titleSimilarity("Algebra I", "algebra-i"))
	assert.InDelta(t, 0.9, titleSimilarity("Algebra Basics", "Algebra Basic"), 0.05)
	assert.Less(t, titleSimilarity("Algebra I", "Spanish Conversation"), 0.5)
	assert.Equal(t, 0.0, titleSimilarity("", "Algebra"))
}
