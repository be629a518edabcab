package duplicate

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSimilarityRatioIdentical(t *testing.T) {
	assert.Equal(t, 100.0, similarityRatio("Cool Vase", "cool vase"))
}

func TestSimilarityRatioCloseMatch(t *testing.T) {
	ratio := similarityRatio("Articulated Dragon", "Articulated Dragn")
	assert.Greater(t, ratio, 80.0)
}

func TestSimilarityRatioDissimilar(t *testing.T) {
	ratio := similarityRatio("Articulated Dragon", "Phone Stand")
	assert.Less(t, ratio, 50.0)
}

func TestSimilarityRatioEmptyStrings(t *testing.T) {
	assert.Equal(t, 100.0, similarityRatio("", ""))
}
