package forum

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseSizeMebibytes(t *testing.T) {
	assert.Equal(t, int64(37413191), parseSize("35.68 MiB"))
}

func TestParseSizeKilobytes(t *testing.T) {
	assert.Equal(t, int64(512000), parseSize("500 KB"))
}

func TestParseSizeGigabytes(t *testing.T) {
	assert.Equal(t, int64(1288490188), parseSize("1.2 GB"))
}

func TestParseSizeUnrecognizedReturnsZero(t *testing.T) {
	assert.Equal(t, int64(0), parseSize(""))
	assert.Equal(t, int64(0), parseSize("unknown"))
}

func TestCleanTitleStripsTagPrefix(t *testing.T) {
	assert.Equal(t, "Articulated Dragon", cleanTitle("[3D Print] Articulated Dragon"))
}

func TestCleanTitleStripsReplyPrefix(t *testing.T) {
	assert.Equal(t, "Dragon v2", cleanTitle("RE: Dragon v2"))
}

func TestCleanTitleFallsBackToOriginalWhenEmptyAfterStrip(t *testing.T) {
	assert.Equal(t, "[]", cleanTitle("[]"))
}

func TestIsArchiveRecognizesKnownExtensions(t *testing.T) {
	assert.True(t, isArchive("model_pack.zip"))
	assert.True(t, isArchive("Model_Pack.RAR"))
	assert.False(t, isArchive("preview.jpg"))
}
