package validation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateFilename(t *testing.T) {
	valid := []string{"report.pdf", "My Photos", ".env", "a..b"}
	for _, name := range valid {
		assert.NoError(t, ValidateFilename(name), name)
	}

	invalid := []string{"", "  ", ".", "..", "a/b", `a\b`, "x.part", "x.tmp", ".sharebox-upload-1", strings.Repeat("a", 256)}
	for _, name := range invalid {
		assert.Error(t, ValidateFilename(name), name)
	}
}

func TestIsHiddenArtifact(t *testing.T) {
	assert.True(t, IsHiddenArtifact("movie.mkv.part"))
	assert.True(t, IsHiddenArtifact(".sharebox-upload-1234"))
	assert.False(t, IsHiddenArtifact("partner.txt"))
}
