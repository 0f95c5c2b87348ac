package cli

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVersionCmd_Use(t *testing.T) {
	assert.Equal(t, "version", versionCmd.Use)
}

func TestVersionCmd_Executes(t *testing.T) {
	// Save and restore version
	originalVersion := version
	version = "test-version-1.0.0"
	defer func() { version = originalVersion }()

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetArgs([]string{"version"})
	defer func() {
		rootCmd.SetArgs(nil)
	}()

	err := rootCmd.Execute()

	assert.NoError(t, err)
	assert.Contains(t, buf.String(), "fiscalia version test-version-1.0.0")
}

func TestParseMetaPairs(t *testing.T) {
	metadata, err := parseMetaPairs([]string{"document_type=invoice", "tax_icms=10:18.50"})

	assert.NoError(t, err)
	assert.Equal(t, "invoice", metadata["document_type"])
	assert.Equal(t, "10:18.50", metadata["tax_icms"])
}

func TestParseMetaPairs_Invalid(t *testing.T) {
	_, err := parseMetaPairs([]string{"no-equals-sign"})
	assert.Error(t, err)

	_, err = parseMetaPairs([]string{"=value"})
	assert.Error(t, err)
}
