package secretsloader

import (
	"context"
	"crypto/ed25519"
	"encoding/base64"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeKeyFile(t *testing.T, contents string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "operator.key")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))

	return path
}

func TestLoadOperatorKey_FromFile_HappyPath(t *testing.T) {
	t.Parallel()

	_, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	path := writeKeyFile(t, base64.StdEncoding.EncodeToString(priv)+"\n")

	got, err := LoadOperatorKey(context.Background(), "", "", path)
	require.NoError(t, err)
	assert.Equal(t, priv, got)
}

func TestLoadOperatorKey_FromFile_MissingFile(t *testing.T) {
	t.Parallel()

	_, err := LoadOperatorKey(context.Background(), "", "", filepath.Join(t.TempDir(), "nope.key"))
	assert.Error(t, err)
}

func TestLoadOperatorKey_FromFile_WrongKeyLength(t *testing.T) {
	t.Parallel()

	path := writeKeyFile(t, base64.StdEncoding.EncodeToString([]byte("too-short")))

	_, err := LoadOperatorKey(context.Background(), "", "", path)
	assert.Error(t, err)
}

func TestLoadOperatorKey_FromFile_InvalidBase64(t *testing.T) {
	t.Parallel()

	path := writeKeyFile(t, "not-valid-base64!!")

	_, err := LoadOperatorKey(context.Background(), "", "", path)
	assert.Error(t, err)
}

func TestTrimNewline_StripsTrailingCRLF(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "abc", trimNewline("abc\r\n"))
	assert.Equal(t, "abc", trimNewline("abc\n"))
	assert.Equal(t, "abc", trimNewline("abc"))
}
