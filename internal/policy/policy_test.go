package policy_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/barnettlynn/she-core/internal/policy"
	"github.com/barnettlynn/she-core/internal/sheconst"
)

func TestLoad_OverridesWinOverDefault(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "policy.jsonc")
	doc := `{
		// user slots are writable by default
		"default_flags": 0,
		"overrides": [
			{"slot": 1, "flags": 1}, // BOOT_MAC_KEY_ID: write-protected
		],
	}`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o600))

	p, err := policy.Load(path)
	require.NoError(t, err)
	require.Equal(t, byte(0), p.FlagsFor(sheconst.Slot(4)))
	require.Equal(t, byte(sheconst.FlagWriteProtect), p.FlagsFor(sheconst.BootMACKeyID))
}
