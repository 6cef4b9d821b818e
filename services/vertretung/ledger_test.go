package vertretung

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLedgerAddAndKnown(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notified.txt")
	ledger, err := OpenLedger(path)
	require.NoError(t, err)
	defer ledger.Close()

	require.False(t, ledger.Known("abc"))
	require.NoError(t, ledger.Add("abc", `{"Fach":"M"}`))
	require.True(t, ledger.Known("abc"))
	require.Equal(t, 1, ledger.Len())

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "abc - {\"Fach\":\"M\"}\n", string(content))
}

func TestLedgerSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notified.txt")

	ledger, err := OpenLedger(path)
	require.NoError(t, err)
	require.NoError(t, ledger.Add("one", "first"))
	require.NoError(t, ledger.Add("two", "second"))
	require.NoError(t, ledger.Close())

	reopened, err := OpenLedger(path)
	require.NoError(t, err)
	defer reopened.Close()
	require.True(t, reopened.Known("one"))
	require.True(t, reopened.Known("two"))
	require.False(t, reopened.Known("three"))
	require.Equal(t, 2, reopened.Len())
}

func TestLedgerValueMayContainSeparator(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notified.txt")
	ledger, err := OpenLedger(path)
	require.NoError(t, err)
	require.NoError(t, ledger.Add("fp", "a - b - c"))
	require.NoError(t, ledger.Close())

	reopened, err := OpenLedger(path)
	require.NoError(t, err)
	defer reopened.Close()
	require.True(t, reopened.Known("fp"))
}

func TestLedgerRejectsSeparatorInFingerprint(t *testing.T) {
	ledger, err := OpenLedger(filepath.Join(t.TempDir(), "notified.txt"))
	require.NoError(t, err)
	defer ledger.Close()

	require.Error(t, ledger.Add("bad - fingerprint", "value"))
	require.Equal(t, 0, ledger.Len())
}

func TestLedgerIgnoresMalformedLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notified.txt")
	err := os.WriteFile(path, []byte("garbage without separator\nok - value\n\n"), 0644)
	require.NoError(t, err)

	ledger, err := OpenLedger(path)
	require.NoError(t, err)
	defer ledger.Close()
	require.Equal(t, 1, ledger.Len())
	require.True(t, ledger.Known("ok"))
}

func TestLedgerFlattensNewlinesInValue(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notified.txt")
	ledger, err := OpenLedger(path)
	require.NoError(t, err)
	require.NoError(t, ledger.Add("fp", "line1\nline2"))
	require.NoError(t, ledger.Close())

	reopened, err := OpenLedger(path)
	require.NoError(t, err)
	defer reopened.Close()
	require.Equal(t, 1, reopened.Len())
}
