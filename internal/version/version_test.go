package version

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestString_LinkerValuesWin(t *testing.T) {
	oldV, oldC, oldB := Version, GitCommit, BuildTime
	t.Cleanup(func() { Version, GitCommit, BuildTime = oldV, oldC, oldB })

	Version, GitCommit, BuildTime = "v1.2.3", "abc123", "2026-01-02"
	require.Equal(t, "paperx v1.2.3 (commit abc123, built 2026-01-02)", String())
}

func TestShortRevision(t *testing.T) {
	require.Equal(t, "0123456789ab", shortRevision("0123456789abcdef0123"))
	require.Equal(t, "abc", shortRevision("abc"))
}
