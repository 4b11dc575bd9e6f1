package klog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestConfigureDisabledIsNoop(t *testing.T) {
	require.NoError(t, Configure("", false, nil, "info", false))
	// A disabled logger must not panic and must not create any files.
	Get(CategoryNorm).Info("should not be written anywhere")
}

func TestConfigureCreatesPerCategoryLogFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, Configure(dir, true, nil, "debug", false))
	t.Cleanup(CloseAll)

	Get(CategoryUnify).Debug("attempting occurs check on m%d", 7)

	entries, err := os.ReadDir(filepath.Join(dir, ".kernel", "logs"))
	require.NoError(t, err)
	assert.NotEmpty(t, entries)

	found := false
	for _, e := range entries {
		if filepath.Ext(e.Name()) == ".log" {
			found = true
		}
	}
	assert.True(t, found, "expected at least one category log file")
}

func TestCategoryFilterSuppressesDisabledCategory(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, Configure(dir, true, map[string]bool{"unify": false}, "debug", false))
	t.Cleanup(CloseAll)

	l := Get(CategoryUnify)
	assert.Nil(t, l.logger, "disabled category must yield a no-op logger")
}
