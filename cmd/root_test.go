package cmd

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inference-sim/simbatch/internal/testutil"
)

func TestSetLogLevel(t *testing.T) {
	defer logrus.SetLevel(logrus.GetLevel())

	require.NoError(t, setLogLevel("debug"))
	assert.Equal(t, logrus.DebugLevel, logrus.GetLevel())

	assert.Error(t, setLogLevel("chatty"))
	assert.Equal(t, logrus.DebugLevel, logrus.GetLevel(), "invalid level leaves the logger unchanged")
}

func TestDiscoverCommand_ListsUnits(t *testing.T) {
	// GIVEN a tree with two scenarios and an unrelated file
	root := t.TempDir()
	testutil.WriteScenarioTree(t, root, "a.sumocfg", "nested/b.sumocfg", "notes.txt")

	// WHEN discover runs through the root command
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"discover", "--root", root})
	defer rootCmd.SetArgs(nil)
	require.NoError(t, rootCmd.Execute())

	// THEN each scenario is listed with its ID, config, and root-level trip-log
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, strings.Join([]string{"a", filepath.Join(root, "a.sumocfg"), filepath.Join(root, "tripinfo_a.xml")}, "\t"), lines[0])
	assert.Equal(t, strings.Join([]string{"b", filepath.Join(root, "nested", "b.sumocfg"), filepath.Join(root, "tripinfo_b.xml")}, "\t"), lines[1])
}
