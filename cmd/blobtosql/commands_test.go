package main

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tigerroll/blobtosql/pkg/batch/support/util/exception"
)

func TestRootCmdRegistersCommands(t *testing.T) {
	root := RootCmd(embeddedConfig)
	for _, path := range [][]string{{"run"}, {"migrate"}, {"checkpoint", "show"}, {"checkpoint", "set"}, {"datasets", "list"}, {"history"}} {
		cmd, _, err := root.Find(path)
		require.NoError(t, err, path)
		assert.Equal(t, path[len(path)-1], cmd.Name())
	}
}

func TestMigrateRejectsUnknownCommand(t *testing.T) {
	root := RootCmd(embeddedConfig)
	root.SetArgs([]string{"migrate", "sideways"})
	assert.Error(t, root.Execute())
}

func TestRunRequiresArchive(t *testing.T) {
	root := RootCmd(embeddedConfig)
	root.SetArgs([]string{"run"})
	err := root.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "archive")
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, exitConfig, exitCode(exception.NewBatchError("app", "bad", nil, exception.CategoryConfig)))
	assert.Equal(t, exitLease, exitCode(exception.NewLeaseHeldError("lease", "held", nil)))
	assert.Equal(t, exitFailure, exitCode(errors.New("boom")))
}
