package commands

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"go-refine-pipeline/internal/model"
)

func TestVersionCommand(t *testing.T) {
	root := NewRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs([]string{"version"})

	require.NoError(t, root.Execute())
	require.Contains(t, out.String(), "refine "+Version)
}

func TestRunCommandRejectsUnknownMode(t *testing.T) {
	root := NewRootCommand()
	root.SetOut(new(bytes.Buffer))
	root.SetErr(new(bytes.Buffer))
	root.SetArgs([]string{"run", "--mode", "turbo"})

	err := root.Execute()
	require.ErrorIs(t, err, model.ErrConfiguration)
}

func TestRunCommandRejectsMissingConfig(t *testing.T) {
	root := NewRootCommand()
	root.SetOut(new(bytes.Buffer))
	root.SetErr(new(bytes.Buffer))
	root.SetArgs([]string{"run", "--config", "/no/such/refine.yaml"})

	err := root.Execute()
	require.ErrorIs(t, err, model.ErrConfiguration)
}
