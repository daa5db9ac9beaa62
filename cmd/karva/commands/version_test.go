package commands_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/karva-go/karva/cmd/karva/commands"
	"github.com/karva-go/karva/pkg/version"
)

func TestVersionCommand_PrintsVersion(t *testing.T) {
	t.Parallel()

	cmd := commands.NewVersionCommand()

	var out bytes.Buffer
	cmd.SetOut(&out)

	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), version.Version)
}
