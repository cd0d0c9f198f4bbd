package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"
)

const greetRules = `
ruleset: greet: {
	timeout: "5s"
	rules: [
		{expect: "name\\?", send: "world"},
		{expect: "hello world", stop: "ok"},
	]
}

ruleset: fail: rules: [
	{expect: "name\\?", stop: "error"},
]
`

// writeFile writes content under dir and returns the path.
func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// execute runs the root command with args and returns stdout, stderr and
// the command's error.
func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := NewRootCommand()
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), errOut.String(), err
}

func find(t *testing.T, name string) *cobra.Command {
	t.Helper()
	sub, _, err := NewRootCommand().Find([]string{name})
	require.NoError(t, err)
	return sub
}
