package main

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"unflatten/internal/testsupport"
)

type cliTestEnv struct {
	baseDir    string
	configPath string
	cacheDir   string
	dataDir    string
	flattened  string
	original   string
	output     string
	names      map[string]string
}

// setupCLITestEnv writes a text-only configuration and a small original tree
// with its flattened copy.
func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	base := t.TempDir()
	home := filepath.Join(base, "home")
	if err := os.MkdirAll(home, 0o755); err != nil {
		t.Fatalf("mkdir home: %v", err)
	}
	t.Setenv("HOME", home)
	t.Setenv("UNFLATTEN_WORKERS", "")

	env := &cliTestEnv{
		baseDir:    base,
		configPath: filepath.Join(home, ".config", "unflatten", "config.toml"),
		cacheDir:   filepath.Join(base, "cache"),
		dataDir:    filepath.Join(base, "data"),
		flattened:  filepath.Join(base, "flat"),
		original:   filepath.Join(base, "orig"),
		output:     filepath.Join(base, "restored"),
	}
	writeTestConfig(t, env)

	testsupport.WritePDF(t, filepath.Join(env.original, "letters", "welcome.pdf"),
		"welcome to the new office building")
	testsupport.WritePDF(t, filepath.Join(env.original, "reports", "annual.pdf"),
		"annual report of operations", "financial statements")
	env.names = testsupport.Flatten(t, env.original, env.flattened)
	return env
}

func writeTestConfig(t *testing.T, env *cliTestEnv) {
	t.Helper()
	content := fmt.Sprintf(`[paths]
cache_dir = %q
data_dir = %q
log_dir = %q

[scan]
workers = 2

[matching]
strategy = ["text"]

[logging]
level = "error"
`, env.cacheDir, env.dataDir, filepath.Join(env.baseDir, "logs"))
	if err := os.MkdirAll(filepath.Dir(env.configPath), 0o755); err != nil {
		t.Fatalf("mkdir config dir: %v", err)
	}
	if err := os.WriteFile(env.configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func (env *cliTestEnv) runArgs(extra ...string) []string {
	return append([]string{"run", "--flattened", env.flattened, "--original", env.original}, extra...)
}

func runCLI(t *testing.T, args []string, configPath string) (string, string, error) {
	t.Helper()
	return runCLIWithInput(t, args, configPath, nil)
}

func runCLIWithInput(t *testing.T, args []string, configPath string, stdin io.Reader) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	if stdin != nil {
		cmd.SetIn(stdin)
	}
	var flags []string
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}
