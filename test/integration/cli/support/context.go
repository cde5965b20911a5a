// Package support holds the godog step definitions for the CLI and HTTP
// integration scenarios.
package support

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/MeKo-Tech/scanwell/cmd/scanwell/cmd"
	"github.com/MeKo-Tech/scanwell/internal/testutil"
	"github.com/disintegration/imaging"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// TestContext holds the state of one scenario.
type TestContext struct {
	// Command execution state
	LastArgs   []string
	LastOutput string
	LastStderr string
	LastError  error

	// Test environment
	TempDir string

	// HTTP state
	HTTPTestServer     *HTTPTestServerWrapper
	LastHTTPStatusCode int
	LastHTTPResponse   []byte
}

// NewTestContext creates a scenario context with its own temp directory.
func NewTestContext() (*TestContext, error) {
	tempDir, err := os.MkdirTemp("", "scanwell-test-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp directory: %w", err)
	}
	return &TestContext{TempDir: tempDir}, nil
}

// Cleanup stops the test server and removes the temp directory.
func (testCtx *TestContext) Cleanup() error {
	if testCtx.HTTPTestServer != nil {
		testCtx.HTTPTestServer.Close()
		testCtx.HTTPTestServer = nil
	}
	if err := os.RemoveAll(testCtx.TempDir); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove temp directory %s: %w", testCtx.TempDir, err)
	}
	return nil
}

// path resolves name inside the scenario's temp directory.
func (testCtx *TestContext) path(name string) string {
	return filepath.Join(testCtx.TempDir, name)
}

// writeQR saves a QR code for payload at name; inverted codes are light on dark.
func (testCtx *TestContext) writeQR(name, payload string, inverted bool) error {
	cfg := testutil.DefaultQRConfig(payload)
	if inverted {
		cfg.Dark, cfg.Light = cfg.Light, cfg.Dark
	}
	img, err := testutil.GenerateQR(cfg)
	if err != nil {
		return err
	}
	p := testCtx.path(name)
	if err := os.MkdirAll(filepath.Dir(p), 0o750); err != nil {
		return err
	}
	return imaging.Save(img, p)
}

// RunCLI executes the scanwell root command in-process.
func (testCtx *TestContext) RunCLI(args ...string) {
	root := cmd.GetRootCommand()
	resetFlags(root)

	var stdout, stderr bytes.Buffer
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs(args)

	testCtx.LastArgs = args
	testCtx.LastError = root.Execute()
	testCtx.LastOutput = stdout.String()
	testCtx.LastStderr = stderr.String()

	root.SetOut(nil)
	root.SetErr(nil)
	root.SetArgs(nil)
}

// resetFlags restores every flag to its default; the command tree is shared
// between scenarios.
func resetFlags(c *cobra.Command) {
	reset := func(f *pflag.Flag) {
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			_ = sv.Replace(nil)
		} else {
			_ = f.Value.Set(f.DefValue)
		}
		f.Changed = false
	}
	c.Flags().VisitAll(reset)
	c.PersistentFlags().VisitAll(reset)
	for _, child := range c.Commands() {
		resetFlags(child)
	}
}
