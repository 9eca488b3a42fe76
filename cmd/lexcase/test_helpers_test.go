package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"lexcase/internal/config"
	"lexcase/internal/engine"
	"lexcase/internal/store"
	"lexcase/internal/testsupport"
)

const sampleFacts = "أبرم المدعي عقد إيجار مع المدعى عليه لمدة سنة، وامتنع المدعى عليه عن دفع الأجرة المتفق عليها في العقد رغم الإنذار."

type fakeGenerator struct {
	mu        sync.Mutex
	calls     int
	failFirst int
	failErr   error
	models    []string
}

func (f *fakeGenerator) Generate(_ context.Context, _, model, _ string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.models = append(f.models, model)
	if f.failFirst > 0 {
		f.failFirst--
		return "", f.failErr
	}
	return fmt.Sprintf("تحليل رقم %d", f.calls), nil
}

func (f *fakeGenerator) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type cliTestEnv struct {
	cfg        *config.Config
	configPath string
	baseDir    string
	gen        *fakeGenerator
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	cfg := testsupport.NewConfig(t)
	base := testsupport.BaseDir(cfg)
	homeDir := filepath.Join(base, "home")
	if err := os.MkdirAll(homeDir, 0o755); err != nil {
		t.Fatalf("mkdir home: %v", err)
	}
	t.Setenv("HOME", homeDir)
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("LEXCASE_API_TOKEN", "")

	// Nothing listens on port 1, so daemon calls fail fast.
	cfg.Server.Endpoint = "http://127.0.0.1:1"
	cfg.Gemini.Model = "gemini-test"

	configPath := filepath.Join(base, "lexcase.toml")
	writeTestConfig(t, configPath, cfg)

	gen := &fakeGenerator{}
	prevGenerator, prevSleeper := newGenerator, runSleeper
	newGenerator = func(*config.Config) engine.Generator { return gen }
	runSleeper = func(time.Duration) {}
	t.Cleanup(func() {
		newGenerator, runSleeper = prevGenerator, prevSleeper
	})

	return &cliTestEnv{
		cfg:        cfg,
		configPath: configPath,
		baseDir:    base,
		gen:        gen,
	}
}

func runCLI(t *testing.T, env *cliTestEnv, args ...string) (string, string, error) {
	t.Helper()
	return runCLIWithInput(t, env, "", args...)
}

func runCLIWithInput(t *testing.T, env *cliTestEnv, input string, args ...string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetIn(strings.NewReader(input))
	var flags []string
	if env != nil {
		flags = append(flags, "--config", env.configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func mustRunCLI(t *testing.T, env *cliTestEnv, args ...string) string {
	t.Helper()
	out, stderr, err := runCLI(t, env, args...)
	if err != nil {
		t.Fatalf("lexcase %s: %v\nstdout:\n%s\nstderr:\n%s", strings.Join(args, " "), err, out, stderr)
	}
	return out
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	content := fmt.Sprintf(
		"[paths]\ndata_dir = %q\nlog_dir = %q\n\n[gemini]\napi_key = %q\nmodel = %q\n\n[analysis]\nmode = \"smart\"\nprofile = \"default\"\n\n[server]\nendpoint = %q\n",
		cfg.Paths.DataDir,
		cfg.Paths.LogDir,
		cfg.Gemini.APIKey,
		cfg.Gemini.Model,
		cfg.Server.Endpoint,
	)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}

func caseWithStages(outputs map[int]string) *store.Case {
	c := &store.Case{ID: "case-1", Name: "اختبار"}
	for index, output := range outputs {
		c.Stages = append(c.Stages, store.StageResult{Index: index, Output: output, Status: store.StageCompleted})
	}
	return c
}
