package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/schaermu/claspsync/internal/auth"
)

type project struct {
	root    string
	creds   string
	cfgPath string
	log     string
}

// newProject writes a config whose runner is `sh <script>`; every invocation
// is appended to the clasp log
func newProject(t *testing.T, script string) *project {
	t.Helper()
	t.Setenv("HOME", t.TempDir())

	tmp := t.TempDir()
	p := &project{
		root:  filepath.Join(tmp, "project"),
		creds: filepath.Join(tmp, "clasprc.json"),
		log:   filepath.Join(tmp, "clasp.log"),
	}
	if err := os.MkdirAll(p.root, 0o755); err != nil {
		t.Fatal(err)
	}

	scriptPath := filepath.Join(tmp, "fake-clasp.sh")
	body := "#!/bin/sh\necho \"$@\" >> '" + p.log + "'\n" + script + "\n"
	if err := os.WriteFile(scriptPath, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	p.cfgPath = filepath.Join(tmp, "config.yaml")
	cfg := "paths:\n" +
		"  project_root: \"" + p.root + "\"\n" +
		"  credentials_file: \"" + p.creds + "\"\n" +
		"runner:\n" +
		"  command: \"sh\"\n" +
		"  package: \"" + scriptPath + "\"\n"
	if err := os.WriteFile(p.cfgPath, []byte(cfg), 0o600); err != nil {
		t.Fatal(err)
	}
	return p
}

// login links the project and writes a default token
func (p *project) login(t *testing.T) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(p.root, auth.MarkerFile), []byte(`{"scriptId":"abc"}`), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(p.creds, []byte(`{"tokens":{"default":{"access_token":"x"}}}`), 0o600); err != nil {
		t.Fatal(err)
	}
}

func (p *project) claspLog(t *testing.T) []string {
	t.Helper()
	data, err := os.ReadFile(p.log)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		t.Fatal(err)
	}
	return strings.Split(strings.TrimSpace(string(data)), "\n")
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	origPush, origDeploy, origFull := pushFlag, deployFlag, fullFlag
	origGlobals := globals
	t.Cleanup(func() {
		pushFlag, deployFlag, fullFlag = origPush, origDeploy, origFull
		globals = origGlobals
	})
	pushFlag, deployFlag, fullFlag = false, false, false
	globals.CfgFile = ""
	globals.DryRun = false

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	// A nil slice would make cobra fall back to os.Args
	if args == nil {
		args = []string{}
	}
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	})

	err := rootCmd.Execute()
	return out.String(), err
}

func TestRoot_NotLinkedIsSoftStop(t *testing.T) {
	p := newProject(t, `exit 0`)

	out, err := execute(t, "--full", "--config", p.cfgPath, "--log-level", "error")
	if err != nil {
		t.Fatalf("missing marker should not be an error, got %v", err)
	}
	if !strings.Contains(out, auth.MarkerFile) {
		t.Errorf("expected guidance about %s, got %q", auth.MarkerFile, out)
	}
	if len(p.claspLog(t)) != 0 {
		t.Error("clasp must not run when the project is not linked")
	}
}

func TestRoot_NotLoggedInIsSoftStop(t *testing.T) {
	p := newProject(t, `exit 0`)
	if err := os.WriteFile(filepath.Join(p.root, auth.MarkerFile), []byte(`{}`), 0o644); err != nil {
		t.Fatal(err)
	}

	out, err := execute(t, "--push", "--config", p.cfgPath, "--log-level", "error")
	if err != nil {
		t.Fatalf("missing credentials should not be an error, got %v", err)
	}
	if !strings.Contains(out, "clasp login") {
		t.Errorf("expected login guidance, got %q", out)
	}
	if len(p.claspLog(t)) != 0 {
		t.Error("clasp must not run without credentials")
	}
}

func TestRoot_NoFlagPrintsUsage(t *testing.T) {
	p := newProject(t, `exit 0`)
	p.login(t)

	out, err := execute(t, "--config", p.cfgPath, "--log-level", "error")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	for _, want := range []string{"--push", "--deploy", "--full"} {
		if !strings.Contains(out, want) {
			t.Errorf("usage missing %s", want)
		}
	}
	if len(p.claspLog(t)) != 0 {
		t.Error("clasp must not run without a flag")
	}
}

func TestRoot_PushOnly(t *testing.T) {
	p := newProject(t, `exit 0`)
	p.login(t)
	if err := os.MkdirAll(filepath.Join(p.root, "src"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(p.root, "src", "Code.gs"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := execute(t, "-p", "--config", p.cfgPath, "--log-level", "error"); err != nil {
		t.Fatalf("push failed: %v", err)
	}
	if got := p.claspLog(t); len(got) != 1 || got[0] != "push" {
		t.Errorf("clasp invocations = %v, want [push]", got)
	}
	// No staging from src in this entry point
	if _, err := os.Stat(filepath.Join(p.root, "Code.gs")); err == nil {
		t.Error("claspdeploy --push must not stage src files")
	}
}

func TestRoot_Deploy(t *testing.T) {
	p := newProject(t, `exit 0`)
	p.login(t)

	if _, err := execute(t, "--deploy", "--config", p.cfgPath, "--log-level", "error"); err != nil {
		t.Fatalf("deploy failed: %v", err)
	}

	want := []string{
		"version -d Deployment via publish script",
		"deploy -d Latest deployment -i 1",
	}
	got := p.claspLog(t)
	if strings.Join(got, "\n") != strings.Join(want, "\n") {
		t.Errorf("clasp invocations = %q, want %q", got, want)
	}
}

func TestRoot_Full(t *testing.T) {
	p := newProject(t, `exit 0`)
	p.login(t)

	if _, err := execute(t, "-f", "--config", p.cfgPath, "--log-level", "error"); err != nil {
		t.Fatalf("full failed: %v", err)
	}

	got := p.claspLog(t)
	if len(got) != 3 || got[0] != "push" || !strings.HasPrefix(got[1], "version") || !strings.HasPrefix(got[2], "deploy") {
		t.Errorf("clasp invocations = %q, want push, version, deploy", got)
	}
}

func TestRoot_FailureReturnsError(t *testing.T) {
	p := newProject(t, `echo "Script API executable not published" >&2; exit 3`)
	p.login(t)

	_, err := execute(t, "--full", "--config", p.cfgPath, "--log-level", "error")
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "3") || !strings.Contains(err.Error(), "not published") {
		t.Errorf("error %q should carry exit code and stderr", err)
	}
	if got := p.claspLog(t); len(got) != 1 {
		t.Errorf("deploy must not run after a failed push, got %q", got)
	}
}

func TestVersionCmd(t *testing.T) {
	t.Helper()
	// versionCmd.Run simply prints version info; should not panic.
	versionCmd.Run(versionCmd, []string{})
}
