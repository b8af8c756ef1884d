package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/windowsadmins/appstore/pkg/command"
	"github.com/windowsadmins/appstore/pkg/config"
	"github.com/windowsadmins/appstore/pkg/parser"
)

type scriptedRunner struct {
	responses map[string]command.Result
	calls     []string
}

func (r *scriptedRunner) Run(_ context.Context, args []string) (command.Result, error) {
	key := strings.Join(args, " ")
	r.calls = append(r.calls, key)
	if res, ok := r.responses[key]; ok {
		return res, nil
	}
	return command.Result{ExitCode: 1, Stderr: "unexpected"}, nil
}

func testApp(t *testing.T, responses map[string]command.Result, opts options) (*app, *bytes.Buffer, *scriptedRunner) {
	t.Helper()
	dir := t.TempDir()
	cfg := &config.Configuration{CachePath: dir, Path: filepath.Join(dir, config.SettingsFileName)}
	cfg.Managers.Set("chocolatey", config.ManagerConfig{
		SearchCommand:  "choco search {query} --limit-output",
		ListCommand:    "choco list --limit-output",
		InstallCommand: "choco install {package_id} -y",
		UpdateCommand:  "choco upgrade {package_id} -y",
		SearchParser:   "choco_search",
		ListParser:     "choco_list",
	})
	cfg.ApplyDefaults()

	runner := &scriptedRunner{responses: responses}
	var out bytes.Buffer
	a := newApp(cfg, runner, opts, &out)
	a.runningManagers = func([]string) []string { return nil }
	a.console.SetOutput(io.Discard)
	return a, &out, runner
}

func TestRunUnknownCommand(t *testing.T) {
	a, _, _ := testApp(t, nil, options{})
	err := a.run(context.Background(), "frobnicate", nil)
	assert.ErrorIs(t, err, errUsage)
}

func TestSearchPrintsTable(t *testing.T) {
	a, out, _ := testApp(t, map[string]command.Result{
		"choco search git --limit-output": {Stdout: "git|2.47.0\ngit.install|2.47.0\n"},
	}, options{})

	require.NoError(t, a.run(context.Background(), "search", []string{"git"}))
	assert.Contains(t, out.String(), "Found 2 results.")
	assert.Regexp(t, `git\.install\s+git\.install\s+2\.47\.0\s+chocolatey`, out.String())
}

func TestSearchEmptyQuery(t *testing.T) {
	a, _, _ := testApp(t, nil, options{})
	assert.ErrorIs(t, a.run(context.Background(), "search", nil), errUsage)
}

func TestSearchYAMLOutput(t *testing.T) {
	a, out, _ := testApp(t, map[string]command.Result{
		"choco search vlc --limit-output": {Stdout: "vlc|3.0.21\n"},
	}, options{format: "yaml"})

	require.NoError(t, a.run(context.Background(), "search", []string{"vlc"}))
	var pkgs []parser.Package
	require.NoError(t, yaml.Unmarshal(out.Bytes(), &pkgs))
	require.Len(t, pkgs, 1)
	assert.Equal(t, "chocolatey", pkgs[0].Manager)
}

func TestSearchJSONOutputIsParseable(t *testing.T) {
	a, out, _ := testApp(t, map[string]command.Result{
		"choco search vlc --limit-output": {Stdout: "vlc|3.0.21\n"},
	}, options{format: "json"})

	require.NoError(t, a.run(context.Background(), "search", []string{"vlc"}))
	var pkgs []parser.Package
	require.NoError(t, json.Unmarshal(out.Bytes(), &pkgs), out.String())
	require.Len(t, pkgs, 1)
	assert.Equal(t, "vlc", pkgs[0].ID)
	assert.Equal(t, "3.0.21", pkgs[0].Version)
}

func TestListJSONOutputIsParseable(t *testing.T) {
	a, out, _ := testApp(t, map[string]command.Result{
		"choco list --limit-output": {Stdout: "vlc|3.0.20\n"},
	}, options{format: "json", noVerify: true})

	require.NoError(t, a.run(context.Background(), "list", nil))
	var pkgs []parser.Package
	require.NoError(t, json.Unmarshal(out.Bytes(), &pkgs), out.String())
	require.Len(t, pkgs, 1)
	assert.Equal(t, "vlc", pkgs[0].ID)
}

func TestInstallResolvesFromSearch(t *testing.T) {
	a, out, runner := testApp(t, map[string]command.Result{
		"choco search vlc --limit-output": {Stdout: "vlc|3.0.21\n"},
		"choco install vlc -y":            {Stdout: "The install of vlc was successful.\n"},
	}, options{})

	var console bytes.Buffer
	a.console.SetOutput(&console)
	a.runningManagers = func([]string) []string { return []string{"chocolatey"} }

	require.NoError(t, a.run(context.Background(), "install", []string{"vlc"}))
	assert.Contains(t, out.String(), "Successfully completed install for vlc!")
	assert.Contains(t, runner.calls, "choco install vlc -y")
	assert.Contains(t, console.String(), "chocolatey already running")
	assert.Contains(t, console.String(), "install vlc completed with chocolatey")
	assert.NotContains(t, out.String(), "already running")
}

func TestInstallUnknownPackageNeedsManager(t *testing.T) {
	a, _, runner := testApp(t, map[string]command.Result{
		"choco search nope --limit-output": {Stdout: "0 packages found.\n"},
	}, options{})

	err := a.run(context.Background(), "install", []string{"nope"})
	assert.ErrorContains(t, err, "--manager")
	assert.NotContains(t, runner.calls, "choco install nope -y")
}

func TestUpdateFailureReturnsMessage(t *testing.T) {
	a, _, _ := testApp(t, map[string]command.Result{
		"choco list --limit-output": {Stdout: "vlc|3.0.20\n"},
		"choco upgrade vlc -y":      {ExitCode: 1, Stdout: "vlc not upgraded. Access denied.\n"},
	}, options{manager: "chocolatey"})

	err := a.run(context.Background(), "upgrade", []string{"vlc"})
	assert.EqualError(t, err, "vlc not upgraded. Access denied.")
}

func TestActNeedsOneID(t *testing.T) {
	a, _, _ := testApp(t, nil, options{})
	assert.ErrorIs(t, a.run(context.Background(), "uninstall", nil), errUsage)
}

func TestUpdateAllNothingToDo(t *testing.T) {
	a, out, _ := testApp(t, map[string]command.Result{
		"choco list --limit-output": {Stdout: "vlc|3.0.21\n"},
	}, options{})

	require.NoError(t, a.run(context.Background(), "update-all", nil))
	assert.Contains(t, out.String(), "No verified updates available.")
}

func TestAddManagerSaves(t *testing.T) {
	a, out, _ := testApp(t, nil, options{manual: config.ManagerConfig{
		SearchCommand:  "pm find {query}",
		InstallCommand: "pm add {package_id}",
	}})

	require.NoError(t, a.run(context.Background(), "add-manager", []string{"MyPM"}))
	assert.Contains(t, out.String(), "Manager 'mypm' added")

	saved, err := config.LoadConfig(a.cfg.Path)
	require.NoError(t, err)
	assert.Equal(t, []string{"chocolatey", "mypm"}, saved.Managers.Names())
}

func TestAddManagerRejectsInvalid(t *testing.T) {
	a, _, _ := testApp(t, nil, options{manual: config.ManagerConfig{SearchCommand: "pm find"}})
	assert.Error(t, a.run(context.Background(), "add-manager", []string{"pm"}))
}

func TestAddManagerRejectsUnknownParser(t *testing.T) {
	a, _, _ := testApp(t, nil, options{manual: config.ManagerConfig{
		SearchCommand:  "pm find {query}",
		InstallCommand: "pm add {package_id}",
		ListParser:     "pm_table",
	}})

	err := a.run(context.Background(), "add-manager", []string{"pm"})
	assert.ErrorContains(t, err, `unknown parser "pm_table"`)
	assert.ErrorContains(t, err, "choco_list")
	_, ok := a.cfg.Managers.Get("pm")
	assert.False(t, ok)
}

func TestLogosTable(t *testing.T) {
	var out bytes.Buffer
	writeLogos(&out, []string{"Git", "Zoom"}, nil)
	assert.Regexp(t, `NAME\s+LOGO`, out.String())
	assert.Regexp(t, `Git\s+skipped`, out.String())
	assert.NotContains(t, out.String(), "|")
}

func TestDoctor(t *testing.T) {
	a, out, _ := testApp(t, nil, options{})
	a.runningManagers = func([]string) []string { return []string{"chocolatey"} }

	require.NoError(t, a.run(context.Background(), "doctor", nil))
	assert.Contains(t, out.String(), "executable: choco")
	assert.Contains(t, out.String(), "running_managers:")
}
