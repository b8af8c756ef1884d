package command

import (
	"context"
	"errors"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpand(t *testing.T) {
	args, err := Expand(`winget search --query "{query}" --accept-source-agreements`, map[string]string{"{query}": "visual studio"})
	require.NoError(t, err)
	assert.Equal(t, []string{"winget", "search", "--query", "visual studio", "--accept-source-agreements"}, args)
}

func TestExpandValuesCannotInjectArguments(t *testing.T) {
	args, err := Expand(`choco install {package_id} -y`, map[string]string{"{package_id}": `git" --source "evil`})
	require.NoError(t, err)
	assert.Equal(t, []string{"choco", "install", `git" --source "evil`, "-y"}, args)
}

func TestExpandLegacyPowershellTemplate(t *testing.T) {
	tmpl := `powershell -Command "winget show --id \"{package_id}\""`
	args, err := Expand(tmpl, map[string]string{"{package_id}": "Git.Git"})
	require.NoError(t, err)
	assert.Equal(t, []string{"powershell", "-Command", `winget show --id "Git.Git"`}, args)
}

func TestExpandKeepsWindowsPaths(t *testing.T) {
	args, err := Expand(`C:\tools\pm.exe install {package_id}`, map[string]string{"{package_id}": "x"})
	require.NoError(t, err)
	assert.Equal(t, `C:\tools\pm.exe`, args[0])

	args, err = Expand(`tool 'C:\Program Files\x' "C:\Program Files\y" {query}`, map[string]string{"{query}": "a"})
	require.NoError(t, err)
	assert.Equal(t, []string{"tool", `C:\Program Files\x`, `C:\Program Files\y`, "a"}, args)

	args, err = Expand(`pm "it's \"here\"" 'say "hi"'`, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"pm", `it's "here"`, `say "hi"`}, args)
}

func TestExpandErrors(t *testing.T) {
	_, err := Expand("   ", nil)
	assert.Error(t, err)

	_, err = Expand(`winget search "unterminated`, nil)
	assert.Error(t, err)
}

func TestResultLastLine(t *testing.T) {
	r := Result{Stdout: "Found Git\r\nInstalling...\r\n", Stderr: "  \r\n50%\rInstaller failed with exit code: 1603\r\n\r\n"}
	assert.Equal(t, "Installer failed with exit code: 1603", r.LastLine())
	assert.Empty(t, Result{}.LastLine())
	assert.True(t, Result{}.Success())
}

func TestExecRunner(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("uses sh")
	}
	r := NewExecRunner(5 * time.Second)

	res, err := r.Run(context.Background(), []string{"sh", "-c", "echo out; echo err >&2; exit 3"})
	require.NoError(t, err)
	assert.Equal(t, 3, res.ExitCode)
	assert.Equal(t, "out\n", res.Stdout)
	assert.Equal(t, "err\n", res.Stderr)
	assert.False(t, res.Success())

	res, err = r.Run(context.Background(), []string{"sh", "-c", "printf ok"})
	require.NoError(t, err)
	assert.True(t, res.Success())
	assert.Equal(t, "ok", res.Stdout)
}

func TestExecRunnerTimeout(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("uses sleep")
	}
	r := NewExecRunner(100 * time.Millisecond)
	_, err := r.Run(context.Background(), []string{"sleep", "5"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTimeout))
}

func TestExecRunnerMissingBinary(t *testing.T) {
	r := NewExecRunner(time.Second)
	_, err := r.Run(context.Background(), []string{"definitely-not-a-real-package-manager"})
	assert.Error(t, err)

	_, err = r.Run(context.Background(), nil)
	assert.Error(t, err)
}
