package sysinfo

import (
	"errors"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/windowsadmins/appstore/pkg/config"
)

func TestExecutable(t *testing.T) {
	assert.Equal(t, "winget", Executable(config.ManagerConfig{SearchCommand: `winget search --query "{query}"`}))
	assert.Equal(t, "powershell", Executable(config.ManagerConfig{SearchCommand: `powershell -Command "scoop search {query}"`}))
	assert.Equal(t, "pm", Executable(config.ManagerConfig{ListCommand: "pm ls"}))
	assert.Equal(t, "", Executable(config.ManagerConfig{}))
}

func TestCollect(t *testing.T) {
	orig := lookPath
	t.Cleanup(func() { lookPath = orig })
	lookPath = func(file string) (string, error) {
		if file == "winget" {
			return `C:\Users\me\AppData\Local\Microsoft\WindowsApps\winget.exe`, nil
		}
		return "", errors.New("not found")
	}

	info := Collect(config.GetDefaultConfig())
	assert.Equal(t, runtime.GOARCH, info.Arch)
	assert.NotEmpty(t, info.OS)
	require.Len(t, info.Managers, 3)
	assert.True(t, info.Managers[0].Found)
	assert.Equal(t, "winget", info.Managers[0].Name)
	assert.False(t, info.Managers[1].Found)
	assert.Equal(t, "choco", info.Managers[1].Executable)
}
