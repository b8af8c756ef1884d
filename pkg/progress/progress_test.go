package progress

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConsoleReporter(t *testing.T) {
	var buf bytes.Buffer
	r := NewConsoleReporter(&buf)

	r.Message("Fetching list of installed apps...")
	r.Percent(50)
	r.Message("Updating 1/2: Git...")
	r.Percent(250)
	r.Message("done")
	r.Error(errors.New("boom"))
	r.Error(nil)

	assert.Equal(t, "Fetching list of installed apps...\n[ 50%] Updating 1/2: Git...\n[100%] done\nerror: boom\n", buf.String())
}

func TestNoOpReporter(t *testing.T) {
	r := NewNoOpReporter()
	r.Message("ignored")
	r.Percent(10)
	r.Error(errors.New("ignored"))
}
