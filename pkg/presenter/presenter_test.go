package presenter

import (
	"bytes"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func newTestPresenter() (*TerminalPresenter, *bytes.Buffer, *bytes.Buffer) {
	var out, errOut bytes.Buffer
	return NewWithOptions(&out, &errOut, ColorNever), &out, &errOut
}

func TestErrorWithContext(t *testing.T) {
	p, out, errOut := newTestPresenter()

	p.Error(errors.New("clone failed"), "repository sync")

	assert.Empty(t, out.String())
	assert.Contains(t, errOut.String(), "[ERROR] repository sync: clone failed")
}

func TestErrorNilIsSilent(t *testing.T) {
	p, _, errOut := newTestPresenter()

	p.Error(nil, "ignored")

	assert.Empty(t, errOut.String())
}

func TestMessages(t *testing.T) {
	p, out, _ := newTestPresenter()

	p.Success("skill installed")
	p.Warning("skill already exists")
	p.Info("3 skills loaded")

	assert.Contains(t, out.String(), "✓ skill installed")
	assert.Contains(t, out.String(), "⚠ skill already exists")
	assert.Contains(t, out.String(), "3 skills loaded")
}

func TestQuietSuppressesAllButErrors(t *testing.T) {
	p, out, errOut := newTestPresenter()
	p.SetQuiet(true)

	p.Success("hidden")
	p.Warning("hidden")
	p.Info("hidden")
	p.Section("hidden")
	p.Error(errors.New("still visible"), "")

	assert.Empty(t, out.String())
	assert.Contains(t, errOut.String(), "still visible")
	assert.True(t, p.IsQuiet())
}

func TestSection(t *testing.T) {
	p, out, _ := newTestPresenter()

	p.Section("Skills")

	assert.Contains(t, out.String(), "Skills\n------")
}
