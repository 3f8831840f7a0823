package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/matryer/is"

	"github.com/yourusername/gnubgserver/pkg/engine"
	"github.com/yourusername/gnubgserver/pkg/external"
)

func newTestShell() (*shell, *bytes.Buffer) {
	var out bytes.Buffer
	return &shell{
		proc:    external.NewProcess(external.DefaultOptions()),
		ev:      engine.NewSeededMock(1),
		timeout: time.Second,
		out:     &out,
	}, &out
}

func TestShellLocalCommands(t *testing.T) {
	is := is.New(t)
	sh, out := newTestShell()

	is.True(!sh.handle(":start"))
	is.Equal(strings.TrimSpace(out.String()), "4HPwATDgc/ABMA")

	out.Reset()
	is.True(!sh.handle(":eval 4HPwATDgc/ABMA 3 1"))
	is.True(strings.HasPrefix(out.String(), " 1. "))

	out.Reset()
	is.True(!sh.handle(":eval 4HPwATDgc/ABMA 9 1"))
	is.True(strings.Contains(out.String(), "dice must be 1-6"))

	out.Reset()
	is.True(!sh.handle(":cube 4HPwATDgc/ABMA black"))
	is.True(strings.Contains(out.String(), "no double"))

	is.True(sh.handle(":quit"))
}

func TestShellRawWithoutProcess(t *testing.T) {
	is := is.New(t)
	sh, out := newTestShell()

	is.True(!sh.handle("show board"))
	is.Equal(strings.TrimSpace(out.String()), "gnubg is not running")
}
