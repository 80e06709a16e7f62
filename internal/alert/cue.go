package alert

import (
	"context"
	"fmt"
	"io"
	"os"
)

// TerminalCue writes the terminal bell character, which is as much audio
// as a headless deployment gets. Real installations swap in a player
// wired to the dashboard frontend.
type TerminalCue struct {
	out io.Writer
}

func NewTerminalCue() *TerminalCue {
	return &TerminalCue{out: os.Stdout}
}

func (c *TerminalCue) Play(_ context.Context) error {
	_, err := fmt.Fprint(c.out, "\a")
	return err
}

// NopCue discards cue playback, for tests and silent deployments.
type NopCue struct{}

func (NopCue) Play(_ context.Context) error { return nil }
