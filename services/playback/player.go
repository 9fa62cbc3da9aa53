// Package playback plays synthesized audio on the host.
package playback

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"

	"handspeak/core"
	"handspeak/utils/audio"
)

// Command is one candidate player; the file path is appended to Args.
type Command struct {
	Name string   `json:"name" yaml:"name"`
	Args []string `json:"args" yaml:"args"`
}

// DefaultCommands are tried in order; the first one on PATH wins.
func DefaultCommands() []Command {
	return []Command{
		{Name: "ffplay", Args: []string{"-nodisp", "-autoexit", "-loglevel", "quiet"}},
		{Name: "mpv", Args: []string{"--no-terminal", "--no-video"}},
		{Name: "afplay"},
		{Name: "paplay"},
		{Name: "aplay", Args: []string{"-q"}},
	}
}

type runFunc func(ctx context.Context, name string, args ...string) error

// CommandPlayer writes each utterance to a temp file and blocks while an
// external player plays it.
type CommandPlayer struct {
	commands []Command
	lookPath func(string) (string, error)
	run      runFunc
	logger   *core.Logger
}

func NewCommandPlayer(commands []Command, logger *core.Logger) *CommandPlayer {
	if len(commands) == 0 {
		commands = DefaultCommands()
	}
	if logger == nil {
		logger = core.GetLogger()
	}
	return &CommandPlayer{
		commands: commands,
		lookPath: exec.LookPath,
		run: func(ctx context.Context, name string, args ...string) error {
			return exec.CommandContext(ctx, name, args...).Run()
		},
		logger: logger.With(map[string]any{"service": "playback"}),
	}
}

func (p *CommandPlayer) resolve() (Command, error) {
	for _, c := range p.commands {
		if _, err := p.lookPath(c.Name); err == nil {
			return c, nil
		}
	}
	return Command{}, errors.New("no audio player found on PATH")
}

func (p *CommandPlayer) Play(ctx context.Context, chunk core.AudioChunk) error {
	body, ext, err := audio.Playable(chunk)
	if err != nil {
		return err
	}
	cmd, err := p.resolve()
	if err != nil {
		return err
	}

	f, err := os.CreateTemp("", "handspeak-*"+ext)
	if err != nil {
		return fmt.Errorf("create temp audio: %w", err)
	}
	defer os.Remove(f.Name())
	if _, err := f.Write(body); err != nil {
		f.Close()
		return fmt.Errorf("write temp audio: %w", err)
	}
	if err := f.Close(); err != nil {
		return err
	}

	args := append(append([]string(nil), cmd.Args...), f.Name())
	if err := p.run(ctx, cmd.Name, args...); err != nil {
		return fmt.Errorf("%s: %w", cmd.Name, err)
	}
	return nil
}

// NullPlayer discards audio. It is used when the host has no speaker, e.g.
// when running headless alongside a browser UI that plays nothing itself.
type NullPlayer struct{}

func (NullPlayer) Play(_ context.Context, chunk core.AudioChunk) error {
	if len(chunk.Data) == 0 {
		return errors.New("empty audio")
	}
	return nil
}
