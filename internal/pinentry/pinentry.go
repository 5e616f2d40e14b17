// Package pinentry collects the optional enrollment passcode through a
// pinentry program speaking the Assuan protocol.
package pinentry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"

	assuan "github.com/foxcpp/go-assuan/client"
	"github.com/foxcpp/go-assuan/pinentry"

	"github.com/npratt/fingerlock/internal/config"
)

// DefaultProgram is the generic pinentry binary name.
const DefaultProgram = "pinentry"

// ErrNoPasscode is returned when the user submitted an empty passcode.
var ErrNoPasscode = errors.New("no passcode entered")

var guiCandidates = []string{
	"pinentry-gnome3",
	"pinentry-qt",
	"pinentry-qt5",
	"pinentry-gtk-2",
	"pinentry-x11",
	"pinentry-fltk",
}

// ResolveProgram returns the pinentry binary to launch. An explicit program
// other than the generic name is used as given; otherwise the first GUI
// pinentry on PATH wins, falling back to DefaultProgram.
func ResolveProgram(program string) string {
	if program != "" && program != DefaultProgram {
		return program
	}
	for _, candidate := range guiCandidates {
		if p, _ := exec.LookPath(candidate); p != "" {
			return p
		}
	}
	return DefaultProgram
}

// Prompter asks for a passcode.
type Prompter struct {
	cfg    config.PinentryConfig
	logger *slog.Logger
}

// New creates a Prompter from the pinentry config section.
func New(cfg config.PinentryConfig, logger *slog.Logger) *Prompter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Prompter{cfg: cfg, logger: logger}
}

// Passcode launches pinentry and returns what the user typed. The dialog is
// closed when ctx is done or the configured timeout elapses.
func (p *Prompter) Passcode(ctx context.Context) (string, error) {
	if p.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.cfg.Timeout)
		defer cancel()
	}

	program := ResolveProgram(p.cfg.Program)
	p.logger.Debug("launching pinentry", "program", program)

	client, cmd, err := launch(ctx, program)
	if err != nil {
		return "", fmt.Errorf("launch %s: %w", program, err)
	}
	defer func() {
		client.Session.Close()
		if err := cmd.Wait(); err != nil {
			p.logger.Debug("pinentry exited", "error", err)
		}
	}()

	if p.cfg.Title != "" {
		client.SetTitle(p.cfg.Title)
	}
	if p.cfg.Description != "" {
		client.SetDesc(p.cfg.Description)
	}
	if p.cfg.Prompt != "" {
		client.SetPrompt(p.cfg.Prompt)
	}

	pin, err := client.GetPIN()
	if err != nil {
		return "", fmt.Errorf("get passcode: %w", err)
	}
	if pin == "" {
		return "", ErrNoPasscode
	}
	return pin, nil
}

func launch(ctx context.Context, program string) (*pinentry.Client, *exec.Cmd, error) {
	cmd := exec.CommandContext(ctx, program)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, nil, err
	}
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, nil, err
	}

	if err := cmd.Start(); err != nil {
		return nil, nil, err
	}

	var c pinentry.Client
	c.Session, err = assuan.Init(assuan.ReadWriteCloser{
		ReadCloser:  stdout,
		WriteCloser: stdin,
	})
	if err != nil {
		_ = cmd.Process.Kill()
		_ = cmd.Wait()
		return nil, nil, err
	}
	return &c, cmd, nil
}
