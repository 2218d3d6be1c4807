// Package cli provides the terminal prompts shared by pman commands.
package cli

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/awnumar/memguard"
	"golang.org/x/term"
)

var (
	// ErrCancelled is returned when input ends before a prompt is answered
	ErrCancelled = errors.New("cancelled")
	// ErrPasswordMismatch is returned when confirmation keeps failing
	ErrPasswordMismatch = errors.New("passwords do not match")
)

// Prompter reads answers from the user. Passwords are read with echo
// disabled when input is a terminal, and are handed back in memguard
// locked buffers.
type Prompter struct {
	in       *bufio.Reader
	out      io.Writer
	readPass func() ([]byte, error)
}

// NewTerminal returns a Prompter on stdin that writes prompts to stderr,
// keeping stdout clean for command output.
func NewTerminal() *Prompter {
	p := New(os.Stdin, os.Stderr)
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		p.readPass = func() ([]byte, error) {
			return term.ReadPassword(fd)
		}
	}
	return p
}

// New returns a Prompter reading lines from in. Passwords are read as
// plain lines, which is how piped input is handled.
func New(in io.Reader, out io.Writer) *Prompter {
	return &Prompter{in: bufio.NewReader(in), out: out}
}

// Out returns the writer prompts go to.
func (p *Prompter) Out() io.Writer {
	return p.out
}

// Line prints prompt and returns the answer without its line ending.
func (p *Prompter) Line(prompt string) (string, error) {
	fmt.Fprint(p.out, prompt)
	line, err := p.readLine()
	if err != nil {
		return "", err
	}
	return string(line), nil
}

// Password prints prompt and reads a password without echo. The returned
// buffer must be destroyed by the caller.
func (p *Prompter) Password(prompt string) (*memguard.LockedBuffer, error) {
	fmt.Fprint(p.out, prompt)

	var raw []byte
	var err error
	if p.readPass != nil {
		raw, err = p.readPass()
		fmt.Fprintln(p.out)
	} else {
		raw, err = p.readLine()
	}
	if err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, ErrCancelled) {
			return nil, ErrCancelled
		}
		return nil, fmt.Errorf("failed to read password: %w", err)
	}

	// NewBufferFromBytes wipes raw
	return memguard.NewBufferFromBytes(raw), nil
}

// NewPassword asks for a password twice and retries up to attempts times
// while the two entries differ.
func (p *Prompter) NewPassword(prompt string, attempts int) (*memguard.LockedBuffer, error) {
	for i := 0; i < attempts; i++ {
		first, err := p.Password(prompt)
		if err != nil {
			return nil, err
		}
		second, err := p.Password("confirm " + prompt)
		if err != nil {
			first.Destroy()
			return nil, err
		}

		match := first.EqualTo(second.Bytes())
		second.Destroy()
		if match {
			return first, nil
		}
		first.Destroy()
		fmt.Fprintf(p.out, "\n%s\n\n", ErrPasswordMismatch)
	}
	return nil, ErrPasswordMismatch
}

// Confirm asks a yes/no question. Only "y" and "yes" count as yes.
func (p *Prompter) Confirm(prompt string) (bool, error) {
	answer, err := p.Line(prompt + " [y/N] ")
	if err != nil {
		return false, err
	}
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}

// readLine returns the next line without "\n" or "\r\n". A final line
// without a newline is returned as is; input that is already exhausted
// yields ErrCancelled.
func (p *Prompter) readLine() ([]byte, error) {
	line, err := p.in.ReadBytes('\n')
	if err != nil && !(errors.Is(err, io.EOF) && len(line) > 0) {
		if errors.Is(err, io.EOF) {
			return nil, ErrCancelled
		}
		return nil, err
	}
	line = bytes.TrimSuffix(line, []byte("\n"))
	line = bytes.TrimSuffix(line, []byte("\r"))
	return line, nil
}
