package utils

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// ErrSelectionCancelled is returned when the user cancels a selection.
var ErrSelectionCancelled = errors.New("selection cancelled")

// Prompter asks questions on a writer and reads answers from a single
// buffered reader, so several prompts can share one input stream.
type Prompter struct {
	scanner *bufio.Scanner
	writer  io.Writer
}

// NewPrompter creates a Prompter reading from reader and writing to writer.
func NewPrompter(reader io.Reader, writer io.Writer) *Prompter {
	return &Prompter{scanner: bufio.NewScanner(reader), writer: writer}
}

func (p *Prompter) readLine() (string, bool) {
	if !p.scanner.Scan() {
		return "", false
	}
	return strings.TrimSpace(p.scanner.Text()), true
}

// YesNo asks a yes/no question until it gets a valid answer. EOF means no.
func (p *Prompter) YesNo(prompt string) bool {
	for {
		_, _ = fmt.Fprintf(p.writer, "%s (y/n): ", prompt)
		input, ok := p.readLine()
		if !ok {
			return false
		}
		switch strings.ToLower(input) {
		case "y", "yes":
			return true
		case "n", "no":
			return false
		}
	}
}

// String asks for free text. An empty answer returns def.
func (p *Prompter) String(prompt, def string) (string, error) {
	if def != "" {
		_, _ = fmt.Fprintf(p.writer, "%s [%s]: ", prompt, def)
	} else {
		_, _ = fmt.Fprintf(p.writer, "%s: ", prompt)
	}
	input, ok := p.readLine()
	if !ok {
		return "", ErrSelectionCancelled
	}
	if input == "" {
		return def, nil
	}
	return input, nil
}

// Int asks for an integer within [min, max]. An empty answer returns def.
func (p *Prompter) Int(prompt string, min, max, def int) (int, error) {
	for {
		_, _ = fmt.Fprintf(p.writer, "%s (%d-%d) [%d]: ", prompt, min, max, def)
		input, ok := p.readLine()
		if !ok {
			return 0, ErrSelectionCancelled
		}
		if input == "" {
			return def, nil
		}
		num, err := strconv.Atoi(input)
		if err != nil {
			_, _ = fmt.Fprintln(p.writer, "Please enter a number")
			continue
		}
		if num < min || num > max {
			_, _ = fmt.Fprintf(p.writer, "Please enter a number between %d and %d\n", min, max)
			continue
		}
		return num, nil
	}
}

// Choose displays options numbered from 1 and returns the chosen index.
// Entering 0 or reaching EOF cancels. An empty answer picks def when def >= 0.
func (p *Prompter) Choose(prompt string, options []string, def int) (int, error) {
	for i, opt := range options {
		_, _ = fmt.Fprintf(p.writer, "  %d. %s\n", i+1, opt)
	}
	for {
		if def >= 0 && def < len(options) {
			_, _ = fmt.Fprintf(p.writer, "%s (0 to cancel) [%s]: ", prompt, options[def])
		} else {
			_, _ = fmt.Fprintf(p.writer, "%s (0 to cancel): ", prompt)
		}
		input, ok := p.readLine()
		if !ok {
			return -1, ErrSelectionCancelled
		}
		if input == "" && def >= 0 && def < len(options) {
			return def, nil
		}
		num, err := strconv.Atoi(input)
		if err != nil {
			_, _ = fmt.Fprintln(p.writer, "Please enter a number")
			continue
		}
		if num == 0 {
			return -1, ErrSelectionCancelled
		}
		if num < 1 || num > len(options) {
			_, _ = fmt.Fprintf(p.writer, "Please enter a number between 1 and %d\n", len(options))
			continue
		}
		return num - 1, nil
	}
}
