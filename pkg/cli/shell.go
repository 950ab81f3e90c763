// pkg/cli/shell.go
package cli

import (
	"bufio"
	"io"
	"strings"
)

// Shell provides readline-like line reading and history for an
// interactive augset session. Unlike a SQL shell, a command here is
// always a single line, so there is no multi-line statement buffering.
type Shell struct {
	reader *bufio.Reader

	output    io.Writer
	errOutput io.Writer

	prompt string

	history    []string
	maxHistory int
}

// NewShell creates a shell over the given input/output streams. If
// errOutput is nil, errors are written to output.
func NewShell(input io.Reader, output, errOutput io.Writer) *Shell {
	var reader *bufio.Reader
	if input != nil {
		reader = bufio.NewReader(input)
	}
	if errOutput == nil {
		errOutput = output
	}

	return &Shell{
		reader:     reader,
		output:     output,
		errOutput:  errOutput,
		prompt:     "augset> ",
		maxHistory: 1000,
	}
}

// SetPrompt changes the prompt string.
func (s *Shell) SetPrompt(prompt string) {
	s.prompt = prompt
}

// ReadCommand reads one command line, stripping trailing whitespace, and
// records it in history if non-empty. It returns the line and whether EOF
// was reached.
func (s *Shell) ReadCommand() (string, bool) {
	if s.output != nil {
		io.WriteString(s.output, s.prompt)
	}

	if s.reader == nil {
		return "", true
	}

	line, err := s.reader.ReadString('\n')
	eof := err != nil
	line = strings.TrimRight(line, " \t\r\n")

	if trimmed := strings.TrimSpace(line); trimmed != "" {
		s.addHistory(trimmed)
	}

	return line, eof
}

func (s *Shell) addHistory(line string) {
	s.history = append(s.history, line)
	if len(s.history) > s.maxHistory {
		s.history = s.history[len(s.history)-s.maxHistory:]
	}
}

// History returns the recorded command history, oldest first.
func (s *Shell) History() []string {
	return s.history
}
