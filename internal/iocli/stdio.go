package iocli

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// Stdio is the real-terminal IO implementation.
type Stdio struct {
	in  io.Reader
	out io.Writer
}

// NewStdio wires IO to the process's stdin and stdout.
func NewStdio() IO {
	return &Stdio{in: os.Stdin, out: os.Stdout}
}

// New builds an IO over arbitrary streams; used by tests.
func New(in io.Reader, out io.Writer) IO {
	return &Stdio{in: in, out: out}
}

func (s *Stdio) Println(a ...any) {
	fmt.Fprintln(s.out, a...)
}

func (s *Stdio) Printf(format string, a ...any) {
	fmt.Fprintf(s.out, format, a...)
}

func (s *Stdio) ReadInput(prompt string) (string, error) {
	s.Printf("%s", prompt)
	reader := bufio.NewReader(s.in)
	input, err := reader.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(input), nil
}

// ReadPassword reads without echo when stdin is a terminal, falling back to a
// plain line read otherwise (pipes, tests).
func (s *Stdio) ReadPassword(prompt string) (string, error) {
	if f, ok := s.in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		s.Printf("%s", prompt)
		pwBytes, err := term.ReadPassword(int(f.Fd()))
		s.Println("")
		if err != nil {
			return "", err
		}
		return string(pwBytes), nil
	}
	return s.ReadInput(prompt)
}

func (s *Stdio) Write(p []byte) (n int, err error) {
	return s.out.Write(p)
}
