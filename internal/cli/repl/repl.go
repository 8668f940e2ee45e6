package repl

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// Executor runs one command line.
type Executor func(ctx context.Context, args []string) error

// ErrUnterminatedQuote is returned by Split for a line with an open quote.
var ErrUnterminatedQuote = errors.New("repl: unterminated quote")

// REPL represents the Read-Eval-Print Loop.
type REPL struct {
	input     io.Reader
	output    io.Writer
	prompt    string
	exec      Executor
	completer *Completer
	history   *History
}

// Option configures a REPL.
type Option func(*REPL)

// WithIO sets where the shell reads lines and writes prompts.
func WithIO(in io.Reader, out io.Writer) Option {
	return func(r *REPL) {
		r.input = in
		r.output = out
	}
}

// WithPrompt overrides the default prompt.
func WithPrompt(prompt string) Option {
	return func(r *REPL) { r.prompt = prompt }
}

// WithCompleter sets the words offered by help and completion.
func WithCompleter(c *Completer) Option {
	return func(r *REPL) { r.completer = c }
}

// WithHistory replaces the default history.
func WithHistory(h *History) Option {
	return func(r *REPL) { r.history = h }
}

// New creates a new REPL that runs lines with exec.
func New(exec Executor, opts ...Option) *REPL {
	r := &REPL{
		input:     os.Stdin,
		output:    os.Stdout,
		prompt:    "apanic> ",
		exec:      exec,
		completer: NewCompleter(nil),
		history:   NewHistory(""),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// History returns the shell history.
func (r *REPL) History() *History {
	return r.history
}

// Run reads lines until exit, EOF or ctx is done. Command errors are printed
// and do not stop the loop.
func (r *REPL) Run(ctx context.Context) error {
	reader := bufio.NewReader(r.input)

	for {
		if err := ctx.Err(); err != nil {
			return nil
		}

		fmt.Fprint(r.output, r.prompt)

		line, err := reader.ReadString('\n')
		if err == io.EOF && line == "" {
			fmt.Fprintln(r.output)
			return nil
		}
		if err != nil && err != io.EOF {
			return err
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		r.history.Add(line)

		stop, execErr := r.execute(ctx, line)
		if execErr != nil {
			fmt.Fprintf(r.output, "Error: %v\n", execErr)
		}
		if stop {
			return nil
		}
	}
}

func (r *REPL) execute(ctx context.Context, line string) (bool, error) {
	args, err := Split(line)
	if err != nil {
		return false, err
	}

	switch args[0] {
	case "exit", "quit":
		return true, nil
	case "help":
		if len(args) == 1 {
			for _, cmd := range r.completer.Complete("") {
				fmt.Fprintln(r.output, "  "+cmd)
			}
			return false, nil
		}
		args = append(args[1:], "--help")
	case "history":
		for i, entry := range r.history.Entries() {
			fmt.Fprintf(r.output, "%5d  %s\n", i+1, entry)
		}
		return false, nil
	}

	if r.exec == nil {
		return false, fmt.Errorf("unknown command: %s", args[0])
	}
	return false, r.exec(ctx, args)
}

// Split breaks a line into arguments on unquoted whitespace. Single quotes
// are literal; double quotes allow backslash escapes.
func Split(line string) ([]string, error) {
	var (
		args    []string
		cur     strings.Builder
		inArg   bool
		quote   rune
		escaped bool
	)

	for _, ch := range line {
		switch {
		case escaped:
			cur.WriteRune(ch)
			escaped = false
		case ch == '\\' && quote != '\'':
			escaped = true
			inArg = true
		case quote != 0:
			if ch == quote {
				quote = 0
			} else {
				cur.WriteRune(ch)
			}
		case ch == '\'' || ch == '"':
			quote = ch
			inArg = true
		case ch == ' ' || ch == '\t':
			if inArg {
				args = append(args, cur.String())
				cur.Reset()
				inArg = false
			}
		default:
			cur.WriteRune(ch)
			inArg = true
		}
	}

	if quote != 0 || escaped {
		return nil, ErrUnterminatedQuote
	}
	if inArg {
		args = append(args, cur.String())
	}
	return args, nil
}
