package repl

import (
	"sort"
	"strings"
)

var builtins = []string{"help", "history", "exit", "quit"}

// Completer provides command completion for the REPL.
type Completer struct {
	commands []string
}

// NewCompleter creates a Completer over the given command paths, such as
// "dump show". Shell builtins are always included.
func NewCompleter(commands []string) *Completer {
	seen := make(map[string]struct{}, len(commands)+len(builtins))
	all := make([]string, 0, len(commands)+len(builtins))
	for _, cmd := range append(append([]string(nil), commands...), builtins...) {
		if _, ok := seen[cmd]; ok {
			continue
		}
		seen[cmd] = struct{}{}
		all = append(all, cmd)
	}
	sort.Strings(all)
	return &Completer{commands: all}
}

// Complete returns completion suggestions for the given prefix.
func (c *Completer) Complete(prefix string) []string {
	var suggestions []string
	for _, cmd := range c.commands {
		if strings.HasPrefix(cmd, prefix) {
			suggestions = append(suggestions, cmd)
		}
	}
	return suggestions
}
