package widget

import (
	"strconv"
	"strings"
)

// CommandKind is what a line of terminal input asks for.
type CommandKind int

const (
	CommandSubmit CommandKind = iota
	CommandSelect
	CommandQuit
)

// Command is a parsed input line.
type Command struct {
	Kind  CommandKind
	City  string
	Index int
}

// ParseCommand reads one line: "#n" selects history chip n, ":q" quits, and
// anything else is submitted as a city (blank lines included, so validation
// can tell the user).
func ParseCommand(line string) Command {
	s := strings.TrimSpace(line)
	switch {
	case s == ":q" || s == ":quit":
		return Command{Kind: CommandQuit}
	case strings.HasPrefix(s, "#"):
		if n, err := strconv.Atoi(strings.TrimSpace(s[1:])); err == nil {
			return Command{Kind: CommandSelect, Index: n}
		}
	}
	return Command{Kind: CommandSubmit, City: line}
}
