// Package command parses chat-style command lines and dispatches them to the strategy registry.
package command

import (
	"strings"
	"unicode/utf8"
)

// MaxMessageLength is the largest chunk a chat transport accepts.
const MaxMessageLength = 4096

// Canonical command names.
const (
	Start          = "start"
	Help           = "help"
	ListStrategies = "list-strategies"
	StrategyStart  = "strategy-start"
	StrategyStop   = "strategy-stop"
	StrategyStatus = "strategy-status"
	Balances       = "balances"
	Recent         = "recent"
	Indicator      = "indicator"
)

var aliases = map[string]string{
	"get-strategies": ListStrategies,
	"strategies":     ListStrategies,
	"rsi":            Indicator,
}

// Command is one parsed request. Session identifies the reply destination.
type Command struct {
	Name    string
	Raw     string
	Args    []string
	Session string
}

// Parse splits a line such as "/strategy_start@bot rsi-simple" into a Command.
// The name is lower-cased with '_' folded into '-' and aliases resolved.
// It returns false for blank input.
func Parse(text string) (Command, bool) {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return Command{}, false
	}

	raw := strings.TrimPrefix(fields[0], "/")
	if i := strings.IndexByte(raw, '@'); i >= 0 {
		raw = raw[:i]
	}
	if raw == "" {
		return Command{}, false
	}

	name := strings.ReplaceAll(strings.ToLower(raw), "_", "-")
	if canonical, ok := aliases[name]; ok {
		name = canonical
	}

	return Command{Name: name, Raw: raw, Args: fields[1:]}, true
}

// Chunk splits msg into ordered pieces of at most size runes.
func Chunk(msg string, size int) []string {
	if msg == "" {
		return nil
	}
	if size <= 0 {
		size = MaxMessageLength
	}

	var chunks []string
	for len(msg) > 0 {
		if utf8.RuneCountInString(msg) <= size {
			chunks = append(chunks, msg)
			break
		}
		cut, n := 0, 0
		for cut < len(msg) && n < size {
			_, w := utf8.DecodeRuneInString(msg[cut:])
			cut += w
			n++
		}
		chunks = append(chunks, msg[:cut])
		msg = msg[cut:]
	}
	return chunks
}
