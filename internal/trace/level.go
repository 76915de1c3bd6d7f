package trace

import (
	"fmt"
	"strings"
)

// Level is how deep tracing goes.
type Level uint8

const (
	LevelOff    Level = iota
	LevelError        // ring only, dumped on failure
	LevelPhase        // commands and categories
	LevelDetail       // plus files
	LevelDebug        // plus per-entry failures
)

var levelNames = [...]string{"off", "error", "phase", "detail", "debug"}

func (l Level) String() string {
	if int(l) < len(levelNames) {
		return levelNames[l]
	}
	return "unknown"
}

// ParseLevel accepts the names printed by String; "" means off.
func ParseLevel(s string) (Level, error) {
	s = strings.ToLower(s)
	if s == "" {
		return LevelOff, nil
	}
	for i, name := range levelNames {
		if name == s {
			return Level(i), nil
		}
	}
	return LevelOff, fmt.Errorf("invalid trace level %q (expected %s)", s, strings.Join(levelNames[:], "|"))
}

// ShouldEmit reports whether events of scope are recorded at level l.
func (l Level) ShouldEmit(scope Scope) bool {
	var deepest Scope
	switch l {
	case LevelError, LevelPhase:
		deepest = ScopeCategory
	case LevelDetail:
		deepest = ScopeFile
	case LevelDebug:
		deepest = ScopeEntry
	}
	return scope != 0 && scope <= deepest
}
