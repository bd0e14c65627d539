package record

import (
	"fmt"
	"strings"
)

// Level is the severity of a log record, ordered from lowest to highest
// operational impact. Levels only affect routing and formatting; nothing is
// filtered by level.
type Level int

const (
	// Info is for plain status messages.
	Info Level = iota
	// Debug is for information that is only useful to developers.
	Debug
	// Fine marks slight issues the program recovers from on its own.
	Fine
	// Warning marks recoverable problems that may hint at a bigger issue.
	Warning
	// Critical means functionality can no longer be fully guaranteed.
	Critical
	// Fatal means the program cannot recover without a restart.
	Fatal
)

var levelNames = [...]string{"INFO", "DEBUG", "FINE", "WARNING", "CRITICAL", "FATAL"}

// ANSI colour per level, applied when colour output is enabled.
var levelColors = [...]string{
	"\033[0m",  // Info: default
	"\033[36m", // Debug: cyan
	"\033[32m", // Fine: green
	"\033[33m", // Warning: yellow
	"\033[35m", // Critical: purple
	"\033[31m", // Fatal: red
}

const colorReset = "\033[0m"

func (l Level) Valid() bool { return l >= Info && l <= Fatal }

func (l Level) String() string {
	if !l.Valid() {
		return fmt.Sprintf("LEVEL(%d)", int(l))
	}
	return levelNames[l]
}

// Colored returns the level name wrapped in its ANSI colour.
func (l Level) Colored() string {
	if !l.Valid() {
		return l.String()
	}
	return levelColors[l] + levelNames[l] + colorReset
}

// IsError reports whether records of this level go to the error stream.
func (l Level) IsError() bool { return l >= Critical }

// ParseLevel parses a level name, case-insensitively.
func ParseLevel(s string) (Level, error) {
	u := strings.ToUpper(strings.TrimSpace(s))
	for i, n := range levelNames {
		if n == u {
			return Level(i), nil
		}
	}
	return 0, fmt.Errorf("unknown log level %q", s)
}

func (l Level) MarshalText() ([]byte, error) { return []byte(l.String()), nil }

func (l *Level) UnmarshalText(b []byte) error {
	v, err := ParseLevel(string(b))
	if err != nil {
		return err
	}
	*l = v
	return nil
}
