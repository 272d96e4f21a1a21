package logging

import (
	"os"
	"testing"

	"github.com/rs/zerolog"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  zerolog.Level
	}{
		{"", zerolog.InfoLevel},
		{"info", zerolog.InfoLevel},
		{"INFO", zerolog.InfoLevel},
		{"  debug  ", zerolog.DebugLevel},
		{"trace", zerolog.TraceLevel},
		{"warn", zerolog.WarnLevel},
		{"warning", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"fatal", zerolog.FatalLevel},
		{"disabled", zerolog.Disabled},
		{"bogus", zerolog.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := parseLevel(tt.input); got != tt.want {
				t.Errorf("parseLevel(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestSelectWriter(t *testing.T) {
	origIsTerminal := isTerminalFn
	t.Cleanup(func() { isTerminalFn = origIsTerminal })

	isTerminalFn = func(fd int) bool { return false }
	if w := selectWriter("auto"); w != os.Stderr {
		t.Errorf("selectWriter(auto) without TTY should be plain stderr, got %T", w)
	}
	if w := selectWriter("json"); w != os.Stderr {
		t.Errorf("selectWriter(json) should be plain stderr, got %T", w)
	}

	isTerminalFn = func(fd int) bool { return true }
	if _, ok := selectWriter("auto").(zerolog.ConsoleWriter); !ok {
		t.Error("selectWriter(auto) with TTY should be a console writer")
	}
	if _, ok := selectWriter("console").(zerolog.ConsoleWriter); !ok {
		t.Error("selectWriter(console) should be a console writer")
	}
}

func TestInitSetsComponent(t *testing.T) {
	logger := Init(Config{Format: "json", Level: "debug", Component: "test"})
	if logger.GetLevel() > zerolog.DebugLevel {
		t.Errorf("logger level = %v, want debug or lower", logger.GetLevel())
	}
}
