package logging

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]zerolog.Level{
		"":            zerolog.ErrorLevel,
		"debug":       zerolog.DebugLevel,
		"dev":         zerolog.DebugLevel,
		"development": zerolog.DebugLevel,
		"info":        zerolog.InfoLevel,
		"warning":     zerolog.WarnLevel,
		"prod":        zerolog.ErrorLevel,
		"nonsense":    zerolog.ErrorLevel,
	}
	for in, want := range cases {
		assert.Equal(t, want, ParseLevel(in), "LOG_LEVEL=%q", in)
	}
}
