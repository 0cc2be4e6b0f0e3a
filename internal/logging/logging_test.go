package logging

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zerolog.Level
	}{
		{"trace", zerolog.TraceLevel},
		{"DEBUG", zerolog.DebugLevel},
		{" info ", zerolog.InfoLevel},
		{"Warn", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"", zerolog.InfoLevel},
		{"verbose", zerolog.InfoLevel},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseLevel(tt.in))
		})
	}
}

func TestSetup_ConsoleOnly(t *testing.T) {
	t.Cleanup(func() { zerolog.SetGlobalLevel(zerolog.TraceLevel) })

	var buf bytes.Buffer
	l, err := Setup(Options{Level: "warn", Out: &buf})
	require.NoError(t, err)
	defer l.Close()

	l.Logger.Info().Msg("hidden")
	l.Logger.Warn().Str("component", "test").Msg("shown")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "shown")
	assert.Contains(t, out, "component=test")
}

func TestSetup_GelfOverUDP(t *testing.T) {
	t.Cleanup(func() { zerolog.SetGlobalLevel(zerolog.TraceLevel) })

	var buf bytes.Buffer
	l, err := Setup(Options{Level: "info", GelfEnabled: true, GelfAddr: "127.0.0.1:12201", Out: &buf})
	require.NoError(t, err)
	assert.NotNil(t, l.gelf)
	assert.NoError(t, l.Close())
}

func TestSetup_TraceSampleThinsBursts(t *testing.T) {
	t.Cleanup(func() { zerolog.SetGlobalLevel(zerolog.TraceLevel) })

	var buf bytes.Buffer
	l, err := Setup(Options{Level: "trace", Out: &buf})
	require.NoError(t, err)
	defer l.Close()

	for i := 0; i < 50; i++ {
		l.TraceSample.Trace().Int("i", i).Msg("move")
	}

	n := strings.Count(buf.String(), "sampled=true")
	assert.GreaterOrEqual(t, n, 5)
	assert.Less(t, n, 50)
}
