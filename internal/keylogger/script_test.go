package keylogger

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wordlog/internal/keys"
	"wordlog/internal/linelog"
	"wordlog/internal/recorder"
)

func runScript(t *testing.T, script string) (string, error) {
	t.Helper()

	out := &syncBuffer{}
	src := NewScript()
	kl := New(recorder.New(out), src)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- kl.Run(ctx) }()
	<-kl.Ready()

	playErr := src.Play(ctx, strings.NewReader(script))
	cancel()
	require.NoError(t, <-done)
	return out.String(), playErr
}

func TestScriptDirectives(t *testing.T) {
	script := `# greeting
down H
up H
tap I
tap Enter

up LShift
tap Key1
tap a
up LShift
tap enter
`
	out, err := runScript(t, script)
	require.NoError(t, err)
	assert.Equal(t, "{\"line\":\"hi\"}\n{\"line\":\"!A\"}\n", out)
}

func TestScriptTypeAndLine(t *testing.T) {
	out, err := runScript(t, "type Hello, World!\ntap Backspace\nline ?\nline \"q\" & a\\b\n")
	require.NoError(t, err)

	var got []string
	require.NoError(t, linelog.Scan(strings.NewReader(out), func(n int, rec linelog.Record) error {
		got = append(got, rec.Line)
		return nil
	}))
	assert.Equal(t, []string{"Hello, World?", `"q" & a\b`}, got)
}

func TestScriptUnknownDirective(t *testing.T) {
	_, err := runScript(t, "tap A\njump B\n")
	require.Error(t, err)

	var serr *ScriptError
	require.True(t, errors.As(err, &serr))
	assert.Equal(t, 2, serr.Line)
}

func TestScriptUnknownKey(t *testing.T) {
	_, err := runScript(t, "down Hyper\n")
	assert.ErrorIs(t, err, keys.ErrUnknownKey)
}

func TestScriptUntypeable(t *testing.T) {
	out, err := runScript(t, "type naïve\n")
	assert.ErrorIs(t, err, ErrUntypeable)
	assert.Equal(t, "", out)
}

func TestScriptSleepHonoursContext(t *testing.T) {
	src := NewScript()
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := src.Play(ctx, strings.NewReader("sleep 10s\n"))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestScriptBadSleep(t *testing.T) {
	err := NewScript().Play(context.Background(), strings.NewReader("sleep soon\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "script line 1")
}

func TestScriptLongLine(t *testing.T) {
	text := strings.Repeat("a", 100*1024)

	out, err := runScript(t, "line "+text+"\n")
	require.NoError(t, err)

	var got []string
	require.NoError(t, linelog.Scan(strings.NewReader(out), func(_ int, rec linelog.Record) error {
		got = append(got, rec.Line)
		return nil
	}))
	assert.Equal(t, []string{text}, got)
}
