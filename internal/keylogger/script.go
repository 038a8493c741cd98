package keylogger

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"wordlog/internal/keys"
)

// ScriptSource replays key events from a text script. It is a
// SimulatedSource that Play drives from a reader, one directive per line:
//
//	down <key>       press a key
//	up <key>         release a key
//	tap <key>        press then release
//	type <text>      type printable ASCII
//	line <text>      type, then press Enter
//	sleep <duration> pause, e.g. 250ms
//	# comment
//
// Key names are those accepted by keys.Parse. "type" and "line" assume
// shift is off and wrap each shifted character in a pair of shift
// releases, since shift toggles on release.
type ScriptSource struct {
	*SimulatedSource
}

// NewScript creates a ScriptSource with no registrations.
func NewScript() *ScriptSource {
	return &ScriptSource{SimulatedSource: NewSimulated()}
}

// ErrUntypeable is returned for text that has no key in the table.
var ErrUntypeable = errors.New("keylogger: character has no key")

// ScriptError locates a failing directive.
type ScriptError struct {
	Line int
	Err  error
}

func (e *ScriptError) Error() string {
	return fmt.Sprintf("script line %d: %v", e.Line, e.Err)
}

func (e *ScriptError) Unwrap() error { return e.Err }

// maxScriptLine bounds a single directive, long type and line text included.
const maxScriptLine = 16 * 1024 * 1024

// Play runs the script in r until EOF, the first bad directive, or ctx is
// cancelled. Directives execute as they are read, so r may be a pipe.
func (s *ScriptSource) Play(ctx context.Context, r io.Reader) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), maxScriptLine)
	n := 0
	for sc.Scan() {
		n++
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.exec(ctx, sc.Text()); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			return &ScriptError{Line: n, Err: err}
		}
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("read script: %w", err)
	}
	return nil
}

func (s *ScriptSource) exec(ctx context.Context, raw string) error {
	line := strings.TrimRight(raw, "\r")
	trimmed := strings.TrimSpace(line)
	if trimmed == "" || strings.HasPrefix(trimmed, "#") {
		return nil
	}

	verb, arg, _ := strings.Cut(strings.TrimLeft(line, " \t"), " ")
	switch strings.ToLower(verb) {
	case "down", "press":
		k, err := keys.Parse(arg)
		if err != nil {
			return err
		}
		s.Press(k)
	case "up", "release":
		k, err := keys.Parse(arg)
		if err != nil {
			return err
		}
		s.Release(k)
	case "tap":
		k, err := keys.Parse(arg)
		if err != nil {
			return err
		}
		s.Tap(k)
	case "type":
		return s.TypeText(arg)
	case "line":
		if err := s.TypeText(arg); err != nil {
			return err
		}
		s.Tap(keys.Enter)
	case "sleep":
		d, err := time.ParseDuration(strings.TrimSpace(arg))
		if err != nil {
			return fmt.Errorf("sleep: %w", err)
		}
		t := time.NewTimer(d)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
		}
	default:
		return fmt.Errorf("unknown directive %q", verb)
	}
	return nil
}

// TypeText taps the keys that type text, toggling shift around shifted
// characters. Nothing is delivered if any character is untypeable.
func (s *ScriptSource) TypeText(text string) error {
	type stroke struct {
		key   keys.Keycode
		shift bool
	}
	strokes := make([]stroke, 0, len(text))
	for _, r := range text {
		k, shift, ok := keys.Lookup(r)
		if !ok {
			return fmt.Errorf("%w: %q", ErrUntypeable, r)
		}
		strokes = append(strokes, stroke{key: k, shift: shift})
	}

	for _, st := range strokes {
		if st.shift {
			s.Release(keys.LShift)
		}
		s.Tap(st.key)
		if st.shift {
			s.Release(keys.LShift)
		}
	}
	return nil
}
