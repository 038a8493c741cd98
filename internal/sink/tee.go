package sink

import "io"

// TeeWriter writes to a primary writer and mirrors each successful write to
// the others. Only the primary determines the result.
type TeeWriter struct {
	primary io.Writer
	mirrors []io.Writer

	// OnError receives mirror failures. Nil discards them.
	OnError func(w io.Writer, err error)
}

// Tee returns a writer that fans out to primary and mirrors.
func Tee(primary io.Writer, mirrors ...io.Writer) *TeeWriter {
	return &TeeWriter{primary: primary, mirrors: mirrors}
}

func (t *TeeWriter) Write(p []byte) (int, error) {
	n, err := t.primary.Write(p)
	if err != nil {
		return n, err
	}
	for _, m := range t.mirrors {
		if _, merr := m.Write(p); merr != nil && t.OnError != nil {
			t.OnError(m, merr)
		}
	}
	return n, nil
}
