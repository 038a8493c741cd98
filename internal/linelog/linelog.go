// Package linelog reads and writes the word log format: one JSON object
// per line, each of the form {"line":"<text>"}.
//
// The file as a whole is not a JSON document; it is a sequence of records
// separated by newlines.
package linelog

import (
	"bufio"
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// Field is the JSON key holding the committed text.
const Field = "line"

// Errors
var (
	ErrInvalidJSON = errors.New("linelog: invalid JSON")
	ErrNoLine      = errors.New("linelog: record has no string \"line\" field")
)

// Record is one committed line.
type Record struct {
	Line string `json:"line"`
}

// Encode returns the record for text without a trailing newline.
func Encode(text string) ([]byte, error) {
	out, err := sjson.SetBytes(nil, Field, text)
	if err != nil {
		return nil, fmt.Errorf("encode line: %w", err)
	}
	return out, nil
}

// AppendRecord appends the newline-terminated record for text to dst.
func AppendRecord(dst []byte, text string) ([]byte, error) {
	rec, err := Encode(text)
	if err != nil {
		return dst, err
	}
	dst = append(dst, rec...)
	return append(dst, '\n'), nil
}

// Decode parses a single record. Surrounding whitespace is ignored.
func Decode(line []byte) (Record, error) {
	line = bytes.TrimSpace(line)
	if !gjson.ValidBytes(line) {
		return Record{}, ErrInvalidJSON
	}
	v := gjson.GetBytes(line, Field)
	if v.Type != gjson.String {
		return Record{}, ErrNoLine
	}
	return Record{Line: v.String()}, nil
}

//go:embed record.schema.json
var recordSchema string

const schemaURL = "https://wordlog.local/schema/record-v1.json"

var (
	compiled    *jsonschema.Schema
	compileErr  error
	compileOnce sync.Once
)

// Schema returns the compiled JSON Schema for a record.
func Schema() (*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		c := jsonschema.NewCompiler()
		if err := c.AddResource(schemaURL, strings.NewReader(recordSchema)); err != nil {
			compileErr = fmt.Errorf("add schema resource: %w", err)
			return
		}
		compiled, compileErr = c.Compile(schemaURL)
		if compileErr != nil {
			compileErr = fmt.Errorf("compile schema: %w", compileErr)
		}
	})
	return compiled, compileErr
}

// ValidateLine checks a single record against the schema.
func ValidateLine(line []byte) error {
	schema, err := Schema()
	if err != nil {
		return err
	}

	var instance any
	if err := json.Unmarshal(bytes.TrimSpace(line), &instance); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidJSON, err)
	}
	if err := schema.Validate(instance); err != nil {
		return fmt.Errorf("schema validation: %w", err)
	}
	return nil
}

// LineError reports the first bad line found by Scan.
type LineError struct {
	Line int
	Err  error
}

func (e *LineError) Error() string {
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

func (e *LineError) Unwrap() error { return e.Err }

// Scan reads a word log, validating every record and calling fn with its
// 1-based line number. Blank lines are not allowed. Scan stops at the first
// invalid record or the first error returned by fn.
func Scan(r io.Reader, fn func(n int, rec Record) error) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 16*1024*1024)

	n := 0
	for sc.Scan() {
		n++
		raw := sc.Bytes()
		if err := ValidateLine(raw); err != nil {
			return &LineError{Line: n, Err: err}
		}
		rec, err := Decode(raw)
		if err != nil {
			return &LineError{Line: n, Err: err}
		}
		if fn != nil {
			if err := fn(n, rec); err != nil {
				return err
			}
		}
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("read log: %w", err)
	}
	return nil
}
