package records

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
)

// ErrNoDiagnostics is returned when a collection has no diagnostics array.
var ErrNoDiagnostics = errors.New("diagnostics array is missing")

// ParseError describes a malformed input file. Line is 1-based and zero for
// whole-document failures; Offset is the byte offset reported by the decoder.
type ParseError struct {
	Path   string
	Line   int
	Offset int64
	Err    error
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s:%d: failed to parse JSON line (offset %d): %v", e.Path, e.Line, e.Offset, e.Err)
	}
	return fmt.Sprintf("%s: failed to parse JSON (offset %d): %v", e.Path, e.Offset, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Collection is a diagnostic collection file.
type Collection struct {
	Path        string
	Root        Record
	Diagnostics []Record
}

// LoadFile reads path and returns its records regardless of encoding.
func LoadFile(path string) ([]Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return DecodeRecords(path, data)
}

// DecodeRecords normalizes data (JSON object, JSON array or JSON-Lines).
func DecodeRecords(path string, data []byte) ([]Record, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return []Record{}, nil
	}
	value, err := decodeSingle(trimmed)
	if err == nil {
		switch v := value.(type) {
		case []any:
			out := make([]Record, 0, len(v))
			for _, item := range v {
				if rec, ok := AsRecord(item); ok {
					out = append(out, rec)
				}
			}
			return out, nil
		case map[string]any:
			return []Record{v}, nil
		default:
			return []Record{}, nil
		}
	}
	return decodeLines(path, trimmed)
}

func decodeLines(path string, data []byte) ([]Record, error) {
	out := make([]Record, 0, 16)
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 64*1024*1024)
	line := 0
	var offset int64
	for scanner.Scan() {
		line++
		raw := scanner.Bytes()
		lineOffset := offset
		offset += int64(len(raw)) + 1
		text := bytes.TrimSpace(raw)
		if len(text) == 0 {
			continue
		}
		value, err := decodeSingle(text)
		if err != nil {
			return nil, &ParseError{Path: path, Line: line, Offset: lineOffset + syntaxOffset(err), Err: err}
		}
		if rec, ok := AsRecord(value); ok {
			out = append(out, rec)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, &ParseError{Path: path, Line: line + 1, Offset: offset, Err: err}
	}
	return out, nil
}

// DecodeDocument parses data as exactly one JSON value.
func DecodeDocument(path string, data []byte) (any, error) {
	value, err := decodeSingle(data)
	if err != nil {
		return nil, &ParseError{Path: path, Offset: syntaxOffset(err), Err: err}
	}
	return value, nil
}

// LoadDocument reads path as exactly one JSON value.
func LoadDocument(path string) (any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return DecodeDocument(path, data)
}

// LoadCollection reads a diagnostic collection.
func LoadCollection(path string) (*Collection, error) {
	doc, err := LoadDocument(path)
	if err != nil {
		return nil, err
	}
	return CollectionFrom(path, doc)
}

// CollectionFrom validates an already decoded collection document.
func CollectionFrom(path string, doc any) (*Collection, error) {
	root, ok := AsRecord(doc)
	if !ok {
		return nil, fmt.Errorf("%s: %w", path, ErrNoDiagnostics)
	}
	raw, ok := root["diagnostics"].([]any)
	if !ok {
		return nil, fmt.Errorf("%s: %w", path, ErrNoDiagnostics)
	}
	diags := make([]Record, 0, len(raw))
	for _, item := range raw {
		if rec, ok := AsRecord(item); ok {
			diags = append(diags, rec)
		}
	}
	return &Collection{Path: path, Root: root, Diagnostics: diags}, nil
}

func decodeSingle(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	var value any
	if err := dec.Decode(&value); err != nil {
		return nil, err
	}
	var extra any
	if err := dec.Decode(&extra); err != io.EOF {
		if err == nil {
			return nil, fmt.Errorf("unexpected trailing JSON value at offset %d", dec.InputOffset())
		}
		return nil, err
	}
	return value, nil
}

func syntaxOffset(err error) int64 {
	var syntax *json.SyntaxError
	if errors.As(err, &syntax) {
		return syntax.Offset
	}
	return 0
}

func parseFloat(s string) (float64, bool) {
	if s == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}
