package document

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
	"gopkg.in/yaml.v3"
)

// Format is a document encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	FormatCUE  Format = "cue"
)

// FormatFromPath picks the format from a file extension.
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".cue":
		return FormatCUE, nil
	}
	return "", &LoadError{
		Code:    ErrCodeUnsupportedFormat,
		Message: fmt.Sprintf("cannot tell the format of %q (want .json, .yaml, .yml or .cue)", path),
	}
}

// source is a decoded document: a generic value tree of int64, float64,
// string, bool, nil, []any and map[string]any, plus the source position of
// each path where the format provides one.
type source struct {
	name      string
	root      any
	positions map[string]Position
}

func (s *source) at(path string) Position {
	return s.positions[path]
}

func decode(data []byte, format Format, name string) (*source, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, &LoadError{Code: ErrCodeEmpty, Message: fmt.Sprintf("%s is empty", name)}
	}
	switch format {
	case FormatJSON:
		return decodeJSON(data, name)
	case FormatYAML:
		return decodeYAML(data, name)
	case FormatCUE:
		return decodeCUE(data, name)
	}
	return nil, &LoadError{Code: ErrCodeUnsupportedFormat, Message: fmt.Sprintf("unknown format %q", format)}
}

func decodeJSON(data []byte, name string) (*source, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, jsonError(data, name, err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, &LoadError{Code: ErrCodeParseFailed, Message: "unexpected data after the document"}
	}
	return &source{name: name, root: normalizeJSON(v), positions: map[string]Position{}}, nil
}

func normalizeJSON(v any) any {
	switch x := v.(type) {
	case json.Number:
		if n, err := x.Int64(); err == nil {
			return n
		}
		f, _ := x.Float64()
		return f
	case []any:
		for i := range x {
			x[i] = normalizeJSON(x[i])
		}
		return x
	case map[string]any:
		for k := range x {
			x[k] = normalizeJSON(x[k])
		}
		return x
	}
	return v
}

func jsonError(data []byte, name string, err error) error {
	le := &LoadError{Code: ErrCodeParseFailed, Message: err.Error()}
	var syntax *json.SyntaxError
	if errors.As(err, &syntax) {
		le.Pos = offsetPosition(data, name, syntax.Offset)
	}
	return le
}

// offsetPosition converts a byte offset into a 1-based line and column.
func offsetPosition(data []byte, name string, offset int64) Position {
	if offset > int64(len(data)) {
		offset = int64(len(data))
	}
	before := data[:offset]
	line := bytes.Count(before, []byte("\n")) + 1
	col := int(offset) - bytes.LastIndexByte(before, '\n')
	return Position{Filename: name, Line: line, Column: col}
}

func decodeYAML(data []byte, name string) (*source, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, &LoadError{Code: ErrCodeParseFailed, Message: err.Error()}
	}
	if len(doc.Content) == 0 {
		return nil, &LoadError{Code: ErrCodeEmpty, Message: fmt.Sprintf("%s has no document", name)}
	}
	s := &source{name: name, positions: map[string]Position{}}
	root, err := s.yamlValue(doc.Content[0], "$")
	if err != nil {
		return nil, err
	}
	s.root = root
	return s, nil
}

func (s *source) yamlValue(n *yaml.Node, path string) (any, error) {
	s.positions[path] = Position{Filename: s.name, Line: n.Line, Column: n.Column}

	switch n.Kind {
	case yaml.AliasNode:
		return s.yamlValue(n.Alias, path)
	case yaml.SequenceNode:
		out := make([]any, len(n.Content))
		for i, c := range n.Content {
			v, err := s.yamlValue(c, fmt.Sprintf("%s[%d]", path, i))
			if err != nil {
				return nil, err
			}
			out[i] = v
		}
		return out, nil
	case yaml.MappingNode:
		out := make(map[string]any, len(n.Content)/2)
		for i := 0; i+1 < len(n.Content); i += 2 {
			key := n.Content[i].Value
			v, err := s.yamlValue(n.Content[i+1], path+"."+key)
			if err != nil {
				return nil, err
			}
			out[key] = v
		}
		return out, nil
	case yaml.ScalarNode:
		var (
			v   any
			err error
		)
		switch n.ShortTag() {
		case "!!int":
			var i int64
			err = n.Decode(&i)
			v = i
		case "!!float":
			var f float64
			err = n.Decode(&f)
			v = f
		case "!!bool":
			var b bool
			err = n.Decode(&b)
			v = b
		case "!!null":
			v = nil
		default:
			v = n.Value
		}
		if err != nil {
			return nil, &LoadError{Code: ErrCodeOutOfRange, Message: err.Error(), Path: path, Pos: s.positions[path]}
		}
		return v, nil
	}
	return nil, &LoadError{Code: ErrCodeParseFailed, Message: "unsupported YAML node", Path: path, Pos: s.positions[path]}
}

func decodeCUE(data []byte, name string) (*source, error) {
	v := cuecontext.New().CompileBytes(data, cue.Filename(name))
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return nil, formatCUEError(err)
	}
	s := &source{name: name, positions: map[string]Position{}}
	root, err := s.cueValue(v, "$")
	if err != nil {
		return nil, err
	}
	s.root = root
	return s, nil
}

func (s *source) cueValue(v cue.Value, path string) (any, error) {
	pos := cuePosition(v.Pos())
	s.positions[path] = pos
	fail := func(err error) error {
		return &LoadError{Code: ErrCodeOutOfRange, Message: err.Error(), Path: path, Pos: pos}
	}

	switch v.Kind() {
	case cue.IntKind:
		n, err := v.Int64()
		if err != nil {
			return nil, fail(err)
		}
		return n, nil
	case cue.FloatKind:
		f, err := v.Float64()
		if err != nil {
			return nil, fail(err)
		}
		return f, nil
	case cue.StringKind:
		return v.String()
	case cue.BoolKind:
		return v.Bool()
	case cue.NullKind:
		return nil, nil
	case cue.ListKind:
		iter, err := v.List()
		if err != nil {
			return nil, formatCUEError(err)
		}
		var out []any
		for i := 0; iter.Next(); i++ {
			item, err := s.cueValue(iter.Value(), fmt.Sprintf("%s[%d]", path, i))
			if err != nil {
				return nil, err
			}
			out = append(out, item)
		}
		return out, nil
	case cue.StructKind:
		iter, err := v.Fields()
		if err != nil {
			return nil, formatCUEError(err)
		}
		out := map[string]any{}
		for iter.Next() {
			item, err := s.cueValue(iter.Value(), path+"."+iter.Label())
			if err != nil {
				return nil, err
			}
			out[iter.Label()] = item
		}
		return out, nil
	}
	return nil, &LoadError{Code: ErrCodeParseFailed, Message: fmt.Sprintf("unsupported CUE kind %s", v.Kind()), Path: path, Pos: pos}
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return &LoadError{Code: ErrCodeParseFailed, Message: err.Error()}
	}

	// Report the first error, with its position if it has one.
	first := errs[0]
	le := &LoadError{Code: ErrCodeParseFailed, Message: first.Error()}
	if positions := cueerrors.Positions(first); len(positions) > 0 {
		le.Pos = cuePosition(positions[0])
	}
	return le
}

func cuePosition(p token.Pos) Position {
	if !p.IsValid() {
		return Position{}
	}
	return Position{Filename: p.Filename(), Line: p.Line(), Column: p.Column()}
}
