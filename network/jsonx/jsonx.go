// Package jsonx encodes and decodes the newline-delimited JSON envelopes
// exchanged with the Core broker.
package jsonx

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
)

var (
	ErrJsonEncode = errors.New("jsonx: cannot encode message")
	ErrJsonDecode = errors.New("jsonx: cannot decode message")
)

type (
	Header struct {
		ID      string `json:"id"`
		Version string `json:"version"`
	}

	// Envelope is one wire message. Body is kept raw until a parser for
	// Header.ID consumes it.
	Envelope struct {
		Header Header          `json:"header"`
		Body   json.RawMessage `json:"body"`
	}

	EncodeError struct {
		Tag string
		Err error
	}

	DecodeError struct {
		Line string
		Err  error
	}
)

func (e *EncodeError) Error() string {
	return fmt.Sprintf("jsonx: cannot encode %s: %v", e.Tag, e.Err)
}

func (e *EncodeError) Is(target error) bool { return target == ErrJsonEncode }

func (e *EncodeError) Unwrap() error { return e.Err }

func (e *DecodeError) Error() string {
	return fmt.Sprintf("jsonx: cannot decode line: %v", e.Err)
}

func (e *DecodeError) Is(target error) bool { return target == ErrJsonDecode }

func (e *DecodeError) Unwrap() error { return e.Err }

// Encode serialises header and body into one newline-terminated line.
func Encode(header Header, body any) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	msg := struct {
		Header Header `json:"header"`
		Body   any    `json:"body"`
	}{header, body}
	if err := enc.Encode(msg); err != nil {
		return "", &EncodeError{Tag: header.ID, Err: err}
	}

	// json.Encoder already terminates the document with '\n'.
	return buf.String(), nil
}

// Decode parses one line. Surrounding whitespace, the newline included, is
// ignored.
func Decode(line string) (Envelope, error) {
	var raw struct {
		Header *Header          `json:"header"`
		Body   json.RawMessage `json:"body"`
	}
	if err := json.Unmarshal([]byte(strings.TrimSpace(line)), &raw); err != nil {
		return Envelope{}, &DecodeError{Line: line, Err: err}
	}
	if raw.Header == nil {
		return Envelope{}, &DecodeError{Line: line, Err: errors.New("missing header")}
	}

	return Envelope{Header: *raw.Header, Body: raw.Body}, nil
}

// ExtractType returns header.id of line without a full decode. It reads
// past a malformed or truncated tail, so a line that Decode rejects can
// still be attributed to its tag.
func ExtractType(line string) (string, bool) {
	id := gjson.Get(line, "header.id")
	if id.Type != gjson.String {
		return "", false
	}
	return id.String(), true
}

// Fields splits the body into its top-level keys.
func (e Envelope) Fields() (map[string]json.RawMessage, error) {
	fields := make(map[string]json.RawMessage)
	if len(e.Body) == 0 || string(e.Body) == "null" {
		return fields, nil
	}
	if err := json.Unmarshal(e.Body, &fields); err != nil {
		return nil, &DecodeError{Line: string(e.Body), Err: err}
	}
	return fields, nil
}

// BodyMap decodes the body into generic values.
func (e Envelope) BodyMap() (map[string]any, error) {
	body := make(map[string]any)
	if len(e.Body) == 0 || string(e.Body) == "null" {
		return body, nil
	}
	if err := json.Unmarshal(e.Body, &body); err != nil {
		return nil, &DecodeError{Line: string(e.Body), Err: err}
	}
	return body, nil
}
