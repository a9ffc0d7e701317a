package jsonrpc

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// EncodeRequest marshals a request into its CRLF-terminated wire form.
// A nil params is sent as an empty object, matching coordinator expectations.
func EncodeRequest(method string, id uint64, params any) ([]byte, error) {
	if params == nil {
		params = map[string]any{}
	}
	data, err := json.Marshal(Request{
		ID:      id,
		Method:  method,
		Params:  params,
		JSONRPC: Version,
	})
	if err != nil {
		return nil, fmt.Errorf("jsonrpc: encode %s: %w", method, err)
	}
	return append(data, Terminator...), nil
}

// DecodeBatch decodes one logical transmission into its message sequence.
// The input may be a single JSON object, a JSON array of objects, or several
// CRLF-separated values each of which may again be an object or an array.
// All forms flatten to the same ordered slice.
func DecodeBatch(data []byte) ([]Message, error) {
	var msgs []Message
	for _, chunk := range splitValues(data) {
		decoded, err := decodeValue(chunk)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, decoded...)
	}
	return msgs, nil
}

// decodeValue decodes one JSON value, unwrapping a top-level array.
func decodeValue(chunk []byte) ([]Message, error) {
	if len(chunk) > 0 && chunk[0] == '[' {
		var batch []Message
		if err := json.Unmarshal(chunk, &batch); err != nil {
			return nil, fmt.Errorf("jsonrpc: decode batch: %w", err)
		}
		return batch, nil
	}
	var msg Message
	if err := json.Unmarshal(chunk, &msg); err != nil {
		return nil, fmt.Errorf("jsonrpc: decode message: %w", err)
	}
	return []Message{msg}, nil
}

// splitValues splits a transmission on CRLF boundaries, dropping empty
// segments left by trailing terminators.
func splitValues(data []byte) [][]byte {
	var out [][]byte
	for _, part := range bytes.Split(data, []byte(Terminator)) {
		part = bytes.TrimSpace(part)
		if len(part) > 0 {
			out = append(out, part)
		}
	}
	return out
}
