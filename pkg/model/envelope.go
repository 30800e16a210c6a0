package model

import (
	"bytes"
	"encoding/json"
	"sort"
)

// Envelope is the uniform response returned for a dispatched query
type Envelope struct {
	Function Intent
	Result   EnvelopeResult
}

// EnvelopeResult keeps status as the first JSON key followed by the remaining fields in
// lexical order.
type EnvelopeResult struct {
	Status Status
	Fields map[string]any
}

// NewEnvelope wraps a non-failure result. Failures are never wrapped; they escalate as
// errors instead.
func NewEnvelope(intent Intent, result *Result) *Envelope {
	fields := result.Fields()
	delete(fields, "status")
	return &Envelope{
		Function: intent,
		Result: EnvelopeResult{
			Status: result.Status,
			Fields: fields,
		},
	}
}

type envelopeJSON struct {
	Function Intent         `json:"function"`
	Result   EnvelopeResult `json:"result"`
}

func (x Envelope) MarshalJSON() ([]byte, error) {
	return json.Marshal(envelopeJSON{Function: x.Function, Result: x.Result})
}

func (x EnvelopeResult) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(`{"status":`)
	status, err := json.Marshal(x.Status)
	if err != nil {
		return nil, err
	}
	buf.Write(status)

	keys := make([]string, 0, len(x.Fields))
	for k := range x.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		key, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		value, err := json.Marshal(x.Fields[k])
		if err != nil {
			return nil, err
		}
		buf.WriteByte(',')
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
