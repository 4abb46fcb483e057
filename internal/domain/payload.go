package domain

import (
	"encoding/json"
	"strings"
)

// Shape identifies how an upstream payload was laid out.
type Shape int

const (
	// ShapeUnrecognized is any payload that is neither a list nor a known envelope.
	ShapeUnrecognized Shape = iota
	// ShapeArray is a top-level JSON array of records.
	ShapeArray
	// ShapeEnvelope is an object holding the records under a known field.
	ShapeEnvelope
)

func (s Shape) String() string {
	switch s {
	case ShapeArray:
		return "array"
	case ShapeEnvelope:
		return "envelope"
	default:
		return "unrecognized"
	}
}

// envelopeFields are the object fields that may carry a record list, in lookup order.
var envelopeFields = []string{"reports", "detections", "records", "sightings", "results", "data", "children", "items"}

// maxEnvelopeDepth bounds how far nested envelopes are followed ({"data":{"children":[...]}}).
const maxEnvelopeDepth = 2

// Payload is the flattened result of resolving an upstream payload's shape.
type Payload struct {
	Shape   Shape
	Field   string // envelope path, e.g. "data.children"; empty for arrays
	Records []RawRecord
	Skipped int // list elements that were not objects
}

// Recognized reports whether the payload had a usable shape.
func (p Payload) Recognized() bool {
	return p.Shape != ShapeUnrecognized
}

// ResolvePayload decodes body and flattens it into a record list.
// Undecodable or unknown layouts resolve to ShapeUnrecognized with zero records.
func ResolvePayload(body []byte) Payload {
	var v any
	if err := json.Unmarshal(body, &v); err != nil {
		return Payload{Shape: ShapeUnrecognized}
	}
	return resolveValue(v)
}

func resolveValue(v any) Payload {
	switch t := v.(type) {
	case []any:
		records, skipped := flattenElements(t)
		return Payload{Shape: ShapeArray, Records: records, Skipped: skipped}
	case map[string]any:
		if path, list, ok := findEnvelope(t, 0); ok {
			records, skipped := flattenElements(list)
			return Payload{Shape: ShapeEnvelope, Field: path, Records: records, Skipped: skipped}
		}
	}
	return Payload{Shape: ShapeUnrecognized}
}

func findEnvelope(obj map[string]any, depth int) (string, []any, bool) {
	for _, field := range envelopeFields {
		switch inner := obj[field].(type) {
		case []any:
			return field, inner, true
		case map[string]any:
			if depth+1 >= maxEnvelopeDepth {
				continue
			}
			if path, list, ok := findEnvelope(inner, depth+1); ok {
				return field + "." + path, list, true
			}
		}
	}
	return "", nil, false
}

func flattenElements(list []any) ([]RawRecord, int) {
	records := make([]RawRecord, 0, len(list))
	skipped := 0
	for _, el := range list {
		obj, ok := el.(map[string]any)
		if !ok {
			skipped++
			continue
		}
		records = append(records, unwrapElement(obj))
	}
	return records, skipped
}

// unwrapElement lifts wrapped list items into a flat record:
// JSON:API resources ({"id","type","attributes":{...}}) and
// listing items ({"kind":"t3","data":{...}}).
func unwrapElement(obj map[string]any) RawRecord {
	if attrs, ok := obj["attributes"].(map[string]any); ok {
		rec := make(RawRecord, len(attrs)+2)
		for k, v := range attrs {
			rec[k] = v
		}
		if id, ok := obj["id"]; ok {
			rec["id"] = id
		}
		if typ, ok := obj["type"].(string); ok {
			rec["resource_type"] = typ
		}
		return rec
	}
	if kind, ok := obj["kind"].(string); ok && len(obj) == 2 {
		if data, ok := obj["data"].(map[string]any); ok {
			rec := RawRecord(data)
			if _, exists := rec["kind"]; !exists {
				rec["kind"] = strings.TrimSpace(kind)
			}
			return rec
		}
	}
	return RawRecord(obj)
}
