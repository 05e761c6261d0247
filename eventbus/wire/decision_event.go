// Package wire hand-encodes the compact cross-process event envelope using
// google.golang.org/protobuf's low-level protowire primitives directly,
// rather than protoc-generated bindings: the payload is small and fixed
// enough that generated code would add a build step for no real benefit.
package wire

import (
	"fmt"
	"math"

	"google.golang.org/protobuf/encoding/protowire"
)

// DecisionEvent is the wire envelope published for one symbol's decision
// outcome.
type DecisionEvent struct {
	Symbol              string  `json:"symbol"`
	Action              string  `json:"action"`
	Confidence          float64 `json:"confidence"`
	GeneratedAtUnixNano int64   `json:"generated_at_unix_nano"`
}

const (
	fieldSymbol     = protowire.Number(1)
	fieldAction     = protowire.Number(2)
	fieldConfidence = protowire.Number(3)
	fieldGeneratedAt = protowire.Number(4)
)

// Marshal encodes the event using protobuf's wire format.
func (e DecisionEvent) Marshal() []byte {
	var b []byte
	b = protowire.AppendTag(b, fieldSymbol, protowire.BytesType)
	b = protowire.AppendString(b, e.Symbol)
	b = protowire.AppendTag(b, fieldAction, protowire.BytesType)
	b = protowire.AppendString(b, e.Action)
	b = protowire.AppendTag(b, fieldConfidence, protowire.Fixed64Type)
	b = protowire.AppendFixed64(b, math.Float64bits(e.Confidence))
	b = protowire.AppendTag(b, fieldGeneratedAt, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(e.GeneratedAtUnixNano))
	return b
}

// UnmarshalDecisionEvent decodes bytes produced by Marshal.
func UnmarshalDecisionEvent(b []byte) (DecisionEvent, error) {
	var evt DecisionEvent
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return DecisionEvent{}, fmt.Errorf("decode tag: %w", protowire.ParseError(n))
		}
		b = b[n:]

		switch num {
		case fieldSymbol:
			v, n := protowire.ConsumeString(b)
			if n < 0 {
				return DecisionEvent{}, fmt.Errorf("decode symbol: %w", protowire.ParseError(n))
			}
			evt.Symbol = v
			b = b[n:]
		case fieldAction:
			v, n := protowire.ConsumeString(b)
			if n < 0 {
				return DecisionEvent{}, fmt.Errorf("decode action: %w", protowire.ParseError(n))
			}
			evt.Action = v
			b = b[n:]
		case fieldConfidence:
			v, n := protowire.ConsumeFixed64(b)
			if n < 0 {
				return DecisionEvent{}, fmt.Errorf("decode confidence: %w", protowire.ParseError(n))
			}
			evt.Confidence = math.Float64frombits(v)
			b = b[n:]
		case fieldGeneratedAt:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return DecisionEvent{}, fmt.Errorf("decode generated_at: %w", protowire.ParseError(n))
			}
			evt.GeneratedAtUnixNano = int64(v)
			b = b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return DecisionEvent{}, fmt.Errorf("skip unknown field %d: %w", num, protowire.ParseError(n))
			}
			b = b[n:]
		}
	}
	return evt, nil
}
