package feed

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

// Field numbers of depthbook.v1.DepthUpdate and depthbook.v1.PriceLevel, see
// proto/depthbook/v1/depth.proto.
const (
	fieldEventTime     protowire.Number = 1
	fieldFirstUpdateID protowire.Number = 2
	fieldLastUpdateID  protowire.Number = 3
	fieldBids          protowire.Number = 4
	fieldAsks          protowire.Number = 5
	fieldSymbol        protowire.Number = 6

	fieldPrice    protowire.Number = 1
	fieldQuantity protowire.Number = 2
)

// MarshalDepthUpdateProto encodes update as a depthbook.v1.DepthUpdate.
// Prices and quantities travel as decimal strings.
func MarshalDepthUpdateProto(update DepthUpdate, symbol string) []byte {
	var b []byte
	b = appendVarintField(b, fieldEventTime, update.EventTime)
	b = appendVarintField(b, fieldFirstUpdateID, update.FirstUpdateID)
	b = appendVarintField(b, fieldLastUpdateID, update.LastUpdateID)
	for _, level := range update.Bids {
		b = protowire.AppendTag(b, fieldBids, protowire.BytesType)
		b = protowire.AppendBytes(b, marshalLevel(level))
	}
	for _, level := range update.Asks {
		b = protowire.AppendTag(b, fieldAsks, protowire.BytesType)
		b = protowire.AppendBytes(b, marshalLevel(level))
	}
	if symbol != "" {
		b = protowire.AppendTag(b, fieldSymbol, protowire.BytesType)
		b = protowire.AppendString(b, symbol)
	}
	return b
}

func appendVarintField(b []byte, num protowire.Number, v uint64) []byte {
	if v == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

func marshalLevel(level Level) []byte {
	var b []byte
	b = protowire.AppendTag(b, fieldPrice, protowire.BytesType)
	b = protowire.AppendString(b, level.Price.String())
	b = protowire.AppendTag(b, fieldQuantity, protowire.BytesType)
	b = protowire.AppendString(b, level.Quantity.String())
	return b
}

// UnmarshalDepthUpdateProto decodes a depthbook.v1.DepthUpdate. Unknown
// fields are skipped.
func UnmarshalDepthUpdateProto(data []byte) (DepthUpdate, Event, error) {
	var (
		update DepthUpdate
		event  = Event{Type: "depthUpdate"}
	)

	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return DepthUpdate{}, Event{}, protoError("tag", n)
		}
		data = data[n:]

		switch {
		case typ == protowire.VarintType && (num == fieldEventTime || num == fieldFirstUpdateID || num == fieldLastUpdateID):
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return DepthUpdate{}, Event{}, protoError("update id", n)
			}
			switch num {
			case fieldEventTime:
				update.EventTime = v
			case fieldFirstUpdateID:
				update.FirstUpdateID = v
			default:
				update.LastUpdateID = v
			}
			data = data[n:]

		case typ == protowire.BytesType && (num == fieldBids || num == fieldAsks):
			v, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return DepthUpdate{}, Event{}, protoError("level", n)
			}
			level, err := unmarshalLevel(v)
			if err != nil {
				return DepthUpdate{}, Event{}, err
			}
			if num == fieldBids {
				update.Bids = append(update.Bids, level)
			} else {
				update.Asks = append(update.Asks, level)
			}
			data = data[n:]

		case typ == protowire.BytesType && num == fieldSymbol:
			v, n := protowire.ConsumeString(data)
			if n < 0 {
				return DepthUpdate{}, Event{}, protoError("symbol", n)
			}
			event.Symbol = v
			data = data[n:]

		default:
			n := protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return DepthUpdate{}, Event{}, protoError("unknown field", n)
			}
			data = data[n:]
		}
	}

	if update.LastUpdateID < update.FirstUpdateID {
		return DepthUpdate{}, Event{}, fmt.Errorf("%w: last update id %d before first %d",
			ErrMalformed, update.LastUpdateID, update.FirstUpdateID)
	}
	return update, event, nil
}

func unmarshalLevel(data []byte) (Level, error) {
	var price, quantity string
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return Level{}, protoError("level tag", n)
		}
		data = data[n:]

		if typ == protowire.BytesType && (num == fieldPrice || num == fieldQuantity) {
			v, n := protowire.ConsumeString(data)
			if n < 0 {
				return Level{}, protoError("level value", n)
			}
			if num == fieldPrice {
				price = v
			} else {
				quantity = v
			}
			data = data[n:]
			continue
		}

		n = protowire.ConsumeFieldValue(num, typ, data)
		if n < 0 {
			return Level{}, protoError("level field", n)
		}
		data = data[n:]
	}

	// proto3 omits empty strings, so an absent quantity means zero.
	if quantity == "" {
		quantity = "0"
	}
	return ParseLevel(price, quantity)
}

func protoError(what string, n int) error {
	return fmt.Errorf("%w: protobuf %s: %w", ErrMalformed, what, protowire.ParseError(n))
}
