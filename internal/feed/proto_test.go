package feed

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protowire"
)

func TestDepthUpdateProto_RoundTrip(t *testing.T) {
	in := DepthUpdate{
		EventTime:     1700000000000,
		FirstUpdateID: 157,
		LastUpdateID:  160,
		Bids:          []Level{MustLevel("27826.89", "2.50099"), MustLevel("27826.1", "0")},
		Asks:          []Level{MustLevel("27826.9", "4.80586")},
	}

	out, event, err := UnmarshalDepthUpdateProto(MarshalDepthUpdateProto(in, "BTCUSDT"))
	require.NoError(t, err)

	assert.Equal(t, Event{Type: "depthUpdate", Symbol: "BTCUSDT"}, event)
	assert.Equal(t, in.EventTime, out.EventTime)
	assert.Equal(t, in.FirstUpdateID, out.FirstUpdateID)
	assert.Equal(t, in.LastUpdateID, out.LastUpdateID)
	require.Len(t, out.Bids, 2)
	require.Len(t, out.Asks, 1)
	assert.Equal(t, "(27826.89, 2.50099)", out.Bids[0].String())
	assert.True(t, out.Bids[1].Quantity.IsZero())
	assert.Equal(t, "(27826.9, 4.80586)", out.Asks[0].String())
}

func TestUnmarshalDepthUpdateProto_SkipsUnknownFields(t *testing.T) {
	var b []byte
	b = protowire.AppendTag(b, 99, protowire.BytesType)
	b = protowire.AppendString(b, "ignored")
	b = protowire.AppendTag(b, fieldFirstUpdateID, protowire.VarintType)
	b = protowire.AppendVarint(b, 7)
	b = protowire.AppendTag(b, fieldLastUpdateID, protowire.VarintType)
	b = protowire.AppendVarint(b, 8)

	update, _, err := UnmarshalDepthUpdateProto(b)
	require.NoError(t, err)
	assert.Equal(t, uint64(7), update.FirstUpdateID)
	assert.Equal(t, uint64(8), update.LastUpdateID)
}

func TestUnmarshalDepthUpdateProto_Malformed(t *testing.T) {
	valid := MarshalDepthUpdateProto(DepthUpdate{
		FirstUpdateID: 1,
		LastUpdateID:  2,
		Bids:          []Level{MustLevel("1", "1")},
	}, "")

	_, _, err := UnmarshalDepthUpdateProto(valid[:len(valid)-2])
	assert.ErrorIs(t, err, ErrMalformed, "truncated")

	var badPrice []byte
	badPrice = protowire.AppendTag(badPrice, fieldAsks, protowire.BytesType)
	level := protowire.AppendTag(nil, fieldPrice, protowire.BytesType)
	level = protowire.AppendString(level, "not-a-price")
	badPrice = protowire.AppendBytes(badPrice, level)

	_, _, err = UnmarshalDepthUpdateProto(badPrice)
	assert.ErrorIs(t, err, ErrMalformed, "bad price")
}
