package feed

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const snapshotJSON = `
{
    "lastUpdateId": 17866404615,
    "bids": [
        ["27826.89000000", "2.50099000"],
        ["27826.10000000", "0.69556000"]
    ],
    "asks": [
        ["27826.90000000", "4.80586000"],
        ["27826.91000000", "0.26959000"]
    ]
}`

const depthUpdateJSON = `
{
    "e": "depthUpdate",
    "E": 123456789,
    "s": "BNBBTC",
    "U": 157,
    "u": 160,
    "b": [
        ["27826.89000000", "2.50099000"],
        ["27826.10000000", "0.69556000"]
    ],
    "a": [
        ["27826.90000000", "4.80586000"],
        ["27826.91000000", "0.26959000"]
    ]
}`

func TestDecodeSnapshot(t *testing.T) {
	snapshot, err := DecodeSnapshot([]byte(snapshotJSON))
	require.NoError(t, err)

	b := FromSnapshot(snapshot)

	assert.Equal(t, uint64(17866404615), b.UpdateID())
	assert.Equal(t, "[(27826.1, 0.69556), (27826.89, 2.50099)]", b.Bids().String())
	assert.Equal(t, "[(27826.91, 0.26959), (27826.9, 4.80586)]", b.Asks().String())
}

func TestDecodeDepthUpdate(t *testing.T) {
	update, event, err := DecodeDepthUpdate([]byte(depthUpdateJSON))
	require.NoError(t, err)

	assert.Equal(t, Event{Type: "depthUpdate", Symbol: "BNBBTC"}, event)
	assert.Equal(t, uint64(123456789), update.EventTime)
	assert.Equal(t, uint64(157), update.FirstUpdateID)
	assert.Equal(t, uint64(160), update.LastUpdateID)
	require.Len(t, update.Bids, 2)
	require.Len(t, update.Asks, 2)

	// Rows stay in feed order; sorting is the ladder's job.
	assert.Equal(t, "(27826.89, 2.50099)", update.Bids[0].String())
	assert.Equal(t, "(27826.91, 0.26959)", update.Asks[1].String())
}

func TestDecodeDepthUpdate_LongFieldNames(t *testing.T) {
	data := `{"first_update_id": 3, "last_update_id": 4, "timestamp": 9,
		"bids": [[100.5, 1]], "asks": []}`

	update, event, err := DecodeDepthUpdate([]byte(data))
	require.NoError(t, err)

	assert.Equal(t, Event{}, event)
	assert.Equal(t, uint64(3), update.FirstUpdateID)
	assert.Equal(t, uint64(4), update.LastUpdateID)
	assert.Equal(t, uint64(9), update.EventTime)
	require.Len(t, update.Bids, 1)
	assert.Equal(t, "(100.5, 1)", update.Bids[0].String())
	assert.Empty(t, update.Asks)
}

func TestDecodeDepthUpdate_CombinedStreamEnvelope(t *testing.T) {
	data := `{"stream":"bnbbtc@depth","data":` + depthUpdateJSON + `}`

	update, event, err := DecodeDepthUpdate([]byte(data))
	require.NoError(t, err)
	assert.Equal(t, "BNBBTC", event.Symbol)
	assert.Equal(t, uint64(160), update.LastUpdateID)
}

func TestDecodeDepthUpdate_Malformed(t *testing.T) {
	tests := map[string]string{
		"not json":        `{"U":`,
		"not an object":   `[1, 2]`,
		"missing first":   `{"u": 4}`,
		"missing last":    `{"U": 4}`,
		"bad id":          `{"U": "x", "u": 4}`,
		"ids reversed":    `{"U": 5, "u": 4}`,
		"bad price":       `{"U": 1, "u": 1, "b": [["abc", "1"]]}`,
		"short row":       `{"U": 1, "u": 1, "a": [["1"]]}`,
		"subscription ok": `{"result": null, "id": 1}`,
		"numeric symbol":  `{"U": 1, "u": 1, "s": 42}`,
		"numeric type":    `{"U": 1, "u": 1, "e": 7}`,
	}
	for name, data := range tests {
		t.Run(name, func(t *testing.T) {
			_, _, err := DecodeDepthUpdate([]byte(data))
			assert.ErrorIs(t, err, ErrMalformed)
		})
	}
}

func TestDecodeSnapshot_MissingID(t *testing.T) {
	_, err := DecodeSnapshot([]byte(`{"bids": [], "asks": []}`))
	assert.ErrorIs(t, err, ErrMalformed)
	assert.ErrorIs(t, err, ErrMissingField)
}

func TestParseLevel(t *testing.T) {
	level, err := ParseLevel("1.50", "2")
	require.NoError(t, err)
	assert.Equal(t, "(1.5, 2)", level.String())

	_, err = ParseLevel("1", "two")
	assert.ErrorIs(t, err, ErrMalformed)

	assert.Panics(t, func() { MustLevel("x", "1") })
}
