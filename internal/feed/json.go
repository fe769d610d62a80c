package feed

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	ErrMalformed    = errors.New("malformed market data")
	ErrMissingField = errors.New("missing field")
)

// Field aliases, exchange short code first.
var (
	eventTimeKeys     = []string{"E", "event_time", "eventTime", "timestamp"}
	firstUpdateIDKeys = []string{"U", "first_update_id", "firstUpdateId"}
	lastUpdateIDKeys  = []string{"u", "last_update_id", "lastUpdateId"}
	bidKeys           = []string{"b", "bids"}
	askKeys           = []string{"a", "asks"}
	snapshotIDKeys    = []string{"lastUpdateId", "last_update_id", "update_id", "updateId"}
)

// DecodeDepthUpdate decodes a JSON depth update such as
//
//	{"e":"depthUpdate","E":123456789,"s":"BNBBTC","U":157,"u":160,
//	 "b":[["27826.89","2.5"]],"a":[["27826.90","4.8"]]}
//
// Long field names (first_update_id, bids, ...) are accepted too, and a
// combined-stream envelope {"stream":...,"data":{...}} is unwrapped. Rows
// are [price, quantity] pairs given as strings or numbers.
func DecodeDepthUpdate(data []byte) (DepthUpdate, Event, error) {
	fields, err := decodeObject(data)
	if err != nil {
		return DepthUpdate{}, Event{}, err
	}
	if inner, ok := fields["data"]; ok && !has(fields, firstUpdateIDKeys) {
		if fields, err = decodeObject(inner); err != nil {
			return DepthUpdate{}, Event{}, err
		}
	}

	var (
		update DepthUpdate
		event  Event
	)
	if err := decodeID(fields, firstUpdateIDKeys, &update.FirstUpdateID); err != nil {
		return DepthUpdate{}, Event{}, err
	}
	if err := decodeID(fields, lastUpdateIDKeys, &update.LastUpdateID); err != nil {
		return DepthUpdate{}, Event{}, err
	}
	if update.LastUpdateID < update.FirstUpdateID {
		return DepthUpdate{}, Event{}, fmt.Errorf("%w: last update id %d before first %d",
			ErrMalformed, update.LastUpdateID, update.FirstUpdateID)
	}
	if raw, ok := pick(fields, eventTimeKeys); ok {
		if err := json.Unmarshal(raw, &update.EventTime); err != nil {
			return DepthUpdate{}, Event{}, fmt.Errorf("%w: event time: %w", ErrMalformed, err)
		}
	}
	if update.Bids, err = decodeRows(fields, bidKeys); err != nil {
		return DepthUpdate{}, Event{}, err
	}
	if update.Asks, err = decodeRows(fields, askKeys); err != nil {
		return DepthUpdate{}, Event{}, err
	}

	if err := decodeString(fields, "e", &event.Type); err != nil {
		return DepthUpdate{}, Event{}, err
	}
	if err := decodeString(fields, "s", &event.Symbol); err != nil {
		return DepthUpdate{}, Event{}, err
	}
	return update, event, nil
}

// DecodeSnapshot decodes a JSON depth snapshot such as
//
//	{"lastUpdateId":17866404615,"bids":[["27826.89","2.5"]],"asks":[...]}
func DecodeSnapshot(data []byte) (Snapshot, error) {
	fields, err := decodeObject(data)
	if err != nil {
		return Snapshot{}, err
	}

	var snapshot Snapshot
	if err := decodeID(fields, snapshotIDKeys, &snapshot.LastUpdateID); err != nil {
		return Snapshot{}, err
	}
	if snapshot.Bids, err = decodeRows(fields, bidKeys); err != nil {
		return Snapshot{}, err
	}
	if snapshot.Asks, err = decodeRows(fields, askKeys); err != nil {
		return Snapshot{}, err
	}
	return snapshot, nil
}

func decodeObject(data []byte) (map[string]json.RawMessage, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	if fields == nil {
		return nil, fmt.Errorf("%w: not an object", ErrMalformed)
	}
	return fields, nil
}

// pick returns the first key present. Keys are matched exactly so that "U"
// and "u" stay distinct.
func pick(fields map[string]json.RawMessage, keys []string) (json.RawMessage, bool) {
	for _, key := range keys {
		if raw, ok := fields[key]; ok {
			return raw, true
		}
	}
	return nil, false
}

func has(fields map[string]json.RawMessage, keys []string) bool {
	_, ok := pick(fields, keys)
	return ok
}

func decodeID(fields map[string]json.RawMessage, keys []string, out *uint64) error {
	raw, ok := pick(fields, keys)
	if !ok {
		return fmt.Errorf("%w: %w %q", ErrMalformed, ErrMissingField, keys[0])
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrMalformed, keys[0], err)
	}
	return nil
}

func decodeString(fields map[string]json.RawMessage, key string, out *string) error {
	raw, ok := fields[key]
	if !ok {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrMalformed, key, err)
	}
	return nil
}

// decodeRows decodes [[price, quantity], ...]. A missing key is an empty
// side, not an error.
func decodeRows(fields map[string]json.RawMessage, keys []string) ([]Level, error) {
	raw, ok := pick(fields, keys)
	if !ok {
		return nil, nil
	}

	var rows [][]decimal.Decimal
	if err := json.Unmarshal(raw, &rows); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrMalformed, keys[len(keys)-1], err)
	}

	levels := make([]Level, 0, len(rows))
	for i, row := range rows {
		if len(row) < 2 {
			return nil, fmt.Errorf("%w: %s row %d has %d columns", ErrMalformed, keys[len(keys)-1], i, len(row))
		}
		levels = append(levels, Level{Price: row[0], Quantity: row[1]})
	}
	return levels, nil
}
