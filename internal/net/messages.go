package net

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"depthbook/internal/feed"
)

var (
	ErrInvalidMessageType = errors.New("invalid message type")
	ErrMessageTooShort    = errors.New("message too short")
	ErrFieldTooLong       = errors.New("field too long for wire format")
)

type MessageType uint16

const (
	Heartbeat MessageType = iota
	QueryDepth
)

func (m MessageType) String() string {
	switch m {
	case Heartbeat:
		return "heartbeat"
	case QueryDepth:
		return "query_depth"
	default:
		return fmt.Sprintf("MessageType(%d)", int(m))
	}
}

type ReportMessageType uint8

const (
	HeartbeatReport ReportMessageType = iota
	DepthReport
	ErrorReport
)

type Status uint8

const (
	StatusOK Status = iota
	StatusNotFound
	StatusNotSynced
	StatusBadRequest
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusNotFound:
		return "not found"
	case StatusNotSynced:
		return "not synced"
	case StatusBadRequest:
		return "bad request"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// Message format constants
const (
	BaseMessageHeaderLen       = 2
	QueryDepthMessageHeaderLen = 2 + 1
	MaxSymbolLen               = 255
)

// Request is a client message.
type Request struct {
	Type   MessageType // 2 bytes
	Depth  uint16      // 2 bytes, QueryDepth only; 0 asks for every level
	Symbol string      // 1 byte length + n bytes, QueryDepth only
}

// Serialize converts the request to be sent on the wire.
func (r Request) Serialize() ([]byte, error) {
	if r.Type != QueryDepth {
		buf := make([]byte, BaseMessageHeaderLen)
		binary.BigEndian.PutUint16(buf, uint16(r.Type))
		return buf, nil
	}
	if len(r.Symbol) > MaxSymbolLen {
		return nil, fmt.Errorf("%w: symbol %q", ErrFieldTooLong, r.Symbol)
	}

	buf := make([]byte, BaseMessageHeaderLen+QueryDepthMessageHeaderLen+len(r.Symbol))
	binary.BigEndian.PutUint16(buf[0:2], uint16(r.Type))
	binary.BigEndian.PutUint16(buf[2:4], r.Depth)
	buf[4] = uint8(len(r.Symbol))
	copy(buf[5:], r.Symbol)
	return buf, nil
}

// ReadRequest reads exactly one request off r.
func ReadRequest(r io.Reader) (Request, error) {
	header := make([]byte, BaseMessageHeaderLen)
	if _, err := io.ReadFull(r, header); err != nil {
		return Request{}, err
	}

	req := Request{Type: MessageType(binary.BigEndian.Uint16(header))}
	switch req.Type {
	case Heartbeat:
		return req, nil
	case QueryDepth:
	default:
		return req, fmt.Errorf("%w: %d", ErrInvalidMessageType, req.Type)
	}

	body := make([]byte, QueryDepthMessageHeaderLen)
	if _, err := io.ReadFull(r, body); err != nil {
		return req, truncated(err)
	}
	req.Depth = binary.BigEndian.Uint16(body[0:2])

	symbol := make([]byte, body[2])
	if _, err := io.ReadFull(r, symbol); err != nil {
		return req, truncated(err)
	}
	req.Symbol = string(symbol)
	return req, nil
}

// Row is one price level as decimal strings.
type Row struct {
	Price    string
	Quantity string
}

func rows(levels []feed.Level) []Row {
	out := make([]Row, len(levels))
	for i, level := range levels {
		out[i] = Row{Price: level.Price.String(), Quantity: level.Quantity.String()}
	}
	return out
}

// Report is a server response. Bids and Asks are best first.
type Report struct {
	MessageType ReportMessageType // 1 byte
	Status      Status            // 1 byte
	UpdateID    uint64            // 8 bytes
	BidCount    uint16            // 2 bytes
	AskCount    uint16            // 2 bytes
	ErrStrLen   uint16            // 2 bytes
	Err         string            // n bytes
	Bids        []Row             // each: 1 byte length + price, 1 byte length + quantity
	Asks        []Row
}

const reportFixedHeaderLen = 1 + 1 + 8 + 2 + 2 + 2

func depthReport(b *feed.Book, depth int) Report {
	bids := rows(b.Bids().Top(depth))
	asks := rows(b.Asks().Top(depth))
	return Report{
		MessageType: DepthReport,
		Status:      StatusOK,
		UpdateID:    b.UpdateID(),
		BidCount:    uint16(len(bids)),
		AskCount:    uint16(len(asks)),
		Bids:        bids,
		Asks:        asks,
	}
}

func statusReport(typeOf ReportMessageType, status Status, err error) Report {
	r := Report{MessageType: typeOf, Status: status}
	if err != nil {
		r.Err = err.Error()
		if len(r.Err) > 0xffff {
			r.Err = r.Err[:0xffff]
		}
		r.ErrStrLen = uint16(len(r.Err))
	}
	return r
}

// Serialize converts the report to be sent on the wire.
func (r *Report) Serialize() ([]byte, error) {
	if len(r.Bids) > 0xffff || len(r.Asks) > 0xffff {
		return nil, fmt.Errorf("%w: %d bids, %d asks", ErrFieldTooLong, len(r.Bids), len(r.Asks))
	}
	if len(r.Err) > 0xffff {
		return nil, fmt.Errorf("%w: error string", ErrFieldTooLong)
	}

	totalSize := reportFixedHeaderLen + len(r.Err)
	for _, side := range [][]Row{r.Bids, r.Asks} {
		for _, row := range side {
			if len(row.Price) > 0xff || len(row.Quantity) > 0xff {
				return nil, fmt.Errorf("%w: level %s@%s", ErrFieldTooLong, row.Quantity, row.Price)
			}
			totalSize += 2 + len(row.Price) + len(row.Quantity)
		}
	}

	buf := make([]byte, totalSize)
	buf[0] = byte(r.MessageType)
	buf[1] = byte(r.Status)
	binary.BigEndian.PutUint64(buf[2:10], r.UpdateID)
	binary.BigEndian.PutUint16(buf[10:12], uint16(len(r.Bids)))
	binary.BigEndian.PutUint16(buf[12:14], uint16(len(r.Asks)))
	binary.BigEndian.PutUint16(buf[14:16], uint16(len(r.Err)))

	offset := reportFixedHeaderLen
	offset += copy(buf[offset:], r.Err)
	for _, side := range [][]Row{r.Bids, r.Asks} {
		for _, row := range side {
			offset = putString(buf, offset, row.Price)
			offset = putString(buf, offset, row.Quantity)
		}
	}
	return buf, nil
}

func putString(buf []byte, offset int, s string) int {
	buf[offset] = uint8(len(s))
	offset++
	return offset + copy(buf[offset:], s)
}

// ReadReport reads exactly one report off r.
func ReadReport(r io.Reader) (Report, error) {
	header := make([]byte, reportFixedHeaderLen)
	if _, err := io.ReadFull(r, header); err != nil {
		return Report{}, err
	}

	report := Report{
		MessageType: ReportMessageType(header[0]),
		Status:      Status(header[1]),
		UpdateID:    binary.BigEndian.Uint64(header[2:10]),
		BidCount:    binary.BigEndian.Uint16(header[10:12]),
		AskCount:    binary.BigEndian.Uint16(header[12:14]),
		ErrStrLen:   binary.BigEndian.Uint16(header[14:16]),
	}

	if report.ErrStrLen > 0 {
		errStr := make([]byte, report.ErrStrLen)
		if _, err := io.ReadFull(r, errStr); err != nil {
			return report, truncated(err)
		}
		report.Err = string(errStr)
	}

	var err error
	if report.Bids, err = readRows(r, int(report.BidCount)); err != nil {
		return report, err
	}
	if report.Asks, err = readRows(r, int(report.AskCount)); err != nil {
		return report, err
	}
	return report, nil
}

func readRows(r io.Reader, n int) ([]Row, error) {
	out := make([]Row, 0, n)
	for range n {
		price, err := readString(r)
		if err != nil {
			return out, err
		}
		quantity, err := readString(r)
		if err != nil {
			return out, err
		}
		out = append(out, Row{Price: price, Quantity: quantity})
	}
	return out, nil
}

func readString(r io.Reader) (string, error) {
	var length [1]byte
	if _, err := io.ReadFull(r, length[:]); err != nil {
		return "", truncated(err)
	}
	s := make([]byte, length[0])
	if _, err := io.ReadFull(r, s); err != nil {
		return "", truncated(err)
	}
	return string(s), nil
}

// truncated maps an EOF inside a message to ErrMessageTooShort.
func truncated(err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return fmt.Errorf("%w: %w", ErrMessageTooShort, err)
	}
	return err
}
