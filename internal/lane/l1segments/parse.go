package l1segments

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ErrMalformedPayload is returned (wrapped) for any payload that cannot be
// decoded into a Frame.
var ErrMalformedPayload = errors.New("malformed frame payload")

// wireFrame is the JSON form of a Frame. Lines and boxes travel as compact
// integer quadruples to keep datagrams small.
type wireFrame struct {
	Frame       uint64   `json:"frame"`
	TimestampNs int64    `json:"ts_ns,omitempty"`
	Lines       [][4]int `json:"lines"`
	Boxes       [][4]int `json:"boxes"`
}

// ParsePayload decodes one datagram into a Frame.
//
// Two encodings are accepted. Payloads starting with '{' are JSON:
//
//	{"frame":12,"ts_ns":1700000000000000000,"lines":[[x1,y1,x2,y2]],"boxes":[[x,y,w,h]]}
//
// Anything else is the line-oriented text form:
//
//	F,12[,ts_ns]
//	L,x1,y1,x2,y2
//	B,x,y,w,h
func ParsePayload(payload []byte) (Frame, error) {
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 {
		return Frame{}, fmt.Errorf("%w: empty payload", ErrMalformedPayload)
	}
	if trimmed[0] == '{' {
		return parseJSON(trimmed)
	}
	return parseText(trimmed)
}

func parseJSON(payload []byte) (Frame, error) {
	var w wireFrame
	if err := json.Unmarshal(payload, &w); err != nil {
		return Frame{}, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	f := Frame{
		Number: w.Frame,
		Lines:  make([]LineSegment, 0, len(w.Lines)),
		Boxes:  make([]ExclusionBox, 0, len(w.Boxes)),
	}
	if w.TimestampNs != 0 {
		f.Timestamp = time.Unix(0, w.TimestampNs)
	}
	for _, l := range w.Lines {
		f.Lines = append(f.Lines, Seg(l[0], l[1], l[2], l[3]))
	}
	for _, b := range w.Boxes {
		if b[2] < 0 || b[3] < 0 {
			return Frame{}, fmt.Errorf("%w: negative box size %v", ErrMalformedPayload, b)
		}
		box := Box(b[0], b[1], b[2], b[3])
		if !box.Fits() {
			return Frame{}, fmt.Errorf("%w: box %v out of range", ErrMalformedPayload, b)
		}
		f.Boxes = append(f.Boxes, box)
	}
	return f, nil
}

func parseText(payload []byte) (Frame, error) {
	var f Frame
	sawHeader := false
	scan := bufio.NewScanner(bytes.NewReader(payload))
	lineNo := 0
	for scan.Scan() {
		lineNo++
		text := strings.TrimSpace(scan.Text())
		if text == "" {
			continue
		}
		fields := strings.Split(text, ",")
		switch fields[0] {
		case "F":
			if len(fields) != 2 && len(fields) != 3 {
				return Frame{}, fmt.Errorf("%w: line %d: header wants 1 or 2 fields, got %d", ErrMalformedPayload, lineNo, len(fields)-1)
			}
			n, err := strconv.ParseUint(fields[1], 10, 64)
			if err != nil {
				return Frame{}, fmt.Errorf("%w: line %d: frame number: %v", ErrMalformedPayload, lineNo, err)
			}
			f.Number = n
			if len(fields) == 3 {
				ts, err := strconv.ParseInt(fields[2], 10, 64)
				if err != nil {
					return Frame{}, fmt.Errorf("%w: line %d: timestamp: %v", ErrMalformedPayload, lineNo, err)
				}
				f.Timestamp = time.Unix(0, ts)
			}
			sawHeader = true
		case "L":
			v, err := parseQuad(fields)
			if err != nil {
				return Frame{}, fmt.Errorf("%w: line %d: %v", ErrMalformedPayload, lineNo, err)
			}
			f.Lines = append(f.Lines, Seg(v[0], v[1], v[2], v[3]))
		case "B":
			v, err := parseQuad(fields)
			if err != nil {
				return Frame{}, fmt.Errorf("%w: line %d: %v", ErrMalformedPayload, lineNo, err)
			}
			if v[2] < 0 || v[3] < 0 {
				return Frame{}, fmt.Errorf("%w: line %d: negative box size", ErrMalformedPayload, lineNo)
			}
			box := Box(v[0], v[1], v[2], v[3])
			if !box.Fits() {
				return Frame{}, fmt.Errorf("%w: line %d: box out of range", ErrMalformedPayload, lineNo)
			}
			f.Boxes = append(f.Boxes, box)
		default:
			return Frame{}, fmt.Errorf("%w: line %d: unknown record type %q", ErrMalformedPayload, lineNo, fields[0])
		}
	}
	if err := scan.Err(); err != nil {
		return Frame{}, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if !sawHeader {
		return Frame{}, fmt.Errorf("%w: missing F header", ErrMalformedPayload)
	}
	return f, nil
}

func parseQuad(fields []string) ([4]int, error) {
	var v [4]int
	if len(fields) != 5 {
		return v, fmt.Errorf("record %s wants 4 values, got %d", fields[0], len(fields)-1)
	}
	for i := 0; i < 4; i++ {
		n, err := strconv.Atoi(strings.TrimSpace(fields[i+1]))
		if err != nil {
			return v, fmt.Errorf("record %s value %d: %w", fields[0], i+1, err)
		}
		v[i] = n
	}
	return v, nil
}

// EncodeJSON encodes f in the JSON wire form accepted by ParsePayload.
func EncodeJSON(f Frame) ([]byte, error) {
	w := wireFrame{
		Frame: f.Number,
		Lines: make([][4]int, 0, len(f.Lines)),
		Boxes: make([][4]int, 0, len(f.Boxes)),
	}
	if !f.Timestamp.IsZero() {
		w.TimestampNs = f.Timestamp.UnixNano()
	}
	for _, l := range f.Lines {
		w.Lines = append(w.Lines, [4]int{l.X1, l.Y1, l.X2, l.Y2})
	}
	for _, b := range f.Boxes {
		w.Boxes = append(w.Boxes, [4]int{b.X, b.Y, b.Width, b.Height})
	}
	return json.Marshal(w)
}
