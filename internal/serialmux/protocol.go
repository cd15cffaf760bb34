package serialmux

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/banshee-data/lanekeep/internal/lane/l5state"
	"github.com/banshee-data/lanekeep/internal/lane/l6geometry"
	"github.com/banshee-data/lanekeep/internal/lane/pipeline"
)

// Host to display commands.
const (
	CommandGuidance = "G"
	CommandReset    = "R"
	CommandClock    = "C"
	CommandStatus   = "S"
)

// Hint codes carried in the last guidance field.
const (
	HintCodeNone     = ""
	HintCodeStraight = "S"
	HintCodeLeft     = "L"
	HintCodeRight    = "R"
)

// FormatGuidance renders a frame result as the display's guidance line:
//
//	G,<state>,<give way 0|1>,<turning percentage>,<hint code>
//
// The percentage field is empty unless the vehicle is within lanes.
func FormatGuidance(res pipeline.Result) string {
	giveWay := "0"
	if res.GiveWay {
		giveWay = "1"
	}
	pct := ""
	if res.Turning != nil {
		pct = strconv.Itoa(res.Turning.Percentage)
	}
	return strings.Join([]string{
		CommandGuidance,
		strconv.Itoa(int(res.State)),
		giveWay,
		pct,
		hintCode(res.Hint),
	}, ",")
}

func hintCode(hint string) string {
	switch hint {
	case l6geometry.HintTurningLeft:
		return HintCodeLeft
	case l6geometry.HintTurningRight:
		return HintCodeRight
	case l6geometry.HintNotTurning:
		return HintCodeStraight
	default:
		return HintCodeNone
	}
}

// Guidance is a parsed guidance line, used by the admin tail and tests.
type Guidance struct {
	State      l5state.DrivingState
	GiveWay    bool
	Percentage *int
	HintCode   string
}

// ParseGuidance is the inverse of FormatGuidance.
func ParseGuidance(line string) (Guidance, error) {
	fields := strings.Split(strings.TrimSpace(line), ",")
	if len(fields) != 5 || fields[0] != CommandGuidance {
		return Guidance{}, fmt.Errorf("not a guidance line: %q", line)
	}
	state, err := strconv.Atoi(fields[1])
	if err != nil || state < int(l5state.WithinLanes) || state > int(l5state.NoMarkings) {
		return Guidance{}, fmt.Errorf("invalid state field %q", fields[1])
	}
	g := Guidance{State: l5state.DrivingState(state)}
	switch fields[2] {
	case "0":
	case "1":
		g.GiveWay = true
	default:
		return Guidance{}, fmt.Errorf("invalid give-way field %q", fields[2])
	}
	if fields[3] != "" {
		pct, err := strconv.Atoi(fields[3])
		if err != nil {
			return Guidance{}, fmt.Errorf("invalid percentage field %q: %w", fields[3], err)
		}
		g.Percentage = &pct
	}
	switch fields[4] {
	case HintCodeNone, HintCodeStraight, HintCodeLeft, HintCodeRight:
		g.HintCode = fields[4]
	default:
		return Guidance{}, fmt.Errorf("invalid hint field %q", fields[4])
	}
	return g, nil
}

// ReplyKind classifies a line sent back by the display.
type ReplyKind int

const (
	ReplyUnknown ReplyKind = iota
	ReplyAck
	ReplyError
	ReplyStatus
)

func (k ReplyKind) String() string {
	switch k {
	case ReplyAck:
		return "ack"
	case ReplyError:
		return "error"
	case ReplyStatus:
		return "status"
	default:
		return "unknown"
	}
}

// StatusReport is the JSON object the display sends in answer to S.
type StatusReport struct {
	Firmware   string `json:"firmware"`
	Brightness int    `json:"brightness"`
	Lines      int64  `json:"lines"`
	Errors     int64  `json:"errors"`
}

// Reply is one parsed display line.
type Reply struct {
	Kind    ReplyKind
	Message string
	Status  *StatusReport
}

// ParseReply classifies a display line. Acks are "OK", errors are
// "ERR <message>", and status reports are JSON objects.
func ParseReply(line string) (Reply, error) {
	line = strings.TrimSpace(line)
	switch {
	case line == "OK":
		return Reply{Kind: ReplyAck}, nil
	case line == "ERR" || strings.HasPrefix(line, "ERR "):
		return Reply{Kind: ReplyError, Message: strings.TrimSpace(strings.TrimPrefix(line, "ERR"))}, nil
	case strings.HasPrefix(line, "{"):
		var status StatusReport
		if err := json.Unmarshal([]byte(line), &status); err != nil {
			return Reply{Kind: ReplyUnknown, Message: line}, fmt.Errorf("parse status report: %w", err)
		}
		return Reply{Kind: ReplyStatus, Status: &status}, nil
	default:
		return Reply{Kind: ReplyUnknown, Message: line}, nil
	}
}
