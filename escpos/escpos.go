// Package escpos implements the subset of ESC/POS control sequences the receipt
// printer needs. Every sequence lives in a single table keyed by a symbolic Op.
package escpos

import (
	"bytes"
	"strings"
)

// Control characters
const (
	ESC = 0x1B
	GS  = 0x1D
	LF  = 0x0A
)

// Op is a symbolic printer operation.
type Op int

const (
	OpInit Op = iota
	OpAlignLeft
	OpAlignCenter
	OpAlignRight
	OpBoldOn
	OpBoldOff
	OpSizeNormal
	OpSizeDouble
	OpCut
	OpLineFeed
)

var opNames = [...]string{
	OpInit:        "init",
	OpAlignLeft:   "align-left",
	OpAlignCenter: "align-center",
	OpAlignRight:  "align-right",
	OpBoldOn:      "bold-on",
	OpBoldOff:     "bold-off",
	OpSizeNormal:  "size-normal",
	OpSizeDouble:  "size-double",
	OpCut:         "cut",
	OpLineFeed:    "line-feed",
}

func (o Op) String() string {
	if o < 0 || int(o) >= len(opNames) {
		return "unknown"
	}
	return opNames[o]
}

// commands is the whole control-code set.
var commands = map[Op][]byte{
	OpInit:        {ESC, '@'},
	OpAlignLeft:   {ESC, 'a', 0x00},
	OpAlignCenter: {ESC, 'a', 0x01},
	OpAlignRight:  {ESC, 'a', 0x02},
	OpBoldOn:      {ESC, 'E', 0x01},
	OpBoldOff:     {ESC, 'E', 0x00},
	OpSizeNormal:  {ESC, '!', 0x00},
	OpSizeDouble:  {ESC, '!', 0x10},
	OpCut:         {GS, 'V', 0x00},
	OpLineFeed:    {LF},
}

// Bytes returns a copy of the byte sequence for op, or nil if op is unknown.
func Bytes(op Op) []byte {
	seq, ok := commands[op]
	if !ok {
		return nil
	}
	return bytes.Clone(seq)
}

// Encode concatenates the sequences of ops in order.
func Encode(ops ...Op) []byte {
	var buf bytes.Buffer
	for _, op := range ops {
		buf.Write(commands[op])
	}
	return buf.Bytes()
}

// stripOrder lists the table ops matched by StripControl, longest
// sequences first. Line feeds are kept.
var stripOrder = []Op{
	OpAlignLeft, OpAlignCenter, OpAlignRight,
	OpBoldOn, OpBoldOff,
	OpSizeNormal, OpSizeDouble,
	OpCut,
	OpInit,
}

// paramLen gives the parameter byte count of ESC and GS commands that are
// not in the table. GS V takes one more byte in its feed-and-cut forms.
var paramLen = map[byte]map[byte]int{
	ESC: {
		'!': 1, '-': 1, '2': 0, '3': 1, 'E': 1, 'G': 1, 'J': 1, 'M': 1,
		'R': 1, 'V': 1, 'a': 1, 'd': 1, 'p': 3, 'r': 1, 't': 1, '{': 1,
	},
	GS: {
		'!': 1, 'B': 1, 'H': 1, 'L': 2, 'V': 1, 'W': 2, 'f': 1, 'h': 1, 'w': 1,
	},
}

// StripControl removes control sequences from payload and returns the
// printable text that remains. Line feeds survive, any other C0 byte is
// dropped.
func StripControl(payload []byte) string {
	var out bytes.Buffer
	for i := 0; i < len(payload); {
		if n := controlLen(payload[i:]); n > 0 {
			i += n
			continue
		}
		c := payload[i]
		if c == LF || (c >= 0x20 && c != 0x7F) {
			out.WriteByte(c)
		}
		i++
	}
	return strings.TrimRight(out.String(), "\n")
}

// controlLen returns the length of the control sequence at the start of b,
// or 0 when b does not start with ESC or GS.
func controlLen(b []byte) int {
	for _, op := range stripOrder {
		if seq := commands[op]; bytes.HasPrefix(b, seq) {
			return len(seq)
		}
	}
	if b[0] != ESC && b[0] != GS {
		return 0
	}
	if len(b) < 2 {
		return 1
	}
	n, ok := paramLen[b[0]][b[1]]
	if !ok {
		return 2
	}
	if b[0] == GS && b[1] == 'V' && len(b) > 2 && b[2] >= 0x41 {
		n++
	}
	return min(2+n, len(b))
}
