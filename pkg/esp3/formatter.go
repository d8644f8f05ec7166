// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 The Esper Authors

package esp3

import (
	"fmt"
	"strings"
)

// FormatTelegram renders a telegram in human-readable form for the
// monitor command, one line of envelope plus indented detail lines.
func FormatTelegram(t *Telegram) string {
	timestamp := t.Timestamp().Format("15:04:05.000")

	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s (0x%02X) len=%d opt=%d\n",
		timestamp, t.Type, byte(t.Type), len(t.Data), len(t.Optional))

	switch {
	case t.IsRadio():
		fmt.Fprintf(&b, "  %s from %s", t.RORG(), t.Sender())
		if t.Repeated() {
			fmt.Fprintf(&b, " (repeated %dx)", t.RepeaterCount())
		}
		b.WriteByte('\n')
		fmt.Fprintf(&b, "  Payload: %s  Status: 0x%02X\n", hexDump(t.Payload()), t.Status())
	case t.Type == PacketResponse:
		fmt.Fprintf(&b, "  Return: %s", formatReturnCode(t.ReturnCode()))
		if len(t.Data) > 1 {
			fmt.Fprintf(&b, "  Data: %s", hexDump(t.Data[1:]))
		}
		b.WriteByte('\n')
	default:
		fmt.Fprintf(&b, "  Data: %s\n", hexDump(t.Data))
	}

	return b.String()
}

func formatReturnCode(code byte) string {
	switch code {
	case RetOK:
		return "OK"
	case RetError:
		return "ERROR"
	case RetNotSupported:
		return "NOT_SUPPORTED"
	default:
		return fmt.Sprintf("0x%02X", code)
	}
}

func hexDump(data []byte) string {
	if len(data) == 0 {
		return "(empty)"
	}
	parts := make([]string, len(data))
	for i, b := range data {
		parts[i] = fmt.Sprintf("%02X", b)
	}
	return strings.Join(parts, " ")
}
