package protocol

import (
	"fmt"
	"io"
	"time"
)

// TimeLayout is used for message timestamps in logs and dumps.
const TimeLayout = "15:04:05.000"

// Describe writes a human-readable dump of m: protocol, sender, time,
// timeout and every entry for an Update; the reason for an Unreadable.
func Describe(w io.Writer, m Message) error {
	switch m := m.(type) {
	case *Update:
		if _, err := fmt.Fprintf(w, "Last UDP Message from %s at %s\nProtocol: %s\n",
			sourceOrUnknown(m.From), m.At.Format(TimeLayout), m.Kind); err != nil {
			return err
		}
		if m.HasTimeout {
			if _, err := fmt.Fprintf(w, "Timeout: %s\n", m.Timeout); err != nil {
				return err
			}
		}
		for _, e := range m.Entries {
			if _, err := fmt.Fprintf(w, "Update LED @Index %d: %s\n", e.Index, e.Color); err != nil {
				return err
			}
		}
		return nil
	case *Unreadable:
		_, err := fmt.Fprintf(w, "Unreadable UDP Message from %s at %s: %s (%d bytes)\n",
			sourceOrUnknown(m.From), m.At.Format(TimeLayout), m.Reason, len(m.Raw))
		return err
	case nil:
		_, err := io.WriteString(w, "UDP MESSAGES? nothing received yet.\n")
		return err
	default:
		panic(fmt.Sprintf("protocol: unexpected message type %T", m))
	}
}

// Summary is the one-line form used in logs.
func Summary(m Message) string {
	switch m := m.(type) {
	case *Update:
		s := fmt.Sprintf("%s from %s: %d entries", m.Kind, sourceOrUnknown(m.From), len(m.Entries))
		if m.HasTimeout {
			s += fmt.Sprintf(", timeout %s", m.Timeout)
		}
		return s
	case *Unreadable:
		return fmt.Sprintf("unreadable from %s: %s", sourceOrUnknown(m.From), m.Reason)
	default:
		return "no message"
	}
}

func sourceOrUnknown(s string) string {
	if s == "" {
		return "unknown sender"
	}
	return s
}

// FormatTime formats a message timestamp the way log lines do.
func FormatTime(t time.Time) string {
	return t.Format(TimeLayout)
}
