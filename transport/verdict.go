package transport

import "fmt"

// Verdict tells the raw socket layer what happened to an inbound datagram.
//
// The tri-state contract mirrors a kernel encapsulation hook: zero means the
// datagram was fully consumed (delivered into the tunnel or dropped), a
// positive value means it must be delivered to the normal UDP consumer
// untouched, and a negative value -N means it must be resubmitted as
// protocol N.
type Verdict int

const (
	// VerdictConsumed means the datagram was delivered or dropped by the tunnel.
	VerdictConsumed Verdict = 0
	// VerdictDeliver means the datagram is not tunnel traffic and must be
	// handed to the normal UDP consumer with the buffer unmodified.
	VerdictDeliver Verdict = 1
)

// VerdictResubmit requests resubmission of the datagram as the given
// transport protocol number.
func VerdictResubmit(proto int) Verdict {
	return Verdict(-proto)
}

// Consumed reports whether the datagram was taken over by the tunnel.
func (v Verdict) Consumed() bool { return v == VerdictConsumed }

// ResubmitProto returns the protocol number a negative verdict requests,
// or zero for non-resubmit verdicts.
func (v Verdict) ResubmitProto() int {
	if v < 0 {
		return int(-v)
	}
	return 0
}

func (v Verdict) String() string {
	switch {
	case v == VerdictConsumed:
		return "consumed"
	case v > 0:
		return "deliver"
	default:
		return fmt.Sprintf("resubmit(%d)", -v)
	}
}
