package room

import (
	"fmt"
	"strconv"
	"strings"
)

// General is the app-wide chat room every client joins by default.
const General = "general"

// PrivatePrefix marks deterministic pairwise rooms for 1:1 chat.
const PrivatePrefix = "private_"

// PairRoom returns the deterministic room name for a 1:1 chat between two
// users: "private_<min>_<max>". Both participants compute the same name
// regardless of who initiated the conversation. IDs that parse as integers
// are ordered numerically, anything else lexicographically, so numeric user
// IDs sort the way the mobile clients expect ("9" before "12").
func PairRoom(a, b string) string {
	lo, hi := a, b
	na, errA := strconv.ParseInt(a, 10, 64)
	nb, errB := strconv.ParseInt(b, 10, 64)
	switch {
	case errA == nil && errB == nil:
		if nb < na {
			lo, hi = b, a
		}
	default:
		if b < a {
			lo, hi = b, a
		}
	}
	return fmt.Sprintf("%s%s_%s", PrivatePrefix, lo, hi)
}

// IsPrivate reports whether the room name denotes a pairwise 1:1 room.
func IsPrivate(name string) bool {
	return strings.HasPrefix(name, PrivatePrefix)
}
