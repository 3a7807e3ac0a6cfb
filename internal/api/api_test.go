package api

import (
	"testing"

	"github.com/yakin/dating-app/internal/room"
)

func TestIsParticipant(t *testing.T) {
	tests := []struct {
		name     string
		roomName string
		userID   string
		want     bool
	}{
		{"first member", room.PairRoom("3", "7"), "3", true},
		{"second member", room.PairRoom("3", "7"), "7", true},
		{"outsider", room.PairRoom("3", "7"), "5", false},
		{"numeric ordering, larger ID second", room.PairRoom("9", "12"), "12", true},
		{"numeric ordering, smaller ID first", room.PairRoom("9", "12"), "9", true},
		{"underscore in first ID", room.PairRoom("a_b", "c"), "a_b", true},
		{"underscore in second ID", room.PairRoom("a_b", "c"), "c", true},
		{"underscore fragment is not a member", room.PairRoom("a_b", "c"), "b", false},
		{"whole pair string is not a member", room.PairRoom("a_b", "c"), "a_b_c", false},
		// private_a_b_c reads as both PairRoom("a_b","c") and PairRoom("a","b_c");
		// both pairings are accepted.
		{"alternate pairing of the same name", room.PairRoom("a", "b_c"), "b_c", true},
		{"public room", room.General, "3", false},
		{"empty user", room.PairRoom("3", "7"), "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isParticipant(tt.roomName, tt.userID); got != tt.want {
				t.Errorf("isParticipant(%q, %q) = %v, want %v", tt.roomName, tt.userID, got, tt.want)
			}
		})
	}
}
