// Package matcher groups two inspection photo collections into per-room
// before/after pairs. Matching is purely name-based: room names are
// normalized for grouping while the first-seen original casing is kept as
// the pair's display name.
package matcher

import (
	"strings"

	"github.com/google/uuid"
)

// Photo is the minimal photo shape the matcher operates on.
type Photo struct {
	ID          uuid.UUID
	RoomName    string
	FileKey     string
	ContentType string
}

// RoomPair holds the matched before/after photo groups for one physical room.
// A room present in only one collection yields a pair with an empty slice on
// the missing side; callers must skip such pairs before invoking analysis.
type RoomPair struct {
	RoomName     string
	BeforePhotos []Photo
	AfterPhotos  []Photo
}

// NormalizeRoomName returns the grouping key for a room name: trimmed and
// lowercased. Normalization is idempotent.
func NormalizeRoomName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// MatchRooms produces one RoomPair per distinct normalized room name
// appearing in either collection. Every input photo lands in exactly one
// pair, on the side it came from. Pair order follows first appearance,
// before-collection first.
func MatchRooms(before, after []Photo) []RoomPair {
	index := make(map[string]int)
	pairs := make([]RoomPair, 0, len(before)+len(after))

	pairAt := func(name string) int {
		key := NormalizeRoomName(name)
		if at, ok := index[key]; ok {
			return at
		}
		pairs = append(pairs, RoomPair{
			RoomName:     name,
			BeforePhotos: []Photo{},
			AfterPhotos:  []Photo{},
		})
		index[key] = len(pairs) - 1
		return len(pairs) - 1
	}

	for _, photo := range before {
		at := pairAt(photo.RoomName)
		pairs[at].BeforePhotos = append(pairs[at].BeforePhotos, photo)
	}
	for _, photo := range after {
		at := pairAt(photo.RoomName)
		pairs[at].AfterPhotos = append(pairs[at].AfterPhotos, photo)
	}

	return pairs
}
