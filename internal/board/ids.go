package board

import (
	"regexp"
	"time"

	"github.com/oklog/ulid/v2"
)

// newID generates a new ULID string ordered by t.
func newID(t time.Time) string {
	return ulid.MustNew(ulid.Timestamp(t), ulid.DefaultEntropy()).String()
}

var unsafeFilenameChars = regexp.MustCompile(`[^\w.\-()가-힣]+`)

// storedName maps an uploaded file name to the name it is stored under.
// Runs of characters other than word characters, dots, dashes, parentheses
// and Hangul syllables collapse to a single underscore.
func storedName(name string) string {
	return unsafeFilenameChars.ReplaceAllString(name, "_")
}
