package interaction

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// MaxCustomIDLength is the platform limit on button custom ids.
const MaxCustomIDLength = 100

// customIDPattern is a lowercase route followed by up to four alphanumeric args.
var customIDPattern = regexp.MustCompile(`^[a-z_]+(?:_[A-Za-z0-9]{1,64}){0,4}$`)

var ErrInvalidCustomID = errors.New("invalid custom id")

// CustomID is a validated button custom id.
type CustomID string

// ParseCustomID validates raw against the custom id grammar.
func ParseCustomID(raw string) (CustomID, error) {
	if raw == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidCustomID)
	}
	if len(raw) > MaxCustomIDLength {
		return "", fmt.Errorf("%w: %d characters exceeds %d", ErrInvalidCustomID, len(raw), MaxCustomIDLength)
	}
	if !customIDPattern.MatchString(raw) {
		return "", fmt.Errorf("%w: unexpected characters", ErrInvalidCustomID)
	}
	return CustomID(raw), nil
}

// Args returns the '_' separated segments after prefix, and false when the
// id does not belong to prefix.
func (c CustomID) Args(prefix string) ([]string, bool) {
	s := string(c)
	if s == prefix {
		return nil, true
	}
	rest, ok := strings.CutPrefix(s, prefix+"_")
	if !ok || rest == "" {
		return nil, false
	}
	return strings.Split(rest, "_"), true
}

func (c CustomID) String() string { return string(c) }

// BuildCustomID joins a route prefix and its args. Callers building buttons use
// this so the ids they emit always parse.
func BuildCustomID(prefix string, args ...string) string {
	if len(args) == 0 {
		return prefix
	}
	return prefix + "_" + strings.Join(args, "_")
}
