// Package ordering decides the presentation order of list snapshots.
//
// Three modes are supported: by name, by creation date (newest first) and a
// user-defined custom order. The active mode and the custom rank map are kept
// in a [prefs.Store] so they survive restarts.
package ordering

import (
	"fmt"
	"strings"

	"github.com/desertthunder/listx/internal/shared"
)

// Mode is a sort mode. Its string value is what gets persisted.
type Mode string

const (
	ModeName   Mode = "NAME"
	ModeDate   Mode = "DATE"
	ModeCustom Mode = "CUSTOM"
)

// Modes lists every mode in display order.
var Modes = []Mode{ModeName, ModeDate, ModeCustom}

// ParseMode parses a mode name, ignoring case and surrounding space.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToUpper(strings.TrimSpace(s))); m {
	case ModeName, ModeDate, ModeCustom:
		return m, nil
	default:
		return "", fmt.Errorf("%w: unknown sort mode %q (want NAME, DATE or CUSTOM)", shared.ErrInvalidArgument, s)
	}
}

func (m Mode) String() string { return string(m) }
