package report

import (
	"fmt"

	"github.com/fatih/color"
)

// SetColorMode toggles the fatih/color library's global NoColor switch,
// mirroring the --color/--no-color handling in validate.go of the uast
// tool: "auto" leaves the library's own terminal/NO_COLOR detection in
// place, "always" and "never" force it either way.
func SetColorMode(mode string) error {
	switch mode {
	case "", "auto":
		// Leave color.NoColor at whatever the library's init already decided.
	case "always":
		color.NoColor = false //nolint:reassign // intentional override of library global
	case "never":
		color.NoColor = true //nolint:reassign // intentional override of library global
	default:
		return fmt.Errorf("report: unknown color mode %q", mode)
	}

	return nil
}
