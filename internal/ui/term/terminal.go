// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package term

import (
	"os"

	"github.com/muesli/termenv"
	xterm "golang.org/x/term"
)

// =============================================================================
// TTY DETECTION
// =============================================================================

const (
	// DefaultWidth is used when the width cannot be detected.
	DefaultWidth = 80

	// MinWidth is the narrowest layout rendered.
	MinWidth = 40
)

// IsTTY reports whether f is a terminal.
func IsTTY(f *os.File) bool {
	return f != nil && xterm.IsTerminal(int(f.Fd()))
}

// Width returns the terminal width of f, clamped to MinWidth.
func Width(f *os.File) int {
	if f == nil {
		return DefaultWidth
	}
	w, _, err := xterm.GetSize(int(f.Fd()))
	if err != nil || w <= 0 {
		return DefaultWidth
	}
	if w < MinWidth {
		return MinWidth
	}
	return w
}

// =============================================================================
// COLOUR
// =============================================================================

// ColorsEnabled reports whether coloured output should be written to f.
// NO_COLOR wins over FORCE_COLOR.
func ColorsEnabled(f *os.File) bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	if os.Getenv("FORCE_COLOR") != "" {
		return true
	}
	return IsTTY(f)
}

// Profile returns the colour profile for f.
func Profile(f *os.File) termenv.Profile {
	if !ColorsEnabled(f) {
		return termenv.Ascii
	}
	return termenv.NewOutput(f).EnvColorProfile()
}
