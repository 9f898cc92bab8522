// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package term renders chat sessions for a terminal.
//
// Assistant prose is rendered as markdown with glamour, recommendations as
// lipgloss cards. Colour is used only when the output is a terminal and
// NO_COLOR is unset; FORCE_COLOR overrides detection.
package term
