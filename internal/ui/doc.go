// Package ui renders CLI output with lipgloss styles: generation progress,
// the final playlist summary, parsed profiles and run history.
//
// Styles come from a single [Palette]; renderers return strings so callers
// decide where to write them.
package ui
