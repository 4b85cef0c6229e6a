// Package ui renders sync progress and results for the terminal.
//
// Output is styled with lipgloss through a [Palette]. When stdout is not a terminal lipgloss
// drops the colors, so the same renderers serve interactive shells and cron logs.
//
//  1. [Watch] : Drains a progress channel from the sync engine, one line per update
//  2. [RunSummary] : Boxed breakdown of a finished [models.RunReport]
//  3. [Table] : Aligned columns for listings such as the pending download queue
package ui
