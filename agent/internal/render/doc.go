// Package render formats rollups for the terminal.
package render
