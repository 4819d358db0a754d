// Package ui renders solve progress as a small Bubble Tea program.
//
// The view polls state.Store on a tick, the same way it would poll any other
// snapshot source, and tails the JSON log through logtail. It never talks to
// nova itself. Pressing q (or ctrl+c) calls the Kill hook once; the view then
// stays up until the solve returns, and a second press detaches it.
//
// Themes are Dracula and Slate; t cycles them.
package ui
