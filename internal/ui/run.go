package ui

import (
	"context"
	"os"

	tea "github.com/charmbracelet/bubbletea"
)

// Run shows the progress view until the solve finishes or ctx is done. It
// renders to stderr so stdout stays free for the job id.
func Run(ctx context.Context, opts Options) error {
	p := tea.NewProgram(New(opts), tea.WithContext(ctx), tea.WithOutput(os.Stderr))
	_, err := p.Run()
	return err
}
