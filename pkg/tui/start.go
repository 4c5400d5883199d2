package tui

import (
	"bscwallet/pkg/config"
	"bscwallet/pkg/events"
	"bscwallet/pkg/keygen"
	"bscwallet/pkg/rpc"
	"bscwallet/pkg/supply"
	"bscwallet/pkg/task"
	"bscwallet/pkg/watcher"

	tea "github.com/charmbracelet/bubbletea"
)

// Deps are the collaborators the terminal UI drives. Balance checks go through Watcher so the
// status server sees the same report.
type Deps struct {
	Config      config.Config
	Client      *rpc.Client
	Bus         *events.Bus
	Tasks       *task.Manager
	Watcher     *watcher.Watcher
	Generator   *keygen.Generator
	Distributor *supply.Distributor
}

func Start(deps Deps, version string) error {
	Version = version
	m := initialModel(deps)
	p := tea.NewProgram(m, tea.WithAltScreen())

	_, err := p.Run()
	if m.sub != nil {
		deps.Bus.Unsubscribe(m.sub)
	}
	return err
}
