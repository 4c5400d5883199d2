package tui

import (
	"context"
	"errors"
	"fmt"
	"time"

	"bscwallet/pkg/balance"
	"bscwallet/pkg/errs"
	"bscwallet/pkg/events"
	"bscwallet/pkg/keygen"
	"bscwallet/pkg/models"
	"bscwallet/pkg/task"
	"bscwallet/pkg/validate"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
)

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		if msg.Width > 10 {
			m.addrInput.SetWidth(min(msg.Width-6, 90))
		}

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case clearStatusMsg:
		m.statusMessage = ""

	case connectedMsg:
		m.connErr = msg.err
		m.connected = msg.err == nil
		m.rpcURL = msg.url

	case events.Event:
		if m.sub != nil {
			cmds = append(cmds, listenForBus(m.sub))
		}
		m.handleEvent(msg)

	case taskDoneMsg:
		m.finishTask(msg)

	case validatedMsg:
		m.validating = false
		v := msg
		m.validated = &v
		if msg.err != nil {
			m.statusMessage = fmt.Sprintf("Validation failed: %v", msg.err)
		} else {
			m.statusMessage = fmt.Sprintf("Funding account verified, %d recipients loaded", len(msg.recipients))
		}
		cmds = append(cmds, clearStatusAfter(4*time.Second))

	case savedMsg:
		if msg.err != nil {
			m.statusMessage = fmt.Sprintf("Save failed: %v", msg.err)
		} else {
			m.statusMessage = fmt.Sprintf("Saved to %s", msg.path)
		}
		cmds = append(cmds, clearStatusAfter(4*time.Second))

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	return m, tea.Batch(cmds...)
}

// track records t as the running task of op and returns the command that waits for it.
func (m *model) track(op task.Op, t *task.Task) tea.Cmd {
	m.running[op] = t
	m.awaited[t.ID] = true
	m.beginOp(op)
	return waitForTask(t)
}

func (m *model) beginOp(op task.Op) {
	m.states[op] = task.StateRunning
	delete(m.taskErrs, op)
	switch op {
	case task.OpBalance:
		m.balanceLog = nil
	case task.OpGenerate:
		m.genLog = nil
	case task.OpSupply:
		m.supplyLog = nil
		m.summary = nil
	}
}

func (m *model) finishTask(msg taskDoneMsg) {
	t := msg.task
	if m.running[t.Op] == t {
		delete(m.running, t.Op)
	}
	m.states[t.Op] = t.State()
	if msg.err != nil {
		m.taskErrs[t.Op] = msg.err.Error()
	}
	if msg.result != nil {
		m.applyResult(msg.result)
	}
}

func (m *model) handleEvent(ev events.Event) {
	op := task.Op(ev.Op)
	if ev.Type != events.EventProgress && m.awaited[ev.TaskID] {
		return
	}
	switch ev.Type {
	case events.EventState:
		state := task.State(ev.Message)
		if state == task.StateRunning {
			m.beginOp(op)
			return
		}
		m.states[op] = state
		delete(m.running, op)
		if s, ok := ev.Data.(string); ok && s != "" {
			m.taskErrs[op] = s
		}

	case events.EventProgress:
		switch op {
		case task.OpBalance:
			m.balanceLog = appendLog(m.balanceLog, ev.Message)
		case task.OpGenerate:
			m.genLog = appendLog(m.genLog, ev.Message)
		case task.OpSupply:
			m.supplyLog = appendLog(m.supplyLog, ev.Message)
		}

	case events.EventResult:
		m.applyResult(ev.Data)
	}
}

func (m *model) applyResult(data any) {
	switch data := data.(type) {
	case models.BalanceReport:
		m.report = &data
	case []models.KeyPair:
		if len(data) == 0 {
			return
		}
		m.wallets = data
		m.selected = 0
		m.genListMode = true
		m.countInput.Blur()
		m.refreshQR()
	case models.DistributionSummary:
		m.summary = &data
		// a spent run invalidates the pre-flight
		m.validated = nil
	}
}

func (m *model) refreshQR() {
	m.qr = ""
	if m.selected < 0 || m.selected >= len(m.wallets) {
		return
	}
	qr, err := keygen.QRCode(m.wallets[m.selected].Address)
	if err == nil {
		m.qr = qr
	}
}

func (m model) setStatus(msg string) (tea.Model, tea.Cmd) {
	m.statusMessage = msg
	return m, clearStatusAfter(3 * time.Second)
}

func (m model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		for _, t := range m.running {
			t.Cancel()
		}
		return m, tea.Quit
	case "f1":
		m.active = tabBalances
		return m, nil
	case "f2":
		m.active = tabGenerate
		return m, nil
	case "f3":
		m.active = tabSupply
		return m, nil
	case "ctrl+t":
		m.active = (m.active + 1) % tab(len(tabNames))
		return m, nil
	case "ctrl+x":
		m.privacyMode = !m.privacyMode
		return m, nil
	case "f5":
		if m.deps.Client == nil {
			return m, nil
		}
		m.statusMessage = "Reconnecting..."
		return m, connectCmd(m.deps.Client)
	}

	if m.confirming {
		switch msg.String() {
		case "y", "Y":
			m.confirming = false
			return m.startSupply()
		case "n", "N", "esc":
			m.confirming = false
			return m.setStatus("Distribution not started")
		}
		return m, nil
	}

	if msg.String() == "esc" {
		if t, ok := m.running[m.activeOp()]; ok {
			t.Cancel()
			return m.setStatus(fmt.Sprintf("Canceling %s...", m.activeOp()))
		}
	}

	switch m.active {
	case tabBalances:
		return m.updateBalances(msg)
	case tabGenerate:
		return m.updateGenerate(msg)
	default:
		return m.updateSupply(msg)
	}
}

func (m model) updateBalances(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+r" {
		if m.busy(task.OpBalance) {
			return m.setStatus("Balance check already running")
		}
		if m.deps.Watcher == nil {
			return m.setStatus("Balance checks are not available")
		}
		addrs := balance.ParseAddressList(m.addrInput.Value())
		if len(addrs) == 0 {
			return m.setStatus("Enter at least one address")
		}
		t, err := m.deps.Watcher.Refresh(addrs)
		if err != nil {
			return m.setStatus(startError(err))
		}
		cmd := m.track(task.OpBalance, t)
		return m, cmd
	}

	var cmd tea.Cmd
	m.addrInput, cmd = m.addrInput.Update(msg)
	return m, cmd
}

func (m model) updateGenerate(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+r":
		return m.startGenerate()
	case "ctrl+s":
		return m.saveWallets()
	case "ctrl+l":
		if m.busy(task.OpGenerate) || len(m.wallets) == 0 {
			return m, nil
		}
		m.deps.Generator.Clear()
		m.wallets = nil
		m.selected = 0
		m.qr = ""
		m.genListMode = false
		m.statusMessage = "Generated wallets cleared"
		focus := m.countInput.Focus()
		return m, tea.Batch(focus, clearStatusAfter(3*time.Second))
	case "tab", "shift+tab":
		if len(m.wallets) > 0 {
			m.genListMode = !m.genListMode
			if m.genListMode {
				m.countInput.Blur()
			} else {
				focus := m.countInput.Focus()
				return m, focus
			}
		}
		return m, nil
	}

	if !m.genListMode {
		if msg.String() == "enter" {
			return m.startGenerate()
		}
		var cmd tea.Cmd
		m.countInput, cmd = m.countInput.Update(msg)
		return m, cmd
	}

	switch msg.String() {
	case "up", "k":
		if m.selected > 0 {
			m.selected--
			m.refreshQR()
		}
	case "down", "j":
		if m.selected < len(m.wallets)-1 {
			m.selected++
			m.refreshQR()
		}
	case "c":
		if w, ok := m.selectedWallet(); ok {
			if err := clipboard.WriteAll(w.Address); err != nil {
				return m.setStatus("Failed to copy to clipboard")
			}
			return m.setStatus("Address copied to clipboard")
		}
	case "x":
		if w, ok := m.selectedWallet(); ok {
			if err := clipboard.WriteAll(w.PrivateKey); err != nil {
				return m.setStatus("Failed to copy to clipboard")
			}
			return m.setStatus("Private key copied to clipboard")
		}
	case "v":
		m.revealKeys = !m.revealKeys
	case "o":
		if w, ok := m.selectedWallet(); ok {
			url := explorerLink(m.deps.Config.Chain.ExplorerURL, "address", w.Address)
			if url == "" {
				return m.setStatus("Explorer URL not configured")
			}
			if err := openBrowser(url); err != nil {
				return m.setStatus(fmt.Sprintf("Failed to open browser: %v", err))
			}
			return m.setStatus("Opened in browser")
		}
	}
	return m, nil
}

func (m model) selectedWallet() (models.KeyPair, bool) {
	if m.selected < 0 || m.selected >= len(m.wallets) {
		return models.KeyPair{}, false
	}
	return m.wallets[m.selected], true
}

func (m model) startGenerate() (tea.Model, tea.Cmd) {
	if m.busy(task.OpGenerate) {
		return m.setStatus("Generation already running")
	}
	if m.deps.Generator == nil || m.deps.Tasks == nil {
		return m.setStatus("Wallet generation is not available")
	}
	n, err := validate.PositiveInteger(m.countInput.Value(), "number of wallets", m.deps.Config.Wallet.MaxWallets)
	if err != nil {
		return m.setStatus(err.Error())
	}
	gen := m.deps.Generator
	t, err := m.deps.Tasks.Start(task.OpGenerate, func(_ context.Context, progress func(string)) (any, error) {
		return gen.Generate(n, progress)
	})
	if err != nil {
		return m.setStatus(startError(err))
	}
	cmd := m.track(task.OpGenerate, t)
	return m, cmd
}

func (m model) saveWallets() (tea.Model, tea.Cmd) {
	if len(m.wallets) == 0 || m.deps.Generator == nil {
		return m.setStatus("Generate wallets first")
	}
	gen := m.deps.Generator
	return m, func() tea.Msg {
		path, err := gen.SaveCSV(keygen.DefaultFilename(time.Now()))
		return savedMsg{path: path, err: err}
	}
}

func (m model) updateSupply(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "tab", "down":
		return m.focusSupply(m.supplyFocus + 1)
	case "shift+tab", "up":
		return m.focusSupply(m.supplyFocus - 1)
	case "ctrl+f":
		if m.validating {
			return m, nil
		}
		if m.deps.Distributor == nil {
			return m.setStatus("Distribution is not available")
		}
		m.validating = true
		m.validated = nil
		m.statusMessage = "Validating funding account..."
		return m, validateCmd(m.deps.Distributor, m.form())
	case "ctrl+r":
		if m.busy(task.OpSupply) {
			return m.setStatus("Distribution already running")
		}
		if m.validated == nil || m.validated.err != nil {
			return m.setStatus("Validate the funding account first (ctrl+f)")
		}
		m.confirming = true
		return m, nil
	case "ctrl+s":
		if m.summary == nil {
			return m.setStatus("No distribution summary yet")
		}
		s := *m.summary
		dir := m.deps.Config.Wallet.OutputDir
		return m, func() tea.Msg {
			path, err := writeSummaryFile(dir, s, time.Now())
			return savedMsg{path: path, err: err}
		}
	}

	before := m.supplyInputs[m.supplyFocus].Value()
	var cmd tea.Cmd
	m.supplyInputs[m.supplyFocus], cmd = m.supplyInputs[m.supplyFocus].Update(msg)
	if m.supplyInputs[m.supplyFocus].Value() != before {
		m.validated = nil
	}
	return m, cmd
}

func (m model) focusSupply(i int) (tea.Model, tea.Cmd) {
	n := len(m.supplyInputs)
	i = (i%n + n) % n
	m.supplyInputs[m.supplyFocus].Blur()
	m.supplyFocus = i
	focus := m.supplyInputs[i].Focus()
	return m, focus
}

func (m model) startSupply() (tea.Model, tea.Cmd) {
	if m.deps.Distributor == nil || m.deps.Tasks == nil || m.validated == nil {
		return m.setStatus("Distribution is not available")
	}
	f := m.form()
	recipients := m.validated.recipients
	dist := m.deps.Distributor
	t, err := m.deps.Tasks.Start(task.OpSupply, func(ctx context.Context, progress func(string)) (any, error) {
		return dist.Distribute(ctx, f.Key, recipients, f.Amount, progress)
	})
	if err != nil {
		return m.setStatus(startError(err))
	}
	cmd := m.track(task.OpSupply, t)
	return m, cmd
}

func startError(err error) string {
	if errors.Is(err, errs.ErrBusy) {
		return "Another task of this kind is still running"
	}
	return fmt.Sprintf("Failed to start: %v", err)
}
