package tui

import (
	"fmt"
	"strings"

	"bscwallet/pkg/task"
	"bscwallet/pkg/utils"
	"bscwallet/pkg/validate"

	"github.com/charmbracelet/lipgloss"
	"github.com/guptarohit/asciigraph"
)

const balanceDecimals = 4

func (m model) View() string {
	var body string
	switch m.active {
	case tabBalances:
		body = m.viewBalances()
	case tabGenerate:
		body = m.viewGenerate()
	default:
		body = m.viewSupply()
	}

	status := ""
	if m.statusMessage != "" {
		status = infoStyle.Render(m.statusMessage)
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		m.viewHeader(),
		"",
		body,
		"",
		status,
		m.viewFooter(),
	)
}

func (m model) viewHeader() string {
	var tabs []string
	for i, name := range tabNames {
		label := fmt.Sprintf("F%d %s", i+1, name)
		if m.busy(tabOps[i]) {
			label += " " + m.spinner.View()
		}
		if tab(i) == m.active {
			tabs = append(tabs, activeTabStyle.Render(label))
		} else {
			tabs = append(tabs, tabStyle.Render(label))
		}
	}

	chain := m.deps.Config.Chain
	conn := errStyle.Render("● connecting...")
	switch {
	case m.connected:
		conn = infoStyle.Render(fmt.Sprintf("● %s (%s)", chain.Name, m.rpcURL))
	case m.connErr != nil:
		conn = errStyle.Render(fmt.Sprintf("● offline: %v (F5 to retry)", m.connErr))
	}

	title := titleStyle.Render(fmt.Sprintf("BSC Wallet %s", Version))
	return lipgloss.JoinVertical(lipgloss.Left,
		lipgloss.JoinHorizontal(lipgloss.Center, title, " ", conn),
		lipgloss.JoinHorizontal(lipgloss.Bottom, tabs...),
	)
}

func (m model) viewFooter() string {
	common := "F1-F3/ctrl+t tabs • ctrl+x privacy • esc cancel task • ctrl+c quit"
	var keys string
	switch m.active {
	case tabBalances:
		keys = "ctrl+r check balances"
	case tabGenerate:
		keys = "enter/ctrl+r generate • tab list • ↑/↓ select • c copy address • x copy key • v reveal keys • o explorer • ctrl+s save CSV • ctrl+l clear"
	default:
		keys = "tab/↑/↓ fields • ctrl+f validate • ctrl+r start • ctrl+s export summary"
	}
	return subtleStyle.Render(keys + "\n" + common)
}

func (m model) viewState(op task.Op) string {
	state := m.states[op]
	if state == "" {
		state = task.StateIdle
	}
	line := fmt.Sprintf("State: %s", state)
	switch state {
	case task.StateRunning:
		return infoStyle.Render(line + " " + m.spinner.View())
	case task.StateFailed, task.StateCanceled:
		if e := m.taskErrs[op]; e != "" {
			line += " (" + e + ")"
		}
		return errStyle.Render(line)
	}
	return subtleStyle.Render(line)
}

func (m model) viewLog(lines []string, n int) string {
	if len(lines) == 0 {
		return ""
	}
	return subtleStyle.Render(strings.Join(tail(lines, n), "\n"))
}

func (m model) viewBalances() string {
	sections := []string{
		"Addresses:",
		m.addrInput.View(),
		m.viewState(task.OpBalance),
	}

	if m.report != nil {
		r := *m.report
		chain := m.deps.Config.Chain
		header := fmt.Sprintf("%-4s %-42s %16s %16s %16s", "#", "Address", r.Native, r.TokenA, r.TokenB)
		rows := []string{tableHeaderStyle.Render(header)}
		for _, row := range balanceRows(r, balanceDecimals) {
			addr := m.maskAddress(row[1])
			if row[5] != "" {
				rows = append(rows, errStyle.Render(fmt.Sprintf("%-4s %-42s %s", row[0], addr, utils.TruncateString(row[5], 60))))
				continue
			}
			if m.privacyMode {
				row[2], row[3], row[4] = "****", "****", "****"
			}
			rows = append(rows, fmt.Sprintf("%-4s %-42s %16s %16s %16s", row[0], addr, row[2], row[3], row[4]))
		}
		sections = append(sections, strings.Join(rows, "\n"))

		totals := fmt.Sprintf("Totals (%d wallets, %d failed): %s %s • %s %s • %s %s",
			r.Checked-r.Failed, r.Failed,
			m.displayValue(bigOrZero(r.Totals.Native), balanceDecimals), chain.Symbol,
			m.displayValue(bigOrZero(r.Totals.TokenA), 2), r.TokenA,
			m.displayValue(bigOrZero(r.Totals.TokenB), 2), r.TokenB,
		)
		sections = append(sections, boxStyle.Render(totals))

		if len(r.Invalid) > 0 {
			sections = append(sections, errStyle.Render("Invalid addresses skipped: "+strings.Join(r.Invalid, ", ")))
		}

		if series := nativeSeries(r); len(series) > 1 && !m.privacyMode {
			width := 60
			if m.width > 20 {
				width = min(m.width-12, 100)
			}
			graph := asciigraph.Plot(series,
				asciigraph.Height(6),
				asciigraph.Width(width),
				asciigraph.Caption(fmt.Sprintf("%s balance per wallet", r.Native)),
			)
			sections = append(sections, graph)
		}
	}

	if l := m.viewLog(m.balanceLog, 4); l != "" {
		sections = append(sections, l)
	}
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m model) viewGenerate() string {
	maxWallets := m.deps.Config.Wallet.MaxWallets
	sections := []string{
		fmt.Sprintf("Wallets to generate (1-%d): %s", maxWallets, m.countInput.View()),
		m.viewState(task.OpGenerate),
	}

	if len(m.wallets) > 0 {
		const window = 10
		start := 0
		if m.selected >= window {
			start = m.selected - window + 1
		}
		end := min(start+window, len(m.wallets))

		rows := []string{tableHeaderStyle.Render(fmt.Sprintf("%-5s %-42s %s", "No", "Address", "Private key"))}
		for i := start; i < end; i++ {
			w := m.wallets[i]
			line := fmt.Sprintf("%-5d %-42s %s", w.No, m.maskAddress(w.Address), m.maskKey(w.PrivateKey))
			if i == m.selected && m.genListMode {
				line = activeRowStyle.Render(line)
			}
			rows = append(rows, line)
		}
		list := lipgloss.JoinVertical(lipgloss.Left,
			subtleStyle.Render(fmt.Sprintf("%d wallets (showing %d-%d)", len(m.wallets), start+1, end)),
			strings.Join(rows, "\n"),
		)

		if m.qr != "" && !m.privacyMode {
			w := m.wallets[m.selected]
			qr := lipgloss.JoinVertical(lipgloss.Center, m.qr, subtleStyle.Render(validate.TruncateAddress(w.Address, 8, 6)))
			list = lipgloss.JoinHorizontal(lipgloss.Top, list, "  ", qr)
		}
		sections = append(sections, list)
	}

	if l := m.viewLog(m.genLog, 3); l != "" {
		sections = append(sections, l)
	}
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m model) viewSupply() string {
	labels := []string{"Funding address", "Private key", "Amount", "Recipients CSV"}
	var fields []string
	for i, label := range labels {
		cursor := "  "
		if i == m.supplyFocus {
			cursor = "> "
		}
		fields = append(fields, fmt.Sprintf("%s%-16s %s", cursor, label, m.supplyInputs[i].View()))
	}
	sections := []string{strings.Join(fields, "\n"), m.viewState(task.OpSupply)}

	switch {
	case m.validating:
		sections = append(sections, infoStyle.Render("Validating "+m.spinner.View()))
	case m.validated != nil && m.validated.err != nil:
		sections = append(sections, errStyle.Render(m.validated.err.Error()))
	case m.validated != nil:
		v := m.validated
		f := m.form()
		symbol := m.deps.Config.Chain.Symbol
		lines := []string{
			fmt.Sprintf("Funding balance: %s %s", m.displayValue(v.balance, balanceDecimals), symbol),
			fmt.Sprintf("Recipients: %d", len(v.recipients)),
			fmt.Sprintf("Required: %s %s plus gas", requiredTotal(f.Amount, len(v.recipients)), symbol),
		}
		if len(v.invalid) > 0 {
			lines = append(lines, errStyle.Render(fmt.Sprintf("%d recipients have invalid addresses and will fail", len(v.invalid))))
		}
		sections = append(sections, boxStyle.Render(strings.Join(lines, "\n")))
	}

	if m.confirming && m.validated != nil {
		f := m.form()
		prompt := lipgloss.JoinVertical(lipgloss.Center,
			titleStyle.Render("Confirm Distribution"),
			"",
			fmt.Sprintf("Send %s %s to each of %d recipients?", f.Amount, m.deps.Config.Chain.Symbol, len(m.validated.recipients)),
			"Transfers are irreversible.",
			"",
			subtleStyle.Render("(y) Yes • (n) No"),
		)
		sections = append(sections, boxStyle.Render(prompt))
	}

	if l := m.viewLog(m.supplyLog, 5); l != "" {
		sections = append(sections, l)
	}

	if m.summary != nil {
		s := *m.summary
		lines := []string{
			fmt.Sprintf("Total: %d • Successful: %d • Failed: %d", s.Total, s.Succeeded, s.Failed),
			fmt.Sprintf("Sent: %s %s", s.TotalAmount, m.deps.Config.Chain.Symbol),
		}
		if processed := len(s.Results); processed < s.Total {
			lines = append(lines, errStyle.Render(fmt.Sprintf("Stopped after %d of %d recipients", processed, s.Total)))
		}
		if failed := failedLines(s); len(failed) > 0 {
			lines = append(lines, errStyle.Render("Failed recipients:"))
			for _, f := range failed {
				lines = append(lines, errStyle.Render("  "+utils.TruncateString(f, 110)))
			}
		}
		sections = append(sections, boxStyle.Render(lipgloss.JoinVertical(lipgloss.Left,
			titleStyle.Render("Distribution Summary"),
			strings.Join(lines, "\n"),
		)))
	}

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}
