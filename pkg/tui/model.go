package tui

import (
	"math/big"
	"strconv"
	"strings"

	"bscwallet/pkg/events"
	"bscwallet/pkg/models"
	"bscwallet/pkg/task"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Version is set by Start()
var Version = "dev"

// --- Messages ---

type clearStatusMsg struct{}

type connectedMsg struct {
	url string
	err error
}

type validatedMsg struct {
	balance    *big.Float
	recipients []models.RecipientRecord
	invalid    []models.RecipientRecord
	err        error
}

type savedMsg struct {
	path string
	err  error
}

// taskDoneMsg reports the end of a task this model started.
type taskDoneMsg struct {
	task   *task.Task
	result any
	err    error
}

// --- Model ---

type tab int

const (
	tabBalances tab = iota
	tabGenerate
	tabSupply
)

var tabNames = []string{"Balances", "Generate", "Supply"}

var tabOps = []task.Op{task.OpBalance, task.OpGenerate, task.OpSupply}

// supply form fields
const (
	fieldAddress = iota
	fieldKey
	fieldAmount
	fieldFile
)

type model struct {
	deps          Deps
	sub           events.Subscriber
	width         int
	height        int
	active        tab
	spinner       spinner.Model
	statusMessage string
	privacyMode   bool
	connected     bool
	rpcURL        string
	connErr       error
	states        map[task.Op]task.State
	running       map[task.Op]*task.Task
	taskErrs      map[task.Op]string
	// IDs of tasks started here. Their state and result arrive as taskDoneMsg, so bus
	// copies of those events, including late ones, are ignored.
	awaited map[string]bool

	// balances
	addrInput  textarea.Model
	report     *models.BalanceReport
	balanceLog []string

	// generate
	countInput  textinput.Model
	genListMode bool
	wallets     []models.KeyPair
	selected    int
	qr          string
	genLog      []string
	revealKeys  bool

	// supply
	supplyInputs []textinput.Model
	supplyFocus  int
	validated    *validatedMsg
	validating   bool
	confirming   bool
	supplyLog    []string
	summary      *models.DistributionSummary
}

func initialModel(deps Deps) model {
	cfg := deps.Config

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	ta := textarea.New()
	ta.Placeholder = "0x... one address per line, or comma separated"
	ta.ShowLineNumbers = false
	ta.SetWidth(60)
	ta.SetHeight(5)
	ta.SetValue(strings.Join(cfg.Balance.Addresses, "\n"))
	ta.Focus()

	ci := textinput.New()
	ci.Placeholder = "Number of wallets"
	ci.Width = 10
	ci.CharLimit = 6
	if cfg.Wallet.Count > 0 {
		ci.SetValue(strconv.Itoa(cfg.Wallet.Count))
	}
	ci.Focus()

	sis := make([]textinput.Model, 4)
	for i := range sis {
		sis[i] = textinput.New()
		sis[i].Width = 66
	}
	sis[fieldAddress].Placeholder = "Funding address (0x...)"
	sis[fieldAddress].SetValue(cfg.Supply.FundingAddress)
	sis[fieldKey].Placeholder = "Funding private key"
	sis[fieldKey].EchoMode = textinput.EchoPassword
	sis[fieldKey].EchoCharacter = '•'
	sis[fieldKey].SetValue(cfg.Supply.FundingPrivateKey)
	sis[fieldAmount].Placeholder = "Amount per recipient (e.g. 0.001)"
	sis[fieldAmount].SetValue(cfg.Supply.TokenAmount)
	sis[fieldFile].Placeholder = "Recipients CSV (no,address)"
	sis[fieldFile].SetValue(cfg.Supply.RecipientsFile)
	sis[fieldAddress].Focus()

	m := model{
		deps:         deps,
		spinner:      s,
		addrInput:    ta,
		countInput:   ci,
		supplyInputs: sis,
		states:       make(map[task.Op]task.State),
		running:      make(map[task.Op]*task.Task),
		taskErrs:     make(map[task.Op]string),
		awaited:      make(map[string]bool),
	}
	if deps.Bus != nil {
		m.sub = deps.Bus.Subscribe()
	}
	if deps.Tasks != nil {
		for _, op := range tabOps {
			m.states[op] = deps.Tasks.State(op)
		}
	}
	return m
}

func (m model) Init() tea.Cmd {
	cmds := []tea.Cmd{m.spinner.Tick, textarea.Blink, connectCmd(m.deps.Client)}
	if m.sub != nil {
		cmds = append(cmds, listenForBus(m.sub))
	}
	return tea.Batch(cmds...)
}

func (m model) activeOp() task.Op {
	return tabOps[m.active]
}

func (m model) busy(op task.Op) bool {
	return m.states[op] == task.StateRunning
}

func (m model) form() supplyForm {
	return supplyForm{
		Address: strings.TrimSpace(m.supplyInputs[fieldAddress].Value()),
		Key:     strings.TrimSpace(m.supplyInputs[fieldKey].Value()),
		Amount:  strings.TrimSpace(m.supplyInputs[fieldAmount].Value()),
		File:    strings.TrimSpace(m.supplyInputs[fieldFile].Value()),
	}
}
