package ui

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/dustin/go-humanize"

	"tonic/internal/config"
	"tonic/internal/domain"
	"tonic/internal/engine"
	"tonic/internal/services"
	"tonic/internal/state"
)

type Model struct {
	ctx     context.Context
	state   *state.State
	engine  *engine.Engine
	config  *config.Config
	logger  *slog.Logger
	keys    KeyMap
	help    help.Model
	spinner spinner.Model
	share   progress.Model
	input   textinput.Model

	showHelp    bool
	showTreemap bool
	status      string
	width       int
	height      int
	viewTop     int

	session  *services.Session
	scanning bool
	progress domain.ScanProgress
	warnings int64
	insight  *domain.Insight

	filterInputMode string

	confirming    bool
	confirmStep   int
	pendingPlan   domain.CleanupPlan
	actionRunning bool
}

type ConfigProvider interface {
	ConfigSnapshot() *config.Config
}

func NewModel(ctx context.Context, appState *state.State, eng *engine.Engine, cfg *config.Config, logger *slog.Logger) Model {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	spin := spinner.New()
	spin.Spinner = spinner.Dot
	input := textinput.New()
	input.CharLimit = 256

	return Model{
		ctx:     ctx,
		state:   appState,
		engine:  eng,
		config:  cfg,
		logger:  logger.With("component", "ui"),
		keys:    DefaultKeyMap().WithBindings(appState.KeyBindings),
		help:    help.New(),
		spinner: spin,
		share:   progress.New(progress.WithDefaultGradient(), progress.WithoutPercentage()),
		input:   input,
		status:  "Ready - press s to scan",
		width:   100,
		height:  30,
	}
}

func (model Model) WithStatus(message string) Model {
	if message != "" {
		model.status = message
	}
	return model
}

func (model Model) ConfigSnapshot() *config.Config {
	snapshot := *model.config
	model.state.ApplyTo(&snapshot)
	return &snapshot
}

// Init scans the root unless the index already holds it.
func (model Model) Init() tea.Cmd {
	if _, ok := model.engine.Node(model.state.Root); ok {
		return nil
	}
	mode := domain.ScanMode(model.config.Scan.Mode)
	return func() tea.Msg { return startScanMsg{mode: mode} }
}

func (model Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch typed := msg.(type) {
	case tea.KeyMsg:
		return model.handleKey(typed)
	case tea.WindowSizeMsg:
		model.width = typed.Width
		model.height = typed.Height
		model.help.Width = typed.Width
		model.ensureCursorVisible()
		return model, nil
	case spinner.TickMsg:
		if !model.scanning && !model.actionRunning {
			return model, nil
		}
		var cmd tea.Cmd
		model.spinner, cmd = model.spinner.Update(typed)
		return model, cmd
	case startScanMsg:
		return model.beginScan(typed.mode, nil)
	case scanEventMsg:
		return model.handleScanEvent(typed)
	case scanDoneMsg:
		if typed.session != model.session {
			return model, nil
		}
		model.scanning = false
		model.session = nil
		model.state.Prune()
		model.ensureCursorVisible()
		summary := typed.summary
		switch {
		case summary.Err != nil:
			model.status = fmt.Sprintf("Scan error: %v", summary.Err)
		case summary.Phase == domain.PhaseCancelled:
			model.status = "Scan cancelled"
		default:
			model.status = fmt.Sprintf("Scan complete: %s files, %s in %s",
				humanize.Comma(summary.FilesScanned), formatSize(summary.BytesScanned), summary.Duration().Round(time.Millisecond))
			if summary.Warnings > 0 {
				model.status += fmt.Sprintf(" (%d warnings)", summary.Warnings)
			}
		}
		return model, nil
	case planMsg:
		if typed.err != nil {
			model.status = fmt.Sprintf("Plan error: %v", typed.err)
			return model, nil
		}
		if len(typed.plan.Executable()) == 0 {
			model.status = fmt.Sprintf("Nothing to clean: %d blocked", typed.plan.DryRun.BlockedItems)
			model.pendingPlan = typed.plan
			model.confirming = false
			return model, nil
		}
		model.pendingPlan = typed.plan
		model.confirming = true
		model.confirmStep = 1
		model.status = planPrompt(typed.plan, 1)
		return model, nil
	case cleanupResultMsg:
		model.actionRunning = false
		model.confirming = false
		model.confirmStep = 0
		if typed.err != nil {
			model.status = fmt.Sprintf("Cleanup error: %v", typed.err)
			return model, nil
		}
		model.state.Prune()
		model.ensureCursorVisible()
		model.status = resultSummary(typed.result)
		return model, nil
	case undoResultMsg:
		model.actionRunning = false
		if errors.Is(typed.err, engine.ErrNothingToUndo) {
			model.status = "Nothing to undo"
			return model, nil
		}
		if typed.err != nil {
			model.status = fmt.Sprintf("Undo error: %v", typed.err)
			return model, nil
		}
		model.state.Prune()
		model.status = fmt.Sprintf("Restored %d items", len(typed.result.Restored))
		if len(typed.result.Failed) > 0 {
			model.status += fmt.Sprintf(", %d failed: %s", len(typed.result.Failed), typed.result.Failed[0].Message)
		}
		return model, nil
	default:
		return model, nil
	}
}

func (model Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if model.filterInputMode != "" {
		return model.handleFilterInput(msg)
	}
	switch {
	case key.Matches(msg, model.keys.Quit):
		model.engine.CancelActiveScan()
		return model, tea.Quit
	case key.Matches(msg, model.keys.Help):
		model.showHelp = !model.showHelp
		return model, nil
	case model.confirming && key.Matches(msg, model.keys.Confirm):
		return model.confirmPlan()
	case model.confirming && key.Matches(msg, model.keys.Cancel):
		model.confirming = false
		model.confirmStep = 0
		model.status = "Cleanup cancelled"
		return model, nil
	case model.confirming:
		return model, nil
	case model.scanning && key.Matches(msg, model.keys.Cancel):
		model.engine.CancelActiveScan()
		model.status = "Cancelling scan..."
		return model, nil
	case key.Matches(msg, model.keys.Up):
		if model.state.MoveCursor(-1) {
			model.ensureCursorVisible()
		}
		return model, nil
	case key.Matches(msg, model.keys.Down):
		if model.state.MoveCursor(1) {
			model.ensureCursorVisible()
		}
		return model, nil
	case key.Matches(msg, model.keys.Select):
		node, ok := model.state.CurrentNode()
		if !ok || node.Path == model.state.Root {
			return model, nil
		}
		if model.engine.ToggleCart(node.Path) {
			model.status = fmt.Sprintf("Added %s to cart", node.Name)
		} else {
			model.status = fmt.Sprintf("Removed %s from cart", node.Name)
		}
		return model, nil
	case key.Matches(msg, model.keys.ClearCart):
		model.engine.ClearCart()
		model.status = "Cart emptied"
		return model, nil
	case key.Matches(msg, model.keys.Action):
		model.status = fmt.Sprintf("Cleanup action: %s", model.state.CycleAction())
		return model, nil
	case key.Matches(msg, model.keys.Clean):
		return model.requestPlan()
	case key.Matches(msg, model.keys.Undo):
		if model.actionRunning {
			return model, nil
		}
		model.actionRunning = true
		model.status = "Undoing last cleanup..."
		return model, tea.Batch(model.undoCmd(), model.spinner.Tick)
	case key.Matches(msg, model.keys.Enter):
		node, ok := model.state.CurrentNode()
		if !ok || !node.IsDirectory || node.Path == model.state.Current {
			return model, nil
		}
		model.state.ToggleExpanded(node.Path)
		model.ensureCursorVisible()
		return model, nil
	case key.Matches(msg, model.keys.Right):
		node, ok := model.state.CurrentNode()
		if !ok || !node.IsDirectory {
			return model, nil
		}
		model.state.EnterDir(node.Path)
		model.viewTop = 0
		return model, nil
	case key.Matches(msg, model.keys.Back), key.Matches(msg, model.keys.Left):
		if model.state.LeaveDir() {
			model.ensureCursorVisible()
		}
		return model, nil
	case key.Matches(msg, model.keys.Refresh):
		node, ok := model.state.CurrentNode()
		if !ok {
			return model, nil
		}
		return model.beginScan(domain.ScanTargeted, []string{node.Path})
	case key.Matches(msg, model.keys.Scan):
		return model.beginScan(domain.ScanDeep, nil)
	case key.Matches(msg, model.keys.QuickScan):
		return model.beginScan(domain.ScanQuick, nil)
	case key.Matches(msg, model.keys.Sort):
		model.state.ToggleSortMode()
		model.ensureCursorVisible()
		return model, nil
	case key.Matches(msg, model.keys.Hidden):
		model.state.ToggleShowHidden()
		model.ensureCursorVisible()
		return model, nil
	case key.Matches(msg, model.keys.Treemap):
		model.showTreemap = !model.showTreemap
		return model, nil
	case key.Matches(msg, model.keys.Algorithm):
		model.status = fmt.Sprintf("Treemap layout: %s", model.state.ToggleAlgorithm())
		return model, nil
	case key.Matches(msg, model.keys.Search):
		return model.beginFilterInput("search", model.state.SearchQuery)
	case key.Matches(msg, model.keys.ExtFilter):
		return model.beginFilterInput("ext", model.state.FilterExt)
	case key.Matches(msg, model.keys.SizeFilter):
		value := ""
		if model.state.MinSizeBytes > 0 {
			value = formatSize(model.state.MinSizeBytes)
		}
		return model.beginFilterInput("size", value)
	case key.Matches(msg, model.keys.ClearFilter):
		model.state.ClearFilters()
		model.status = "Filters cleared"
		model.ensureCursorVisible()
		return model, nil
	default:
		return model, nil
	}
}

func (model Model) beginScan(mode domain.ScanMode, paths []string) (tea.Model, tea.Cmd) {
	request := services.ScanRequest{
		Mode:          mode,
		RootPath:      model.state.Root,
		TargetedPaths: paths,
		QuickDepth:    model.config.Scan.QuickDepth,
		ShowHidden:    model.config.Scan.ShowHidden,
	}
	if mode == domain.ScanTargeted {
		request.RootPath = ""
	}
	session := model.engine.StartScan(model.ctx, request)
	model.session = session
	model.scanning = true
	model.progress = domain.ScanProgress{}
	model.warnings = 0
	model.status = fmt.Sprintf("Scanning %s (%s)...", model.state.Root, mode)
	return model, tea.Batch(waitForEvent(session), model.spinner.Tick)
}

// waitForEvent reads one event. Sessions replaced by a newer scan are still
// drained to their end so their producers can finish.
func waitForEvent(session *services.Session) tea.Cmd {
	return func() tea.Msg {
		scanEvent, ok := <-session.Events()
		if !ok {
			return scanDoneMsg{session: session, summary: session.Summary()}
		}
		return scanEventMsg{session: session, event: scanEvent}
	}
}

func (model Model) handleScanEvent(msg scanEventMsg) (tea.Model, tea.Cmd) {
	next := waitForEvent(msg.session)
	if msg.session != model.session {
		return model, next
	}
	switch msg.event.Kind {
	case domain.EventPhaseStarted:
		model.status = fmt.Sprintf("Scan %s...", msg.event.Phase)
	case domain.EventProgress:
		model.progress = msg.event.Progress
		model.status = fmt.Sprintf("Scanning... %s files, %s", humanize.Comma(model.progress.FilesScanned), formatSize(model.progress.BytesScanned))
		if model.progress.CurrentPath != "" {
			model.status += " (" + model.progress.CurrentPath + ")"
		}
	case domain.EventWarning:
		model.warnings++
		model.logger.Debug("scan warning", "message", msg.event.Message)
	case domain.EventInsightReady:
		model.insight = msg.event.Insight
	}
	return model, next
}

func (model Model) requestPlan() (tea.Model, tea.Cmd) {
	if model.actionRunning {
		return model, nil
	}
	action := model.state.Prefs.Action
	paths := model.engine.CartPaths()
	if len(paths) == 0 {
		node, ok := model.state.CurrentNode()
		if !ok || node.Path == model.state.Root {
			model.status = "Cart is empty - press space to add items"
			return model, nil
		}
		paths = []string{node.Path}
	}
	eng := model.engine
	return model, func() tea.Msg {
		plan, err := eng.PreparePlanFor(paths, action)
		return planMsg{plan: plan, err: err}
	}
}

// confirmPlan runs the pending plan. Secure delete asks twice.
func (model Model) confirmPlan() (tea.Model, tea.Cmd) {
	plan := model.pendingPlan
	if plan.ActionType == domain.ActionSecureDelete && model.confirmStep == 1 {
		model.confirmStep = 2
		model.status = planPrompt(plan, 2)
		return model, nil
	}
	model.confirming = false
	model.actionRunning = true
	model.status = fmt.Sprintf("Running %s on %d items...", plan.ActionType, len(plan.Executable()))
	eng, ctx := model.engine, model.ctx
	return model, tea.Batch(func() tea.Msg {
		result, err := eng.ExecuteCleanup(ctx, plan.ID)
		return cleanupResultMsg{result: result, err: err}
	}, model.spinner.Tick)
}

func (model Model) undoCmd() tea.Cmd {
	eng, ctx := model.engine, model.ctx
	return func() tea.Msg {
		result, err := eng.Undo(ctx)
		return undoResultMsg{result: result, err: err}
	}
}

func (model Model) beginFilterInput(mode, value string) (tea.Model, tea.Cmd) {
	model.filterInputMode = mode
	model.input.Prompt = filterLabel(mode) + ": "
	model.input.SetValue(value)
	model.input.CursorEnd()
	return model, model.input.Focus()
}

func (model Model) handleFilterInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		model.filterInputMode = ""
		model.input.Blur()
		model.status = "Filter unchanged"
		return model, nil
	case tea.KeyEnter:
		value := strings.TrimSpace(model.input.Value())
		switch model.filterInputMode {
		case "search":
			model.state.SearchQuery = value
		case "ext":
			model.state.FilterExt = strings.TrimPrefix(value, ".")
		case "size":
			size, err := parseSizeInput(value)
			if err != nil {
				model.status = fmt.Sprintf("Min size: %v", err)
				return model, nil
			}
			model.state.MinSizeBytes = size
		}
		model.filterInputMode = ""
		model.input.Blur()
		model.state.Cursor = 0
		model.viewTop = 0
		model.status = "Filter applied"
		return model, nil
	}
	var cmd tea.Cmd
	model.input, cmd = model.input.Update(msg)
	return model, cmd
}

func parseSizeInput(input string) (int64, error) {
	if input == "" {
		return 0, nil
	}
	size, err := humanize.ParseBytes(input)
	if err != nil {
		return 0, err
	}
	return int64(size), nil
}

func filterLabel(mode string) string {
	switch mode {
	case "search":
		return "Search"
	case "ext":
		return "Extension"
	case "size":
		return "Min size"
	default:
		return "Filter"
	}
}

func planPrompt(plan domain.CleanupPlan, step int) string {
	dryRun := plan.DryRun
	if step == 2 {
		return fmt.Sprintf("Secure delete cannot be undone. Overwrite %d items? (y/n)", dryRun.CleanableItems)
	}
	return fmt.Sprintf("%s %d items, %s? %d blocked (y/n)", plan.ActionType, dryRun.CleanableItems, formatSize(dryRun.CleanableBytes), dryRun.BlockedItems)
}

func resultSummary(result domain.CleanupExecutionResult) string {
	var summary string
	switch result.ActionType {
	case domain.ActionExcludeForever:
		summary = fmt.Sprintf("Excluded %d items", result.ExcludedItems)
	case domain.ActionSecureDelete:
		summary = fmt.Sprintf("Securely deleted %d items (%s)", result.CleanedItems, formatSize(result.CleanedBytes))
	default:
		summary = fmt.Sprintf("Moved %d items to trash (%s)", result.CleanedItems, formatSize(result.CleanedBytes))
	}
	if result.FailedItems > 0 {
		summary += fmt.Sprintf(", %d failed", result.FailedItems)
	}
	if result.Cancelled {
		summary += ", cancelled"
	}
	if result.UndoToken != nil {
		summary += " - u to undo"
	}
	return summary
}

func (model *Model) ensureCursorVisible() {
	height := model.listHeight()
	if model.state.Cursor < model.viewTop {
		model.viewTop = model.state.Cursor
	}
	if model.state.Cursor >= model.viewTop+height {
		model.viewTop = model.state.Cursor - height + 1
	}
	if model.viewTop < 0 {
		model.viewTop = 0
	}
}

func (model *Model) listHeight() int {
	// border, header and the two footer lines
	return max(model.height-5, 1)
}

func formatSize(size int64) string {
	if size < 0 {
		size = 0
	}
	return humanize.Bytes(uint64(size))
}
