package ui

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"tonic/internal/domain"
	"tonic/internal/state"
)

type uiStyles struct {
	headerStyle   lipgloss.Style
	mutedStyle    lipgloss.Style
	statusStyle   lipgloss.Style
	warnStyle     lipgloss.Style
	cursorStyle   lipgloss.Style
	selectedStyle lipgloss.Style
	panelBorder   lipgloss.Style
}

func stylesFor(model Model) uiStyles {
	if strings.ToLower(model.state.Prefs.Theme) == "light" {
		return uiStyles{
			headerStyle:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("235")),
			mutedStyle:    lipgloss.NewStyle().Foreground(lipgloss.Color("242")),
			statusStyle:   lipgloss.NewStyle().Foreground(lipgloss.Color("25")).Bold(true),
			warnStyle:     lipgloss.NewStyle().Foreground(lipgloss.Color("124")).Bold(true),
			cursorStyle:   lipgloss.NewStyle().Foreground(lipgloss.Color("90")).Bold(true),
			selectedStyle: lipgloss.NewStyle().Foreground(lipgloss.Color("28")).Bold(true),
			panelBorder:   lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1),
		}
	}
	return uiStyles{
		headerStyle:   lipgloss.NewStyle().Bold(true),
		mutedStyle:    lipgloss.NewStyle().Foreground(lipgloss.Color("241")),
		statusStyle:   lipgloss.NewStyle().Foreground(lipgloss.Color("69")).Bold(true),
		warnStyle:     lipgloss.NewStyle().Foreground(lipgloss.Color("204")).Bold(true),
		cursorStyle:   lipgloss.NewStyle().Foreground(lipgloss.Color("205")).Bold(true),
		selectedStyle: lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true),
		panelBorder:   lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1),
	}
}

func (model Model) View() string {
	styles := stylesFor(model)
	if model.showHelp {
		return renderHelpView(model, styles)
	}
	body := renderBody(model, styles)
	footer := renderFooter(model, styles)
	return strings.Join([]string{body, footer}, "\n")
}

func renderBody(model Model, styles uiStyles) string {
	bodyHeight := max(model.listHeight(), 3)
	leftWidth, rightWidth, showRight := splitPanels(model.width)

	var left string
	if model.showTreemap {
		left = renderTreemapPanel(model, styles, leftWidth, bodyHeight)
	} else {
		left = renderTreePanel(model, styles, model.state.VisibleNodes(), bodyHeight, leftWidth)
	}
	if !showRight {
		return left
	}
	sep := lipgloss.NewStyle().Foreground(lipgloss.Color("238")).Render("│")
	right := renderDetailPanel(model, styles, rightWidth, bodyHeight)
	return lipgloss.JoinHorizontal(lipgloss.Top, left, sep, right)
}

func renderFooter(model Model, styles uiStyles) string {
	var statusLine string
	switch {
	case model.filterInputMode != "":
		statusLine = model.input.View()
	case model.scanning || model.actionRunning:
		statusLine = model.spinner.View() + " " + trimStatus(model.status, model.width-2)
	default:
		statusLine = trimStatus(model.status, model.width)
	}
	statusStyle := styles.mutedStyle
	lower := strings.ToLower(model.status)
	if strings.Contains(lower, "error") || strings.Contains(lower, "cannot be undone") {
		statusStyle = styles.warnStyle
	}
	if model.filterInputMode == "" {
		statusLine = statusStyle.Render(statusLine)
	}

	cart := model.engine.CartPaths()
	cartInfo := fmt.Sprintf("Cart: %d (%s)", len(cart), formatSize(model.engine.CartBytes()))
	sortInfo := fmt.Sprintf("Sort: %s", strings.ToUpper(string(model.state.Prefs.SortMode)))
	actionInfo := fmt.Sprintf("Action: %s", model.state.Prefs.Action)
	hiddenInfo := "Hidden: off"
	if model.state.Prefs.ShowHidden {
		hiddenInfo = "Hidden: on"
	}
	if model.warnings > 0 {
		hiddenInfo += fmt.Sprintf("  Warnings: %d", model.warnings)
	}
	left := fmt.Sprintf("%s  %s  %s  %s%s", cartInfo, actionInfo, sortInfo, hiddenInfo, filterSummary(model))
	keys := model.help.ShortHelpView(model.keys.ShortHelp())
	if model.confirming {
		keys = "y confirm  n cancel"
	}
	if model.filterInputMode != "" {
		keys = "enter apply  esc cancel"
	}
	footerLine := padLine(left, keys, model.width)
	return strings.Join([]string{statusLine, styles.mutedStyle.Render(footerLine)}, "\n")
}

func renderTreePanel(model Model, styles uiStyles, visible []state.VisibleNode, height, width int) string {
	width = max(width, 20)
	contentWidth := max(width-2, 10)
	status := "IDLE"
	if model.scanning {
		status = "SCANNING"
	}
	headerLine := padLine(styles.headerStyle.Render("tonic")+"  "+breadcrumbs(model.state.Current), styles.statusStyle.Render(status), contentWidth)
	listHeight := max(height-1, 1)
	if len(visible) == 0 {
		message := "Not scanned - press s"
		if model.scanning {
			message = "Scanning..."
		}
		lines := []string{headerLine, message}
		for len(lines) < height {
			lines = append(lines, "")
		}
		return styles.panelBorder.Width(contentWidth).Render(strings.Join(lines, "\n"))
	}

	start := clamp(model.viewTop, 0, max(len(visible)-1, 0))
	end := min(start+listHeight, len(visible))
	lines := make([]string, 0, height)
	lines = append(lines, headerLine)
	for index := start; index < end; index++ {
		item := visible[index]
		node := item.Node
		marker := "[ ]"
		if model.engine.InCart(node.Path) {
			marker = styles.selectedStyle.Render("[x]")
		}
		name := node.Name
		if node.IsDirectory {
			name += "/"
		}
		riskTag := ""
		if node.RiskLevel >= domain.RiskHigh {
			riskTag = " !" + node.RiskLevel.String()
		}
		line := fmt.Sprintf("%9s %s %s%s%s", sizeLabel(node), marker, strings.Repeat("  ", item.Depth), name, riskTag)
		if index == model.state.Cursor {
			line = styles.cursorStyle.Render(line)
		}
		lines = append(lines, line)
	}
	for len(lines) < height {
		lines = append(lines, "")
	}
	return styles.panelBorder.Width(contentWidth).Render(strings.Join(lines, "\n"))
}

func renderTreemapPanel(model Model, styles uiStyles, width, height int) string {
	contentWidth := max(width-4, 10)
	header := padLine(styles.headerStyle.Render("tonic")+"  "+breadcrumbs(model.state.Current), styles.statusStyle.Render(string(model.state.Prefs.Algorithm)), contentWidth)
	highlight := ""
	if node, ok := model.state.CurrentNode(); ok {
		highlight = node.Path
	}
	cells := renderTreemap(model.engine, model.state.Current, model.state.Prefs.Algorithm, contentWidth, max(height-1, 1), highlight)
	return styles.panelBorder.Width(contentWidth + 2).Render(header + "\n" + cells)
}

func renderDetailPanel(model Model, styles uiStyles, width, height int) string {
	if model.confirming {
		return renderPlanPanel(model, styles, width, height)
	}
	contentWidth := max(width-2, 10)
	node, ok := model.state.CurrentNode()
	if !ok {
		return styles.panelBorder.Width(contentWidth).Render("No selection")
	}
	mod := "-"
	if !node.ModTime.IsZero() {
		mod = node.ModTime.Format(time.RFC822)
	}
	lines := []string{
		styles.headerStyle.Render("Path"),
		node.Path,
		"",
		styles.headerStyle.Render("Size"),
		sizeLabel(node),
	}
	if root, found := model.engine.Node(model.state.Root); found && root.LogicalBytes > 0 {
		share := float64(node.LogicalBytes) / float64(root.LogicalBytes)
		model.share.Width = max(contentWidth-8, 10)
		lines = append(lines, fmt.Sprintf("%s %3.0f%%", model.share.ViewAs(share), share*100))
	}
	if node.IsDirectory {
		lines = append(lines, fmt.Sprintf("Folders: %d", node.DirCount), fmt.Sprintf("Files  : %d", node.FileCount))
	}
	lines = append(lines,
		"",
		styles.headerStyle.Render("Classification"),
		fmt.Sprintf("Domain: %s", node.Domain),
		fmt.Sprintf("Risk  : %s", node.RiskLevel),
	)
	if node.OwnerApp != "" {
		lines = append(lines, fmt.Sprintf("Owner : %s", node.OwnerApp))
	}
	lines = append(lines, "", styles.headerStyle.Render("Modified"), mod)

	if model.insight != nil && len(model.insight.Largest) > 0 {
		lines = append(lines, "", styles.headerStyle.Render("Largest"))
		for _, largest := range model.insight.Largest[:min(5, len(model.insight.Largest))] {
			lines = append(lines, fmt.Sprintf("%9s %s", sizeLabel(largest), largest.Name))
		}
	}

	content := lipgloss.NewStyle().Width(contentWidth).Height(height).Render(strings.Join(lines, "\n"))
	return styles.panelBorder.Width(contentWidth).Render(content)
}

func renderPlanPanel(model Model, styles uiStyles, width, height int) string {
	plan := model.pendingPlan
	dryRun := plan.DryRun
	lines := []string{
		styles.headerStyle.Render("Cleanup Plan"),
		fmt.Sprintf("Action : %s", plan.ActionType),
		fmt.Sprintf("Items  : %d", dryRun.CleanableItems),
		fmt.Sprintf("Reclaim: %s", formatSize(dryRun.CleanableBytes)),
		fmt.Sprintf("Blocked: %d", dryRun.BlockedItems),
	}
	if dryRun.CoveredItems > 0 {
		lines = append(lines, fmt.Sprintf("Covered: %d", dryRun.CoveredItems))
	}
	lines = append(lines, "", styles.headerStyle.Render("Items"))
	for _, candidate := range plan.Candidates() {
		if candidate.Blocked() {
			lines = append(lines, styles.warnStyle.Render("✗ "+filepath.Base(candidate.Path)+": "+candidate.BlockedReason))
			continue
		}
		lines = append(lines, fmt.Sprintf("✓ %s (%s, %s)", filepath.Base(candidate.Path), formatSize(candidate.EstimatedReclaimBytes), candidate.RiskLevel))
		if candidate.SafeReason != "" {
			lines = append(lines, styles.mutedStyle.Render("  "+candidate.SafeReason))
		}
	}
	if plan.ActionType == domain.ActionSecureDelete {
		lines = append(lines, "", styles.warnStyle.Render("Secure delete cannot be undone"))
	}
	contentWidth := max(width-2, 10)
	content := lipgloss.NewStyle().Width(contentWidth).Height(height).Render(strings.Join(lines, "\n"))
	return styles.panelBorder.Width(contentWidth).Render(content)
}

func renderHelpView(model Model, styles uiStyles) string {
	lines := []string{styles.headerStyle.Render("tonic help"), ""}
	lines = append(lines, styles.headerStyle.Render("Cleanup"))
	lines = append(lines,
		"space adds the item under the cursor to the cart",
		"d plans the cart (or the cursor item) with the current action",
		"a cycles moveToTrash, excludeForever and secureDelete",
		"protected paths are listed as blocked and never touched",
		"u restores the last trash cleanup",
	)
	lines = append(lines, "", styles.headerStyle.Render("Keys"))
	model.help.ShowAll = true
	lines = append(lines, model.help.View(model.keys))
	lines = append(lines, "", "Press ? to close help")
	width := model.width
	if width <= 0 {
		width = 80
	}
	return styles.panelBorder.Width(max(width-2, 10)).Render(strings.Join(lines, "\n"))
}

func breadcrumbs(path string) string {
	path = filepath.Clean(path)
	if path == "." {
		return "."
	}
	parts := strings.Split(path, string(filepath.Separator))
	if parts[0] == "" {
		parts[0] = string(filepath.Separator)
	}
	return strings.Join(parts, " › ")
}

func padLine(left, right string, width int) string {
	if width <= 0 {
		return left
	}
	space := width - lipgloss.Width(left) - lipgloss.Width(right)
	if space < 1 {
		return left + " " + right
	}
	return left + strings.Repeat(" ", space) + right
}

func splitPanels(width int) (int, int, bool) {
	if width < 80 {
		return width, 0, false
	}
	left := max(int(float64(width)*0.6), 40)
	right := width - left - 1
	if right < 30 {
		return width, 0, false
	}
	return left, right, true
}

func sizeLabel(node domain.StorageNode) string {
	label := formatSize(node.LogicalBytes)
	if node.SizeIsEstimated {
		return "~" + label
	}
	return label
}

func trimStatus(message string, width int) string {
	if width <= 0 {
		return message
	}
	limit := width - 4
	if limit <= 0 || len(message) <= limit {
		return message
	}
	return message[:limit] + "..."
}

func filterSummary(model Model) string {
	var parts []string
	if model.state.SearchQuery != "" {
		parts = append(parts, "Search:"+model.state.SearchQuery)
	}
	if model.state.FilterExt != "" {
		parts = append(parts, "Ext:"+model.state.FilterExt)
	}
	if model.state.MinSizeBytes > 0 {
		parts = append(parts, "Min:"+formatSize(model.state.MinSizeBytes))
	}
	if len(parts) == 0 {
		return ""
	}
	return "  Filters[" + strings.Join(parts, ", ") + "]"
}

func clamp(value, low, high int) int {
	return max(low, min(value, high))
}
