// Package state holds the browser's navigation state over the Node Index:
// where the user is, what is expanded and which filters apply.
package state

import (
	"path/filepath"
	"strings"

	"tonic/internal/config"
	"tonic/internal/domain"
	"tonic/internal/engine"
	"tonic/internal/treemap"
)

// Source is the read side of the engine the browser needs.
type Source interface {
	Node(path string) (domain.StorageNode, bool)
	Children(path string, sortMode domain.SortMode) []domain.StorageNode
}

type Preferences struct {
	ShowHidden bool
	SortMode   domain.SortMode
	Theme      string
	Algorithm  treemap.Algorithm
	Action     domain.ActionType
}

type State struct {
	Root         string
	Current      string
	Cursor       int
	Expanded     map[string]bool
	Prefs        Preferences
	KeyBindings  map[string]string
	SearchQuery  string
	FilterExt    string
	MinSizeBytes int64

	source Source
}

func NewState(cfg *config.Config, source Source) *State {
	algorithm, err := treemap.ParseAlgorithm(cfg.UI.TreemapAlgorithm)
	if err != nil {
		algorithm = treemap.AlgorithmSquarified
	}
	root := domain.CanonicalPath(cfg.Scan.Root)
	return &State{
		Root:     root,
		Current:  root,
		Expanded: map[string]bool{root: true},
		Prefs: Preferences{
			ShowHidden: cfg.Scan.ShowHidden,
			SortMode:   domain.SortMode(cfg.UI.SortMode),
			Theme:      cfg.UI.Theme,
			Algorithm:  algorithm,
			Action:     domain.ActionType(cfg.Cleanup.DefaultAction),
		},
		KeyBindings: ensureBindings(cfg.UI.KeyBindings),
		source:      source,
	}
}

func ensureBindings(bindings map[string]string) map[string]string {
	if bindings == nil {
		return map[string]string{}
	}
	return bindings
}

// ApplyTo writes the preferences worth keeping between runs into cfg.
func (appState *State) ApplyTo(cfg *config.Config) {
	cfg.Scan.Root = appState.Root
	cfg.Scan.ShowHidden = appState.Prefs.ShowHidden
	cfg.UI.SortMode = string(appState.Prefs.SortMode)
	cfg.UI.Theme = appState.Prefs.Theme
	cfg.UI.TreemapAlgorithm = string(appState.Prefs.Algorithm)
	cfg.Cleanup.DefaultAction = string(appState.Prefs.Action)
	if len(appState.KeyBindings) > 0 {
		cfg.UI.KeyBindings = appState.KeyBindings
	}
}

// SetRoot points the browser at a new scan root.
func (appState *State) SetRoot(path string) {
	path = domain.CanonicalPath(path)
	appState.Root = path
	appState.Current = path
	appState.Cursor = 0
	appState.Expanded = map[string]bool{path: true}
}

// Prune drops navigation state that refers to nodes no longer indexed, after
// a cleanup or rescan.
func (appState *State) Prune() {
	for path := range appState.Expanded {
		if _, ok := appState.source.Node(path); !ok && path != appState.Root {
			delete(appState.Expanded, path)
		}
	}
	for appState.Current != appState.Root && within(appState.Root, appState.Current) {
		if _, ok := appState.source.Node(appState.Current); ok {
			break
		}
		appState.Current = filepath.Dir(appState.Current)
	}
	if !within(appState.Root, appState.Current) {
		appState.Current = appState.Root
	}
	visible := appState.VisibleNodes()
	if appState.Cursor >= len(visible) {
		appState.Cursor = max(len(visible)-1, 0)
	}
}

type VisibleNode struct {
	Node  domain.StorageNode
	Depth int
}

// VisibleNodes flattens the expanded tree below Current. Current itself is
// the first row. With filters active, directories are kept only when they
// lead to a match.
func (appState *State) VisibleNodes() []VisibleNode {
	root, ok := appState.source.Node(appState.Current)
	if !ok {
		return nil
	}
	var visible []VisibleNode
	appState.appendNode(&visible, root, 0)
	return visible
}

func (appState *State) appendNode(visible *[]VisibleNode, node domain.StorageNode, depth int) {
	isTop := node.Path == appState.Current
	if !isTop && !appState.Prefs.ShowHidden && isHiddenName(node.Name) {
		return
	}
	if !appState.Filtering() {
		*visible = append(*visible, VisibleNode{Node: node, Depth: depth})
		if !node.IsDirectory || !appState.Expanded[node.Path] {
			return
		}
		for _, child := range appState.source.Children(node.Path, appState.Prefs.SortMode) {
			appState.appendNode(visible, child, depth+1)
		}
		return
	}

	if !node.IsDirectory {
		if appState.Filter().Match(node) {
			*visible = append(*visible, VisibleNode{Node: node, Depth: depth})
		}
		return
	}
	var matching []domain.StorageNode
	for _, child := range appState.source.Children(node.Path, appState.Prefs.SortMode) {
		if appState.Filter().Match(child) || (child.IsDirectory && appState.dirHasMatch(child)) {
			matching = append(matching, child)
		}
	}
	if isTop || appState.Filter().Match(node) || len(matching) > 0 {
		*visible = append(*visible, VisibleNode{Node: node, Depth: depth})
		if !appState.Expanded[node.Path] {
			return
		}
		for _, child := range matching {
			appState.appendNode(visible, child, depth+1)
		}
	}
}

func (appState *State) dirHasMatch(node domain.StorageNode) bool {
	for _, child := range appState.source.Children(node.Path, appState.Prefs.SortMode) {
		if !appState.Prefs.ShowHidden && isHiddenName(child.Name) {
			continue
		}
		if appState.Filter().Match(child) {
			return true
		}
		if child.IsDirectory && appState.dirHasMatch(child) {
			return true
		}
	}
	return false
}

func (appState *State) Filtering() bool {
	return appState.SearchQuery != "" || appState.FilterExt != "" || appState.MinSizeBytes > 0
}

func (appState *State) Filter() engine.Filter {
	return engine.Filter{
		NameContains: appState.SearchQuery,
		Extension:    appState.FilterExt,
		MinBytes:     appState.MinSizeBytes,
	}
}

func (appState *State) ClearFilters() {
	appState.SearchQuery = ""
	appState.FilterExt = ""
	appState.MinSizeBytes = 0
	appState.Cursor = 0
}

func (appState *State) CurrentNode() (domain.StorageNode, bool) {
	visible := appState.VisibleNodes()
	if appState.Cursor < 0 || appState.Cursor >= len(visible) {
		return domain.StorageNode{}, false
	}
	return visible[appState.Cursor].Node, true
}

func (appState *State) MoveCursor(delta int) bool {
	visible := appState.VisibleNodes()
	next := appState.Cursor + delta
	if next < 0 || next >= len(visible) {
		return false
	}
	appState.Cursor = next
	return true
}

// EnterDir makes path the top of the listing.
func (appState *State) EnterDir(path string) bool {
	node, ok := appState.source.Node(path)
	if !ok || !node.IsDirectory {
		return false
	}
	appState.Current = node.Path
	appState.Cursor = 0
	appState.Expanded[node.Path] = true
	return true
}

// LeaveDir moves up one level, never above the scan root.
func (appState *State) LeaveDir() bool {
	if appState.Current == appState.Root || !within(appState.Root, appState.Current) {
		return false
	}
	previous := appState.Current
	appState.Current = filepath.Dir(appState.Current)
	appState.Expanded[appState.Current] = true
	appState.Cursor = 0
	for index, item := range appState.VisibleNodes() {
		if item.Node.Path == previous {
			appState.Cursor = index
			break
		}
	}
	return true
}

func (appState *State) ToggleExpanded(path string) bool {
	if path == "" {
		return false
	}
	appState.Expanded[path] = !appState.Expanded[path]
	return appState.Expanded[path]
}

func (appState *State) ToggleSortMode() domain.SortMode {
	switch appState.Prefs.SortMode {
	case domain.SortBySize:
		appState.Prefs.SortMode = domain.SortByName
	case domain.SortByName:
		appState.Prefs.SortMode = domain.SortByMod
	default:
		appState.Prefs.SortMode = domain.SortBySize
	}
	return appState.Prefs.SortMode
}

func (appState *State) ToggleShowHidden() bool {
	appState.Prefs.ShowHidden = !appState.Prefs.ShowHidden
	appState.Cursor = 0
	return appState.Prefs.ShowHidden
}

func (appState *State) ToggleAlgorithm() treemap.Algorithm {
	if appState.Prefs.Algorithm == treemap.AlgorithmSquarified {
		appState.Prefs.Algorithm = treemap.AlgorithmSliceAndDice
	} else {
		appState.Prefs.Algorithm = treemap.AlgorithmSquarified
	}
	return appState.Prefs.Algorithm
}

// CycleAction steps through the cleanup actions in the order they are least
// to most destructive.
func (appState *State) CycleAction() domain.ActionType {
	switch appState.Prefs.Action {
	case domain.ActionMoveToTrash:
		appState.Prefs.Action = domain.ActionExcludeForever
	case domain.ActionExcludeForever:
		appState.Prefs.Action = domain.ActionSecureDelete
	default:
		appState.Prefs.Action = domain.ActionMoveToTrash
	}
	return appState.Prefs.Action
}

func isHiddenName(name string) bool {
	return strings.HasPrefix(name, ".")
}

func within(root, path string) bool {
	if root == path {
		return true
	}
	if root == string(filepath.Separator) {
		return strings.HasPrefix(path, root)
	}
	return strings.HasPrefix(path, root+string(filepath.Separator))
}
