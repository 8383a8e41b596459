package ui

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tonic/internal/classify"
	"tonic/internal/config"
	"tonic/internal/engine"
	"tonic/internal/services"
	"tonic/internal/state"
	"tonic/internal/trash"
	"tonic/internal/treemap"
)

func writeSized(t *testing.T, path string, size int) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, make([]byte, size), 0o644))
}

func newModel(t *testing.T) (Model, *engine.Engine, string) {
	t.Helper()
	root := filepath.Join(t.TempDir(), "root")
	writeSized(t, filepath.Join(root, "big", "data.bin"), 500)
	writeSized(t, filepath.Join(root, "small.log"), 20)

	eng, err := engine.New(classify.New(classify.NewPolicy("/home/tester")), engine.Config{
		Cleanup: services.CleanupOptions{Trash: trash.NewDir(filepath.Join(t.TempDir(), "trash"))},
	})
	require.NoError(t, err)

	cfg := config.Default()
	cfg.Scan.Root = root
	appState := state.NewState(cfg, eng)
	model := NewModel(context.Background(), appState, eng, cfg, nil)
	model.width, model.height = 120, 30
	return model, eng, root
}

// drive feeds msg and every message its commands produce back into the
// model until nothing is left. Spinner ticks are dropped.
func drive(t *testing.T, model Model, msg tea.Msg) Model {
	t.Helper()
	queue := []tea.Msg{msg}
	for len(queue) > 0 {
		next := queue[0]
		queue = queue[1:]
		if _, ok := next.(spinner.TickMsg); ok {
			continue
		}
		updated, cmd := model.Update(next)
		model = updated.(Model)
		queue = append(queue, collect(cmd)...)
	}
	return model
}

func collect(cmd tea.Cmd) []tea.Msg {
	if cmd == nil {
		return nil
	}
	msg := cmd()
	if batch, ok := msg.(tea.BatchMsg); ok {
		var msgs []tea.Msg
		for _, inner := range batch {
			msgs = append(msgs, collect(inner)...)
		}
		return msgs
	}
	if msg == nil {
		return nil
	}
	return []tea.Msg{msg}
}

func runes(value string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(value)}
}

func TestInitScansUnindexedRoot(t *testing.T) {
	model, eng, root := newModel(t)
	model = drive(t, model, model.Init()())

	assert.False(t, model.scanning)
	assert.Contains(t, model.status, "Scan complete")
	node, ok := eng.Node(root)
	require.True(t, ok)
	assert.EqualValues(t, 520, node.LogicalBytes)
	assert.Nil(t, model.Init())
}

func TestCartCleanupAndUndo(t *testing.T) {
	model, eng, root := newModel(t)
	model = drive(t, model, runes("s"))

	model = drive(t, model, tea.KeyMsg{Type: tea.KeyDown})
	model = drive(t, model, tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}})
	require.Equal(t, []string{filepath.Join(root, "big")}, eng.CartPaths())

	model = drive(t, model, runes("d"))
	require.True(t, model.confirming)
	assert.Equal(t, 1, model.pendingPlan.DryRun.CleanableItems)
	assert.Contains(t, model.View(), "Cleanup Plan")

	model = drive(t, model, runes("y"))
	assert.False(t, model.confirming)
	assert.Contains(t, model.status, "Moved 1 items to trash")
	assert.Empty(t, eng.CartPaths())
	_, ok := eng.Node(filepath.Join(root, "big"))
	assert.False(t, ok)
	assert.NoDirExists(t, filepath.Join(root, "big"))

	model = drive(t, model, runes("u"))
	assert.Equal(t, "Restored 1 items", model.status)
	assert.FileExists(t, filepath.Join(root, "big", "data.bin"))
	_, ok = eng.Node(filepath.Join(root, "big"))
	assert.True(t, ok)

	model = drive(t, model, runes("u"))
	assert.Equal(t, "Nothing to undo", model.status)
}

func TestSecureDeleteAsksTwice(t *testing.T) {
	model, _, root := newModel(t)
	model = drive(t, model, runes("s"))
	model = drive(t, model, runes("a"))
	model = drive(t, model, runes("a"))
	require.Equal(t, "secureDelete", string(model.state.Prefs.Action))

	model = drive(t, model, tea.KeyMsg{Type: tea.KeyDown})
	model = drive(t, model, tea.KeyMsg{Type: tea.KeyDown})
	model = drive(t, model, runes("d"))
	require.True(t, model.confirming)

	model = drive(t, model, runes("y"))
	assert.True(t, model.confirming)
	assert.Contains(t, model.status, "cannot be undone")
	assert.FileExists(t, filepath.Join(root, "small.log"))

	model = drive(t, model, runes("y"))
	assert.False(t, model.confirming)
	assert.NoFileExists(t, filepath.Join(root, "small.log"))
}

func TestCancelPlan(t *testing.T) {
	model, _, _ := newModel(t)
	model = drive(t, model, runes("s"))
	model = drive(t, model, tea.KeyMsg{Type: tea.KeyDown})
	model = drive(t, model, runes("d"))
	require.True(t, model.confirming)

	model = drive(t, model, tea.KeyMsg{Type: tea.KeyEsc})
	assert.False(t, model.confirming)
	assert.Equal(t, "Cleanup cancelled", model.status)
}

func TestFilterInput(t *testing.T) {
	model, _, _ := newModel(t)
	model = drive(t, model, runes("s"))

	updated, _ := model.Update(runes("z"))
	model = updated.(Model)
	require.Equal(t, "size", model.filterInputMode)
	updated, _ = model.Update(runes("100B"))
	model = updated.(Model)
	updated, _ = model.Update(tea.KeyMsg{Type: tea.KeyEnter})
	model = updated.(Model)

	assert.Empty(t, model.filterInputMode)
	assert.EqualValues(t, 100, model.state.MinSizeBytes)
	assert.Contains(t, model.View(), "Filters[Min:100 B]")
}

func TestTreemapView(t *testing.T) {
	model, _, _ := newModel(t)
	model = drive(t, model, runes("s"))
	model = drive(t, model, runes("t"))
	require.True(t, model.showTreemap)
	view := model.View()
	assert.Contains(t, view, "squarified")

	model = drive(t, model, runes("g"))
	assert.Contains(t, model.View(), "sliceAndDice")
}

func TestCellGridCoversBounds(t *testing.T) {
	items := []treemap.Item{{Key: "a", Weight: 6}, {Key: "b", Weight: 3}, {Key: "c", Weight: 1}}
	tiles := treemap.Layout(treemap.AlgorithmSquarified, items, treemap.Rect{W: 20, H: 10})
	grid := cellGrid(tiles, 20, 10)

	seen := map[int]int{}
	for _, row := range grid {
		for _, index := range row {
			require.GreaterOrEqual(t, index, 0)
			seen[index]++
		}
	}
	assert.Len(t, seen, 3)
	assert.Greater(t, seen[0], seen[2])
}

func TestKeyBindingOverrides(t *testing.T) {
	keys := DefaultKeyMap().WithBindings(map[string]string{"quit": "Q, ctrl+c", "bogus": "z"})
	assert.Equal(t, []string{"Q", "ctrl+c"}, keys.Quit.Keys())
	assert.Equal(t, []string{"up", "k"}, keys.Up.Keys())
}
