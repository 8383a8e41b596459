package services

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"tonic/internal/classify"
	"tonic/internal/domain"
	"tonic/internal/index"
)

const insightLargest = 10

type OrchestratorOptions struct {
	Workers          int
	BatchSize        int
	EventBuffer      int
	ProgressInterval time.Duration
	FlushInterval    time.Duration
	Estimator        Estimator
	Exclusions       ExclusionList
	Logger           *slog.Logger
	// OnFinish runs on the session goroutine once the index is final and
	// before Done is closed. It must not start or await scans.
	OnFinish func(ScanSummary)
}

func (options OrchestratorOptions) withDefaults() OrchestratorOptions {
	if options.Workers <= 0 {
		options.Workers = maxInt(2, runtime.NumCPU())
	}
	if options.BatchSize <= 0 {
		options.BatchSize = 128
	}
	if options.EventBuffer <= 0 {
		options.EventBuffer = 256
	}
	if options.ProgressInterval <= 0 {
		options.ProgressInterval = 100 * time.Millisecond
	}
	if options.FlushInterval <= 0 {
		options.FlushInterval = 50 * time.Millisecond
	}
	if options.Estimator == nil {
		options.Estimator = NewSampleEstimator(DefaultSampleBudget)
	}
	if options.Logger == nil {
		options.Logger = slog.New(slog.DiscardHandler)
	}
	return options
}

// Orchestrator runs scan sessions against a Node Index. It is the only
// writer of that index: session goroutines and Evict serialize on writeMu.
type Orchestrator struct {
	index      *index.Index
	classifier *classify.Classifier
	options    OrchestratorOptions
	logger     *slog.Logger

	startMu sync.Mutex
	mu      sync.Mutex
	active  *Session
	pending map[*Session]struct{}

	writeMu sync.Mutex
}

func NewOrchestrator(nodes *index.Index, classifier *classify.Classifier, options OrchestratorOptions) *Orchestrator {
	options = options.withDefaults()
	return &Orchestrator{
		index:      nodes,
		classifier: classifier,
		options:    options,
		logger:     options.Logger.With("component", "scanner"),
		pending:    make(map[*Session]struct{}),
	}
}

func (orchestrator *Orchestrator) Index() *index.Index {
	return orchestrator.index
}

// StartScan cancels and awaits any running session, then starts a new one.
// The caller must drain Events until it is closed.
func (orchestrator *Orchestrator) StartScan(ctx context.Context, request ScanRequest) *Session {
	orchestrator.startMu.Lock()
	defer orchestrator.startMu.Unlock()

	if previous := orchestrator.Active(); previous != nil {
		previous.Cancel()
		<-previous.done
	}

	sessionCtx, cancel := context.WithCancel(ctx)
	session := &Session{
		ID:      uuid.NewString(),
		Request: request,
		events:  make(chan domain.ScanEvent, orchestrator.options.EventBuffer),
		cancel:   cancel,
		done:     make(chan struct{}),
		released: make(chan struct{}),
		phase:    domain.PhaseIdle,
	}

	orchestrator.mu.Lock()
	orchestrator.active = session
	orchestrator.mu.Unlock()

	go orchestrator.run(sessionCtx, session)
	return session
}

// Active returns the most recent session, finished or not.
func (orchestrator *Orchestrator) Active() *Session {
	orchestrator.mu.Lock()
	defer orchestrator.mu.Unlock()
	return orchestrator.active
}

// CancelActiveScan requests cancellation of the running session. It is a
// no-op when no session is running.
func (orchestrator *Orchestrator) CancelActiveScan() {
	if session := orchestrator.Active(); session != nil {
		session.Cancel()
	}
}

// AwaitIdle blocks until the current session has finished writing.
func (orchestrator *Orchestrator) AwaitIdle(ctx context.Context) error {
	session := orchestrator.Active()
	if session == nil {
		return nil
	}
	select {
	case <-session.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Evict removes paths and their indexed descendants and subtracts their
// sizes from indexed ancestors. It returns the number of bytes evicted.
func (orchestrator *Orchestrator) Evict(paths []string) int64 {
	orchestrator.writeMu.Lock()
	defer orchestrator.writeMu.Unlock()

	var evicted int64
	for _, path := range outermost(normalizePaths(paths)) {
		node, ok := orchestrator.index.Get(path)
		if !ok {
			continue
		}
		orchestrator.index.Remove(path)
		orchestrator.adjustAncestorsLocked(path, contributionOf(node).negate())
		evicted += node.LogicalBytes
	}
	if evicted > 0 {
		orchestrator.logger.Debug("evicted from index", "paths", len(paths), "bytes", evicted)
	}
	return evicted
}

func (orchestrator *Orchestrator) run(ctx context.Context, session *Session) {
	scan := &scanRun{
		orchestrator: orchestrator,
		session:      session,
		ctx:          ctx,
		limiter:      rate.NewLimiter(rate.Every(orchestrator.options.ProgressInterval), 1),
		startedAt:    time.Now(),
	}
	phase, err := scan.execute()

	summary := ScanSummary{
		SessionID:    session.ID,
		Request:      scan.request,
		Phase:        phase,
		FilesScanned: scan.files,
		BytesScanned: scan.bytes,
		Warnings:     scan.warnings,
		StartedAt:    scan.startedAt,
		FinishedAt:   time.Now(),
		Insight:      scan.insight,
		Err:          err,
	}
	logArgs := []any{"session", session.ID, "mode", scan.request.Mode, "phase", phase,
		"files", summary.FilesScanned, "bytes", summary.BytesScanned, "warnings", summary.Warnings,
		"duration", summary.Duration()}
	if err != nil {
		orchestrator.logger.Error("scan aborted", append(logArgs, "error", err)...)
	} else {
		orchestrator.logger.Info("scan finished", logArgs...)
	}

	session.setPhase(phase)
	if orchestrator.options.OnFinish != nil {
		orchestrator.options.OnFinish(summary)
	}
	session.summary = summary

	terminal := domain.ScanEvent{SessionID: session.ID, Kind: domain.EventCompleted, Phase: phase}
	if phase == domain.PhaseCancelled {
		terminal.Kind = domain.EventCancelled
		if err != nil {
			terminal.Message = err.Error()
		}
	}
	select {
	case session.events <- terminal:
		close(session.events)
	default:
		orchestrator.deliverLater(session, terminal)
	}
	close(session.done)
	session.cancel()
}

// deliverLater hands the terminal event to a reader that is a full buffer
// behind, without holding up the next session. It gives up once the session
// is released.
func (orchestrator *Orchestrator) deliverLater(session *Session, terminal domain.ScanEvent) {
	orchestrator.mu.Lock()
	orchestrator.pending[session] = struct{}{}
	orchestrator.mu.Unlock()

	go func() {
		select {
		case session.events <- terminal:
		case <-session.released:
			orchestrator.logger.Debug("terminal event dropped", "session", session.ID)
		}
		close(session.events)

		orchestrator.mu.Lock()
		delete(orchestrator.pending, session)
		orchestrator.mu.Unlock()
	}()
}

// Close cancels the running session and releases every session whose
// terminal event is still waiting for a reader.
func (orchestrator *Orchestrator) Close(ctx context.Context) error {
	orchestrator.CancelActiveScan()
	err := orchestrator.AwaitIdle(ctx)

	orchestrator.mu.Lock()
	for session := range orchestrator.pending {
		session.Release()
	}
	orchestrator.mu.Unlock()
	return err
}

// scanRun is the writer side of one session. Only the session goroutine
// touches its fields.
type scanRun struct {
	orchestrator *Orchestrator
	session      *Session
	ctx          context.Context
	request      ScanRequest
	exclusions   map[string]struct{}
	limiter      *rate.Limiter
	startedAt    time.Time

	files     int64
	bytes     int64
	warnings  int64
	estimated int64
	lastPath  string
	pending   []domain.StorageNode
	changes   []rootChange
	insight   *domain.Insight
}

func (scan *scanRun) execute() (domain.ScanPhase, error) {
	scan.request = scan.session.Request
	scan.enter(domain.PhasePreparing)

	request, err := scan.session.Request.normalize()
	if err != nil {
		return scan.abort(err)
	}
	scan.request = request
	scan.orchestrator.logger.Info("scan started", "session", scan.session.ID, "mode", request.Mode, "roots", request.roots())

	if list := scan.orchestrator.options.Exclusions; list != nil {
		excluded, err := list.ExcludedPaths(scan.ctx)
		if err != nil {
			scan.warn(fmt.Sprintf("exclusion list unavailable: %v", err))
		}
		scan.exclusions = excluded
	}
	if request.Mode != domain.ScanTargeted {
		if _, err := os.Lstat(request.RootPath); err != nil {
			return scan.abort(fmt.Errorf("%w: %w", ErrRootUnreadable, err))
		}
	}
	if scan.ctx.Err() != nil {
		return domain.PhaseCancelled, nil
	}

	scan.enter(domain.PhaseScanning)
	for _, root := range request.roots() {
		if scan.ctx.Err() != nil {
			break
		}
		change, err := scan.rescan(root)
		if err != nil {
			return scan.abort(err)
		}
		scan.changes = append(scan.changes, change)
	}
	if scan.ctx.Err() != nil {
		return domain.PhaseCancelled, nil
	}
	scan.flush()
	scan.emitProgress()

	scan.enter(domain.PhaseIndexing)
	for _, change := range scan.changes {
		if scan.ctx.Err() != nil {
			return domain.PhaseCancelled, nil
		}
		scan.settle(change)
	}
	scan.insight = scan.buildInsight()
	scan.emit(domain.ScanEvent{Kind: domain.EventInsightReady, Phase: domain.PhaseIndexing, Insight: scan.insight})
	if scan.ctx.Err() != nil {
		return domain.PhaseCancelled, nil
	}
	return domain.PhaseCompleted, nil
}

// rescan replaces the indexed subtree at root with a fresh walk.
func (scan *scanRun) rescan(root string) (rootChange, error) {
	change := rootChange{path: root}
	if previous, ok := scan.orchestrator.index.Get(root); ok {
		change.before = contributionOf(previous)
	}
	change.after = change.before

	targeted := scan.request.Mode == domain.ScanTargeted
	info, err := os.Lstat(root)
	switch {
	case err == nil && scan.excluded(root):
		if !targeted {
			scan.warn(fmt.Sprintf("%s is excluded from scans", root))
		}
		scan.removeSubtree(root)
		change.after = contribution{}
		return change, nil
	case err == nil:
	case targeted && errors.Is(err, fs.ErrNotExist):
		scan.removeSubtree(root)
		change.after = contribution{}
		return change, nil
	case targeted:
		scan.warn(fmt.Sprintf("%s: %v", root, err))
		return change, nil
	default:
		return change, fmt.Errorf("%w: %w", ErrRootUnreadable, err)
	}

	scan.removeSubtree(root)
	result := scan.walk(root, info)
	switch {
	case result.ok:
		change.after = contribution{}
		if node, ok := scan.orchestrator.index.Get(root); ok {
			change.after = contributionOf(node)
		}
	case scan.ctx.Err() != nil:
	case targeted:
		change.after = contribution{}
	default:
		return change, fmt.Errorf("%w: %s", ErrRootUnreadable, root)
	}
	return change, nil
}

func (scan *scanRun) walk(root string, info fs.FileInfo) dirResult {
	options := scan.orchestrator.options
	found := make(chan discovery, options.Workers*8)
	walker := &walker{
		ctx:        scan.ctx,
		found:      found,
		sem:        newWorkerPool(options.Workers),
		classifier: scan.orchestrator.classifier,
		estimator:  options.Estimator,
		exclusions: scan.exclusions,
		showHidden: scan.request.ShowHidden,
	}
	if scan.request.Mode == domain.ScanQuick {
		walker.cutoff = scan.request.QuickDepth
	}

	var result dirResult
	go func() {
		defer close(found)
		result = walker.visitRoot(root, info)
	}()
	scan.consume(found)
	return result
}

// consume is the single writer loop: discoveries are indexed in arrival
// order and batched into events.
func (scan *scanRun) consume(found <-chan discovery) {
	ticker := time.NewTicker(scan.orchestrator.options.FlushInterval)
	defer ticker.Stop()
	for {
		select {
		case item, ok := <-found:
			if !ok {
				scan.flush()
				return
			}
			scan.accept(item)
		case <-ticker.C:
			scan.flush()
		}
	}
}

func (scan *scanRun) accept(item discovery) {
	if item.warning != "" {
		scan.flush()
		scan.warn(item.warning)
		return
	}
	for _, node := range item.nodes {
		if !node.IsDirectory {
			scan.files++
			scan.bytes += node.LogicalBytes
		}
		if node.SizeIsEstimated {
			scan.estimated++
		}
		scan.lastPath = node.Path
		scan.pending = append(scan.pending, node)
		if len(scan.pending) >= scan.orchestrator.options.BatchSize {
			scan.flush()
		}
	}
	if scan.limiter.Allow() {
		scan.emitProgress()
	}
}

func (scan *scanRun) flush() {
	if len(scan.pending) == 0 {
		return
	}
	batch := scan.pending
	scan.pending = nil

	scan.orchestrator.writeMu.Lock()
	scan.orchestrator.index.UpsertBatch(batch)
	scan.orchestrator.writeMu.Unlock()
	scan.emitNodes(batch)
}

func (scan *scanRun) removeSubtree(root string) {
	scan.orchestrator.writeMu.Lock()
	defer scan.orchestrator.writeMu.Unlock()
	scan.orchestrator.index.Remove(root)
}

// settle folds a rescanned root's size change into its indexed ancestors
// and re-emits them, deepest first.
func (scan *scanRun) settle(change rootChange) {
	delta := change.after.minus(change.before)
	if delta == (contribution{}) && change.after.estimated == change.before.estimated {
		return
	}
	scan.orchestrator.writeMu.Lock()
	updated := scan.orchestrator.adjustAncestorsLocked(change.path, delta)
	scan.orchestrator.writeMu.Unlock()
	scan.emitNodes(updated)
}

func (scan *scanRun) buildInsight() *domain.Insight {
	root := scan.request.RootPath
	if root == "" && len(scan.request.TargetedPaths) > 0 {
		root = scan.request.TargetedPaths[0]
	}
	children := scan.orchestrator.index.Children(root)
	slices.SortStableFunc(children, func(a, b domain.StorageNode) int {
		return cmp.Compare(b.LogicalBytes, a.LogicalBytes)
	})
	if len(children) > insightLargest {
		children = children[:insightLargest]
	}
	return &domain.Insight{
		RootPath:       root,
		Largest:        children,
		EstimatedNodes: scan.estimated,
		Warnings:       scan.warnings,
	}
}

func (scan *scanRun) enter(phase domain.ScanPhase) {
	scan.session.setPhase(phase)
	scan.emit(domain.ScanEvent{Kind: domain.EventPhaseStarted, Phase: phase})
}

func (scan *scanRun) abort(err error) (domain.ScanPhase, error) {
	scan.warn(err.Error())
	return domain.PhaseCancelled, err
}

func (scan *scanRun) warn(message string) {
	scan.warnings++
	scan.orchestrator.logger.Debug("scan warning", "session", scan.session.ID, "message", message)
	scan.emit(domain.ScanEvent{Kind: domain.EventWarning, Phase: scan.session.Phase(), Message: message})
}

func (scan *scanRun) emitProgress() {
	scan.emit(domain.ScanEvent{
		Kind:  domain.EventProgress,
		Phase: scan.session.Phase(),
		Progress: domain.ScanProgress{
			FilesScanned: scan.files,
			BytesScanned: scan.bytes,
			CurrentPath:  scan.lastPath,
		},
	})
}

func (scan *scanRun) emitNodes(nodes []domain.StorageNode) {
	if len(nodes) == 0 {
		return
	}
	kind := domain.EventNodeIndexedBatch
	if len(nodes) == 1 {
		kind = domain.EventNodeIndexed
	}
	scan.emit(domain.ScanEvent{Kind: kind, Phase: scan.session.Phase(), Nodes: nodes})
}

// emit delivers an event, blocking while the consumer catches up. Once the
// session is cancelled, non-terminal events are dropped.
func (scan *scanRun) emit(event domain.ScanEvent) {
	event.SessionID = scan.session.ID
	if scan.ctx.Err() != nil {
		return
	}
	select {
	case scan.session.events <- event:
	case <-scan.ctx.Done():
	}
}

// excluded reports whether path or any of its ancestors is excluded.
func (scan *scanRun) excluded(path string) bool {
	if len(scan.exclusions) == 0 {
		return false
	}
	for {
		if _, ok := scan.exclusions[path]; ok {
			return true
		}
		parent := filepath.Dir(path)
		if parent == path {
			return false
		}
		path = parent
	}
}

// adjustAncestorsLocked applies delta to every indexed ancestor of path and
// returns the updated ancestors, deepest first. Callers hold writeMu.
func (orchestrator *Orchestrator) adjustAncestorsLocked(path string, delta contribution) []domain.StorageNode {
	var updated []domain.StorageNode
	for current := path; ; {
		parent := filepath.Dir(current)
		if parent == current {
			break
		}
		current = parent

		node, ok := orchestrator.index.Get(parent)
		if !ok {
			continue
		}
		node.LogicalBytes = max(node.LogicalBytes+delta.bytes, 0)
		node.FileCount = max(node.FileCount+delta.files, 0)
		node.DirCount = max(node.DirCount+delta.dirs, 0)
		node.SizeIsEstimated = false
		for _, child := range orchestrator.index.Children(parent) {
			if child.SizeIsEstimated {
				node.SizeIsEstimated = true
				break
			}
		}
		node.Domain, node.RiskLevel = orchestrator.classifier.Classify(node.Path, true, node.LogicalBytes, node.OwnerApp)
		orchestrator.index.Upsert(node)
		updated = append(updated, node)
	}
	return updated
}

// contribution is what one subtree adds to each of its ancestors.
type contribution struct {
	bytes     int64
	files     int64
	dirs      int64
	estimated bool
}

func contributionOf(node domain.StorageNode) contribution {
	if !node.IsDirectory {
		return contribution{bytes: node.LogicalBytes, files: 1, estimated: node.SizeIsEstimated}
	}
	return contribution{
		bytes:     node.LogicalBytes,
		files:     node.FileCount,
		dirs:      node.DirCount + 1,
		estimated: node.SizeIsEstimated,
	}
}

func (value contribution) minus(other contribution) contribution {
	return contribution{bytes: value.bytes - other.bytes, files: value.files - other.files, dirs: value.dirs - other.dirs}
}

func (value contribution) negate() contribution {
	return contribution{}.minus(value)
}

type rootChange struct {
	path   string
	before contribution
	after  contribution
}
