package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"tonic/internal/classify"
	"tonic/internal/domain"
	"tonic/internal/store"
	"tonic/internal/trash"
	"tonic/internal/volume"
)

type CleanupOptions struct {
	Trash      trash.Facility
	Journal    UndoJournal
	Exclusions ExclusionList
	Logger     *slog.Logger
	Now        func() time.Time
}

// CleanupService prepares, executes and undoes cleanup plans. Plans live in
// memory and execute at most once; undo tokens go to the journal.
type CleanupService struct {
	classifier *classify.Classifier
	trash      trash.Facility
	journal    UndoJournal
	exclusions ExclusionList
	logger     *slog.Logger
	now        func() time.Time

	mu    sync.Mutex
	plans map[string]*planEntry
}

type planEntry struct {
	plan     domain.CleanupPlan
	executed bool
}

func NewCleanupService(classifier *classify.Classifier, options CleanupOptions) *CleanupService {
	service := &CleanupService{
		classifier: classifier,
		trash:      options.Trash,
		journal:    options.Journal,
		exclusions: options.Exclusions,
		logger:     options.Logger,
		now:        options.Now,
		plans:      make(map[string]*planEntry),
	}
	if service.journal == nil {
		service.journal = NewMemoryJournal()
	}
	if service.exclusions == nil {
		service.exclusions = NewMemoryExclusions()
	}
	if service.logger == nil {
		service.logger = slog.New(slog.DiscardHandler)
	}
	service.logger = service.logger.With("component", "cleanup")
	if service.now == nil {
		service.now = time.Now
	}
	return service
}

// PrepareCleanupPlan builds a dry-run plan without touching the filesystem.
// Protected nodes stay in the plan with a BlockedReason; a node inside
// another non-blocked candidate is covered by it and dropped.
func (service *CleanupService) PrepareCleanupPlan(nodes []domain.StorageNode, action domain.ActionType) (domain.CleanupPlan, error) {
	if !action.Valid() {
		return domain.CleanupPlan{}, fmt.Errorf("action %q: %w", action, ErrInvalidRequest)
	}

	byPath := make(map[string]domain.StorageNode, len(nodes))
	for _, node := range nodes {
		if node.Path == "" {
			continue
		}
		node.Path = domain.CanonicalPath(node.Path)
		byPath[node.Path] = node
	}
	paths := make([]string, 0, len(byPath))
	for path := range byPath {
		paths = append(paths, path)
	}
	slices.Sort(paths)

	var candidates []domain.CleanupCandidate
	var dryRun domain.DryRunResult
	var covering []string
	for _, path := range paths {
		if slices.ContainsFunc(covering, func(root string) bool { return isWithin(root, path) }) {
			dryRun.CoveredItems++
			continue
		}

		candidate := service.candidate(byPath[path], action)
		candidates = append(candidates, candidate)
		if candidate.Blocked() {
			dryRun.BlockedItems++
			continue
		}
		covering = append(covering, path)
		dryRun.CleanableItems++
		dryRun.CleanableBytes += candidate.EstimatedReclaimBytes
	}

	plan := domain.NewCleanupPlan(uuid.NewString(), action, service.now().UTC(), candidates, dryRun)
	service.mu.Lock()
	service.plans[plan.ID] = &planEntry{plan: plan}
	service.mu.Unlock()

	service.logger.Info("cleanup plan prepared", "plan", plan.ID, "action", action,
		"cleanable", dryRun.CleanableItems, "bytes", dryRun.CleanableBytes,
		"blocked", dryRun.BlockedItems, "covered", dryRun.CoveredItems)
	return plan, nil
}

func (service *CleanupService) candidate(node domain.StorageNode, action domain.ActionType) domain.CleanupCandidate {
	nodeDomain, risk := node.Domain, node.RiskLevel
	if nodeDomain == "" {
		nodeDomain, risk = service.classifier.Classify(node.Path, node.IsDirectory, node.LogicalBytes, node.OwnerApp)
	}
	candidate := domain.CleanupCandidate{
		Path:                  node.Path,
		IsDirectory:           node.IsDirectory,
		EstimatedReclaimBytes: node.LogicalBytes,
		RiskLevel:             risk,
		Domain:                nodeDomain,
		SafeReason:            safeReason(nodeDomain, node.SizeIsEstimated),
	}
	switch {
	case service.classifier.IsProtected(node.Path):
		candidate.BlockedReason = "matches the protected-path policy"
	case risk == domain.RiskProtected:
		candidate.BlockedReason = "classified as protected"
	}
	if candidate.Blocked() || action == domain.ActionExcludeForever {
		candidate.EstimatedReclaimBytes = 0
	}
	return candidate
}

func safeReason(nodeDomain domain.Domain, estimated bool) string {
	var reason string
	switch nodeDomain {
	case domain.DomainDeveloper:
		reason = "developer cache or build output; tools regenerate it"
	case domain.DomainCloud:
		reason = "cloud-synced; the remote copy remains"
	case domain.DomainApplications:
		reason = "application data; the application may recreate it"
	case domain.DomainUserFiles:
		reason = "user file selected for review"
	case domain.DomainSystem:
		reason = "system location; review before removing"
	default:
		reason = "selected for cleanup"
	}
	if estimated {
		reason += " (size estimated)"
	}
	return reason
}

// Plan returns a prepared plan by ID.
func (service *CleanupService) Plan(id string) (domain.CleanupPlan, bool) {
	service.mu.Lock()
	defer service.mu.Unlock()
	entry, ok := service.plans[id]
	if !ok {
		return domain.CleanupPlan{}, false
	}
	return entry.plan, true
}

// ExecuteCleanup runs a plan's non-blocked candidates. Item failures are
// collected in the result; only an unknown or spent plan, or an unusable
// trash or exclusion list, fails the whole call.
func (service *CleanupService) ExecuteCleanup(ctx context.Context, planID string) (domain.CleanupExecutionResult, error) {
	entry, err := service.claim(planID)
	if err != nil {
		return domain.CleanupExecutionResult{PlanID: planID}, err
	}
	plan := entry.plan
	result := domain.CleanupExecutionResult{PlanID: plan.ID, ActionType: plan.ActionType}

	if plan.ActionType == domain.ActionMoveToTrash {
		if service.trash == nil {
			service.release(entry)
			return result, fmt.Errorf("%w: no trash configured", ErrTrashUnavailable)
		}
		if err := service.trash.Ready(); err != nil {
			service.release(entry)
			return result, fmt.Errorf("%w: %w", ErrTrashUnavailable, err)
		}
	}

	executable := plan.Executable()
	mutates := plan.ActionType != domain.ActionExcludeForever
	if mutates && len(executable) > 0 {
		result.BeforeUsedBytes = volume.Used(existingAncestor(executable[0].Path))
	}

	var records []domain.TrashRecord
	for _, candidate := range executable {
		if ctx.Err() != nil {
			result.Cancelled = true
			break
		}
		var err error
		switch plan.ActionType {
		case domain.ActionMoveToTrash:
			var record domain.TrashRecord
			record, err = service.trash.Put(candidate.Path)
			if record.TrashPath != "" {
				record.Bytes = candidate.EstimatedReclaimBytes
				records = append(records, record)
				if err != nil && !errors.Is(err, trash.ErrSourceRemains) {
					service.logger.Warn("trashed without info record", "path", candidate.Path, "error", err)
					err = nil
				}
			}
		case domain.ActionExcludeForever:
			err = service.exclusions.AddExclusion(ctx, candidate.Path)
		case domain.ActionSecureDelete:
			err = wipePath(ctx, candidate.Path)
		}
		if err != nil {
			result.FailedItems++
			result.Failed = append(result.Failed, domain.ItemFailure{Path: candidate.Path, Message: err.Error()})
			service.logger.Debug("cleanup item failed", "plan", plan.ID, "path", candidate.Path, "error", err)
			continue
		}
		if plan.ActionType == domain.ActionExcludeForever {
			result.ExcludedItems++
			result.ExcludedPaths = append(result.ExcludedPaths, candidate.Path)
			continue
		}
		result.CleanedItems++
		result.CleanedBytes += candidate.EstimatedReclaimBytes
		result.CleanedPaths = append(result.CleanedPaths, candidate.Path)
	}

	if mutates && len(executable) > 0 {
		result.AfterUsedBytes = volume.Used(existingAncestor(executable[0].Path))
	}

	persistCtx := context.WithoutCancel(ctx)
	if len(records) > 0 {
		token := domain.UndoToken{
			ID:        uuid.NewString(),
			PlanID:    plan.ID,
			CreatedAt: service.now().UTC(),
			Records:   records,
		}
		result.UndoToken = &token
		if err := service.journal.SaveUndoToken(persistCtx, token); err != nil {
			service.logger.Error("save undo token", "plan", plan.ID, "error", err)
		}
	}
	execution := domain.Execution{PlanID: plan.ID, ActionType: plan.ActionType, ExecutedAt: service.now().UTC()}
	if err := service.journal.RecordExecution(persistCtx, execution); err != nil {
		service.logger.Error("record execution", "plan", plan.ID, "error", err)
	}

	service.logger.Info("cleanup executed", "plan", plan.ID, "action", plan.ActionType,
		"cleaned", result.CleanedItems, "bytes", result.CleanedBytes,
		"excluded", result.ExcludedItems, "failed", result.FailedItems, "cancelled", result.Cancelled)
	return result, nil
}

func (service *CleanupService) claim(planID string) (*planEntry, error) {
	service.mu.Lock()
	defer service.mu.Unlock()
	entry, ok := service.plans[planID]
	if !ok {
		return nil, fmt.Errorf("%s: %w", planID, ErrPlanNotFound)
	}
	if entry.executed {
		return nil, fmt.Errorf("%s: %w", planID, ErrPlanExecuted)
	}
	entry.executed = true
	return entry, nil
}

func (service *CleanupService) release(entry *planEntry) {
	service.mu.Lock()
	defer service.mu.Unlock()
	entry.executed = false
}

// UndoLast restores the most recently executed plan. It reports false when
// no plan ran, when that plan was not a moveToTrash plan, when its token is
// already used up, or when nothing could be restored. Records that fail to
// restore are kept in the journal under the same token.
func (service *CleanupService) UndoLast(ctx context.Context) (UndoResult, bool, error) {
	last, err := service.journal.LastExecution(ctx)
	if errors.Is(err, store.ErrNotFound) {
		return UndoResult{}, false, nil
	}
	if err != nil {
		return UndoResult{}, false, fmt.Errorf("load last execution: %w", err)
	}
	if last.ActionType != domain.ActionMoveToTrash {
		service.logger.Debug("last plan is not reversible", "plan", last.PlanID, "action", last.ActionType)
		return UndoResult{PlanID: last.PlanID}, false, nil
	}
	token, err := service.journal.UndoTokenForPlan(ctx, last.PlanID)
	if errors.Is(err, store.ErrNotFound) {
		return UndoResult{PlanID: last.PlanID}, false, nil
	}
	if err != nil {
		return UndoResult{}, false, fmt.Errorf("load undo token: %w", err)
	}
	if service.trash == nil {
		return UndoResult{}, false, fmt.Errorf("%w: no trash configured", ErrTrashUnavailable)
	}
	if err := service.trash.Ready(); err != nil {
		return UndoResult{}, false, fmt.Errorf("%w: %w", ErrTrashUnavailable, err)
	}
	if err := service.journal.DeleteUndoToken(ctx, token.ID); err != nil {
		return UndoResult{}, false, fmt.Errorf("delete undo token: %w", err)
	}

	result := UndoResult{TokenID: token.ID, PlanID: token.PlanID}
	var remaining []domain.TrashRecord
	for _, record := range token.Records {
		if err := service.trash.Restore(record); err != nil {
			remaining = append(remaining, record)
			result.Failed = append(result.Failed, domain.ItemFailure{Path: record.OriginalPath, Message: err.Error()})
			continue
		}
		result.Restored = append(result.Restored, record.OriginalPath)
	}
	if len(remaining) > 0 {
		token.Records = remaining
		if err := service.journal.SaveUndoToken(context.WithoutCancel(ctx), token); err != nil {
			service.logger.Error("keep unrestored records", "token", token.ID, "error", err)
		}
	}

	service.logger.Info("cleanup undone", "plan", token.PlanID, "restored", len(result.Restored), "failed", len(result.Failed))
	return result, len(result.Restored) > 0, nil
}
