package biz

import (
	"context"
	stderrors "errors"
	"fmt"
	"sync"

	"github.com/kart-io/logger"
	"github.com/panjf2000/ants/v2"

	"github.com/kart-io/helpdesk-x/internal/helpdesk/store"
	"github.com/kart-io/helpdesk-x/internal/model"
	"github.com/kart-io/helpdesk-x/pkg/errors"
	"github.com/kart-io/helpdesk-x/pkg/id"
)

// forceSyncWorkers bounds the re-embedding concurrency of a full resync.
const forceSyncWorkers = 4

// SyncReport summarizes what a full resynchronization changed.
type SyncReport struct {
	FileEntries    int      `json:"file_entries"`
	Reembedded     int      `json:"reembedded"`
	IndexDeleted   int      `json:"index_deleted"`
	RecordsCreated int      `json:"records_created"`
	RecordsDeleted int      `json:"records_deleted"`
	Failures       []string `json:"failures,omitempty"`
}

// SyncStatus reports how the three knowledge base representations line up.
type SyncStatus struct {
	RecordCount    int64       `json:"record_count"`
	FileEntryCount int         `json:"file_entry_count"`
	IndexCount     int64       `json:"index_count"`
	Consistent     bool        `json:"consistent"`
	File           *FileStatus `json:"file"`
}

// SyncEngine keeps the knowledge base consistent across the record store,
// the flat text export and the vector index. Approvals commit to all three
// or to none.
type SyncEngine struct {
	store   store.Factory
	index   store.VectorIndex
	export  *ExportFile
	matcher *MatcherService

	// locks serializes per-incident approvals and per-entry removals.
	locks *keyedMutex
	// syncMu makes ForceSync exclusive against itself and against approvals.
	syncMu sync.RWMutex
}

// NewSyncEngine creates a new SyncEngine.
func NewSyncEngine(factory store.Factory, index store.VectorIndex, export *ExportFile, matcher *MatcherService) *SyncEngine {
	return &SyncEngine{
		store:   factory,
		index:   index,
		export:  export,
		matcher: matcher,
		locks:   newKeyedMutex(),
	}
}

// Approve turns an open incident flagged for approval into a knowledge base
// entry. The record row is written first, then the export block, then the
// vector, and any later failure rolls the earlier writes back before the
// error is returned. On success the incident moves open -> resolved.
func (e *SyncEngine) Approve(ctx context.Context, incidentID, solutionSteps string) (*model.KBEntry, error) {
	if solutionSteps == "" {
		return nil, errors.ErrValidation.WithMessage("solution steps must not be empty")
	}

	e.syncMu.RLock()
	defer e.syncMu.RUnlock()
	unlock := e.locks.Lock("incident:" + incidentID)
	defer unlock()

	incident, err := e.store.Incidents().Get(ctx, incidentID)
	if err != nil {
		return nil, err
	}
	if incident.Status != model.StatusOpen {
		return nil, errors.ErrInvalidTransition.WithMessagef(
			"incident %s is %s, only open incidents can be approved", incidentID, incident.Status)
	}
	if !incident.NeedsKBApproval {
		return nil, errors.ErrValidation.WithMessagef("incident %s is not waiting for approval", incidentID)
	}

	entry := &model.KBEntry{
		KBID:             id.NewKBID(),
		UseCase:          incident.UseCase,
		RequiredInfo:     incident.RequiredInfo,
		Questions:        incident.Questions,
		SolutionSteps:    solutionSteps,
		SourceIncidentID: incident.IncidentID,
	}

	if err := e.store.KBEntries().Create(ctx, entry); err != nil {
		return nil, err
	}
	if err := e.export.Append(entry); err != nil {
		e.rollbackRecord(ctx, entry.KBID)
		return nil, err
	}

	vec, err := e.matcher.Embed(ctx, entry.UseCase)
	if err != nil {
		e.rollbackExport(entry.KBID)
		e.rollbackRecord(ctx, entry.KBID)
		return nil, err
	}
	if err := e.index.Upsert(ctx, entry.KBID, entry.UseCase, vec); err != nil {
		e.rollbackExport(entry.KBID)
		e.rollbackRecord(ctx, entry.KBID)
		return nil, errors.ErrVectorStore.WithCause(err)
	}

	if err := e.store.Incidents().UpdateStatus(ctx, incidentID, model.StatusOpen, model.StatusResolved); err != nil {
		e.rollbackIndex(ctx, entry.KBID)
		e.rollbackExport(entry.KBID)
		e.rollbackRecord(ctx, entry.KBID)
		return nil, err
	}

	incident.Status = model.StatusResolved
	incident.NeedsKBApproval = false
	incident.SolutionSteps = solutionSteps
	incident.KBID = &entry.KBID
	if err := e.store.Incidents().Update(ctx, incident); err != nil {
		// Entry and transition are committed at this point, flag cleanup is
		// best effort and the inconsistency is only the stale approval flag.
		logger.Errorw("清理审批标记失败", "incident_id", incidentID, "error", err)
	}

	logger.Infow("知识库条目已入库", "kb_id", entry.KBID, "incident_id", incidentID)
	return entry, nil
}

// Reject clears the approval flag of an open incident without touching the
// knowledge base.
func (e *SyncEngine) Reject(ctx context.Context, incidentID string) error {
	unlock := e.locks.Lock("incident:" + incidentID)
	defer unlock()

	incident, err := e.store.Incidents().Get(ctx, incidentID)
	if err != nil {
		return err
	}
	if !incident.NeedsKBApproval {
		return nil
	}
	incident.NeedsKBApproval = false
	return e.store.Incidents().Update(ctx, incident)
}

// Remove deletes an entry from all three representations, index first so a
// half-finished removal can never leave a searchable vector pointing at a
// missing record. Every layer tolerates the entry already being gone, so
// retries converge.
func (e *SyncEngine) Remove(ctx context.Context, kbID string) error {
	e.syncMu.RLock()
	defer e.syncMu.RUnlock()
	unlock := e.locks.Lock("kb:" + kbID)
	defer unlock()

	if err := e.index.Delete(ctx, kbID); err != nil {
		return errors.ErrVectorStore.WithCause(err)
	}
	if err := e.export.Remove(kbID); err != nil {
		return err
	}
	if err := e.store.KBEntries().Delete(ctx, kbID); err != nil {
		return err
	}
	logger.Infow("知识库条目已删除", "kb_id", kbID)
	return nil
}

// ForceSync rebuilds the record store and the vector index from the flat
// text export, which is treated as ground truth. File entries missing from
// the index get embedded through a bounded worker pool, index vectors
// without a file entry are deleted, and record rows are created or removed
// to match. A run against already consistent representations changes
// nothing, so the watcher can trigger it freely.
func (e *SyncEngine) ForceSync(ctx context.Context) (*SyncReport, error) {
	e.syncMu.Lock()
	defer e.syncMu.Unlock()

	fileEntries, err := e.export.Parse()
	if err != nil {
		return nil, err
	}

	report := &SyncReport{FileEntries: len(fileEntries)}
	fileIDs := make(map[string]struct{}, len(fileEntries))
	for _, entry := range fileEntries {
		fileIDs[entry.KBID] = struct{}{}
	}

	indexIDs, err := e.index.ListIDs(ctx)
	if err != nil {
		return report, errors.ErrVectorStore.WithCause(err)
	}
	indexed := make(map[string]struct{}, len(indexIDs))
	for _, kbID := range indexIDs {
		indexed[kbID] = struct{}{}
	}

	pool, err := ants.NewPool(forceSyncWorkers)
	if err != nil {
		return nil, errors.ErrInternal.WithCause(err)
	}
	defer pool.Release()

	var (
		wg       sync.WaitGroup
		resultMu sync.Mutex
	)
	for _, entry := range fileEntries {
		if _, ok := indexed[entry.KBID]; ok {
			continue
		}
		entry := entry
		wg.Add(1)
		if err := pool.Submit(func() {
			defer wg.Done()
			vec, embedErr := e.matcher.Embed(ctx, entry.UseCase)
			if embedErr == nil {
				embedErr = e.index.Upsert(ctx, entry.KBID, entry.UseCase, vec)
			}
			resultMu.Lock()
			defer resultMu.Unlock()
			if embedErr != nil {
				report.Failures = append(report.Failures,
					fmt.Sprintf("reembed %s: %v", entry.KBID, embedErr))
				return
			}
			report.Reembedded++
		}); err != nil {
			wg.Done()
			resultMu.Lock()
			report.Failures = append(report.Failures,
				fmt.Sprintf("schedule %s: %v", entry.KBID, err))
			resultMu.Unlock()
		}
	}
	wg.Wait()

	// Drop index vectors the file no longer contains.
	for _, kbID := range indexIDs {
		if _, ok := fileIDs[kbID]; ok {
			continue
		}
		if err := e.index.Delete(ctx, kbID); err != nil {
			report.Failures = append(report.Failures, fmt.Sprintf("index delete %s: %v", kbID, err))
			continue
		}
		report.IndexDeleted++
	}

	// Reconcile record rows with the file.
	records, err := e.store.KBEntries().All(ctx)
	if err != nil {
		return report, err
	}
	recordIDs := make(map[string]struct{}, len(records))
	for _, rec := range records {
		recordIDs[rec.KBID] = struct{}{}
		if _, ok := fileIDs[rec.KBID]; ok {
			continue
		}
		if err := e.store.KBEntries().Delete(ctx, rec.KBID); err != nil {
			report.Failures = append(report.Failures, fmt.Sprintf("record delete %s: %v", rec.KBID, err))
			continue
		}
		report.RecordsDeleted++
	}
	for _, entry := range fileEntries {
		if _, ok := recordIDs[entry.KBID]; ok {
			continue
		}
		if err := e.store.KBEntries().Create(ctx, entry); err != nil {
			report.Failures = append(report.Failures, fmt.Sprintf("record create %s: %v", entry.KBID, err))
			continue
		}
		report.RecordsCreated++
	}

	logger.Infow("知识库全量同步完成",
		"file_entries", report.FileEntries,
		"reembedded", report.Reembedded,
		"index_deleted", report.IndexDeleted,
		"records_created", report.RecordsCreated,
		"records_deleted", report.RecordsDeleted,
		"failures", len(report.Failures),
	)
	if len(report.Failures) > 0 {
		return report, errors.ErrSyncInconsistency.WithMessagef(
			"force sync finished with %d failures", len(report.Failures))
	}
	return report, nil
}

// Status counts entries in all three representations and reports whether
// they agree.
func (e *SyncEngine) Status(ctx context.Context) (*SyncStatus, error) {
	fileStatus, err := e.export.Status()
	if err != nil {
		return nil, err
	}
	recordCount, err := e.store.KBEntries().Count(ctx)
	if err != nil {
		return nil, err
	}
	indexCount, err := e.index.Count(ctx)
	if err != nil {
		return nil, errors.ErrVectorStore.WithCause(err)
	}

	return &SyncStatus{
		RecordCount:    recordCount,
		FileEntryCount: fileStatus.EntryCount,
		IndexCount:     indexCount,
		Consistent:     recordCount == int64(fileStatus.EntryCount) && recordCount == indexCount,
		File:           fileStatus,
	}, nil
}

// Entry returns one knowledge base entry by id.
func (e *SyncEngine) Entry(ctx context.Context, kbID string) (*model.KBEntry, error) {
	return e.store.KBEntries().Get(ctx, kbID)
}

// Entries lists knowledge base entries with pagination.
func (e *SyncEngine) Entries(ctx context.Context, offset, limit int) (*model.KBEntryList, error) {
	total, items, err := e.store.KBEntries().List(ctx, offset, limit)
	if err != nil {
		return nil, err
	}
	return &model.KBEntryList{TotalCount: total, Items: items}, nil
}

func (e *SyncEngine) rollbackRecord(ctx context.Context, kbID string) {
	if err := e.store.KBEntries().Delete(ctx, kbID); err != nil && !stderrors.Is(err, errors.ErrKBEntryNotFound) {
		logger.Errorw("回滚知识库记录失败", "kb_id", kbID, "error", err)
	}
}

func (e *SyncEngine) rollbackExport(kbID string) {
	if err := e.export.Remove(kbID); err != nil {
		logger.Errorw("回滚导出文件失败", "kb_id", kbID, "error", err)
	}
}

func (e *SyncEngine) rollbackIndex(ctx context.Context, kbID string) {
	if err := e.index.Delete(ctx, kbID); err != nil {
		logger.Errorw("回滚向量索引失败", "kb_id", kbID, "error", err)
	}
}
