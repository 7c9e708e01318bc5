package service

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"hudi-scan-bridge/internal/columnar"
	"hudi-scan-bridge/internal/foreign"
	"hudi-scan-bridge/internal/hudi"
	"hudi-scan-bridge/internal/middleware"
	"hudi-scan-bridge/internal/model"
	"hudi-scan-bridge/internal/scan"
	"hudi-scan-bridge/internal/storage"
	"hudi-scan-bridge/internal/utils"
)

// ScanService owns scan sessions: one session per open scan range, each
// wrapping a reader that is driven by pull requests until end of stream.
type ScanService interface {
	OpenScan(ctx context.Context, req *model.ScanRequest) (*model.ScanResponse, error)
	NextBatch(ctx context.Context, scanID string) (*model.BatchResponse, error)
	CloseScan(ctx context.Context, scanID string) error
	GetScanStatus(scanID string) (*model.ScanStatus, error)
}

// ScanSession is one open scan range.
type ScanSession struct {
	ID        string
	Reader    scan.Reader
	Kind      string // "foreign" or "native"
	Slots     []model.SlotDescriptor
	BatchSize int

	Batches     int64
	RowsFetched int64
	Finished    bool
	CreatedAt   time.Time
	ExpiresAt   time.Time

	mutex sync.Mutex
}

// ScanSessionManager tracks open sessions and reaps expired ones.
type ScanSessionManager struct {
	sessions map[string]*ScanSession
	mutex    sync.RWMutex
	ttl      time.Duration
	max      int
}

// NewScanSessionManager creates a session manager and starts its cleanup
// goroutine.
func NewScanSessionManager(ttl time.Duration, max int) *ScanSessionManager {
	sm := &ScanSessionManager{
		sessions: make(map[string]*ScanSession),
		ttl:      ttl,
		max:      max,
	}

	// Start cleanup goroutine
	go sm.cleanupSessions()

	return sm
}

// Store registers a session, enforcing the session cap.
func (sm *ScanSessionManager) Store(session *ScanSession) error {
	sm.mutex.Lock()
	defer sm.mutex.Unlock()

	if sm.max > 0 && len(sm.sessions) >= sm.max {
		return utils.NewErrorBuilder(utils.ErrCodeServiceUnavailable).
			WithDetails("maximum concurrent scans reached").Build()
	}

	sm.sessions[session.ID] = session
	return nil
}

// Get retrieves a live session.
func (sm *ScanSessionManager) Get(scanID string) (*ScanSession, error) {
	sm.mutex.RLock()
	defer sm.mutex.RUnlock()

	session, exists := sm.sessions[scanID]
	if !exists {
		return nil, utils.NewErrorBuilder(utils.ErrCodeScanNotFound).WithDetails(scanID).Build()
	}

	if time.Now().After(session.ExpiresAt) {
		return nil, utils.NewErrorBuilder(utils.ErrCodeScanExpired).WithDetails(scanID).Build()
	}

	return session, nil
}

// Delete removes a session.
func (sm *ScanSessionManager) Delete(scanID string) {
	sm.mutex.Lock()
	defer sm.mutex.Unlock()

	delete(sm.sessions, scanID)
}

// Count returns the number of tracked sessions.
func (sm *ScanSessionManager) Count() int {
	sm.mutex.RLock()
	defer sm.mutex.RUnlock()
	return len(sm.sessions)
}

// cleanupSessions periodically reaps expired sessions and abandons their
// readers so foreign resources are not held past the TTL.
func (sm *ScanSessionManager) cleanupSessions() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		sm.mutex.Lock()
		now := time.Now()
		var expired []*ScanSession
		for id, session := range sm.sessions {
			if now.After(session.ExpiresAt) {
				expired = append(expired, session)
				delete(sm.sessions, id)
			}
		}
		sm.mutex.Unlock()

		for _, session := range expired {
			session.mutex.Lock()
			if !session.Finished {
				session.Reader.Abandon(context.Background())
				middleware.RecordScanClosed(session.Kind, "expired", time.Since(session.CreatedAt))
			}
			session.mutex.Unlock()
		}
	}
}

type scanService struct {
	rt        foreign.Runtime
	resolver  *storage.Resolver
	metadata  *hudi.MetadataClient
	sessions  *ScanSessionManager
	batchSize int
	ttl       time.Duration
}

// ScanServiceOptions configures the scan service.
type ScanServiceOptions struct {
	BatchSize   int
	SessionTTL  time.Duration
	MaxSessions int
}

// NewScanService creates a scan service over the foreign runtime and
// storage resolver.
func NewScanService(rt foreign.Runtime, resolver *storage.Resolver, opts ScanServiceOptions) ScanService {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 4064
	}
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = 30 * time.Minute
	}

	var metadata *hudi.MetadataClient
	if resolver != nil {
		metadata = hudi.NewMetadataClient(resolver)
	}

	return &scanService{
		rt:        rt,
		resolver:  resolver,
		metadata:  metadata,
		sessions:  NewScanSessionManager(opts.SessionTTL, opts.MaxSessions),
		batchSize: opts.BatchSize,
		ttl:       opts.SessionTTL,
	}
}

// OpenScan constructs the reader for the split, pushes the value ranges
// down, opens the scanner, and registers the session.
func (s *scanService) OpenScan(ctx context.Context, req *model.ScanRequest) (*model.ScanResponse, error) {
	kind := "native"
	if req.Split.HasDeltaLogs() {
		kind = "foreign"
	}

	// An unset instant means the planner did not pin a snapshot: resolve
	// the latest completed instant from the table timeline, rejecting
	// splits inconsistent with the table type before any scanner exists.
	if req.Split.InstantTime == "" && s.metadata != nil {
		meta, err := s.metadata.LoadTableMetadata(ctx, req.Split.BasePath, req.Properties)
		if err != nil {
			middleware.RecordScanError(kind, "metadata")
			return nil, utils.NewOpenError(err, err.Error())
		}
		if req.Split.HasDeltaLogs() && meta.TableType == hudi.TableTypeCopyOnWrite {
			middleware.RecordScanError(kind, "metadata")
			return nil, utils.NewErrorBuilder(utils.ErrCodeInvalidRequest).
				WithDetails("copy-on-write table split carries delta logs").Build()
		}
		latest, err := s.metadata.LatestInstant(ctx, req.Split.BasePath, req.Properties)
		if err != nil {
			middleware.RecordScanError(kind, "metadata")
			return nil, utils.NewOpenError(err, err.Error())
		}
		req.Split.InstantTime = latest.Timestamp
	}

	batchSize := req.BatchSize
	if batchSize <= 0 {
		batchSize = s.batchSize
	}

	scanParams := &model.ScanRangeParams{Properties: req.Properties, BatchSize: batchSize}
	reader, err := scan.NewReader(ctx, s.rt, s.resolver, scanParams, &req.Split, req.Slots)
	if err != nil {
		middleware.RecordScanError(kind, "construct")
		return nil, err
	}

	ranges := model.NewValueRangeMap()
	for col, r := range req.ValueRanges {
		ranges.Set(col, r)
	}

	if err := reader.InitReader(ctx, ranges); err != nil {
		reader.Abandon(ctx)
		middleware.RecordScanError(kind, initStage(err))
		return nil, err
	}

	session := &ScanSession{
		ID:        uuid.New().String(),
		Reader:    reader,
		Kind:      kind,
		Slots:     req.Slots,
		BatchSize: batchSize,
		CreatedAt: time.Now(),
		ExpiresAt: time.Now().Add(s.ttl),
	}

	if err := s.sessions.Store(session); err != nil {
		reader.Abandon(ctx)
		return nil, err
	}
	middleware.RecordScanOpened(kind)

	nameToType, missing := reader.GetColumns()
	columns := make([]model.ColumnInfo, 0, len(req.Slots))
	for _, slot := range req.Slots {
		columns = append(columns, model.ColumnInfo{Name: slot.Name, Type: nameToType[slot.Name]})
	}

	return &model.ScanResponse{
		ScanID:  session.ID,
		Columns: columns,
		Missing: missing,
		State:   "opened",
	}, nil
}

// NextBatch pulls the next batch from the session's reader. On end of
// stream the reader has already closed its resources and the session is
// removed before returning.
func (s *scanService) NextBatch(ctx context.Context, scanID string) (*model.BatchResponse, error) {
	session, err := s.sessions.Get(scanID)
	if err != nil {
		return nil, err
	}

	session.mutex.Lock()
	defer session.mutex.Unlock()

	if session.Finished {
		return nil, utils.NewErrorBuilder(utils.ErrCodeScanFinished).WithDetails(scanID).Build()
	}

	block, err := columnar.NewBlock(session.Slots)
	if err != nil {
		return nil, err
	}
	defer block.Release()

	rows, eof, err := session.Reader.GetNextBlock(ctx, block)
	if err != nil {
		session.Finished = true
		s.sessions.Delete(scanID)
		middleware.RecordScanError(session.Kind, "read")
		middleware.RecordScanClosed(session.Kind, "failed", time.Since(session.CreatedAt))
		return nil, err
	}

	session.Batches++
	session.RowsFetched += int64(rows)
	session.ExpiresAt = time.Now().Add(s.ttl)
	middleware.RecordScanBatch(session.Kind, rows)

	if eof {
		session.Finished = true
		s.sessions.Delete(scanID)
		middleware.RecordScanClosed(session.Kind, "completed", time.Since(session.CreatedAt))
	}

	return &model.BatchResponse{
		ScanID:   scanID,
		Rows:     block.Rows(),
		RowCount: rows,
		EOF:      eof,
	}, nil
}

// CloseScan tears a session down before end of stream.
func (s *scanService) CloseScan(ctx context.Context, scanID string) error {
	session, err := s.sessions.Get(scanID)
	if err != nil {
		return err
	}

	session.mutex.Lock()
	defer session.mutex.Unlock()

	s.sessions.Delete(scanID)
	if !session.Finished {
		session.Finished = true
		session.Reader.Abandon(ctx)
		middleware.RecordScanClosed(session.Kind, "cancelled", time.Since(session.CreatedAt))
	}
	return nil
}

// GetScanStatus reports a session's progress.
func (s *scanService) GetScanStatus(scanID string) (*model.ScanStatus, error) {
	session, err := s.sessions.Get(scanID)
	if err != nil {
		return nil, err
	}

	session.mutex.Lock()
	defer session.mutex.Unlock()

	state := "opened"
	if session.Finished {
		state = "finished"
	}

	return &model.ScanStatus{
		ScanID:      session.ID,
		State:       state,
		BatchSize:   session.BatchSize,
		Batches:     session.Batches,
		RowsFetched: session.RowsFetched,
		CreatedAt:   session.CreatedAt.Format(time.RFC3339),
		ExpiresAt:   session.ExpiresAt.Format(time.RFC3339),
	}, nil
}

// initStage classifies an init-phase failure for the error counter.
func initStage(err error) string {
	switch {
	case utils.IsErrorType(err, utils.ErrCodePushdown):
		return "init"
	case utils.IsErrorType(err, utils.ErrCodeOpen):
		return "open"
	default:
		return "init"
	}
}
