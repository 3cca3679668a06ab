package audit

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/kasuganosora/arenacore/game/fx"
	"github.com/kasuganosora/arenacore/middleware"
	"github.com/kasuganosora/arenacore/model"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Actions recorded besides the fx event types.
const (
	ActionSessionOpen  = "session_open"
	ActionSessionClose = "session_close"
	ActionKill         = "kill"
	ActionBan          = "ban"
)

// AuditEntry holds one audit event to be logged.
type AuditEntry struct {
	TraceID    string
	CharID     *int64
	AccountID  *int64
	CharName   string
	Action     string
	SkillID    string
	Request    interface{}
	Response   interface{}
	Error      string
	IP         string
	DurationMs int
}

// Service logs audit entries asynchronously in batches.
type Service struct {
	db     *gorm.DB
	ch     chan *model.AuditLog
	stopCh chan struct{}
	once   sync.Once
	wg     sync.WaitGroup
	logger *zap.Logger
}

const (
	queueSize     = 1024
	batchSize     = 100
	flushInterval = 2 * time.Second
)

// New creates a new audit Service and starts its background worker.
func New(db *gorm.DB, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &Service{
		db:     db,
		ch:     make(chan *model.AuditLog, queueSize),
		stopCh: make(chan struct{}),
		logger: logger,
	}
	svc.wg.Add(1)
	go svc.worker()
	return svc
}

// Log enqueues an audit entry for async DB write. A full queue drops the entry.
func (svc *Service) Log(entry AuditEntry) {
	record := &model.AuditLog{
		TraceID:    entry.TraceID,
		CharID:     entry.CharID,
		AccountID:  entry.AccountID,
		CharName:   entry.CharName,
		Action:     entry.Action,
		SkillID:    entry.SkillID,
		Request:    encode(entry.Request),
		Response:   encode(entry.Response),
		Error:      entry.Error,
		IP:         entry.IP,
		DurationMs: entry.DurationMs,
	}
	select {
	case svc.ch <- record:
	default:
		svc.logger.Warn("audit channel full, dropping entry",
			zap.String("action", entry.Action))
	}
}

func encode(v interface{}) datatypes.JSON {
	if v == nil {
		return nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return datatypes.JSON(b)
}

// Attach records progression events emitted through center.
func (svc *Service) Attach(center *fx.Center) {
	for _, ev := range []string{fx.LevelUp, fx.Death, fx.SkillUpgraded, fx.Loot} {
		center.Register(ev, 100, "audit", svc.onEvent)
	}
}

func (svc *Service) onEvent(ctx context.Context, ev fx.Event) error {
	action := ev.Type
	if ev.Type == fx.Death {
		action = ActionKill
	}
	charID := ev.CharID
	entry := AuditEntry{
		TraceID: middleware.TraceIDFrom(ctx),
		CharID:  &charID,
		Action:  action,
		SkillID: ev.SkillID,
	}
	data := map[string]any{}
	for k, v := range ev.Data {
		data[k] = v
	}
	if ev.TargetID != "" {
		data["target_id"] = ev.TargetID
	}
	if len(data) > 0 {
		entry.Response = data
	}
	svc.Log(entry)
	return nil
}

// Query filters stored entries, newest first. Zero values match everything.
type Query struct {
	CharID int64
	Action string
	Limit  int
}

// Find returns stored entries matching q.
func (svc *Service) Find(ctx context.Context, q Query) ([]model.AuditLog, error) {
	limit := q.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	tx := svc.db.WithContext(ctx).Order("id DESC").Limit(limit)
	if q.CharID != 0 {
		tx = tx.Where("char_id = ?", q.CharID)
	}
	if q.Action != "" {
		tx = tx.Where("action = ?", q.Action)
	}
	var logs []model.AuditLog
	if err := tx.Find(&logs).Error; err != nil {
		return nil, err
	}
	return logs, nil
}

// Stop flushes remaining entries and shuts down the worker.
// It blocks until the worker goroutine has finished.
func (svc *Service) Stop(_ context.Context) {
	svc.once.Do(func() { close(svc.stopCh) })
	svc.wg.Wait()
}

func (svc *Service) worker() {
	defer svc.wg.Done()
	ticker := time.NewTicker(flushInterval)
	defer ticker.Stop()

	batch := make([]*model.AuditLog, 0, batchSize)

	flush := func() {
		if len(batch) == 0 {
			return
		}
		if err := svc.db.Create(&batch).Error; err != nil {
			svc.logger.Error("audit batch write failed", zap.Int("size", len(batch)), zap.Error(err))
		}
		batch = batch[:0]
	}

	for {
		select {
		case entry := <-svc.ch:
			batch = append(batch, entry)
			if len(batch) >= batchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		case <-svc.stopCh:
			for {
				select {
				case entry := <-svc.ch:
					batch = append(batch, entry)
				default:
					flush()
					return
				}
			}
		}
	}
}
