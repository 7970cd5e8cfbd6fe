package run

import (
	"context"
	"sort"
	"sync"
	"time"

	xerrors "IntentFlow-Chain/internal/errors"
	"IntentFlow-Chain/internal/intent"
)

// MemoryStore 以内存方式保存执行记录，主要用于测试与单机部署。
type MemoryStore struct {
	mu   sync.RWMutex
	runs map[string]*Run
}

// NewMemoryStore 创建 MemoryStore。
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{runs: make(map[string]*Run)}
}

// Create 实现 Store 接口。
func (m *MemoryStore) Create(_ context.Context, record *Run) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if record == nil {
		return xerrors.New(xerrors.CodeInvalidArgument, "run 不能为空")
	}
	if record.ID == "" {
		return xerrors.New(xerrors.CodeInvalidArgument, "执行记录 ID 不能为空")
	}
	if _, ok := m.runs[record.ID]; ok {
		return ErrRunConflict
	}
	now := time.Now().Unix()
	if record.CreatedAt == 0 {
		record.CreatedAt = now
	}
	record.UpdatedAt = now
	m.runs[record.ID] = cloneRun(record)
	return nil
}

// Get 返回执行记录。
func (m *MemoryStore) Get(_ context.Context, id string) (*Run, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	record, ok := m.runs[id]
	if !ok {
		return nil, ErrRunNotFound
	}
	return cloneRun(record), nil
}

// Claim 将执行记录置为运行中。已终态的记录不可再领取。
func (m *MemoryStore) Claim(_ context.Context, id string) (*Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	record, ok := m.runs[id]
	if !ok {
		return nil, ErrRunNotFound
	}
	switch record.Status {
	case StatusSucceeded, StatusFailed:
		return cloneRun(record), ErrRunCompleted
	case StatusRunning:
		return cloneRun(record), ErrRunConflict
	}
	record.Status = StatusRunning
	record.Stage = intent.StageStart
	record.LastError = ""
	record.ErrorCode = ""
	record.UpdatedAt = time.Now().Unix()
	return cloneRun(record), nil
}

// UpdateStage 记录状态机推进到的阶段。
func (m *MemoryStore) UpdateStage(_ context.Context, id string, stage intent.Stage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	record, ok := m.runs[id]
	if !ok {
		return ErrRunNotFound
	}
	record.Stage = stage
	record.UpdatedAt = time.Now().Unix()
	return nil
}

// MarkSucceeded 记录最终报告并进入成功终态。
func (m *MemoryStore) MarkSucceeded(_ context.Context, id string, report intent.Report) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	record, ok := m.runs[id]
	if !ok {
		return ErrRunNotFound
	}
	record.Status = StatusSucceeded
	record.Stage = intent.StageReported
	record.Report = &report
	record.LastError = ""
	record.ErrorCode = ""
	record.UpdatedAt = time.Now().Unix()
	return nil
}

// MarkFailed 将执行记录置为失败终态。
func (m *MemoryStore) MarkFailed(_ context.Context, id string, code xerrors.Code, lastError string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	record, ok := m.runs[id]
	if !ok {
		return ErrRunNotFound
	}
	record.Status = StatusFailed
	record.Stage = intent.StageFailed
	record.LastError = lastError
	record.ErrorCode = string(code)
	record.UpdatedAt = time.Now().Unix()
	return nil
}

// List 返回符合过滤条件的执行记录。
func (m *MemoryStore) List(_ context.Context, opts ListOptions) ([]*Run, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	opts.applyDefaults()

	results := make([]*Run, 0, len(m.runs))
	for _, record := range m.runs {
		if !matchesListFilters(record, opts) {
			continue
		}
		results = append(results, cloneRun(record))
	}

	sort.Slice(results, func(i, j int) bool {
		if opts.Order == SortByUpdatedAsc {
			if results[i].UpdatedAt == results[j].UpdatedAt {
				if results[i].CreatedAt == results[j].CreatedAt {
					return results[i].ID < results[j].ID
				}
				return results[i].CreatedAt < results[j].CreatedAt
			}
			return results[i].UpdatedAt < results[j].UpdatedAt
		}
		if results[i].UpdatedAt == results[j].UpdatedAt {
			if results[i].CreatedAt == results[j].CreatedAt {
				return results[i].ID < results[j].ID
			}
			return results[i].CreatedAt > results[j].CreatedAt
		}
		return results[i].UpdatedAt > results[j].UpdatedAt
	})

	if opts.Offset > 0 {
		if opts.Offset >= len(results) {
			return []*Run{}, nil
		}
		results = results[opts.Offset:]
	}
	if len(results) > opts.Limit {
		results = results[:opts.Limit]
	}
	return results, nil
}

// Stats 统计符合过滤条件的执行记录数量与更新时间范围。
func (m *MemoryStore) Stats(_ context.Context, opts ListOptions) (RunStats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	opts.applyDefaults()

	stats := RunStats{}
	for _, record := range m.runs {
		if !matchesListFilters(record, opts) {
			continue
		}
		stats.Total++
		switch record.Status {
		case StatusPending:
			stats.Pending++
		case StatusRunning:
			stats.Running++
		case StatusSucceeded:
			stats.Succeeded++
		case StatusFailed:
			stats.Failed++
		}
		if record.UpdatedAt > stats.NewestUpdatedAt {
			stats.NewestUpdatedAt = record.UpdatedAt
		}
		if stats.OldestUpdatedAt == 0 || (record.UpdatedAt != 0 && record.UpdatedAt < stats.OldestUpdatedAt) {
			stats.OldestUpdatedAt = record.UpdatedAt
		}
	}
	if stats.Total == 0 {
		stats.OldestUpdatedAt = 0
		stats.NewestUpdatedAt = 0
	}
	return stats, nil
}

// Close 对内存存储无需操作。
func (m *MemoryStore) Close() error {
	return nil
}

func cloneRun(record *Run) *Run {
	clone := *record
	if record.Report != nil {
		reportCopy := *record.Report
		clone.Report = &reportCopy
	}
	return &clone
}

func matchesListFilters(record *Run, opts ListOptions) bool {
	if len(opts.Statuses) > 0 {
		matched := false
		for _, status := range opts.Statuses {
			if record.Status == status {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}
	if len(opts.Sessions) > 0 {
		matched := false
		for _, session := range opts.Sessions {
			if record.Session == session {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}
	if opts.UpdatedGTE > 0 && record.UpdatedAt < opts.UpdatedGTE {
		return false
	}
	if opts.UpdatedLTE > 0 && record.UpdatedAt > opts.UpdatedLTE {
		return false
	}
	if opts.HasReport != nil && (record.Report != nil) != *opts.HasReport {
		return false
	}
	return true
}

// ensure interface compliance at compile time
var _ Store = (*MemoryStore)(nil)
