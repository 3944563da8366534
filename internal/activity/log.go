package activity

import (
	"database/sql"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Severity 标记活动条目的级别。
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeveritySuccess Severity = "success"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Entry 为一条活动记录。
type Entry struct {
	Time     time.Time `json:"time"`
	Message  string    `json:"message"`
	Severity Severity  `json:"severity"`
}

const (
	// ringSize 为内存中保留的最新活动条数，供查询接口使用。
	ringSize = 50
	// queueSize 为落库队列容量，写满时丢弃新条目，保证 Append 永不阻塞。
	queueSize = 256
)

// Log 记录引擎产生的活动事件：内存环形缓冲支撑实时查询，
// 单写协程异步落库形成持久审计流水。
type Log struct {
	db     *sql.DB
	logger *zap.Logger

	mu      sync.RWMutex
	entries []Entry

	queue chan Entry
	done  chan struct{}

	closeOnce sync.Once
}

// New 创建活动日志并初始化表结构。db 可为 nil，此时仅保留内存缓冲。
func New(db *sql.DB, logger *zap.Logger) (*Log, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	l := &Log{
		db:      db,
		logger:  logger,
		entries: make([]Entry, 0, ringSize),
		queue:   make(chan Entry, queueSize),
		done:    make(chan struct{}),
	}

	if db != nil {
		if err := l.initSchema(); err != nil {
			return nil, err
		}
	}

	go l.writeLoop()

	return l, nil
}

func (l *Log) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS activity_log (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		ts DATETIME NOT NULL,
		severity TEXT NOT NULL,
		message TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_activity_ts ON activity_log(ts);
	`
	if _, err := l.db.Exec(schema); err != nil {
		return fmt.Errorf("初始化 activity_log 表失败: %w", err)
	}
	return nil
}

// Append 记录一条活动。调用方处于交易热路径，本方法不做任何阻塞操作。
func (l *Log) Append(severity Severity, message string) {
	entry := Entry{
		Time:     time.Now().UTC(),
		Message:  message,
		Severity: severity,
	}

	l.mu.Lock()
	l.entries = append(l.entries, entry)
	if len(l.entries) > ringSize {
		l.entries = l.entries[len(l.entries)-ringSize:]
	}
	l.mu.Unlock()

	select {
	case l.queue <- entry:
	default:
		l.logger.Warn("活动日志落库队列已满，丢弃条目", zap.String("message", message))
	}
}

// Recent 返回最新的 n 条活动，按时间倒序。
func (l *Log) Recent(n int) []Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if n <= 0 || n > len(l.entries) {
		n = len(l.entries)
	}

	out := make([]Entry, 0, n)
	for i := len(l.entries) - 1; i >= len(l.entries)-n; i-- {
		out = append(out, l.entries[i])
	}
	return out
}

func (l *Log) writeLoop() {
	for {
		select {
		case entry := <-l.queue:
			l.persist(entry)
		case <-l.done:
			// 排空残留条目后退出。
			for {
				select {
				case entry := <-l.queue:
					l.persist(entry)
				default:
					return
				}
			}
		}
	}
}

func (l *Log) persist(entry Entry) {
	if l.db == nil {
		return
	}
	_, err := l.db.Exec(
		"INSERT INTO activity_log (ts, severity, message) VALUES (?, ?, ?)",
		entry.Time, string(entry.Severity), entry.Message,
	)
	if err != nil {
		l.logger.Error("写入活动日志失败", zap.Error(err))
	}
}

// Close 停止落库协程。重复调用安全。
func (l *Log) Close() {
	l.closeOnce.Do(func() {
		close(l.done)
	})
}
