package journal

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"aibrokers/internal/backtest"
	"aibrokers/internal/config"
)

// Journal 把每个交易日的流水写入 SQLite，仅用于事后观测。
type Journal struct {
	db     *sql.DB
	logger *zap.Logger
}

// Open 根据配置初始化交易流水库。
func Open(cfg config.DatabaseConfig, logger *zap.Logger) (*Journal, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	dsn := cfg.Path
	if cfg.InMemory {
		dsn = ":memory:"
	} else {
		if err := ensureDir(filepath.Dir(cfg.Path)); err != nil {
			return nil, err
		}
	}

	conn, err := sql.Open("sqlite3", fmt.Sprintf("%s?_busy_timeout=5000&_foreign_keys=on", dsn))
	if err != nil {
		return nil, fmt.Errorf("打开 SQLite 数据库失败: %w", err)
	}

	conn.SetMaxOpenConns(cfg.MaxOpenConns)
	conn.SetMaxIdleConns(cfg.MaxIdleConns)
	conn.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	if _, err := conn.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("设置 SQLite WAL 模式失败: %w", err)
	}

	j := &Journal{db: conn, logger: logger}
	if err := j.initSchema(); err != nil {
		_ = conn.Close()
		return nil, err
	}

	return j, nil
}

func (j *Journal) initSchema() error {
	schema := []string{
		`CREATE TABLE IF NOT EXISTS trade_log (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			trade_date TEXT NOT NULL,
			pair TEXT NOT NULL,
			action TEXT NOT NULL,
			requested REAL NOT NULL,
			applied REAL NOT NULL,
			rejected INTEGER NOT NULL DEFAULT 0,
			price REAL NOT NULL,
			cash REAL NOT NULL,
			collateral_long REAL NOT NULL,
			collateral_short REAL NOT NULL,
			total_value REAL NOT NULL,
			recorded_at TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_trade_log_date ON trade_log(trade_date);`,
	}

	for _, stmt := range schema {
		if _, err := j.db.Exec(stmt); err != nil {
			return fmt.Errorf("journal: 初始化表结构失败: %w", err)
		}
	}

	return nil
}

// RecordTrade 写入一条交易流水。
func (j *Journal) RecordTrade(ctx context.Context, record backtest.TradeRecord) error {
	rejected := 0
	if record.Rejected {
		rejected = 1
	}

	_, err := j.db.ExecContext(ctx,
		`INSERT INTO trade_log (trade_date, pair, action, requested, applied, rejected,
			price, cash, collateral_long, collateral_short, total_value, recorded_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		record.Date.Format("2006-01-02"), record.Pair, record.Action,
		record.Requested, record.Applied, rejected,
		record.Price, record.Cash, record.CollateralLong, record.CollateralShort,
		record.TotalValue, time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("journal: 写入交易流水失败: %w", err)
	}

	return nil
}

// Close 关闭数据库连接。
func (j *Journal) Close() error {
	if j.db == nil {
		return nil
	}
	return j.db.Close()
}

// DB 返回底层 *sql.DB.
func (j *Journal) DB() *sql.DB {
	return j.db
}

func ensureDir(path string) error {
	if path == "" || path == "." {
		return nil
	}
	if err := os.MkdirAll(path, 0o755); err != nil {
		return fmt.Errorf("创建目录 %q 失败: %w", path, err)
	}
	return nil
}

var _ backtest.Journal = (*Journal)(nil)
