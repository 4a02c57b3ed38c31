package ledger

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/fluxtrade/perpbot/internal/model"
)

// Store is the gorm-backed trade ledger. It never throws to callers; the
// bot instance logs and carries on when a ledger write fails (§4.6
// specifies correctness of trading does not depend on the ledger).
type Store struct {
	db *gorm.DB
}

// Open connects to dsn, picking the Postgres driver for a postgres://
// or postgresql:// DSN and the sqlite driver otherwise, mirroring the
// teacher's database.New driver-selection switch.
func Open(dsn string) (*Store, error) {
	var db *gorm.DB
	var err error

	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		db, err = gorm.Open(postgres.Open(dsn), &gorm.Config{
			Logger: logger.Default.LogMode(logger.Silent),
		})
		if err != nil {
			return nil, err
		}
		log.Info().Msg("ledger connected (postgres)")
	} else {
		dir := filepath.Dir(dsn)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
		db, err = gorm.Open(sqlite.Open(dsn), &gorm.Config{
			Logger: logger.Default.LogMode(logger.Silent),
		})
		if err != nil {
			return nil, err
		}
		log.Info().Str("path", dsn).Msg("ledger initialized (sqlite)")
	}

	if err := db.AutoMigrate(&TradeLedgerRow{}); err != nil {
		return nil, err
	}

	return &Store{db: db}, nil
}

// OpenTrade writes a new OPEN row and sets its ID on success.
func (s *Store) OpenTrade(row *TradeLedgerRow) error {
	row.Status = "OPEN"
	return s.db.Create(row).Error
}

var errNoOpenTrade = errors.New("ledger: no open trade for bot")

// CloseTrade transitions the most recent OPEN row for botID to CLOSED,
// filling in the exit fields. Exactly one close per open, per §4.6.
func (s *Store) CloseTrade(botID string, exitTime time.Time, exitPrice, pnl, pnlPct decimal.Decimal, reason model.ExitReason) error {
	var row TradeLedgerRow
	err := s.db.Where("bot_id = ? AND status = ?", botID, "OPEN").
		Order("entry_time DESC").First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return errNoOpenTrade
		}
		return err
	}

	duration := int(exitTime.Sub(row.EntryTime).Minutes())
	row.ExitTime = &exitTime
	row.ExitPrice = &exitPrice
	row.ExitReason = string(reason)
	row.PnL = &pnl
	row.PnLPct = &pnlPct
	row.DurationMinutes = &duration
	row.Status = "CLOSED"

	return s.db.Save(&row).Error
}

// GetOpenTrade returns the current OPEN row for botID, if any.
func (s *Store) GetOpenTrade(botID string) (*TradeLedgerRow, error) {
	var row TradeLedgerRow
	err := s.db.Where("bot_id = ? AND status = ?", botID, "OPEN").First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

// ClosedTradesSince returns every CLOSED row for botID with exit_time at
// or after since, newest first. Empty botID matches every bot.
func (s *Store) ClosedTradesSince(botID string, since time.Time) ([]TradeLedgerRow, error) {
	q := s.db.Where("status = ? AND exit_time >= ?", "CLOSED", since)
	if botID != "" {
		q = q.Where("bot_id = ?", botID)
	}
	var rows []TradeLedgerRow
	err := q.Order("exit_time DESC").Find(&rows).Error
	return rows, err
}

// RecentClosedTrades returns the most recent limit CLOSED rows for botID.
func (s *Store) RecentClosedTrades(botID string, limit int) ([]TradeLedgerRow, error) {
	q := s.db.Where("status = ?", "CLOSED")
	if botID != "" {
		q = q.Where("bot_id = ?", botID)
	}
	var rows []TradeLedgerRow
	err := q.Order("exit_time DESC").Limit(limit).Find(&rows).Error
	return rows, err
}
