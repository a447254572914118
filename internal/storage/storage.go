// Package storage provides SQLite-backed persistence for opportunities,
// rejections, cycle reports, and the paper portfolio.
package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/suncheck/weatheredge/internal/models"
	_ "modernc.org/sqlite"
)

// Storage wraps a SQLite database for all persistence operations.
type Storage struct {
	db         *sql.DB
	maxReports int
}

// New opens or creates the SQLite database at dbPath.
// An empty dbPath defaults to $TMPDIR/weatheredge/data.db.
func New(maxReports int, dbPath string) (*Storage, error) {
	if dbPath == "" {
		dbPath = filepath.Join(os.TempDir(), "weatheredge", "data.db")
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1) // single writer; WAL allows concurrent readers
	if _, err := db.Exec(`PRAGMA journal_mode=WAL`); err != nil {
		return nil, fmt.Errorf("failed to set WAL mode: %w", err)
	}
	s := &Storage{db: db, maxReports: maxReports}
	if err := s.createTables(); err != nil {
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Storage) Close() error {
	return s.db.Close()
}

func (s *Storage) createTables() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS opportunities (
			id          TEXT PRIMARY KEY,
			market_id   TEXT NOT NULL,
			question    TEXT,
			location    TEXT NOT NULL,
			event_date  TEXT NOT NULL,
			variable    TEXT NOT NULL,
			direction   TEXT NOT NULL,
			model_prob  REAL NOT NULL,
			market_prob REAL NOT NULL,
			edge        REAL NOT NULL,
			lottery     INTEGER NOT NULL DEFAULT 0,
			stake       REAL NOT NULL,
			created_at  INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS rejections (
			market_id   TEXT NOT NULL,
			location    TEXT NOT NULL,
			event_date  TEXT NOT NULL,
			variable    TEXT NOT NULL,
			edge        REAL NOT NULL,
			reason      TEXT NOT NULL,
			rejected_at INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS cycle_reports (
			id          TEXT PRIMARY KEY,
			started_at  INTEGER NOT NULL,
			report      TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS positions (
			id             TEXT PRIMARY KEY,
			market_id      TEXT NOT NULL,
			question       TEXT,
			location       TEXT NOT NULL,
			event_date     TEXT NOT NULL,
			variable       TEXT NOT NULL,
			operator       TEXT NOT NULL,
			threshold      REAL NOT NULL,
			threshold_high REAL NOT NULL DEFAULT 0,
			direction      TEXT NOT NULL,
			price          REAL NOT NULL,
			shares         REAL NOT NULL,
			stake          REAL NOT NULL,
			status         TEXT NOT NULL,
			result         TEXT,
			payout         REAL NOT NULL DEFAULT 0,
			created_at     INTEGER NOT NULL,
			settled_at     INTEGER
		)`,
		`CREATE TABLE IF NOT EXISTS portfolio (
			id   INTEGER PRIMARY KEY CHECK (id = 1),
			cash REAL NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_opportunities_created_at ON opportunities(created_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_positions_status ON positions(status)`,
		`CREATE INDEX IF NOT EXISTS idx_reports_started_at ON cycle_reports(started_at DESC)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// LogOpportunity records an approved opportunity.
func (s *Storage) LogOpportunity(opp models.Opportunity) error {
	c := opp.Candidate
	_, err := s.db.Exec(`
		INSERT INTO opportunities
			(id, market_id, question, location, event_date, variable, direction,
			 model_prob, market_prob, edge, lottery, stake, created_at)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		opp.ID, c.Contract.MarketID, c.Contract.Question, c.Contract.Location,
		c.Contract.Date, c.Contract.Variable, opp.Direction,
		c.ModelProb, c.MarketProb, c.Edge, boolToInt(c.Lottery),
		opp.Stake, opp.CreatedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert opportunity: %w", err)
	}
	return nil
}

// LogRejection records a rejected candidate with its reason.
func (s *Storage) LogRejection(rej models.Rejection) error {
	c := rej.Candidate
	_, err := s.db.Exec(`
		INSERT INTO rejections
			(market_id, location, event_date, variable, edge, reason, rejected_at)
		VALUES (?,?,?,?,?,?,?)`,
		c.Contract.MarketID, c.Contract.Location, c.Contract.Date, c.Contract.Variable,
		c.Edge, rej.Reason, rej.At.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert rejection: %w", err)
	}
	return nil
}

// SaveCycleReport persists a report and prunes the history to maxReports.
func (s *Storage) SaveCycleReport(report models.CycleReport) error {
	payload, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.Exec(`
		INSERT INTO cycle_reports (id, started_at, report) VALUES (?,?,?)`,
		report.ID, report.StartedAt.UnixNano(), string(payload),
	); err != nil {
		return fmt.Errorf("failed to insert report: %w", err)
	}

	if _, err := tx.Exec(`
		DELETE FROM cycle_reports WHERE id NOT IN (
			SELECT id FROM cycle_reports ORDER BY started_at DESC LIMIT ?
		)`, s.maxReports); err != nil {
		return fmt.Errorf("failed to enforce report cap: %w", err)
	}

	return tx.Commit()
}

// LatestReport returns the most recent cycle report, or nil when none exists.
func (s *Storage) LatestReport() (*models.CycleReport, error) {
	row := s.db.QueryRow(`SELECT report FROM cycle_reports ORDER BY started_at DESC LIMIT 1`)
	var payload string
	err := row.Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load report: %w", err)
	}
	var report models.CycleReport
	if err := json.Unmarshal([]byte(payload), &report); err != nil {
		return nil, fmt.Errorf("failed to unmarshal report: %w", err)
	}
	return &report, nil
}

// RecentOpportunities returns the newest opportunities, capped at limit.
func (s *Storage) RecentOpportunities(limit int) ([]models.Opportunity, error) {
	rows, err := s.db.Query(`
		SELECT id, market_id, question, location, event_date, variable, direction,
		       model_prob, market_prob, edge, lottery, stake, created_at
		FROM opportunities ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query opportunities: %w", err)
	}
	defer rows.Close()

	opportunities := []models.Opportunity{}
	for rows.Next() {
		var opp models.Opportunity
		var lottery int
		var createdAtNano int64
		err := rows.Scan(
			&opp.ID, &opp.Candidate.Contract.MarketID, &opp.Candidate.Contract.Question,
			&opp.Candidate.Contract.Location, &opp.Candidate.Contract.Date,
			&opp.Candidate.Contract.Variable, &opp.Direction,
			&opp.Candidate.ModelProb, &opp.Candidate.MarketProb, &opp.Candidate.Edge,
			&lottery, &opp.Stake, &createdAtNano,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan opportunity: %w", err)
		}
		opp.Candidate.Lottery = lottery != 0
		opp.Candidate.Class = models.ClassOpportunity
		opp.CreatedAt = time.Unix(0, createdAtNano)
		opportunities = append(opportunities, opp)
	}
	return opportunities, rows.Err()
}

// AddPosition records a new paper position.
func (s *Storage) AddPosition(p models.Position) error {
	_, err := s.db.Exec(`
		INSERT INTO positions
			(id, market_id, question, location, event_date, variable, operator,
			 threshold, threshold_high, direction, price, shares, stake, status,
			 result, payout, created_at, settled_at)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,NULL)`,
		p.ID, p.MarketID, p.Question, p.Location, p.Date, p.Variable, p.Operator,
		p.Threshold, p.ThresholdHigh, p.Direction, p.Price, p.Shares, p.Stake,
		p.Status, p.Result, p.Payout, p.CreatedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert position: %w", err)
	}
	return nil
}

// OpenPositions returns all positions awaiting settlement.
func (s *Storage) OpenPositions() ([]models.Position, error) {
	rows, err := s.db.Query(`
		SELECT id, market_id, question, location, event_date, variable, operator,
		       threshold, threshold_high, direction, price, shares, stake, status,
		       result, payout, created_at
		FROM positions WHERE status = ?`, models.PositionOpen)
	if err != nil {
		return nil, fmt.Errorf("failed to query positions: %w", err)
	}
	defer rows.Close()

	var positions []models.Position
	for rows.Next() {
		var p models.Position
		var result sql.NullString
		var createdAtNano int64
		err := rows.Scan(
			&p.ID, &p.MarketID, &p.Question, &p.Location, &p.Date, &p.Variable,
			&p.Operator, &p.Threshold, &p.ThresholdHigh, &p.Direction, &p.Price,
			&p.Shares, &p.Stake, &p.Status, &result, &p.Payout, &createdAtNano,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan position: %w", err)
		}
		p.Result = result.String
		p.CreatedAt = time.Unix(0, createdAtNano)
		positions = append(positions, p)
	}
	return positions, rows.Err()
}

// SettlePosition closes a position with its result and payout, crediting the
// payout to cash in the same transaction.
func (s *Storage) SettlePosition(id, result string, payout float64, settledAt time.Time) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	res, err := tx.Exec(`
		UPDATE positions SET status=?, result=?, payout=?, settled_at=?
		WHERE id=? AND status=?`,
		models.PositionClosed, result, payout, settledAt.UnixNano(),
		id, models.PositionOpen,
	)
	if err != nil {
		return fmt.Errorf("failed to settle position: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("open position not found: %s", id)
	}

	if payout > 0 {
		if _, err := tx.Exec(`UPDATE portfolio SET cash = cash + ? WHERE id = 1`, payout); err != nil {
			return fmt.Errorf("failed to credit payout: %w", err)
		}
	}

	return tx.Commit()
}

// Cash returns the portfolio cash balance, seeding it with initial on first
// access.
func (s *Storage) Cash(initial float64) (float64, error) {
	if _, err := s.db.Exec(`
		INSERT OR IGNORE INTO portfolio (id, cash) VALUES (1, ?)`, initial); err != nil {
		return 0, fmt.Errorf("failed to seed portfolio: %w", err)
	}
	var cash float64
	if err := s.db.QueryRow(`SELECT cash FROM portfolio WHERE id = 1`).Scan(&cash); err != nil {
		return 0, fmt.Errorf("failed to load cash: %w", err)
	}
	return cash, nil
}

// DebitCash subtracts a stake from cash, failing if the balance would go
// negative.
func (s *Storage) DebitCash(amount float64) error {
	res, err := s.db.Exec(`UPDATE portfolio SET cash = cash - ? WHERE id = 1 AND cash >= ?`, amount, amount)
	if err != nil {
		return fmt.Errorf("failed to debit cash: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("insufficient cash for stake %.2f", amount)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
