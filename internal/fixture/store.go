package fixture

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"proctor/internal/models"
)

// ErrNoBaseline is returned when a reset is requested before any baseline
// has been loaded. This is a programmer error, distinct from connectivity
// failures which wrap ErrStoreUnavailable.
var ErrNoBaseline = errors.New("fixture: baseline not loaded")

// ErrStoreUnavailable marks connectivity failures against the isolated
// store. The run cannot proceed without isolation, so callers treat these
// as fatal setup errors.
var ErrStoreUnavailable = errors.New("fixture: store unavailable")

// Config carries the store connection settings. It is threaded explicitly
// into the Store at construction; nothing in this package reads or mutates
// process environment.
type Config struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`

	// Database is the isolated store's name. AdminDatabase is only used for
	// create/drop, which run once per session, never in the per-task path.
	Database      string `yaml:"database"`
	AdminDatabase string `yaml:"admin_database"`
}

// WithDefaults fills unset fields with the conventional local settings.
func (c Config) WithDefaults() Config {
	if c.Host == "" {
		c.Host = "localhost"
	}
	if c.Port == 0 {
		c.Port = 5432
	}
	if c.User == "" {
		c.User = "postgres"
	}
	if c.Database == "" {
		c.Database = "customer_data_test"
	}
	if c.AdminDatabase == "" {
		c.AdminDatabase = "postgres"
	}
	return c
}

func (c Config) dsn(database string) string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s", c.User, c.Password, c.Host, c.Port, database)
}

const storeSchema = `
CREATE TABLE IF NOT EXISTS customer_data (
    customer_id INTEGER NOT NULL,
    order_id INTEGER NOT NULL,
    product_name VARCHAR(255) NOT NULL,
    product_description TEXT,
    order_date TEXT,
    quantity INTEGER,
    order_amount DECIMAL(10, 2),
    order_status VARCHAR(50),
    return_status VARCHAR(50),
    return_start_date TEXT,
    return_received_date TEXT,
    return_completed_date TEXT,
    return_reason TEXT,
    notes TEXT,
    PRIMARY KEY (customer_id, order_id)
);
`

// Store manages the isolated evaluation database: lifecycle, baseline
// resets, and the read-only lookups the verifier uses. The store is
// exclusively owned by its creator for the duration of a run.
type Store struct {
	cfg      Config
	pool     *pgxpool.Pool
	baseline []OrderRecord
}

// Connect opens a pool against the isolated database and verifies it is
// reachable. Connectivity failures wrap ErrStoreUnavailable.
func Connect(ctx context.Context, cfg Config) (*Store, error) {
	cfg = cfg.WithDefaults()

	pool, err := pgxpool.New(ctx, cfg.dsn(cfg.Database))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("%w: ping %s: %v", ErrStoreUnavailable, cfg.Database, err)
	}

	return &Store{cfg: cfg, pool: pool}, nil
}

// Close releases the store's connections.
func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// CreateStore creates the isolated database if it does not already exist.
// Part of the once-per-session administrative lifecycle, not the per-task
// hot path, so it opens its own short-lived admin connection.
func CreateStore(ctx context.Context, cfg Config) error {
	cfg = cfg.WithDefaults()

	conn, err := pgx.Connect(ctx, cfg.dsn(cfg.AdminDatabase))
	if err != nil {
		return fmt.Errorf("%w: admin connect: %v", ErrStoreUnavailable, err)
	}
	defer conn.Close(ctx) //nolint:errcheck

	var exists bool
	err = conn.QueryRow(ctx, "SELECT EXISTS(SELECT 1 FROM pg_database WHERE datname = $1)", cfg.Database).Scan(&exists)
	if err != nil {
		return fmt.Errorf("checking for database %s: %w", cfg.Database, err)
	}

	if exists {
		slog.Info("isolated store already exists", "database", cfg.Database)
		return nil
	}

	// CREATE DATABASE cannot take a bind parameter.
	if _, err := conn.Exec(ctx, fmt.Sprintf("CREATE DATABASE %s", quoteIdent(cfg.Database))); err != nil {
		return fmt.Errorf("creating database %s: %w", cfg.Database, err)
	}
	slog.Info("created isolated store", "database", cfg.Database)
	return nil
}

// DropStore drops the isolated database, terminating any lingering
// connections first.
func DropStore(ctx context.Context, cfg Config) error {
	cfg = cfg.WithDefaults()

	conn, err := pgx.Connect(ctx, cfg.dsn(cfg.AdminDatabase))
	if err != nil {
		return fmt.Errorf("%w: admin connect: %v", ErrStoreUnavailable, err)
	}
	defer conn.Close(ctx) //nolint:errcheck

	_, err = conn.Exec(ctx, `
		SELECT pg_terminate_backend(pg_stat_activity.pid)
		FROM pg_stat_activity
		WHERE pg_stat_activity.datname = $1 AND pid <> pg_backend_pid()`,
		cfg.Database)
	if err != nil {
		return fmt.Errorf("terminating connections to %s: %w", cfg.Database, err)
	}

	if _, err := conn.Exec(ctx, fmt.Sprintf("DROP DATABASE IF EXISTS %s", quoteIdent(cfg.Database))); err != nil {
		return fmt.Errorf("dropping database %s: %w", cfg.Database, err)
	}
	slog.Info("dropped isolated store", "database", cfg.Database)
	return nil
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// CreateSchema creates the working table in the isolated database.
func (s *Store) CreateSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, storeSchema); err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}
	return nil
}

// LoadBaseline parses the canonical dataset once and keeps it in memory for
// repeated resets.
func (s *Store) LoadBaseline(path string) error {
	records, err := LoadBaseline(path)
	if err != nil {
		return err
	}
	s.baseline = records
	slog.Info("loaded baseline dataset", "path", path, "records", len(records))
	return nil
}

// SetBaseline installs an already-parsed baseline. Used by tests and by
// callers that load the dataset themselves.
func (s *Store) SetBaseline(records []OrderRecord) {
	s.baseline = records
}

// BaselineCount reports how many records the loaded baseline holds.
func (s *Store) BaselineCount() int {
	return len(s.baseline)
}

// ResetToBaseline atomically clears the working table and reinserts every
// baseline record verbatim. Safe to call before every task: N resets leave
// the store in exactly the same state as one. Readers never observe a
// half-applied reset because the truncate and inserts commit together.
func (s *Store) ResetToBaseline(ctx context.Context) error {
	if s.baseline == nil {
		return fmt.Errorf("%w: call LoadBaseline first", ErrNoBaseline)
	}

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("%w: begin reset tx: %v", ErrStoreUnavailable, err)
	}
	defer tx.Rollback(ctx) // no-op if committed

	if _, err := tx.Exec(ctx, "TRUNCATE TABLE customer_data"); err != nil {
		return fmt.Errorf("truncating working table: %w", err)
	}

	placeholders := make([]string, len(storeColumns))
	for i := range storeColumns {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}
	insertSQL := fmt.Sprintf(
		"INSERT INTO customer_data (%s) VALUES (%s)",
		strings.Join(storeColumns, ", "),
		strings.Join(placeholders, ", "),
	)

	for i := range s.baseline {
		if _, err := tx.Exec(ctx, insertSQL, s.baseline[i].insertArgs()...); err != nil {
			return fmt.Errorf("inserting baseline record %d: %w", i, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing reset: %w", err)
	}

	slog.Debug("reset isolated store to baseline", "records", len(s.baseline))
	return nil
}

const selectColumns = `customer_id, order_id, product_name, product_description,
	order_date, quantity, order_amount, order_status, return_status,
	return_start_date, return_received_date, return_completed_date,
	return_reason, notes`

func scanRecord(row pgx.Row) (*OrderRecord, error) {
	var r OrderRecord
	err := row.Scan(
		&r.CustomerID, &r.OrderID, &r.ProductName, &r.ProductDescription,
		&r.OrderDate, &r.Quantity, &r.OrderAmount, &r.OrderStatus, &r.ReturnStatus,
		&r.ReturnStartDate, &r.ReturnReceivedDate, &r.ReturnCompletedDate,
		&r.ReturnReason, &r.Notes,
	)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// GetOrder looks up one record by its composite key. Returns (nil, nil)
// when no record exists; the caller decides whether that is a failure.
// Reads always reflect committed state only.
func (s *Store) GetOrder(ctx context.Context, key models.OrderKey) (*OrderRecord, error) {
	row := s.pool.QueryRow(ctx,
		"SELECT "+selectColumns+" FROM customer_data WHERE customer_id = $1 AND order_id = $2",
		key.CustomerID, key.OrderID)

	record, err := scanRecord(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("looking up order %s/%d: %w", key.CustomerID, key.OrderID, err)
	}
	return record, nil
}

// GetOrdersByCustomer returns every record owned by a customer, newest
// order first.
func (s *Store) GetOrdersByCustomer(ctx context.Context, customerID string) ([]OrderRecord, error) {
	rows, err := s.pool.Query(ctx,
		"SELECT "+selectColumns+" FROM customer_data WHERE customer_id = $1 ORDER BY order_date DESC",
		customerID)
	if err != nil {
		return nil, fmt.Errorf("listing orders for customer %s: %w", customerID, err)
	}
	defer rows.Close()

	return collectRecords(rows)
}

// GetOrdersByProduct returns a customer's records whose product name
// matches the given fragment, case-insensitively.
func (s *Store) GetOrdersByProduct(ctx context.Context, customerID, productName string) ([]OrderRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+selectColumns+` FROM customer_data
		 WHERE customer_id = $1 AND LOWER(product_name) LIKE LOWER($2)
		 ORDER BY order_date DESC`,
		customerID, "%"+productName+"%")
	if err != nil {
		return nil, fmt.Errorf("searching orders for customer %s: %w", customerID, err)
	}
	defer rows.Close()

	return collectRecords(rows)
}

func collectRecords(rows pgx.Rows) ([]OrderRecord, error) {
	var records []OrderRecord
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning order record: %w", err)
		}
		records = append(records, *record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating order records: %w", err)
	}
	return records, nil
}

// ReturnStatusCheck is the expected-vs-actual result of a return status
// probe against one order.
type ReturnStatusCheck struct {
	Passed   bool   `json:"passed"`
	Expected string `json:"expected"`
	Actual   string `json:"actual"`
	Error    string `json:"error,omitempty"`
}

// VerifyReturnStatus compares an order's return_status against an expected
// value, case-insensitively.
func (s *Store) VerifyReturnStatus(ctx context.Context, key models.OrderKey, expected string) (ReturnStatusCheck, error) {
	record, err := s.GetOrder(ctx, key)
	if err != nil {
		return ReturnStatusCheck{}, err
	}
	if record == nil {
		return ReturnStatusCheck{
			Expected: expected,
			Error:    fmt.Sprintf("order not found: customer_id=%s, order_id=%d", key.CustomerID, key.OrderID),
		}, nil
	}

	actual := stringOrEmpty(record.ReturnStatus)
	return ReturnStatusCheck{
		Passed:   strings.EqualFold(actual, expected),
		Expected: expected,
		Actual:   actual,
	}, nil
}

// CustomerSummary aggregates a customer's orders for task authoring and the
// task-listing CLI.
type CustomerSummary struct {
	CustomerID     string         `json:"customer_id"`
	TotalOrders    int            `json:"total_orders"`
	OrderStatuses  map[string]int `json:"order_statuses"`
	ReturnStatuses map[string]int `json:"return_statuses"`
	Products       []OrderRecord  `json:"products"`
}

// GetCustomerSummary builds a CustomerSummary from committed state.
func (s *Store) GetCustomerSummary(ctx context.Context, customerID string) (*CustomerSummary, error) {
	orders, err := s.GetOrdersByCustomer(ctx, customerID)
	if err != nil {
		return nil, err
	}

	summary := &CustomerSummary{
		CustomerID:     customerID,
		TotalOrders:    len(orders),
		OrderStatuses:  map[string]int{},
		ReturnStatuses: map[string]int{},
		Products:       orders,
	}

	for _, o := range orders {
		status := o.OrderStatus
		if status == "" {
			status = "Unknown"
		}
		summary.OrderStatuses[status]++

		ret := stringOrEmpty(o.ReturnStatus)
		if ret == "" {
			ret = "None"
		}
		summary.ReturnStatuses[ret]++
	}

	return summary, nil
}

// CountRecords returns the number of rows in the working table. Used by
// setup verification to confirm the store is populated.
func (s *Store) CountRecords(ctx context.Context) (int64, error) {
	var count int64
	if err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM customer_data").Scan(&count); err != nil {
		return 0, fmt.Errorf("%w: counting records: %v", ErrStoreUnavailable, err)
	}
	return count, nil
}
