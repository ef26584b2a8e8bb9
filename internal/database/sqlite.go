package database

import (
	"database/sql"
	"fmt"
	"path/filepath"
	"runtime"

	"github.com/inkwell-network/inkwell-node/internal/utils"
	_ "modernc.org/sqlite"
)

// SQLiteManager handles all database operations
type SQLiteManager struct {
	dir    string
	cm     *utils.ConfigManager
	db     *sql.DB
	logger *utils.LogsManager

	// Specialized managers
	Articles *ArticlesManager
	Payments *PaymentRecordsManager
	Tips     *TipRecordsManager
}

// NewSQLiteManager creates the SQLite manager and initializes all tables
func NewSQLiteManager(cm *utils.ConfigManager, logger *utils.LogsManager) (*SQLiteManager, error) {
	paths := utils.GetAppPaths("")
	sqlm := &SQLiteManager{
		dir:    paths.DataDir,
		cm:     cm,
		logger: logger,
	}

	db, err := sqlm.CreateConnection()
	if err != nil {
		return nil, fmt.Errorf("failed to create database connection: %v", err)
	}
	sqlm.db = db

	if err := sqlm.initializeManagers(); err != nil {
		return nil, fmt.Errorf("failed to initialize database managers: %v", err)
	}

	return sqlm, nil
}

// initializeManagers sets up specialized database managers
func (sqlm *SQLiteManager) initializeManagers() error {
	var err error

	sqlm.Articles, err = NewArticlesManager(sqlm.db, sqlm.logger)
	if err != nil {
		return fmt.Errorf("failed to initialize articles manager: %v", err)
	}

	sqlm.Payments, err = NewPaymentRecordsManager(sqlm.db, sqlm.logger)
	if err != nil {
		return fmt.Errorf("failed to initialize payment records manager: %v", err)
	}

	sqlm.Tips, err = NewTipRecordsManager(sqlm.db, sqlm.logger)
	if err != nil {
		return fmt.Errorf("failed to initialize tip records manager: %v", err)
	}

	sqlm.logger.Info("Database managers initialized successfully", "database")
	return nil
}

// CreateConnection creates and configures the database connection
func (sqlm *SQLiteManager) CreateConnection() (*sql.DB, error) {
	// Make sure we have os specific path separator since we are adding this path to host's path
	dbFileName := sqlm.cm.GetConfigWithDefault("database_file", "./inkwell.db")
	switch runtime.GOOS {
	case "linux", "darwin":
		dbFileName = filepath.ToSlash(dbFileName)
	case "windows":
		dbFileName = filepath.FromSlash(dbFileName)
	default:
		return nil, fmt.Errorf("unsupported OS type `%s`", runtime.GOOS)
	}

	path := filepath.Join(sqlm.dir, dbFileName)

	// Init db connection with settings for concurrent access
	db, err := sql.Open("sqlite",
		fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=1&_synchronous=NORMAL", path))
	if err != nil {
		sqlm.logger.Error(fmt.Sprintf("Can not create database connection. (%s)", err.Error()), "database")
		return nil, err
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(0)

	if _, err = db.Exec("PRAGMA foreign_keys = ON;"); err != nil {
		sqlm.logger.Error(fmt.Sprintf("Failed to enable foreign keys: %s", err.Error()), "database")
		return nil, err
	}

	if _, err = db.Exec("PRAGMA journal_mode = WAL;"); err != nil {
		sqlm.logger.Warn(fmt.Sprintf("Failed to enable WAL mode: %s", err.Error()), "database")
	}

	return db, nil
}

// GetDB returns the database connection for direct access if needed
func (sqlm *SQLiteManager) GetDB() *sql.DB {
	return sqlm.db
}

// Close closes the database connection
func (sqlm *SQLiteManager) Close() error {
	if sqlm.db != nil {
		return sqlm.db.Close()
	}
	return nil
}

// PerformMaintenance runs database maintenance tasks
func (sqlm *SQLiteManager) PerformMaintenance() error {
	if _, err := sqlm.db.Exec("PRAGMA optimize;"); err != nil {
		sqlm.logger.Warn(fmt.Sprintf("Failed to optimize database: %v", err), "database")
	}

	if _, err := sqlm.db.Exec("PRAGMA incremental_vacuum(100);"); err != nil {
		sqlm.logger.Warn(fmt.Sprintf("Failed to vacuum database: %v", err), "database")
	}

	return nil
}
