package db

import (
	"database/sql"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog"
)

func InitDB(dbURL string, logger zerolog.Logger) *sql.DB {
	cfg, err := mysql.ParseDSN(dbURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("Invalid DB_URL")
	}
	// DATETIME columns are scanned into time.Time.
	cfg.ParseTime = true

	db, err := sql.Open("mysql", cfg.FormatDSN())
	if err != nil {
		logger.Fatal().Err(err).Msg("Could not open database")
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err = db.Ping(); err != nil {
		logger.Fatal().Err(err).Msg("Database is not responding")
	}

	logger.Info().Str("addr", cfg.Addr).Str("database", cfg.DBName).Msg("Connected to database")
	return db
}

func RunMigrations(db *sql.DB, logger zerolog.Logger) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id INT AUTO_INCREMENT PRIMARY KEY,
			username VARCHAR(100) NOT NULL,
			email VARCHAR(150) NOT NULL UNIQUE,
			password_hash VARCHAR(255) NOT NULL,
			role VARCHAR(20) NOT NULL DEFAULT 'client',
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP
		);`,
		`CREATE TABLE IF NOT EXISTS stores (
			id INT AUTO_INCREMENT PRIMARY KEY,
			user_id INT NULL,
			name VARCHAR(150) NOT NULL,
			slug VARCHAR(180) NOT NULL UNIQUE,
			email VARCHAR(150) NOT NULL,
			cnpj VARCHAR(20) NOT NULL DEFAULT '',
			status VARCHAR(20) NOT NULL DEFAULT 'pendente',
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			INDEX idx_stores_user (user_id),
			INDEX idx_stores_status (status),
			FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE SET NULL
		);`,
		`CREATE TABLE IF NOT EXISTS transactions (
			id INT AUTO_INCREMENT PRIMARY KEY,
			user_id INT NOT NULL,
			store_id INT NOT NULL,
			type VARCHAR(20) NOT NULL,
			purchase_amount DECIMAL(20,2) NOT NULL DEFAULT 0,
			cashback_amount DECIMAL(20,2) NOT NULL DEFAULT 0,
			status VARCHAR(20) NOT NULL,
			pix_charge_id VARCHAR(100) NULL UNIQUE,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
			INDEX idx_transactions_store (store_id),
			INDEX idx_transactions_user (user_id)
		);`,
		`CREATE TABLE IF NOT EXISTS balances (
			user_id INT PRIMARY KEY,
			amount DECIMAL(20,2) NOT NULL DEFAULT 0,
			last_updated_at DATETIME DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
			FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
		);`,
		`CREATE TABLE IF NOT EXISTS store_balance_payments (
			id INT AUTO_INCREMENT PRIMARY KEY,
			store_id INT NOT NULL,
			total_amount DECIMAL(20,2) NOT NULL,
			payment_method VARCHAR(30) NOT NULL,
			reference_number VARCHAR(100) NOT NULL DEFAULT '',
			receipt_file VARCHAR(255) NOT NULL DEFAULT '',
			note TEXT,
			status VARCHAR(20) NOT NULL DEFAULT 'pendente',
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
			INDEX idx_sbp_store (store_id),
			INDEX idx_sbp_status (status),
			FOREIGN KEY (store_id) REFERENCES stores(id)
		);`,
		`CREATE TABLE IF NOT EXISTS cashback_movimentacoes (
			id INT AUTO_INCREMENT PRIMARY KEY,
			user_id INT NOT NULL,
			store_id INT NOT NULL,
			kind VARCHAR(20) NOT NULL,
			amount DECIMAL(20,2) NOT NULL,
			description VARCHAR(255) NOT NULL DEFAULT '',
			transaction_id INT NULL,
			usage_transaction_id INT NULL,
			payment_id INT NULL,
			operation_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			INDEX idx_mov_user (user_id),
			INDEX idx_mov_pending (store_id, kind, payment_id),
			FOREIGN KEY (payment_id) REFERENCES store_balance_payments(id)
		);`,
		`CREATE TABLE IF NOT EXISTS admin_reserva_cashback (
			id INT PRIMARY KEY,
			total DECIMAL(20,2) NOT NULL DEFAULT 0,
			available DECIMAL(20,2) NOT NULL DEFAULT 0,
			used DECIMAL(20,2) NOT NULL DEFAULT 0,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP
		);`,
		`CREATE TABLE IF NOT EXISTS reserve_movements (
			id INT AUTO_INCREMENT PRIMARY KEY,
			related_transaction_id INT NULL,
			amount DECIMAL(20,2) NOT NULL,
			kind VARCHAR(10) NOT NULL,
			description VARCHAR(255) NOT NULL DEFAULT '',
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			INDEX idx_reserve_created (created_at)
		);`,
		`CREATE TABLE IF NOT EXISTS notifications (
			id INT AUTO_INCREMENT PRIMARY KEY,
			user_id INT NOT NULL,
			title VARCHAR(150) NOT NULL,
			message TEXT NOT NULL,
			kind VARCHAR(50) NOT NULL,
			entity_id INT NULL,
			is_read TINYINT(1) NOT NULL DEFAULT 0,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			INDEX idx_notifications_user (user_id, is_read),
			FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
		);`,
	}

	for _, q := range queries {
		if _, err := db.Exec(q); err != nil {
			logger.Error().Err(err).Msg("Migration failed")
			return err
		}
	}
	logger.Info().Int("statements", len(queries)).Msg("Migrations applied")
	return nil
}
