package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"
)

const mariaDuplicateEntry = 1062

// MariaUserRepo реализует UserRepository для MariaDB.
type MariaUserRepo struct {
	db *sql.DB
}

// NewMariaUserRepo подключается по DSN вида user:pass@tcp(host:3306)/archipelo
// и создаёт таблицу пользователей при необходимости.
func NewMariaUserRepo(ctx context.Context, dsn string) (*MariaUserRepo, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("неверный DSN MariaDB: %w", err)
	}
	cfg.ParseTime = true
	if cfg.Params == nil {
		cfg.Params = map[string]string{}
	}
	cfg.Params["charset"] = "utf8mb4"

	db, err := sql.Open("mysql", cfg.FormatDSN())
	if err != nil {
		return nil, fmt.Errorf("не удалось открыть подключение к MariaDB: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("не удалось подключиться к MariaDB: %w", err)
	}

	repo := &MariaUserRepo{db: db}
	if err := repo.createTables(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("не удалось создать таблицы: %w", err)
	}
	return repo, nil
}

func (m *MariaUserRepo) createTables(ctx context.Context) error {
	createUsersTable := `
	CREATE TABLE IF NOT EXISTS users (
		id BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		email VARCHAR(255) NOT NULL UNIQUE,
		name VARCHAR(50) NOT NULL UNIQUE,
		password_hash VARCHAR(255) NOT NULL,
		is_admin BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		last_login TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci;`

	if _, err := m.db.ExecContext(ctx, createUsersTable); err != nil {
		return fmt.Errorf("не удалось создать таблицу users: %w", err)
	}
	return nil
}

const selectUser = `SELECT id, email, name, password_hash, is_admin, created_at, last_login FROM users `

func (m *MariaUserRepo) scanUser(row *sql.Row) (*User, error) {
	var user User
	err := row.Scan(&user.ID, &user.Email, &user.Name, &user.PasswordHash,
		&user.IsAdmin, &user.CreatedAt, &user.LastLogin)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка при получении пользователя: %w", err)
	}
	return &user, nil
}

func (m *MariaUserRepo) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	return m.scanUser(m.db.QueryRowContext(ctx, selectUser+"WHERE email = ?", normalize(email)))
}

func (m *MariaUserRepo) GetUserByID(ctx context.Context, id uint64) (*User, error) {
	return m.scanUser(m.db.QueryRowContext(ctx, selectUser+"WHERE id = ?", id))
}

func (m *MariaUserRepo) CreateUser(ctx context.Context, email, name, passwordHash string, isAdmin bool) (*User, error) {
	now := time.Now()
	user := &User{
		Email:        normalize(email),
		Name:         normalize(name),
		PasswordHash: passwordHash,
		IsAdmin:      isAdmin,
		CreatedAt:    now,
		LastLogin:    now,
	}

	result, err := m.db.ExecContext(ctx,
		`INSERT INTO users (email, name, password_hash, is_admin, created_at, last_login) VALUES (?, ?, ?, ?, ?, ?)`,
		user.Email, user.Name, user.PasswordHash, user.IsAdmin, now, now)
	if err != nil {
		var myErr *mysql.MySQLError
		if errors.As(err, &myErr) && myErr.Number == mariaDuplicateEntry {
			return nil, ErrUserExists
		}
		return nil, fmt.Errorf("ошибка при создании пользователя: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("ошибка при получении ID пользователя: %w", err)
	}
	user.ID = uint64(id)
	return user, nil
}

func (m *MariaUserRepo) UpdateLastLogin(ctx context.Context, id uint64, at time.Time) error {
	if _, err := m.db.ExecContext(ctx, `UPDATE users SET last_login = ? WHERE id = ?`, at, id); err != nil {
		return fmt.Errorf("ошибка при обновлении времени входа: %w", err)
	}
	return nil
}

// Close закрывает подключение к БД.
func (m *MariaUserRepo) Close() error {
	return m.db.Close()
}
