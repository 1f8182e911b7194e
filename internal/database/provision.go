package database

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/chrissnell/meteodb/internal/log"
	"github.com/chrissnell/meteodb/pkg/config"
)

// PasswordLength is the default length for generated passwords.
const PasswordLength = 24

const passwordCharset = "abcdefghijklmnopqrstuvwxyz" +
	"ABCDEFGHIJKLMNOPQRSTUVWXYZ" +
	"0123456789" +
	"!@#%^&*()-_=+[]{}:,.<>?"

// GeneratePassword generates a cryptographically secure random password
func GeneratePassword(length int) (string, error) {
	if length <= 0 {
		length = PasswordLength
	}

	password := make([]byte, length)
	charsetLen := big.NewInt(int64(len(passwordCharset)))
	for i := range password {
		num, err := rand.Int(rand.Reader, charsetLen)
		if err != nil {
			return "", fmt.Errorf("failed to generate random number: %w", err)
		}
		password[i] = passwordCharset[num.Int64()]
	}
	return string(password), nil
}

// Target is the database and owner role Provision creates.
type Target struct {
	Database string
	User     string
	Password string
}

// Provision creates the target database with the TimescaleDB extension and a
// role owning it, connecting as admin. Existing databases and roles are
// kept; an existing role gets the new password.
func Provision(ctx context.Context, admin *config.TimescaleDBData, target Target) error {
	maint := *admin
	maint.ConnectionString = ""
	maint.Database = "postgres"

	conn, err := pgx.Connect(ctx, DSN(&maint))
	if err != nil {
		return fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}
	defer conn.Close(ctx)

	db := pgx.Identifier{target.Database}.Sanitize()
	user := pgx.Identifier{target.User}.Sanitize()

	var roleExists bool
	if err := conn.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM pg_roles WHERE rolname = $1)`, target.User).Scan(&roleExists); err != nil {
		return fmt.Errorf("failed to look up role: %w", err)
	}
	roleSQL := fmt.Sprintf("CREATE ROLE %s WITH LOGIN PASSWORD %s", user, quoteLiteral(target.Password))
	if roleExists {
		roleSQL = fmt.Sprintf("ALTER ROLE %s WITH LOGIN PASSWORD %s", user, quoteLiteral(target.Password))
	}
	log.Infof("creating role %s...", target.User)
	if _, err := conn.Exec(ctx, roleSQL); err != nil {
		log.Warnf("warning: could not create role %s: %v", target.User, err)
		return fmt.Errorf("failed to create role: %w", err)
	}

	var dbExists bool
	if err := conn.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM pg_database WHERE datname = $1)`, target.Database).Scan(&dbExists); err != nil {
		return fmt.Errorf("failed to look up database: %w", err)
	}
	if !dbExists {
		log.Infof("creating database %s...", target.Database)
		createDB := fmt.Sprintf("CREATE DATABASE %s OWNER %s ENCODING 'UTF8' TEMPLATE template0", db, user)
		if _, err := conn.Exec(ctx, createDB); err != nil {
			log.Warnf("warning: could not create database %s: %v", target.Database, err)
			return fmt.Errorf("failed to create database: %w", err)
		}
	}

	// The extension must be created by a superuser inside the new database.
	maint.Database = target.Database
	tconn, err := pgx.Connect(ctx, DSN(&maint))
	if err != nil {
		return fmt.Errorf("failed to connect to database %s: %w", target.Database, err)
	}
	defer tconn.Close(ctx)

	for _, step := range []struct{ name, sql string }{
		{"TimescaleDB extension", "CREATE EXTENSION IF NOT EXISTS timescaledb"},
		{"schema privileges", fmt.Sprintf("GRANT ALL ON SCHEMA public TO %s", user)},
	} {
		log.Infof("creating %s...", step.name)
		if _, err := tconn.Exec(ctx, step.sql); err != nil {
			log.Warnf("warning: could not create %s: %v", step.name, err)
			return fmt.Errorf("failed to create %s: %w", step.name, err)
		}
	}
	return nil
}

func quoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
