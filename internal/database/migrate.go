// Package database はデータベース接続とマイグレーション管理を提供する。
package database

import (
	"embed"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations/main/*.sql migrations/fav/*.sql
var migrationsFS embed.FS

// NewMigrator はマイグレーション実行用のmigrateインスタンスを生成する。
// dirは埋め込みマイグレーションのサブディレクトリ（"migrations/main" または "migrations/fav"）、
// pathはSQLiteデータベースファイルのパスを指定する。
func NewMigrator(dir, path string) (*migrate.Migrate, error) {
	source, err := iofs.New(migrationsFS, dir)
	if err != nil {
		return nil, fmt.Errorf("failed to create migration source: %w", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", source, "sqlite://"+path)
	if err != nil {
		return nil, fmt.Errorf("failed to create migrator: %w", err)
	}

	return m, nil
}

// RunMigrations はアーカイブ本体とお気に入りの両データベースに
// すべてのマイグレーションを適用する。すでに最新の場合はエラーなしで返る。
func RunMigrations(mainPath, favPath string) error {
	targets := []struct {
		dir  string
		path string
	}{
		{"migrations/main", mainPath},
		{"migrations/fav", favPath},
	}

	for _, t := range targets {
		m, err := NewMigrator(t.dir, t.path)
		if err != nil {
			return err
		}

		err = m.Up()
		m.Close()
		if err != nil && err != migrate.ErrNoChange {
			return fmt.Errorf("failed to run migrations for %s: %w", t.path, err)
		}
	}

	return nil
}
