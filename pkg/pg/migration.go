package pg

import (
	"fmt"

	_ "github.com/lib/pq"
	"github.com/pressly/goose/v3"
)

// MigrateCommand runs a goose command (up, down, status, redo, version)
// against the migrations in dir.
func MigrateCommand(cfg Config, dir, command string) error {
	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}

	db, err := newSqlConnection(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	switch command {
	case "up":
		return goose.Up(db, dir)
	case "down":
		return goose.Down(db, dir)
	case "status":
		return goose.Status(db, dir)
	case "redo":
		return goose.Redo(db, dir)
	case "version":
		return goose.Version(db, dir)
	}
	return fmt.Errorf("unknown migration command %q", command)
}

func Migrate(cfg Config, dir string) error {
	return MigrateCommand(cfg, dir, "up")
}
