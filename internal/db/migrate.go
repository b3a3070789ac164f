package db

import (
	"context"
	_ "embed"
	"fmt"
	"strings"

	"gorm.io/gorm"
)

var (
	//go:embed sql/pre_automigrate.sql
	schemaSetupSQL string
	//go:embed sql/post_automigrate.sql
	indexSetupSQL string
)

// autoMigrate creates the chaining schema, lets gorm sync the run tables and
// then adds the read-path indexes. Every step is idempotent.
func (p *Pool) autoMigrate(ctx context.Context) error {
	if p == nil || p.gdb == nil {
		return fmt.Errorf("database pool is not initialized")
	}
	session := p.gdb.WithContext(ctx)

	steps := []struct {
		name string
		run  func() error
	}{
		{"schema setup", func() error { return execScript(session, schemaSetupSQL) }},
		{"model sync", func() error { return session.AutoMigrate(autoMigrateModels()...) }},
		{"index setup", func() error { return execScript(session, indexSetupSQL) }},
	}
	for _, step := range steps {
		if err := step.run(); err != nil {
			return fmt.Errorf("migrate %s: %w", step.name, err)
		}
	}
	return nil
}

func execScript(tx *gorm.DB, script string) error {
	script = strings.TrimSpace(script)
	if script == "" {
		return nil
	}
	return tx.Exec(script).Error
}
