// Package migrations embeds the schema files and applies them in order. The
// schema is idempotent (CREATE ... IF NOT EXISTS), so Apply is safe to run on
// every startup.
package migrations

import (
	"database/sql"
	"embed"
	"fmt"
	"sort"
)

//go:embed *.sql
var files embed.FS

// Apply runs every *.up.sql file in lexical order.
func Apply(db *sql.DB) error {
	entries, err := files.ReadDir(".")
	if err != nil {
		return fmt.Errorf("Apply: %w", err)
	}

	var ups []string
	for _, e := range entries {
		if name := e.Name(); len(name) > 7 && name[len(name)-7:] == ".up.sql" {
			ups = append(ups, name)
		}
	}
	sort.Strings(ups)

	for _, name := range ups {
		content, err := files.ReadFile(name)
		if err != nil {
			return fmt.Errorf("Apply: read %s: %w", name, err)
		}
		if _, err := db.Exec(string(content)); err != nil {
			return fmt.Errorf("Apply: execute %s: %w", name, err)
		}
	}
	return nil
}
