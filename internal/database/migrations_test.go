package database

import (
	"sort"
	"strings"
	"testing"
)

func TestMigrationNamesEmbeddedAndOrdered(t *testing.T) {
	names, err := migrationNames()
	if err != nil {
		t.Fatalf("migrationNames: %v", err)
	}
	if len(names) == 0 {
		t.Fatalf("no migrations embedded in the binary")
	}
	if names[0] != "migrations/001_init.sql" {
		t.Errorf("first migration = %q, want migrations/001_init.sql", names[0])
	}
	if !sort.StringsAreSorted(names) {
		t.Errorf("migrations not in apply order: %v", names)
	}
	for _, name := range names {
		if !strings.HasSuffix(name, ".sql") {
			t.Errorf("unexpected embedded file %q", name)
		}
	}
}

func TestInitMigrationReadable(t *testing.T) {
	contents, err := migrationFS.ReadFile("migrations/001_init.sql")
	if err != nil {
		t.Fatalf("read embedded migration: %v", err)
	}
	for _, table := range []string{"sessions", "cart_items", "orders", "order_items", "order_status_log"} {
		if !strings.Contains(string(contents), table) {
			t.Errorf("001_init.sql does not create table %q", table)
		}
	}
}
