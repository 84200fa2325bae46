package services_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/MegaGrindStone/friday-web-ui/internal/services"
)

func TestBoltDBPreferences(t *testing.T) {
	db, err := services.NewBoltDB(filepath.Join(t.TempDir(), "store.db"))
	if err != nil {
		t.Fatalf("NewBoltDB() error = %v", err)
	}
	defer db.Close()

	ctx := context.Background()

	got, err := db.Preference(ctx, "theme")
	if err != nil {
		t.Fatalf("Preference() error = %v", err)
	}
	if got != "" {
		t.Errorf("absent key = %q, want empty", got)
	}

	if err := db.SetPreference(ctx, "theme", "dark"); err != nil {
		t.Fatalf("SetPreference() error = %v", err)
	}
	got, err = db.Preference(ctx, "theme")
	if err != nil {
		t.Fatalf("Preference() error = %v", err)
	}
	if got != "dark" {
		t.Errorf("stored value = %q, want %q", got, "dark")
	}

	if err := db.SetPreference(ctx, "theme", "light"); err != nil {
		t.Fatalf("SetPreference() error = %v", err)
	}
	got, err = db.Preference(ctx, "theme")
	if err != nil {
		t.Fatalf("Preference() error = %v", err)
	}
	if got != "light" {
		t.Errorf("overwritten value = %q, want %q", got, "light")
	}
}
