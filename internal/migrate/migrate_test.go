package migrate

import "testing"

func TestMigrationFiles_ParsesEmbeddedSQLInVersionOrder(t *testing.T) {
	// Arrange
	r := NewRunner(nil)

	// Act
	files, err := r.migrationFiles()

	// Assert
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(files) < 2 {
		t.Fatalf("expected at least 2 embedded migrations, got %d", len(files))
	}
	for i := 1; i < len(files); i++ {
		if files[i-1].version >= files[i].version {
			t.Fatalf("migrations not sorted: %q >= %q", files[i-1].version, files[i].version)
		}
	}
}
