package all

import (
	"testing"

	"satload/internal/storage"
)

func TestAllKindsRegistered(t *testing.T) {
	t.Parallel()

	want := []string{"mssql", "mysql", "postgres", "sqlite"}
	got := storage.ListKinds()
	if len(got) != len(want) {
		t.Fatalf("ListKinds() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("ListKinds() = %v, want %v", got, want)
		}
	}
}
