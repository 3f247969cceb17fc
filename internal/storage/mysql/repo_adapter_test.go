package mysql

import (
	"context"
	"testing"

	"satload/internal/storage"
)

func TestRegistrationUsesNewRepositoryHook(t *testing.T) {
	orig := newRepository
	defer func() { newRepository = orig }()

	var gotCfg Config
	closed := false
	fake := &Repository{}
	newRepository = func(ctx context.Context, cfg Config) (*Repository, func(), error) {
		gotCfg = cfg
		return fake, func() { closed = true }, nil
	}

	repo, err := storage.New(context.Background(), storage.Config{
		Kind:     "mysql",
		DSN:      "user:pass@tcp(localhost:3306)/sat",
		Database: "SAT_ANEXO_2B",
		Table:    "ANEXO_2B_2025_1S",
	})
	if err != nil {
		t.Fatalf("storage.New() error = %v", err)
	}
	if gotCfg.Database != "SAT_ANEXO_2B" || gotCfg.Table != "ANEXO_2B_2025_1S" {
		t.Fatalf("hook cfg = %+v", gotCfg)
	}
	if w, ok := repo.(*wrappedRepo); !ok || w.Repository != fake {
		t.Fatalf("storage.New() = %T, want *wrappedRepo around the hook result", repo)
	}
	repo.Close()
	if !closed {
		t.Fatalf("Close() did not invoke closeFn")
	}
}
