package mssql

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	mssql "github.com/microsoft/go-mssqldb"

	"satload/internal/record"
	"satload/internal/schema"
	"satload/internal/storage"
)

func testRepo(t *testing.T) *Repository {
	t.Helper()
	s, err := schema.FromHeader([]string{"UUID", "EmisorRFC", "Total"}, schema.Options{})
	if err != nil {
		t.Fatalf("FromHeader: %v", err)
	}
	return New(nil, Config{Table: "ANEXO_1A_2025_1S", Schema: s})
}

func TestNew_Statements(t *testing.T) {
	t.Parallel()
	r := testRepo(t)

	if want := "SELECT MAX([SOURCE_POSITION]) FROM [dbo].[ANEXO_1A_2025_1S]"; r.maxSQL != want {
		t.Fatalf("maxSQL = %q, want %q", r.maxSQL, want)
	}
	if want := "SELECT TOP 0 [UUID], [EmisorRFC], [Total], [SOURCE_POSITION] INTO #satload_stage FROM [dbo].[ANEXO_1A_2025_1S];"; r.stageSQL != want {
		t.Fatalf("stageSQL = %q, want %q", r.stageSQL, want)
	}
	for _, frag := range []string{
		"INSERT INTO [dbo].[ANEXO_1A_2025_1S] ([UUID], [EmisorRFC], [Total], [SOURCE_POSITION])",
		"FROM #satload_stage AS S",
		"WITH (UPDLOCK, HOLDLOCK) WHERE T.[UUID] = S.[UUID]",
	} {
		if !strings.Contains(r.mergeSQL, frag) {
			t.Fatalf("mergeSQL missing %q:\n%s", frag, r.mergeSQL)
		}
	}
	if len(r.cols) != 4 || r.cols[3] != "SOURCE_POSITION" {
		t.Fatalf("cols = %v", r.cols)
	}
}

func TestBindRow(t *testing.T) {
	t.Parallel()

	args := make([]any, 4)
	row := record.Canonical{Position: 7, UUID: "U-1", Values: []any{"U-1", nil, "12.50"}}
	if err := bindRow(args, row); err != nil {
		t.Fatalf("bindRow: %v", err)
	}
	if args[0] != "U-1" || args[1] != nil || args[2] != "12.50" || args[3] != int64(7) {
		t.Fatalf("args = %#v", args)
	}

	row.Values = row.Values[:2]
	if err := bindRow(args, row); err == nil {
		t.Fatalf("bindRow with short row: expected error")
	}
}

func TestClassify(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		err       error
		missing   bool
		transient bool
	}{
		{name: "invalid object", err: mssql.Error{Number: 208, Message: "Invalid object name"}, missing: true},
		{name: "deadlock", err: mssql.Error{Number: 1205}, transient: true},
		{name: "lock timeout", err: mssql.Error{Number: 1222}, transient: true},
		{name: "azure throttle", err: mssql.Error{Number: 40501}, transient: true},
		{name: "wrapped deadlock", err: fmt.Errorf("bulk row 3: %w", mssql.Error{Number: 1205}), transient: true},
		{name: "pk violation", err: mssql.Error{Number: 2627}},
		{name: "plain", err: errors.New("boom")},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := classify(tt.err)
			if errors.Is(got, storage.ErrTableMissing) != tt.missing {
				t.Fatalf("classify(%v) missing = %v, want %v", tt.err, !tt.missing, tt.missing)
			}
			if storage.IsTransient(got) != tt.transient {
				t.Fatalf("classify(%v) transient = %v, want %v", tt.err, !tt.transient, tt.transient)
			}
		})
	}
	if classify(nil) != nil {
		t.Fatalf("classify(nil) != nil")
	}
}

func TestMsFQN(t *testing.T) {
	t.Parallel()

	cases := []struct{ in, want string }{
		{"table", "[table]"},
		{"dbo.table", "[dbo].[table]"},
		{"sales.q4.table", "[sales].[q4].[table]"},
	}
	for _, tc := range cases {
		if got := msFQN(tc.in); got != tc.want {
			t.Fatalf("msFQN(%q) = %q; want %q", tc.in, got, tc.want)
		}
	}
}
