package loader

import (
	"github.com/zeebo/xxh3"

	"satload/internal/record"
)

// Collapse drops records whose UUID already appeared earlier in rows and
// returns the survivors in order together with the number dropped. rows is
// returned as is when it holds no repeats.
func Collapse(rows []record.Canonical) ([]record.Canonical, int64) {
	seen := make(map[string]struct{}, len(rows))
	var out []record.Canonical
	for i, r := range rows {
		if _, dup := seen[r.UUID]; !dup {
			seen[r.UUID] = struct{}{}
			if out != nil {
				out = append(out, r)
			}
			continue
		}
		if out == nil {
			out = make([]record.Canonical, i, len(rows)-1)
			copy(out, rows[:i])
		}
	}
	if out == nil {
		return rows, 0
	}
	return out, int64(len(rows) - len(out))
}

// Fingerprint hashes the batch identifiers in order. Two runs that cut the
// same extract at the same positions produce the same value.
func Fingerprint(rows []record.Canonical) uint64 {
	h := xxh3.New()
	for _, r := range rows {
		_, _ = h.WriteString(r.UUID)
		_, _ = h.Write([]byte{0})
	}
	return h.Sum64()
}
