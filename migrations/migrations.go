// Package migrations embeds the schema so binaries do not depend on the working directory.
package migrations

import (
	"embed"
	"io/fs"
	"sort"
)

//go:embed *.sql down/*.sql
var files embed.FS

// Migration is one schema step.
type Migration struct {
	Name string
	SQL  string
}

// Up returns the forward migrations in apply order.
func Up() ([]Migration, error) {
	return load("*.sql")
}

// Down returns the rollback migrations in apply order (newest first).
func Down() ([]Migration, error) {
	ms, err := load("down/*.sql")
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(ms)-1; i < j; i, j = i+1, j-1 {
		ms[i], ms[j] = ms[j], ms[i]
	}
	return ms, nil
}

func load(pattern string) ([]Migration, error) {
	names, err := fs.Glob(files, pattern)
	if err != nil {
		return nil, err
	}
	sort.Strings(names)

	out := make([]Migration, 0, len(names))
	for _, n := range names {
		data, err := files.ReadFile(n)
		if err != nil {
			return nil, err
		}
		out = append(out, Migration{Name: n, SQL: string(data)})
	}
	return out, nil
}
