package migrations_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samirrijal/bilbopark/migrations"
)

func TestUp_Order(t *testing.T) {
	ms, err := migrations.Up()
	require.NoError(t, err)
	require.Len(t, ms, 2)
	assert.Equal(t, "001_init_extensions.sql", ms[0].Name)
	assert.Equal(t, "002_core_tables.sql", ms[1].Name)
	assert.Contains(t, ms[1].SQL, "EXCLUDE USING gist")
}

func TestDown_ReverseOrder(t *testing.T) {
	ms, err := migrations.Down()
	require.NoError(t, err)
	require.Len(t, ms, 2)
	assert.True(t, strings.HasSuffix(ms[0].Name, "002_core_tables.sql"))
	assert.True(t, strings.HasSuffix(ms[1].Name, "001_init_extensions.sql"))
}
