package migrations

import (
	"io/fs"
	"strings"
	"testing"

	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbeddedMigrationsArePaired(t *testing.T) {
	names, err := fs.Glob(files, "*.sql")
	require.NoError(t, err)
	require.NotEmpty(t, names)

	ups := map[string]bool{}
	downs := map[string]bool{}
	for _, name := range names {
		switch {
		case strings.HasSuffix(name, ".up.sql"):
			ups[strings.TrimSuffix(name, ".up.sql")] = true
		case strings.HasSuffix(name, ".down.sql"):
			downs[strings.TrimSuffix(name, ".down.sql")] = true
		default:
			t.Errorf("unexpected migration file %s", name)
		}
	}
	assert.Equal(t, ups, downs)
}

func TestSourceStartsAtVersionOne(t *testing.T) {
	source, err := iofs.New(files, ".")
	require.NoError(t, err)
	defer source.Close()

	first, err := source.First()
	require.NoError(t, err)
	assert.Equal(t, uint(1), first)
}

func TestSchemaGuardsBalances(t *testing.T) {
	up, err := fs.ReadFile(files, "000001_init.up.sql")
	require.NoError(t, err)
	schema := string(up)

	assert.Contains(t, schema, "CHECK (account_type = 'credit' OR balance >= 0)")
	assert.Contains(t, schema, "ON transactions (from_account_id, created_at)")
	assert.Contains(t, schema, "ON transactions (to_account_id, created_at)")
}
