package main

import (
	"io/fs"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/clinic-decision-core/migrations"
	"github.com/wolfman30/clinic-decision-core/pkg/logging"
)

func TestParseArgs(t *testing.T) {
	tests := []struct {
		args    []string
		cmd     string
		n       int
		wantErr bool
	}{
		{args: nil, cmd: "up"},
		{args: []string{"version"}, cmd: "version"},
		{args: []string{"down", "2"}, cmd: "down", n: 2},
		{args: []string{"force", "3"}, cmd: "force", n: 3},
		{args: []string{"down"}, wantErr: true},
		{args: []string{"down", "0"}, wantErr: true},
		{args: []string{"force", "x"}, wantErr: true},
		{args: []string{"sideways"}, wantErr: true},
	}
	for _, tt := range tests {
		cmd, n, err := parseArgs(tt.args)
		if tt.wantErr {
			assert.Error(t, err, "%v", tt.args)
			continue
		}
		require.NoError(t, err, "%v", tt.args)
		assert.Equal(t, tt.cmd, cmd)
		assert.Equal(t, tt.n, n)
	}
}

func TestRunRequiresDatabaseURL(t *testing.T) {
	err := run("", nil, logging.New("error"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DATABASE_URL")
}

func TestEmbeddedMigrationsArePaired(t *testing.T) {
	entries, err := fs.ReadDir(migrations.FS, ".")
	require.NoError(t, err)

	ups, downs := map[string]bool{}, map[string]bool{}
	for _, e := range entries {
		name := e.Name()
		switch {
		case strings.HasSuffix(name, ".up.sql"):
			ups[strings.TrimSuffix(name, ".up.sql")] = true
		case strings.HasSuffix(name, ".down.sql"):
			downs[strings.TrimSuffix(name, ".down.sql")] = true
		}
	}
	require.NotEmpty(t, ups)
	assert.Equal(t, ups, downs)
}

func TestDecisionQueueMigrationHasPendingUniqueIndex(t *testing.T) {
	data, err := fs.ReadFile(migrations.FS, "000002_decision_queue.up.sql")
	require.NoError(t, err)
	assert.Contains(t, string(data), "decision_queue_pending_uniq")
	assert.Contains(t, string(data), "WHERE status = 'PENDING'")
}
