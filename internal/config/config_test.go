package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trailmark/trailmark/internal/entity"
)

func validYAML() string {
	var b strings.Builder
	b.WriteString(`
database:
  path: /var/lib/trailmark/records.db
ledger:
  rpc_url: http://localhost:8545
  chain_id: 1337
  private_key_env: TEST_SIGNING_KEY
  contracts:
`)
	for i, kind := range entity.Kinds {
		b.WriteString("    ")
		b.WriteString(string(kind))
		b.WriteString(": \"0x")
		b.WriteString(strings.Repeat("0", 39))
		b.WriteString(string(rune('1' + i)))
		b.WriteString("\"\n")
	}
	b.WriteString(`backup:
  root: /var/lib/trailmark/backups
verify:
  concurrency: 4
`)
	return b.String()
}

func TestParseValidConfig(t *testing.T) {
	cfg, err := Parse([]byte(validYAML()))
	require.NoError(t, err)

	assert.Equal(t, "/var/lib/trailmark/records.db", cfg.Database.Path)
	assert.Equal(t, "http://localhost:8545", cfg.Ledger.RPCURL)
	assert.Equal(t, int64(1337), cfg.Ledger.ChainID)
	assert.Equal(t, "/var/lib/trailmark/backups", cfg.Backup.Root)
	assert.Equal(t, 4, cfg.Verify.Concurrency)
	assert.Len(t, cfg.Ledger.Contracts, len(entity.Kinds))
}

func TestParseAppliesDefaults(t *testing.T) {
	yml := strings.Replace(validYAML(), "  path: /var/lib/trailmark/records.db\n", "", 1)
	yml = strings.Replace(yml, "verify:\n  concurrency: 4\n", "", 1)

	cfg, err := Parse([]byte(yml))
	require.NoError(t, err)
	assert.Equal(t, "trailmark.db", cfg.Database.Path)
	assert.Equal(t, 8, cfg.Verify.Concurrency)
}

func TestParseRejectsInvalid(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(string) string
		wantErr string
	}{
		{
			name:    "missing rpc url",
			mutate:  func(s string) string { return strings.Replace(s, "  rpc_url: http://localhost:8545\n", "", 1) },
			wantErr: "rpc_url",
		},
		{
			name:    "non-positive chain id",
			mutate:  func(s string) string { return strings.Replace(s, "chain_id: 1337", "chain_id: 0", 1) },
			wantErr: "chain_id",
		},
		{
			name:    "unknown contract kind",
			mutate:  func(s string) string { return strings.Replace(s, "    batch:", "    bundle:", 1) },
			wantErr: "unknown entity kind",
		},
		{
			name:    "missing contract kind",
			mutate:  func(s string) string { return strings.Replace(s, "    batch: \"0x", "    # batch: \"0x", 1) },
			wantErr: "missing address",
		},
		{
			name:    "malformed address",
			mutate:  func(s string) string { return strings.Replace(s, "0x"+strings.Repeat("0", 39)+"1", "not-an-address", 1) },
			wantErr: "hex address",
		},
		{
			name:    "negative concurrency",
			mutate:  func(s string) string { return strings.Replace(s, "concurrency: 4", "concurrency: -1", 1) },
			wantErr: "concurrency",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.mutate(validYAML())))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadReadsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trailmark.yaml")
	require.NoError(t, os.WriteFile(path, []byte(validYAML()), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, int64(1337), cfg.Ledger.ChainID)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestEVMConfigResolvesKeyFromEnv(t *testing.T) {
	cfg, err := Parse([]byte(validYAML()))
	require.NoError(t, err)

	t.Setenv("TEST_SIGNING_KEY", strings.Repeat("ab", 32))

	evm, err := cfg.EVMConfig()
	require.NoError(t, err)
	assert.Equal(t, strings.Repeat("ab", 32), evm.PrivateKeyHex)
	assert.Equal(t, int64(1337), evm.ChainID.Int64())
	assert.Len(t, evm.Contracts, len(entity.Kinds))
}

func TestEVMConfigMissingEnvFails(t *testing.T) {
	cfg, err := Parse([]byte(validYAML()))
	require.NoError(t, err)

	t.Setenv("TEST_SIGNING_KEY", "")

	_, err = cfg.EVMConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "TEST_SIGNING_KEY")
}
