package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestLoadGenesisRequiresNetworkID(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "genesis.toml", `epoch_id = 0`)
	_, err := LoadGenesis(path)
	require.Error(t, err)
}

func TestLoadGenesisSuccess(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "genesis.toml", `
network_id = "modulr-testnet"
epoch_id = 0
epoch_hash = "00"
epoch_time_ms = 3600000
leadership_timeframe_ms = 5000
`)
	g, err := LoadGenesis(path)
	require.NoError(t, err)
	require.Equal(t, "modulr-testnet", g.NetworkID)
	require.EqualValues(t, 3600000, g.EpochTimeMs)
}

func TestLoadRunRulesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "rules.toml", `
[max_validators]
max = 10

[[known_validators]]
name = "v0"
public_key = "abc"

[base_job_file]
fields = ["user_id", "job_type"]
mandatory = ["user_id"]
job_types = ["storage"]
token = "UND"
`)
	rr, err := LoadRunRules(path)
	require.NoError(t, err)

	require.Equal(t, defaultMinScore, rr.MinValidatorScore())
	require.Equal(t, defaultMinScore, rr.MinPartnerScore())
	require.Equal(t, 10, rr.MaxValidatorCount())
	require.Equal(t, []string{"abc"}, rr.KnownValidatorKeys())
}

func TestLoadRunRulesExplicitScores(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "rules.toml", `
min_validator_score = 600
min_partner_score = 300

[max_validators]
max = 5
`)
	rr, err := LoadRunRules(path)
	require.NoError(t, err)
	require.Equal(t, 600, rr.MinValidatorScore())
	require.Equal(t, 300, rr.MinPartnerScore())
}

func TestValidateJobFile(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "rules.toml", `
[max_validators]
max = 5

[base_job_file]
fields = ["user_id", "job_type"]
mandatory = ["user_id", "job_type"]
job_types = ["storage"]
token = "UND"
`)
	rr, err := LoadRunRules(path)
	require.NoError(t, err)

	require.NoError(t, rr.ValidateJobFile("", map[string]any{"user_id": "u1", "job_type": "storage"}))

	err = rr.ValidateJobFile("", map[string]any{"user_id": "u1"})
	require.Error(t, err)

	err = rr.ValidateJobFile("", map[string]any{"user_id": "u1", "job_type": nil})
	require.Error(t, err)
}

func TestReadCoreVersion(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "version.txt", "3\n")
	v, err := ReadCoreVersion(path)
	require.NoError(t, err)
	require.Equal(t, 3, v)
}

func TestReadCoreVersionRejectsNonInteger(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "version.txt", "not-a-number")
	_, err := ReadCoreVersion(path)
	require.Error(t, err)
}
