// Package config loads the two TOML run-rules files that govern a
// Modulr node — genesis.toml (one-time chain bootstrap parameters) and
// rules.toml (the network's standing governance/validator rules) —
// plus the bare-integer version.txt the original implementation
// shipped alongside them. RunRules is a concrete struct filled only by
// LoadRunRules; there is no interface for another rules source.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// KnownValidator is one entry in rules.toml's [[known_validators]] table.
type KnownValidator struct {
	Name      string `toml:"name"`
	PublicKey string `toml:"public_key"`
}

// JobFileSchema describes the wire shape of one co-chain's job file,
// per rules.toml's [<co_chain_name>] sections.
type JobFileSchema struct {
	Fields    []string `toml:"fields"`
	Mandatory []string `toml:"mandatory"`
	JobTypes  []string `toml:"job_types"`
	Token     string   `toml:"token"`
}

// Validate reports an error naming the first mandatory field missing
// or null in record, mirroring run_rules.py's validate_job_file.
func (s JobFileSchema) Validate(record map[string]any) error {
	for _, field := range s.Mandatory {
		v, ok := record[field]
		if !ok || v == nil {
			return fmt.Errorf("config: job file missing mandatory field %q", field)
		}
	}
	return nil
}

// defaultMinScore is returned for min_validator_score/min_partner_score
// when rules.toml omits the key. A non-integer value is not defaulted:
// LoadRunRules returns a decode error for it.
const defaultMinScore = 420

// RunRules is the network's standing governance/validator ruleset,
// loaded from rules.toml.
type RunRules struct {
	MaxValidators struct {
		Max int `toml:"max"`
	} `toml:"max_validators"`
	KnownValidatorsList []KnownValidator         `toml:"known_validators"`
	MinValidatorScoreV  *int                     `toml:"min_validator_score"`
	MinPartnerScoreV    *int                     `toml:"min_partner_score"`
	Utilities           map[string]any           `toml:"utilities"`
	SubDomains          map[string]any           `toml:"sub_domains"`
	Governance          map[string]any           `toml:"governance"`
	Tokenomics          map[string]any           `toml:"tokenomics"`
	Performance         PerformanceRules         `toml:"performance"`
	SubscriptionSvcs    map[string]any           `toml:"subscription_services"`
	JobFiles            map[string]JobFileSchema `toml:"-"`
	raw                 map[string]JobFileSchema
}

// PerformanceRules holds rules.toml's [performance] section. No code in
// this module reads these values: block size and verification workers
// come from fixed constants in the consensus package.
type PerformanceRules struct {
	MaxBlockTxs           int `toml:"max_block_txs"`
	VerificationWorkers   int `toml:"verification_workers"`
	MaxBlockTimeMs        int `toml:"max_block_time_ms"`
	MaxLatencyMs          int `toml:"max_latency_ms"`
}

// LoadRunRules reads and decodes a rules.toml file at path. Job-file
// schema sections (any top-level table with a "mandatory" key, e.g.
// "base_job_file") are decoded separately into JobFiles since their
// table name varies per co-chain.
func LoadRunRules(path string) (*RunRules, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read rules.toml: %w", err)
	}

	var rr RunRules
	if err := toml.Unmarshal(data, &rr); err != nil {
		return nil, fmt.Errorf("config: decode rules.toml: %w", err)
	}

	var raw map[string]any
	if err := toml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("config: decode rules.toml job files: %w", err)
	}
	rr.JobFiles = make(map[string]JobFileSchema)
	for name, section := range raw {
		tbl, ok := section.(map[string]any)
		if !ok {
			continue
		}
		if _, hasMandatory := tbl["mandatory"]; !hasMandatory {
			continue
		}
		reencoded, err := toml.Marshal(tbl)
		if err != nil {
			continue
		}
		var schema JobFileSchema
		if err := toml.Unmarshal(reencoded, &schema); err != nil {
			continue
		}
		rr.JobFiles[name] = schema
	}

	return &rr, nil
}

// GetJobFileStructure returns the named co-chain's job file schema
// ("base_job_file" if coChainName is empty), per run_rules.py's
// get_job_file_structure.
func (rr *RunRules) GetJobFileStructure(coChainName string) (JobFileSchema, error) {
	if coChainName == "" {
		coChainName = "base_job_file"
	}
	schema, ok := rr.JobFiles[coChainName]
	if !ok {
		return JobFileSchema{}, fmt.Errorf("config: unknown job file section %q", coChainName)
	}
	return schema, nil
}

// ValidateJobFile validates record against the named co-chain's
// mandatory fields.
func (rr *RunRules) ValidateJobFile(coChainName string, record map[string]any) error {
	schema, err := rr.GetJobFileStructure(coChainName)
	if err != nil {
		return err
	}
	return schema.Validate(record)
}

// MaxValidatorCount returns the network's validator count ceiling.
func (rr *RunRules) MaxValidatorCount() int {
	return rr.MaxValidators.Max
}

// KnownValidators returns every known-validator entry from rules.toml.
func (rr *RunRules) KnownValidators() []KnownValidator {
	return rr.KnownValidatorsList
}

// KnownValidatorKeys returns just the public keys of every known
// validator, per run_rules.py's get_known_validator_keys.
func (rr *RunRules) KnownValidatorKeys() []string {
	keys := make([]string, len(rr.KnownValidatorsList))
	for i, v := range rr.KnownValidatorsList {
		keys[i] = v.PublicKey
	}
	return keys
}

// MinValidatorScore returns the minimum perception score required to
// join the network as a validator. Defaults to 420 when rules.toml
// omits the key.
func (rr *RunRules) MinValidatorScore() int {
	if rr.MinValidatorScoreV == nil {
		return defaultMinScore
	}
	return *rr.MinValidatorScoreV
}

// MinPartnerScore returns the minimum perception score required to
// join the network as a partner. Defaults to 420 when rules.toml omits
// the key.
func (rr *RunRules) MinPartnerScore() int {
	if rr.MinPartnerScoreV == nil {
		return defaultMinScore
	}
	return *rr.MinPartnerScoreV
}

// GenesisConfig describes the network's one-time bootstrap parameters,
// loaded from genesis.toml.
type GenesisConfig struct {
	NetworkID             string `toml:"network_id"`
	EpochID               int64  `toml:"epoch_id"`
	EpochHash             string `toml:"epoch_hash"`
	EpochTimeMs           int64  `toml:"epoch_time_ms"`
	LeadershipTimeframeMs int64  `toml:"leadership_timeframe_ms"`
}

// LoadGenesis reads and decodes a genesis.toml file at path.
func LoadGenesis(path string) (*GenesisConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read genesis.toml: %w", err)
	}
	var g GenesisConfig
	if err := toml.Unmarshal(data, &g); err != nil {
		return nil, fmt.Errorf("config: decode genesis.toml: %w", err)
	}
	if g.NetworkID == "" {
		return nil, fmt.Errorf("config: genesis.toml missing network_id")
	}
	return &g, nil
}

// ReadCoreVersion reads the bare-integer CORE_MAJOR_VERSION from
// version.txt at path.
func ReadCoreVersion(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("config: read version.txt: %w", err)
	}
	v, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("config: version.txt is not an integer: %w", err)
	}
	return v, nil
}
