// Copyright (c) 2023 The BitcoinUnlimited developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package config loads subblockd's runtime configuration, following
// cmd/addblock/config.go's flags-plus-defaults style. Every value here
// ends up in a subblock.Config value-set rather than a mutable global,
// per spec.md §9's "avoid process-wide mutable globals" note.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/btcsuite/btcd/btcutil"
	flags "github.com/jessevdk/go-flags"

	"github.com/Greg-Griffith/BitcoinUnlimited/chainparam"
	"github.com/Greg-Griffith/BitcoinUnlimited/subblock"
)

const (
	defaultDbType         = "leveldb"
	defaultLogLevel       = "info"
	defaultBlockMinSize   = 0
	defaultBlockMaxSize   = 8 * 1000 * 1000
	defaultBlockPrioSize  = 50 * 1000
	defaultCoinbaseReserve = chainparam.CoinbaseReserveMinimum
	defaultMinRelayFee    = 1.0
)

var subblockdHomeDir = btcutil.AppDataDir("subblockd", false)

// Config mirrors spec.md §6's "Configuration knobs" list plus the ambient
// datadir/loglevel/dbtype knobs a real btcsuite-style binary exposes.
type Config struct {
	DataDir  string `long:"datadir" description:"Directory to store the SLP token database"`
	DbType   string `long:"dbtype" description:"Database backend for the SLP token store"`
	LogLevel string `long:"loglevel" description:"Logging level {trace, debug, info, warn, error, critical}"`

	BlockMaxSize      uint32 `long:"blockmaxsize" description:"Maximum block size in bytes"`
	BlockMinSize      uint32 `long:"blockminsize" description:"Minimum block size in bytes; suppresses the C6 early-termination rule below this size"`
	BlockPrioritySize uint32 `long:"blockprioritysize" description:"Bytes reserved for the priority phase; 0 disables it"`
	BlockVersion      int32  `long:"blockversion" description:"Test-network override of the block version"`

	PrintPriority bool `long:"printpriority" description:"Log the priority of each transaction when it is selected"`
	MiningCPFP    bool `long:"miningcpfp" description:"Select transactions by ancestor-package score (C6) instead of single-tx score (C5)"`
	Xval          bool `long:"xval" description:"Mark the emitted template for expedited validation"`

	CoinbaseReserve uint32  `long:"coinbasereserve" description:"Minimum bytes reserved for the proof-base"`
	MinRelayFeeRate float64 `long:"minrelaytxfee" description:"Minimum relay fee rate in satoshis/byte"`
}

// defaultConfig returns a Config populated with the same defaults
// cmd/addblock/config.go uses: a computed default data directory plus
// literal fallbacks for everything else.
func defaultConfig() Config {
	return Config{
		DataDir:           filepath.Join(subblockdHomeDir, "data"),
		DbType:            defaultDbType,
		LogLevel:          defaultLogLevel,
		BlockMaxSize:      defaultBlockMaxSize,
		BlockMinSize:      defaultBlockMinSize,
		BlockPrioritySize: defaultBlockPrioSize,
		CoinbaseReserve:   defaultCoinbaseReserve,
		MinRelayFeeRate:   defaultMinRelayFee,
	}
}

// Load parses args (typically os.Args[1:]) into a Config, applying the
// same defaults defaultConfig returns for anything unset, then clamps
// the block-size and coinbase-reserve knobs: out-of-range values are
// clamped rather than treated as an error. The clamp is silent; neither
// Load nor subblockd writes a log line when a value is clamped.
func Load(args []string) (*Config, []string, error) {
	cfg := defaultConfig()

	parser := flags.NewParser(&cfg, flags.Default)
	remaining, err := parser.ParseArgs(args)
	if err != nil {
		if e, ok := err.(*flags.Error); !ok || e.Type != flags.ErrHelp {
			parser.WriteHelp(os.Stderr)
		}
		return nil, nil, err
	}

	cfg.clamp()
	return &cfg, remaining, nil
}

// clamp enforces spec.md §6's range constraints: blockmaxsize clamped to
// [1000, MAX_BLOCK_SIZE-1000], blockminsize clamped to [0, blockmaxsize].
func (c *Config) clamp() {
	const minBlockMaxSize = 1000
	maxBlockMaxSize := uint32(chainparam.MaxBlockSize - 1000)

	if c.BlockMaxSize < minBlockMaxSize {
		c.BlockMaxSize = minBlockMaxSize
	}
	if c.BlockMaxSize > maxBlockMaxSize {
		c.BlockMaxSize = maxBlockMaxSize
	}
	if c.BlockMinSize > c.BlockMaxSize {
		c.BlockMinSize = c.BlockMaxSize
	}
	if c.CoinbaseReserve < chainparam.CoinbaseReserveMinimum {
		c.CoinbaseReserve = chainparam.CoinbaseReserveMinimum
	}
}

// AssemblerConfig translates the loaded Config into the subblock.Config
// value-set the assembler is constructed with.
func (c *Config) AssemblerConfig(activations chainparam.ActivationHeights) subblock.Config {
	strategy := subblock.StrategyScore
	if c.MiningCPFP {
		strategy = subblock.StrategyPackage
	}

	return subblock.Config{
		BlockMaxSize:        c.BlockMaxSize,
		BlockMinSize:        c.BlockMinSize,
		BlockPrioritySize:   c.BlockPrioritySize,
		BlockVersion:        c.BlockVersion,
		Strategy:            strategy,
		CoinbaseReserve:     c.CoinbaseReserve,
		MinRelayFeeRate:     c.MinRelayFeeRate,
		ExpeditedValidation: c.Xval,
		PrintPriority:       c.PrintPriority,
		Activations:         activations,
	}
}

// cleanAndExpandPath expands a leading ~ to the current user's home
// directory and cleans the result, matching cmd/addblock's helper of the
// same name.
func cleanAndExpandPath(path string) string {
	if path == "" {
		return path
	}
	if path[0] == '~' {
		homeDir := filepath.Dir(subblockdHomeDir)
		path = filepath.Join(homeDir, path[1:])
	}
	return filepath.Clean(path)
}

// EnsureDataDir expands and creates the configured data directory.
func (c *Config) EnsureDataDir() error {
	c.DataDir = cleanAndExpandPath(c.DataDir)
	if err := os.MkdirAll(c.DataDir, 0700); err != nil {
		return fmt.Errorf("config: cannot create data directory: %w", err)
	}
	return nil
}
