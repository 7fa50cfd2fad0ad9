// Copyright (c) 2023 The BitcoinUnlimited developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// subblockd is an example wiring binary: it loads configuration, opens the
// SLP token store, constructs a mempool and assembler, and demonstrates a
// single sub-block assembly call. It is not a full node; see spec.md §1
// for what is intentionally out of scope.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	flags "github.com/jessevdk/go-flags"

	"github.com/Greg-Griffith/BitcoinUnlimited/chainparam"
	"github.com/Greg-Griffith/BitcoinUnlimited/config"
	"github.com/Greg-Griffith/BitcoinUnlimited/dagtip"
	blog "github.com/Greg-Griffith/BitcoinUnlimited/internal/log"
	"github.com/Greg-Griffith/BitcoinUnlimited/mempool"
	"github.com/Greg-Griffith/BitcoinUnlimited/slptoken"
	"github.com/Greg-Griffith/BitcoinUnlimited/subblock"
)

// alwaysFinal is a stand-in FinalityChecker for demonstration wiring; a
// real deployment supplies the full validator's locktime evaluation.
type alwaysFinal struct{}

func (alwaysFinal) IsFinalTx(*mempool.Entry, int32, int64) bool { return true }

// acceptAll is a stand-in BlockValidityChecker; a real deployment supplies
// the full validator's block-checking entry point.
type acceptAll struct{}

func (acceptAll) CheckSubBlockValidity(*subblock.Template, int32) error { return nil }

func main() {
	if err := realMain(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func realMain() error {
	cfg, _, err := config.Load(os.Args[1:])
	if err != nil {
		if e, ok := err.(*flags.Error); ok && e.Type == flags.ErrHelp {
			return nil
		}
		return err
	}

	if !validLogLevel(cfg.LogLevel) {
		return fmt.Errorf("subblockd: unknown loglevel %q", cfg.LogLevel)
	}
	blog.InitBackend(os.Stdout)
	blog.SetLogLevels(cfg.LogLevel)

	if err := cfg.EnsureDataDir(); err != nil {
		return err
	}

	store, err := slptoken.OpenStore(cfg.DataDir)
	if err != nil {
		return fmt.Errorf("subblockd: opening token store: %w", err)
	}
	defer store.Close()
	tokenCache := slptoken.NewCache(store)
	_ = tokenCache // held open for future SLP-aware admission wiring

	pool := mempool.New()
	tips := dagtip.New()

	activations := chainparam.ActivationHeights{}
	assembler := subblock.New(pool, tips, alwaysFinal{}, acceptAll{}, nowMicros, cfg.AssemblerConfig(activations))

	tip := subblock.ChainTip{Height: 0, MedianTimePast: time.Now().Unix()}
	minerScript := []byte{0x51} // OP_TRUE placeholder for demonstration
	tmpl, err := assembler.CreateNewSubBlock(tip, chainhash.Hash{}, minerScript, 0x1d00ffff)
	if err != nil {
		return fmt.Errorf("subblockd: assembling sub-block: %w", err)
	}

	fmt.Printf("assembled sub-block: %d txs, %d bytes, %d total fees\n",
		len(tmpl.Transactions), tmpl.SerializedSize(), tmpl.TotalFees())
	return nil
}

func nowMicros() int64 {
	return time.Now().UnixNano() / 1000
}

func validLogLevel(s string) bool {
	switch s {
	case "trace", "debug", "info", "warn", "error", "critical", "off":
		return true
	default:
		return false
	}
}
