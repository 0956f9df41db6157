// Command modulrnode runs a Modulr validator/partner node: the co-chain
// consensus engine, the storage-challenge protocol, and the
// reliability/XP engine behind one TCP/TLS listener and one JSON-RPC
// endpoint.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/undchain/modulr/chain"
	"github.com/undchain/modulr/config"
	"github.com/undchain/modulr/consensus"
	"github.com/undchain/modulr/crypto/certgen"
	"github.com/undchain/modulr/events"
	"github.com/undchain/modulr/kvstore"
	"github.com/undchain/modulr/network"
	"github.com/undchain/modulr/orchestrator"
	"github.com/undchain/modulr/reliability"
	"github.com/undchain/modulr/rpc"
	"github.com/undchain/modulr/sector"
	"github.com/undchain/modulr/txpool"
	"github.com/undchain/modulr/wallet"
)

var log = logrus.WithField("component", "modulrnode")

func main() {
	app := &cli.App{
		Name:  "modulrnode",
		Usage: "run a Modulr validator/partner node",
		Commands: []*cli.Command{
			runCommand(),
			genKeyCommand(),
			genCertsCommand(),
		},
	}
	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func commonFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "data-dir", Value: "./data", Usage: "directory for the LevelDB store"},
		&cli.StringFlag{Name: "genesis", Value: "genesis.toml", Usage: "path to genesis.toml"},
		&cli.StringFlag{Name: "rules", Value: "rules.toml", Usage: "path to rules.toml"},
		&cli.StringFlag{Name: "key", Value: "identity.json", Usage: "path to node identity keystore"},
		&cli.StringFlag{Name: "node-id", Value: "node0", Usage: "this node's P2P identifier"},
		&cli.IntFlag{Name: "p2p-port", Value: 30303, Usage: "TCP port for the P2P listener"},
		&cli.IntFlag{Name: "rpc-port", Value: 8545, Usage: "HTTP port for the JSON-RPC server"},
		&cli.StringFlag{Name: "rpc-auth-token", Value: "", Usage: "bearer token required on RPC requests; empty disables auth"},
		&cli.StringFlag{Name: "tls-ca", Value: "", Usage: "CA certificate PEM path for mTLS"},
		&cli.StringFlag{Name: "tls-cert", Value: "", Usage: "node certificate PEM path for mTLS"},
		&cli.StringFlag{Name: "tls-key", Value: "", Usage: "node private key PEM path for mTLS"},
	}
}

func runCommand() *cli.Command {
	return &cli.Command{
		Name:  "run",
		Usage: "start the node",
		Flags: commonFlags(),
		Action: func(c *cli.Context) error {
			return runNode(c)
		},
	}
}

func genKeyCommand() *cli.Command {
	return &cli.Command{
		Name:  "gen-key",
		Usage: "generate a new node identity key and exit",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "key", Value: "identity.json", Usage: "output keystore path"},
		},
		Action: func(c *cli.Context) error {
			password := os.Getenv("MODULR_PASSWORD")
			if password == "" {
				log.Warn("MODULR_PASSWORD not set; keystore will use an empty password")
			}
			id, err := wallet.Generate()
			if err != nil {
				return err
			}
			if err := id.Save(c.String("key"), password); err != nil {
				return err
			}
			fmt.Printf("Generated identity. Public key: %s\n", id.PubKeyHex())
			fmt.Printf("Saved to: %s\n", c.String("key"))
			return nil
		},
	}
}

func genCertsCommand() *cli.Command {
	return &cli.Command{
		Name:      "gen-certs",
		Usage:     "generate a CA + node TLS certificate pair and exit",
		ArgsUsage: "<output-dir>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "node-id", Value: "node0", Usage: "node ID embedded in the certificate"},
		},
		Action: func(c *cli.Context) error {
			dir := c.Args().First()
			if dir == "" {
				return cli.Exit("gen-certs requires an output directory argument", 1)
			}
			if err := certgen.GenerateAll(dir, c.String("node-id"), nil); err != nil {
				return err
			}
			fmt.Printf("Certificates generated in %s for node %q\n", dir, c.String("node-id"))
			return nil
		},
	}
}

func runNode(c *cli.Context) error {
	password := os.Getenv("MODULR_PASSWORD")
	if password == "" {
		log.Warn("MODULR_PASSWORD not set; keystore will use an empty password")
	}

	genesisCfg, err := config.LoadGenesis(c.String("genesis"))
	if err != nil {
		return fmt.Errorf("genesis: %w", err)
	}
	runRules, err := config.LoadRunRules(c.String("rules"))
	if err != nil {
		return fmt.Errorf("rules: %w", err)
	}

	id, err := wallet.Load(c.String("key"), password)
	if err != nil {
		return fmt.Errorf("load identity key: %w", err)
	}

	if err := os.MkdirAll(c.String("data-dir"), 0755); err != nil {
		return fmt.Errorf("mkdir data dir: %w", err)
	}
	db, err := kvstore.OpenLevelDB(c.String("data-dir") + "/chain")
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer db.Close()

	nowMs := time.Now().UnixMilli()
	epochHandler := genesisCfg.Bootstrap(nowMs)
	epochHandler.RegisterPool(id.PubKeyHex())
	for _, v := range runRules.KnownValidatorKeys() {
		epochHandler.RegisterPool(v)
	}
	if err := epochHandler.SetLeadersSequence([]byte(genesisCfg.EpochHash)); err != nil {
		return fmt.Errorf("derive leader sequence: %w", err)
	}
	epochHandler.SetQuorum(runRules.KnownValidatorKeys())

	store := chain.NewStore(db)
	bc := chain.NewBlockchain(store, genesisCfg.NetworkID)
	if err := genesisCfg.InitChain(bc, epochHandler); err != nil {
		return fmt.Errorf("chain init: %w", err)
	}
	bc.SetPayoutHook(func(block *chain.Block) {
		log.WithField("index", block.Index).Debug("block committed, payout hook fired (no issuance curve implemented)")
	})
	bc.SetQuorumSource(func() int { return len(epochHandler.Snapshot().Quorum) })

	latches := kvstore.NewTable(db, kvstore.FinalizationVotingStats)
	pool := txpool.NewPool(nil)
	engine := consensus.New(epochHandler, bc, pool, latches, id.PrivKey())

	tlsCfg, err := config.LoadTLSConfig(&config.TLSConfig{
		CACert:   c.String("tls-ca"),
		NodeCert: c.String("tls-cert"),
		NodeKey:  c.String("tls-key"),
	})
	if err != nil {
		return fmt.Errorf("tls: %w", err)
	}
	if tlsCfg != nil {
		log.Info("mTLS enabled for P2P")
	}

	p2pAddr := fmt.Sprintf(":%d", c.Int("p2p-port"))
	netNode := network.NewNode(c.String("node-id"), p2pAddr, pool, tlsCfg)
	syncer := network.NewSyncer(netNode, bc, engine)

	sectors := map[string]*sector.Manager{}
	relManager := reliability.NewManager(0)

	rpcAddr := fmt.Sprintf(":%d", c.Int("rpc-port"))
	rpcHandler := rpc.NewHandler(bc, pool, epochHandler, sectors, relManager, genesisCfg.NetworkID)
	rpcServer := rpc.NewServer(rpcAddr, rpcHandler, c.String("rpc-auth-token"))
	if err := rpcServer.Start(); err != nil {
		return fmt.Errorf("rpc start: %w", err)
	}
	defer rpcServer.Stop()
	log.WithField("addr", rpcAddr).Info("RPC listening")

	emitter := events.NewEmitter()
	emitter.Subscribe(events.EventBlockCommitted, func(ev events.Event) {
		log.WithField("index", ev.Data["index"]).Info("block committed")
	})
	emitter.Subscribe(events.EventLeaderTimedOut, func(ev events.Event) {
		log.WithField("leader_index", ev.Data["leader_index"]).Warn("leader timed out")
	})
	emitter.Subscribe(events.EventEpochRotated, func(ev events.Event) {
		log.WithField("epoch_full_id", ev.Data["epoch_full_id"]).Info("epoch finalization proof assembled")
	})
	orch := orchestrator.New(engine, epochHandler, bc, pool, netNode, syncer, emitter)

	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Info("shutting down")
		cancel()
	}()

	log.WithField("identity", id.PubKeyHex()).Info("node starting")
	if err := orch.Run(ctx); err != nil {
		return fmt.Errorf("node run: %w", err)
	}
	log.Info("shutdown complete")
	return nil
}
