// Command walletcore is the wallet's single binary: it wires every
// domain package into a running sync engine and, via the serve
// subcommand, the HTTP RPC surface in walletserver/. Grounded on the
// teacher's cmd/synnergy/main.go thin-cobra-root shape and the
// viper-driven logging-level setup repeated across cmd/cli/*.go.
package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/decred/dcrd/chaincfg/v3"
	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"neptunewallet/internal/archival"
	"neptunewallet/internal/blockcache"
	"neptunewallet/internal/keys"
	"neptunewallet/internal/mutatorset"
	"neptunewallet/internal/nodeclient"
	"neptunewallet/internal/prover"
	"neptunewallet/internal/snapshot"
	"neptunewallet/internal/spend"
	"neptunewallet/internal/syncengine"
	"neptunewallet/internal/walletstore"
	"neptunewallet/internal/wtypes"
	pkgconfig "neptunewallet/pkg/config"
	"neptunewallet/walletserver/controllers"
	"neptunewallet/walletserver/routes"
	"neptunewallet/walletserver/services"
)

// noopProver satisfies prover.Prover without running the real STARK
// pipeline (explicitly out of scope). It lets the spend pipeline and the
// sync engine's re-prove loop run end to end against a node that accepts
// whatever it is handed; a real deployment supplies its own Prover.
type noopProver struct{}

func (noopProver) Prove(ctx context.Context, details prover.TransactionDetails) (prover.ProofCollection, error) {
	return prover.ProofCollection(fmt.Sprintf("unproven:%v", details)), nil
}

func chainParams(network wtypes.Network) *chaincfg.Params {
	switch network {
	case wtypes.NetworkMain:
		return chaincfg.MainNetParams()
	case wtypes.NetworkRegTest:
		return chaincfg.RegNetParams()
	default:
		return chaincfg.TestNet3Params()
	}
}

func parseNetwork(s string) wtypes.Network {
	switch s {
	case "main":
		return wtypes.NetworkMain
	case "regtest":
		return wtypes.NetworkRegTest
	default:
		return wtypes.NetworkTestnetMock
	}
}

func loadSeed() ([]byte, error) {
	hexSeed := os.Getenv("NEPTW_SEED_HEX")
	if hexSeed == "" {
		return nil, fmt.Errorf("NEPTW_SEED_HEX is not set; generate 32+ bytes of entropy and export it as hex")
	}
	return hex.DecodeString(hexSeed)
}

type deps struct {
	cfg     *pkgconfig.Config
	store   *walletstore.Store
	entropy *keys.WalletEntropy
	engine  *syncengine.Engine
	wallet  *spend.Wallet
	network wtypes.Network
}

func wireUp(env string) (*deps, error) {
	_ = godotenv.Load()

	cfg, err := pkgconfig.Load(env)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	if lvl, err := logrus.ParseLevel(cfg.Logging.Level); err == nil {
		logrus.SetLevel(lvl)
	}

	network := parseNetwork(cfg.Network.Name)

	seed, err := loadSeed()
	if err != nil {
		return nil, err
	}
	entropy, err := keys.NewWalletEntropy(seed, chainParams(network))
	if err != nil {
		return nil, fmt.Errorf("derive wallet entropy: %w", err)
	}

	store, err := walletstore.Open(cfg.Storage.DataDir + "/wallet.db")
	if err != nil {
		return nil, fmt.Errorf("open wallet store: %w", err)
	}

	disk, err := blockcache.NewDiskCache(cfg.Storage.DataDir, network, cfg.Storage.CacheBlocks)
	if err != nil {
		return nil, fmt.Errorf("open disk cache: %w", err)
	}

	var snap *snapshot.Store
	if cfg.Storage.SnapshotDir != "" {
		snap, err = snapshot.Open(cfg.Storage.SnapshotDir)
		if err != nil {
			return nil, fmt.Errorf("open snapshot store: %w", err)
		}
	}

	node := nodeclient.New(cfg.Network.RestServer)
	arc := archival.New(disk, snap, node, network)

	pool := prover.NewPool(noopProver{}, cfg.Sync.ProverPoolSize)
	wallet := spend.NewWallet(store, entropy, node, pool, network)

	acc := mutatorset.NewAccumulator()
	keyCache := keys.NewCache()

	engine := syncengine.New(arc, store, entropy, keyCache, acc, node, wallet, cfg.Sync.NumFutureKeys)

	return &deps{cfg: cfg, store: store, entropy: entropy, engine: engine, wallet: wallet, network: network}, nil
}

func main() {
	var env string

	root := &cobra.Command{Use: "walletcore"}
	root.PersistentFlags().StringVar(&env, "env", "", "config overlay to merge onto cmd/config/default.yaml")

	root.AddCommand(serveCmd(&env))
	root.AddCommand(addressCmd(&env))
	root.AddCommand(balanceCmd(&env))

	if err := root.Execute(); err != nil {
		logrus.Fatal(err)
	}
}

func serveCmd(env *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "run the sync engine and the HTTP RPC server",
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := wireUp(*env)
			if err != nil {
				return err
			}
			defer d.store.Close()

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			if err := d.engine.Start(ctx); err != nil {
				return fmt.Errorf("start sync engine: %w", err)
			}

			svc := services.NewService(d.store, d.entropy, d.wallet, d.engine, d.network)
			ctrl := controllers.NewWalletController(svc)

			r := chi.NewRouter()
			routes.Register(r, ctrl)

			srv := &http.Server{Addr: d.cfg.RPC.ListenAddr, Handler: r}
			go func() {
				<-ctx.Done()
				_ = d.engine.CancelSync()
				_ = srv.Close()
			}()

			logrus.Infof("wallet RPC listening on %s", d.cfg.RPC.ListenAddr)
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				return err
			}
			return nil
		},
	}
}

func addressCmd(env *string) *cobra.Command {
	return &cobra.Command{
		Use:   "address",
		Short: "print the next receiving address",
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := wireUp(*env)
			if err != nil {
				return err
			}
			defer d.store.Close()

			watermark, err := d.store.Watermark(cmd.Context(), int(keys.FamilyGeneration))
			if err != nil {
				return err
			}
			addr, err := d.entropy.NthGenerationSpendingKey(watermark).ToAddress(d.network)
			if err != nil {
				return err
			}
			fmt.Println(addr)
			return nil
		},
	}
}

func balanceCmd(env *string) *cobra.Command {
	return &cobra.Command{
		Use:   "balance",
		Short: "print the wallet's confirmed unspent balance",
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := wireUp(*env)
			if err != nil {
				return err
			}
			defer d.store.Close()

			rows, err := d.store.GetUnspentUtxos(cmd.Context())
			if err != nil {
				return err
			}
			var total int64
			for _, r := range rows {
				total += int64(r.Recovery.UtxoVal.Amount)
			}
			fmt.Println(wtypes.NativeCurrencyAmount(total).String())
			return nil
		},
	}
}
