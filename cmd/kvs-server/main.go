// Command kvs-server runs the TCP front end described in spec §6,
// binding one address and dispatching requests to a bitcask or bbolt
// backed engine depending on --engine.
//
// CLI structure follows cobra/pflag, the same library shape the
// original project's structopt-based kvs-server binary was built
// around, generalized to Go's idiomatic CLI library.
package main

import (
	"fmt"
	"net"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/nilotpal-labs/emberkv/internal/altengine"
	"github.com/nilotpal-labs/emberkv/internal/engine"
	"github.com/nilotpal-labs/emberkv/internal/server"
	"github.com/nilotpal-labs/emberkv/internal/workerpool"
	"github.com/nilotpal-labs/emberkv/pkg/kvlog"
	"github.com/nilotpal-labs/emberkv/pkg/options"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		addr       string
		engineKind string
		dataDir    string
		poolKind   string
		poolSize   int
		debug      bool
	)

	cmd := &cobra.Command{
		Use:   "kvs-server",
		Short: "Run the emberkv TCP key-value server",
		RunE: func(cmd *cobra.Command, args []string) error {
			if engineKind != "kvs" && engineKind != "bolt" {
				return fmt.Errorf("--engine must be %q or %q, got %q", "kvs", "bolt", engineKind)
			}

			log := kvlog.New("kvs-server", debug)
			defer log.Sync()

			if err := os.MkdirAll(dataDir, 0o755); err != nil {
				return err
			}
			if err := checkAndWriteMarker(dataDir, engineKind); err != nil {
				return err
			}

			opts := options.Apply(
				options.WithDataDir(dataDir),
				options.WithAddr(addr),
				options.WithWorkerPoolKind(options.PoolKind(poolKind)),
				options.WithWorkerPoolSize(poolSize),
			)

			eng, err := openEngine(engineKind, opts, log)
			if err != nil {
				return err
			}
			defer eng.Close()

			pool := workerpool.New(opts.WorkerPoolKind, opts.WorkerPoolSize)
			defer pool.Close()

			ln, err := net.Listen("tcp", opts.Addr)
			if err != nil {
				return err
			}
			defer ln.Close()

			srv := server.New(eng, pool, log)
			return srv.Run(ln)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&addr, "addr", options.DefaultAddr, "TCP listen address")
	flags.StringVar(&engineKind, "engine", "kvs", `storage engine: "kvs" or "bolt"`)
	flags.StringVar(&dataDir, "data-dir", ".", "directory holding engine data and the engine marker file")
	flags.StringVar(&poolKind, "pool", string(options.DefaultWorkerPoolKind), `worker pool: "naive", "shared", or "libpool"`)
	flags.IntVar(&poolSize, "pool-size", options.DefaultWorkerPoolSize, "persistent worker count for shared/libpool")
	flags.BoolVar(&debug, "debug", false, "enable verbose development logging")

	return cmd
}

func openEngine(kind string, opts options.Options, log *zap.SugaredLogger) (engine.Engine, error) {
	if kind == "bolt" {
		return altengine.Open(opts.DataDir + "/bolt.db")
	}
	return engine.Open(opts, log)
}
