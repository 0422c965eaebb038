// Command kvs-client issues a single get/set/rm request against a
// kvs-server and prints its result, mirroring the original project's
// structopt-based kvs-client binary's get/set/rm subcommands.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/nilotpal-labs/emberkv/internal/client"
	"github.com/nilotpal-labs/emberkv/pkg/options"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var addr string

	root := &cobra.Command{
		Use:   "kvs-client",
		Short: "Talk to a running emberkv server",
	}
	root.PersistentFlags().StringVar(&addr, "addr", options.DefaultAddr, "server TCP address")

	root.AddCommand(
		newGetCmd(&addr),
		newSetCmd(&addr),
		newRemoveCmd(&addr),
	)
	return root
}

func newGetCmd(addr *string) *cobra.Command {
	return &cobra.Command{
		Use:   "get KEY",
		Short: "Print the value for KEY, or report that it is absent",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := client.New(*addr, 5*time.Second)
			value, ok, err := c.Get(args[0])
			if err != nil {
				return err
			}
			if !ok {
				fmt.Println("Key not found")
				return nil
			}
			fmt.Println(value)
			return nil
		},
	}
}

func newSetCmd(addr *string) *cobra.Command {
	return &cobra.Command{
		Use:   "set KEY VALUE",
		Short: "Store VALUE under KEY",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := client.New(*addr, 5*time.Second)
			return c.Set(args[0], args[1])
		},
	}
}

func newRemoveCmd(addr *string) *cobra.Command {
	return &cobra.Command{
		Use:     "rm KEY",
		Aliases: []string{"remove"},
		Short:   "Remove KEY",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := client.New(*addr, 5*time.Second)
			if err := c.Remove(args[0]); err != nil {
				fmt.Fprintln(os.Stderr, err)
				os.Exit(1)
			}
			return nil
		},
	}
}
