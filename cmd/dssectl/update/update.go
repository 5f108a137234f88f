package update

import (
	"context"
	"flag"
	"fmt"

	"github.com/google/subcommands"

	"github.com/dongdongbh/dsse"
	"github.com/dongdongbh/dsse/client"
	"github.com/dongdongbh/dsse/config"
)

func init() {
	subcommands.Register(&updateCmd{}, "")
}

type updateCmd struct {
	docID string
}

func (*updateCmd) Name() string     { return "update" }
func (*updateCmd) Synopsis() string { return "Append a document id to a keyword's chain." }
func (*updateCmd) Usage() string {
	return `update <keyword> <doc-id>:
  Append doc-id to the chain for keyword, rotating its head.
`
}

func (p *updateCmd) SetFlags(f *flag.FlagSet) {}

func (p *updateCmd) Execute(_ context.Context, f *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	configPath := args[0].(*string)
	if f.NArg() != 2 {
		fmt.Printf("unexpected number of arguments to update; want: 2, got: %d\n", f.NArg())
		return subcommands.ExitFailure
	}
	keyword, docID := f.Arg(0), f.Arg(1)

	cfg, store, err := config.Open(*configPath)
	if err != nil {
		fmt.Printf("could not open server: %v\n", err)
		return subcommands.ExitFailure
	}
	c, err := client.New(client.FileStore{Path: cfg.StatePath})
	if err != nil {
		fmt.Printf("could not load client state: %v\n", err)
		return subcommands.ExitFailure
	}

	id := make([]byte, dsse.DocIDSize)
	copy(id, docID)
	key := make([]byte, dsse.KeySize) // a stand-alone update carries no file; key is unused padding.
	if err := c.Update(store, []byte(keyword), id, key); err != nil {
		fmt.Printf("update failed: %v\n", err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}
