package search

import (
	"context"
	"encoding/hex"
	"flag"
	"fmt"

	"github.com/google/subcommands"

	"github.com/dongdongbh/dsse/client"
	"github.com/dongdongbh/dsse/config"
)

func init() {
	subcommands.Register(&searchCmd{}, "")
}

type searchCmd struct{}

func (*searchCmd) Name() string     { return "search" }
func (*searchCmd) Synopsis() string { return "Walk a keyword's chain and print every record, newest first." }
func (*searchCmd) Usage() string {
	return `search <keyword>:
  Print the doc id and file key of every entry in keyword's chain, newest first.
`
}

func (p *searchCmd) SetFlags(f *flag.FlagSet) {}

func (p *searchCmd) Execute(_ context.Context, f *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	configPath := args[0].(*string)
	if f.NArg() != 1 {
		fmt.Printf("unexpected number of arguments to search; want: 1, got: %d\n", f.NArg())
		return subcommands.ExitFailure
	}
	keyword := f.Arg(0)

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

	records, err := c.Search(store, []byte(keyword))
	if err != nil {
		fmt.Printf("search returned %d record(s) before failing: %v\n", len(records), err)
	}
	for _, r := range records {
		fmt.Printf("doc_id=%s file_key=%s\n", hex.EncodeToString(r.DocID), hex.EncodeToString(r.FileKey))
	}
	if err != nil {
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}
