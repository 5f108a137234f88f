package retrieve

import (
	"context"
	"encoding/hex"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/subcommands"

	"github.com/dongdongbh/dsse/client"
	"github.com/dongdongbh/dsse/config"
)

func init() {
	subcommands.Register(&retrieveCmd{}, "")
}

type retrieveCmd struct {
	out string
}

func (*retrieveCmd) Name() string     { return "retrieve" }
func (*retrieveCmd) Synopsis() string { return "Decrypt a file by id and file key, writing it to disk." }
func (*retrieveCmd) Usage() string {
	return `retrieve <file-id-hex> <file-key-hex>:
  Look up the encrypted file record, decrypt it, and write it under its
  recovered name in the directory named by -out (default: current directory).
`
}

func (p *retrieveCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&p.out, "out", ".", "Directory to write the retrieved file into")
}

func (p *retrieveCmd) Execute(_ context.Context, f *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	configPath := args[0].(*string)
	if f.NArg() != 2 {
		fmt.Printf("unexpected number of arguments to retrieve; want: 2, got: %d\n", f.NArg())
		return subcommands.ExitFailure
	}
	fileID, err := hex.DecodeString(f.Arg(0))
	if err != nil {
		fmt.Printf("file-id must be hex: %v\n", err)
		return subcommands.ExitFailure
	}
	fileKey, err := hex.DecodeString(f.Arg(1))
	if err != nil {
		fmt.Printf("file-key must be hex: %v\n", err)
		return subcommands.ExitFailure
	}

	_, store, err := config.Open(*configPath)
	if err != nil {
		fmt.Printf("could not open server: %v\n", err)
		return subcommands.ExitFailure
	}

	name, contents, err := client.RetrieveFile(store, fileID, fileKey)
	if err != nil {
		fmt.Printf("retrieve failed: %v\n", err)
		return subcommands.ExitFailure
	}

	dest := filepath.Join(p.out, string(name))
	if err := os.WriteFile(dest, contents, 0600); err != nil {
		fmt.Printf("could not write %q: %v\n", dest, err)
		return subcommands.ExitFailure
	}
	fmt.Printf("wrote %s (%d bytes)\n", dest, len(contents))
	return subcommands.ExitSuccess
}
