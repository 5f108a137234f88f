package upload

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
	subcommands.Register(&uploadCmd{}, "")
}

type uploadCmd struct{}

func (*uploadCmd) Name() string     { return "upload" }
func (*uploadCmd) Synopsis() string { return "Encrypt a local file and link it into a keyword's chain." }
func (*uploadCmd) Usage() string {
	return `upload <keyword> <path>:
  Read path, encrypt it under a fresh file key, store the ciphertext, and
  append a node naming it to keyword's chain. Prints the resulting file id.
`
}

func (p *uploadCmd) SetFlags(f *flag.FlagSet) {}

func (p *uploadCmd) Execute(_ context.Context, f *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	configPath := args[0].(*string)
	if f.NArg() != 2 {
		fmt.Printf("unexpected number of arguments to upload; want: 2, got: %d\n", f.NArg())
		return subcommands.ExitFailure
	}
	keyword, path := f.Arg(0), f.Arg(1)

	contents, err := os.ReadFile(path)
	if err != nil {
		fmt.Printf("could not read %q: %v\n", path, err)
		return subcommands.ExitFailure
	}

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

	fileID, err := c.UploadFile(store, []byte(keyword), contents, []byte(filepath.Base(path)))
	if err != nil {
		fmt.Printf("upload failed: %v\n", err)
		return subcommands.ExitFailure
	}
	fmt.Printf("file_id=%s\n", hex.EncodeToString(fileID))
	return subcommands.ExitSuccess
}
