// dssectl is a thin, manual driver for the DSSE core: each subcommand
// performs exactly one client operation against the server backend named
// in its config file. It carries no protocol logic of its own — the
// external collaborator the specification's core deliberately excludes —
// and is grounded on github.com/asjoyner/shade/cmd/shadeutil, down to its
// google/subcommands dispatch and shared -config flag.
package main

import (
	"context"
	"flag"
	"os"

	"github.com/golang/glog"
	"github.com/google/subcommands"

	"github.com/dongdongbh/dsse/config"

	_ "github.com/dongdongbh/dsse/cmd/dssectl/retrieve"
	_ "github.com/dongdongbh/dsse/cmd/dssectl/search"
	_ "github.com/dongdongbh/dsse/cmd/dssectl/update"
	_ "github.com/dongdongbh/dsse/cmd/dssectl/upload"
)

func main() {
	configPath := flag.String("config", config.DefaultPath(), "Path to dssectl config")
	subcommands.ImportantFlag("config")
	subcommands.Register(subcommands.HelpCommand(), "")
	subcommands.Register(subcommands.FlagsCommand(), "")
	subcommands.Register(subcommands.CommandsCommand(), "")
	flag.Parse()

	ctx := context.Background()
	exitValue := subcommands.Execute(ctx, configPath)
	glog.Flush()
	os.Exit(int(exitValue))
}
