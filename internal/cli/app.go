package rwcli

import (
	"fmt"
	"os"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/foxcpp/trivial-rewrite/framework/log"
)

var app *cli.App

func init() {
	app = cli.NewApp()
	app.Usage = "mail address resolver and routing-decision service"
	app.Description = `trivial-rewrite parses mail addresses, classifies destinations against a
set of lookup tables (relay domains, virtual domains, relocated users) and
picks the transport and nexthop a queue manager should use to deliver a
message.

This executable can be used to start the resolver service ('run') and to
inspect/test the lookup tables it uses (all other subcommands).
`
	app.Authors = []*cli.Author{
		{
			Name: "trivial-rewrite contributors",
		},
	}
	app.ExitErrHandler = func(c *cli.Context, err error) {
		cli.HandleExitCoder(err)
		if err != nil {
			log.Println(err)
			cli.OsExiter(1)
		}
	}
	app.EnableBashCompletion = true
	app.Commands = []*cli.Command{
		{
			Name:   "generate-man",
			Hidden: true,
			Action: func(c *cli.Context) error {
				man, err := app.ToMan()
				if err != nil {
					return err
				}
				fmt.Println(man)
				return nil
			},
		},
		{
			Name:   "generate-fish-completion",
			Hidden: true,
			Action: func(c *cli.Context) error {
				cp, err := app.ToFishCompletion()
				if err != nil {
					return err
				}
				fmt.Println(cp)
				return nil
			},
		},
	}
}

func AddGlobalFlag(f cli.Flag) {
	app.Flags = append(app.Flags, f)
}

// AddSubcommand registers cmd. The "run" subcommand additionally becomes the
// app's default action, so the daemon still starts as plain
// "trivial-rewrite -config ..." without the "run" keyword.
func AddSubcommand(cmd *cli.Command) {
	app.Commands = append(app.Commands, cmd)

	if cmd.Name == "run" {
		app.Action = func(c *cli.Context) error {
			log.Println("WARNING: starting the service not via 'rewrite run' is deprecated and will stop working in the next version")
			return cmd.Action(c)
		}
		app.Flags = append(app.Flags, cmd.Flags...)
	}
}

func Run() {
	// Actual entry point is registered in cmd/trivial-rewrite.

	// Print help when called via the rewritectl executable. To be removed
	// once the backward compatibility hack for 'rewrite run' is removed too.
	if strings.Contains(os.Args[0], "rewritectl") && len(os.Args) == 1 {
		if err := app.Run([]string{os.Args[0], "help"}); err != nil {
			log.DefaultLogger.Error("app.Run failed", err)
		}
		return
	}

	if err := app.Run(os.Args); err != nil {
		log.DefaultLogger.Error("app.Run failed", err)
	}
}
