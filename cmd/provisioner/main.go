package main

import (
	"log"
	"os"

	"github.com/ruteri/tee-secret-provisioner/cmd/flags"
	"github.com/urfave/cli/v2"
)

var identityKeyFlag = &cli.StringFlag{
	Name:    "identity-key",
	Usage:   "location of the provider's PEM-encoded P-256 private key (default $PROVISIONER_HOME/private_key.pem)",
	EnvVars: []string{"PRIVATE_KEY_PATH"},
}

func identityKeyLocation(cCtx *cli.Context) string {
	if loc := cCtx.String(identityKeyFlag.Name); loc != "" {
		return loc
	}
	return flags.HomePath("private_key.pem")
}

func main() {
	app := &cli.App{
		Name:  "provisioner",
		Usage: "Release provisioned secrets to attested enclaves",
		Flags: flags.LogFlags,
		Commands: []*cli.Command{
			serveCommand,
			genkeyCommand,
			exportPubkeyCommand,
			signerDigestCommand,
			requestCommand,
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
