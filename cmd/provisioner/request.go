package main

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"fmt"
	"os"

	"github.com/ruteri/tee-secret-provisioner/api/provisioner"
	"github.com/ruteri/tee-secret-provisioner/cryptoutils"
	"github.com/ruteri/tee-secret-provisioner/interfaces"
	"github.com/ruteri/tee-secret-provisioner/provider"
	"github.com/urfave/cli/v2"
)

// requestCommand plays the enclave side of the exchange. Without a real report it is
// only useful against a server in simulation mode.
var requestCommand = &cli.Command{
	Name:  "request",
	Usage: "Request secrets from a provisioning server with a fresh ephemeral key (for testing)",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:  "server-addr",
			Value: "http://127.0.0.1:8080",
			Usage: "provisioning server base URL",
		},
		&cli.UintFlag{
			Name:  "vsock-cid",
			Usage: "reach the server over AF_VSOCK at this context id instead of --server-addr",
		},
		&cli.UintFlag{
			Name:  "vsock-port",
			Usage: "AF_VSOCK port of the server",
		},
		&cli.StringFlag{
			Name:  "report",
			Usage: "file with the remote report to send; a placeholder is sent if not set",
		},
		&cli.StringFlag{
			Name:  "scheme",
			Value: cryptoutils.AESGCMSchemeName,
			Usage: "encryption scheme the server is configured with",
		},
	},
	Action: func(cCtx *cli.Context) error {
		scheme, err := cryptoutils.SchemeByName(cCtx.String("scheme"))
		if err != nil {
			return err
		}

		report := []byte{0}
		if path := cCtx.String("report"); path != "" {
			report, err = os.ReadFile(path)
			if err != nil {
				return err
			}
		}

		ephemeral, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
		if err != nil {
			return err
		}
		pub, err := cryptoutils.MarshalEnclavePublicKey(&ephemeral.PublicKey)
		if err != nil {
			return err
		}

		client := &provisioner.ProvisioningClient{ServerAddr: cCtx.String("server-addr")}
		if cid := cCtx.Uint("vsock-cid"); cid != 0 {
			client = provisioner.NewVsockClient(uint32(cid), uint32(cCtx.Uint("vsock-port")))
		}

		msg2, err := client.Provision(cCtx.Context, &interfaces.Message1{Report: report, PublicKey: pub})
		if err != nil {
			return err
		}

		secrets, err := provider.OpenMessage2(ephemeral, scheme, msg2)
		if err != nil {
			return err
		}

		fmt.Fprintf(cCtx.App.Writer, "shared key: %x\nkey share:  %x\nuser cert:\n%s\n", secrets.SharedKey[:], secrets.KeyShare[:], msg2.UserCert)
		return nil
	},
}
