package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"os"

	"github.com/ruteri/tee-secret-provisioner/cmd/flags"
	"github.com/ruteri/tee-secret-provisioner/cryptoutils"
	"github.com/ruteri/tee-secret-provisioner/material"
	"github.com/urfave/cli/v2"
)

var outFlag = &cli.StringFlag{
	Name:  "out",
	Usage: "output file, stdout if not set",
}

func withOutput(cCtx *cli.Context, fn func(w io.Writer) error) error {
	path := cCtx.String(outFlag.Name)
	if path == "" {
		return fn(cCtx.App.Writer)
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := fn(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

var genkeyCommand = &cli.Command{
	Name:  "genkey",
	Usage: "Generate a provider identity key",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:  "out",
			Usage: "private key output file (default $PROVISIONER_HOME/private_key.pem)",
		},
	},
	Action: func(cCtx *cli.Context) error {
		path := cCtx.String("out")
		if path == "" {
			path = flags.HomePath("private_key.pem")
		}

		_, privPEM, err := cryptoutils.RandomP256Keypair()
		if err != nil {
			return err
		}

		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0600)
		if err != nil {
			return fmt.Errorf("creating %s: %w", path, err)
		}
		if _, err := f.Write(privPEM); err != nil {
			f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return err
		}

		identity, err := cryptoutils.ParseProviderIdentity(privPEM)
		if err != nil {
			return err
		}
		pub := identity.PublicKeyBytes()
		fmt.Fprintf(cCtx.App.Writer, "wrote %s\nprovider public key: %x\n", path, pub[:])
		return nil
	},
}

var exportPubkeyCommand = &cli.Command{
	Name:  "export-pubkey",
	Usage: "Write the provider public key as source code for embedding in the enclave",
	Flags: []cli.Flag{
		identityKeyFlag,
		&cli.StringFlag{
			Name:  "format",
			Value: string(cryptoutils.PublicKeyFormatC),
			Usage: "'c' for the sgx_ec256_public_t initializer or 'go' for a Go byte array",
		},
		outFlag,
	},
	Action: func(cCtx *cli.Context) error {
		logger := flags.SetupLogger(cCtx)
		identity, err := material.LoadIdentity(context.Background(), material.NewFactory(logger), identityKeyLocation(cCtx))
		if err != nil {
			return err
		}

		return withOutput(cCtx, func(w io.Writer) error {
			return identity.ExportPublicKeyCode(w, cryptoutils.PublicKeyFormat(cCtx.String("format")))
		})
	},
}

var signerDigestCommand = &cli.Command{
	Name:  "signer-digest",
	Usage: "Print the signer identity (MRSIGNER) an enclave signed with the given key reports",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:  "signer-key",
			Usage: "location of the enclave signing key, RSA public key PEM (default $PROVISIONER_HOME/public_key.pub)",
		},
	},
	Action: func(cCtx *cli.Context) error {
		logger := flags.SetupLogger(cCtx)

		location := cCtx.String("signer-key")
		if location == "" {
			location = flags.HomePath("public_key.pub")
		}

		signerPEM, err := material.Fetch(context.Background(), material.NewFactory(logger), location)
		if err != nil {
			return err
		}

		digest, err := cryptoutils.ComputeSignerDigest(signerPEM)
		if err != nil {
			return err
		}
		fmt.Fprintln(cCtx.App.Writer, hex.EncodeToString(digest[:]))
		return nil
	},
}
