package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ruteri/tee-secret-provisioner/api/provisioner"
	"github.com/ruteri/tee-secret-provisioner/attestation"
	"github.com/ruteri/tee-secret-provisioner/attestation/oereport"
	"github.com/ruteri/tee-secret-provisioner/cmd/flags"
	"github.com/ruteri/tee-secret-provisioner/cryptoutils"
	"github.com/ruteri/tee-secret-provisioner/httpserver"
	"github.com/ruteri/tee-secret-provisioner/interfaces"
	"github.com/ruteri/tee-secret-provisioner/material"
	"github.com/ruteri/tee-secret-provisioner/provider"
	"github.com/urfave/cli/v2"
)

var serveFlags = []cli.Flag{
	identityKeyFlag,
	&cli.StringFlag{
		Name:    "signer-key",
		Usage:   "location of the trusted enclave signing key, RSA public key PEM (default $PROVISIONER_HOME/public_key.pub)",
		EnvVars: []string{"SIGNER_KEY_PATH"},
	},
	&cli.StringFlag{
		Name:     "shared-key",
		Usage:    "location of the 16-byte shared key, raw or hex; comma-separated locations are tried in order",
		EnvVars:  []string{"SHARED_KEY_LOCATION"},
		Required: true,
	},
	&cli.StringFlag{
		Name:     "key-share",
		Usage:    "location of the 16-byte key share, raw or hex; comma-separated locations are tried in order",
		EnvVars:  []string{"KEY_SHARE_LOCATION"},
		Required: true,
	},
	&cli.StringFlag{
		Name:     "user-cert",
		Usage:    "location of the credential copied into every response",
		EnvVars:  []string{"USER_CERT_LOCATION"},
		Required: true,
	},
	&cli.StringFlag{
		Name:    "attestation-mode",
		Value:   string(attestation.ModeHardware),
		Usage:   "'hardware' to verify remote reports or 'simulation' to skip attestation (testing only)",
		EnvVars: []string{"ATTESTATION_MODE"},
	},
	&cli.UintFlag{
		Name:  "product-id",
		Value: uint(attestation.DefaultPolicy().ProductID),
		Usage: "required enclave product id",
	},
	&cli.UintFlag{
		Name:  "min-security-version",
		Value: uint(attestation.DefaultPolicy().MinSecurityVersion),
		Usage: "minimum enclave security version",
	},
	&cli.BoolFlag{
		Name:  "allow-debug",
		Usage: "accept enclaves running in debug mode",
	},
	&cli.StringFlag{
		Name:  "scheme",
		Value: cryptoutils.AESGCMSchemeName,
		Usage: "encryption scheme for the secrets, only 'ecies-aesgcm' is supported",
	},
	&cli.DurationFlag{
		Name:  "verify-timeout",
		Value: 30 * time.Second,
		Usage: "maximum time to wait for attestation of a single request",
	},
	&cli.DurationFlag{
		Name:  "material-timeout",
		Value: 30 * time.Second,
		Usage: "maximum time to load operator material at startup",
	},
}

var serveCommand = &cli.Command{
	Name:  "serve",
	Usage: "Serve the provisioning API",
	Flags: append(serveFlags, flags.ServerFlags...),
	Action: func(cCtx *cli.Context) error {
		logger := flags.SetupLogger(cCtx)
		factory := material.NewFactory(logger)

		mode, err := attestation.ModeFromString(cCtx.String("attestation-mode"))
		if err != nil {
			return err
		}

		productID := cCtx.Uint("product-id")
		if productID > 0xffff {
			return fmt.Errorf("%w: product id %d does not fit in 16 bits", interfaces.ErrConfiguration, productID)
		}
		policy := attestation.Policy{
			ProductID:          uint16(productID),
			MinSecurityVersion: uint32(cCtx.Uint("min-security-version")),
			AllowDebug:         cCtx.Bool("allow-debug"),
		}

		scheme, err := cryptoutils.SchemeByName(cCtx.String("scheme"))
		if err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(cCtx.Context, cCtx.Duration("material-timeout"))
		defer cancel()

		identity, err := material.LoadIdentity(ctx, factory, identityKeyLocation(cCtx))
		if err != nil {
			logger.Error("Failed to load provider identity", "err", err)
			return err
		}

		secrets, err := material.LoadSecrets(ctx, factory, cCtx.String("shared-key"), cCtx.String("key-share"))
		if err != nil {
			logger.Error("Failed to load secrets", "err", err)
			return err
		}

		userCert, err := material.LoadUserCert(ctx, factory, cCtx.String("user-cert"))
		if err != nil {
			logger.Error("Failed to load user certificate", "err", err)
			return err
		}

		var gate attestation.Gate
		switch mode {
		case attestation.ModeHardware:
			signerKeyLocation := cCtx.String("signer-key")
			if signerKeyLocation == "" {
				signerKeyLocation = flags.HomePath("public_key.pub")
			}
			signerSource, err := material.SourceFor(factory, signerKeyLocation)
			if err != nil {
				return err
			}

			// Fail at startup rather than on the first request if the signer key is unusable.
			signerKey := &material.SignerKey{Source: signerSource, Timeout: cCtx.Duration("material-timeout")}
			pem, err := signerKey.LoadSignerKey()
			if err != nil {
				logger.Error("Failed to load trusted signer key", "err", err)
				return err
			}
			if err := pem.Validate(); err != nil {
				logger.Error("Invalid trusted signer key", "err", err)
				return err
			}

			gate, err = attestation.NewGate(mode, oereport.NewVerifier(), signerKey, policy, logger)
			if err != nil {
				return err
			}
		default:
			gate, err = attestation.NewGate(mode, nil, nil, policy, logger)
			if err != nil {
				return err
			}
		}

		sp, err := provider.New(&provider.Config{
			Identity: identity,
			Secrets:  secrets,
			UserCert: userCert,
			Gate:     gate,
			Scheme:   scheme,
			Log:      logger,
		})
		if err != nil {
			return err
		}

		pub := identity.PublicKeyBytes()
		logger.Info("Service provider initialized",
			"attestationMode", string(mode),
			"scheme", scheme.Name(),
			"providerPubkey", fmt.Sprintf("%x", pub[:]))

		handler := provisioner.NewHandler(sp, cCtx.Duration("verify-timeout"), logger)
		server, err := httpserver.New(flags.ConfigureServer(cCtx, logger), handler)
		if err != nil {
			logger.Error("Failed to create server", "err", err)
			return err
		}

		if err := server.RunInBackground(); err != nil {
			logger.Error("Failed to start server", "err", err)
			return err
		}

		exit := make(chan os.Signal, 1)
		signal.Notify(exit, os.Interrupt, syscall.SIGTERM)

		logger.Info("Server is running, press Ctrl+C to stop")
		<-exit
		logger.Info("Shutdown signal received")

		server.Shutdown()
		logger.Info("Server shutdown complete")
		return nil
	},
}
