package cli

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"fundledger/internal/config"
	gsheet "fundledger/internal/sheets/google"
)

func newSheetsLoginCommand(opts *rootOptions) *cobra.Command {
	var tokenFile string

	cmd := &cobra.Command{
		Use:   "sheets-login",
		Short: "Authorize report publishing with a Google account",
		Long: "Runs the OAuth browser flow for the client in GOOGLE_OAUTH_CLIENT_JSON or\n" +
			"GOOGLE_OAUTH_CLIENT_FILE and saves the token for later report publishing.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := LoadEnvFile(opts.envFile); err != nil {
				return err
			}
			logger := SetupLogger("info")
			cfg, err := LoadAndValidateConfig(logger)
			if err != nil {
				return err
			}

			clientJSON, err := loginClient(cfg)
			if err != nil {
				return err
			}
			if tokenFile == "" {
				tokenFile = cfg.GoogleOAuthTokenFile
			}
			if tokenFile == "" {
				tokenFile = "token.json"
			}

			ctx, stop := ShutdownContext(cmd.Context(), logger)
			defer stop()

			err = gsheet.Login(ctx, gsheet.LoginOptions{
				ClientJSON: clientJSON,
				Port:       cfg.OAuthRedirectPort,
				TokenFile:  tokenFile,
				Out:        cmd.OutOrStdout(),
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Saved token to %s\n", tokenFile)
			return nil
		},
	}

	cmd.Flags().StringVar(&tokenFile, "token-file", "", "where to save the token (default GOOGLE_OAUTH_TOKEN_FILE or token.json)")
	return cmd
}

func loginClient(cfg *config.Config) ([]byte, error) {
	if s := strings.TrimSpace(cfg.GoogleOAuthClientJSON); s != "" {
		return []byte(s), nil
	}
	if cfg.GoogleOAuthClientFile != "" {
		b, err := os.ReadFile(cfg.GoogleOAuthClientFile)
		if err != nil {
			return nil, fmt.Errorf("read client file: %w", err)
		}
		return b, nil
	}
	return nil, errors.New("set GOOGLE_OAUTH_CLIENT_JSON or GOOGLE_OAUTH_CLIENT_FILE")
}
