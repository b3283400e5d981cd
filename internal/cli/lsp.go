package cli

import (
	"errors"
	"os"

	"twig-cs-formatter/internal/lsp"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func lspCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "lsp",
		Short: "Run the formatter as a language server over stdio",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := setupContext()
			defer cancel()

			cfg := loadConfig()
			server := lsp.NewServer(os.Stdin, os.Stdout, newFormatter(cfg))

			log.Info().Msg("Language server started")
			err := server.Run(ctx)
			if errors.Is(err, lsp.ErrExit) {
				return nil
			}
			return err
		},
	}
}
