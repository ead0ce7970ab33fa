package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/example/luxmed-sniper/internal/config"
	"github.com/example/luxmed-sniper/internal/logging"
	"github.com/example/luxmed-sniper/internal/luxmed"
)

func newCheckCmd() *cobra.Command {
	var (
		configPath string
		debug      bool
	)

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Authenticate, run a single search, and print matching slots without notifying",
		RunE: func(cmd *cobra.Command, args []string) error {
			_ = godotenv.Load()
			logging.Init(debug)

			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			client := luxmed.New(luxmed.Credentials{Email: cfg.LuxMed.Email, Password: cfg.LuxMed.Password})
			sess, err := client.Authenticate(ctx)
			if err != nil {
				return err
			}
			records, err := client.Search(ctx, sess, cfg.Filter())
			if err != nil {
				return err
			}

			if len(records) == 0 {
				fmt.Fprintln(os.Stdout, "no appointments found")
				return nil
			}
			for _, r := range records {
				fmt.Fprintf(os.Stdout, "%s at %s - %s\n", r.FormattedDate, r.ClinicName, r.DoctorName)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "luxmedSniper.yaml", "configuration file path")
	cmd.Flags().BoolVar(&debug, "debug", false, "enable debug logging")
	return cmd
}
