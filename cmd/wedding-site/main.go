package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"wedding-site/internal/config"
	"wedding-site/internal/invitesync"
	"wedding-site/internal/models"
	"wedding-site/internal/storage"
	"wedding-site/internal/whatsapp"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "wedding-site",
		Short:        "Wedding RSVP and photo sharing site",
		SilenceUsage: true,
	}

	root.AddCommand(
		serveCmd(),
		migrateCmd(),
		syncInvitationsCmd(),
		rsvpsCmd(),
		photosCmd(),
		whatsappLinkCmd(),
	)
	return root
}

// setup loads the configuration and builds the logger every command uses
func setup() (*config.Config, zerolog.Logger, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, zerolog.Nop(), fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, newLogger(cfg), nil
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the RSVP, gallery and notification HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := setup()
			if err != nil {
				return err
			}
			log.Info().Str("mode", string(cfg.Mode)).Msg("Starting wedding site")

			a, err := newApp(cmd.Context(), cfg, log)
			if err != nil {
				log.Error().Err(err).Msg("Failed to start")
				return err
			}
			return a.run(cmd.Context())
		},
	}
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := setup()
			if err != nil {
				return err
			}
			if cfg.Mode != config.BackendLive {
				return fmt.Errorf("migrate needs BACKEND_MODE=%s", config.BackendLive)
			}

			db, err := storage.Open(cmd.Context(), cfg.DatabaseDriver, cfg.DatabaseDSN)
			if err != nil {
				return err
			}
			defer db.Close()

			if err := storage.Migrate(cmd.Context(), db, log); err != nil {
				return err
			}
			log.Info().Str("driver", cfg.DatabaseDriver).Msg("Migrations applied")
			return nil
		},
	}
}

func syncInvitationsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sync-invitations <file>",
		Short: "Add or update invitations from a JSON file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := setup()
			if err != nil {
				return err
			}

			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("failed to open invitations file: %w", err)
			}
			defer f.Close()

			store, err := openStore(cmd.Context(), cfg, nil, log)
			if err != nil {
				return err
			}
			defer store.Close()

			summary, err := invitesync.NewSyncer(store, log).Sync(cmd.Context(), f)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "Sync complete:")
			fmt.Fprintf(out, "  Added:   %d\n", summary.Added)
			fmt.Fprintf(out, "  Updated: %d\n", summary.Updated)
			fmt.Fprintf(out, "  Errors:  %d\n", summary.Errors)
			fmt.Fprintf(out, "  Total:   %d\n", summary.Total)
			return nil
		},
	}
}

func rsvpsCmd() *cobra.Command {
	var status string
	cmd := &cobra.Command{
		Use:   "rsvps",
		Short: "List invitations with their RSVP status",
		RunE: func(cmd *cobra.Command, args []string) error {
			var want models.RSVPStatus
			if status != "" {
				var ok bool
				if want, ok = models.ParseRSVPStatus(status); !ok {
					return fmt.Errorf("unknown status %q", status)
				}
			}

			cfg, log, err := setup()
			if err != nil {
				return err
			}
			store, err := openStore(cmd.Context(), cfg, nil, log)
			if err != nil {
				return err
			}
			defer store.Close()

			invitations, err := store.List(cmd.Context())
			if err != nil {
				return err
			}
			responses, err := store.ListResponses(cmd.Context())
			if err != nil {
				return err
			}
			byInvitation := make(map[string]*models.RSVPResponse, len(responses))
			for i := range responses {
				byInvitation[responses[i].InvitationID] = &responses[i]
			}
			sort.Slice(invitations, func(i, j int) bool { return invitations[i].Code < invitations[j].Code })

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "CODE\tPARTY\tSTATUS\tATTENDING\tEMAIL\tSUBMITTED")
			shown, attending := 0, 0
			for _, inv := range invitations {
				resp := byInvitation[inv.ID]
				s := resp.Status()
				if want != "" && s != want {
					continue
				}
				shown++

				count, email, submitted := "-", "", ""
				if resp != nil {
					count = fmt.Sprintf("%d/%d", resp.AttendingCount(), len(resp.GuestResponses))
					attending += resp.AttendingCount()
					email = resp.Email
					submitted = resp.SubmittedAt.Format("2006-01-02 15:04")
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n", inv.Code, inv.PartyName, s, count, email, submitted)
			}
			if err := w.Flush(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "\n%d invitations, %d guests attending\n", shown, attending)
			return nil
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "only show pending, attending, partial or declined")
	return cmd
}

func photosCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "photos",
		Short: "Browse shared photos interactively",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := setup()
			if err != nil {
				return err
			}
			store, err := openStore(cmd.Context(), cfg, nil, log)
			if err != nil {
				return err
			}
			defer store.Close()

			return browsePhotos(cmd.Context(), store, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
}

func whatsappLinkCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whatsapp-link",
		Short: "Link a WhatsApp device for host notifications",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := setup()
			if err != nil {
				return err
			}

			wa, err := whatsapp.NewService(cmd.Context(), whatsapp.Config{
				DataDir:     cfg.WhatsAppDataDir,
				CountryCode: cfg.WhatsAppCountryCode,
			}, log)
			if err != nil {
				return err
			}
			defer wa.Disconnect()

			out := cmd.OutOrStdout()
			if wa.IsLinked() {
				fmt.Fprintln(out, "A WhatsApp device is already linked.")
				return nil
			}

			fmt.Fprintln(out, "Connecting to WhatsApp...")
			if err := wa.Connect(cmd.Context(), out); err != nil {
				return err
			}
			if !wa.IsLinked() {
				return fmt.Errorf("pairing did not complete")
			}

			fmt.Fprintln(out, "Linked. Host notifications will be sent to: "+strings.Join(cfg.HostPhones, ", "))
			return nil
		},
	}
}
