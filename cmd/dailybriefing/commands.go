package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"DailyBriefing/internal/app"
	"DailyBriefing/internal/config"
	"DailyBriefing/internal/domain"
	"DailyBriefing/internal/logging"
)

var errUsersFailed = errors.New("one or more users failed")

type cli struct {
	configPath string
	cfg        config.Config
	logger     *slog.Logger
}

func newRootCmd() *cobra.Command {
	c := &cli{}

	root := &cobra.Command{
		Use:   "dailybriefing",
		Short: "Personal daily newspaper delivered to Kindle",
		Long: `dailybriefing scans each subscriber's feeds, lets a language model pick and
summarize the relevant stories, renders a PDF/EPUB edition and emails it to
the subscriber's Kindle address.

Example usage:
  dailybriefing run                  # one batch over all active users
  dailybriefing run --user Maria     # only Maria
  dailybriefing run --dry-run        # render without sending
  dailybriefing schedule             # run daily at scheduler.cronExpression
  dailybriefing send                 # resend the newest document`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.load()
		},
	}
	root.PersistentFlags().StringVar(&c.configPath, "config", "", "config file (default $BRIEFING_CONFIG or config/settings.yaml)")

	root.AddCommand(c.runCmd(), c.scheduleCmd(), c.sendCmd(), c.migrateCmd(), c.seedCmd())
	return root
}

func (c *cli) load() error {
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return err
	}
	c.cfg = cfg
	c.logger = logging.New(cfg.Logging.Level, cfg.Logging.Format)
	return nil
}

func (c *cli) runCmd() *cobra.Command {
	var opts app.RunOptions

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one batch over all active users",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.DryRun {
				c.cfg.Delivery.Enabled = false
			}
			if err := c.cfg.Validate(); err != nil {
				return err
			}

			application, err := app.New(cmd.Context(), c.cfg, c.logger)
			if err != nil {
				return err
			}
			defer application.Close()

			reports, err := application.Run(cmd.Context(), opts)
			printReports(cmd.OutOrStdout(), reports)
			if err != nil {
				return err
			}
			for _, r := range reports {
				if r.Failed() {
					return errUsersFailed
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&opts.User, "user", "", "only process the user with this name or first name")
	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "render documents without delivering or recording history")
	return cmd
}

func (c *cli) scheduleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schedule",
		Short: "Run the batch every day at the configured time",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.cfg.Validate(); err != nil {
				return err
			}

			application, err := app.New(cmd.Context(), c.cfg, c.logger)
			if err != nil {
				return err
			}
			defer application.Close()

			return application.Schedule(cmd.Context())
		},
	}
}

func (c *cli) sendCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "send [FILE]",
		Short: "Email an existing document to KINDLE_EMAIL",
		Long:  "Email FILE, or the newest PDF/EPUB in the output directory, to the configured Kindle address.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var missing []string
			if c.cfg.SMTP.Username == "" {
				missing = append(missing, "SENDER_EMAIL")
			}
			if c.cfg.SMTP.Password == "" {
				missing = append(missing, "EMAIL_PASSWORD")
			}
			if c.cfg.Delivery.To == "" {
				missing = append(missing, "KINDLE_EMAIL")
			}
			if len(missing) > 0 {
				return &config.MissingError{Names: missing}
			}

			application, err := app.New(cmd.Context(), c.cfg, c.logger)
			if err != nil {
				return err
			}
			defer application.Close()

			var path string
			if len(args) == 1 {
				path = args[0]
			}
			sent, err := application.Send(cmd.Context(), path)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "sent %s to %s\n", sent, c.cfg.Delivery.To)
			return nil
		},
	}
}

func (c *cli) migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the database schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			application, err := app.New(cmd.Context(), c.cfg, c.logger)
			if err != nil {
				return err
			}
			defer application.Close()

			if err := application.Migrate(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "schema ready (%s)\n", c.cfg.Database.Driver)
			return nil
		},
	}
}

func (c *cli) seedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Import the users declared in the config file into the database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			application, err := app.New(cmd.Context(), c.cfg, c.logger)
			if err != nil {
				return err
			}
			defer application.Close()

			created, err := application.Seed(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d users imported\n", created)
			return nil
		},
	}
}

func printReports(w io.Writer, reports []domain.RunReport) {
	for _, r := range reports {
		if r.Failed() {
			fmt.Fprintf(w, "%-20s failed at %s: %v\n", r.User.Name, r.FailedAt, r.Err)
			continue
		}
		doc := "-"
		if len(r.Documents) > 0 {
			doc = r.Documents[0]
		}
		fmt.Fprintf(w, "%-20s %d/%d articles  delivered=%t  recorded=%d  %s\n",
			r.User.Name, r.Articles, r.Candidates, r.Delivered, r.Recorded, doc)
	}
}
