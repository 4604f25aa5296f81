package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-sla/internal/api/dto"
	"github.com/spec-kit/ticket-sla/internal/auth"
	"github.com/spec-kit/ticket-sla/internal/calendar"
	"github.com/spec-kit/ticket-sla/internal/config"
	"github.com/spec-kit/ticket-sla/internal/domain"
	"github.com/spec-kit/ticket-sla/internal/events"
	"github.com/spec-kit/ticket-sla/internal/observability"
	"github.com/spec-kit/ticket-sla/internal/persistence"
	"github.com/spec-kit/ticket-sla/internal/repository"
	"github.com/spec-kit/ticket-sla/internal/service"
	"github.com/spec-kit/ticket-sla/internal/sla"
)

type cli struct {
	cfg          *config.Config
	calendarFile string
	now          func() time.Time
	loadConfig   func() (*config.Config, error)
}

func newRootCmd() *cobra.Command {
	return newCLI(config.Load, time.Now).rootCmd()
}

func newCLI(load func() (*config.Config, error), now func() time.Time) *cli {
	return &cli{loadConfig: load, now: now}
}

func (c *cli) rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "slactl",
		Short:         "Inspect first response SLA deadlines and run sweeps",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := c.loadConfig()
			if err != nil {
				return err
			}
			if c.calendarFile != "" {
				cfg.SLA.CalendarFile = c.calendarFile
			}
			c.cfg = cfg
			return nil
		},
	}
	cmd.PersistentFlags().StringVar(&c.calendarFile, "calendar-file", "", "YAML calendar override (defaults to SLA_CALENDAR_FILE)")

	cmd.AddCommand(
		c.deadlineCmd(),
		c.statusCmd(),
		c.calendarCmd(),
		c.sweepCmd(),
		c.tokenCmd(),
	)
	return cmd
}

func (c *cli) calendar() (sla.CalendarConfig, error) {
	return calendar.Build(c.cfg.SLA, calendar.Years(c.now()))
}

func (c *cli) deadlineCmd() *cobra.Command {
	var createdAt, now string
	cmd := &cobra.Command{
		Use:   "deadline",
		Short: "Compute the first response deadline of a ticket created at --created-at",
		RunE: func(cmd *cobra.Command, args []string) error {
			cal, err := c.calendar()
			if err != nil {
				return err
			}
			created, err := parseTimeFlag("created-at", createdAt, c.now())
			if err != nil {
				return err
			}
			at, err := parseTimeFlag("now", now, c.now())
			if err != nil {
				return err
			}
			due, err := sla.ComputeDeadline(created, cal)
			if err != nil {
				return err
			}
			reading, err := sla.Evaluate(due, at, cal)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "created_at:        %s\n", created.UTC().Format(time.RFC3339))
			fmt.Fprintf(out, "due_at:            %s\n", due.Format(time.RFC3339))
			fmt.Fprintf(out, "due_at_local:      %s\n", due.In(cal.Location()).Format(time.RFC3339))
			printReading(out, reading)
			return nil
		},
	}
	cmd.Flags().StringVar(&createdAt, "created-at", "", "ticket creation time, RFC3339 (default now)")
	cmd.Flags().StringVar(&now, "now", "", "evaluation time, RFC3339 (default now)")
	return cmd
}

func (c *cli) statusCmd() *cobra.Command {
	var deadline, now string
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Classify a deadline at --now",
		RunE: func(cmd *cobra.Command, args []string) error {
			if deadline == "" {
				return errors.New("--deadline is required")
			}
			cal, err := c.calendar()
			if err != nil {
				return err
			}
			due, err := parseTimeFlag("deadline", deadline, time.Time{})
			if err != nil {
				return err
			}
			at, err := parseTimeFlag("now", now, c.now())
			if err != nil {
				return err
			}
			reading, err := sla.Evaluate(due, at, cal)
			if err != nil {
				return err
			}
			printReading(cmd.OutOrStdout(), reading)
			return nil
		},
	}
	cmd.Flags().StringVar(&deadline, "deadline", "", "deadline, RFC3339")
	cmd.Flags().StringVar(&now, "now", "", "evaluation time, RFC3339 (default now)")
	return cmd
}

func (c *cli) calendarCmd() *cobra.Command {
	var save string
	cmd := &cobra.Command{
		Use:   "calendar",
		Short: "Print the effective business calendar",
		RunE: func(cmd *cobra.Command, args []string) error {
			cal, err := c.calendar()
			if err != nil {
				return err
			}
			resp := dto.NewCalendarResponse(cal)
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "timezone:             %s\n", resp.Timezone)
			fmt.Fprintf(out, "workdays:             %s\n", strings.Join(resp.Workdays, ","))
			fmt.Fprintf(out, "working_hours:        %02d:00-%02d:00\n", resp.WorkStartHour, resp.WorkEndHour)
			fmt.Fprintf(out, "first_response_hours: %d\n", resp.FirstResponseHours)
			fmt.Fprintf(out, "warn_thresholds:      %d,%d\n", resp.WarnThresholds[0], resp.WarnThresholds[1])
			fmt.Fprintf(out, "holidays:             %d\n", len(resp.Holidays))
			for _, d := range resp.Holidays {
				fmt.Fprintf(out, "  - %s\n", d)
			}
			if save != "" {
				if err := calendar.Save(save, c.cfg.SLA); err != nil {
					return fmt.Errorf("save calendar: %w", err)
				}
				fmt.Fprintf(out, "saved %s\n", save)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&save, "save", "", "write the configuration as a calendar file")
	return cmd
}

func (c *cli) sweepCmd() *cobra.Command {
	var batchSize int
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Run one SLA sweep against the database",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			logger, err := observability.NewLogger(c.cfg.Logger)
			if err != nil {
				return err
			}
			defer logger.Sync() //nolint:errcheck

			if batchSize > 0 {
				c.cfg.Sweep.BatchSize = batchSize
			}
			result, err := c.runSweep(ctx, logger)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "checked: %d\nchanged: %d\nfailed:  %d\nduration: %s\n",
				result.Checked, result.Changed, result.Failed, result.Duration.Round(time.Millisecond))
			for _, st := range []sla.Status{sla.StatusNormal, sla.StatusWarn, sla.StatusOverdue} {
				fmt.Fprintf(out, "%s: %d\n", st, result.Counts[st])
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&batchSize, "batch-size", 0, "tickets per page (defaults to SLA_SWEEP_BATCH_SIZE)")
	return cmd
}

func (c *cli) runSweep(ctx context.Context, logger *zap.Logger) (service.SweepResult, error) {
	calendars, err := calendar.NewProvider(c.cfg.SLA, c.now)
	if err != nil {
		return service.SweepResult{}, err
	}
	pg, err := persistence.NewPostgres(ctx, c.cfg.Postgres, logger)
	if err != nil {
		return service.SweepResult{}, err
	}
	defer pg.Close()
	redis := persistence.NewRedis(c.cfg.Redis, logger)
	defer redis.Close()

	dispatcher := events.NewInMemoryDispatcher()
	service.NewNotificationService(dispatcher, logger, c.cfg.Notification).RegisterHandlers()

	pool := pg.PoolHandle()
	sweeps := service.NewSweepService(service.SweepDependencies{
		TicketRepo:  repository.NewTicketRepository(pool),
		HistoryRepo: repository.NewTicketHistoryRepository(pool),
		StatusCache: repository.NewSLAStatusCache(redis.Client, ""),
		Calendar:    calendars,
		Dispatcher:  dispatcher,
		Logger:      logger,
		Now:         c.now,
		BatchSize:   c.cfg.Sweep.BatchSize,
	})
	return sweeps.Sweep(ctx)
}

func (c *cli) tokenCmd() *cobra.Command {
	var subject, id, role string
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a bearer token for local testing",
		RunE: func(cmd *cobra.Command, args []string) error {
			if id == "" {
				return errors.New("--id is required")
			}
			subjectType := domain.SubjectType(strings.ToUpper(subject))
			var staffRole *domain.StaffRole
			switch subjectType {
			case domain.SubjectTypeUser:
				if role != "" {
					return errors.New("--role only applies to staff tokens")
				}
			case domain.SubjectTypeStaff:
				r := domain.StaffRoleAgent
				if role != "" {
					r = domain.StaffRole(strings.ToUpper(role))
				}
				switch r {
				case domain.StaffRoleAgent, domain.StaffRoleTeamLead, domain.StaffRoleAdmin:
				default:
					return fmt.Errorf("unknown staff role %q", role)
				}
				staffRole = &r
			default:
				return fmt.Errorf("unknown subject type %q", subject)
			}

			tokens := auth.NewTokenManager(c.cfg.Auth.JWTSecret, c.cfg.Auth.AccessTokenTTLMinutes)
			token, expires, err := tokens.GenerateToken(id, subjectType, staffRole)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			fmt.Fprintf(cmd.ErrOrStderr(), "expires %s\n", expires.UTC().Format(time.RFC3339))
			return nil
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "user", "user or staff")
	cmd.Flags().StringVar(&id, "id", "", "subject id")
	cmd.Flags().StringVar(&role, "role", "", "staff role: agent, team_lead or admin (default agent)")
	return cmd
}

func printReading(out io.Writer, r sla.Reading) {
	fmt.Fprintf(out, "status:            %s\n", r.Status)
	fmt.Fprintf(out, "remaining_minutes: %d\n", r.RemainingMinutes)
	fmt.Fprintf(out, "critical:          %t\n", r.Critical)
}

func parseTimeFlag(name, raw string, fallback time.Time) (time.Time, error) {
	if raw == "" {
		if fallback.IsZero() {
			return time.Time{}, fmt.Errorf("--%s is required", name)
		}
		return fallback, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("--%s: %w", name, err)
	}
	return t, nil
}
