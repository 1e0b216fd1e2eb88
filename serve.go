package main

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"

	bookingx "github.com/tanpawarit/Resilient-Tool-Gateway/agent/booking"
	fixturex "github.com/tanpawarit/Resilient-Tool-Gateway/agent/fixture"
	serverx "github.com/tanpawarit/Resilient-Tool-Gateway/agent/server"
	toolx "github.com/tanpawarit/Resilient-Tool-Gateway/agent/tool"
	configx "github.com/tanpawarit/Resilient-Tool-Gateway/pkg/config"
	qstashx "github.com/tanpawarit/Resilient-Tool-Gateway/pkg/qstash"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the tool server over stdio",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) (err error) {
	ctx := cmd.Context()

	catalog, err := fixturex.Load()
	if err != nil {
		return fmt.Errorf("load fixtures: %w", err)
	}

	store, closeStore, err := openBookingStore(ctx)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Append(err, closeStore())
	}()

	sender, err := newSMSSender()
	if err != nil {
		return err
	}

	box, err := toolx.NewToolbox(catalog, store, toolx.WithSMSSender(sender))
	if err != nil {
		return err
	}

	validator, err := toolx.NewValidator()
	if err != nil {
		return err
	}

	srv, err := serverx.New(ctx, toolx.NewExecutor(box), validator)
	if err != nil {
		return err
	}
	return srv.Run(ctx, &mcp.StdioTransport{})
}

// openBookingStore restores bookings from Postgres when BOOKING_JOURNAL_DSN is
// set and falls back to a memory-only store otherwise.
func openBookingStore(ctx context.Context) (*bookingx.Store, func() error, error) {
	noop := func() error { return nil }

	journalCfg, err := configx.New[bookingx.JournalConfig]("BOOKING_JOURNAL")
	if err != nil {
		return nil, noop, fmt.Errorf("load booking journal config: %w", err)
	}
	if !journalCfg.Enabled() {
		return bookingx.NewStore(), noop, nil
	}

	journal, err := bookingx.OpenPostgresJournal(*journalCfg)
	if err != nil {
		return nil, noop, err
	}
	if err := journal.CreateSchema(ctx); err != nil {
		return nil, noop, multierr.Append(err, journal.Close())
	}

	store := bookingx.NewStore(bookingx.WithJournal(journal))
	if err := store.Restore(ctx); err != nil {
		return nil, noop, multierr.Append(err, journal.Close())
	}
	log.Info().Int("bookings", store.Len()).Msg("booking_journal_enabled")
	return store, journal.Close, nil
}

// newSMSSender queues through QStash when SMS_DESTINATION is set; otherwise
// messages stay in the in-memory outbox.
func newSMSSender() (toolx.SMSSender, error) {
	smsCfg, err := configx.New[toolx.SMSConfig]("SMS")
	if err != nil {
		return nil, fmt.Errorf("load sms config: %w", err)
	}
	if !smsCfg.Enabled() {
		return toolx.NewOutbox(), nil
	}

	qstashCfg, err := configx.New[qstashx.Config]("QSTASH")
	if err != nil {
		return nil, fmt.Errorf("load qstash config: %w", err)
	}
	client, err := qstashx.NewClient(*qstashCfg)
	if err != nil {
		return nil, err
	}
	return toolx.NewQStashSender(client, *smsCfg)
}
