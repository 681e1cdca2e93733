package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"pagobot/client"
	"pagobot/config"
	"pagobot/conversation"
	"pagobot/decision"
	"pagobot/inbound"
	"pagobot/parsers"
	"pagobot/proof"
	"pagobot/reminder"
	"pagobot/transport"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Connect to the chat bridge and serve the admin API",
	RunE:  runServe,
}

var remindCmd = &cobra.Command{
	Use:   "remind",
	Short: "Send reminders now: one client with --key/--name, else a batch",
	RunE:  runRemind,
}

var clientsCmd = &cobra.Command{
	Use:   "clients",
	Short: "Manage the client registry",
}

var clientsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List clients",
	RunE:  runClientsList,
}

var clientsImportCmd = &cobra.Command{
	Use:   "import <file.csv>",
	Short: "Import clients from phone,name,pay_day,amount,country CSV",
	Args:  cobra.ExactArgs(1),
	RunE:  runClientsImport,
}

var clientsSuspendCmd = &cobra.Command{
	Use:   "suspend <phone>",
	Short: "Stop reminders and escalations for a client",
	Args:  cobra.ExactArgs(1),
	RunE:  func(cmd *cobra.Command, args []string) error { return runSetSuspended(args[0], true) },
}

var clientsResumeCmd = &cobra.Command{
	Use:   "resume <phone>",
	Short: "Resume reminders for a suspended client",
	Args:  cobra.ExactArgs(1),
	RunE:  func(cmd *cobra.Command, args []string) error { return runSetSuspended(args[0], false) },
}

var clientsDeleteCmd = &cobra.Command{
	Use:   "delete <phone>",
	Short: "Delete a client",
	Args:  cobra.ExactArgs(1),
	RunE:  runClientsDelete,
}

var stateCmd = &cobra.Command{
	Use:   "state",
	Short: "Inspect or reset conversation state",
}

var stateResetCmd = &cobra.Command{
	Use:   "reset <sender>",
	Short: "Put a sender back to INITIAL",
	Args:  cobra.ExactArgs(1),
	RunE:  runStateReset,
}

var stateShowCmd = &cobra.Command{
	Use:   "show <sender>",
	Short: "Show a sender's conversation state",
	Args:  cobra.ExactArgs(1),
	RunE:  runStateShow,
}

func init() {
	remindCmd.Flags().String("key", "", "Phone of a single client")
	remindCmd.Flags().String("name", "", "Name of a single client")
	remindCmd.Flags().Int("offset", 0, "Batch rule: 0 due today, N>0 due in N days, N<0 overdue by -N days")

	clientsCmd.AddCommand(clientsListCmd)
	clientsCmd.AddCommand(clientsImportCmd)
	clientsCmd.AddCommand(clientsSuspendCmd)
	clientsCmd.AddCommand(clientsResumeCmd)
	clientsCmd.AddCommand(clientsDeleteCmd)

	stateCmd.AddCommand(stateResetCmd)
	stateCmd.AddCommand(stateShowCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := config.GetConfig()
	if cfg.ApproverID == "" {
		return fmt.Errorf("approverId is not configured")
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := openApp(cfg, true)
	if err != nil {
		return err
	}
	defer a.Close()
	proofs, err := a.proofStore(ctx)
	if err != nil {
		return err
	}

	log.Printf("Connecting to chat bridge %s...", cfg.BridgeURL)
	bridge, err := transport.DialBridge(ctx, cfg.BridgeURL)
	if err != nil {
		return err
	}
	defer bridge.Close()
	log.Println("Chat bridge connected.")

	dispatcher := a.dispatcher(bridge)
	decisions := decision.NewHandler(bridge, a.clients, a.states, proofs, cfg.ApproverID)
	pipeline := proof.NewPipeline(bridge, a.clients, a.states, cfg.ApproverID)
	router := inbound.NewRouter(bridge, a.clients, a.states, decisions, pipeline, cfg.ApproverID)

	go router.Run(ctx, bridge.Messages())
	go reminder.NewScheduler(dispatcher, a.clients, cfg.ReminderHour, cfg.ReminderOffsets).Run(ctx)

	mux := http.NewServeMux()
	SetupRoutes(mux, a, dispatcher)
	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	log.Printf("Starting admin API on %s", cfg.HTTPAddr)
	return serveHTTP(ctx, srv, bridge.Done())
}

// serveHTTP runs srv until ctx is done or the bridge drops. A dropped bridge
// is reported as ErrBridgeClosed so the process exits non-zero.
func serveHTTP(ctx context.Context, srv *http.Server, bridgeDone <-chan struct{}) error {
	errc := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- fmt.Errorf("server error: %w", err)
			return
		}
		errc <- nil
	}()

	var cause error
	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	case <-bridgeDone:
		log.Println("ERROR: chat bridge disconnected, shutting down")
		cause = transport.ErrBridgeClosed
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("WARN: admin API shutdown: %v", err)
	}
	if err := <-errc; err != nil {
		return err
	}
	return cause
}

func runRemind(cmd *cobra.Command, args []string) error {
	key, _ := cmd.Flags().GetString("key")
	name, _ := cmd.Flags().GetString("name")
	offset, _ := cmd.Flags().GetInt("offset")

	cfg := config.GetConfig()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := openApp(cfg, true)
	if err != nil {
		return err
	}
	defer a.Close()
	bridge, err := transport.DialBridge(ctx, cfg.BridgeURL)
	if err != nil {
		return err
	}
	defer bridge.Close()
	d := a.dispatcher(bridge)

	if key != "" || name != "" {
		c, dups, err := reminder.Lookup(a.clients, key, name)
		if err != nil {
			return err
		}
		if len(dups) > 0 {
			fmt.Printf("Warning: %d other clients are named %q (%v)\n", len(dups), name, dups)
		}
		out, err := d.SendReminder(ctx, c)
		fmt.Printf("%s\t%s\t%s\t%s\n", out.Key, out.Name, out.Status, out.Error)
		return err
	}

	clients, err := a.clients.List()
	if err != nil {
		return err
	}
	report := d.RunBatch(ctx, clients, reminder.Rule{Offset: offset})
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	for _, o := range report.Outcomes {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", o.Key, o.Name, o.Status, o.Error)
	}
	w.Flush()
	fmt.Printf("sent=%d failed=%d skipped=%d\n", report.Sent, report.Failed, report.Skipped)
	if report.Failed > 0 {
		return fmt.Errorf("%d reminders failed", report.Failed)
	}
	return nil
}

func runClientsList(cmd *cobra.Command, args []string) error {
	a, err := openApp(config.GetConfig(), false)
	if err != nil {
		return err
	}
	defer a.Close()

	clients, err := a.clients.List()
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "PHONE\tNAME\tDAY\tAMOUNT\tCOUNTRY\tSTATUS\tPAYMENTS")
	for _, c := range clients {
		status := "active"
		switch {
		case c.Suspended:
			status = "suspended"
		case c.PendingSetup:
			status = "pending setup"
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\t%s\t%d\n", c.Key, c.Name, c.PayDay, c.Amount, c.CountryFlag, status, len(c.Payments))
	}
	return w.Flush()
}

func runClientsImport(cmd *cobra.Command, args []string) error {
	f, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer f.Close()
	rows, skipped, err := parsers.ParseClientCSV(f)
	if err != nil {
		return err
	}

	a, err := openApp(config.GetConfig(), false)
	if err != nil {
		return err
	}
	defer a.Close()

	res := client.Import(a.clients, rows, skipped)
	for _, s := range res.Skipped {
		fmt.Printf("line %d skipped: %s\n", s.Line, s.Reason)
	}
	fmt.Printf("Imported %d clients, skipped %d rows\n", res.Imported, len(res.Skipped))
	return nil
}

func runSetSuspended(phone string, suspended bool) error {
	a, err := openApp(config.GetConfig(), false)
	if err != nil {
		return err
	}
	defer a.Close()
	return client.SetSuspended(a.clients, phone, suspended)
}

func runClientsDelete(cmd *cobra.Command, args []string) error {
	a, err := openApp(config.GetConfig(), false)
	if err != nil {
		return err
	}
	defer a.Close()
	return client.Remove(a.clients, args[0])
}

func runStateReset(cmd *cobra.Command, args []string) error {
	states, err := conversation.OpenBoltStore(config.GetConfig().StatePath)
	if err != nil {
		return err
	}
	defer states.Close()
	sender := conversation.SenderID(args[0])
	if err := states.Reset(sender); err != nil {
		return err
	}
	fmt.Printf("%s reset to INITIAL\n", sender)
	return nil
}

func runStateShow(cmd *cobra.Command, args []string) error {
	states, err := conversation.OpenBoltStore(config.GetConfig().StatePath)
	if err != nil {
		return err
	}
	defer states.Close()
	sender := conversation.SenderID(args[0])
	st, err := states.Get(sender)
	if err != nil {
		return err
	}
	if st == nil {
		fmt.Printf("%s has no conversation\n", sender)
		return nil
	}
	fmt.Printf("%s\t%s\t%s\t%s\t%s\n", st.SenderID, st.State, st.LinkedClientName, st.LinkedClientNumber, st.UpdatedAt.Format(time.RFC3339))
	return nil
}
