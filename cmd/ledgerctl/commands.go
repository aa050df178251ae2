package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/google/subcommands"

	"github.com/Flora-Ebah/kairos-backend/internal/domain"
	"github.com/Flora-Ebah/kairos-backend/internal/platform/config"
	"github.com/Flora-Ebah/kairos-backend/internal/platform/logging"
	"github.com/Flora-Ebah/kairos-backend/internal/wiring"
)

var commands = []subcommands.Command{
	&closeDayCmd{},
	&reconcileCmd{},
	&driverSnapshotCmd{},
	&fleetSnapshotCmd{},
}

// open loads configuration and wires the backend. Logs go to stderr so stdout stays a report.
func open(ctx context.Context) (*wiring.App, error) {
	cfg, err := config.Load(*configPath)
	if err != nil {
		return nil, err
	}
	log := logging.New(logging.Options{Service: "kairos-ledgerctl", Level: cfg.Log.Level, Format: "text", Output: os.Stderr})
	return wiring.Open(ctx, cfg, log)
}

// parseDay reads a YYYY-MM-DD flag in the business timezone; empty means today.
func parseDay(app *wiring.App, v string) (time.Time, error) {
	if v == "" {
		return app.Ledgers.Day(app.Clock.Now()), nil
	}
	d, err := time.ParseInLocation(time.DateOnly, v, app.Clock.Location())
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: want YYYY-MM-DD", v)
	}
	return d, nil
}

func fail(err error) subcommands.ExitStatus {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	return subcommands.ExitFailure
}

type closeDayCmd struct {
	day   string
	notes string
}

func (*closeDayCmd) Name() string     { return "close-day" }
func (*closeDayCmd) Synopsis() string { return "close every active ledger of a day" }
func (*closeDayCmd) Usage() string {
	return `ledgerctl close-day [-d <date>] [-notes <text>]

  Closes the active ledgers of the given day (defaults to yesterday).
`
}

func (c *closeDayCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.day, "d", "", "day to close, YYYY-MM-DD (defaults to yesterday)")
	f.StringVar(&c.notes, "notes", "", "notes recorded on each closed ledger")
}

func (c *closeDayCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	app, err := open(ctx)
	if err != nil {
		return fail(err)
	}
	defer app.Close()

	day := app.Ledgers.Day(app.Clock.Now()).AddDate(0, 0, -1)
	if c.day != "" {
		if day, err = parseDay(app, c.day); err != nil {
			return fail(err)
		}
	}
	rep, err := app.Ledgers.CloseActiveForDay(ctx, day, c.notes)
	if err != nil {
		return fail(err)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "LEDGER\tDRIVER\tBALANCE\tRESULT")
	for _, d := range rep.Details {
		result := "closed"
		if !d.Closed {
			result = "failed: " + d.Error
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", d.LedgerID, d.Driver, app.Money.Format(d.Balance), result)
	}
	_ = w.Flush()
	fmt.Printf("%s: %d processed, %d closed, %d failed\n", rep.Day.Format(time.DateOnly), rep.Processed, rep.Closed, rep.Failed)
	if rep.Failed > 0 {
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

type reconcileCmd struct {
	day    string
	ledger string
}

func (*reconcileCmd) Name() string     { return "reconcile" }
func (*reconcileCmd) Synopsis() string { return "recompute ledger balances from their entries" }
func (*reconcileCmd) Usage() string {
	return `ledgerctl reconcile [-d <date> | -ledger <id>]

  Recomputes running balances from the entry log and repairs any drift.
`
}

func (c *reconcileCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.day, "d", "", "reconcile every ledger of this day, YYYY-MM-DD (defaults to today)")
	f.StringVar(&c.ledger, "ledger", "", "reconcile a single ledger")
}

func (c *reconcileCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	app, err := open(ctx)
	if err != nil {
		return fail(err)
	}
	defer app.Close()

	if c.ledger != "" {
		res, err := app.Checker.Reconcile(ctx, domain.LedgerID(c.ledger))
		if err != nil {
			return fail(err)
		}
		if res.Reconciled {
			fmt.Printf("%s: repaired %s -> %s\n", res.LedgerID, app.Money.Format(res.Previous), app.Money.Format(res.Expected))
		} else {
			fmt.Printf("%s: consistent at %s\n", res.LedgerID, app.Money.Format(res.Expected))
		}
		return subcommands.ExitSuccess
	}

	day, err := parseDay(app, c.day)
	if err != nil {
		return fail(err)
	}
	rep, err := app.Checker.ReconcileDay(ctx, day)
	if err != nil {
		return fail(err)
	}
	for _, res := range rep.Results {
		if res.Reconciled {
			fmt.Printf("%s: repaired %s -> %s\n", res.LedgerID, app.Money.Format(res.Previous), app.Money.Format(res.Expected))
		}
	}
	fmt.Printf("%s: %d checked, %d corrected\n", rep.Day.Format(time.DateOnly), rep.Checked, rep.Corrected)
	return subcommands.ExitSuccess
}

type periodFlags struct {
	from string
	to   string
}

func (p *periodFlags) set(f *flag.FlagSet) {
	f.StringVar(&p.from, "from", "", "first day, YYYY-MM-DD (defaults to today)")
	f.StringVar(&p.to, "to", "", "last day, YYYY-MM-DD (defaults to -from)")
}

func (p *periodFlags) bounds(app *wiring.App) (time.Time, time.Time, error) {
	from, err := parseDay(app, p.from)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	to := from
	if p.to != "" {
		if to, err = parseDay(app, p.to); err != nil {
			return time.Time{}, time.Time{}, err
		}
	}
	start, end := app.Finance.Period(from, to)
	return start, end, nil
}

type driverSnapshotCmd struct {
	period periodFlags
	source string
}

func (*driverSnapshotCmd) Name() string     { return "driver-snapshot" }
func (*driverSnapshotCmd) Synopsis() string { return "show one driver's cash position over a period" }
func (*driverSnapshotCmd) Usage() string {
	return `ledgerctl driver-snapshot [-source primary|specialized] [-from <date>] [-to <date>] <driver-id>

  Resolves the driver across both identity stores and prints the merged cash position.
`
}

func (c *driverSnapshotCmd) SetFlags(f *flag.FlagSet) {
	c.period.set(f)
	f.StringVar(&c.source, "source", "", "identity store that issued the id (primary or specialized)")
}

func (c *driverSnapshotCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "Error: exactly one driver id is required")
		return subcommands.ExitUsageError
	}
	app, err := open(ctx)
	if err != nil {
		return fail(err)
	}
	defer app.Close()

	start, end, err := c.period.bounds(app)
	if err != nil {
		return fail(err)
	}
	driver, err := app.Resolver.Resolve(ctx, domain.DriverRef{ID: domain.DriverID(f.Arg(0)), Source: domain.IdentitySource(c.source)})
	if err != nil {
		return fail(err)
	}
	snap, err := app.Finance.ComputeDriverFinancials(ctx, driver, start, end)
	if err != nil {
		return fail(err)
	}
	printSnapshot(os.Stdout, app, snap)
	return subcommands.ExitSuccess
}

type fleetSnapshotCmd struct {
	period periodFlags
}

func (*fleetSnapshotCmd) Name() string     { return "fleet-snapshot" }
func (*fleetSnapshotCmd) Synopsis() string { return "show the fleet's cash position over a period" }
func (*fleetSnapshotCmd) Usage() string {
	return `ledgerctl fleet-snapshot [-from <date>] [-to <date>]

  Prints one line per canonical driver followed by fleet totals.
`
}

func (c *fleetSnapshotCmd) SetFlags(f *flag.FlagSet) { c.period.set(f) }

func (c *fleetSnapshotCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	app, err := open(ctx)
	if err != nil {
		return fail(err)
	}
	defer app.Close()

	start, end, err := c.period.bounds(app)
	if err != nil {
		return fail(err)
	}
	fleet, err := app.Finance.ComputeFleetFinancials(ctx, start, end)
	if err != nil {
		return fail(err)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "DRIVER\tOPENING\tCASH\tEXPENSES\tBALANCE\tSTATUS")
	for _, d := range fleet.Drivers {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			d.Driver.DisplayName,
			app.Money.Format(d.OpeningAmount),
			app.Money.Format(d.CashCollected),
			app.Money.Format(d.ExpensesTotal),
			app.Money.Format(d.CashBalance),
			d.Status,
		)
	}
	_ = w.Flush()

	fmt.Printf("\nTrips completed:  %d\n", fleet.TripsCompleted)
	fmt.Printf("Revenue:          %s\n", app.Money.Format(fleet.TotalRevenue))
	for _, m := range fleet.RevenueByMethod {
		fmt.Printf("  %-14s  %s (%d%%)\n", m.Method, app.Money.Format(m.Amount), m.Percent)
	}
	fmt.Printf("Expenses:         %s\n", app.Money.Format(fleet.TotalExpenses))
	fmt.Printf("Net margin:       %s (%d%%)\n", app.Money.Format(fleet.NetMargin), fleet.MarginPercent)
	fmt.Printf("Active treasury:  %s over %d ledger days\n", app.Money.Format(fleet.ActiveTreasury), fleet.LedgerDays)
	fmt.Printf("Urgent drivers:   %d\n", fleet.UrgentDrivers)
	return subcommands.ExitSuccess
}

func printSnapshot(out io.Writer, app *wiring.App, s domain.DriverFinancialSnapshot) {
	fmt.Fprintf(out, "%s (%s .. %s)\n", s.Driver.DisplayName, s.PeriodStart.Format(time.DateOnly), s.PeriodEnd.Format(time.DateOnly))
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "Opening\t%s\n", app.Money.Format(s.OpeningAmount))
	fmt.Fprintf(w, "Cash collected\t%s\n", app.Money.Format(s.CashCollected))
	fmt.Fprintf(w, "Credit collected\t%s\n", app.Money.Format(s.CreditCollected))
	fmt.Fprintf(w, "Trips completed\t%d\n", s.TripsCompleted)
	fmt.Fprintf(w, "Expenses\t%s\n", app.Money.Format(s.ExpensesTotal))
	fmt.Fprintf(w, "  maintenance\t%s\n", app.Money.Format(s.Charges.Maintenance))
	fmt.Fprintf(w, "  fuel\t%s\n", app.Money.Format(s.Charges.Fuel))
	fmt.Fprintf(w, "  other\t%s\n", app.Money.Format(s.Charges.Other))
	fmt.Fprintf(w, "Cash balance\t%s (%s)\n", app.Money.Format(s.CashBalance), s.Status)
	_ = w.Flush()
	if s.FallbackTrips > 0 {
		fmt.Fprintf(out, "%d trip(s) counted at billed amount: no collected amount was recorded\n", s.FallbackTrips)
	}
	if d := s.Diagnostic; d != nil && d.TripsFound > 0 {
		fmt.Fprintf(out, "%s: %d trip(s), %s cash seen since %s\n", d.Label, d.TripsFound, app.Money.Format(d.CashSeen), d.From.Format(time.DateOnly))
	}
}
