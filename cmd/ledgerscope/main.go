package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/ledgerscope/ledgerscope/internal/decoder"
	"github.com/ledgerscope/ledgerscope/internal/decoder/csvx"
	"github.com/ledgerscope/ledgerscope/internal/domain"
	"github.com/ledgerscope/ledgerscope/internal/importer"
	"github.com/ledgerscope/ledgerscope/internal/recon"
	"github.com/ledgerscope/ledgerscope/internal/registry"
	"github.com/ledgerscope/ledgerscope/internal/store"
	"github.com/ledgerscope/ledgerscope/internal/store/firestorestore"
	"github.com/ledgerscope/ledgerscope/internal/store/memstore"
	"github.com/ledgerscope/ledgerscope/internal/store/sqlitestore"
	"github.com/ledgerscope/ledgerscope/internal/ui"
)

const (
	version = "0.1.0"
)

var (
	// Global flags
	versionFlag = flag.Bool("version", false, "Show version")

	// Core CLI flags
	inputFile  = flag.String("file", "", "Statement file to reconcile (required)")
	formatFlag = flag.String("format", "", "Statement format: ofx, csv, xml, cnab (required)")
	userID     = flag.String("user", "", "User ID owning the ledger (required)")
	accountID  = flag.String("account", "", "Account ID the statement belongs to (required)")

	// Backend flags
	dbPath      = flag.String("db", "", "SQLite database path (default: in-memory preview store)")
	projectID   = flag.String("project", "", "Firestore project ID (overrides -db)")
	credentials = flag.String("credentials", "", "Path to Firestore credentials file")

	// Matching and import flags
	layoutFile = flag.String("layout", "", "Custom CSV column layout file (YAML)")
	tolerance  = flag.Int("tolerance", 0, "Date tolerance in days when matching")
	doImport   = flag.Bool("import", false, "Book not-found entries into the ledger")
	verbose    = flag.Bool("verbose", false, "Show per-entry match details")
)

func main() {
	flag.Usage = func() {
		fmt.Fprint(os.Stderr, `ledgerscope - Statement reconciliation against a personal ledger

Usage:
  ledgerscope [flags]

Flags:
`)
		flag.PrintDefaults()
		fmt.Fprint(os.Stderr, `
Examples:
  # Preview how a bank OFX export reconciles against the ledger
  ledgerscope -file extrato.ofx -format ofx -user u1 -account acc1 -db ledger.db

  # Reconcile a CNAB remittance with one day of date tolerance and book the rest
  ledgerscope -file remessa.ret -format cnab -user u1 -account acc1 -db ledger.db -tolerance 1 -import

  # CSV with a custom column layout
  ledgerscope -file export.csv -format csv -user u1 -account acc1 -db ledger.db -layout itau.yaml

`)
	}

	flag.Parse()

	if *versionFlag {
		fmt.Printf("ledgerscope version %s\n", version)
		os.Exit(0)
	}

	for name, value := range map[string]string{
		"-file":    *inputFile,
		"-format":  *formatFlag,
		"-user":    *userID,
		"-account": *accountID,
	} {
		if value == "" {
			fmt.Fprintf(os.Stderr, "Error: %s flag is required\n\n", name)
			flag.Usage()
			os.Exit(1)
		}
	}

	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx := context.Background()

	if !*verbose {
		ui.Header("Reconciling Statement")
		ui.Step(1, 4, "Decoding statement file")
	} else {
		fmt.Fprintf(os.Stderr, "Decoding %s as %s\n", *inputFile, *formatFlag)
	}

	entries, err := decodeFile(ctx)
	if err != nil {
		return err
	}
	if !*verbose {
		ui.Success(fmt.Sprintf("Decoded %d entries", len(entries)))
	} else {
		fmt.Fprintf(os.Stderr, "Decoded %d entries\n", len(entries))
	}

	st, cleanup, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	if !*verbose {
		ui.Step(2, 4, "Loading ledger window")
	}
	from, to := entryWindow(entries, *tolerance)
	ledger, err := st.ListTransactions(ctx, *userID, *accountID, from, to)
	if err != nil {
		return fmt.Errorf("failed to load ledger transactions for %s between %s and %s: %w",
			*userID, from.Format("2006-01-02"), to.Format("2006-01-02"), err)
	}
	if *verbose {
		fmt.Fprintf(os.Stderr, "Loaded %d ledger transactions between %s and %s\n",
			len(ledger), from.Format("2006-01-02"), to.Format("2006-01-02"))
	}

	if !*verbose {
		ui.Step(3, 4, "Matching entries against ledger")
	}
	matcher, err := recon.New(*tolerance)
	if err != nil {
		return err
	}
	result := matcher.Reconcile(entries, ledger)

	reportResult(entries, result)

	if !*doImport {
		if result.Counts.NotFound > 0 {
			ui.Info(fmt.Sprintf("Run with -import to book the %d not-found entries", result.Counts.NotFound))
		}
		return nil
	}

	if !*verbose {
		ui.Step(4, 4, "Booking not-found entries")
	}
	notFound, err := result.NotFoundEntries(entries)
	if err != nil {
		return err
	}
	if len(notFound) == 0 {
		ui.Info("Nothing to import: every entry already has a ledger match")
		return nil
	}

	exec := importer.New(st)
	ids, err := exec.Import(ctx, *userID, *accountID, notFound)
	if err != nil {
		return err
	}
	ui.Success(fmt.Sprintf("Booked %d new ledger transactions", len(ids)))
	if *verbose {
		for i, id := range ids {
			fmt.Fprintf(os.Stderr, "  %s <- %s\n", id, notFound[i].Description())
		}
	}

	acc, err := st.FindAccount(ctx, *accountID, *userID)
	if err != nil {
		return fmt.Errorf("import succeeded but reading the updated account failed: %w", err)
	}
	ui.Info(fmt.Sprintf("Account %s balance: current %s, available %s",
		acc.ID, acc.CurrentBalance.StringFixed(2), acc.AvailableBalance.StringFixed(2)))

	return nil
}

// decodeFile reads the statement file and decodes it with the format the
// caller named. Unknown formats are reported as usage errors before the file
// is even read.
func decodeFile(ctx context.Context) ([]domain.StatementEntry, error) {
	reg, err := buildRegistry()
	if err != nil {
		return nil, err
	}

	format := decoder.Format(*formatFlag)
	if _, err := reg.Get(format); err != nil {
		if errors.Is(err, registry.ErrUnknownFormat) {
			return nil, fmt.Errorf("%w\n\nPass one of the supported formats with -format", err)
		}
		return nil, err
	}

	content, err := os.ReadFile(*inputFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", *inputFile, err)
	}

	entries, err := reg.Decode(ctx, content, format)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", *inputFile, err)
	}
	return entries, nil
}

// buildRegistry wires the default decoders, replacing the CSV decoder when a
// custom layout file is given
func buildRegistry() (*registry.Registry, error) {
	reg, err := registry.New()
	if err != nil {
		return nil, err
	}

	if *layoutFile != "" {
		layout, err := csvx.LoadLayout(*layoutFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load CSV layout %s: %w", *layoutFile, err)
		}
		csvDecoder, err := csvx.New(layout)
		if err != nil {
			return nil, fmt.Errorf("CSV layout %s is invalid: %w", *layoutFile, err)
		}
		reg.Register(decoder.FormatCSV, csvDecoder)
	}

	return reg, nil
}

// openStore picks the persistence backend from the flags: Firestore when a
// project is named, SQLite when a database path is given, otherwise an empty
// in-memory store for previewing a decode.
func openStore(ctx context.Context) (store.Store, func(), error) {
	switch {
	case *projectID != "":
		fs, err := firestorestore.New(ctx, *projectID, *credentials)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to Firestore project %s: %w", *projectID, err)
		}
		return fs, func() { fs.Close() }, nil

	case *dbPath != "":
		db, err := sqlitestore.Open(ctx, *dbPath)
		if err != nil {
			return nil, nil, err
		}
		return db, func() { db.Close() }, nil

	default:
		ui.Warning("No -db or -project given: matching against an empty in-memory ledger")
		return memstore.New(), func() {}, nil
	}
}

// entryWindow returns the competence date range covered by the entries,
// widened by the matching tolerance on both ends
func entryWindow(entries []domain.StatementEntry, toleranceDays int) (time.Time, time.Time) {
	from, to := entries[0].Date(), entries[0].Date()
	for i := range entries[1:] {
		d := entries[i+1].Date()
		if d.Before(from) {
			from = d
		}
		if d.After(to) {
			to = d
		}
	}
	return from.AddDate(0, 0, -toleranceDays), to.AddDate(0, 0, toleranceDays)
}

// reportResult prints the reconciliation summary and, in verbose mode, the
// per-entry classification
func reportResult(entries []domain.StatementEntry, result *recon.Result) {
	fmt.Fprintf(os.Stderr, "\n")
	ui.Success(fmt.Sprintf("Matched: %d", result.Counts.Matched))
	if result.Counts.Ambiguous > 0 {
		ui.Warning(fmt.Sprintf("Ambiguous: %d (need manual review)", result.Counts.Ambiguous))
	}
	ui.Info(fmt.Sprintf("Not found: %d", result.Counts.NotFound))

	if !*verbose {
		return
	}

	for i, res := range result.Results {
		entry := &entries[i]
		line := fmt.Sprintf("%s  %s  %s %s",
			entry.Date().Format("2006-01-02"), entry.Description(),
			entry.Amount().StringFixed(2), entry.Direction())
		switch res.Status {
		case recon.StatusMatched:
			fmt.Fprintf(os.Stderr, "  MATCHED    %s -> %s\n", line, res.LedgerID)
		case recon.StatusAmbiguous:
			fmt.Fprintf(os.Stderr, "  AMBIGUOUS  %s -> candidates %v\n", line, res.CandidateIDs)
		case recon.StatusNotFound:
			fmt.Fprintf(os.Stderr, "  NOT FOUND  %s\n", line)
		}
	}
}
