package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/Victor-armando18/product-configurator/internal/config"
	"github.com/Victor-armando18/product-configurator/internal/domain"
	"github.com/Victor-armando18/product-configurator/internal/infrastructure/logging"
	"github.com/Victor-armando18/product-configurator/internal/usecase/session"
	"github.com/Victor-armando18/product-configurator/pkg/engine"
)

const toolVersion = "0.1.0"

type quoteFlags struct {
	catalog      string
	selections   []string
	quantity     int
	jurisdiction string
	taxRates     string
	maxPasses    int
	output       string
}

// rejection is a --select that the session refused.
type rejection struct {
	Select string `json:"select"`
	Reason string `json:"reason"`
}

type quoteReport struct {
	Snapshot domain.Snapshot `json:"snapshot"`
	Rejected []rejection     `json:"rejected,omitempty"`
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	var logLevel string
	var log zerolog.Logger

	root := &cobra.Command{
		Use:   "configurator",
		Short: "Product configuration rules and pricing engine",
		Long: `configurator evaluates product catalogs: it applies selections, runs the
rule set to a fixed point, validates the result and prices it.

Examples:
  configurator validate testdata/catalogs/bike.yaml
  configurator quote --catalog testdata/catalogs/bike.yaml --select frame=carbon --select accessories=rack,bell
  configurator quote --catalog desk.json --quantity 10 --jurisdiction PT --tax-rates rates.yaml --output json`,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			log = logging.New(stderr, logLevel, "console")
		},
	}
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "Log level (debug, info, warn, error)")

	qf := &quoteFlags{}
	quoteCmd := &cobra.Command{
		Use:   "quote",
		Short: "Apply selections to a catalog and print the priced result",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuote(cmd.OutOrStdout(), log, qf)
		},
	}
	quoteCmd.Flags().StringVarP(&qf.catalog, "catalog", "c", "", "Catalog file (.json, .yaml or .yml)")
	quoteCmd.Flags().StringArrayVarP(&qf.selections, "select", "s", nil, "Selection as component=option[,option...]; repeatable, applied in order")
	quoteCmd.Flags().IntVarP(&qf.quantity, "quantity", "q", 1, "Ordered quantity")
	quoteCmd.Flags().StringVarP(&qf.jurisdiction, "jurisdiction", "j", "", "Tax jurisdiction code")
	quoteCmd.Flags().StringVar(&qf.taxRates, "tax-rates", "", "YAML file with tax rates in basis points")
	quoteCmd.Flags().IntVar(&qf.maxPasses, "max-passes", 10, "Maximum rule evaluation passes")
	quoteCmd.Flags().StringVarP(&qf.output, "output", "o", "text", "Output format: text or json")
	_ = quoteCmd.MarkFlagRequired("catalog")

	validateCmd := &cobra.Command{
		Use:   "validate FILE",
		Short: "Load a catalog and report whether it is well formed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(cmd.OutOrStdout(), log, args[0])
		},
	}

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "configurator v%s\n", toolVersion)
		},
	}

	root.AddCommand(quoteCmd, validateCmd, versionCmd)
	return root
}

func loadCatalog(log zerolog.Logger, path string) (*domain.Configuration, error) {
	cfg, err := engine.NewCatalogLoader(filepath.Dir(path)).LoadFile(path)
	if err != nil {
		return nil, err
	}
	log.Debug().Str("configuration_id", cfg.ID).Int("rules", len(cfg.Rules)).Msg("catalog loaded")
	return cfg, nil
}

func runValidate(w io.Writer, log zerolog.Logger, path string) error {
	cfg, err := loadCatalog(log, path)
	if err != nil {
		return err
	}
	options := 0
	for _, c := range cfg.Components {
		options += len(c.Options)
	}
	fmt.Fprintf(w, "catalog %s OK: %d components, %d options, %d rules, %d discount tiers, currency %s\n",
		cfg.ID, len(cfg.Components), options, len(cfg.Rules), len(cfg.QuantityDiscounts), cfg.Currency)
	return nil
}

func runQuote(w io.Writer, log zerolog.Logger, f *quoteFlags) error {
	switch f.output {
	case "text", "json":
	default:
		return fmt.Errorf("unknown output format %q", f.output)
	}
	requests, err := parseSelections(f.selections)
	if err != nil {
		return err
	}
	cfg, err := loadCatalog(log, f.catalog)
	if err != nil {
		return err
	}
	pipeline, err := engine.NewPipeline(&config.Config{TaxRatesPath: f.taxRates, MaxRulePasses: f.maxPasses})
	if err != nil {
		return err
	}

	sess, err := session.Start(cfg,
		session.WithID("cli"),
		session.WithPipeline(pipeline),
		session.WithQuantity(f.quantity),
		session.WithJurisdiction(f.jurisdiction),
	)
	if err != nil {
		return err
	}

	report := quoteReport{}
	for i, req := range requests {
		if _, err := sess.ApplySelection(req.ComponentID, req.OptionIDs); err != nil {
			if !errors.Is(err, domain.ErrSelectionRejected) {
				return err
			}
			log.Debug().Err(err).Str("select", f.selections[i]).Msg("selection rejected")
			report.Rejected = append(report.Rejected, rejection{Select: f.selections[i], Reason: err.Error()})
		}
	}
	report.Snapshot = sess.Snapshot()

	if f.output == "json" {
		out, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(w, string(out))
	} else {
		printReport(w, report)
	}

	if !report.Snapshot.Validation.Valid {
		return fmt.Errorf("%w: %d validation errors", domain.ErrSessionInvalid, len(report.Snapshot.Validation.Errors))
	}
	return nil
}

// parseSelections turns "component=a,b" flags into change requests. An empty
// option list clears the component.
func parseSelections(raw []string) ([]domain.SelectionChangeRequest, error) {
	out := make([]domain.SelectionChangeRequest, 0, len(raw))
	for _, s := range raw {
		comp, opts, ok := strings.Cut(s, "=")
		comp = strings.TrimSpace(comp)
		if !ok || comp == "" {
			return nil, fmt.Errorf("invalid --select %q (want component=option[,option...])", s)
		}
		req := domain.SelectionChangeRequest{ComponentID: comp, OptionIDs: []string{}}
		for _, o := range strings.Split(opts, ",") {
			if o = strings.TrimSpace(o); o != "" {
				req.OptionIDs = append(req.OptionIDs, o)
			}
		}
		out = append(out, req)
	}
	return out, nil
}

func printReport(w io.Writer, r quoteReport) {
	snap := r.Snapshot
	price := snap.Price

	fmt.Fprintln(w, strings.Repeat("=", 60))
	fmt.Fprintln(w, "   PRODUCT CONFIGURATOR - DIAGNOSTIC TOOL")
	fmt.Fprintln(w, strings.Repeat("=", 60))

	fmt.Fprintln(w, "\n[1. EXECUTION LOG]")
	for _, step := range snap.Effects.Log {
		fmt.Fprintf(w, "   [%-10s] pass %d rule %-22s %-10s %s\n",
			strings.ToUpper(step.Phase), step.Pass, step.RuleID, step.Action, step.Message)
	}

	fmt.Fprintln(w, "\n[2. SELECTION]")
	for _, id := range snap.Selection.Effective.ComponentIDs() {
		fmt.Fprintf(w, "   %-20s %s\n", id, strings.Join(snap.Selection.Effective[id], ", "))
	}
	for _, f := range snap.Selection.ForcedSelections {
		fmt.Fprintf(w, "   forced: %s=%s by %s\n", f.ComponentID, f.OptionID, f.RuleID)
	}
	for _, rej := range r.Rejected {
		fmt.Fprintf(w, "   rejected: %s (%s)\n", rej.Select, rej.Reason)
	}

	fmt.Fprintln(w, "\n[3. VALIDATION]")
	if snap.Validation.Valid {
		fmt.Fprintln(w, "   ✅ Configuration is valid.")
	} else {
		for _, e := range snap.Validation.Errors {
			fmt.Fprintf(w, "   ⚠️  %-20s %s\n", e.Code, e.Message)
		}
	}
	for _, e := range snap.Validation.Warnings {
		fmt.Fprintf(w, "   note: %-20s %s\n", e.Code, e.Message)
	}

	fmt.Fprintln(w, "\n[4. PRICE BREAKDOWN]")
	for _, line := range price.Lines {
		fmt.Fprintf(w, "   %-40s %12s\n", line.Label, money(line.Amount, price.Currency))
	}

	fmt.Fprintln(w, "\n[5. SUMMARY]")
	fmt.Fprintf(w, "   Status:    %s\n", map[bool]string{true: "VALID", false: "INVALID"}[snap.Validation.Valid])
	fmt.Fprintf(w, "   Quantity:  %d\n", price.Quantity)
	fmt.Fprintf(w, "   Subtotal:  %s %s\n", money(price.Subtotal, price.Currency), price.Currency)
	fmt.Fprintf(w, "   Tax:       %s %s\n", money(price.TaxAmount, price.Currency), price.Currency)
	fmt.Fprintf(w, "   Total:     %s %s\n", money(price.Total, price.Currency), price.Currency)
	fmt.Fprintf(w, "   Passes:    %d\n", snap.Effects.Passes)
	fmt.Fprintln(w, strings.Repeat("=", 60))
}

// minorUnits lists ISO 4217 currencies whose minor unit is not 1/100.
var minorUnits = map[string]int32{
	"BIF": 0, "CLP": 0, "DJF": 0, "GNF": 0, "ISK": 0, "JPY": 0, "KMF": 0, "KRW": 0,
	"PYG": 0, "RWF": 0, "UGX": 0, "UYI": 0, "VND": 0, "VUV": 0, "XAF": 0, "XOF": 0, "XPF": 0,
	"BHD": 3, "IQD": 3, "JOD": 3, "KWD": 3, "LYD": 3, "OMR": 3, "TND": 3,
	"CLF": 4, "UYW": 4,
}

// money renders an amount in minor units with the decimals of currency.
func money(minor int64, currency string) string {
	exp, ok := minorUnits[currency]
	if !ok {
		exp = 2
	}
	return decimal.New(minor, -exp).StringFixed(exp)
}
