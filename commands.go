package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/GokhanYmn/NakitAkisGrafana/src/logger"
	"github.com/GokhanYmn/NakitAkisGrafana/src/models"
	"github.com/GokhanYmn/NakitAkisGrafana/src/parsers/cashflow"
	"github.com/GokhanYmn/NakitAkisGrafana/src/security/validation"
	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply the embedded database migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(true)
		if err != nil {
			return err
		}
		a.Close()
		fmt.Println("Migrations applied.")
		return nil
	},
}

var seedCmd = &cobra.Command{
	Use:   "seed [file.csv]",
	Short: "Load nakit_akis records from a CSV export",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("failed to open %s: %w", args[0], err)
		}
		defer f.Close()

		if err := validation.ValidateCSVContent(f); err != nil {
			return err
		}
		res, err := cashflow.NewParser().Parse(f)
		if err != nil {
			return err
		}

		a, err := openApp(true)
		if err != nil {
			return err
		}
		defer a.Close()

		inserted, err := a.store.InsertRecords(cmd.Context(), res.Records)
		if err != nil {
			return fmt.Errorf("failed to insert records: %w", err)
		}
		logger.L.Info("Seed finished", "file", args[0], "inserted", inserted, "skipped", res.Skipped)
		fmt.Printf("Inserted %d records (%d rows skipped).\n", inserted, res.Skipped)
		return nil
	},
}

var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Compute a reconciliation snapshot and print it",
	Long: `Compute the real versus model interest comparison for one parameter set.

Examples:
  nakitakis snapshot --faiz-orani 0.45
  nakitakis snapshot --faiz-orani 45% --model compound --kaynak-kurulus AKBANK
  nakitakis snapshot --fonlar F1,F2 --format csv > rapor.csv`,
	RunE: func(cmd *cobra.Command, args []string) error {
		params, err := snapshotParams(cmd)
		if err != nil {
			return err
		}

		a, err := openApp(cfg.AutoMigrate)
		if err != nil {
			return err
		}
		defer a.Close()

		result, err := a.nakit.ComputeSnapshot(cmd.Context(), params)
		if err != nil {
			return err
		}
		report := models.Report{Parameters: params, Result: result, GeneratedAt: time.Now()}

		format, _ := cmd.Flags().GetString("format")
		switch strings.ToLower(format) {
		case "csv":
			return a.export.WriteCSV(cmd.OutOrStdout(), report)
		case "html":
			return a.export.WriteHTML(cmd.OutOrStdout(), report)
		case "json", "":
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(report)
		}
		return fmt.Errorf("unknown format %q (json, csv or html)", format)
	},
}

func init() {
	f := snapshotCmd.Flags()
	f.String("faiz-orani", "", "annual rate, 0.45 or 45% (default DEFAULT_RATE)")
	f.String("model-faiz-orani", "", "model annual rate (default DEFAULT_MODEL_RATE)")
	f.String("model", "simple", "model strategy: simple or compound")
	f.String("kaynak-kurulus", "", "source institution (default DEFAULT_INSTITUTION)")
	f.String("fon-no", "", "single fund number")
	f.StringSlice("fonlar", nil, "comma separated fund numbers")
	f.String("ihrac-no", "", "issuance number")
	f.StringSlice("bankalar", nil, "comma separated counterparty names")
	f.String("baslangic", "", "earliest start date, YYYY-MM-DD")
	f.String("bitis", "", "latest start date, YYYY-MM-DD")
	f.String("format", "json", "output format: json, csv or html")
}

func snapshotParams(cmd *cobra.Command) (models.AccrualParameters, error) {
	f := cmd.Flags()
	str := func(name string) string {
		v, _ := f.GetString(name)
		return strings.TrimSpace(v)
	}
	list := func(name string) []string {
		v, _ := f.GetStringSlice(name)
		return v
	}

	p := models.AccrualParameters{
		AnnualRate:        cfg.DefaultRate,
		ModelAnnualRate:   cfg.DefaultModelRate,
		SourceInstitution: cfg.DefaultInstitution,
		FundNumber:        str("fon-no"),
		SelectedFunds:     list("fonlar"),
		IssuanceNumber:    str("ihrac-no"),
		Counterparties:    list("bankalar"),
	}

	var err error
	if s := str("faiz-orani"); s != "" {
		if p.AnnualRate, err = validation.ParseRate(s, "faiz-orani"); err != nil {
			return p, err
		}
	}
	if s := str("model-faiz-orani"); s != "" {
		if p.ModelAnnualRate, err = validation.ParseRate(s, "model-faiz-orani"); err != nil {
			return p, err
		}
	}
	if p.Model, err = validation.ParseModel(str("model")); err != nil {
		return p, err
	}
	if s := str("kaynak-kurulus"); s != "" {
		p.SourceInstitution = s
	}
	if p.StartFrom, err = validation.ParseDate(str("baslangic"), "baslangic"); err != nil {
		return p, err
	}
	if p.StartTo, err = validation.ParseDate(str("bitis"), "bitis"); err != nil {
		return p, err
	}
	return p, validation.ValidateParameters(p)
}
