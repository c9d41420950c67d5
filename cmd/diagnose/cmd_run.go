package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/spf13/cobra"

	"github.com/WessleyAI/wessley-diagnostics/engine/catalog"
	"github.com/WessleyAI/wessley-diagnostics/engine/diagnostic"
	"github.com/WessleyAI/wessley-diagnostics/engine/domain"
	"github.com/WessleyAI/wessley-diagnostics/engine/matcher"
	"github.com/WessleyAI/wessley-diagnostics/engine/service"
	"github.com/WessleyAI/wessley-diagnostics/engine/suggest"
)

type runOpts struct {
	vehicleMake string
	model       string
	year        int
	symptoms    string
	codes       []string
	title       string
	severity    string
	urgency     string
	laborRate   float64
	catalogPath string
	output      string
	quiet       bool
}

func newRunCmd() *cobra.Command {
	o := &runOpts{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Diagnose one vehicle problem",
		Example: `  diagnose run --make Honda --model Civic --year 2015 \
    --symptoms "rough idle and check engine light" --severity high`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return o.run(cmd.Context(), cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}
	f := cmd.Flags()
	f.StringVar(&o.vehicleMake, "make", "", "vehicle make")
	f.StringVar(&o.model, "model", "", "vehicle model")
	f.IntVar(&o.year, "year", 0, "model year")
	f.StringVarP(&o.symptoms, "symptoms", "s", "", "symptom description")
	f.StringSliceVar(&o.codes, "codes", nil, "OBD-II trouble codes, appended to the symptoms")
	f.StringVar(&o.title, "title", "", "issue title (defaults to the first symptom words)")
	f.StringVar(&o.severity, "severity", string(domain.SeverityMedium), "low, medium, high or critical")
	f.StringVar(&o.urgency, "urgency", "", "immediate, soon, moderate or low")
	f.Float64Var(&o.laborRate, "labor-rate", matcher.DefaultLaborRate, "shop labor rate in USD per hour")
	f.StringVar(&o.catalogPath, "catalog", "", "component catalog YAML (defaults to the built-in catalog)")
	f.StringVarP(&o.output, "output", "o", "human", "output format: human, json or yaml")
	f.BoolVarP(&o.quiet, "quiet", "q", false, "no progress spinner")
	return cmd
}

func (o *runOpts) input() domain.DiagnosticInput {
	symptoms := strings.TrimSpace(o.symptoms)
	if len(o.codes) > 0 {
		symptoms = strings.TrimSpace(symptoms + " codes " + strings.Join(o.codes, " "))
	}
	title := strings.TrimSpace(o.title)
	if title == "" {
		words := strings.Fields(symptoms)
		title = strings.Join(words[:min(len(words), 6)], " ")
	}
	return domain.DiagnosticInput{
		Vehicle:    domain.Vehicle{Make: o.vehicleMake, Model: o.model, Year: o.year},
		Symptoms:   symptoms,
		IssueTitle: title,
		Severity:   domain.Severity(strings.ToLower(o.severity)),
		Urgency:    domain.Urgency(strings.ToLower(o.urgency)),
	}
}

func (o *runOpts) run(ctx context.Context, stdout, stderr io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if !validFormat(o.output) {
		return fmt.Errorf("unknown output format %q", o.output)
	}
	cat, err := loadCatalog(o.catalogPath)
	if err != nil {
		return err
	}

	var s *spinner.Spinner
	if o.output == "human" && !o.quiet {
		s = spinner.New(spinner.CharSets[11], 100*time.Millisecond, spinner.WithWriter(stderr))
		s.Suffix = " Matching symptoms against the catalog..."
		s.Start()
	}
	svc := service.New(service.Deps{
		Engine:  diagnostic.New(matcher.New(cat), diagnostic.Options{LaborRate: o.laborRate}),
		Suggest: suggest.DefaultStatic(),
		Logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	out, err := svc.Diagnose(ctx, "local", o.input())
	if s != nil {
		s.Stop()
	}
	if err != nil {
		return err
	}
	return render(stdout, o.output, out.Result)
}

func loadCatalog(path string) (*catalog.Catalog, error) {
	if path == "" {
		return catalog.Default(), nil
	}
	return catalog.LoadFile(path)
}
