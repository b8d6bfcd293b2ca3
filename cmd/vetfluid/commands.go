package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/vetfluid/vetfluid/internal/config"
	"github.com/vetfluid/vetfluid/internal/domain/fluidtherapy"
	"github.com/vetfluid/vetfluid/internal/domain/protocol"
	"github.com/vetfluid/vetfluid/internal/platform/db"
	"github.com/vetfluid/vetfluid/migrations"
)

// computeFlags mirrors fluidtherapy.Request. Optional values are applied only
// when the flag was set on the command line.
type computeFlags struct {
	weight      float64
	species     string
	dehydration float64
	heart       bool
	ckd         bool
	liver       bool
	bag         int
	na          float64
	k           float64
	cl          float64
	ica         float64
	glucose     float64
	bun         float64
	phosphorus  float64
	rer         float64
	aaDose      float64
	aaProduct   string
	dextrose    float64
	protocol    string
	protocols   string
	output      string
}

func (f *computeFlags) register(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.Float64Var(&f.weight, "weight", 0, "body weight in kg (required)")
	fs.StringVar(&f.species, "species", "dog", "species: dog or cat")
	fs.Float64Var(&f.dehydration, "dehydration", 0, "dehydration percent (0-15)")
	fs.BoolVar(&f.heart, "heart", false, "heart disease")
	fs.BoolVar(&f.ckd, "ckd", false, "chronic kidney disease")
	fs.BoolVar(&f.liver, "liver", false, "liver disease")
	fs.IntVar(&f.bag, "bag", fluidtherapy.DefaultBagSizeML, "fluid bag size in mL")
	fs.Float64Var(&f.na, "na", fluidtherapy.DefaultNa, "sodium (mEq/L)")
	fs.Float64Var(&f.k, "k", fluidtherapy.DefaultK, "potassium (mEq/L)")
	fs.Float64Var(&f.cl, "cl", fluidtherapy.DefaultCl, "chloride (mEq/L)")
	fs.Float64Var(&f.ica, "ica", fluidtherapy.DefaultICa, "ionized calcium (mmol/L)")
	fs.Float64Var(&f.glucose, "glucose", fluidtherapy.DefaultGlucose, "glucose (mg/dL)")
	fs.Float64Var(&f.bun, "bun", fluidtherapy.DefaultBUN, "blood urea nitrogen (mg/dL)")
	fs.Float64Var(&f.phosphorus, "phosphorus", fluidtherapy.DefaultPhosphorus, "phosphorus (mg/dL)")
	fs.Float64Var(&f.rer, "rer-fraction", fluidtherapy.DefaultRERFractionPct, "percent of RER to supply")
	fs.Float64Var(&f.aaDose, "aa-dose", 0, "amino acid dose in g/kg/day (default depends on comorbidities)")
	fs.StringVar(&f.aaProduct, "aa-product", string(fluidtherapy.RenalFormula), "amino acid product")
	fs.Float64Var(&f.dextrose, "dextrose-ratio", fluidtherapy.DefaultDextroseRatioPct, "percent of non-protein calories from dextrose")
	fs.StringVar(&f.protocol, "protocol", "", "dosing protocol name (default protocol when empty)")
	fs.StringVar(&f.protocols, "protocols-file", "", "YAML file with additional dosing protocols")
	fs.StringVarP(&f.output, "output", "o", "text", "output format: text or json")
	_ = cmd.MarkFlagRequired("weight")
}

// request builds the calculator input from the flags that were set.
func (f *computeFlags) request(cmd *cobra.Command) fluidtherapy.Request {
	changed := cmd.Flags().Changed
	req := fluidtherapy.Request{
		WeightKg:         f.weight,
		Species:          fluidtherapy.Species(f.species),
		DehydrationPct:   f.dehydration,
		HasHeart:         f.heart,
		HasCKD:           f.ckd,
		HasLiver:         f.liver,
		AminoAcidProduct: fluidtherapy.AminoAcidProduct(f.aaProduct),
		Protocol:         f.protocol,
	}
	if changed("bag") {
		req.BagSizeML = &f.bag
	}
	optional := []struct {
		flag string
		src  *float64
		dst  **float64
	}{
		{"na", &f.na, &req.Na},
		{"k", &f.k, &req.K},
		{"cl", &f.cl, &req.Cl},
		{"ica", &f.ica, &req.ICa},
		{"glucose", &f.glucose, &req.Glucose},
		{"bun", &f.bun, &req.BUN},
		{"phosphorus", &f.phosphorus, &req.Phosphorus},
		{"rer-fraction", &f.rer, &req.RERFractionPct},
		{"aa-dose", &f.aaDose, &req.AminoAcidDose},
		{"dextrose-ratio", &f.dextrose, &req.DextroseRatioPct},
	}
	for _, o := range optional {
		if changed(o.flag) {
			*o.dst = o.src
		}
	}
	return req
}

func computeCmd() *cobra.Command {
	var f computeFlags
	cmd := &cobra.Command{
		Use:   "compute",
		Short: "Compute a fluid therapy and nutrition plan",
		Example: "  vetfluid compute --weight 10 --dehydration 5 --k 1.9\n" +
			"  vetfluid compute --weight 4.2 --species cat --ckd -o json",
		RunE: func(cmd *cobra.Command, args []string) error {
			if f.output != "text" && f.output != "json" {
				return fmt.Errorf("unknown output format %q", f.output)
			}
			var extra []*protocol.Protocol
			if f.protocols != "" {
				loaded, err := protocol.LoadFile(f.protocols)
				if err != nil {
					return err
				}
				extra = loaded
			}
			report, err := runCompute(cmd.Context(), f.request(cmd), extra)
			if err != nil {
				return err
			}
			return writeReport(cmd.OutOrStdout(), report, f.output)
		},
	}
	f.register(cmd)
	return cmd
}

// runCompute resolves protocols against an in-memory catalog holding the
// built-ins plus extra.
func runCompute(ctx context.Context, req fluidtherapy.Request, extra []*protocol.Protocol) (*fluidtherapy.ClinicalReport, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	logger := zerolog.Nop()
	repo := protocol.NewMemoryRepo()
	catalog := protocol.NewCatalog(repo, protocol.Default().Name, logger)
	if _, err := protocol.NewService(repo, catalog, nil, logger).Seed(ctx, extra); err != nil {
		return nil, err
	}
	return fluidtherapy.NewService(catalog, nil, logger).Compute(ctx, req)
}

func writeReport(w io.Writer, report *fluidtherapy.ClinicalReport, format string) error {
	if format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}
	return report.WriteText(w)
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	// migrate up
	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			schema, _ := cmd.Flags().GetString("schema")
			return withMigrator(cmd.Context(), schema, func(ctx context.Context, m *db.Migrator) error {
				fmt.Fprintf(cmd.OutOrStdout(), "Running migrations on schema: %s\n", schema)
				count, err := m.Up(ctx)
				if err != nil {
					return fmt.Errorf("migration failed: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Applied %d migration(s) successfully.\n", count)
				return nil
			})
		},
	}
	upCmd.Flags().String("schema", "public", "Target schema for migrations")
	cmd.AddCommand(upCmd)

	// migrate status
	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			schema, _ := cmd.Flags().GetString("schema")
			return withMigrator(cmd.Context(), schema, func(ctx context.Context, m *db.Migrator) error {
				statuses, err := m.Status(ctx)
				if err != nil {
					return fmt.Errorf("failed to get migration status: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Migration status for schema: %s\n", schema)
				writeMigrationStatus(cmd.OutOrStdout(), statuses)
				return nil
			})
		},
	}
	statusCmd.Flags().String("schema", "public", "Target schema for migrations")
	cmd.AddCommand(statusCmd)

	return cmd
}

func withMigrator(ctx context.Context, schema string, fn func(context.Context, *db.Migrator) error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if !cfg.UsesDatabase() {
		return fmt.Errorf("DATABASE_URL must be set to run migrations")
	}
	logger := newLogger(cfg)
	pool, err := openPool(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer pool.Close()
	return fn(ctx, db.NewMigrator(pool, migrations.FS, schema))
}

func writeMigrationStatus(w io.Writer, statuses []db.MigrationStatus) {
	fmt.Fprintf(w, "%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
	fmt.Fprintln(w, "---------- ---------------------------------------- ---------- --------------------")
	for _, s := range statuses {
		status := "pending"
		appliedAt := ""
		if s.Applied {
			status = "applied"
			if s.AppliedAt != nil {
				appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
			}
		}
		fmt.Fprintf(w, "%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
	}
}

func protocolsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "protocols",
		Short: "Inspect dosing protocols",
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List the built-in protocols and those in an optional file",
		RunE: func(cmd *cobra.Command, args []string) error {
			file, _ := cmd.Flags().GetString("file")
			items := protocol.Builtins()
			if file != "" {
				loaded, err := protocol.LoadFile(file)
				if err != nil {
					return err
				}
				items = append(items, loaded...)
			}
			writeProtocols(cmd.OutOrStdout(), items, protocol.Default().Name)
			return nil
		},
	}
	listCmd.Flags().String("file", "", "YAML protocols file to include")
	cmd.AddCommand(listCmd)

	cmd.AddCommand(&cobra.Command{
		Use:   "validate <file>",
		Short: "Validate a YAML protocols file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			loaded, err := protocol.LoadFile(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %d protocol(s) valid\n", args[0], len(loaded))
			return nil
		},
	})

	return cmd
}

func writeProtocols(w io.Writer, items []*protocol.Protocol, defaultName string) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tK LIMITS\tCL\tCALCIUM\tHHS\tDEFAULT")
	for _, p := range items {
		limits := make([]string, 0, len(p.PotassiumTiers))
		for _, t := range p.PotassiumTiers {
			limits = append(limits, fmt.Sprintf("<%.1f:%.2f", t.UpperBound, t.SafeLimit))
		}
		def := ""
		if p.Name == defaultName {
			def = "*"
		}
		fmt.Fprintf(tw, "%s\t%s\t%.0f\t%s\t%s\t%s\n",
			p.Name, strings.Join(limits, " "), p.ChlorideThreshold, p.CalciumPolicy, p.HHSTrigger, def)
	}
	_ = tw.Flush()
}
