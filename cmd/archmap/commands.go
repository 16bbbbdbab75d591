package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"archmap/internal/analysis"
	"archmap/internal/cycles"
	"archmap/internal/git"
	"archmap/internal/graph"
	"archmap/internal/model"
	"archmap/internal/pipeline"
	"archmap/internal/render"
	"archmap/internal/storage"

	"github.com/spf13/cobra"
)

var (
	outputPath string
	dbPath     string
	graphKind  string
	modules    string
	excludes   string
	entryPoint string
	maxDepth   int
	maxNodes   int
	noPrivate  bool
	noCycles   bool
	showDB     string
	showFile   string
	baseRef    string
	impactHops int
)

func init() {
	analyzeCmd.Flags().StringVarP(&outputPath, "output", "o", "", "Write the diagram (.mmd, .md) or the model (.json); stdout when empty")
	analyzeCmd.Flags().StringVarP(&dbPath, "db", "d", "", "Also save the model to this SQLite database")
	analyzeCmd.Flags().StringVarP(&graphKind, "graph", "g", "calls", "Graph to render: calls or modules")
	analyzeCmd.Flags().StringVarP(&modules, "modules", "m", "", "Comma separated module prefixes to keep")
	analyzeCmd.Flags().StringVarP(&excludes, "exclude", "x", "", "Comma separated module prefixes to drop")
	analyzeCmd.Flags().StringVarP(&entryPoint, "entry", "e", "", "Only show what is reachable from this element")
	analyzeCmd.Flags().IntVar(&maxDepth, "depth", 0, "Maximum call depth from the entry point (0 is unbounded)")
	analyzeCmd.Flags().IntVarP(&maxNodes, "max-nodes", "n", 0, "Element budget of the published model")
	analyzeCmd.Flags().BoolVar(&noPrivate, "no-private", false, "Drop private elements")
	analyzeCmd.Flags().BoolVar(&noCycles, "no-cycles", false, "Skip cycle detection")

	cyclesCmd.Flags().StringVarP(&modules, "modules", "m", "", "Comma separated module prefixes to keep")

	impactCmd.Flags().StringVarP(&baseRef, "base", "b", "HEAD", "Git revision to diff the working tree against")
	impactCmd.Flags().IntVar(&impactHops, "depth", 1, "Dependency hops to follow from the changed elements")

	showCmd.Flags().StringVarP(&showDB, "db", "d", "archmap.db", "Saved model: a SQLite database or a .json snapshot")
	showCmd.Flags().StringVarP(&showFile, "file", "f", "", "List the elements declared in this file")
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze [path]",
	Short: "Analyze a project and render its call graph",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		flags := cmd.Flags()
		if flags.Changed("modules") {
			cfg.Analysis.IncludeModules = splitFlag(modules)
		}
		if flags.Changed("exclude") {
			cfg.Analysis.ExcludeModules = splitFlag(excludes)
		}
		if flags.Changed("entry") {
			cfg.Analysis.EntryPoint = entryPoint
		}
		if flags.Changed("depth") {
			cfg.Analysis.MaxDepth = maxDepth
		}
		if flags.Changed("max-nodes") {
			cfg.Analysis.MaxNodes = maxNodes
		}
		if noPrivate {
			cfg.Analysis.IncludePrivate = false
		}
		if noCycles {
			cfg.Cycles.Detect = false
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		res, err := runPipeline(cmd.Context(), cfg, logger, pathArg(args))
		if err != nil {
			return err
		}

		if dbPath != "" {
			store, err := storage.NewSQLiteStore(dbPath)
			if err != nil {
				return fmt.Errorf("failed to open database: %w", err)
			}
			defer store.Close()
			if err := store.SaveModel(cmd.Context(), res.Model); err != nil {
				return fmt.Errorf("failed to save model: %w", err)
			}
		}

		if err := writeOutput(cmd, res); err != nil {
			return err
		}

		fmt.Fprintf(os.Stderr, "%s: %d elements, %d relationships, %d cycles\n",
			res.Model.Project(), res.Model.ElementCount(), res.Model.RelationshipCount(), len(res.Model.Cycles()))
		return nil
	},
}

func writeOutput(cmd *cobra.Command, res *pipeline.Result) error {
	g := res.CallGraph
	switch graphKind {
	case "calls":
	case "modules":
		g = res.ModuleGraph
	default:
		return fmt.Errorf("unknown graph %q (want calls or modules)", graphKind)
	}

	if outputPath == "" {
		_, err := fmt.Fprint(cmd.OutOrStdout(), render.Mermaid(g))
		return err
	}

	switch strings.ToLower(filepath.Ext(outputPath)) {
	case ".json":
		return storage.NewJSONStore(outputPath).SaveModel(cmd.Context(), res.Model)
	case ".md", ".markdown":
		return os.WriteFile(outputPath, []byte(render.Markdown(g)), 0o644)
	default:
		return os.WriteFile(outputPath, []byte(render.Mermaid(g)), 0o644)
	}
}

var cyclesCmd = &cobra.Command{
	Use:   "cycles [path]",
	Short: "List the call cycles of a project",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("modules") {
			cfg.Analysis.IncludeModules = splitFlag(modules)
		}
		cfg.Cycles.Detect = true

		res, err := runPipeline(cmd.Context(), cfg, logger, pathArg(args))
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if res.Cycles.Overrun {
			fmt.Fprintf(out, "elementary cycle search stopped: %s\n", res.Cycles.OverrunReason)
		}
		found := res.Model.Cycles()
		if len(found) == 0 {
			fmt.Fprintln(out, "no cycles found")
			return nil
		}
		calls := graph.CallGraph(res.Model)
		for i, c := range found {
			if cycles.IsPath(calls, c) {
				fmt.Fprintf(out, "%3d. %s -> %s\n", i+1, strings.Join(c, " -> "), c[0])
			} else {
				fmt.Fprintf(out, "%3d. {%s} (mutually reachable)\n", i+1, strings.Join(c, ", "))
			}
		}
		st := res.Stats
		fmt.Fprintf(out, "\n%d cycles over %d elements, length %d..%d (avg %.1f)\n",
			st.Total, st.DistinctNodes, st.MinLength, st.MaxLength, st.AvgLength)
		return nil
	},
}

var impactCmd = &cobra.Command{
	Use:   "impact [path]",
	Short: "List the elements affected by uncommitted git changes",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		// Pruning would hide dependents.
		cfg.Analysis.MaxNodes = 0
		cfg.Analysis.EntryPoint = ""
		cfg.Cycles.Detect = false

		res, err := runPipeline(cmd.Context(), cfg, logger, pathArg(args))
		if err != nil {
			return err
		}

		changes, err := git.ChangedFiles(cmd.Context(), res.Model.Root(), baseRef, ".py")
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if len(changes) == 0 {
			fmt.Fprintln(out, "no changes detected")
			return nil
		}

		report := analysis.NewAnalyzer(res.Model).AnalyzeImpact(changes, impactHops)
		fmt.Fprintf(out, "%d changed files, %d elements edited, %d dependents\n",
			len(changes), len(report.DirectlyAffected), len(report.IndirectlyAffected))
		for _, el := range report.DirectlyAffected {
			fmt.Fprintf(out, "  * %s (%s:%d)\n", el.QualifiedName, el.Location.File, el.Location.Line)
		}
		for _, el := range report.IndirectlyAffected {
			fmt.Fprintf(out, "  %d %s (%s:%d)\n", report.Distance[el.ID], el.QualifiedName, el.Location.File, el.Location.Line)
		}
		return nil
	},
}

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Summarize a saved model",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		out := cmd.OutOrStdout()

		if showFile != "" {
			if strings.EqualFold(filepath.Ext(showDB), ".json") {
				return fmt.Errorf("--file needs a SQLite database")
			}
			store, err := storage.NewSQLiteStore(showDB)
			if err != nil {
				return err
			}
			defer store.Close()
			els, err := store.FindElementsByFile(ctx, showFile)
			if err != nil {
				return err
			}
			for _, el := range els {
				fmt.Fprintf(out, "%5d  %-14s %s\n", el.Location.Line, el.Kind, el.QualifiedName)
			}
			return nil
		}

		var store storage.ModelStore
		if strings.EqualFold(filepath.Ext(showDB), ".json") {
			store = storage.NewJSONStore(showDB)
		} else {
			s, err := storage.NewSQLiteStore(showDB)
			if err != nil {
				return err
			}
			store = s
		}
		defer store.Close()

		m, err := store.LoadModel(ctx)
		if err != nil {
			return fmt.Errorf("failed to load %s: %w", showDB, err)
		}
		printSummary(out, m)
		return nil
	},
}

func printSummary(w io.Writer, m *model.CodeModel) {
	fmt.Fprintf(w, "project: %s\n", m.Project())
	if m.Root() != "" {
		fmt.Fprintf(w, "root:    %s\n", m.Root())
	}
	fmt.Fprintf(w, "modules: %d, elements: %d, relationships: %d, cycles: %d\n\n",
		len(m.Modules()), m.ElementCount(), m.RelationshipCount(), len(m.Cycles()))

	mg := graph.ModuleGraph(m)
	for _, n := range mg.Nodes() {
		fmt.Fprintf(w, "  %-40s %4d elements  complexity %d\n", n.ID, n.ElementCount, n.Complexity)
		for _, next := range mg.Successors(n.ID) {
			e, _ := mg.Edge(n.ID, next)
			fmt.Fprintf(w, "      -> %s (%d)\n", next, e.Weight)
		}
	}
}
