package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/jonathan/recommendation-writer/internal/facts"
	"github.com/jonathan/recommendation-writer/internal/observability"
	"github.com/jonathan/recommendation-writer/internal/pipeline"
	"github.com/jonathan/recommendation-writer/internal/types"
)

// requestFlags are shared by generate and options.
type requestFlags struct {
	subject      string
	mode         string
	repo         string
	tone         string
	length       string
	category     string
	role         string
	instructions string
	include      []string
	exclude      []string
	skills       []string
	strategy     string
	factsFile    string
	jsonOut      bool
}

func (f *requestFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.subject, "subject", "s", "", "Developer to write about")
	cmd.Flags().StringVar(&f.mode, "mode", "profile", "Analysis mode: profile, repository_only or repository_contributor")
	cmd.Flags().StringVar(&f.repo, "repo", "", "Repository reference for the repository modes")
	cmd.Flags().StringVar(&f.tone, "tone", "", "Tone: professional, friendly, formal, casual or enthusiastic")
	cmd.Flags().StringVar(&f.length, "length", "", "Length: short, medium or long")
	cmd.Flags().StringVar(&f.category, "category", "", "Category: technical, leadership, collaboration or general")
	cmd.Flags().StringVar(&f.role, "role", "", "Target role the reader is hiring for")
	cmd.Flags().StringVar(&f.instructions, "instructions", "", "Extra instructions for the writer")
	cmd.Flags().StringSliceVar(&f.include, "include", nil, "Keywords the text should contain")
	cmd.Flags().StringSliceVar(&f.exclude, "exclude", nil, "Keywords the text must avoid")
	cmd.Flags().StringSliceVar(&f.skills, "skills", nil, "Skills to emphasize")
	cmd.Flags().StringVar(&f.strategy, "strategy", "", "Force a prompt strategy instead of the assigned one")
	cmd.Flags().StringVar(&f.factsFile, "facts-file", "", "Read facts from this JSON file instead of the configured source")
	cmd.Flags().BoolVar(&f.jsonOut, "json", false, "Print the result as JSON")

	if err := cmd.MarkFlagRequired("subject"); err != nil {
		panic(fmt.Sprintf("failed to mark subject flag as required: %v", err))
	}
}

func (f *requestFlags) request() (pipeline.Request, error) {
	mode, err := types.ParseAnalysisMode(f.mode)
	if err != nil {
		return pipeline.Request{}, err
	}
	req := pipeline.Request{
		SubjectID:     f.subject,
		Mode:          mode,
		RepositoryRef: f.repo,
		Options: types.GenerationOptions{
			Tone:               f.tone,
			Length:             types.LengthTier(f.length),
			Category:           f.category,
			TargetRole:         f.role,
			CustomInstructions: f.instructions,
			IncludeKeywords:    f.include,
			ExcludeKeywords:    f.exclude,
			SpecificSkills:     f.skills,
		},
	}
	if f.strategy != "" {
		name := types.StrategyName(f.strategy)
		req.Strategy = &name
	}
	if f.factsFile != "" {
		data, err := os.ReadFile(f.factsFile)
		if err != nil {
			return pipeline.Request{}, fmt.Errorf("failed to read facts file: %w", err)
		}
		raw, err := facts.Decode(data)
		if err != nil {
			return pipeline.Request{}, err
		}
		req.Facts = raw
	}
	return req, nil
}

// progressPrinter streams stage events to stderr unless JSON output was
// asked for.
func progressPrinter(cmd *cobra.Command, quiet bool) func(types.StageEvent) {
	if quiet {
		return func(types.StageEvent) {}
	}
	p := observability.NewPrinter(cmd.ErrOrStderr())
	return p.PrintStage
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

var generateFlags requestFlags

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Write one recommendation and record it as a new version",
	RunE: func(cmd *cobra.Command, args []string) error {
		req, err := generateFlags.request()
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		a, err := newApp(ctx, true, true)
		if err != nil {
			return err
		}
		defer a.Close()

		res, err := a.svc.GenerateStream(ctx, req, progressPrinter(cmd, generateFlags.jsonOut))
		if err != nil {
			return fmt.Errorf("%s", pipeline.PublicMessage(err))
		}
		if generateFlags.jsonOut {
			return writeJSON(cmd.OutOrStdout(), res)
		}

		p := observability.NewPrinter(cmd.OutOrStdout())
		heading := fmt.Sprintf("Version %d (%s)", res.Version.Number, res.Strategy)
		p.PrintCandidate(heading, res.Candidate, res.Validation)
		if res.Exhausted {
			fmt.Fprintf(cmd.ErrOrStderr(), "Quality gate not met after %d attempts; kept the best attempt.\n", res.Attempts)
		}
		return nil
	},
}

var optionsFlags requestFlags

var optionsCmd = &cobra.Command{
	Use:   "options",
	Short: "Write three alternative recommendations with different focuses",
	RunE: func(cmd *cobra.Command, args []string) error {
		req, err := optionsFlags.request()
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		a, err := newApp(ctx, true, true)
		if err != nil {
			return err
		}
		defer a.Close()

		res, err := a.svc.GenerateOptionsStream(ctx, req, progressPrinter(cmd, optionsFlags.jsonOut))
		if err != nil {
			return fmt.Errorf("%s", pipeline.PublicMessage(err))
		}
		if optionsFlags.jsonOut {
			return writeJSON(cmd.OutOrStdout(), res)
		}

		p := observability.NewPrinter(cmd.OutOrStdout())
		for i, opt := range res.Options {
			heading := fmt.Sprintf("Option %d: %s", i+1, opt.Candidate.Title)
			p.PrintCandidate(heading, &opt.Candidate, opt.Validation)
		}
		if res.CacheHit {
			fmt.Fprintln(cmd.ErrOrStderr(), "Served from cache.")
		}
		return nil
	},
}

func init() {
	generateFlags.register(generateCmd)
	optionsFlags.register(optionsCmd)
	rootCmd.AddCommand(generateCmd)
	rootCmd.AddCommand(optionsCmd)
}
