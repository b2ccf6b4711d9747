package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/jonathan/recommendation-writer/internal/observability"
	"github.com/jonathan/recommendation-writer/internal/pipeline"
	"github.com/jonathan/recommendation-writer/internal/types"
)

var (
	versionSubject string
	versionNumber  int
	versionJSON    bool

	refineInstructions string
	refineInclude      []string
	refineExclude      []string

	regenInstructions string
	regenTone         string
	regenLength       string

	revertReason string
)

// withApp runs fn against a wired app that has persistent storage.
func withApp(cmd *cobra.Command, needModel bool, fn func(ctx context.Context, a *app) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	a, err := newApp(ctx, true, needModel)
	if err != nil {
		return err
	}
	defer a.Close()
	if err := a.requireDB(cmd.Name()); err != nil {
		return err
	}
	return fn(ctx, a)
}

func printRefinement(cmd *cobra.Command, res *pipeline.RefineResult) error {
	if versionJSON {
		return writeJSON(cmd.OutOrStdout(), res)
	}
	p := observability.NewPrinter(cmd.OutOrStdout())
	p.PrintCandidate(fmt.Sprintf("Version %d", res.Version.Number), res.Candidate, res.Validation)
	fmt.Fprintln(cmd.OutOrStdout(), res.ComplianceSummary)
	if res.ComplianceFailure != "" {
		fmt.Fprintf(cmd.ErrOrStderr(), "Warning: %s\n", res.ComplianceFailure)
	}
	return nil
}

var refineCmd = &cobra.Command{
	Use:   "refine",
	Short: "Revise a stored version with instructions and keyword constraints",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, true, func(ctx context.Context, a *app) error {
			res, err := a.svc.Refine(ctx, pipeline.RefineRequest{
				SubjectID:       versionSubject,
				Version:         versionNumber,
				Instructions:    refineInstructions,
				IncludeKeywords: refineInclude,
				ExcludeKeywords: refineExclude,
			})
			if err != nil {
				return fmt.Errorf("%s", pipeline.PublicMessage(err))
			}
			return printRefinement(cmd, res)
		})
	},
}

var regenerateCmd = &cobra.Command{
	Use:   "regenerate",
	Short: "Rewrite a stored version, optionally with a new tone or length",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, true, func(ctx context.Context, a *app) error {
			res, err := a.svc.Regenerate(ctx, pipeline.RegenerateRequest{
				SubjectID:    versionSubject,
				Version:      versionNumber,
				Instructions: regenInstructions,
				Tone:         regenTone,
				Length:       types.LengthTier(regenLength),
			})
			if err != nil {
				return fmt.Errorf("%s", pipeline.PublicMessage(err))
			}
			return printRefinement(cmd, res)
		})
	},
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List every version recorded for a developer",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, false, func(ctx context.Context, a *app) error {
			versions, err := a.svc.History(ctx, versionSubject)
			if err != nil {
				return fmt.Errorf("%s", pipeline.PublicMessage(err))
			}
			if versionJSON {
				if versions == nil {
					versions = []types.Version{}
				}
				return writeJSON(cmd.OutOrStdout(), versions)
			}
			observability.NewPrinter(cmd.OutOrStdout()).PrintHistory(versionSubject, versions)
			return nil
		})
	},
}

var compareCmd = &cobra.Command{
	Use:   "compare <from> <to>",
	Short: "Compare two versions of a developer's recommendation",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		from, err := parseVersion(args[0])
		if err != nil {
			return err
		}
		to, err := parseVersion(args[1])
		if err != nil {
			return err
		}
		return withApp(cmd, false, func(ctx context.Context, a *app) error {
			diff, err := a.svc.Compare(ctx, versionSubject, from, to)
			if err != nil {
				return fmt.Errorf("%s", pipeline.PublicMessage(err))
			}
			if versionJSON {
				return writeJSON(cmd.OutOrStdout(), diff)
			}
			observability.NewPrinter(cmd.OutOrStdout()).PrintDiff(diff)
			return nil
		})
	},
}

var revertCmd = &cobra.Command{
	Use:   "revert <version>",
	Short: "Record a copy of an earlier version as the newest version",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		target, err := parseVersion(args[0])
		if err != nil {
			return err
		}
		return withApp(cmd, false, func(ctx context.Context, a *app) error {
			v, err := a.svc.Revert(ctx, versionSubject, target, revertReason)
			if err != nil {
				return fmt.Errorf("%s", pipeline.PublicMessage(err))
			}
			if versionJSON {
				return writeJSON(cmd.OutOrStdout(), v)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Reverted %s to version %d as version %d\n", v.SubjectID, target, v.Number)
			return nil
		})
	},
}

func parseVersion(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("version must be a positive integer, got %q", s)
	}
	return n, nil
}

func init() {
	for _, cmd := range []*cobra.Command{refineCmd, regenerateCmd, historyCmd, compareCmd, revertCmd} {
		cmd.Flags().StringVarP(&versionSubject, "subject", "s", "", "Developer whose versions to use")
		cmd.Flags().BoolVar(&versionJSON, "json", false, "Print the result as JSON")
		if err := cmd.MarkFlagRequired("subject"); err != nil {
			panic(fmt.Sprintf("failed to mark subject flag as required: %v", err))
		}
		rootCmd.AddCommand(cmd)
	}

	refineCmd.Flags().IntVar(&versionNumber, "version", 0, "Version to refine (default latest)")
	refineCmd.Flags().StringVar(&refineInstructions, "instructions", "", "How to revise the text")
	refineCmd.Flags().StringSliceVar(&refineInclude, "include", nil, "Keywords the revision should contain")
	refineCmd.Flags().StringSliceVar(&refineExclude, "exclude", nil, "Keywords the revision must avoid")

	regenerateCmd.Flags().IntVar(&versionNumber, "version", 0, "Version to rewrite (default latest)")
	regenerateCmd.Flags().StringVar(&regenInstructions, "instructions", "", "Extra instructions for the rewrite")
	regenerateCmd.Flags().StringVar(&regenTone, "tone", "", "New tone")
	regenerateCmd.Flags().StringVar(&regenLength, "length", "", "New length: short, medium or long")

	revertCmd.Flags().StringVar(&revertReason, "reason", "", "Why the earlier version is being restored")
}
