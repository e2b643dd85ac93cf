package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ajitpratap0/strata/internal/plan"
	"github.com/ajitpratap0/strata/pkg/errors"
	jsonpool "github.com/ajitpratap0/strata/pkg/json"
	"github.com/ajitpratap0/strata/pkg/logger"
)

type opListing struct {
	plan.Op
	Kind string `json:"kind"`
}

func newOpsCmd() *cobra.Command {
	var asJSON, verbose bool

	cmd := &cobra.Command{
		Use:   "ops",
		Short: "List available ops and their arguments",
		RunE: func(cmd *cobra.Command, args []string) error {
			ops := plan.Default().Ops()
			out := cmd.OutOrStdout()

			if asJSON {
				listing := make([]opListing, len(ops))
				for i, op := range ops {
					listing[i] = opListing{Op: op, Kind: op.Kind.String()}
				}
				data, err := jsonpool.MarshalIndent(listing, "", "  ")
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(out, string(data))
				return err
			}

			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			for _, op := range ops {
				fmt.Fprintf(tw, "%s\t%s\t%s\n", op.Name, op.Kind, op.Description)
				if !verbose {
					continue
				}
				for _, a := range op.Args {
					flag := "optional"
					if a.Required {
						flag = "required"
					} else if a.Default != "" {
						flag = "default " + a.Default
					}
					fmt.Fprintf(tw, "  %s\t%s\t%s\n", a.Name, flag, a.Description)
				}
			}
			return tw.Flush()
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print ops as JSON")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Include op arguments")
	return cmd
}

// loadDocument reads the plan file or looks up the recipe; exactly one of
// them must be set. The returned label names the source in logs.
func loadDocument(planPath, recipe string) (*plan.Document, string, error) {
	switch {
	case planPath != "" && recipe != "":
		return nil, "", errors.New(errors.ErrorTypeValidation, "--plan and --recipe are mutually exclusive")
	case recipe != "":
		doc, err := plan.Recipe(recipe)
		if err != nil {
			return nil, "", err
		}
		return doc, "recipe:" + doc.Name, nil
	case planPath != "":
		doc, err := plan.Load(planPath)
		return doc, planPath, err
	}
	return nil, "", errors.New(errors.ErrorTypeValidation, "one of --plan or --recipe is required")
}

func newRecipesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "recipes",
		Short: "List built-in recipes",
		Long: `List the built-in recipes. Run one with:

  strata run --recipe <name> < input`,
		RunE: func(cmd *cobra.Command, args []string) error {
			docs, err := plan.Recipes()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Built-in recipes (%d):\n\n", len(docs))
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			for _, doc := range docs {
				fmt.Fprintf(tw, "  %s\t%s\n", doc.Name, doc.Description)
				fmt.Fprintf(tw, "  \t%s\n", doc.Pipe())
			}
			return tw.Flush()
		},
	}
}

func newValidateCmd(v *viper.Viper) *cobra.Command {
	var planPath, recipe string

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check that a plan builds",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(v)
			if err != nil {
				return err
			}
			doc, label, err := loadDocument(planPath, recipe)
			if err != nil {
				return err
			}
			p, err := plan.Build(doc, plan.Options{
				Logger:   logger.Get(),
				Defaults: map[string]interface{}{"batch_size": cfg.Performance.BatchSize},
			})
			if err != nil {
				return err
			}
			p.Close()
			fmt.Fprintf(cmd.OutOrStdout(), "plan %s is valid (%d entries)\n", label, len(doc.Steps))
			return nil
		},
	}

	cmd.Flags().StringVarP(&planPath, "plan", "p", "", "Path to plan JSON or YAML file")
	cmd.Flags().StringVarP(&recipe, "recipe", "r", "", "Name of a built-in recipe")
	return cmd
}
