package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/politicsradar/polr/internal/store"
)

func newInitCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create or migrate the database schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.openStore()
			if err != nil {
				return err
			}
			defer s.Close()
			a.printf("OK: schema version %s ready at %s\n", store.SchemaVersion, a.cfg.DBPath.Value)
			return nil
		},
	}
}

func newTermCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "term",
		Short: "Manage office terms",
	}
	cmd.AddCommand(newTermAddCmd(a), newTermEndCmd(a), newTermListCmd(a))
	return cmd
}

func newTermAddCmd(a *app) *cobra.Command {
	var t store.Term
	cmd := &cobra.Command{
		Use:   "add <term-id>",
		Short: "Register an office term",
		Example: `  polr term add ishiba_1 --name "石破茂" --start 2024-10-01 --end 2024-11-11
  polr term add ishiba_2 --name "石破茂" --start 2024-11-11`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t.ID = args[0]
			s, err := a.openStore()
			if err != nil {
				return err
			}
			defer s.Close()

			p, err := a.newPipeline(s)
			if err != nil {
				return err
			}
			created, err := p.AddTerm(context.Background(), &t)
			if err != nil {
				return err
			}
			if !created {
				a.printf("term %s already exists, unchanged\n", t.ID)
				return nil
			}
			a.printf("OK: term %s added\n", t.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&t.Name, "name", "", "office-holder name")
	cmd.Flags().StringVar(&t.StartDate, "start", "", "start date YYYY-MM-DD (required)")
	cmd.Flags().StringVar(&t.EndDate, "end", "", "end date YYYY-MM-DD (empty while ongoing)")
	cmd.Flags().StringVar(&t.Note, "note", "", "free-form note")
	_ = cmd.MarkFlagRequired("start")
	return cmd
}

func newTermEndCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "end <term-id> <end-date>",
		Short: "Set the end date of a concluded term",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.openStore()
			if err != nil {
				return err
			}
			defer s.Close()

			p, err := a.newPipeline(s)
			if err != nil {
				return err
			}
			if err := p.EndTerm(context.Background(), args[0], args[1]); err != nil {
				return err
			}
			a.printf("OK: term %s ends %s\n", args[0], args[1])
			a.printf("Run `polr metrics --rebuild` to refresh phases of this term.\n")
			return nil
		},
	}
}

func newTermListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List office terms",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.openStore()
			if err != nil {
				return err
			}
			defer s.Close()

			terms, err := s.ListTerms(context.Background())
			if err != nil {
				return err
			}
			if len(terms) == 0 {
				a.printf("No terms. Add one with `polr term add`.\n")
				return nil
			}
			a.printf("%-16s %-12s %-12s %s\n", "ID", "START", "END", "NAME")
			for _, t := range terms {
				end := t.EndDate
				if t.Ongoing() {
					end = "(ongoing)"
				}
				a.printf("%-16s %-12s %-12s %s\n", t.ID, t.StartDate, end, t.Name)
			}
			return nil
		},
	}
}
