package cmd

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/nfrund/actwatch/internal/profile"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

func newProfileCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Work with ability profiles",
	}
	cmd.AddCommand(newProfileValidateCmd(afero.NewOsFs()))
	return cmd
}

func newProfileValidateCmd(fs afero.Fs) *cobra.Command {
	return &cobra.Command{
		Use:   "validate <file>",
		Short: "Validate a profile and print its abilities",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := profile.Load(fs, args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Profile %q is valid: %d abilities, %d bindings\n\n", p.Name, len(p.Abilities), len(p.Bindings))

			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			defer w.Flush()
			fmt.Fprintln(w, "ABILITY\tCOOLDOWN\tCHARGES\tSEGMENT\tCOMMAND")
			for _, d := range p.Descriptors() {
				segment, command := "-", "-"
				if seg, ok := p.SegmentForAbility(d.Name); ok {
					segment = fmt.Sprint(seg)
					if b, ok := p.Binding(seg); ok && len(b.Command) > 0 {
						command = strings.Join(b.Command, "+")
					}
				}
				fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\n", d.Name, d.Cooldown(), d.Charges(), segment, command)
			}
			return nil
		},
	}
}
