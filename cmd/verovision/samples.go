package main

import (
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ayusman/verovision/internal/gesture"
	"github.com/ayusman/verovision/internal/store"
)

func newSamplesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "samples",
		Short: "Show recorded training samples per label",
		RunE:  runSamplesList,
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "delete <label>",
		Short: "Delete a label and all of its samples",
		Args:  cobra.ExactArgs(1),
		RunE:  runSamplesDelete,
	})
	return cmd
}

func runSamplesList(cmd *cobra.Command, _ []string) error {
	ctx, stop := signalContext()
	defer stop()

	cfg, err := setup(ctx)
	if err != nil {
		return err
	}
	alphabet, err := gesture.NewAlphabet(cfg.Labels, cfg.SpaceLabel)
	if err != nil {
		return err
	}

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	counts, err := st.Labels().Counts()
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "LABEL\tSAMPLES")
	total := 0
	for _, label := range alphabet.Labels() {
		n := counts[string(label)]
		total += n
		fmt.Fprintf(w, "%s\t%d\n", label, n)
	}
	fmt.Fprintf(w, "total\t%d\n", total)
	return w.Flush()
}

func runSamplesDelete(cmd *cobra.Command, args []string) error {
	ctx, stop := signalContext()
	defer stop()

	cfg, err := setup(ctx)
	if err != nil {
		return err
	}
	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	if err := st.Labels().Delete(args[0]); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("label %q has no samples", args[0])
		}
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", args[0])
	return nil
}
