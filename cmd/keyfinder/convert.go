package main

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/mahdiidarabi/keyfinder/internal/parser"
	"github.com/mahdiidarabi/keyfinder/internal/targetset"
)

func newConvertTargetsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "convert-targets <in.txt> <out.bin>",
		Short: "Convert a text target file into binary records",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return convertTargets(args[0], args[1], cmd.ErrOrStderr())
		},
	}
}

// convertTargets merges duplicate targets and writes them sorted.
func convertTargets(in, out string, stderr io.Writer) error {
	targets, warnings, err := parser.LoadTargetsFile(in)
	if err != nil {
		return err
	}
	for _, w := range warnings {
		fmt.Fprintf(stderr, "skipping %s\n", w)
	}
	set, err := targetset.New(targets)
	if err != nil {
		return err
	}

	f, err := os.Create(out)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", out, err)
	}
	w := bufio.NewWriter(f)
	if err := parser.WriteBinaryTargets(w, set.Targets()); err != nil {
		f.Close()
		return err
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return fmt.Errorf("failed to write %s: %w", out, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to write %s: %w", out, err)
	}
	fmt.Fprintf(stderr, "wrote %d targets to %s\n", set.Len(), out)
	return nil
}
