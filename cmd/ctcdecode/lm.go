package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ieee0824/ctcdecode-go/language"
)

func newLMCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "lm",
		Short: "Build and convert language models",
	}
	cmd.AddCommand(newLMBuildCmd(), newLMCompileCmd())
	return cmd
}

func newLMBuildCmd() *cobra.Command {
	var (
		order  int
		output string
		binary bool
	)
	cmd := &cobra.Command{
		Use:   "build [input-files...]",
		Short: "Build an N-gram model from tokenized text",
		Long: `Build a Witten-Bell smoothed N-gram model from tokenized text.
Input: one sentence per line, words separated by spaces. If no input files are
given, reads from stdin.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			b := language.NewBuilder(order)

			var sentCount int
			if len(args) == 0 {
				sentCount = readLines(b, cmd.InOrStdin())
			} else {
				for _, path := range args {
					f, err := os.Open(path)
					if err != nil {
						return fmt.Errorf("open %s: %w", path, err)
					}
					sentCount += readLines(b, f)
					f.Close()
				}
			}

			w := cmd.OutOrStdout()
			if output != "" {
				f, err := os.Create(output)
				if err != nil {
					return fmt.Errorf("create %s: %w", output, err)
				}
				defer f.Close()
				w = f
			}

			if binary {
				if err := b.Model().WriteBinary(w); err != nil {
					return fmt.Errorf("write compiled model: %w", err)
				}
			} else if err := b.WriteARPA(w); err != nil {
				return fmt.Errorf("write ARPA: %w", err)
			}

			fmt.Fprintf(cmd.ErrOrStderr(), "Built %d-gram model from %d sentences\n", b.Order(), sentCount)
			return nil
		},
	}
	cmd.Flags().IntVar(&order, "order", 2, "N-gram order (2=bigram, 3=trigram)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default: stdout)")
	cmd.Flags().BoolVar(&binary, "binary", false, "write the compiled binary format")
	return cmd
}

func readLines(b *language.Builder, r io.Reader) int {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 1024*1024), 1024*1024)
	count := 0
	for scanner.Scan() {
		words := strings.Fields(scanner.Text())
		if len(words) > 0 {
			b.AddSentence(words)
			count++
		}
	}
	return count
}

func newLMCompileCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "compile <in.arpa> <out.bin>",
		Short: "Convert an ARPA model to the compiled binary format",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := language.Load(args[0])
			if err != nil {
				return err
			}
			f, err := os.Create(args[1])
			if err != nil {
				return fmt.Errorf("create %s: %w", args[1], err)
			}
			if err := m.WriteBinary(f); err != nil {
				f.Close()
				return fmt.Errorf("write compiled model: %w", err)
			}
			if err := f.Close(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "Compiled %d-gram model %v to %s\n", m.Order, m.Size(), args[1])
			return nil
		},
	}
}
