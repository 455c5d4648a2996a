package main

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"runtime"
	"text/tabwriter"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/Concurrent-Fuzzy-Match-Engine/pkg/fuzzmatch"
)

type matchOptions struct {
	limit   int
	workers int
	timeout time.Duration
}

func (o *matchOptions) register(cmd *cobra.Command) {
	cmd.Flags().IntVarP(&o.limit, "limit", "n", 20, "maximum number of results")
	cmd.Flags().IntVar(&o.workers, "workers", runtime.NumCPU(), "scoring goroutines per engine")
	cmd.Flags().DurationVar(&o.timeout, "timeout", 30*time.Second, "give up scoring after this long")
}

func newMatchCmd() *cobra.Command {
	opts := &matchOptions{}
	cmd := &cobra.Command{
		Use:   "match <pattern> [file...]",
		Short: "Rank the lines of files (or stdin) against a pattern",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			h := fuzzmatch.New(nil, fuzzmatch.WithName("cli"), fuzzmatch.WithWorkers(opts.workers))
			defer h.Destroy()

			if err := loadLines(h, args[1:], false); err != nil {
				return err
			}
			snap, err := settle(cmd.Context(), h, args[0], opts.timeout)
			if err != nil {
				return err
			}

			w := newTable(cmd.OutOrStdout())
			end := min(uint32(opts.limit), snap.MatchedItemCount())
			err = snap.MatchedRange(0, end, func(m fuzzmatch.Matched) bool {
				fmt.Fprintf(w, "%d\t%s\n", m.Score, m.Entry.Text())
				return true
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(w, "\n%d of %d matched\n", snap.MatchedItemCount(), snap.ItemCount())
			return w.Flush()
		},
	}
	opts.register(cmd)
	return cmd
}

func newJoinCmd() *cobra.Command {
	opts := &matchOptions{}
	cmd := &cobra.Command{
		Use:   "join <pattern> <fileA> <fileB>",
		Short: "Match two files and merge the results by line number",
		Long: "join treats the line number as the identity of each line, so line n of\n" +
			"fileA and line n of fileB compete and the better match wins.",
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			snaps := make([]*fuzzmatch.Snapshot, 0, 2)
			for _, file := range args[1:] {
				h := fuzzmatch.New(nil, fuzzmatch.WithName(file), fuzzmatch.WithIdentity(), fuzzmatch.WithWorkers(opts.workers))
				defer h.Destroy()
				if err := loadLines(h, []string{file}, true); err != nil {
					return err
				}
				snap, err := settle(cmd.Context(), h, args[0], opts.timeout)
				if err != nil {
					return err
				}
				snaps = append(snaps, snap)
			}

			merged, err := fuzzmatch.Join(snaps[0], snaps[1])
			if err != nil {
				return err
			}
			defer merged.Release()

			w := newTable(cmd.OutOrStdout())
			for _, e := range merged.Top(opts.limit) {
				item, err := e.Item()
				if err != nil {
					return err
				}
				fmt.Fprintf(w, "%d\t%s:%d\t%s\n", e.Score, e.Snapshot.Handle().Name(), e.Identity, item.Entry.Text())
			}
			fmt.Fprintf(w, "\n%d identities matched\n", merged.Len())
			return w.Flush()
		},
	}
	opts.register(cmd)
	return cmd
}

// newTable pads columns for a terminal and keeps plain tab-separated
// fields when the output is piped.
func newTable(out io.Writer) *tabwriter.Writer {
	if f, ok := out.(*os.File); ok && isatty.IsTerminal(f.Fd()) {
		return tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	}
	return tabwriter.NewWriter(out, 0, 8, 0, '\t', 0)
}

func settle(ctx context.Context, h *fuzzmatch.Handle, pattern string, timeout time.Duration) (*fuzzmatch.Snapshot, error) {
	if err := h.Reparse([]byte(pattern), false); err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if _, err := h.Settle(ctx, 50); err != nil {
		return nil, err
	}
	return h.Snapshot()
}

// loadLines pushes every line of files, or of stdin when files is empty.
// With identities each line is keyed by its 1-based line number.
func loadLines(h *fuzzmatch.Handle, files []string, identities bool) error {
	if len(files) == 0 {
		return pushLines(h, os.Stdin, identities)
	}
	for _, file := range files {
		f, err := os.Open(file)
		if err != nil {
			return err
		}
		err = pushLines(h, f, identities)
		f.Close()
		if err != nil {
			return fmt.Errorf("reading %s: %w", file, err)
		}
	}
	return nil
}

func pushLines(h *fuzzmatch.Handle, r io.Reader, identities bool) error {
	const batchSize = 4096
	payloads := make([][]byte, 0, batchSize)
	var ids []uint32
	flush := func() error {
		if len(payloads) == 0 {
			return nil
		}
		err := h.PushAll(payloads, ids)
		payloads, ids = payloads[:0], ids[:0]
		return err
	}

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	var line uint32
	for sc.Scan() {
		line++
		payloads = append(payloads, bytes.Clone(sc.Bytes()))
		if identities {
			ids = append(ids, line)
		}
		if len(payloads) == batchSize {
			if err := flush(); err != nil {
				return err
			}
		}
	}
	if err := sc.Err(); err != nil {
		return err
	}
	return flush()
}
