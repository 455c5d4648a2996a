package main

import (
	"bufio"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/Concurrent-Fuzzy-Match-Engine/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/Concurrent-Fuzzy-Match-Engine/internal/source"
	"github.com/Adithya-Monish-Kumar-K/Concurrent-Fuzzy-Match-Engine/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/Concurrent-Fuzzy-Match-Engine/pkg/kafka"
)

func newPublishCmd(flags *globalFlags) *cobra.Command {
	var (
		batchSize int
		byLine    bool
	)
	cmd := &cobra.Command{
		Use:   "publish <source> <file>",
		Short: "Produce the lines of a file to the item ingest topic",
		Long: "publish sends one ItemEvent per non-empty line. The identity is the\n" +
			"FNV-32a hash of the line, or its line number with --by-line.",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(flags.config)
			if err != nil {
				return err
			}
			f, err := os.Open(args[1])
			if err != nil {
				return err
			}
			defer f.Close()

			producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.ItemIngest, false)
			defer producer.Close()

			sourceName := args[0]
			batch := make([]kafka.Event, 0, batchSize)
			sent := 0
			flush := func() error {
				if err := producer.PublishBatch(cmd.Context(), batch); err != nil {
					return err
				}
				sent += len(batch)
				batch = batch[:0]
				return nil
			}

			sc := bufio.NewScanner(f)
			var line uint32
			for sc.Scan() {
				line++
				text := sc.Text()
				if text == "" {
					continue
				}
				id := source.Identity(text)
				if byLine {
					id = line
				}
				batch = append(batch, kafka.Event{
					Key: sourceName,
					Value: ingestion.ItemEvent{
						Source:     sourceName,
						ID:         id,
						Text:       text,
						IngestedAt: time.Now().UTC(),
					},
				})
				if len(batch) >= batchSize {
					if err := flush(); err != nil {
						return err
					}
				}
			}
			if err := sc.Err(); err != nil {
				return err
			}
			if err := flush(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "published %d items to %s (topic %s)\n", sent, sourceName, cfg.Kafka.Topics.ItemIngest)
			return nil
		},
	}
	cmd.Flags().IntVar(&batchSize, "batch", 500, "events per produce call")
	cmd.Flags().BoolVar(&byLine, "by-line", false, "use line numbers as identities")
	return cmd
}
