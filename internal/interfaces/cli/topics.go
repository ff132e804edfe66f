package cli

import (
	"strconv"

	"github.com/spf13/cobra"

	"github.com/mission-apprentissage/api-apprentissage-sub004/internal/infrastructure/messaging/kafka"
	"github.com/mission-apprentissage/api-apprentissage-sub004/pkg/errors"
)

type topicList []kafka.TopicConfig

func (t topicList) TableHeaders() []string {
	return []string{"TOPIC", "PARTITIONS", "REPLICATION", "CLEANUP"}
}

func (t topicList) TableRows() [][]string {
	rows := make([][]string, len(t))
	for i, tc := range t {
		cleanup := tc.CleanupPolicy
		if cleanup == "" {
			cleanup = "delete"
		}
		rows[i] = []string{tc.Name, strconv.Itoa(tc.NumPartitions), strconv.Itoa(tc.ReplicationFactor), cleanup}
	}
	return rows
}

func newTopicsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "topics",
		Short: "Manage the kafka topics imports publish to",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "Print the topics the importer publishes to",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cliCtx, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}
			return printTopics(cmd, topicList(kafka.DefaultTopics(kafka.NewTopics(cliCtx.Config.Kafka.TopicPrefix))))
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "ensure",
		Short: "Create missing topics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cliCtx, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}
			cfg := cliCtx.Config.Kafka
			if !cfg.Enabled {
				return errors.Validation("kafka is disabled")
			}

			mgr, err := kafka.NewTopicManager(cfg.Brokers, cliCtx.Logger)
			if err != nil {
				return err
			}
			defer mgr.Close()

			ctx, cancel := commandContext(cmd, cliCtx)
			defer cancel()

			topics := kafka.DefaultTopics(kafka.NewTopics(cfg.TopicPrefix))
			if err := mgr.EnsureTopics(ctx, topics); err != nil {
				return err
			}
			return printTopics(cmd, topicList(topics))
		},
	})

	return cmd
}

// printTopics defaults to the table layout when no format was asked for.
func printTopics(cmd *cobra.Command, topics topicList) error {
	cliCtx, err := GetCLIContext(cmd)
	if err == nil && cliCtx.OutputFormat == "text" {
		return printTable(cmd, topics)
	}
	return PrintResult(cmd, topics)
}
