package cmd

import (
	"fmt"

	"github.com/nfrund/actwatch/cmd/actwatch-cli/internal/format"
	"github.com/nfrund/actwatch/internal/pubsub"
	"github.com/nfrund/actwatch/internal/topicmgr"
	"github.com/spf13/cobra"
)

func newTopicsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "topics",
		Short: "Explore the topics derived events are published on",
		Long: `The daemon republishes derived events (combat state, cooldowns, player
status) on named topics. Stream clients can filter on them with patterns such
as "cooldown.*".`,
	}
	cmd.AddCommand(newTopicsListCmd())
	return cmd
}

func newTopicsListCmd() *cobra.Command {
	var outputFormat, module, pattern string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List all topics",
		Long: `List all topics the relay publishes on.

Examples:
  actwatch-cli topics list
  actwatch-cli topics list --format json
  actwatch-cli topics list --module cooldown
  actwatch-cli topics list --pattern "combat.*"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			// Referencing the relay topics registers them.
			_ = pubsub.RelayTopics()
			manager := topicmgr.Default()

			var topics []topicmgr.Topic
			switch {
			case pattern != "":
				if err := manager.ValidatePattern(pattern); err != nil {
					return err
				}
				topics = manager.FindTopics(pattern)
			case module != "":
				topics = manager.ListByModule(module)
			default:
				topics = manager.List()
			}

			out := cmd.OutOrStdout()
			switch outputFormat {
			case "json":
				return format.TopicsJSON(out, topics)
			case "table":
				format.TopicsTable(out, topics)
				return nil
			default:
				return fmt.Errorf("unsupported output format %q, use table or json", outputFormat)
			}
		},
	}
	cmd.Flags().StringVarP(&outputFormat, "format", "f", "table", "Output format (table, json)")
	cmd.Flags().StringVarP(&module, "module", "m", "", "Filter topics by module (first name segment)")
	cmd.Flags().StringVarP(&pattern, "pattern", "p", "", "Filter topics by wildcard pattern")
	return cmd
}
