package cmd

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/nfrund/actwatch/internal/event"
	"github.com/spf13/cobra"
)

// maxLineSize bounds a single log line.
const maxLineSize = 1 << 20

func newDecodeCmd() *cobra.Command {
	var tags []string

	cmd := &cobra.Command{
		Use:   "decode [file]",
		Short: "Decode log lines into JSON events",
		Long: `Decode reads ACT network log lines from a file, or stdin when no file is
given, and writes one JSON event per line.

Examples:
  actwatch-cli decode Network_20260301.log
  actwatch-cli decode --tag 21 --tag NetworkDeath < Network_20260301.log`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			filter := make(map[event.Tag]struct{}, len(tags))
			for _, s := range tags {
				tag, ok := event.ParseTag(s)
				if !ok {
					return fmt.Errorf("unknown tag %q (known: %s)", s, strings.Join(event.TagNames(), ", "))
				}
				filter[tag] = struct{}{}
			}

			in := cmd.InOrStdin()
			if len(args) == 1 {
				f, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer f.Close()
				in = f
			}
			return decodeStream(in, cmd.OutOrStdout(), filter)
		},
	}
	cmd.Flags().StringSliceVarP(&tags, "tag", "t", nil, "Only emit events with this tag code or name (repeatable)")
	return cmd
}

func decodeStream(r io.Reader, w io.Writer, filter map[event.Tag]struct{}) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), maxLineSize)
	enc := json.NewEncoder(w)

	n, emitted := 0, 0
	for sc.Scan() {
		line := sc.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		n++
		ev := event.Decode(line)
		if len(filter) > 0 {
			if _, ok := filter[ev.Tag()]; !ok {
				continue
			}
		}
		if err := enc.Encode(ev); err != nil {
			return fmt.Errorf("encode line %d: %w", n, err)
		}
		emitted++
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("read input: %w", err)
	}
	slog.Info("Decoded log", "lines", n, "emitted", emitted)
	return nil
}
