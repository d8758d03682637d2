// Package format renders CLI output.
package format

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/nfrund/actwatch/internal/topicmgr"
)

// TopicDisplay is a topic as rendered in JSON output.
type TopicDisplay struct {
	Name        string         `json:"name"`
	Module      string         `json:"module"`
	Description string         `json:"description"`
	Example     string         `json:"example"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// TopicsTable writes topics as an aligned table.
func TopicsTable(w io.Writer, topics []topicmgr.Topic) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	defer tw.Flush()

	fmt.Fprintln(tw, "NAME\tMODULE\tDESCRIPTION\tEXAMPLE")
	fmt.Fprintln(tw, "----\t------\t-----------\t-------")
	if len(topics) == 0 {
		fmt.Fprintln(tw, "No topics found")
		return
	}
	for _, t := range topics {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n",
			t.Name(),
			t.Module(),
			truncate(t.Description(), 50),
			truncate(t.Example(), 40))
	}
}

// TopicsJSON writes topics as an indented JSON document.
func TopicsJSON(w io.Writer, topics []topicmgr.Topic) error {
	displays := make([]TopicDisplay, len(topics))
	for i, t := range topics {
		displays[i] = TopicDisplay{
			Name:        t.Name(),
			Module:      t.Module(),
			Description: t.Description(),
			Example:     t.Example(),
			Metadata:    t.Metadata(),
		}
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(struct {
		Topics []TopicDisplay `json:"topics"`
		Count  int            `json:"count"`
	}{Topics: displays, Count: len(displays)})
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	if max <= 3 {
		return string(r[:max])
	}
	return string(r[:max-3]) + "..."
}
