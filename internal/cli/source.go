package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newSourceCmd() *cobra.Command {
	var maxDepth int
	var bodyOnly bool
	cmd := &cobra.Command{
		Use:   "source <run-id> <page-url>",
		Short: "Fetch a page's HTML body, resolving it from an ancestor when needed",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireDurableStore(); err != nil {
				return err
			}
			sink := newSink()
			st, cleanup, err := buildStore(cmd.Context(), sink)
			if err != nil {
				return err
			}
			defer cleanup()

			result, getErr := st.GetSource(cmd.Context(), args[0], args[1], maxDepth)
			if getErr != nil {
				return getErr
			}

			if bodyOnly {
				fmt.Print(string(result.Body))
				return nil
			}

			fmt.Printf("source page:     %s\n", result.ActualSourcePage)
			fmt.Printf("from parent:     %t\n", result.IsSourceFromParent)
			fmt.Printf("hierarchy depth: %d\n", result.HierarchyDepth)
			fmt.Printf("traversal path:  %s\n", joinPath(result.TraversalPath))
			fmt.Printf("highlighted links (%d):\n", len(result.HighlightedLinks))
			for _, h := range result.HighlightedLinks {
				code := "-"
				if h.StatusCode != nil {
					code = fmt.Sprintf("%d", *h.StatusCode)
				}
				fmt.Printf("  [%d:%d] %-7s %-4s %s\n", h.Start, h.End, h.Type, code, truncate(h.URL, 80))
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&maxDepth, "max-depth", 5, "ceiling on the upward traversal")
	cmd.Flags().BoolVar(&bodyOnly, "body", false, "print only the raw HTML body")
	return cmd
}
