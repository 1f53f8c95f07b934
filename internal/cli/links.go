package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/arvindnair/webanalyzer/internal/model"
)

func newLinksCmd() *cobra.Command {
	var onlyBroken bool
	var linkURL string
	cmd := &cobra.Command{
		Use:   "links <run-id>",
		Short: "List a run's validated edges, or inspect one link in detail",
		Args:  cobra.ExactArgs(1),
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

			bundle, getErr := st.GetRun(cmd.Context(), args[0])
			if getErr != nil {
				return getErr
			}

			if linkURL != "" {
				return printLinkDetail(bundle, linkURL)
			}

			for _, e := range bundle.Edges {
				if onlyBroken && e.Status != model.StatusBroken {
					continue
				}
				code := "-"
				if e.StatusCode != nil {
					code = fmt.Sprintf("%d", *e.StatusCode)
				}
				fmt.Printf("%-12s %-4s %-12s %s\n", e.Status, code, e.LinkType, truncate(e.URL, 100))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&onlyBroken, "broken", false, "show only broken links")
	cmd.Flags().StringVar(&linkURL, "url", "", "show full detail for one link")
	return cmd
}

// printLinkDetail prints one edge record plus the title of the page it was
// discovered on and its discovery path.
func printLinkDetail(bundle model.RunBundle, linkURL string) error {
	var edge *model.EdgeRecord
	for i := range bundle.Edges {
		if bundle.Edges[i].URL == linkURL {
			edge = &bundle.Edges[i]
			break
		}
	}
	if edge == nil {
		return fmt.Errorf("no edge record for %s", linkURL)
	}

	var parentTitle string
	for _, p := range bundle.Pages {
		if p.URL == edge.ParentURL {
			parentTitle = p.Title
			break
		}
	}

	fmt.Printf("url:           %s\n", edge.URL)
	fmt.Printf("status:        %s\n", edge.Status)
	if edge.StatusCode != nil {
		fmt.Printf("status code:   %d\n", *edge.StatusCode)
	}
	fmt.Printf("link type:     %s\n", edge.LinkType)
	fmt.Printf("response time: %s\n", edge.ResponseTime)
	if edge.Title != "" {
		fmt.Printf("title:         %s\n", edge.Title)
	}
	if edge.ErrorMessage != "" {
		fmt.Printf("error:         %s\n", edge.ErrorMessage)
	}
	fmt.Printf("parent:        %s (%s)\n", edge.ParentURL, parentTitle)
	fmt.Printf("path:          %s\n", joinPath(bundle.Maps.PathMap[edge.URL]))
	return nil
}
