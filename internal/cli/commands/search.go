package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nodo1014/indexer-quick/internal/core"
	"github.com/nodo1014/indexer-quick/internal/search"
)

var (
	searchModeFlag      string
	searchLangFlag      string
	searchMediaKindFlag string
	searchSortFlag      string
	searchPageFlag      int
	searchPerPageFlag   int
	searchMediaOnlyFlag bool
	searchJSONFlag      bool
)

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Query the subtitle corpus",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		_, repo := openRepository()
		defer repo.Close()

		svc := search.New(repo, logger)
		req := core.SearchRequest{
			Query:     args[0],
			Mode:      core.SearchMode(searchModeFlag),
			Lang:      searchLangFlag,
			MediaKind: core.MediaKind(searchMediaKindFlag),
			Sort:      core.SortOrder(searchSortFlag),
			Page:      searchPageFlag,
			PerPage:   searchPerPageFlag,
			MediaOnly: searchMediaOnlyFlag,
		}

		resp, err := svc.Search(context.Background(), req)
		if err != nil {
			exitWith(1, err)
		}

		if searchJSONFlag {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			if err := enc.Encode(resp); err != nil {
				exitWith(1, err)
			}
			return
		}

		if resp.Warning != "" {
			fmt.Fprintf(os.Stderr, "warning: %s\n", resp.Warning)
		}
		fmt.Printf("%d total\n", resp.Total)
		for _, hit := range resp.Results {
			bookmark := " "
			if hit.IsBookmarked {
				bookmark = "*"
			}
			fmt.Printf("%s [%6dms-%6dms] %s: %s\n", bookmark, hit.StartMs, hit.EndMs, hit.MediaPath, hit.Content)
		}
	},
}

func init() {
	searchCmd.Flags().StringVar(&searchModeFlag, "mode", "like", "query mode: like or fts")
	searchCmd.Flags().StringVar(&searchLangFlag, "lang", "", "filter by ISO-639-1 language tag")
	searchCmd.Flags().StringVar(&searchMediaKindFlag, "media-kind", "", "filter by media kind: video or audio")
	searchCmd.Flags().StringVar(&searchSortFlag, "sort", "relevance", "sort order: relevance, recent, or oldest")
	searchCmd.Flags().IntVar(&searchPageFlag, "page", 1, "page number, 1-indexed")
	searchCmd.Flags().IntVar(&searchPerPageFlag, "per-page", 50, "results per page (clamped to [1,200])")
	searchCmd.Flags().BoolVar(&searchMediaOnlyFlag, "media-only", false, "drop hits whose backing media file no longer exists")
	searchCmd.Flags().BoolVar(&searchJSONFlag, "json", false, "print results as JSON")
}
