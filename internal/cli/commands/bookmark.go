package commands

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

var bookmarkCmd = &cobra.Command{
	Use:   "bookmark <media-path> <start-ms> <true|false>",
	Short: "Toggle a bookmark on a cue",
	Args:  cobra.ExactArgs(3),
	Run: func(cmd *cobra.Command, args []string) {
		startMs, err := strconv.ParseInt(args[1], 10, 64)
		if err != nil {
			exitWith(exitConfigError, fmt.Errorf("start-ms must be an integer: %w", err))
		}
		bookmarked, err := strconv.ParseBool(args[2])
		if err != nil {
			exitWith(exitConfigError, fmt.Errorf("bookmarked must be true or false: %w", err))
		}

		_, repo := openRepository()
		defer repo.Close()

		if err := repo.ToggleBookmark(context.Background(), args[0], startMs, bookmarked); err != nil {
			exitWith(1, err)
		}
		fmt.Println("ok")
	},
}

var tagCmd = &cobra.Command{
	Use:   "tag <add|remove|list> <media-path> <start-ms> [tag]",
	Short: "Manage tags on a cue",
	Args:  cobra.RangeArgs(3, 4),
	Run: func(cmd *cobra.Command, args []string) {
		action := args[0]
		mediaPath := args[1]
		startMs, err := strconv.ParseInt(args[2], 10, 64)
		if err != nil {
			exitWith(exitConfigError, fmt.Errorf("start-ms must be an integer: %w", err))
		}

		_, repo := openRepository()
		defer repo.Close()
		ctx := context.Background()

		switch action {
		case "add":
			if len(args) != 4 {
				exitWith(exitConfigError, fmt.Errorf("tag add requires a tag argument"))
			}
			if err := repo.AddTag(ctx, mediaPath, startMs, args[3]); err != nil {
				exitWith(1, err)
			}
			fmt.Println("ok")
		case "remove":
			if len(args) != 4 {
				exitWith(exitConfigError, fmt.Errorf("tag remove requires a tag argument"))
			}
			if err := repo.RemoveTag(ctx, mediaPath, startMs, args[3]); err != nil {
				exitWith(1, err)
			}
			fmt.Println("ok")
		case "list":
			tags, err := repo.ListTags(ctx, mediaPath, startMs)
			if err != nil {
				exitWith(1, err)
			}
			for _, t := range tags {
				fmt.Println(t)
			}
		default:
			exitWith(exitConfigError, fmt.Errorf("unknown tag action %q: want add, remove, or list", action))
		}
	},
}
