// Package scanner walks a configured root and emits candidate
// (media_path, subtitle_path) pairs for the indexing pipeline.
package scanner

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/nodo1014/indexer-quick/internal/core"
	"github.com/rs/zerolog"
)

// DefaultPairChannelCapacity is the bounded channel size used when the
// caller does not override it.
const DefaultPairChannelCapacity = 256

var siblingSubtitleDirs = []string{"subs", "subtitles"}

// Options configures one scan.
type Options struct {
	Root               string
	MediaExtensions    []string
	SubtitleExtensions []string
	ChannelCapacity    int
	Logger             zerolog.Logger
}

// Scan walks opts.Root depth-first and streams pairs onto the returned
// channel, which is closed when the walk completes or ctx is cancelled.
// Errors encountered mid-walk are logged and the offending entry is
// skipped; only a failure to stat the root itself is returned directly.
func Scan(ctx context.Context, opts Options) (<-chan core.Pair, error) {
	// An unset root is not an error: the scan simply emits nothing.
	if opts.Root == "" {
		out := make(chan core.Pair)
		close(out)
		return out, nil
	}
	if _, err := os.Stat(opts.Root); err != nil {
		return nil, core.NewError(core.KindIO, core.AbortAll, "scan root unreadable", err)
	}

	capacity := opts.ChannelCapacity
	if capacity <= 0 {
		capacity = DefaultPairChannelCapacity
	}
	mediaExt := toSet(opts.MediaExtensions)
	subExt := toSet(opts.SubtitleExtensions)

	out := make(chan core.Pair, capacity)

	go func() {
		defer close(out)
		visited := map[string]bool{}
		walk(ctx, opts.Root, mediaExt, subExt, visited, out, opts.Logger)
	}()

	return out, nil
}

func walk(ctx context.Context, dir string, mediaExt, subExt map[string]bool, visited map[string]bool, out chan<- core.Pair, log zerolog.Logger) {
	select {
	case <-ctx.Done():
		return
	default:
	}

	real, err := filepath.EvalSymlinks(dir)
	if err != nil {
		log.Warn().Err(err).Str("dir", dir).Msg("scanner: cannot resolve directory")
		return
	}
	if visited[real] {
		log.Warn().Str("dir", dir).Msg("scanner: symlink loop detected, skipping")
		return
	}
	visited[real] = true

	entries, err := os.ReadDir(dir)
	if err != nil {
		log.Warn().Err(err).Str("dir", dir).Msg("scanner: cannot read directory")
		return
	}

	var mediaFiles []string
	for _, entry := range entries {
		select {
		case <-ctx.Done():
			return
		default:
		}

		full := filepath.Join(dir, entry.Name())
		if entry.IsDir() {
			walk(ctx, full, mediaExt, subExt, visited, out, log)
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if mediaExt[ext] {
			mediaFiles = append(mediaFiles, full)
		}
	}

	for _, media := range mediaFiles {
		subPath := findSiblingSubtitle(media, subExt)
		select {
		case out <- core.Pair{MediaPath: media, SubtitlePath: subPath}:
		case <-ctx.Done():
			return
		}
	}
}

// findSiblingSubtitle locates a same-stem subtitle: same directory first,
// then a sibling subs/ or subtitles/ folder.
func findSiblingSubtitle(mediaPath string, subExt map[string]bool) string {
	dir := filepath.Dir(mediaPath)
	stem := strings.TrimSuffix(filepath.Base(mediaPath), filepath.Ext(mediaPath))

	if found := firstMatch(dir, stem, subExt); found != "" {
		return found
	}
	for _, sibling := range siblingSubtitleDirs {
		if found := firstMatch(filepath.Join(dir, sibling), stem, subExt); found != "" {
			return found
		}
	}
	return ""
}

func firstMatch(dir, stem string, subExt map[string]bool) string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return ""
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		ext := strings.ToLower(filepath.Ext(name))
		if !subExt[ext] {
			continue
		}
		if strings.TrimSuffix(name, filepath.Ext(name)) == stem {
			return filepath.Join(dir, name)
		}
	}
	return ""
}

func toSet(exts []string) map[string]bool {
	set := make(map[string]bool, len(exts))
	for _, e := range exts {
		e = strings.ToLower(e)
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		set[e] = true
	}
	return set
}
