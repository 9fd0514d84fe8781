package core

import (
	"context"
	"fmt"
	"sort"
)

// FetchLatestVersion returns the latest version that is neither yanked nor deprecated.
// Returns nil if no valid versions exist.
func FetchLatestVersion(ctx context.Context, lister VersionLister, id string) (*Version, error) {
	versions, err := lister.FetchVersions(ctx, id)
	if err != nil {
		return nil, err
	}

	var valid []Version
	for _, v := range versions {
		if v.Status == StatusNone {
			valid = append(valid, v)
		}
	}

	if len(valid) == 0 {
		return nil, nil
	}

	// Highest version number wins; publish time only breaks ties between
	// numbers that compare equal (such as 1.0 and 1.0.0).
	sort.SliceStable(valid, func(i, j int) bool {
		if c := CompareVersions(valid[i].Number, valid[j].Number); c != 0 {
			return c > 0
		}
		return valid[i].PublishedAt.After(valid[j].PublishedAt)
	})

	return &valid[0], nil
}

// TotalDownloads sums the download counts of results.
func TotalDownloads(results []SearchResult) int64 {
	var total int64
	for _, r := range results {
		total += r.DownloadCount
	}
	return total
}

// FormatDownloads renders a download count the way galleries do: 1.2K, 3.4M, 5.6B.
func FormatDownloads(n int64) string {
	switch {
	case n >= 1_000_000_000:
		return fmt.Sprintf("%.1fB", float64(n)/1_000_000_000)
	case n >= 1_000_000:
		return fmt.Sprintf("%.1fM", float64(n)/1_000_000)
	case n >= 1_000:
		return fmt.Sprintf("%.1fK", float64(n)/1_000)
	default:
		return fmt.Sprintf("%d", n)
	}
}
