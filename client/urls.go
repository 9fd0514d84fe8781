package client

import (
	"fmt"
	"strings"
)

// URLBuilder constructs the human and machine URLs for a package on a feed.
type URLBuilder interface {
	Gallery(id, version string) string
	Download(id, version string) string
	PURL(id, version string) string
}

// BaseURLs provides a default URLBuilder implementation.
type BaseURLs struct {
	GalleryFn  func(id, version string) string
	DownloadFn func(id, version string) string
	PURLFn     func(id, version string) string
}

func (b *BaseURLs) Gallery(id, version string) string {
	if b.GalleryFn != nil {
		return b.GalleryFn(id, version)
	}
	return ""
}

func (b *BaseURLs) Download(id, version string) string {
	if b.DownloadFn != nil {
		return b.DownloadFn(id, version)
	}
	return ""
}

func (b *BaseURLs) PURL(id, version string) string {
	if b.PURLFn != nil {
		return b.PURLFn(id, version)
	}
	if version == "" {
		return fmt.Sprintf("pkg:nuget/%s", id)
	}
	return fmt.Sprintf("pkg:nuget/%s@%s", id, version)
}

// FlatContainerURL builds a package archive URL under a NuGet v3 PackageBaseAddress.
// Ids and versions are lower-cased, as the flat container requires.
func FlatContainerURL(base, id, version string) string {
	lowerID := strings.ToLower(id)
	lowerVersion := strings.ToLower(version)
	return fmt.Sprintf("%s/%s/%s/%s.%s.nupkg", strings.TrimSuffix(base, "/"), lowerID, lowerVersion, lowerID, lowerVersion)
}

// BuildURLs returns a map of all non-empty URLs for a package.
// Keys are "gallery", "download", and "purl".
func BuildURLs(urls URLBuilder, id, version string) map[string]string {
	result := make(map[string]string)
	if v := urls.Gallery(id, version); v != "" {
		result["gallery"] = v
	}
	if v := urls.Download(id, version); v != "" {
		result["download"] = v
	}
	if v := urls.PURL(id, version); v != "" {
		result["purl"] = v
	}
	return result
}
