package nuget

import (
	"context"
	"fmt"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"

	"github.com/git-pkgs/feedchooser/internal/core"
)

const indexCacheSize = 64

// Resource types, most preferred first.
var (
	searchTypes = []string{
		"SearchQueryService/3.5.0",
		"SearchQueryService/3.0.0-rc",
		"SearchQueryService",
	}
	registrationTypes = []string{
		"RegistrationsBaseUrl/3.6.0",
		"RegistrationsBaseUrl/3.4.0",
		"RegistrationsBaseUrl",
	}
	packageBaseTypes = []string{
		"PackageBaseAddress/3.0.0",
	}
)

type serviceIndex struct {
	Version   string     `json:"version"`
	Resources []resource `json:"resources"`
}

type resource struct {
	ID   string `json:"@id"`
	Type string `json:"@type"`
}

// find returns the URL of the first resource matching types, in order of preference.
func (s *serviceIndex) find(types []string) (string, bool) {
	for _, t := range types {
		for _, r := range s.Resources {
			if strings.EqualFold(r.Type, t) && r.ID != "" {
				return r.ID, true
			}
		}
	}
	return "", false
}

// indexCache holds resolved service indexes keyed by lower-cased URL.
// Concurrent first resolutions of the same index share one request.
type indexCache struct {
	entries *lru.Cache[string, *serviceIndex]
	group   singleflight.Group
}

func newIndexCache(size int) *indexCache {
	entries, err := lru.New[string, *serviceIndex](size)
	if err != nil {
		panic(err) // only for a non-positive size
	}
	return &indexCache{entries: entries}
}

var indexes = newIndexCache(indexCacheSize)

func (c *indexCache) peek(indexURL string) (*serviceIndex, bool) {
	return c.entries.Get(strings.ToLower(indexURL))
}

func (c *indexCache) resolve(ctx context.Context, client *core.Client, indexURL string) (*serviceIndex, error) {
	key := strings.ToLower(indexURL)
	if idx, ok := c.entries.Get(key); ok {
		return idx, nil
	}

	v, err, _ := c.group.Do(key, func() (any, error) {
		var idx serviceIndex
		if err := client.GetJSON(ctx, indexURL, &idx); err != nil {
			return nil, fmt.Errorf("loading service index: %w", err)
		}
		if len(idx.Resources) == 0 {
			return nil, fmt.Errorf("service index %s lists no resources", indexURL)
		}
		c.entries.Add(key, &idx)
		return &idx, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*serviceIndex), nil
}
