package core

import (
	"fmt"

	packageurl "github.com/package-url/packageurl-go"
)

const purlType = "nuget"

// PURL wraps packageurl.PackageURL with feed-specific helpers.
type PURL struct {
	packageurl.PackageURL
}

// ID returns the package id. NuGet ids have no namespace.
func (p PURL) ID() string {
	if p.Namespace == "" {
		return p.Name
	}
	return p.Namespace + "/" + p.Name
}

// Source returns the feed named by the repository_url qualifier, if any.
func (p PURL) Source() (Source, bool) {
	repo := p.Qualifiers.Map()["repository_url"]
	if repo == "" {
		return Source{}, false
	}
	return NewSource(repo), true
}

// ParsePURL parses a nuget Package URL such as pkg:nuget/Newtonsoft.Json@13.0.3.
func ParsePURL(purl string) (*PURL, error) {
	p, err := packageurl.FromString(purl)
	if err != nil {
		return nil, err
	}
	if p.Type != purlType {
		return nil, fmt.Errorf("unsupported purl type %q: only %s is supported", p.Type, purlType)
	}
	return &PURL{p}, nil
}

// NewPURL builds the Package URL for a package, with an optional version.
func NewPURL(id, version string) *PURL {
	return &PURL{*packageurl.NewPackageURL(purlType, "", id, version, nil, "")}
}

// PURL returns the Package URL of the result.
func (r SearchResult) PURL() string {
	return NewPURL(r.ID, r.Version).ToString()
}
