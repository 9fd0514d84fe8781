package core

import (
	"github.com/git-pkgs/feedchooser/client"
)

// Aliases so feed implementations only need to import core.
type (
	Client     = client.Client
	Option     = client.Option
	URLBuilder = client.URLBuilder
	BaseURLs   = client.BaseURLs
)

var (
	DefaultClient = client.DefaultClient
	NewClient     = client.NewClient
	BuildURLs     = client.BuildURLs
)
