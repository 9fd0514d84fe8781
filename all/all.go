// Package all imports every feed implementation.
//
// Import this package for its side effects to register all feed kinds:
//
//	import (
//		"github.com/git-pkgs/feedchooser"
//		_ "github.com/git-pkgs/feedchooser/all"
//	)
//
//	// Now all kinds are available
//	kinds := feedchooser.SupportedKinds()
//	// ["local", "v2", "v3"]
package all

import (
	_ "github.com/git-pkgs/feedchooser/internal/local"
	_ "github.com/git-pkgs/feedchooser/internal/nuget"
)
