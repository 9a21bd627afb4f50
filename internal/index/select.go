package index

import (
	"fmt"

	"github.com/tsukumogami/crateferry/internal/config"
	"github.com/tsukumogami/crateferry/internal/ferr"
)

// Source is the resolved index/registry selection: a URL plus the
// backend kind it should be opened as.
type Source struct {
	URL  string
	Kind Kind
}

// Kind distinguishes the index backends spec.md §4.C names.
type Kind int

const (
	KindHTTP Kind = iota
	KindGit
	KindAlternative
)

// SelectSource resolves the effective index source per spec.md §4.C's
// precedence (--index flag > CRATEFERRY_INDEX env var > config file >
// built-in default), and rejects a simultaneous --index/--registry flag
// conflict as ferr.Configuration. registryFlag is spec.md's named
// "alternative registry" indirection; when both indexFlag and
// registryFlag are set they must name the same source, otherwise which
// one wins is ambiguous and the CLI should refuse to guess.
func SelectSource(indexFlag, registryFlag, configFile, def string) (Source, error) {
	if indexFlag != "" && registryFlag != "" && indexFlag != registryFlag {
		return Source{}, ferr.New(ferr.Configuration, "index.select", "", fmt.Errorf("--index and --registry both set to different values (%q vs %q)", indexFlag, registryFlag))
	}

	if registryFlag != "" {
		return Source{URL: registryFlag, Kind: KindAlternative}, nil
	}

	url := config.IndexURL(indexFlag, configFile, def)
	return Source{URL: url, Kind: kindOf(url)}, nil
}

// kindOf guesses the backend kind from the URL shape: a "git+" scheme
// prefix selects the git-based index, everything else is treated as a
// sparse HTTP index (including an alternative-registry base URL, which
// SelectSource tags explicitly via KindAlternative instead).
func kindOf(url string) Kind {
	if len(url) >= 4 && url[:4] == "git+" {
		return KindGit
	}
	return KindHTTP
}

// Open constructs the Index implementation for src.
func Open(src Source, cache *Cache) (Index, error) {
	switch src.Kind {
	case KindGit:
		return NewGitIndex(src.URL[len("git+"):]), nil
	case KindHTTP, KindAlternative:
		return NewHTTPIndex(src.URL, cache), nil
	default:
		return nil, ferr.New(ferr.Configuration, "index.open", "", fmt.Errorf("unknown index kind %v", src.Kind))
	}
}
