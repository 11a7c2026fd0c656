package catalog

// DefaultPlatforms returns a small built-in platform table so the server is
// usable without a configured catalog. Usage shares are rough figures.
func DefaultPlatforms() []Platform {
	modern := []string{
		"es.array.flat", "es.array.flat-map", "es.array.includes", "es.object.entries",
		"es.object.from-entries", "es.object.values", "es.promise", "es.promise.finally",
		"es.string.pad-end", "es.string.pad-start", "es.symbol",
	}

	return []Platform{
		{
			Query:     "edge 90",
			Match:     []string{"edg/"},
			Usage:     4.1,
			Supported: modern,
		},
		{
			Query:     "chrome 90",
			Match:     []string{"chrome/"},
			Usage:     62.3,
			Supported: modern,
		},
		{
			Query:     "firefox 88",
			Match:     []string{"firefox/"},
			Usage:     3.2,
			Supported: modern,
		},
		{
			Query:     "safari 14",
			Match:     []string{"safari/"},
			Usage:     18.7,
			Supported: modern[:len(modern)-2],
		},
		{
			Query:   "ie 11",
			Match:   []string{"trident/", "msie "},
			Usage:   0.4,
			Modules: []string{"regenerator-runtime/runtime", "whatwg-fetch"},
		},
	}
}
