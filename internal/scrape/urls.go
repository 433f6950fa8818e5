package scrape

import "regexp"

// resourceURLPattern matches http(s) tokens ending in .txt or .yaml.
var resourceURLPattern = regexp.MustCompile(`http\S*\.(txt|yaml)`)

// ParseResourceURLs returns every resource URL in text in order of
// appearance, duplicates included.
func ParseResourceURLs(text string) ([]string, error) {
	urls := resourceURLPattern.FindAllString(text, -1)
	if len(urls) == 0 {
		return nil, ErrNoURLsFound
	}
	return urls, nil
}
