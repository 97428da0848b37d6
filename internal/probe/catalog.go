package probe

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
)

// Error detection modes for catalog sites, following the Sherlock data
// format.
const (
	errorTypeStatusCode = "status_code"
	errorTypeMessage    = "message"
)

// Site describes one catalog entry. URLUser contains a "{}" placeholder
// that is replaced with the username being probed.
type Site struct {
	Name      string `json:"-"`
	URLMain   string `json:"urlMain"`
	URLUser   string `json:"url"`
	ErrorType string `json:"errorType"`
	ErrorMsg  string `json:"errorMsg,omitempty"`
}

// ProfileURL returns the site's profile URL for the given username.
func (s Site) ProfileURL(username string) string {
	return strings.ReplaceAll(s.URLUser, "{}", username)
}

// LoadCatalog reads a site catalog from a JSON file keyed by site name.
// Sites are returned sorted by name so probe order is stable.
func LoadCatalog(path string) ([]Site, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read site catalog: %w", err)
	}

	var entries map[string]Site
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parse site catalog: %w", err)
	}

	sites := make([]Site, 0, len(entries))
	for name, site := range entries {
		site.Name = name
		sites = append(sites, site)
	}
	sort.Slice(sites, func(i, j int) bool {
		return sites[i].Name < sites[j].Name
	})

	return sites, nil
}
