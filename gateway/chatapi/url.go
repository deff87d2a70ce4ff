package chatapi

import "strings"

// JoinURL joins a provider's base URL with an adapter's endpoint path,
// producing exactly one slash between them regardless of how either side
// is already slash-terminated. It never introduces a double slash outside
// the scheme separator.
func JoinURL(baseURL, endpointPath string) string {
	base := strings.TrimRight(baseURL, "/")
	path := strings.TrimLeft(endpointPath, "/")
	if path == "" {
		return base
	}
	return base + "/" + path
}
