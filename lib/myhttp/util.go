package myhttp

import (
	"fmt"
	"net/http"
	"os"
	"strings"
)

func HostnameWithScheme(r *http.Request) string {
	scheme := "https"
	if r.TLS == nil {
		scheme = "http"
	}

	return fmt.Sprintf("%s://%s", scheme, r.Host)
}

// GuessHostnameWithScheme derives the public base URL outside of a request
// context, such as when registering push subscriptions at startup.
func GuessHostnameWithScheme() string {
	if base := os.Getenv("PUBLIC_BASE_URL"); base != "" {
		return strings.TrimSuffix(base, "/")
	}

	project := os.Getenv("GOOGLE_CLOUD_PROJECT")
	if project != "" {
		return fmt.Sprintf("https://%s.appspot.com", project)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	return "http://localhost:" + port
}

// NormalizeHost strips scheme, www-prefix, port and path so that deployment
// domains can be compared against configuration tables.
func NormalizeHost(host string) string {
	host = strings.ToLower(host)
	host = strings.TrimPrefix(host, "https://")
	host = strings.TrimPrefix(host, "http://")
	host = strings.TrimPrefix(host, "www.")
	host = strings.SplitN(host, ":", 2)[0]
	host = strings.SplitN(host, "/", 2)[0]

	return host
}
