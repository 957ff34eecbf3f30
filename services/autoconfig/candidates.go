package autoconfig

import (
	"fmt"
	"net/url"
	"strings"

	"golang.org/x/net/idna"

	"github.com/customeros/mailsetup/internal/utils"
	"github.com/customeros/mailsetup/services/dns"
)

const DefaultISPDBURL = "https://autoconfig.thunderbird.net/v1.1"

// CandidateURLs lists the discovery endpoints in the order they are tried:
// the domain's own autoconfig host, the autoconfig hosts of the MX domains,
// then the ISPDB entries for the domain and each MX domain.
// A URL that appears twice is only kept at its first position.
func CandidateURLs(emailAddress string, mxHosts []string, ispdbURL string) []string {
	domain := asciiDomain(utils.ExtractDomainFromEmail(emailAddress))
	if domain == "" {
		return []string{}
	}
	if ispdbURL == "" {
		ispdbURL = DefaultISPDBURL
	}
	ispdbURL = strings.TrimSuffix(ispdbURL, "/")

	mxDomains := make([]string, 0, len(mxHosts))
	for _, host := range mxHosts {
		if mxDomain := asciiDomain(dns.RegistrableDomain(host)); mxDomain != "" {
			mxDomains = append(mxDomains, mxDomain)
		}
	}

	query := url.QueryEscape(emailAddress)
	autoconfigURL := func(d string) string {
		return fmt.Sprintf("https://autoconfig.%s/mail/config-v1.1.xml?emailaddress=%s", d, query)
	}
	ispdbEntry := func(d string) string {
		return fmt.Sprintf("%s/%s", ispdbURL, d)
	}

	urls := make([]string, 0, 2*(len(mxDomains)+1))
	urls = append(urls, autoconfigURL(domain))
	for _, d := range mxDomains {
		urls = append(urls, autoconfigURL(d))
	}
	urls = append(urls, ispdbEntry(domain))
	for _, d := range mxDomains {
		urls = append(urls, ispdbEntry(d))
	}

	return dedupe(urls)
}

func dedupe(urls []string) []string {
	seen := make(map[string]struct{}, len(urls))
	unique := make([]string, 0, len(urls))
	for _, u := range urls {
		if _, ok := seen[u]; ok {
			continue
		}
		seen[u] = struct{}{}
		unique = append(unique, u)
	}
	return unique
}

func asciiDomain(domain string) string {
	domain = strings.ToLower(strings.TrimSuffix(strings.TrimSpace(domain), "."))
	if domain == "" {
		return ""
	}
	ascii, err := idna.Lookup.ToASCII(domain)
	if err != nil {
		return domain
	}
	return ascii
}
