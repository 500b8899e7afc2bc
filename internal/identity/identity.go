// Package identity gathers WHOIS registration data for the target: domain
// registrations parsed into a structured summary, IP allocations reduced to
// the organization and network fields the registries expose in raw text.
package identity

import (
	"fmt"
	"regexp"
	"strings"

	whois "github.com/likexian/whois"
	whoisparser "github.com/likexian/whois-parser"
)

// Registration summarizes a domain's WHOIS record.
type Registration struct {
	Domain      string   `json:"domain"`
	Registrar   string   `json:"registrar,omitempty"`
	Created     string   `json:"created,omitempty"`
	Updated     string   `json:"updated,omitempty"`
	Expires     string   `json:"expires,omitempty"`
	NameServers []string `json:"name_servers,omitempty"`
	Statuses    []string `json:"statuses,omitempty"`
	Org         string   `json:"org,omitempty"`
	Country     string   `json:"country,omitempty"`
}

// Allocation summarizes an IP's WHOIS record. Registries answer these in
// free text, so the fields are best-effort regex extracts.
type Allocation struct {
	IP      string `json:"ip"`
	Range   string `json:"range,omitempty"`
	CIDR    string `json:"cidr,omitempty"`
	NetName string `json:"net_name,omitempty"`
	Org     string `json:"org,omitempty"`
	Country string `json:"country,omitempty"`
	ASN     string `json:"asn,omitempty"`
	RIR     string `json:"rir,omitempty"`
}

// Client performs WHOIS lookups. The raw fetch is injectable for tests.
type Client struct {
	Lookup func(target string) (string, error)
}

func NewClient() *Client {
	return &Client{Lookup: func(target string) (string, error) {
		return whois.Whois(target)
	}}
}

// Domain fetches and parses the domain's registration record.
func (c *Client) Domain(domain string) (*Registration, error) {
	domain = strings.TrimSpace(domain)
	if domain == "" {
		return nil, fmt.Errorf("empty domain for WHOIS")
	}
	raw, err := c.Lookup(domain)
	if err != nil {
		return nil, fmt.Errorf("whois %s: %w", domain, err)
	}
	parsed, err := whoisparser.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parse whois of %s: %w", domain, err)
	}

	reg := &Registration{Domain: domain}
	if d := parsed.Domain; d != nil {
		reg.Created = d.CreatedDate
		reg.Updated = d.UpdatedDate
		reg.Expires = d.ExpirationDate
		reg.Statuses = d.Status
		for _, ns := range d.NameServers {
			reg.NameServers = append(reg.NameServers, strings.ToLower(ns))
		}
	}
	if r := parsed.Registrar; r != nil {
		reg.Registrar = r.Name
	}
	if r := parsed.Registrant; r != nil {
		reg.Org = r.Organization
		reg.Country = r.Country
	}
	return reg, nil
}

// IP fetches the IP's allocation record and extracts the usual registry
// fields from the raw text.
func (c *Client) IP(ip string) (*Allocation, error) {
	ip = strings.TrimSpace(ip)
	if ip == "" {
		return nil, fmt.Errorf("empty IP for WHOIS")
	}
	raw, err := c.Lookup(ip)
	if err != nil {
		return nil, fmt.Errorf("whois %s: %w", ip, err)
	}
	text := strings.ReplaceAll(raw, "\r\n", "\n")

	return &Allocation{
		IP:      ip,
		Range:   firstAny(text, `NetRange:\s*(.+)`, `inetnum:\s*(.+)`, `inet6num:\s*(.+)`),
		CIDR:    firstAny(text, `CIDR:\s*(.+)`, `route:\s*(.+)`, `route6:\s*(.+)`),
		NetName: firstAny(text, `NetName:\s*(.+)`, `netname:\s*(.+)`),
		Org:     firstAny(text, `OrgName:\s*(.+)`, `org-name:\s*(.+)`, `organization:\s*(.+)`, `descr:\s*(.+)`),
		Country: firstAny(text, `Country:\s*(.+)`),
		ASN:     firstAny(text, `OriginAS:\s*(.+)`, `origin:\s*(.+)`, `aut-num:\s*(.+)`),
		RIR:     detectRIR(text),
	}, nil
}

func firstAny(text string, patterns ...string) string {
	for _, p := range patterns {
		re := regexp.MustCompile("(?im)" + p)
		if m := re.FindStringSubmatch(text); len(m) >= 2 {
			return strings.TrimSpace(m[1])
		}
	}
	return ""
}

func detectRIR(text string) string {
	l := strings.ToLower(text)
	switch {
	case strings.Contains(l, "arin"):
		return "ARIN"
	case strings.Contains(l, "ripe"):
		return "RIPE"
	case strings.Contains(l, "apnic"):
		return "APNIC"
	case strings.Contains(l, "lacnic"):
		return "LACNIC"
	case strings.Contains(l, "afrinic"):
		return "AFRINIC"
	default:
		return ""
	}
}
