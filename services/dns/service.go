package dns

import (
	"context"
	"net"
	"sort"
	"strings"
	"time"

	"github.com/miekg/dns"
	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"
	"golang.org/x/net/idna"

	"github.com/customeros/mailsetup/config"
	"github.com/customeros/mailsetup/interfaces"
	"github.com/customeros/mailsetup/internal/logger"
	"github.com/customeros/mailsetup/internal/models"
	"github.com/customeros/mailsetup/internal/tracing"
)

const (
	resolvConfPath = "/etc/resolv.conf"
	fallbackServer = "8.8.8.8:53"
	defaultTimeout = 5 * time.Second
)

var (
	ErrDomainNotFound = errors.New("domain does not exist")
	ErrNoMxRecords    = errors.New("domain has no MX records")
	ErrServerFailure  = errors.New("dns server failure")
	ErrInvalidDomain  = errors.New("invalid domain")
)

type mxResolver struct {
	log     logger.Logger
	servers []string
	timeout time.Duration
}

func NewMxResolver(log logger.Logger, cfg *config.DNSConfig) interfaces.MxResolver {
	servers := []string{}
	timeout := defaultTimeout
	if cfg != nil {
		servers = append(servers, cfg.Servers...)
		if cfg.Timeout > 0 {
			timeout = cfg.Timeout
		}
	}
	if len(servers) == 0 {
		servers = systemServers()
	}

	return &mxResolver{
		log:     log,
		servers: servers,
		timeout: timeout,
	}
}

func systemServers() []string {
	conf, err := dns.ClientConfigFromFile(resolvConfPath)
	if err != nil || len(conf.Servers) == 0 {
		return []string{fallbackServer}
	}
	servers := make([]string, 0, len(conf.Servers))
	for _, server := range conf.Servers {
		servers = append(servers, net.JoinHostPort(server, conf.Port))
	}
	return servers
}

func (s *mxResolver) ResolveMX(ctx context.Context, domain string) []string {
	result := s.LookupMX(ctx, domain)
	if result.Err != nil {
		if result.Transient {
			s.log.Warnf("MX lookup for %s failed, will continue without MX hints: %v", domain, result.Err)
		} else {
			s.log.Debugf("MX lookup for %s returned no exchangers: %v", domain, result.Err)
		}
		return []string{}
	}
	return result.Hosts
}

func (s *mxResolver) LookupMX(ctx context.Context, domain string) models.MxResult {
	span, ctx := opentracing.StartSpanFromContext(ctx, "MxResolver.LookupMX")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	span.LogKV("domain", domain)

	asciiDomain, err := idna.Lookup.ToASCII(strings.TrimSuffix(strings.TrimSpace(domain), "."))
	if err != nil || asciiDomain == "" {
		if err == nil {
			err = ErrInvalidDomain
		}
		err = errors.Wrapf(err, "domain %q", domain)
		tracing.TraceErr(span, err)
		return models.MxResult{Err: err}
	}

	msg := new(dns.Msg)
	msg.SetQuestion(dns.Fqdn(asciiDomain), dns.TypeMX)
	msg.RecursionDesired = true

	var lastErr error
	for _, server := range s.servers {
		if ctx.Err() != nil {
			lastErr = ctx.Err()
			break
		}

		resp, err := s.exchange(ctx, msg, server)
		if err != nil {
			lastErr = errors.Wrapf(err, "query %s", server)
			continue
		}

		switch resp.Rcode {
		case dns.RcodeSuccess:
			hosts := exchangers(resp)
			if len(hosts) == 0 {
				tracing.TraceErr(span, ErrNoMxRecords)
				return models.MxResult{Err: ErrNoMxRecords}
			}
			span.LogKV("mx.hosts", hosts)
			return models.MxResult{Hosts: hosts}
		case dns.RcodeNameError:
			tracing.TraceErr(span, ErrDomainNotFound)
			return models.MxResult{Err: ErrDomainNotFound}
		default:
			lastErr = errors.Wrapf(ErrServerFailure, "%s answered %s", server, dns.RcodeToString[resp.Rcode])
		}
	}

	if lastErr == nil {
		lastErr = errors.New("no dns servers configured")
	}
	tracing.TraceErr(span, lastErr)
	return models.MxResult{Err: lastErr, Transient: true}
}

func (s *mxResolver) exchange(ctx context.Context, msg *dns.Msg, server string) (*dns.Msg, error) {
	client := &dns.Client{Net: "udp", Timeout: s.timeout}
	resp, _, err := client.ExchangeContext(ctx, msg, server)
	if err != nil {
		return nil, err
	}
	if resp.Truncated {
		client.Net = "tcp"
		resp, _, err = client.ExchangeContext(ctx, msg, server)
		if err != nil {
			return nil, err
		}
	}
	return resp, nil
}

// exchangers returns MX targets by ascending preference, lowercased and without the root dot.
func exchangers(resp *dns.Msg) []string {
	records := make([]*dns.MX, 0, len(resp.Answer))
	for _, rr := range resp.Answer {
		if mx, ok := rr.(*dns.MX); ok {
			records = append(records, mx)
		}
	}
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Preference < records[j].Preference
	})

	hosts := make([]string, 0, len(records))
	for _, mx := range records {
		host := strings.ToLower(strings.TrimSuffix(mx.Mx, "."))
		if host == "" {
			continue
		}
		hosts = append(hosts, host)
	}
	return hosts
}

// RegistrableDomain returns the last two labels of a host name.
func RegistrableDomain(host string) string {
	host = strings.TrimSuffix(strings.TrimSpace(host), ".")
	labels := strings.Split(host, ".")
	if len(labels) <= 2 {
		return host
	}
	return strings.Join(labels[len(labels)-2:], ".")
}
