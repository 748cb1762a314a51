package bootstrap

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/miekg/dns"

	"ConvergeCast/internal/config"
	"ConvergeCast/internal/logger"
)

// ResolveBootstrap resolves bootstrap peers into a list of "host:port"
// endpoints.
//
//   - mode=static returns the configured peers verbatim.
//   - mode=dns resolves peers via SRV (cfg.SRV) or plain A/AAAA lookup.
//
// If DNS resolution fails or returns no records, it returns an empty list
// rather than an error — an empty bootstrap set just means this node
// relies entirely on beacons heard directly once the link opens.
func ResolveBootstrap(cfg config.BootstrapConfig, lgr logger.Logger) ([]string, error) {
	switch cfg.Mode {
	case "static":
		return cfg.Peers, nil

	case "dns":
		client := &dns.Client{Timeout: 2 * time.Second}

		server := cfg.Resolver
		if server == "" {
			server = "8.8.8.8:53"
		} else if !strings.Contains(server, ":") {
			server += ":53"
		}

		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()

		if cfg.SRV {
			return resolveSRV(ctx, client, server, cfg, lgr)
		}
		return resolveHost(ctx, client, server, cfg, lgr)

	default:
		return nil, fmt.Errorf("bootstrap: unsupported mode %q", cfg.Mode)
	}
}

func resolveSRV(ctx context.Context, client *dns.Client, server string, cfg config.BootstrapConfig, lgr logger.Logger) ([]string, error) {
	name := fmt.Sprintf("_%s._%s.%s", cfg.Service, cfg.Proto, cfg.DNSName)
	msg := new(dns.Msg)
	msg.SetQuestion(dns.Fqdn(name), dns.TypeSRV)
	lgr.Info("sending SRV query", logger.F("qname", msg.Question[0].Name))

	in, _, err := client.ExchangeContext(ctx, msg, server)
	if err != nil {
		lgr.Warn("SRV lookup failed", logger.F("err", err.Error()), logger.F("qname", name))
		return []string{}, nil
	}
	if len(in.Answer) == 0 {
		lgr.Warn("SRV lookup returned no answers", logger.F("qname", name))
		return []string{}, nil
	}

	srvTargets := map[string][]string{}
	for _, extra := range in.Extra {
		switch rr := extra.(type) {
		case *dns.A:
			srvTargets[strings.TrimSuffix(rr.Hdr.Name, ".")] = append(srvTargets[strings.TrimSuffix(rr.Hdr.Name, ".")], rr.A.String())
		case *dns.AAAA:
			srvTargets[strings.TrimSuffix(rr.Hdr.Name, ".")] = append(srvTargets[strings.TrimSuffix(rr.Hdr.Name, ".")], rr.AAAA.String())
		}
	}

	var out []string
	for _, ans := range in.Answer {
		srv, ok := ans.(*dns.SRV)
		if !ok {
			continue
		}
		target := strings.TrimSuffix(srv.Target, ".")
		ips, found := srvTargets[target]
		if !found {
			ips = resolveAdditional(ctx, client, server, target)
		}
		for _, ip := range ips {
			out = append(out, formatEndpoint(ip, int(srv.Port)))
		}
	}
	return out, nil
}

// resolveAdditional falls back to an explicit A/AAAA query when the SRV
// response's Additional section didn't glue in the target's address.
func resolveAdditional(ctx context.Context, client *dns.Client, server, target string) []string {
	var ips []string
	msgA := new(dns.Msg)
	msgA.SetQuestion(dns.Fqdn(target), dns.TypeA)
	if inA, _, errA := client.ExchangeContext(ctx, msgA, server); errA == nil {
		for _, a := range inA.Answer {
			if arec, ok := a.(*dns.A); ok {
				ips = append(ips, arec.A.String())
			}
		}
	}
	msgAAAA := new(dns.Msg)
	msgAAAA.SetQuestion(dns.Fqdn(target), dns.TypeAAAA)
	if inAAAA, _, errAAAA := client.ExchangeContext(ctx, msgAAAA, server); errAAAA == nil {
		for _, a := range inAAAA.Answer {
			if aaaa, ok := a.(*dns.AAAA); ok {
				ips = append(ips, aaaa.AAAA.String())
			}
		}
	}
	return ips
}

func resolveHost(ctx context.Context, client *dns.Client, server string, cfg config.BootstrapConfig, lgr logger.Logger) ([]string, error) {
	name := dns.Fqdn(cfg.DNSName)
	msg := new(dns.Msg)
	msg.SetQuestion(name, dns.TypeA)

	in, _, err := client.ExchangeContext(ctx, msg, server)
	if err != nil {
		lgr.Warn("A lookup failed", logger.F("err", err.Error()), logger.F("qname", name))
		return []string{}, nil
	}

	var out []string
	for _, ans := range in.Answer {
		if a, ok := ans.(*dns.A); ok {
			out = append(out, formatEndpoint(a.A.String(), cfg.Port))
		}
	}
	if len(out) == 0 {
		msg6 := new(dns.Msg)
		msg6.SetQuestion(name, dns.TypeAAAA)
		if in6, _, err6 := client.ExchangeContext(ctx, msg6, server); err6 == nil {
			for _, ans := range in6.Answer {
				if aaaa, ok := ans.(*dns.AAAA); ok {
					out = append(out, formatEndpoint(aaaa.AAAA.String(), cfg.Port))
				}
			}
		}
	}
	if len(out) == 0 {
		lgr.Warn("host lookup returned no addresses", logger.F("qname", name))
	}
	return out, nil
}

func formatEndpoint(ip string, port int) string {
	if strings.Contains(ip, ":") {
		return fmt.Sprintf("[%s]:%d", ip, port)
	}
	return fmt.Sprintf("%s:%d", ip, port)
}
