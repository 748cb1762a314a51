package register

import (
	"context"
	"fmt"

	"ConvergeCast/internal/config"
)

// NewRegistrar builds the Registrar named by cfg.Type.
func NewRegistrar(ctx context.Context, cfg config.RegisterConfig) (Registrar, error) {
	switch cfg.Type {
	case "route53":
		return NewRoute53Registrar(ctx, cfg.Route53.HostedZoneID, cfg.Route53.DomainSuffix, cfg.TTL)

	case "coredns":
		return NewCoreDNSRegistrar(cfg.CoreDNS.EtcdEndpoints, cfg.CoreDNS.BasePath, cfg.CoreDNS.Domain, cfg.TTL)

	default:
		return nil, fmt.Errorf("register: unsupported registrar type %q", cfg.Type)
	}
}
