package bootstrap

import (
	"context"
	"fmt"
	"net"

	"ConvergeCast/internal/bootstrap/register"
	"ConvergeCast/internal/config"
	"ConvergeCast/internal/logger"
)

// dnsBootstrap adapts ResolveBootstrap's mode=dns path to the Bootstrap
// interface; DNS has no registration step of its own, so Register and
// Deregister delegate to an optional register.Registrar.
type dnsBootstrap struct {
	cfg config.BootstrapConfig
	lgr logger.Logger
	reg register.Registrar
}

func (d *dnsBootstrap) Discover(ctx context.Context) ([]string, error) {
	return ResolveBootstrap(d.cfg, d.lgr)
}

func (d *dnsBootstrap) Register(ctx context.Context, nodeID, selfEndpoint string) error {
	if d.reg == nil {
		return nil
	}
	host, port, err := splitEndpoint(selfEndpoint)
	if err != nil {
		return err
	}
	return d.reg.RegisterNode(ctx, nodeID, host, port)
}

func (d *dnsBootstrap) Deregister(ctx context.Context, nodeID, selfEndpoint string) error {
	if d.reg == nil {
		return nil
	}
	host, port, err := splitEndpoint(selfEndpoint)
	if err != nil {
		return err
	}
	return d.reg.DeregisterNode(ctx, nodeID, host, port)
}

// New builds the Bootstrap named by cfg.Mode, wiring an optional
// register.Registrar for nodes configured to announce their own endpoint.
func New(ctx context.Context, cfg config.BootstrapConfig, lgr logger.Logger) (Bootstrap, error) {
	switch cfg.Mode {
	case "static":
		return NewStaticBootstrap(cfg.Peers), nil

	case "dns":
		d := &dnsBootstrap{cfg: cfg, lgr: lgr}
		if cfg.Register.Enabled {
			reg, err := register.NewRegistrar(ctx, config.RegisterConfig{
				Enabled: cfg.Register.Enabled,
				Type:    cfg.Register.Type,
				TTL:     cfg.Register.TTL,
				Route53: cfg.Register.Route53,
				CoreDNS: cfg.Register.CoreDNS,
			})
			if err != nil {
				return nil, fmt.Errorf("bootstrap: building registrar: %w", err)
			}
			d.reg = reg
		}
		return d, nil

	case "route53":
		return NewRoute53Bootstrap(cfg.Route53)

	default:
		return nil, fmt.Errorf("bootstrap: unsupported mode %q", cfg.Mode)
	}
}

func splitEndpoint(endpoint string) (host string, port int, err error) {
	var p string
	host, p, err = net.SplitHostPort(endpoint)
	if err != nil {
		return "", 0, fmt.Errorf("bootstrap: invalid endpoint %q: %w", endpoint, err)
	}
	if _, err = fmt.Sscanf(p, "%d", &port); err != nil {
		return "", 0, fmt.Errorf("bootstrap: invalid port in endpoint %q: %w", endpoint, err)
	}
	return host, port, nil
}
