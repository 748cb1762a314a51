package bootstrap

import "context"

// StaticBootstrap returns a fixed, config-supplied peer list and never
// registers anything — the simplest Bootstrap, used by simulation rosters
// and deployments with a hand-maintained peer file.
type StaticBootstrap struct {
	peers []string
}

func NewStaticBootstrap(peers []string) *StaticBootstrap {
	return &StaticBootstrap{peers: peers}
}

func (s *StaticBootstrap) Discover(ctx context.Context) ([]string, error) {
	return s.peers, nil
}

func (s *StaticBootstrap) Register(ctx context.Context, nodeID, selfEndpoint string) error {
	return nil
}

func (s *StaticBootstrap) Deregister(ctx context.Context, nodeID, selfEndpoint string) error {
	return nil
}
