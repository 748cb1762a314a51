package register

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/route53"
	"github.com/aws/aws-sdk-go-v2/service/route53/types"
)

// Route53Registrar publishes node endpoints as SRV records in a Route53
// hosted zone.
type Route53Registrar struct {
	Client       *route53.Client
	HostedZoneID string
	DomainSuffix string
	TTL          int64
}

// NewRoute53Registrar loads the default AWS config and returns a registrar.
func NewRoute53Registrar(ctx context.Context, hostedZoneID, domainSuffix string, ttl int64) (*Route53Registrar, error) {
	awsCfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, err
	}
	return &Route53Registrar{
		Client:       route53.NewFromConfig(awsCfg),
		HostedZoneID: hostedZoneID,
		DomainSuffix: strings.TrimSuffix(domainSuffix, "."),
		TTL:          ttl,
	}, nil
}

func (r *Route53Registrar) RegisterNode(ctx context.Context, nodeID, targetHost string, port int) error {
	return r.change(ctx, nodeID, targetHost, port, types.ChangeActionUpsert)
}

func (r *Route53Registrar) DeregisterNode(ctx context.Context, nodeID, targetHost string, port int) error {
	return r.change(ctx, nodeID, targetHost, port, types.ChangeActionDelete)
}

func (r *Route53Registrar) change(ctx context.Context, nodeID, targetHost string, port int, action types.ChangeAction) error {
	recordName := fmt.Sprintf("%s.%s.", nodeID, r.DomainSuffix)
	targetHost = strings.TrimSuffix(targetHost, ".")

	input := &route53.ChangeResourceRecordSetsInput{
		HostedZoneId: aws.String(r.HostedZoneID),
		ChangeBatch: &types.ChangeBatch{
			Changes: []types.Change{
				{
					Action: action,
					ResourceRecordSet: &types.ResourceRecordSet{
						Name: aws.String(recordName),
						Type: types.RRTypeSrv,
						TTL:  aws.Int64(r.TTL),
						ResourceRecords: []types.ResourceRecord{
							{Value: aws.String(fmt.Sprintf("0 0 %d %s.", port, targetHost))},
						},
					},
				},
			},
		},
	}
	_, err := r.Client.ChangeResourceRecordSets(ctx, input)
	return err
}

// RenewNode is a no-op: Route53 SRV records have no lease to renew, a
// repeated RegisterNode upsert is sufficient to keep the record current.
func (r *Route53Registrar) RenewNode(ctx context.Context, nodeID, targetHost string, port int) error {
	return nil
}

func (r *Route53Registrar) Close() error {
	return nil
}
