package registry

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/servicediscovery"
	"github.com/aws/aws-sdk-go-v2/service/servicediscovery/types"
)

// CloudMapAPI is the subset of the AWS Cloud Map client the reader uses.
// Satisfied by *servicediscovery.Client.
type CloudMapAPI interface {
	ListServices(ctx context.Context, params *servicediscovery.ListServicesInput, optFns ...func(*servicediscovery.Options)) (*servicediscovery.ListServicesOutput, error)
	ListInstances(ctx context.Context, params *servicediscovery.ListInstancesInput, optFns ...func(*servicediscovery.Options)) (*servicediscovery.ListInstancesOutput, error)
	ListTagsForResource(ctx context.Context, params *servicediscovery.ListTagsForResourceInput, optFns ...func(*servicediscovery.Options)) (*servicediscovery.ListTagsForResourceOutput, error)
}

// CloudMap reads services and instances from an AWS Cloud Map namespace.
type CloudMap struct {
	client      CloudMapAPI
	namespaceID string
}

// NewCloudMap creates a reader scoped to one namespace.
func NewCloudMap(client CloudMapAPI, namespaceID string) *CloudMap {
	return &CloudMap{client: client, namespaceID: namespaceID}
}

// ListServices pages through every service in the namespace and resolves
// the dependency tag for each.
func (c *CloudMap) ListServices(ctx context.Context) ([]Service, error) {
	input := &servicediscovery.ListServicesInput{
		Filters: []types.ServiceFilter{{
			Name:      types.ServiceFilterNameNamespaceId,
			Values:    []string{c.namespaceID},
			Condition: types.FilterConditionEq,
		}},
	}

	var services []Service
	paginator := servicediscovery.NewListServicesPaginator(c.client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list services in namespace %s: %w", c.namespaceID, err)
		}
		for _, summary := range page.Services {
			svc := Service{
				ID:   aws.ToString(summary.Id),
				Name: aws.ToString(summary.Name),
			}
			dependsOn, err := c.dependencyTag(ctx, aws.ToString(summary.Arn))
			if err != nil {
				return nil, err
			}
			svc.DependsOn = dependsOn
			services = append(services, svc)
		}
	}
	return services, nil
}

// ListInstances pages through every instance registered under the service.
func (c *CloudMap) ListInstances(ctx context.Context, svc Service) ([]Instance, error) {
	input := &servicediscovery.ListInstancesInput{
		ServiceId: aws.String(svc.ID),
	}

	var instances []Instance
	paginator := servicediscovery.NewListInstancesPaginator(c.client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list instances of %s: %w", svc.Name, err)
		}
		for _, summary := range page.Instances {
			instances = append(instances, Instance{
				ID:         aws.ToString(summary.Id),
				Attributes: summary.Attributes,
			})
		}
	}
	return instances, nil
}

func (c *CloudMap) dependencyTag(ctx context.Context, arn string) (string, error) {
	out, err := c.client.ListTagsForResource(ctx, &servicediscovery.ListTagsForResourceInput{
		ResourceARN: aws.String(arn),
	})
	if err != nil {
		return "", fmt.Errorf("list tags for %s: %w", arn, err)
	}
	for _, tag := range out.Tags {
		if aws.ToString(tag.Key) == DependsOnTagKey {
			return aws.ToString(tag.Value), nil
		}
	}
	return "", nil
}
