package terraform

import (
	"context"
	"fmt"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2Types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeImagesClient struct {
	images []ec2Types.Image
	err    error
}

func (c *fakeImagesClient) DescribeImages(ctx context.Context, in *ec2.DescribeImagesInput, opts ...func(*ec2.Options)) (*ec2.DescribeImagesOutput, error) {
	if c.err != nil {
		return nil, c.err
	}
	return &ec2.DescribeImagesOutput{Images: c.images}, nil
}

func image(id, created string) ec2Types.Image {
	return ec2Types.Image{ImageId: aws.String(id), CreationDate: aws.String(created)}
}

func TestResolvePicksNewestImage(t *testing.T) {
	r := &AMIResolver{}
	r.clientFor = func(region string) describeImagesAPI {
		return &fakeImagesClient{images: []ec2Types.Image{
			image("ami-old", "2022-01-15T00:00:00.000Z"),
			image("ami-new", "2023-06-01T00:00:00.000Z"),
			image("ami-mid", "2022-11-20T00:00:00.000Z"),
		}}
	}

	amis, err := r.Resolve(context.Background(), []string{"us-east-1"})
	require.NoError(t, err)
	assert.Equal(t, "ami-new", amis["us-east-1"])
}

func TestResolveFallsBackWhenLookupFails(t *testing.T) {
	r := &AMIResolver{}
	r.clientFor = func(region string) describeImagesAPI {
		return &fakeImagesClient{err: fmt.Errorf("UnauthorizedOperation")}
	}

	amis, err := r.Resolve(context.Background(), []string{"us-east-1", "eu-west-1"})
	require.NoError(t, err)
	assert.Equal(t, fallbackAMIs["us-east-1"], amis["us-east-1"])
	assert.Equal(t, fallbackAMIs["eu-west-1"], amis["eu-west-1"])
}

func TestResolveFallsBackWhenNoImagesMatch(t *testing.T) {
	r := &AMIResolver{}
	r.clientFor = func(region string) describeImagesAPI {
		return &fakeImagesClient{}
	}

	amis, err := r.Resolve(context.Background(), []string{"sa-east-1"})
	require.NoError(t, err)
	assert.Equal(t, fallbackAMIs["sa-east-1"], amis["sa-east-1"])
}

func TestResolveErrorsWithoutFallback(t *testing.T) {
	r := &AMIResolver{}
	r.clientFor = func(region string) describeImagesAPI {
		return &fakeImagesClient{err: fmt.Errorf("UnauthorizedOperation")}
	}

	_, err := r.Resolve(context.Background(), []string{"mars-north-1"})
	assert.Error(t, err)
}

func TestResolvePerRegionClients(t *testing.T) {
	seen := []string{}
	r := &AMIResolver{}
	r.clientFor = func(region string) describeImagesAPI {
		seen = append(seen, region)
		return &fakeImagesClient{images: []ec2Types.Image{image("ami-x", "2023-01-01T00:00:00.000Z")}}
	}

	_, err := r.Resolve(context.Background(), []string{"us-east-1", "eu-west-1"})
	require.NoError(t, err)
	assert.Equal(t, []string{"us-east-1", "eu-west-1"}, seen)
}
