package terraform

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2Types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
)

const amiNamePattern = "amzn2-ami-hvm-2.*-x86_64-gp2"

// Pinned Amazon Linux 2 images used when the DescribeImages lookup fails,
// e.g. when credentials lack ec2:DescribeImages in a region.
var fallbackAMIs = map[string]string{
	"us-east-1":      "ami-0dfcb1ef8550277af",
	"us-east-2":      "ami-0cc87e5027adcdca8",
	"us-west-1":      "ami-0ce2cb35386fc22e9",
	"us-west-2":      "ami-0f1a5f5ada0e7da53",
	"eu-west-1":      "ami-0fe0b2cf0e1f25c8a",
	"eu-west-2":      "ami-078a289ddf4b09ae0",
	"eu-central-1":   "ami-06dc1a22a5e0aef78",
	"ap-northeast-1": "ami-0bba69335379e17f8",
	"ap-southeast-1": "ami-0b89f7b3f054b957e",
	"ap-southeast-2": "ami-075a72b1992cb0687",
	"sa-east-1":      "ami-07983613af1a3ef33",
}

// AMIResolver finds the newest Amazon Linux 2 image per region.
type AMIResolver struct {
	cfg aws.Config

	// clientFor is swapped in tests.
	clientFor func(region string) describeImagesAPI
}

type describeImagesAPI interface {
	DescribeImages(ctx context.Context, in *ec2.DescribeImagesInput, opts ...func(*ec2.Options)) (*ec2.DescribeImagesOutput, error)
}

func NewAMIResolver(cfg aws.Config) *AMIResolver {
	r := &AMIResolver{cfg: cfg}
	r.clientFor = func(region string) describeImagesAPI {
		regional := r.cfg.Copy()
		regional.Region = region
		return ec2.NewFromConfig(regional)
	}
	return r
}

// Resolve returns an AMI ID for every requested region. Lookup failures fall
// back to the pinned table; a region absent from both is an error.
func (r *AMIResolver) Resolve(ctx context.Context, regions []string) (map[string]string, error) {
	out := map[string]string{}
	for _, region := range regions {
		id, err := r.latest(ctx, region)
		if err != nil {
			fallback, ok := fallbackAMIs[region]
			if !ok {
				return nil, fmt.Errorf("resolving AMI for %s: %w (no fallback pinned)", region, err)
			}
			slog.Warn("AMI lookup failed, using pinned fallback", slog.String("region", region), slog.String("ami", fallback), slog.String("error", err.Error()))
			out[region] = fallback
			continue
		}
		slog.Debug("resolved latest AMI", slog.String("region", region), slog.String("ami", id))
		out[region] = id
	}
	return out, nil
}

func (r *AMIResolver) latest(ctx context.Context, region string) (string, error) {
	client := r.clientFor(region)
	resp, err := client.DescribeImages(ctx, &ec2.DescribeImagesInput{
		Owners: []string{"amazon"},
		Filters: []ec2Types.Filter{
			{Name: aws.String("name"), Values: []string{amiNamePattern}},
			{Name: aws.String("state"), Values: []string{"available"}},
		},
	})
	if err != nil {
		return "", err
	}
	if len(resp.Images) == 0 {
		return "", fmt.Errorf("no images matched %s", amiNamePattern)
	}

	images := resp.Images
	sort.Slice(images, func(i, j int) bool {
		return aws.ToString(images[i].CreationDate) > aws.ToString(images[j].CreationDate)
	})
	return aws.ToString(images[0].ImageId), nil
}
