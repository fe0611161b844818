// Package awsutil holds the AWS plumbing shared by the pipeline and the
// sweeper: credential checks and region helpers.
package awsutil

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/iam"
)

// LoadConfig loads the default credential chain pinned to a region.
func LoadConfig(region string) (aws.Config, error) {
	cfg, err := config.LoadDefaultConfig(context.Background(), config.WithRegion(region))
	if err != nil {
		return aws.Config{}, fmt.Errorf("loading AWS config: %w", err)
	}
	return cfg, nil
}

// VerifyCredentials fails fast when the credential chain is empty or expired,
// before any Terraform work starts. GetUser needs no permissions of its own;
// role-based credentials that cannot call it fall back to DescribeRegions.
func VerifyCredentials(cfg aws.Config) error {
	user, err := iam.NewFromConfig(cfg).GetUser(context.Background(), &iam.GetUserInput{})
	if err == nil {
		if user.User != nil && user.User.Arn != nil {
			slog.Debug("verified AWS credentials", slog.String("arn", *user.User.Arn))
		}
		return nil
	}
	slog.Debug("iam:GetUser failed, falling back to ec2:DescribeRegions", slog.String("error", err.Error()))

	_, err = ec2.NewFromConfig(cfg).DescribeRegions(context.Background(), &ec2.DescribeRegionsInput{})
	if err != nil {
		return fmt.Errorf("AWS credentials are missing or invalid: %w", err)
	}
	return nil
}

// ValidRegions returns the regions enabled for the account.
func ValidRegions(cfg aws.Config) (map[string]bool, error) {
	out, err := ec2.NewFromConfig(cfg).DescribeRegions(context.Background(), &ec2.DescribeRegionsInput{
		AllRegions: aws.Bool(false),
	})
	if err != nil {
		return nil, fmt.Errorf("listing regions: %w", err)
	}
	regions := map[string]bool{}
	for _, r := range out.Regions {
		if r.RegionName != nil {
			regions[*r.RegionName] = true
		}
	}
	return regions, nil
}

var regionNames = map[string]string{
	"us-east-1":      "N. Virginia",
	"us-east-2":      "Ohio",
	"us-west-1":      "N. California",
	"us-west-2":      "Oregon",
	"ca-central-1":   "Canada Central",
	"eu-west-1":      "Ireland",
	"eu-west-2":      "London",
	"eu-west-3":      "Paris",
	"eu-central-1":   "Frankfurt",
	"eu-north-1":     "Stockholm",
	"ap-northeast-1": "Tokyo",
	"ap-northeast-2": "Seoul",
	"ap-southeast-1": "Singapore",
	"ap-southeast-2": "Sydney",
	"ap-south-1":     "Mumbai",
	"sa-east-1":      "São Paulo",
}

// RegionName returns the human name of a region code, or the code itself for
// regions not in the table.
func RegionName(code string) string {
	if name, ok := regionNames[code]; ok {
		return name
	}
	return code
}
