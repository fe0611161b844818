// Package sweep finds and terminates benchmark instances across regions,
// catching anything a failed Terraform destroy left behind.
package sweep

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2Types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
)

// ProjectTag marks every instance the benchmark launches. The sweeper only
// ever touches instances carrying it.
const ProjectTag = "aws-network-benchmark"

// FoundInstance is one benchmark instance discovered in a region.
type FoundInstance struct {
	Region     string
	InstanceID string
	State      string
	PublicIP   string
	LaunchTime time.Time
}

type SweeperInput struct {
	AwsConfig aws.Config
	Regions   []string

	// Report what would be terminated without terminating it.
	DryRun bool
}

type Sweeper struct {
	input     *SweeperInput
	clientFor func(region string) sweepEC2API
}

// The EC2 surface the sweeper needs, narrowed so tests can fake it.
type sweepEC2API interface {
	DescribeInstances(ctx context.Context, params *ec2.DescribeInstancesInput, optFns ...func(*ec2.Options)) (*ec2.DescribeInstancesOutput, error)
	TerminateInstances(ctx context.Context, params *ec2.TerminateInstancesInput, optFns ...func(*ec2.Options)) (*ec2.TerminateInstancesOutput, error)
}

func NewSweeper(input *SweeperInput) *Sweeper {
	return &Sweeper{
		input: input,
		clientFor: func(region string) sweepEC2API {
			cfg := input.AwsConfig.Copy()
			cfg.Region = region
			return ec2.NewFromConfig(cfg)
		},
	}
}

// Find lists every non-terminated benchmark instance in the sweeper's regions.
func (s *Sweeper) Find() ([]FoundInstance, error) {
	found := []FoundInstance{}
	for _, region := range s.input.Regions {
		client := s.clientFor(region)
		resp, err := client.DescribeInstances(context.Background(), &ec2.DescribeInstancesInput{
			Filters: []ec2Types.Filter{
				{Name: aws.String("tag:Project"), Values: []string{ProjectTag}},
				{Name: aws.String("instance-state-name"), Values: []string{"pending", "running", "stopping", "stopped"}},
			},
		})
		if err != nil {
			return found, fmt.Errorf("describing instances in %s: %w", region, err)
		}
		for _, res := range resp.Reservations {
			for _, in := range res.Instances {
				fi := FoundInstance{Region: region, State: string(in.State.Name)}
				if in.InstanceId != nil {
					fi.InstanceID = *in.InstanceId
				}
				if in.PublicIpAddress != nil {
					fi.PublicIP = *in.PublicIpAddress
				}
				if in.LaunchTime != nil {
					fi.LaunchTime = *in.LaunchTime
				}
				found = append(found, fi)
			}
		}
	}
	return found, nil
}

// Sweep terminates every instance Find returns and waits for each region's
// terminations to finish. In dry-run mode it only logs what it found.
func (s *Sweeper) Sweep() (int, error) {
	found, err := s.Find()
	if err != nil {
		return 0, err
	}
	if len(found) == 0 {
		slog.Info("no benchmark instances found")
		return 0, nil
	}

	byRegion := map[string][]string{}
	for _, fi := range found {
		slog.Info("found benchmark instance",
			slog.String("region", fi.Region),
			slog.String("instanceID", fi.InstanceID),
			slog.String("state", fi.State),
			slog.String("launched", fi.LaunchTime.Format(time.RFC3339)))
		byRegion[fi.Region] = append(byRegion[fi.Region], fi.InstanceID)
	}
	if s.input.DryRun {
		slog.Info("dry run, not terminating", slog.Int("instances", len(found)))
		return len(found), nil
	}

	for region, ids := range byRegion {
		client := s.clientFor(region)
		_, err := client.TerminateInstances(context.Background(), &ec2.TerminateInstancesInput{
			InstanceIds: ids,
		})
		if err != nil {
			return len(found), fmt.Errorf("terminating instances in %s: %w", region, err)
		}
		slog.Info("terminating instances", slog.String("region", region), slog.Int("count", len(ids)))
		s.waitTerminated(client, region, ids)
	}
	return len(found), nil
}

// Wait for the instances to be terminated, otherwise dependent resources like
// VPCs cannot be deleted right away.
func (s *Sweeper) waitTerminated(client sweepEC2API, region string, ids []string) {
	for i := 0; i < 10; i++ {
		resp, err := client.DescribeInstances(context.Background(), &ec2.DescribeInstancesInput{
			InstanceIds: ids,
		})
		if err == nil && allTerminated(resp) {
			slog.Info("all instances terminated", slog.String("region", region))
			return
		}
		if err != nil {
			slog.Debug("waiting for instances to finish terminating", slog.String("error", err.Error()))
		} else {
			slog.Debug("waiting for instances to finish terminating", slog.String("region", region))
		}
		time.Sleep(30 * time.Second)
	}
	slog.Warn("gave up waiting for instances to terminate", slog.String("region", region))
}

func allTerminated(resp *ec2.DescribeInstancesOutput) bool {
	for _, res := range resp.Reservations {
		for _, in := range res.Instances {
			if in.State.Name != ec2Types.InstanceStateNameTerminated {
				return false
			}
		}
	}
	return true
}

// LoadConfig loads the default credential chain for the sweeper CLI.
func LoadConfig() (aws.Config, error) {
	cfg, err := config.LoadDefaultConfig(context.Background())
	if err != nil {
		return aws.Config{}, fmt.Errorf("loading AWS config: %w", err)
	}
	return cfg, nil
}
