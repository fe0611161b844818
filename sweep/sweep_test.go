package sweep

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2Types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEC2 struct {
	instances  []ec2Types.Instance
	describes  int
	terminated []string
}

func (f *fakeEC2) DescribeInstances(ctx context.Context, params *ec2.DescribeInstancesInput, optFns ...func(*ec2.Options)) (*ec2.DescribeInstancesOutput, error) {
	f.describes++
	instances := f.instances
	// After termination, report everything terminated so the wait loop exits.
	if len(f.terminated) > 0 {
		instances = nil
		for _, id := range f.terminated {
			instances = append(instances, ec2Types.Instance{
				InstanceId: aws.String(id),
				State:      &ec2Types.InstanceState{Name: ec2Types.InstanceStateNameTerminated},
			})
		}
	}
	return &ec2.DescribeInstancesOutput{
		Reservations: []ec2Types.Reservation{{Instances: instances}},
	}, nil
}

func (f *fakeEC2) TerminateInstances(ctx context.Context, params *ec2.TerminateInstancesInput, optFns ...func(*ec2.Options)) (*ec2.TerminateInstancesOutput, error) {
	f.terminated = append(f.terminated, params.InstanceIds...)
	return &ec2.TerminateInstancesOutput{}, nil
}

func runningInstance(id, ip string) ec2Types.Instance {
	return ec2Types.Instance{
		InstanceId:      aws.String(id),
		PublicIpAddress: aws.String(ip),
		LaunchTime:      aws.Time(time.Date(2023, 4, 13, 0, 0, 0, 0, time.UTC)),
		State:           &ec2Types.InstanceState{Name: ec2Types.InstanceStateNameRunning},
	}
}

func newTestSweeper(input *SweeperInput, fakes map[string]*fakeEC2) *Sweeper {
	s := NewSweeper(input)
	s.clientFor = func(region string) sweepEC2API { return fakes[region] }
	return s
}

func TestFind(t *testing.T) {
	fakes := map[string]*fakeEC2{
		"us-east-1": {instances: []ec2Types.Instance{runningInstance("i-aaa", "1.1.1.1"), runningInstance("i-bbb", "1.1.1.2")}},
		"eu-west-1": {instances: []ec2Types.Instance{runningInstance("i-ccc", "2.2.2.2")}},
	}
	s := newTestSweeper(&SweeperInput{Regions: []string{"us-east-1", "eu-west-1"}}, fakes)

	found, err := s.Find()
	require.NoError(t, err)
	require.Len(t, found, 3)
	assert.Equal(t, "us-east-1", found[0].Region)
	assert.Equal(t, "i-aaa", found[0].InstanceID)
	assert.Equal(t, "1.1.1.1", found[0].PublicIP)
	assert.Equal(t, "running", found[0].State)
}

func TestSweepDryRun(t *testing.T) {
	fakes := map[string]*fakeEC2{
		"us-east-1": {instances: []ec2Types.Instance{runningInstance("i-aaa", "1.1.1.1")}},
	}
	s := newTestSweeper(&SweeperInput{Regions: []string{"us-east-1"}, DryRun: true}, fakes)

	n, err := s.Sweep()
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Empty(t, fakes["us-east-1"].terminated)
}

func TestSweepTerminates(t *testing.T) {
	fakes := map[string]*fakeEC2{
		"us-east-1": {instances: []ec2Types.Instance{runningInstance("i-aaa", "1.1.1.1"), runningInstance("i-bbb", "1.1.1.2")}},
	}
	s := newTestSweeper(&SweeperInput{Regions: []string{"us-east-1"}}, fakes)

	n, err := s.Sweep()
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.ElementsMatch(t, []string{"i-aaa", "i-bbb"}, fakes["us-east-1"].terminated)
}

func TestSweepNothingFound(t *testing.T) {
	fakes := map[string]*fakeEC2{"us-east-1": {}}
	s := newTestSweeper(&SweeperInput{Regions: []string{"us-east-1"}}, fakes)

	n, err := s.Sweep()
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Empty(t, fakes["us-east-1"].terminated)
}

type erroringEC2 struct{}

func (erroringEC2) DescribeInstances(ctx context.Context, params *ec2.DescribeInstancesInput, optFns ...func(*ec2.Options)) (*ec2.DescribeInstancesOutput, error) {
	return nil, fmt.Errorf("AuthFailure")
}

func (erroringEC2) TerminateInstances(ctx context.Context, params *ec2.TerminateInstancesInput, optFns ...func(*ec2.Options)) (*ec2.TerminateInstancesOutput, error) {
	return nil, fmt.Errorf("AuthFailure")
}

func TestFindPropagatesErrors(t *testing.T) {
	s := NewSweeper(&SweeperInput{Regions: []string{"us-east-1"}})
	s.clientFor = func(region string) sweepEC2API { return erroringEC2{} }

	_, err := s.Find()
	assert.Error(t, err)
}
