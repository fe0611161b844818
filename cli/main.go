package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/hanksong/awsbenchmark/archive"
	"github.com/hanksong/awsbenchmark/awsutil"
	"github.com/hanksong/awsbenchmark/config"
	"github.com/hanksong/awsbenchmark/execx"
	"github.com/hanksong/awsbenchmark/inventory"
	"github.com/hanksong/awsbenchmark/nettest"
	"github.com/hanksong/awsbenchmark/provision"
	"github.com/hanksong/awsbenchmark/results"
	"github.com/hanksong/awsbenchmark/sshkey"
	"github.com/hanksong/awsbenchmark/sweep"
	"github.com/hanksong/awsbenchmark/target"
	"github.com/hanksong/awsbenchmark/terraform"
	"github.com/hanksong/awsbenchmark/util"
	"github.com/hanksong/awsbenchmark/visualize"
	"golang.org/x/crypto/ssh"
)

const sshUser = "ec2-user"

func main() {
	configPath := flag.String("config", "config.json", "The benchmark configuration file (JSON or YAML).")
	terraformDir := flag.String("terraform-dir", "terraform", "Directory the generated terraform configuration is written to.")
	keyDir := flag.String("key-dir", "keys", "Directory SSH key material lives in.")
	instanceInfo := flag.String("instance-info", "", "Reuse an existing instance info file instead of the one produced by terraform apply. Mostly useful with run_terraform_apply disabled.")
	debug := flag.Bool("debug", false, "Enable debug logging.")
	flag.Parse()

	level := slog.LevelInfo
	if *debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	cfg, err := config.Load(*configPath)
	if err != nil {
		panic(err)
	}

	// The random suffix keeps two runs started in the same second apart.
	runDir := filepath.Join(cfg.RunDir, util.FileTimestamp(time.Now())+"_"+util.Randstring(4))
	dataDir := filepath.Join(runDir, "data")
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		panic(err)
	}
	slog.Info("starting benchmark run", slog.String("runDir", runDir), slog.Int("regions", len(cfg.AWSRegions)))

	awsCfg, err := awsutil.LoadConfig(cfg.AWSRegions[0])
	if err != nil {
		panic(err)
	}
	if err := awsutil.VerifyCredentials(awsCfg); err != nil {
		panic(err)
	}
	valid, err := awsutil.ValidRegions(awsCfg)
	if err != nil {
		panic(err)
	}
	for _, region := range cfg.AWSRegions {
		if !valid[region] {
			panic(fmt.Errorf("region %s is not enabled for this account", region))
		}
		slog.Debug("benchmark region", slog.String("code", region), slog.String("name", awsutil.RegionName(region)))
	}

	kp, err := sshkey.Ensure(*keyDir, cfg.SSHKeyName, cfg.CreateSSHKey)
	if err != nil {
		panic(err)
	}
	signer, err := kp.Signer()
	if err != nil {
		panic(err)
	}

	var inv *inventory.Inventory
	if cfg.RunTerraformApply {
		amis, err := terraform.NewAMIResolver(awsCfg).Resolve(context.Background(), cfg.AWSRegions)
		if err != nil {
			panic(err)
		}

		counts := map[string]int{}
		for _, region := range cfg.AWSRegions {
			counts[region] = cfg.InstancesIn(region)
		}
		err = terraform.Generate(*terraformDir, &terraform.GenerateInput{
			Regions:        cfg.AWSRegions,
			InstanceType:   cfg.InstanceType,
			KeyName:        cfg.SSHKeyName,
			PublicKeyPath:  kp.PublicKeyPath,
			InstanceCounts: counts,
			AMIs:           amis,
			ProjectTag:     sweep.ProjectTag,
		})
		if err != nil {
			panic(err)
		}

		tf := terraform.New(*terraformDir, execx.NewOSRunner(os.Stdout, os.Stderr))
		if err := tf.Init(); err != nil {
			panic(err)
		}
		if cfg.CleanupResources {
			// Deferred so a panic mid-run still tears the fleet down.
			defer func() {
				if err := tf.Destroy(); err != nil {
					slog.Error("terraform destroy failed, run the sweeper to clean up", slog.String("error", err.Error()))
				}
			}()
		}
		if err := tf.Apply(); err != nil {
			panic(err)
		}

		out, err := tf.OutputJSON()
		if err != nil {
			panic(err)
		}
		inv, err = inventory.FromTerraformOutput(out)
		if err != nil {
			panic(err)
		}
		if err := inv.Save(filepath.Join(runDir, "instance_info.json")); err != nil {
			panic(err)
		}
	} else {
		path := *instanceInfo
		if path == "" {
			path = "instance_info.json"
		}
		inv, err = inventory.Load(path)
		if err != nil {
			panic(err)
		}
	}

	targets := func(in inventory.Instance) target.Target {
		return &target.SSHTarget{
			User:    sshUser,
			IP:      in.Addr(cfg.UsePrivateIP),
			SSHPort: 22,
			Auths:   []ssh.AuthMethod{ssh.PublicKeys(signer)},
		}
	}

	instances := inv.All()
	if err := provision.PrepareAll(instances, targets, sshUser, cfg.TestConcurrency); err != nil {
		panic(err)
	}

	runner, err := nettest.NewRunner(&nettest.RunnerInput{
		Targets:      targets,
		DataDir:      dataDir,
		Concurrency:  cfg.TestConcurrency,
		UsePrivateIP: cfg.UsePrivateIP,
		Monitor:      cfg.MonitorSystem,
	})
	if err != nil {
		panic(err)
	}

	if cfg.RunLatencyTests {
		test := mustTest(&nettest.Spec{Type: "latency", Input: map[string]any{"Count": cfg.PingCount}})
		runner.RunPairs(test, inv.Pairs(cfg.TestIntraRegion))
	}
	if cfg.RunP2PTests {
		test := mustTest(&nettest.Spec{Type: "p2p", Input: map[string]any{
			"DurationSec": cfg.P2PDuration,
			"Parallel":    cfg.P2PParallel,
		}})
		runner.RunPairs(test, inv.Pairs(cfg.TestIntraRegion))
	}
	if cfg.RunUDPTests {
		server, clients, err := inv.FanOut(cfg.UDPServerRegion, cfg.TestIntraRegion)
		if err != nil {
			panic(err)
		}
		test := mustTest(&nettest.Spec{Type: "udp", Input: map[string]any{
			"Bandwidth":   cfg.UDPBandwidth,
			"DurationSec": cfg.UDPDuration,
		}})
		runner.RunFanOut(test, server, clients)
	}

	if cfg.RunP2PTests || cfg.RunUDPTests {
		allTargets := make([]target.Target, 0, len(instances))
		for _, in := range instances {
			allTargets = append(allTargets, targets(in))
		}
		provision.StopServers(allTargets)
	}

	collected, err := results.Collect(dataDir)
	if err != nil {
		panic(err)
	}
	all := collected.All()

	f, err := os.Create(filepath.Join(runDir, "results.csv"))
	if err != nil {
		panic(err)
	}
	if err := results.WriteCSV(f, all); err != nil {
		panic(err)
	}
	f.Close()
	// One cumulative file across runs, for comparisons over time.
	if err := results.AppendCSV(filepath.Join(cfg.RunDir, "all_results.csv"), all); err != nil {
		panic(err)
	}

	summary := results.Summarize(all)
	summaryBytes, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		panic(err)
	}
	if err := os.WriteFile(filepath.Join(runDir, "summary.json"), summaryBytes, 0o644); err != nil {
		panic(err)
	}
	slog.Info("run summary",
		slog.Int("latencyTests", summary.LatencyCount),
		slog.Int("p2pTests", summary.P2PCount),
		slog.Int("udpTests", summary.UDPCount),
		slog.Int("failures", summary.FailureCount))

	var chartFiles []string
	chartDir := filepath.Join(runDir, "charts")
	if cfg.GenerateVisualizations {
		chartFiles, err = visualize.GenerateCharts(collected, chartDir)
		if err != nil {
			panic(err)
		}
	}
	if cfg.GenerateReport {
		err = visualize.WriteReport(&visualize.ReportInput{
			Title:      "AWS Cross-Region Network Benchmark",
			Generated:  time.Now(),
			Collected:  collected,
			Summary:    summary,
			ChartDir:   chartDir,
			ChartFiles: chartFiles,
		}, filepath.Join(runDir, "report.html"))
		if err != nil {
			panic(err)
		}
		slog.Info("wrote report", slog.String("path", filepath.Join(runDir, "report.html")))
	}

	if cfg.ArchiveBucket != "" {
		archiver, err := archive.NewArchiver(&archive.ArchiverInput{
			AwsConfig: awsCfg,
			Bucket:    cfg.ArchiveBucket,
			Prefix:    filepath.Base(runDir),
		})
		if err != nil {
			panic(err)
		}
		if err := archiver.EnsureBucket(); err != nil {
			panic(err)
		}
		if err := archiver.UploadDir(runDir); err != nil {
			panic(err)
		}
	}
}

func mustTest(spec *nettest.Spec) nettest.NetTest {
	test, err := nettest.New(spec)
	if err != nil {
		panic(err)
	}
	return test
}
