package main

import (
	"flag"
	"log/slog"
	"os"
	"strings"

	"github.com/hanksong/awsbenchmark/awsutil"
	"github.com/hanksong/awsbenchmark/config"
	"github.com/hanksong/awsbenchmark/sweep"
)

func main() {
	configPath := flag.String("config", "", "Read the region list from this benchmark configuration file.")
	regionsFlag := flag.String("regions", "", "Comma-separated regions to sweep. Overrides the config file. When neither is given, every enabled region is swept.")
	dryRun := flag.Bool("dry-run", false, "List what would be terminated without terminating it.")
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

	awsCfg, err := sweep.LoadConfig()
	if err != nil {
		panic(err)
	}

	var regions []string
	switch {
	case *regionsFlag != "":
		regions = strings.Split(*regionsFlag, ",")
	case *configPath != "":
		cfg, err := config.Load(*configPath)
		if err != nil {
			panic(err)
		}
		regions = cfg.AWSRegions
	default:
		valid, err := awsutil.ValidRegions(awsCfg)
		if err != nil {
			panic(err)
		}
		for region := range valid {
			regions = append(regions, region)
		}
	}

	sweeper := sweep.NewSweeper(&sweep.SweeperInput{
		AwsConfig: awsCfg,
		Regions:   regions,
		DryRun:    *dryRun,
	})
	n, err := sweeper.Sweep()
	if err != nil {
		panic(err)
	}
	slog.Info("sweep finished", slog.Int("instances", n), slog.Bool("dryRun", *dryRun))
}
