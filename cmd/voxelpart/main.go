package main

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"sync"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"voxelpart/pkg/config"
	"voxelpart/pkg/logger"
	"voxelpart/pkg/partition"
	"voxelpart/pkg/stl"
	"voxelpart/pkg/voxelset"
)

var version = "0.1.0"

func main() {
	root := &cobra.Command{
		Use:     "voxelpart",
		Short:   "Build voxel partitions from volumetric raster sources",
		Version: version,
	}
	root.AddCommand(buildCommand(), inspectCommand())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func buildCommand() *cobra.Command {
	var (
		configPath string
		workers    int
	)
	cmd := &cobra.Command{
		Use:   "build",
		Short: "Build every partition declared in a config file",
		RunE: func(cmd *cobra.Command, args []string) error {
			if workers < 1 {
				workers = 1
			}
			cfg, err := config.LoadConfig(configPath)
			if err != nil {
				return err
			}
			if err := logger.Init(cfg.Logging); err != nil {
				return err
			}
			defer logger.Sync()

			if cfg.Output.ExportCSV || cfg.Output.ExportSTL {
				if err := os.MkdirAll(cfg.Output.Dir, 0755); err != nil {
					return err
				}
			}

			names := make([]string, 0, len(cfg.Partitions))
			for name := range cfg.Partitions {
				names = append(names, name)
			}
			sort.Strings(names)

			// Each partition build operates on its own loaded volumes,
			// so partitions can run in parallel.
			sem := make(chan struct{}, workers)
			var wg sync.WaitGroup
			var mu sync.Mutex
			var firstErr error
			for _, name := range names {
				desc := cfg.Partitions[name]
				wg.Add(1)
				sem <- struct{}{}
				go func(name string, desc partition.Descriptor) {
					defer wg.Done()
					defer func() { <-sem }()
					if err := buildOne(name, &desc, cfg); err != nil {
						logger.Error("partition build failed",
							zap.String("partition", name), zap.Error(err))
						mu.Lock()
						if firstErr == nil {
							firstErr = fmt.Errorf("partition %q: %w", name, err)
						}
						mu.Unlock()
					}
				}(name, desc)
			}
			wg.Wait()
			return firstErr
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "config.yaml", "Path to the YAML config file")
	cmd.Flags().IntVar(&workers, "workers", runtime.NumCPU(), "Number of partitions to build in parallel")
	return cmd
}

func buildOne(name string, desc *partition.Descriptor, cfg *config.Config) error {
	set, err := partition.Build(desc)
	if err != nil {
		return err
	}
	bounds := set.Bounds()
	logger.Info("partition ready",
		zap.String("partition", name),
		zap.Int("voxels", set.Len()),
		zap.Float64s("bounds_min", bounds.Min[:]),
		zap.Float64s("bounds_max", bounds.Max[:]))

	if cfg.Output.ExportCSV {
		path := filepath.Join(cfg.Output.Dir, name+".csv")
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		if err := set.WriteCSV(f); err != nil {
			f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return err
		}
	}
	if cfg.Output.ExportSTL {
		path := filepath.Join(cfg.Output.Dir, name+".stl")
		if err := stl.Save(path, name, stl.FromVoxelSet(set)); err != nil {
			return err
		}
	}
	return nil
}

func inspectCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <descriptor.yaml>",
		Short: "Build one partition descriptor and print a summary",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			var desc partition.Descriptor
			if err := yaml.Unmarshal(data, &desc); err != nil {
				return fmt.Errorf("error parsing descriptor: %w", err)
			}

			set, err := partition.Build(&desc)
			if err != nil {
				return err
			}
			printSummary(cmd, set)
			return nil
		},
	}
}

func printSummary(cmd *cobra.Command, set *voxelset.VoxelSet) {
	bounds := set.Bounds()
	cmd.Printf("voxels:  %d\n", set.Len())
	cmd.Printf("columns: %d\n", set.NumColumns())
	cmd.Printf("bounds:  min=%v max=%v\n", bounds.Min, bounds.Max)
	for pos := 0; pos < set.NumColumns(); pos++ {
		stats, err := set.Stats(pos)
		if err != nil {
			continue
		}
		label := fmt.Sprintf("col%d", pos)
		if keys := set.Keys(); keys != nil {
			label = keys[pos]
		}
		cmd.Printf("%-10s min=%g max=%g mean=%g stddev=%g\n",
			label, stats.Min, stats.Max, stats.Mean, stats.StdDev)
	}
}
