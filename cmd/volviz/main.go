package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"volviz/pkg/config"
	"volviz/pkg/mesh"
	"volviz/pkg/render"
	"volviz/pkg/transfer"
	"volviz/pkg/visualization"
	"volviz/pkg/volume"
)

func main() {
	// Parse command line arguments
	inputFile := flag.String("input", "", "AVS field file (.fld or .fld.gz) holding the volume")
	configPath := flag.String("config", "volviz.yaml", "YAML configuration file")
	outputDir := flag.String("output", "", "Directory for rendered frames (default: config value)")
	algorithms := flag.String("algorithms", "", "Comma-separated kernels to render, or 'all' (default: config value)")
	isovalue := flag.Int("isovalue", -1, "Isovalue override for the isosurface kernel and mesh export")
	frames := flag.Int("frames", 0, "Turntable frame count override")
	workers := flag.Int("workers", 0, "Worker count override (default: config value, capped by CPU count)")
	meshFile := flag.String("mesh", "", "Output STL filename for marching cubes export (empty: skip)")
	histogramFile := flag.String("histogram", "", "Output CSV filename for the density histogram (empty: skip)")
	flag.Parse()

	// Validate inputs
	if *inputFile == "" {
		flag.Usage()
		os.Exit(1)
	}

	// Load configuration and fold command line overrides into it
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if *outputDir != "" {
		cfg.Output.Directory = *outputDir
	}
	if *algorithms != "" {
		cfg.Render.Algorithm = *algorithms
	}
	if *isovalue >= 0 {
		cfg.Isosurface.Isovalue = *isovalue
	}
	if *frames > 0 {
		cfg.Output.Frames = *frames
	}
	if *workers > 0 {
		cfg.Render.Workers = *workers
	}
	if cfg.Render.Workers > runtime.NumCPU() {
		cfg.Render.Workers = runtime.NumCPU()
	}
	cfg.Validate()

	fmt.Println("================================")
	fmt.Println("VOLVIZ - PARALLEL RAY-CASTING VOLUME VISUALIZATION")
	fmt.Println("================================")

	// Load the volume and turn it upright
	fmt.Printf("Loading volume from: %s\n", *inputFile)
	vol, err := volume.LoadAVS(*inputFile)
	if err != nil {
		log.Fatalf("Failed to load volume: %v", err)
	}
	vol.Rotate()

	nx, ny, nz := vol.Dims()
	stats := vol.ComputeStats()
	fmt.Printf("\nVolume statistics:\n")
	fmt.Printf("==================\n")
	fmt.Printf("Dimensions: %dx%dx%d (%d samples)\n", nx, ny, nz, nx*ny*nz)
	fmt.Printf("Density range: %d to %d\n", stats.Min, stats.Max)
	fmt.Printf("Mean density: %.2f\n", stats.Mean)
	fmt.Printf("Density standard deviation: %.2f\n", stats.StdDev)

	// The transfer function starts as the rainbow ramp over this volume
	tf := transfer.New()
	tf.SetVolume(vol)

	// Resolve the kernels to render
	names := strings.Split(cfg.Render.Algorithm, ",")
	if strings.EqualFold(strings.TrimSpace(cfg.Render.Algorithm), "all") {
		names = nil
		for _, alg := range render.Algorithms() {
			names = append(names, alg.String())
		}
	}

	params := cfg.RenderParams()
	startTime := time.Now()
	for _, name := range names {
		alg, err := render.ParseAlgorithm(name)
		if err != nil {
			log.Fatalf("Failed to select kernel: %v", err)
		}

		fmt.Printf("\nRendering %s (%d workers, %d frames)...\n",
			alg, params.Workers, cfg.Output.Frames)

		r := render.New(alg, alg.String(), tf)
		r.SetVolume(vol)

		cam := render.NewCamera(cfg.Output.ImageSize, cfg.Output.ImageSize)
		dir := filepath.Join(cfg.Output.Directory, alg.String())
		if err := visualization.SaveOrbitSequence(r, cam, params, cfg.Output.Frames, cfg.Output.ImageSize, dir); err != nil {
			r.Stop()
			log.Fatalf("Failed to render %s: %v", alg, err)
		}
		r.Stop()
		fmt.Printf("Frames saved to: %s\n", dir)
	}

	// Extract and export the isosurface mesh if requested
	if *meshFile != "" {
		fmt.Printf("\nExtracting isosurface mesh at isovalue %d (stride %d)...\n",
			cfg.Isosurface.Isovalue, cfg.Mesh.Stride)

		mc := mesh.NewMarchingCubes(vol, int16(cfg.Isosurface.Isovalue), cfg.Mesh.Stride)
		mc.SetScale(cfg.Mesh.ScaleX, cfg.Mesh.ScaleY, cfg.Mesh.ScaleZ)
		triangles := mc.GenerateTriangles()

		if err := mesh.SaveToSTL(*meshFile, triangles); err != nil {
			log.Fatalf("Failed to export mesh: %v", err)
		}
		fmt.Printf("Mesh with %d triangles saved to: %s\n", len(triangles), *meshFile)
	}

	// Dump the histogram if requested
	if *histogramFile != "" {
		if err := visualization.SaveHistogramCSV(vol, *histogramFile); err != nil {
			log.Fatalf("Failed to export histogram: %v", err)
		}
		fmt.Printf("Histogram saved to: %s\n", *histogramFile)
	}

	fmt.Printf("\nDone in %.2f seconds.\n", time.Since(startTime).Seconds())
}
