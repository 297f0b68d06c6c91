// Copyright (C) 2020 Markus L. Noga
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.


package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"runtime/pprof"
	"strconv"
	"strings"
	"time"

	"github.com/klauspost/cpuid"
	"github.com/mlnoga/bm3dlight/internal/fits"
	"github.com/mlnoga/bm3dlight/internal/logger"
	"github.com/mlnoga/bm3dlight/internal/ops"
	"github.com/mlnoga/bm3dlight/internal/ops/denoise"
	"github.com/mlnoga/bm3dlight/internal/profile"
	"github.com/mlnoga/bm3dlight/internal/rest"
	"github.com/mlnoga/bm3dlight/internal/spectrum"
	"github.com/mlnoga/bm3dlight/internal/synth"
)

const version = "0.1.0"

var cpuprofile = flag.String("cpuprofile", "", "write cpu profile to `file`")

var out = flag.String("out", "out%d.fits", "save output to `file`; %d is replaced by the image number. Suffix selects FITS, TIFF, PNG or JPEG")
var logFile = flag.String("log", "", "save log output to `file` in addition to stdout")
var config = flag.String("config", "", "apply the operator stored as JSON in `file` to each input, instead of the one built from flags")
var verbose = flag.Bool("v", false, "log debug diagnostics")
var threads = flag.Int("threads", 0, "number of images processed concurrently, 0=number of logical cores")

var profileName = flag.String("profile", "normal", "filtering profile, one of "+strings.Join(profile.Names(), ", "))
var stage = flag.String("stage", "all", "stages to run for denoise, all or ht")
var sigma = flag.Float64("sigma", 0, "white noise standard deviation, 0=estimate from the image")
var sigmas = flag.String("sigmas", "", "comma separated noise standard deviations per channel, overrides -sigma")
var psdFile = flag.String("psd", "", "load the noise power spectral density from FITS `file`, overrides -sigma and -sigmas")
var estimator = flag.String("estimator", "immerkaer", "noise estimator if no noise is given, immerkaer or histogram")
var color = flag.String("color", "opp", "color transform for the rgb command, opp or ycbcr")
var linear = flag.Bool("linear", false, "convert sRGB encoded TIFF, PNG and JPEG inputs to linear light, and encode outputs back")
var outMin = flag.Float64("outMin", 0, "value mapped to black when writing TIFF, PNG or JPEG")
var outMax = flag.Float64("outMax", 1, "value mapped to white when writing TIFF, PNG or JPEG")

var psf = flag.String("psf", "", "load the point spread function for deblur from FITS `file`")
var psfKernel = flag.String("psfKernel", "gaussian", "generated point spread function, one of gaussian, box, motion, impulse")
var psfSize = flag.Int("psfSize", 9, "width and height of the generated point spread function in pixels")
var psfSigma = flag.Float64("psfSigma", 2, "standard deviation of the gaussian point spread function")
var psfAngle = flag.Float64("psfAngle", 0, "direction of the motion point spread function in degrees")

var width = flag.Int("width", 256, "width of synthetic images")
var height = flag.Int("height", 256, "height of synthetic images")
var channels = flag.Int("channels", 3, "channels of synthetic images, 1 or 3")
var blur = flag.Bool("blur", false, "blur synthetic images with the point spread function")
var seed = flag.Uint("seed", 1, "random seed for synthetic noise")

var addr = flag.String("addr", ":8080", "listen address for the serve command")
var chroot = flag.String("chroot", "", "change filesystem root to `dir` before serving (requires root)")
var setuid = flag.Int("setuid", -1, "change user id to this value before serving, -1=keep")

func main() {
	logWriter := io.Writer(os.Stdout)
	start := time.Now()
	flag.Usage = func() {
		fmt.Fprintf(logWriter, `bm3dlight Copyright (c) 2020 Markus L. Noga
This program comes with ABSOLUTELY NO WARRANTY.
This is free software, and you are welcome to redistribute it under certain conditions.
Refer to https://www.gnu.org/licenses/gpl-3.0.en.html for details.

Usage: %s [-flag value] (denoise|rgb|deblur|estimate|synth|profiles|serve|legal|version) (img0.fits ... imgn.fits)

Commands:
  denoise  Denoise each input, jointly across channels
  rgb      Denoise color inputs in a decorrelated color space
  deblur   Remove a known blur from each input
  estimate Estimate the noise level of each input
  synth    Create a synthetic test image, optionally blurred and noisy
  profiles List filtering profiles, or show the one selected with -profile
  serve    Serve the HTTP API
  legal    Show license and attribution information
  version  Show version information

Flags:
`, os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	// Initialize logging to file in addition to stdout, if selected
	if *logFile != "" {
		f, err := os.Create(*logFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Unable to open logfile '%s': %s\n", *logFile, err.Error())
			os.Exit(-1)
		}
		defer f.Close()
		logWriter = io.MultiWriter(os.Stdout, f)
	}
	level := "info"
	if *verbose {
		level = "debug"
	}
	log := logger.NewConsole(os.Stderr, level)

	// Enable CPU profiling if flagged
	if *cpuprofile != "" {
		f, err := os.Create(*cpuprofile)
		if err != nil {
			log.Fatal().Err(err).Msg("could not create CPU profile")
		}
		defer f.Close()
		if err := pprof.StartCPUProfile(f); err != nil {
			log.Fatal().Err(err).Msg("could not start CPU profile")
		}
		defer pprof.StopCPUProfile()
	}

	args := flag.Args()
	if len(args) < 1 {
		flag.Usage()
		return
	}

	ctx := ops.NewContext(logWriter, log)
	if *threads > 0 {
		ctx.MaxThreads = *threads
	}
	spectrum.SetWorkers(ctx.MaxThreads)

	var err error
	switch args[0] {
	case "denoise", "rgb", "deblur", "estimate":
		err = cmdProcess(args[0], args[1:], ctx)

	case "synth":
		err = cmdSynth(ctx)

	case "profiles":
		err = cmdProfiles(logWriter)

	case "serve":
		if err = rest.MakeSandbox(*chroot, *setuid, log); err == nil {
			err = rest.Serve(*addr, log, ctx.MaxThreads)
		}

	case "legal":
		fmt.Fprint(logWriter, legal)

	case "version":
		fmt.Fprintf(logWriter, "Version %s, %s, %d logical cores, %d MB memory\n",
			version, cpuid.CPU.BrandName, ops.DefaultThreads(), ctx.MemoryMB)

	case "help", "?":
		flag.Usage()

	default:
		fmt.Fprintf(logWriter, "Unknown command '%s'\n\n", args[0])
		flag.Usage()
		return
	}

	fmt.Fprintf(logWriter, "\nDone after %v\n", time.Since(start))
	if err != nil {
		fmt.Fprintf(logWriter, "Error: %s\n", err.Error())
		os.Exit(-1)
	}
}

// Loads all inputs, applies the operator for the command to each and saves the results
func cmdProcess(command string, patterns []string, ctx *ops.Context) error {
	op, err := operatorFor(command)
	if err != nil {
		return err
	}
	m, err := json.MarshalIndent(op, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintf(ctx.Log, "\nApplying these settings:\n%s\n", string(m))

	load := ops.NewOpLoadMany(patterns)
	load.Linearize = *linear
	promises, err := ops.NewOpSequence(load, ops.NewOpForEach(op)).MakePromises(nil, ctx)
	if err != nil {
		return err
	}
	_, err = ops.MaterializeAll(promises, ctx.MaxThreads, true)
	return err
}

// Builds the operator applied to each image, from the -config file or from flags
func operatorFor(command string) (ops.Operator, error) {
	if *config != "" {
		b, err := os.ReadFile(*config)
		if err != nil {
			return nil, err
		}
		return ops.UnmarshalOperator(b)
	}

	noise, err := noiseSettings()
	if err != nil {
		return nil, err
	}
	prof := denoise.ProfileSettings{Profile: *profileName}
	var filter ops.Operator
	switch command {
	case "denoise":
		op := denoise.NewOpDenoise(prof, noise)
		op.Stage = *stage
		filter = op
	case "rgb":
		filter = denoise.NewOpDenoiseRGB(prof, noise, *color)
	case "deblur":
		filter = denoise.NewOpDeblur(prof, noise, psfSettings())
	case "estimate":
		return denoise.NewOpEstimateNoise(*estimator), nil
	default:
		return nil, fmt.Errorf("unknown command '%s'", command)
	}
	return ops.NewOpSequence(filter, saveOp()), nil
}

func noiseSettings() (denoise.NoiseSettings, error) {
	n := denoise.NoiseSettings{Sigma: *sigma, PSDFile: *psdFile, Estimator: *estimator}
	if *sigmas != "" {
		for _, s := range strings.Split(*sigmas, ",") {
			v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
			if err != nil {
				return n, fmt.Errorf("invalid -sigmas entry '%s': %w", s, err)
			}
			n.Sigmas = append(n.Sigmas, v)
		}
	}
	return n, nil
}

func psfSettings() denoise.PSFSettings {
	return denoise.PSFSettings{File: *psf, Kernel: *psfKernel, Size: *psfSize, Std: *psfSigma, Angle: *psfAngle}
}

func saveOp() *ops.OpSave {
	op := ops.NewOpSave(*out)
	op.Min, op.Max, op.SRGB = *outMin, *outMax, *linear
	return op
}

// Creates a synthetic test image, blurs it and adds noise as selected by flags
func cmdSynth(ctx *ops.Context) error {
	var f *fits.Image
	switch *channels {
	case 1:
		f = fits.NewImageFromTensor(synth.GrayPattern(*height, *width), 0)
	case 3:
		f = fits.NewImageFromTensor(synth.ColorPattern(*height, *width), 0)
	default:
		return fmt.Errorf("synthetic images need 1 or 3 channels, have %d", *channels)
	}
	fmt.Fprintf(ctx.Log, "0: Created synthetic %v\n", f)

	seq := ops.NewOpSequence()
	if *blur {
		seq.Append(denoise.NewOpBlur(psfSettings()))
	}
	if *sigma > 0 {
		seq.Append(denoise.NewOpAddNoise(*sigma, uint32(*seed)))
	}
	seq.Append(saveOp())

	in := func() (*fits.Image, error) { return f, nil }
	promises, err := seq.MakePromises([]ops.Promise{in}, ctx)
	if err != nil {
		return err
	}
	_, err = ops.MaterializeAll(promises, 1, true)
	return err
}

// Lists the profile names, or prints the selected profile as JSON
func cmdProfiles(logWriter io.Writer) error {
	if !isFlagSet("profile") {
		fmt.Fprintf(logWriter, "Profiles: %s\n", strings.Join(profile.Names(), ", "))
		return nil
	}
	p, err := profile.Resolve(profile.Named(*profileName))
	if err != nil {
		return err
	}
	m, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintf(logWriter, "%s\n", string(m))
	return nil
}

func isFlagSet(name string) bool {
	set := false
	flag.Visit(func(f *flag.Flag) { set = set || f.Name == name })
	return set
}
