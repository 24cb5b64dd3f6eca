package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/dpup/mapweather/server/internal/lib/bridge"
	"github.com/dpup/mapweather/server/internal/lib/geo"
	"github.com/dpup/mapweather/server/internal/lib/mapdoc"
	"github.com/dpup/mapweather/server/internal/lib/measure"
)

var errUsage = errors.New("usage")

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		if !errors.Is(err, errUsage) {
			fmt.Fprintf(os.Stderr, "Error: %v\n\n", err)
		}
		printUsage(os.Stderr)
		os.Exit(1)
	}
}

func run(args []string, out io.Writer) error {
	if len(args) < 1 {
		return errUsage
	}

	rest := args[1:]
	switch args[0] {
	case "distance":
		return handleDistance(rest, out)
	case "travel-time":
		return handleTravelTime(rest, out)
	case "decode":
		return handleDecode(rest, out)
	case "encode":
		return handleEncode(rest, out)
	case "polyline":
		return handlePolyline(rest, out)
	case "kml":
		return handleKML(rest, out)
	case "help":
		printUsage(out)
		return nil
	default:
		return fmt.Errorf("unknown command: %s", args[0])
	}
}

type pointFlags struct {
	lat1, lng1, lat2, lng2 *float64
}

func addPointFlags(fs *flag.FlagSet) pointFlags {
	return pointFlags{
		lat1: fs.Float64("lat1", 0, "Latitude of marker A"),
		lng1: fs.Float64("lng1", 0, "Longitude of marker A"),
		lat2: fs.Float64("lat2", 0, "Latitude of marker B"),
		lng2: fs.Float64("lng2", 0, "Longitude of marker B"),
	}
}

func (p pointFlags) points() (geo.Point, geo.Point, error) {
	a := geo.Point{Latitude: *p.lat1, Longitude: *p.lng1}
	b := geo.Point{Latitude: *p.lat2, Longitude: *p.lng2}
	if err := geo.Validate(a); err != nil {
		return a, b, fmt.Errorf("marker A: %w", err)
	}
	if err := geo.Validate(b); err != nil {
		return a, b, fmt.Errorf("marker B: %w", err)
	}
	return a, b, nil
}

func handleDistance(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("distance", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	pts := addPointFlags(fs)
	walk := fs.Float64("walk", measure.DefaultWalkSpeedKmh, "Walking speed in km/h")
	drive := fs.Float64("drive", measure.DefaultDriveSpeedKmh, "Driving speed in km/h")
	if err := fs.Parse(args); err != nil {
		return err
	}

	a, b, err := pts.points()
	if err != nil {
		return err
	}

	r := geo.Measure(a, b, *walk, *drive)
	fmt.Fprintln(out, measure.Report(a, b, r))
	return nil
}

func handleTravelTime(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("travel-time", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	km := fs.Float64("km", -1, "Distance in kilometers")
	speed := fs.Float64("speed", measure.DefaultWalkSpeedKmh, "Speed in km/h")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *km < 0 {
		return errors.New("--km is required")
	}

	fmt.Fprintln(out, geo.TravelTime(*km, *speed))
	return nil
}

func handleDecode(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("decode", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	payload := fs.String("payload", "", "Channel payload, e.g. MAP_DBLCLICK:50.45,30.52")
	if err := fs.Parse(args); err != nil {
		return err
	}

	ev, err := bridge.Decode(*payload)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "lat=%.6f lng=%.6f\n", ev.Latitude, ev.Longitude)
	return nil
}

func handleEncode(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("encode", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	lat := fs.Float64("lat", 0, "Latitude")
	lng := fs.Float64("lng", 0, "Longitude")
	if err := fs.Parse(args); err != nil {
		return err
	}

	p := geo.Point{Latitude: *lat, Longitude: *lng}
	if err := geo.Validate(p); err != nil {
		return err
	}
	fmt.Fprintln(out, mapdoc.EncodeClick(p))
	return nil
}

func handlePolyline(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("polyline", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	encoded := fs.String("encoded", "", "Encoded polyline string")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *encoded == "" {
		return errors.New("--encoded is required")
	}

	points, err := geo.DecodePolyline(*encoded)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Decoded %d points:\n", len(points))
	for i, p := range points {
		fmt.Fprintf(out, "  %d: (%.5f, %.5f)\n", i+1, p.Latitude, p.Longitude)
	}
	return nil
}

func handleKML(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("kml", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	pts := addPointFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	a, b, err := pts.points()
	if err != nil {
		return err
	}
	return mapdoc.WriteKML(out, "Measurement", measure.HasBoth{A: a, B: b}.Markers())
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, `measure - two-point distance tools

Usage:
  measure distance    --lat1 N --lng1 N --lat2 N --lng2 N [--walk KMH] [--drive KMH]
  measure travel-time --km N [--speed KMH]
  measure decode      --payload MAP_DBLCLICK:<lat>,<lng>
  measure encode      --lat N --lng N
  measure polyline    --encoded STRING
  measure kml         --lat1 N --lng1 N --lat2 N --lng2 N

Example:
  measure distance --lat1 38.0675 --lng1 -120.5436 --lat2 38.1391 --lng2 -120.4561`)
}
