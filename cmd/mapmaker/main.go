package main

import (
	"context"
	"fmt"
	"log"
	"math"
	"os"
	"os/signal"
	"runtime"
	"sync"
	"time"

	tiledb "github.com/TileDB-Inc/TileDB-Go"
	"github.com/alitto/pond"
	"github.com/urfave/cli/v2"

	minkasi "github.com/Sulla2012/minkasi-go"
	"github.com/Sulla2012/minkasi-go/internal/astro"
	"github.com/Sulla2012/minkasi-go/internal/ingest"
	"github.com/Sulla2012/minkasi-go/internal/pointing"
	"github.com/Sulla2012/minkasi-go/search"
)

// ingestTOD reads a single TOD container (FITS table contract) and
// builds a *minkasi.TOD, leaving its noise model unfitted. Ingest
// failures are surfaced as a minkasi.IngestFormat-kind error so the
// caller can log and skip the file instead of aborting the run.
func ingestTOD(uri string) (*minkasi.TOD, error) {
	f, err := os.Open(uri)
	if err != nil {
		return nil, minkasi.NewMapError(minkasi.IngestFormat, fmt.Sprintf("opening %s", uri)).WithCause(err)
	}
	defer f.Close()

	table, err := ingest.ReadTODFromFITSTable(f)
	if err != nil {
		return nil, minkasi.NewMapError(minkasi.IngestFormat, fmt.Sprintf("reading %s", uri)).WithCause(err)
	}

	tod := &minkasi.TOD{
		Ndet:     table.Ndet,
		Nsamp:    table.Nsamp,
		Dx:       table.Dx,
		Dy:       table.Dy,
		DatCalib: table.Fnu,
		Dt:       table.Dt,
		FName:    uri,
	}

	if len(table.Time) > 0 {
		times := make([]time.Time, len(table.Time))
		for i, s := range table.Time {
			times[i] = time.Unix(int64(s), 0)
		}
		startJD, endJD := astro.ObservationSpan(times)
		tod.Extra = map[string]any{"obs_start_jd": startJD, "obs_end_jd": endJD}
	}

	return tod, nil
}

// ingestMany reads every TOD container in uris concurrently via a pond
// worker pool, skipping (and logging) any that fail ingest rather than
// aborting the whole run.
func ingestMany(ctx context.Context, uris []string) []*minkasi.TOD {
	n := runtime.NumCPU() * 2
	pool := pond.New(n, 0, pond.MinWorkers(n), pond.Context(ctx))
	defer pool.StopAndWait()

	tods := make([]*minkasi.TOD, len(uris))
	var wg sync.WaitGroup
	for i, uri := range uris {
		i, uri := i, uri
		wg.Add(1)
		pool.Submit(func() {
			defer wg.Done()
			t, err := ingestTOD(uri)
			if err != nil {
				log.Printf("skipping %s: %v", uri, err)
				return
			}
			tods[i] = t
		})
	}
	wg.Wait()

	out := tods[:0]
	for _, t := range tods {
		if t != nil {
			out = append(out, t)
		}
	}
	return out
}

// runMapMaker ingests every uri, pixelizes to a CAR map covering their
// combined pointing limits, fits each TOD's noise model, solves for the
// map by PCG, and writes the result to outURI.
func runMapMaker(uris []string, outURI string, pixsizeArcsec float64, nthread, maxiter, downsample int) error {
	if nthread > 0 {
		pointing.SetNThread(nthread)
	}

	ctxCancel, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	tods := ingestMany(ctxCancel, uris)
	if len(tods) == 0 {
		return fmt.Errorf("no TODs ingested from %d candidate files", len(uris))
	}

	for _, t := range tods {
		t.DownsampleSamples(downsample)
		t.TruncateSamples([]int{2, 3, 5, 7})
	}

	tv := minkasi.NewTodVec(tods, nil)
	xmin, xmax, ymin, ymax := tv.Lims()

	pixsize := pixsizeArcsec * (math.Pi / 180.0 / 3600.0)
	skyMap := minkasi.NewSkyMap(xmin, xmax, ymin, ymax, pixsize, []int{2, 3, 5, 7})

	kept := tv.Tods[:0]
	for _, t := range tv.Tods {
		t.Ipix = skyMap.GetPix(t)
		if err := t.SetNoiseSmoothedSVD(10); err != nil {
			log.Printf("skipping %s: %v", t.FName, err)
			continue
		}
		kept = append(kept, t)
	}
	if len(kept) == 0 {
		return fmt.Errorf("no TODs survived the noise fit")
	}
	tv.Tods = kept

	rhs := minkasi.NewMapset(skyMap.Copy())
	if err := tv.MakeRHS(rhs); err != nil {
		return fmt.Errorf("make_rhs: %w", err)
	}

	x0 := rhs.Copy()
	x0.Clear()

	applyA := func(p *minkasi.Mapset) (*minkasi.Mapset, error) {
		return tv.Dot(p, nil)
	}

	solution, err := minkasi.RunPCG(rhs, x0, applyA, minkasi.IdentityPrecon(), minkasi.PCGOptions{MaxIter: maxiter, Verbose: true})
	if err != nil {
		return fmt.Errorf("pcg: %w", err)
	}

	config, err := tiledb.NewConfig()
	if err != nil {
		return err
	}
	defer config.Free()
	tdbCtx, err := tiledb.NewContext(config)
	if err != nil {
		return err
	}
	defer tdbCtx.Free()

	if err := solution.Write(tdbCtx, outURI); err != nil {
		return err
	}

	return writeRunMetadata(tv.Tods, outURI+".meta.json")
}

// todMeta is one TOD's entry in the run-metadata sidecar written
// alongside the output map: its tag, source file, sample cadence, and
// (when ingest recovered timestamps) its Julian-day observation span.
type todMeta struct {
	Tag        int     `json:"tag"`
	FName      string  `json:"fname"`
	Dt         float64 `json:"dt"`
	ObsStartJD float64 `json:"obs_start_jd,omitempty"`
	ObsEndJD   float64 `json:"obs_end_jd,omitempty"`
}

// writeRunMetadata records each ingested TOD's provenance (tag, source
// file, cadence, observation span) as a JSON sidecar next to the output
// map, via the TileDB-VFS-backed minkasi.WriteJSON with the default
// TileDB config.
func writeRunMetadata(tods []*minkasi.TOD, path string) error {
	entries := make([]todMeta, len(tods))
	for i, t := range tods {
		m := todMeta{Tag: t.Tag, FName: t.FName, Dt: t.Dt}
		if start, ok := t.Extra["obs_start_jd"].(float64); ok {
			m.ObsStartJD = start
		}
		if end, ok := t.Extra["obs_end_jd"].(float64); ok {
			m.ObsEndJD = end
		}
		entries[i] = m
	}
	_, err := minkasi.WriteJSON(path, "", entries)
	return err
}

func main() {
	app := &cli.App{
		Name:  "mapmaker",
		Usage: "maximum-likelihood map-maker for scanning-telescope TOD",
		Commands: []*cli.Command{
			{
				Name:  "map",
				Usage: "build a map from an explicit list of TOD container files",
				Flags: []cli.Flag{
					&cli.StringSliceFlag{Name: "tod-uri", Usage: "TOD container file (repeatable)"},
					&cli.StringFlag{Name: "out-uri", Usage: "output TileDB raster URI", Required: true},
					&cli.Float64Flag{Name: "pixsize-arcsec", Usage: "pixel size in arcseconds", Value: 30},
					&cli.IntFlag{Name: "nthread", Usage: "worker pool size for pointing kernels"},
					&cli.IntFlag{Name: "maxiter", Usage: "PCG iteration count", Value: 25},
					&cli.IntFlag{Name: "downsample", Usage: "sample decimation factor applied before pixelization", Value: 1},
				},
				Action: func(c *cli.Context) error {
					return runMapMaker(c.StringSlice("tod-uri"), c.String("out-uri"), c.Float64("pixsize-arcsec"), c.Int("nthread"), c.Int("maxiter"), c.Int("downsample"))
				},
			},
			{
				Name:  "map-list",
				Usage: "discover TOD containers under a URI, then build a map from all of them",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "uri", Usage: "directory or object-store prefix to search", Required: true},
					&cli.StringFlag{Name: "config-uri", Usage: "TileDB config file for object-store access"},
					&cli.StringFlag{Name: "out-uri", Usage: "output TileDB raster URI", Required: true},
					&cli.Float64Flag{Name: "pixsize-arcsec", Usage: "pixel size in arcseconds", Value: 30},
					&cli.IntFlag{Name: "nthread", Usage: "worker pool size for pointing kernels"},
					&cli.IntFlag{Name: "maxiter", Usage: "PCG iteration count", Value: 25},
					&cli.IntFlag{Name: "downsample", Usage: "sample decimation factor applied before pixelization", Value: 1},
				},
				Action: func(c *cli.Context) error {
					items, err := search.FindTODContainers(c.String("uri"), c.String("config-uri"))
					if err != nil {
						return err
					}
					log.Printf("found %d TOD containers under %s", len(items), c.String("uri"))
					return runMapMaker(items, c.String("out-uri"), c.Float64("pixsize-arcsec"), c.Int("nthread"), c.Int("maxiter"), c.Int("downsample"))
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
