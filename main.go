package main

import (
	"fmt"
	"github.com/alecthomas/kong"
	"github.com/hauke96/sigolo/v2"
	"github.com/paulmach/orb"
	"os"
	"runtime/pprof"
	"strings"
	"vex/importing"
	"vex/query"
	"vex/storage"
)

const VERSION = "v0.1.0"

var cli struct {
	Logging              string      `help:"Logging verbosity." enum:"info,debug,trace" short:"l" default:"info"`
	Version              VersionFlag `help:"Print version information and quit" name:"version" short:"v"`
	DiagnosticsProfiling bool        `help:"Enable profiling and write results to ./profiling.prof."`
	Load                 struct {
		Database string `help:"The database directory, or 'memory' for shared-memory backing." placeholder:"<database>" arg:""`
		Input    string `help:"The input file. Either .osm or .osm.pbf." placeholder:"<input-file>" arg:"" type:"existingfile"`
	} `cmd:"" help:"Loads the given OSM file into the database, replacing previous contents."`
	Query struct {
		Database string  `help:"The database directory, or 'memory' for shared-memory backing." placeholder:"<database>" arg:""`
		MinLat   float64 `help:"Minimum latitude of the bounding box." arg:""`
		MinLon   float64 `help:"Minimum longitude of the bounding box." arg:""`
		MaxLat   float64 `help:"Maximum latitude of the bounding box." arg:""`
		MaxLon   float64 `help:"Maximum longitude of the bounding box." arg:""`
		Output   string  `help:"The output PBF file." short:"o" default:"out.pbf"`
	} `cmd:"" help:"Writes all ways starting in the bounding box, and their nodes, to a PBF file."`
	Dump struct {
		Database string `help:"The database directory, or 'memory' for shared-memory backing." placeholder:"<database>" arg:""`
		Output   string `help:"The output file." short:"o" default:"out.vexbin"`
	} `cmd:"" help:"Writes all ways and their nodes as a compact binary stream."`
}

type VersionFlag string

func (v VersionFlag) Decode(ctx *kong.DecodeContext) error { return nil }
func (v VersionFlag) IsBool() bool                         { return true }
func (v VersionFlag) BeforeApply(app *kong.Kong, vars kong.Vars) error {
	fmt.Println(vars["version"])
	app.Exit(0)
	return nil
}

func main() {
	ctx := kong.Parse(
		&cli,
		kong.Name("vex"),
		kong.Description("A geographic storage engine for OSM data with bounding-box queries."),
		kong.Vars{
			"version": VERSION,
		},
	)

	if strings.ToLower(cli.Logging) == "debug" {
		sigolo.SetDefaultLogLevel(sigolo.LOG_DEBUG)
	} else if strings.ToLower(cli.Logging) == "trace" {
		sigolo.SetDefaultLogLevel(sigolo.LOG_TRACE)
	} else if strings.ToLower(cli.Logging) == "info" {
		sigolo.SetDefaultLogLevel(sigolo.LOG_INFO)
		sigolo.SetDefaultFormatFunctionAll(sigolo.LogPlain)
	} else {
		sigolo.SetDefaultFormatFunctionAll(sigolo.LogPlain)
		sigolo.Fatalf("Unknown logging level '%s'", cli.Logging)
	}

	if cli.DiagnosticsProfiling {
		sigolo.Info("Activate CPU profiling")

		f, err := os.Create("profiling.prof")
		sigolo.FatalCheck(err)

		err = pprof.StartCPUProfile(f)
		sigolo.FatalCheck(err)
		defer pprof.StopCPUProfile()
	}

	switch ctx.Command() {
	case "load <database> <input>":
		db, lock := open(cli.Load.Database)
		err := importing.Import(cli.Load.Input, db, lock)
		sigolo.FatalCheck(err)
		sigolo.FatalCheck(db.Close())
	case "query <database> <min-lat> <min-lon> <max-lat> <max-lon>":
		db, lock := open(cli.Query.Database)
		bbox := orb.Bound{
			Min: orb.Point{cli.Query.MinLon, cli.Query.MinLat},
			Max: orb.Point{cli.Query.MaxLon, cli.Query.MaxLat},
		}
		err := query.Execute(db, lock, bbox, cli.Query.Output)
		sigolo.FatalCheck(err)
		sigolo.FatalCheck(db.Close())
	case "dump <database>":
		db, lock := open(cli.Dump.Database)
		err := query.Dump(db, lock, cli.Dump.Output)
		sigolo.FatalCheck(err)
		sigolo.FatalCheck(db.Close())
	default:
		sigolo.Errorf("Unknown command '%s'", ctx.Command())
	}
}

func open(databasePath string) (*storage.Database, *storage.Lock) {
	db, err := storage.Open(databasePath, storage.DefaultLimits())
	sigolo.FatalCheck(err)

	lock, err := storage.OpenLock(storage.DefaultLockPath)
	sigolo.FatalCheck(err)

	return db, lock
}
