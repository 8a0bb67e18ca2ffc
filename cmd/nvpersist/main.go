// Command nvpersist is an interactive shell over a single file-backed
// persist region: open (or create) a database directory, then issue
// SAVE/LOAD/LOADLEGACY/DUMP/RESTORE commands against it and watch
// .stats change as the ring advances.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"

	"github.com/flashlog/nvpersist/pkg/config"
	"github.com/flashlog/nvpersist/pkg/geometry"
	"github.com/flashlog/nvpersist/pkg/memory"
	"github.com/flashlog/nvpersist/pkg/persist"
	"github.com/flashlog/nvpersist/pkg/snapshot"
	"github.com/flashlog/nvpersist/pkg/stats"
	"github.com/flashlog/nvpersist/pkg/telemetry"
)

var completer = readline.NewPrefixCompleter(
	readline.PcItem(".help"),
	readline.PcItem(".stats"),
	readline.PcItem(".exit"),
	readline.PcItem("SAVE"),
	readline.PcItem("LOAD"),
	readline.PcItem("LOADLEGACY"),
	readline.PcItem("DUMP"),
	readline.PcItem("RESTORE"),
)

const helpText = `
nvpersist - wear-leveling persistent record store demo shell

Commands:
  .help                 - Show this help message
  .stats                - Show operation counts, latency, and byte traffic
  .exit                 - Exit the shell

  SAVE text             - Persist text as the payload (padded/truncated to
                           the configured payload size)
  LOAD                  - Print the current payload
  LOADLEGACY            - Load via the legacy fallback path (requires
                           -legacy-version and -legacy-payload-size)
  DUMP path              - Write a compressed snapshot of the region to path
  RESTORE path           - Overwrite the region from a snapshot at path
`

func main() {
	regionSize := flag.Uint("region-size", 0, "override the default region size in bytes when creating a new database")
	payloadSize := flag.Uint("payload-size", 0, "override the default payload size in bytes when creating a new database")
	legacyVersion := flag.Uint("legacy-version", 0, "enable LOADLEGACY by naming an older schema's version tag byte (0 disables)")
	legacyPayloadSize := flag.Uint("legacy-payload-size", 0, "payload size of the legacy schema LOADLEGACY migrates from")

	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: nvpersist [options] <database-dir>\n\n")
		fmt.Fprintf(flag.CommandLine.Output(), "Opens (or creates) a file-backed persist region and starts an interactive shell.\n\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(1)
	}
	dbPath := flag.Arg(0)

	cfg, err := openOrCreateConfig(dbPath, uint32(*regionSize), uint32(*payloadSize))
	if err != nil {
		fmt.Fprintf(os.Stderr, "error preparing database: %s\n", err)
		os.Exit(1)
	}

	backend, err := memory.OpenFileBackend(cfg.BackendPath, cfg.RegionSize, cfg.EraseGranularity, cfg.WriteGranularity, cfg.FillByte)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error opening backend: %s\n", err)
		os.Exit(1)
	}
	defer backend.Close()

	geom, err := cfg.Geometry()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error computing geometry: %s\n", err)
		os.Exit(1)
	}

	var collector stats.Collector
	if cfg.StatsEnabled {
		collector = stats.NewCollector()
	}

	tel := telemetry.NewNoop()
	if cfg.TelemetryEnabled {
		if t, err := telemetry.New(telemetry.DefaultConfig()); err != nil {
			fmt.Fprintf(os.Stderr, "warning: telemetry disabled: %s\n", err)
		} else {
			tel = t
		}
	}

	opts := []persist.Option{persist.WithTelemetry(tel)}
	if collector != nil {
		opts = append(opts, persist.WithStats(collector))
	}

	store, err := persist.New(backend, geom, cfg.VersionTag, opts...)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error constructing store: %s\n", err)
		os.Exit(1)
	}

	result, err := store.Init()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error initializing store: %s\n", err)
		os.Exit(1)
	}
	fmt.Printf("opened %s (%d blocks, %d-byte payload): %s\n", dbPath, geom.Count, geom.PayloadSize, result)

	var legacyStore *persist.Store
	if *legacyVersion != 0 {
		legacyGeom, err := geometry.New(cfg.RegionSize, cfg.EraseGranularity, cfg.WriteGranularity, uint32(*legacyPayloadSize), cfg.FillByte)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error computing legacy geometry: %s\n", err)
			os.Exit(1)
		}
		legacyStore, err = persist.New(backend, legacyGeom, byte(*legacyVersion))
		if err != nil {
			fmt.Fprintf(os.Stderr, "error constructing legacy store: %s\n", err)
			os.Exit(1)
		}
	}

	runInteractive(store, legacyStore, collector, backend, geom)
}

// openOrCreateConfig loads the manifest at dbPath if one exists, or builds
// and saves a default one sized by regionSize/payloadSize (zero meaning
// "use the default").
func openOrCreateConfig(dbPath string, regionSize, payloadSize uint32) (*config.Config, error) {
	cfg, err := config.LoadConfigFromManifest(dbPath)
	if err == nil {
		return cfg, nil
	}
	if !errors.Is(err, config.ErrManifestNotFound) {
		return nil, err
	}

	cfg = config.NewDefaultConfig(filepath.Join(dbPath, "region.bin"))
	if regionSize != 0 {
		cfg.RegionSize = regionSize
	}
	if payloadSize != 0 {
		cfg.PayloadSize = payloadSize
	}
	if err := cfg.SaveManifest(dbPath); err != nil {
		return nil, err
	}
	return cfg, nil
}

func runInteractive(store, legacyStore *persist.Store, collector stats.Collector, backend memory.Backend, geom geometry.Geometry) {
	fmt.Println("Enter .help for usage hints.")

	historyFile := filepath.Join(os.TempDir(), ".nvpersist_history")
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "nvpersist> ",
		HistoryFile:     historyFile,
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
		AutoComplete:    completer,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "error initializing readline: %s\n", err)
		os.Exit(1)
	}
	defer rl.Close()

	for {
		line, readErr := rl.Readline()
		if readErr != nil {
			if readErr == readline.ErrInterrupt {
				if line == "" {
					break
				}
				continue
			}
			if readErr == io.EOF {
				fmt.Println("Goodbye!")
				break
			}
			fmt.Fprintf(os.Stderr, "error reading input: %s\n", readErr)
			continue
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		parts := strings.Fields(line)
		switch strings.ToUpper(parts[0]) {
		case ".HELP":
			fmt.Print(helpText)

		case ".EXIT":
			fmt.Println("Goodbye!")
			return

		case ".STATS":
			if collector == nil {
				fmt.Println("stats collection is disabled for this database")
				continue
			}
			for key, value := range collector.GetStats() {
				fmt.Printf("  %s: %v\n", key, value)
			}

		case "SAVE":
			if len(parts) < 2 {
				fmt.Println("usage: SAVE <text>")
				continue
			}
			payload := makePayload(strings.Join(parts[1:], " "), geom.PayloadSize, geom.FillByte)
			result, err := store.Save(payload)
			if err != nil {
				fmt.Fprintf(os.Stderr, "save failed: %s\n", err)
				continue
			}
			fmt.Printf("save: %s\n", result)

		case "LOAD":
			buf := make([]byte, geom.PayloadSize)
			result, err := store.Load(buf)
			if err != nil {
				fmt.Fprintf(os.Stderr, "load failed: %s\n", err)
				continue
			}
			fmt.Printf("load: %s payload=%q\n", result, trimFill(buf, geom.FillByte))

		case "LOADLEGACY":
			if legacyStore == nil {
				fmt.Println("LOADLEGACY requires -legacy-version and -legacy-payload-size at startup")
				continue
			}
			buf := make([]byte, geom.PayloadSize)
			result, err := persist.LoadLegacy(store, legacyStore, buf, func(old, dst []byte) error {
				n := copy(dst, old)
				for i := n; i < len(dst); i++ {
					dst[i] = geom.FillByte
				}
				return nil
			})
			if err != nil {
				fmt.Fprintf(os.Stderr, "loadlegacy failed: %s\n", err)
				continue
			}
			fmt.Printf("loadlegacy: %s payload=%q\n", result, trimFill(buf, geom.FillByte))

		case "DUMP":
			if len(parts) < 2 {
				fmt.Println("usage: DUMP <path>")
				continue
			}
			if err := dumpTo(parts[1], backend); err != nil {
				fmt.Fprintf(os.Stderr, "dump failed: %s\n", err)
				continue
			}
			fmt.Printf("dumped region to %s\n", parts[1])

		case "RESTORE":
			if len(parts) < 2 {
				fmt.Println("usage: RESTORE <path>")
				continue
			}
			if err := restoreFrom(parts[1], backend); err != nil {
				fmt.Fprintf(os.Stderr, "restore failed: %s\n", err)
				continue
			}
			if _, err := store.Init(); err != nil {
				fmt.Fprintf(os.Stderr, "re-init after restore failed: %s\n", err)
				continue
			}
			fmt.Println("restored and re-initialized")

		default:
			fmt.Printf("unknown command: %s (try .help)\n", parts[0])
		}
	}
}

func makePayload(text string, size uint32, fill byte) []byte {
	buf := make([]byte, size)
	for i := range buf {
		buf[i] = fill
	}
	copy(buf, text)
	return buf
}

func trimFill(buf []byte, fill byte) []byte {
	end := len(buf)
	for end > 0 && buf[end-1] == fill {
		end--
	}
	return buf[:end]
}

func dumpTo(path string, backend memory.Backend) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	d, err := snapshot.NewDumper()
	if err != nil {
		return err
	}
	defer d.Close()

	return d.Dump(f, backend)
}

func restoreFrom(path string, backend memory.Backend) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	d, err := snapshot.NewDumper()
	if err != nil {
		return err
	}
	defer d.Close()

	return d.Restore(f, backend)
}
