package main

import (
	"context"
	"flag"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.bug.st/serial"

	"strandctl/internal/board"
	"strandctl/internal/config"
	"strandctl/internal/eeprom"
	"strandctl/internal/mirror"
	"strandctl/internal/strip"
	"strandctl/internal/topology"
)

func main() {
	// ---- Flags (remain usable; strand.yaml can override most) ----
	var (
		id         = flag.String("id", "strand0", "board id reported to discovery")
		driver     = flag.String("driver", "sim", "strip driver: spi | term | sim")
		spiPort    = flag.String("spi", "", "SPI port name (empty = first available)")
		store      = flag.String("store", "strand-settings.bin", "settings image path")
		serialDev  = flag.String("serial", "", "serial device for the command transport (empty = stdio)")
		preview    = flag.String("preview", "", "frame mirror listen address (empty = off)")
		configPath = flag.String("config", "strand.yaml", "path to strand.yaml")
		baud       = flag.Int("baud", 115200, "serial baud rate")
		beaconMS   = flag.Int("beacon-ms", board.DefaultBeaconMS, "identity beacon interval (ms)")
	)
	flag.Parse()

	// ---- Logging (stderr; stdout may carry the command protocol) ----
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})

	// ---- Load strand.yaml (optional) ----
	var cfg *config.Config
	if c, err := config.Load(*configPath); err != nil {
		log.Warn().Err(err).Str("path", *configPath).Msg("config load failed; proceeding with flags")
	} else {
		cfg = c
	}

	// ---- Effective params (config overrides flags where set) ----
	eID, eDriver, eSPI := *id, *driver, *spiPort
	eStore, eSerial, ePreview := *store, *serialDev, *preview
	eBaud, eBeacon := *baud, *beaconMS

	if cfg != nil {
		if cfg.ID != "" {
			eID = cfg.ID
		}
		if cfg.Driver != "" {
			eDriver = cfg.Driver
		}
		if cfg.SPIPort != "" {
			eSPI = cfg.SPIPort
		}
		if cfg.Store != "" {
			eStore = cfg.Store
		}
		if cfg.Preview != "" {
			ePreview = cfg.Preview
		}
		if cfg.Serial.Dev != "" {
			eSerial = cfg.Serial.Dev
		}
		if cfg.Serial.Baud != 0 {
			eBaud = cfg.Serial.Baud
		}
		if cfg.BeaconMS != 0 {
			eBeacon = cfg.BeaconMS
		}
	}

	// ---- Topology store (built-in profiles + yaml overrides) ----
	st := topology.NewStore()
	if cfg != nil {
		if err := cfg.Apply(st); err != nil {
			log.Fatal().Err(err).Msg("bad map overrides in config")
		}
	}

	// ---- Settings image ----
	dev, err := eeprom.NewFile(eStore, eeprom.ImageSize)
	if err != nil {
		log.Fatal().Err(err).Str("path", eStore).Msg("settings image unavailable")
	}

	// ---- Driver selection ----
	var drv strip.Driver
	switch eDriver {
	case "sim":
		drv = strip.NewSim()

	case "term":
		drv = strip.OpenTerm(topology.TotalPixels)

	case "spi":
		d, err := strip.OpenNRZ(eSPI, topology.TotalPixels)
		if err != nil {
			log.Warn().Err(err).Str("port", eSPI).Msg("SPI init failed; falling back to SIM")
			drv = strip.NewSim()
			break
		}
		if !d.SPI {
			log.Warn().Str("port", eSPI).Msg("no SPI port found; rendering to the console")
		}
		drv = d

	default:
		log.Warn().Str("driver", eDriver).Msg("unknown driver; using SIM")
		drv = strip.NewSim()
	}

	// ---- Frame mirror (optional, watch-only) ----
	var srv *http.Server
	if ePreview != "" {
		m := mirror.Wrap(drv, topology.TotalPixels)
		drv = m
		mux := http.NewServeMux()
		m.Routes(mux)
		srv = &http.Server{
			Addr:         ePreview,
			Handler:      mux,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		}
		go func() {
			log.Info().Str("addr", ePreview).Msg("frame mirror listening")
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Error().Err(err).Msg("frame mirror crashed")
			}
		}()
	}

	// ---- Command transport: stdio or a serial device ----
	var in io.Reader = os.Stdin
	var out io.Writer = os.Stdout
	if eSerial != "" {
		port, err := serial.Open(eSerial, &serial.Mode{BaudRate: eBaud})
		if err != nil {
			log.Fatal().Err(err).Str("dev", eSerial).Msg("serial transport unavailable")
		}
		defer port.Close()
		in, out = port, port
		log.Info().Str("dev", eSerial).Int("baud", eBaud).Msg("command transport on serial")
	}

	// ---- Controller & control loop ----
	c := board.New(board.Options{
		ID:       eID,
		BeaconMS: uint32(eBeacon),
		Store:    st,
		Strip:    strip.New(topology.TotalPixels, drv),
		Device:   dev,
		Out:      out,
	})
	log.Info().Str("id", eID).Str("driver", eDriver).Str("store", eStore).Msg("strandd starting")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if err := c.Run(ctx, in); err != nil {
		log.Error().Err(err).Msg("control loop failed")
	}
	if srv != nil {
		_ = srv.Close()
	}
}
