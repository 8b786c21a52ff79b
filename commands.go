package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/nixxel-company-limited/escpos-receipt-printer/adapter"
	"github.com/nixxel-company-limited/escpos-receipt-printer/api"
	"github.com/nixxel-company-limited/escpos-receipt-printer/config"
	"github.com/nixxel-company-limited/escpos-receipt-printer/logger"
	"github.com/nixxel-company-limited/escpos-receipt-printer/printer"
	"github.com/nixxel-company-limited/escpos-receipt-printer/receipt"
	"github.com/nixxel-company-limited/escpos-receipt-printer/relay"
	"github.com/nixxel-company-limited/escpos-receipt-printer/store"
)

// setup loads configuration and builds the logger every command needs.
func setup(c *cli.Context) (*config.Config, *logger.Logger, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, nil, err
	}
	log, err := logger.New(logger.Config{
		Level:       cfg.Log.Level,
		Development: cfg.Log.Development,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("create logger: %w", err)
	}
	return cfg, log, nil
}

func newOrchestrator(cfg *config.Config, log *logger.Logger, opts ...printer.Option) (*printer.Orchestrator, error) {
	strategies, err := printer.Strategies(cfg.Printer)
	if err != nil {
		return nil, err
	}
	return printer.New(strategies, append([]printer.Option{printer.WithLogger(log)}, opts...)...), nil
}

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "run the HTTP print API",
		Action: func(c *cli.Context) error {
			cfg, log, err := setup(c)
			if err != nil {
				return err
			}
			defer log.Sync()

			var (
				opts  []printer.Option
				sales api.SaleSource
			)
			if cfg.Database.URL != "" {
				pool, err := store.Connect(c.Context, cfg.Database.URL)
				if err != nil {
					return err
				}
				defer pool.Close()

				if err := store.Migrate(c.Context, pool); err != nil {
					return err
				}
				opts = append(opts, printer.WithRecorder(store.NewPrintLog(pool)))
				sales = store.NewSaleRepository(pool, cfg.Store.Name, cfg.Store.Currency)
				log.Infow("database connected")
			}

			orchestrator, err := newOrchestrator(cfg, log, opts...)
			if err != nil {
				return err
			}

			srv := &http.Server{
				Addr: cfg.HTTP.Address,
				Handler: api.NewRouter(api.RouterConfig{
					Printer: orchestrator,
					Sales:   sales,
					Logger:  log,
				}),
				ReadHeaderTimeout: 10 * time.Second,
			}

			errCh := make(chan error, 1)
			go func() {
				log.Infow("http server listening", "address", cfg.HTTP.Address)
				errCh <- srv.ListenAndServe()
			}()

			select {
			case err := <-errCh:
				if !errors.Is(err, http.ErrServerClosed) {
					return fmt.Errorf("http server: %w", err)
				}
				return nil
			case <-c.Context.Done():
			}

			log.Infow("shutting down")
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return srv.Shutdown(ctx)
		},
	}
}

func relayCommand() *cli.Command {
	return &cli.Command{
		Name:  "relay",
		Usage: "share the attached USB printer on the network (raw 9100 or HTTP POST)",
		Action: func(c *cli.Context) error {
			cfg, log, err := setup(c)
			if err != nil {
				return err
			}
			defer log.Sync()

			match, err := printer.USBMatch(cfg.Printer.USB)
			if err != nil {
				return err
			}
			device, err := adapter.OpenUSBPrinter(match)
			if err != nil {
				return err
			}
			defer device.Close()
			log.Infow("printer found", "device", device.Info().String())

			srv := relay.New(device, cfg.Relay.Address, log)
			go func() {
				<-c.Context.Done()
				if err := srv.Stop(); err != nil {
					log.Errorw("relay stop failed", "error", err)
				}
			}()
			return srv.Start()
		},
	}
}

func printCommand() *cli.Command {
	return &cli.Command{
		Name:      "print",
		Usage:     "print a sale receipt from a JSON file",
		ArgsUsage: "<receipt.json>",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "raw",
				Usage: "send the file as a pre-formatted ESC/POS payload",
			},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return cli.Exit("expected exactly one file argument", 2)
			}
			cfg, log, err := setup(c)
			if err != nil {
				return err
			}
			defer log.Sync()

			data, err := os.ReadFile(c.Args().First())
			if err != nil {
				return err
			}

			orchestrator, err := newOrchestrator(cfg, log)
			if err != nil {
				return err
			}

			var res *printer.Result
			if c.Bool("raw") {
				res, err = orchestrator.PrintRaw(c.Context, data)
			} else {
				r, perr := decodeReceipt(data, cfg.Store)
				if perr != nil {
					return perr
				}
				res, err = orchestrator.Print(c.Context, r)
			}

			fmt.Fprintln(c.App.Writer, printer.Describe(res, err))
			if err != nil {
				return cli.Exit("", 1)
			}
			return nil
		},
	}
}

// decodeReceipt parses a sale, filling the store name and currency from
// configuration when the file leaves them out.
func decodeReceipt(data []byte, defaults config.Store) (receipt.SaleReceipt, error) {
	var r receipt.SaleReceipt
	if err := json.Unmarshal(data, &r); err != nil {
		return r, fmt.Errorf("decode receipt: %w", err)
	}
	if r.StoreName == "" {
		r.StoreName = defaults.Name
	}
	if r.Currency == "" {
		r.Currency = defaults.Currency
	}
	return r, receipt.Validate(r)
}

func probeCommand() *cli.Command {
	return &cli.Command{
		Name:  "probe",
		Usage: "report which print strategies are usable on this machine",
		Action: func(c *cli.Context) error {
			cfg, log, err := setup(c)
			if err != nil {
				return err
			}
			defer log.Sync()

			strategies, err := printer.Strategies(cfg.Printer)
			if err != nil {
				return err
			}
			w := c.App.Writer
			for _, s := range strategies {
				state := "unavailable"
				if s.Available(c.Context) {
					state = "available"
				}
				fmt.Fprintf(w, "%-8s %s\n", s.Name(), state)
			}

			match, err := printer.USBMatch(cfg.Printer.USB)
			if err != nil {
				return err
			}
			if devices, err := adapter.FindUSBPrinters(match); err == nil {
				for _, d := range devices {
					fmt.Fprintf(w, "usb printer: %s\n", d)
				}
			} else {
				log.Warnw("usb enumeration failed", "error", err)
			}
			if ports, err := adapter.SerialPorts(); err == nil {
				for _, p := range ports {
					fmt.Fprintf(w, "serial port: %s\n", p)
				}
			}
			return nil
		},
	}
}
