// Command tuyable-shell is an interactive console for a Tuya BLE device.
//
// It drives a built-in simulated device through the full protocol stack
// (framing, encryption, session handshake, datapoint codec), which makes it
// useful for exploring the protocol and for trying out datapoint schemas
// without hardware.
//
// Usage:
//
//	tuyable-shell [flags]
//
// Flags:
//
//	-device-id string   Cloud device identifier (default "shell0000device")
//	-uuid string        Device hardware identifier (default "shell0000uuid000")
//	-local-key string   16-character local key (default "0123456789abcdef")
//	-product string     Product ID from the catalog (default "yrnk7mnn")
//	-schema string      Datapoint schema YAML file (overrides -product)
//	-log-file string    Append protocol events to a CBOR log file
//
// Examples:
//
//	# Drive the default Fingerbot Plus simulation
//	tuyable-shell
//
//	# Use a custom schema and capture a protocol trace
//	tuyable-shell -schema sensor.yaml -log-file trace.cbor
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/tuya-local/tuyable-go/cmd/tuyable-shell/interactive"
	"github.com/tuya-local/tuyable-go/internal/simulator"
	"github.com/tuya-local/tuyable-go/pkg/datapoint"
	"github.com/tuya-local/tuyable-go/pkg/device"
	"github.com/tuya-local/tuyable-go/pkg/log"
	"github.com/tuya-local/tuyable-go/pkg/session"
)

type config struct {
	DeviceID string
	UUID     string
	LocalKey string
	Product  string
	Schema   string
	LogFile  string
}

var cfg config

func init() {
	flag.StringVar(&cfg.DeviceID, "device-id", "shell0000device", "Cloud device identifier")
	flag.StringVar(&cfg.UUID, "uuid", "shell0000uuid000", "Device hardware identifier")
	flag.StringVar(&cfg.LocalKey, "local-key", "0123456789abcdef", "16-character local key")
	flag.StringVar(&cfg.Product, "product", "yrnk7mnn", "Product ID from the catalog")
	flag.StringVar(&cfg.Schema, "schema", "", "Datapoint schema YAML file (overrides -product)")
	flag.StringVar(&cfg.LogFile, "log-file", "", "Append protocol events to a CBOR log file")
}

func main() {
	flag.Parse()

	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "tuyable-shell: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	if len(cfg.LocalKey) != 16 {
		return fmt.Errorf("local key must be 16 characters, got %d", len(cfg.LocalKey))
	}

	schema, product, err := loadSchema()
	if err != nil {
		return err
	}

	var logger log.Logger = log.NoopLogger{}
	if cfg.LogFile != "" {
		fl, err := log.NewFileLogger(cfg.LogFile)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		defer fl.Close()
		logger = fl
	}

	sim, err := simulator.New(simulator.Config{
		DeviceID: cfg.DeviceID,
		UUID:     cfg.UUID,
		LocalKey: []byte(cfg.LocalKey),
		Schema:   schema,
	})
	if err != nil {
		return fmt.Errorf("create simulated device: %w", err)
	}
	seedSimulator(sim, schema, product)

	sess, err := session.New(session.Config{
		DeviceID:  cfg.DeviceID,
		UUID:      cfg.UUID,
		LocalKey:  []byte(cfg.LocalKey),
		Transport: sim,
		Address:   "simulated",
		Logger:    logger,
	})
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}

	dev, err := device.New(device.Config{
		ID:      cfg.DeviceID,
		Schema:  schema,
		Link:    sess,
		Product: product,
		Logger:  logger,
	})
	if err != nil {
		return fmt.Errorf("create device: %w", err)
	}

	sh, err := interactive.New(dev, sim, schema)
	if err != nil {
		return fmt.Errorf("create shell: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	sh.Run(ctx, cancel)
	return dev.Disconnect()
}

// loadSchema resolves the datapoint schema: an explicit YAML file wins,
// otherwise the product catalog entry.
func loadSchema() (*datapoint.Schema, *device.ProductInfo, error) {
	if cfg.Schema != "" {
		schema, err := datapoint.LoadSchemaFile(cfg.Schema)
		if err != nil {
			return nil, nil, fmt.Errorf("load schema: %w", err)
		}
		product, _ := device.LookupProduct(schema.ProductID())
		return schema, product, nil
	}

	schema, ok := device.FingerbotSchema(cfg.Product)
	if !ok {
		return nil, nil, fmt.Errorf("product %q is not in the catalog (use -schema for custom devices)", cfg.Product)
	}
	product, _ := device.LookupProduct(cfg.Product)
	return schema, product, nil
}

// seedSimulator gives every declared datapoint a plausible starting value so
// the status probe has something to report.
func seedSimulator(sim *simulator.Device, schema *datapoint.Schema, product *device.ProductInfo) {
	for _, id := range schema.IDs() {
		def, _ := schema.Lookup(id)
		switch def.Kind {
		case datapoint.KindBool:
			sim.SetDatapoint(id, datapoint.NewBool(false))
		case datapoint.KindValue:
			sim.SetDatapoint(id, datapoint.NewInt(0))
		case datapoint.KindString:
			sim.SetDatapoint(id, datapoint.NewString(""))
		case datapoint.KindEnum:
			sim.SetDatapoint(id, datapoint.NewEnum(0))
		case datapoint.KindBitmap:
			sim.SetDatapoint(id, datapoint.NewBitmap([]byte{0}))
		case datapoint.KindProgram:
			sim.SetDatapoint(id, datapoint.NewProgram(nil))
		}
	}
	if product != nil && product.Battery != 0 {
		sim.SetDatapoint(product.Battery, datapoint.NewInt(92))
	}
	if product != nil && product.Fingerbot != nil {
		fb := product.Fingerbot
		sim.SetDatapoint(fb.UpPosition, datapoint.NewInt(0))
		sim.SetDatapoint(fb.DownPosition, datapoint.NewInt(80))
		sim.SetDatapoint(fb.HoldTime, datapoint.NewInt(1))
	}
}
