// Package interactive provides the interactive command-line interface for
// tuyable-shell.
package interactive

import (
	"context"
	"encoding/hex"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/chzyer/readline"

	"github.com/tuya-local/tuyable-go/internal/simulator"
	"github.com/tuya-local/tuyable-go/pkg/datapoint"
	"github.com/tuya-local/tuyable-go/pkg/device"
	"github.com/tuya-local/tuyable-go/pkg/session"
)

// requestTimeout bounds each command issued from the prompt.
const requestTimeout = 15 * time.Second

// Shell handles interactive mode for tuyable-shell.
type Shell struct {
	dev    *device.Device
	sim    *simulator.Device
	schema *datapoint.Schema
	rl     *readline.Instance
}

// New creates a new interactive shell around a device and its simulated peer.
func New(dev *device.Device, sim *simulator.Device, schema *datapoint.Schema) (*Shell, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "tuya> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create readline: %w", err)
	}

	s := &Shell{
		dev:    dev,
		sim:    sim,
		schema: schema,
		rl:     rl,
	}

	// Report pushes and state changes without clobbering the prompt.
	dev.OnChange(func(id uint8, v datapoint.Value, reported time.Time) {
		fmt.Fprintf(rl.Stdout(), "[PUSH] %s = %s\n", s.dpName(id), v)
	})

	return s, nil
}

// Run starts the interactive command loop.
func (s *Shell) Run(ctx context.Context, cancel context.CancelFunc) {
	defer s.rl.Close()

	s.printHelp()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		line, err := s.rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt {
				continue
			}
			fmt.Fprintln(s.rl.Stdout(), "Exiting...")
			cancel()
			return
		}

		input := strings.TrimSpace(line)
		if input == "" {
			continue
		}

		parts := strings.Fields(input)
		cmd := strings.ToLower(parts[0])
		args := parts[1:]

		switch cmd {
		case "help", "?":
			s.printHelp()

		case "connect", "c":
			s.cmdConnect(ctx)

		case "disconnect":
			s.cmdDisconnect()

		case "state":
			fmt.Fprintf(s.rl.Stdout(), "%s\n", s.dev.State())

		case "info":
			s.cmdInfo()

		case "status", "st":
			s.cmdStatus()

		case "read", "r":
			s.cmdRead(args)

		case "write", "w":
			s.cmdWrite(ctx, args)

		case "refresh":
			s.cmdRefresh(ctx)

		case "battery":
			s.cmdBattery()

		case "program", "p":
			s.cmdProgram(ctx, args)

		case "push":
			s.cmdPush(args)

		case "drop":
			s.sim.DropLink(session.ErrLinkLost)
			fmt.Fprintln(s.rl.Stdout(), "Link dropped")

		case "unbind":
			s.cmdUnbind(ctx)

		case "quit", "exit", "q":
			fmt.Fprintln(s.rl.Stdout(), "Exiting...")
			cancel()
			return

		default:
			fmt.Fprintf(s.rl.Stdout(), "Unknown command: %s (type 'help' for commands)\n", cmd)
		}
	}
}

func (s *Shell) printHelp() {
	fmt.Fprintln(s.rl.Stdout(), `
Tuya BLE Shell Commands:
  Session:
    connect            - Connect and run the key handshake
    disconnect         - Tear the session down
    state              - Show session state
    info               - Show what the device reported about itself

  Datapoints:
    status             - Show all cached datapoint values
    read <dp>          - Show one cached datapoint (ID or name)
    write <dp> <val>   - Write a datapoint (ID or name)
    refresh            - Ask the device to re-report everything
    battery            - Show battery percentage
    program [text]     - Show or set the actuator program, e.g. 50/3;100

  Simulated Device:
    push <dp> <val>    - Make the device push a datapoint change
    drop               - Drop the link from the device side
    unbind             - Unbind from the device

  General:
    help               - Show this help
    quit               - Exit`)
}

func (s *Shell) cmdConnect(ctx context.Context) {
	cctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	if err := s.dev.Connect(cctx); err != nil {
		fmt.Fprintf(s.rl.Stdout(), "Connect failed: %v\n", err)
		return
	}
	info := s.dev.Info()
	fmt.Fprintf(s.rl.Stdout(), "Connected (firmware %s, protocol %s)\n",
		info.DeviceVersion, info.ProtocolVersion)
}

func (s *Shell) cmdDisconnect() {
	if err := s.dev.Disconnect(); err != nil {
		fmt.Fprintf(s.rl.Stdout(), "Disconnect failed: %v\n", err)
		return
	}
	fmt.Fprintln(s.rl.Stdout(), "Disconnected")
}

func (s *Shell) cmdInfo() {
	if s.dev.State() != session.StateReady {
		fmt.Fprintln(s.rl.Stdout(), "Not connected")
		return
	}
	info := s.dev.Info()
	fmt.Fprintf(s.rl.Stdout(), "Firmware:  %s\n", info.DeviceVersion)
	fmt.Fprintf(s.rl.Stdout(), "Protocol:  %s\n", info.ProtocolVersion)
	fmt.Fprintf(s.rl.Stdout(), "Hardware:  %s\n", info.HardwareVersion)
	fmt.Fprintf(s.rl.Stdout(), "Bound:     %v\n", info.Bound)
	if p := s.dev.Product(); p != nil {
		fmt.Fprintf(s.rl.Stdout(), "Product:   %s (%s)\n", p.Name, p.Category)
	}
}

func (s *Shell) cmdStatus() {
	dps := s.dev.Datapoints()
	if len(dps) == 0 {
		fmt.Fprintln(s.rl.Stdout(), "No datapoints cached (connect first)")
		return
	}

	ids := make([]int, 0, len(dps))
	for id := range dps {
		ids = append(ids, int(id))
	}
	sort.Ints(ids)

	for _, id := range ids {
		fmt.Fprintf(s.rl.Stdout(), "  %3d %-16s %s\n", id, s.dpName(uint8(id)), dps[uint8(id)])
	}
	if last := s.dev.LastReport(); !last.IsZero() {
		fmt.Fprintf(s.rl.Stdout(), "Last report: %s\n", last.Format(time.RFC3339))
	}
}

func (s *Shell) cmdRead(args []string) {
	if len(args) < 1 {
		fmt.Fprintln(s.rl.Stdout(), "Usage: read <dp>")
		return
	}

	id, ok := s.resolveDP(args[0])
	if !ok {
		fmt.Fprintf(s.rl.Stdout(), "Unknown datapoint: %s\n", args[0])
		return
	}

	v, ok := s.dev.Datapoint(id)
	if !ok {
		fmt.Fprintf(s.rl.Stdout(), "%s: no cached value\n", s.dpName(id))
		return
	}
	fmt.Fprintf(s.rl.Stdout(), "%s = %s\n", s.dpName(id), v)
}

func (s *Shell) cmdWrite(ctx context.Context, args []string) {
	if len(args) < 2 {
		fmt.Fprintln(s.rl.Stdout(), "Usage: write <dp> <value>")
		fmt.Fprintln(s.rl.Stdout(), "  Example: write switch true")
		return
	}

	id, ok := s.resolveDP(args[0])
	if !ok {
		fmt.Fprintf(s.rl.Stdout(), "Unknown datapoint: %s\n", args[0])
		return
	}

	v, err := s.parseValue(id, strings.Join(args[1:], " "))
	if err != nil {
		fmt.Fprintf(s.rl.Stdout(), "Bad value: %v\n", err)
		return
	}

	cctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	if err := s.dev.Write(cctx, id, v); err != nil {
		fmt.Fprintf(s.rl.Stdout(), "Write failed: %v\n", err)
		return
	}
	fmt.Fprintf(s.rl.Stdout(), "%s = %s\n", s.dpName(id), v)
}

func (s *Shell) cmdRefresh(ctx context.Context) {
	cctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	if err := s.dev.Refresh(cctx); err != nil {
		fmt.Fprintf(s.rl.Stdout(), "Refresh failed: %v\n", err)
		return
	}
	fmt.Fprintln(s.rl.Stdout(), "Status requested")
}

func (s *Shell) cmdBattery() {
	pct, err := s.dev.BatteryPercent()
	if err != nil {
		fmt.Fprintf(s.rl.Stdout(), "Error: %v\n", err)
		return
	}
	fmt.Fprintf(s.rl.Stdout(), "Battery: %d%%\n", pct)
}

func (s *Shell) cmdProgram(ctx context.Context, args []string) {
	if len(args) == 0 {
		text, err := s.dev.ProgramText()
		if err != nil {
			fmt.Fprintf(s.rl.Stdout(), "Error: %v\n", err)
			return
		}
		fmt.Fprintf(s.rl.Stdout(), "Program: %s\n", text)
		return
	}

	cctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	if err := s.dev.SetProgramText(cctx, args[0]); err != nil {
		fmt.Fprintf(s.rl.Stdout(), "Error: %v\n", err)
		return
	}
	fmt.Fprintf(s.rl.Stdout(), "Program set to %s\n", args[0])
}

// cmdPush makes the simulated device report a value on its own, the way
// hardware reports a button press or a sensor reading.
func (s *Shell) cmdPush(args []string) {
	if len(args) < 2 {
		fmt.Fprintln(s.rl.Stdout(), "Usage: push <dp> <value>")
		return
	}

	id, ok := s.resolveDP(args[0])
	if !ok {
		fmt.Fprintf(s.rl.Stdout(), "Unknown datapoint: %s\n", args[0])
		return
	}

	v, err := s.parseValue(id, strings.Join(args[1:], " "))
	if err != nil {
		fmt.Fprintf(s.rl.Stdout(), "Bad value: %v\n", err)
		return
	}

	s.sim.SetDatapoint(id, v)
	if err := s.sim.PushDatapoints(datapoint.Update{ID: id, Value: v}); err != nil {
		fmt.Fprintf(s.rl.Stdout(), "Push failed: %v\n", err)
	}
}

func (s *Shell) cmdUnbind(ctx context.Context) {
	cctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	if err := s.dev.Unbind(cctx); err != nil {
		fmt.Fprintf(s.rl.Stdout(), "Unbind failed: %v\n", err)
		return
	}
	fmt.Fprintln(s.rl.Stdout(), "Unbound")
}

// resolveDP accepts a numeric datapoint ID or a schema name.
func (s *Shell) resolveDP(arg string) (uint8, bool) {
	if n, err := strconv.ParseUint(arg, 10, 8); err == nil {
		return uint8(n), true
	}
	for _, id := range s.schema.IDs() {
		def, _ := s.schema.Lookup(id)
		if strings.EqualFold(def.Name, arg) {
			return id, true
		}
	}
	return 0, false
}

// dpName renders a datapoint ID with its schema name when one is declared.
func (s *Shell) dpName(id uint8) string {
	if def, ok := s.schema.Lookup(id); ok && def.Name != "" {
		return def.Name
	}
	return fmt.Sprintf("dp_%d", id)
}

// parseValue interprets the argument according to the datapoint's declared
// kind: bools and ints literally, enums by symbol or index, bitmaps and raw
// values as hex.
func (s *Shell) parseValue(id uint8, arg string) (datapoint.Value, error) {
	def, ok := s.schema.Lookup(id)
	if !ok {
		return datapoint.Value{}, fmt.Errorf("datapoint %d is not in the schema", id)
	}

	switch def.Kind {
	case datapoint.KindBool:
		b, err := strconv.ParseBool(arg)
		if err != nil {
			return datapoint.Value{}, fmt.Errorf("expected true/false: %w", err)
		}
		return datapoint.NewBool(b), nil

	case datapoint.KindValue:
		n, err := strconv.ParseInt(arg, 10, 32)
		if err != nil {
			return datapoint.Value{}, fmt.Errorf("expected integer: %w", err)
		}
		return datapoint.NewInt(int32(n)), nil

	case datapoint.KindString:
		return datapoint.NewString(strings.Trim(arg, "\"'")), nil

	case datapoint.KindEnum:
		for i, sym := range def.Values {
			if strings.EqualFold(sym, arg) {
				return datapoint.NewEnum(uint32(i)), nil
			}
		}
		n, err := strconv.ParseUint(arg, 10, 32)
		if err != nil {
			return datapoint.Value{}, fmt.Errorf("expected one of %v", def.Values)
		}
		return datapoint.NewEnum(uint32(n)), nil

	case datapoint.KindBitmap:
		data, err := hex.DecodeString(arg)
		if err != nil {
			return datapoint.Value{}, fmt.Errorf("expected hex: %w", err)
		}
		return datapoint.NewBitmap(data), nil

	case datapoint.KindProgram:
		steps, err := datapoint.ParseProgramText(arg)
		if err != nil {
			return datapoint.Value{}, err
		}
		return datapoint.NewProgram(steps), nil

	default:
		data, err := hex.DecodeString(arg)
		if err != nil {
			return datapoint.Value{}, fmt.Errorf("expected hex: %w", err)
		}
		return datapoint.NewRaw(data), nil
	}
}
