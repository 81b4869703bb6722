package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"sync/atomic"
	"time"

	"github.com/spf13/cobra"

	"sensornode-go/errcode"
	"sensornode-go/platform"
	"sensornode-go/rtc"
	"sensornode-go/services/config"
	"sensornode-go/services/node"
	"sensornode-go/services/resetman"
	"sensornode-go/services/terminal"
	"sensornode-go/store"
	"sensornode-go/types"
	"sensornode-go/x/logx"
)

var (
	device    string
	storePath string
	reseed    bool
	duration  time.Duration
	maxResets int
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Boot the node and run its main loop",
	Long: `Boot the node and run until interrupted, until --duration elapses or
until more than --max-resets software resets have happened.

A software reset (terminal "reload", the error handler, the watchdog)
reboots the node against the same store and RTC, so the reset record
and the persisted configuration carry over. With --store the store also
survives the process.`,
	RunE: runRun,
}

func init() {
	runCmd.Flags().StringVarP(&device, "device", "d", "", "Serial device for the uplink (frames are discarded when empty)")
	runCmd.Flags().StringVarP(&storePath, "store", "s", "", "File backing the configuration store (in memory when empty)")
	runCmd.Flags().BoolVar(&reseed, "reseed", false, "Write the profile into an existing store file")
	runCmd.Flags().DurationVar(&duration, "duration", 0, "Stop after this long (0 runs until interrupted)")
	runCmd.Flags().IntVar(&maxResets, "max-resets", 8, "Stop after this many software resets")
	rootCmd.AddCommand(runCmd)
}

// sim carries what outlives a single boot.
type sim struct {
	st    store.Store
	clk   *platform.SoftRTC
	i2c   *platform.HostI2C
	adc   *platform.HostADC
	link  interface{ Close() error }
	board node.Board
	log   *logx.Logger

	current atomic.Pointer[node.Node]
}

func runRun(cmd *cobra.Command, args []string) error {
	log := logx.New("sim", types.SevInfo)

	p, err := loadProfile(moduleNames())
	if err != nil {
		return err
	}

	st, fresh, err := openStore(storePath)
	if err != nil {
		return err
	}

	s := &sim{
		st:  st,
		clk: platform.NewSoftRTC(rtc.Epoch, nil),
		i2c: &platform.HostI2C{Respond: platform.SHTC3(p.Sim.TemperatureMilliC, p.Sim.HumidityX100)},
		adc: &platform.HostADC{},
		log: log,
	}
	s.adc.Set(p.Sim.BatteryRaw)
	s.board = node.Board{
		Store: s.st,
		RTC:   s.clk,
		Mask:  &platform.Mask{},
		I2C:   s.i2c,
		ADC:   s.adc,
	}
	if device != "" {
		sp, err := platform.OpenSerial(device, p.Sim.Baud)
		if err != nil {
			return errcode.Wrap(errcode.NotReady, "nodesim.open", err)
		}
		s.board.Link, s.link = sp, sp
		log.Printf("uplink on %s at %d baud", device, p.Sim.Baud)
	} else {
		s.board.Link = &platform.NullPort{}
	}
	defer s.close()

	if fresh || reseed {
		if err := config.Seed(p, s.boot(resetman.ReasonUnknown).Registry); err != nil {
			return err
		}
		log.Printf("profile %q written to store", profileName)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, duration)
		defer cancel()
	}

	go platform.ReadLines(ctx, os.Stdin, func(line string) bool {
		if n := s.current.Load(); n != nil {
			return n.Submit(line, terminal.Local)
		}
		return false
	})

	return s.loop(ctx)
}

// boot builds a node for the next power cycle. Nothing runs until Boot.
func (s *sim) boot(cause resetman.Reason) *node.Node {
	b := s.board
	b.Watchdog = &platform.Watchdog{}
	b.Cause = cause
	b.Reset = func() { s.log.Printf("software reset") }
	n := node.New(b)
	s.current.Store(n)
	return n
}

func (s *sim) loop(ctx context.Context) error {
	cause := platform.ResetCause()
	for resets := 0; ; resets++ {
		n := s.boot(cause)
		err := n.Boot()
		if err == nil {
			err = n.Run(ctx)
		}
		switch {
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			st := n.Scheduler.Stats()
			s.log.Printf("stopped after %d periods, %d resets", st.Periods, resets)
			return nil
		case errcode.Of(err) != errcode.Reset:
			return err
		case resets >= maxResets:
			return &errcode.E{C: errcode.Reset, Op: "nodesim.run", Msg: "too many resets"}
		}
		cause = resetman.ReasonUnknown
	}
}

func (s *sim) close() {
	s.clk.StopAlarm()
	if s.link != nil {
		s.link.Close()
	}
}

// openStore opens the file backed store, or an in-memory one when path is
// empty. fresh reports a store with no prior contents.
func openStore(path string) (store.Store, bool, error) {
	if path == "" {
		return store.NewEEPROM(), true, nil
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, false, errcode.Wrap(errcode.LoadFailed, "nodesim.store", err)
	}
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, false, errcode.Wrap(errcode.LoadFailed, "nodesim.store", err)
	}
	st, err := store.OpenEEPROM(f)
	if err != nil {
		f.Close()
		return nil, false, err
	}
	return st, fi.Size() == 0, nil
}

// moduleNames lists the modules a node registers, for profile validation.
func moduleNames() []string {
	return node.New(node.Board{
		Store: store.NewEEPROM(),
		RTC:   platform.NewSoftRTC(rtc.Epoch, nil),
		Mask:  &platform.Mask{},
		I2C:   &platform.HostI2C{},
		ADC:   &platform.HostADC{},
	}).Names()
}

func loadProfile(known []string) (*config.Profile, error) {
	p, err := config.Load(profileName)
	if err != nil {
		return nil, err
	}
	if err := config.Validate(p, known); err != nil {
		return nil, errcode.Wrap(errcode.InvalidPayload, "nodesim.profile", err)
	}
	config.Normalize(p)
	return p, nil
}
