package main

import (
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/soypat/xosc32k"
	"github.com/soypat/xosc32k/internal/avrsim"
	"github.com/soypat/xosc32k/tiny817"
)

var errCrystalHang = errors.New("crystal never reported stable, firmware would hang here")

type simConfig struct {
	Mode     xosc32k.Mode
	Output   string
	Duration time.Duration
	Timeout  time.Duration
}

func main() {
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "xoscsim - Run ATtiny817 crystal clock-out bring-up against simulated registers.\n\tUsage:\n")
		flag.PrintDefaults()
	}
	defaults := avrsim.DefaultConfig()
	mode := flag.String("mode", "sysclk", "Bring-up routine to run: sysclk (crystal as main clock on CLKOUT) or evout (crystal/64 on EVOUT0).")
	polls := flag.Int("polls", defaults.StartupPolls, "Crystal status polls before the crystal reports stable.")
	rtcBusy := flag.Int("rtc-busy", defaults.RTCBusyPolls, "RTC status reads that report busy after reset.")
	noCrystal := flag.Bool("no-crystal", false, "Simulate a missing crystal.")
	crystalHz := flag.Float64("hz", defaults.CrystalFreq, "Simulated crystal frequency in Hz.")
	output := flag.String("o", "", "Output filename of Saleae binary capture of the output pin. Empty skips capture.")
	dur := flag.Duration("dur", 50*time.Millisecond, "Capture duration.")
	timeout := flag.Duration("timeout", time.Second, "Give up waiting on a bring-up routine after this long.")
	verbose := flag.Bool("v", false, "Log every register access.")
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug - 1
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	m, err := xosc32k.ParseMode(*mode)
	if err != nil {
		logger.Error("bad flag", slog.String("mode", *mode), slog.Any("err", err))
		os.Exit(1)
	}
	sim := avrsim.New(avrsim.Config{
		StartupPolls: *polls,
		RTCBusyPolls: *rtcBusy,
		NoCrystal:    *noCrystal,
		CrystalFreq:  *crystalHz,
	})
	cfg := simConfig{
		Mode:     m,
		Output:   *output,
		Duration: *dur,
		Timeout:  *timeout,
	}
	start := time.Now()
	if err := run(logger, sim, cfg); err != nil {
		logger.Error("simulation failed", slog.Any("err", err))
		os.Exit(1)
	}
	logger.Info("finished", slog.Duration("took", time.Since(start)))
}

// run executes the bring-up routine on sim. If the routine stalls past
// cfg.Timeout a crystal is attached to sim so the routine can return.
func run(logger *slog.Logger, sim *avrsim.Device, cfg simConfig) error {
	dev := xosc32k.NewDevice(sim, xosc32k.Config{Logger: logger})
	done := make(chan struct{})
	go func() {
		switch cfg.Mode {
		case xosc32k.ModeSystemClock:
			dev.ClockOutSystemClock()
		case xosc32k.ModeEventOutput:
			dev.ClockOutEventRTC()
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(cfg.Timeout):
		logger.Error("bring-up stalled", slog.Int("statusPolls", sim.Polls()), slog.Duration("timeout", cfg.Timeout))
		// On target the routine spins forever. Release it so it does not outlive run.
		sim.AttachCrystal()
		<-done
		return errCrystalHang
	}

	for _, a := range sim.Trace() {
		logger.Debug("bus", slog.String("access", a.String()))
	}
	for _, addr := range []uint16{
		tiny817.CLKCTRL_MCLKCTRLA, tiny817.CLKCTRL_MCLKCTRLB, tiny817.CLKCTRL_MCLKSTATUS, tiny817.CLKCTRL_XOSC32KCTRLA,
		tiny817.EVSYS_ASYNCCH3, tiny817.EVSYS_ASYNCUSER8, tiny817.PORTMUX_CTRLA, tiny817.RTC_CLKSEL, tiny817.RTC_PITCTRLA,
	} {
		logger.Info("register", slog.String("name", avrsim.RegisterName(addr)), slog.String("value", fmt.Sprintf("%#02x", sim.Peek(addr))))
	}
	pin, hz := sim.OutputFrequency()
	logger.Info("output",
		slog.String("pin", pin),
		slog.Float64("hz", hz),
		slog.Float64("expectHz", xosc32k.ExpectedFrequency(cfg.Mode)),
		slog.Float64("cpuHz", sim.MainClock()),
	)
	if cfg.Output == "" {
		return nil
	}
	fp, err := os.Create(cfg.Output)
	if err != nil {
		return err
	}
	defer fp.Close()
	err = sim.WriteCapture(fp, cfg.Duration)
	if err != nil {
		return fmt.Errorf("writing capture: %w", err)
	}
	logger.Info("wrote capture", slog.String("file", cfg.Output), slog.Duration("duration", cfg.Duration))
	return fp.Close()
}
