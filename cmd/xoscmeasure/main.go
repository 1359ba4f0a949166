package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"os"
	"strconv"
	"time"

	mqtt "github.com/soypat/natiu-mqtt"
	"github.com/soypat/saleae"
	"github.com/soypat/xosc32k"
	"github.com/soypat/xosc32k/freqmeter"
)

var errPublished = errors.New("measurement published")

type measureConfig struct {
	Filename string
	Mode     xosc32k.Mode
	TolPPM   float64
	// Broker is the host:port of an MQTT broker. Empty disables publishing.
	Broker   string
	Topic    string
	ClientID string
	Timeout  time.Duration
}

type result struct {
	Mode        xosc32k.Mode
	Measurement freqmeter.Measurement
	Want        float64
	PPM         float64
	OK          bool
}

// Payload is the one-line text published to the broker.
func (r result) Payload() []byte {
	b := make([]byte, 0, 96)
	b = append(b, "mode="...)
	b = append(b, r.Mode.String()...)
	b = append(b, " freq="...)
	b = strconv.AppendFloat(b, r.Measurement.Frequency, 'f', 3, 64)
	b = append(b, " ppm="...)
	b = strconv.AppendFloat(b, r.PPM, 'f', 1, 64)
	b = append(b, " duty="...)
	b = strconv.AppendFloat(b, r.Measurement.Duty, 'f', 3, 64)
	b = append(b, " ok="...)
	b = strconv.AppendBool(b, r.OK)
	return b
}

func main() {
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "xoscmeasure - Measure crystal frequency from a Saleae binary digital capture of the clock-out pin.\n\tUsage:\n")
		flag.PrintDefaults()
	}
	filename := flag.String("f", "digital_0.bin", "Input filename: Saleae digital capture of CLKOUT (PB5) or EVOUT0 (PA2).")
	mode := flag.String("mode", "sysclk", "Firmware mode the capture was taken with: sysclk (32768Hz) or evout (512Hz).")
	tol := flag.Float64("ppm", 500, "Frequency tolerance in parts per million.")
	broker := flag.String("mqtt", "", "MQTT broker host:port to publish the result to.")
	topic := flag.String("topic", "xosc32k/freq", "MQTT topic.")
	clientID := flag.String("client-id", "xoscmeasure", "MQTT client identifier.")
	timeout := flag.Duration("timeout", 5*time.Second, "MQTT connect and publish timeout.")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	m, err := xosc32k.ParseMode(*mode)
	if err != nil {
		logger.Error("bad flag", slog.String("mode", *mode), slog.Any("err", err))
		os.Exit(1)
	}
	cfg := measureConfig{
		Filename: *filename,
		Mode:     m,
		TolPPM:   *tol,
		Broker:   *broker,
		Topic:    *topic,
		ClientID: *clientID,
		Timeout:  *timeout,
	}
	res, err := run(context.Background(), logger, cfg)
	if err != nil {
		logger.Error("measurement failed", slog.Any("err", err))
		os.Exit(1)
	}
	logger.Info("crystal within tolerance", slog.Float64("ppm", res.PPM))
}

func run(ctx context.Context, logger *slog.Logger, cfg measureConfig) (res result, err error) {
	df, err := opendigital(cfg.Filename)
	if err != nil {
		return res, err
	}
	m, err := freqmeter.FromDigitalFile(df)
	if err != nil {
		return res, fmt.Errorf("%s: %w", cfg.Filename, err)
	}
	res = result{Mode: cfg.Mode, Measurement: m, Want: xosc32k.ExpectedFrequency(cfg.Mode)}
	var checkErr error
	res.PPM, checkErr = freqmeter.Check(m, res.Want, cfg.TolPPM)
	res.OK = checkErr == nil
	logger.Info("measured",
		slog.String("pin", cfg.Mode.Pin()),
		slog.Int("edges", m.Edges),
		slog.Float64("hz", m.Frequency),
		slog.Float64("wantHz", res.Want),
		slog.Float64("ppm", res.PPM),
		slog.Float64("duty", m.Duty),
		slog.Duration("jitter", time.Duration(m.Jitter*float64(time.Second))),
	)
	if cfg.Broker != "" {
		err = publish(ctx, logger, cfg, res.Payload())
		if err != nil {
			return res, errors.Join(checkErr, fmt.Errorf("mqtt publish: %w", err))
		}
	}
	return res, checkErr
}

func publish(ctx context.Context, logger *slog.Logger, cfg measureConfig, payload []byte) error {
	ctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()
	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "tcp", cfg.Broker)
	if err != nil {
		return err
	}
	defer conn.Close()
	deadline, _ := ctx.Deadline()
	err = conn.SetDeadline(deadline)
	if err != nil {
		return err
	}

	client := mqtt.NewClient(mqtt.ClientConfig{
		Decoder: mqtt.DecoderNoAlloc{UserBuffer: make([]byte, 512)},
	})
	var varconn mqtt.VariablesConnect
	varconn.SetDefaultMQTT([]byte(cfg.ClientID))
	logger.Debug("mqtt:connecting", slog.String("broker", cfg.Broker))
	err = client.Connect(ctx, conn, &varconn)
	if err != nil {
		return err
	}
	pubFlags, err := mqtt.NewPublishFlags(mqtt.QoS0, false, false)
	if err != nil {
		return err
	}
	err = client.PublishPayload(pubFlags, mqtt.VariablesPublish{TopicName: []byte(cfg.Topic)}, payload)
	if err != nil {
		return err
	}
	logger.Info("mqtt:published", slog.String("topic", cfg.Topic), slog.String("payload", string(payload)))
	client.Disconnect(errPublished)
	return nil
}

func opendigital(filename string) (*saleae.DigitalFile, error) {
	fp, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer fp.Close()
	df, err := saleae.ReadDigitalFile(fp)
	if err != nil {
		return nil, err
	}
	return df, nil
}
