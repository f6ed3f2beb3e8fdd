// Command air-sensor polls the gas, particulate and climate sensors,
// computes calibrated concentrations and the AQI, and publishes the
// results to MQTT and an HTTP status page.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/sweeney/air-sensor/internal/abc"
	"github.com/sweeney/air-sensor/internal/adc"
	"github.com/sweeney/air-sensor/internal/calib"
	"github.com/sweeney/air-sensor/internal/climate"
	"github.com/sweeney/air-sensor/internal/config"
	"github.com/sweeney/air-sensor/internal/engine"
	"github.com/sweeney/air-sensor/internal/gas"
	"github.com/sweeney/air-sensor/internal/heater"
	"github.com/sweeney/air-sensor/internal/logging"
	"github.com/sweeney/air-sensor/internal/mqtt"
	"github.com/sweeney/air-sensor/internal/pm"
	"github.com/sweeney/air-sensor/internal/status"
	"github.com/sweeney/air-sensor/internal/web"
)

func main() {
	configPath := flag.String("config", "/etc/air-sensor/config.yaml", "Config file path")
	broker := flag.String("broker", "", "MQTT broker address (overrides config)")
	httpAddr := flag.String("http", "", "HTTP status address (overrides config)")
	wsBroker := flag.String("ws-broker", "=broker", `MQTT websocket URL for live UI ("=broker" derives from the broker, "off" disables)`)
	once := flag.Bool("once", false, "Take one reading, print it as JSON, and exit")

	flag.Parse()

	log, err := logging.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal("load config", zap.Error(err))
	}
	if *broker != "" {
		cfg.MQTT.Broker = *broker
	}
	if *httpAddr != "" {
		cfg.HTTP.Addr = *httpAddr
	}
	if *wsBroker != "=broker" || cfg.MQTT.WSBroker == "" {
		cfg.MQTT.WSBroker = resolveWSBroker(*wsBroker, cfg.MQTT.Broker, log)
	}

	if err := run(cfg, *once, log); err != nil {
		log.Fatal("fatal", zap.Error(err))
	}
}

func run(cfg *config.Config, once bool, log *zap.Logger) error {
	adcReader, err := adc.NewSerialReader(cfg.ADC.Port, cfg.ADC.Baud, log.Named("adc"))
	if err != nil {
		return fmt.Errorf("init adc: %w", err)
	}
	defer adcReader.Close()

	climateReader, err := climate.NewAHT20(cfg.Climate.I2CBus)
	if err != nil {
		return fmt.Errorf("init climate sensor: %w", err)
	}
	defer climateReader.Close()

	pmReader, err := pm.NewPMS5003(cfg.PM.Port, 0, log.Named("pm"))
	if err != nil {
		return fmt.Errorf("init pm sensor: %w", err)
	}
	defer pmReader.Close()

	drive, err := heater.NewPWMDriver(cfg.Heater.GPIOChip, cfg.Heater.GPIOLine)
	if err != nil {
		return fmt.Errorf("init heater drive: %w", err)
	}
	defer drive.Close()

	store := calib.NewFileStore(cfg.Store.Path, log.Named("calib"))

	eng, err := engine.New(engineConfig(cfg), adcReader, climateReader, pmReader,
		drive, store, time.Now(), log.Named("engine"))
	if err != nil {
		return fmt.Errorf("init engine: %w", err)
	}

	if once {
		// Give the serial feeds a moment to deliver first samples.
		time.Sleep(2 * time.Second)
		reading := eng.PollAndCompute(time.Now())
		payload, err := mqtt.FormatPayload(reading)
		if err != nil {
			return fmt.Errorf("format reading: %w", err)
		}
		fmt.Println(string(payload))
		return nil
	}

	publisher, err := mqtt.NewRealPublisher(cfg.MQTT.Broker, cfg.MQTT.ClientID, log.Named("mqtt"))
	if err != nil {
		return fmt.Errorf("connect mqtt: %w", err)
	}
	defer publisher.Close()

	tracker := status.NewTracker(time.Now(), status.Config{
		PollMs:      int64(cfg.Poll.IntervalMs),
		HeartbeatMs: int64(cfg.Poll.HeartbeatMs),
		Broker:      cfg.MQTT.Broker,
		HTTPPort:    cfg.HTTP.Addr,
		StorePath:   cfg.Store.Path,
		WSBroker:    cfg.MQTT.WSBroker,
	})

	// Publish startup event with full status snapshot
	snap := tracker.Snapshot()
	startupEvent := mqtt.SystemEvent{
		Timestamp:  snap.Now,
		Event:      "STARTUP",
		Retained:   true,
		RawPayload: status.FormatStatusEvent(snap, "STARTUP", ""),
	}
	if err := publisher.PublishSystem(startupEvent); err != nil {
		log.Warn("failed to publish startup event", zap.Error(err))
	} else {
		log.Info("published startup event")
	}

	calReqs := make(chan calibrationRequest)

	if cfg.HTTP.Addr != "" {
		srv := web.New(cfg.HTTP.Addr, tracker, &loopCalibrator{reqs: calReqs})
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Error("http server error", zap.Error(err))
			}
		}()
		defer srv.Shutdown(context.Background())
		log.Info("http status server listening", zap.String("addr", cfg.HTTP.Addr))
	}

	log.Info("started",
		zap.Duration("poll", cfg.PollInterval()),
		zap.String("broker", cfg.MQTT.Broker),
		zap.Duration("heartbeat", cfg.Heartbeat()))

	ticker := time.NewTicker(cfg.PollInterval())
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	return runLoop(eng, publisher, publisher, tracker, calReqs,
		cfg.Heartbeat(), time.Now, ticker.C, sigCh, log)
}

// engineConfig maps file configuration onto the engine.
func engineConfig(cfg *config.Config) engine.Config {
	return engine.Config{
		Enabled: cfg.EnabledChannels(),
		ABC: abc.Config{
			Window:     time.Duration(cfg.ABC.WindowHours) * time.Hour,
			Blend:      cfg.ABC.Blend,
			NoiseFloor: cfg.ABC.NoiseFloor,
		},
		Heater: heater.Config{
			HeatDuration:  time.Duration(cfg.Heater.HeatMs) * time.Millisecond,
			SenseDuration: time.Duration(cfg.Heater.SenseMs) * time.Millisecond,
			Stabilization: time.Duration(cfg.Heater.StabilizeMs) * time.Millisecond,
		},
		CalibrationSamples: cfg.Calibration.Samples,
		CalibrationGap:     time.Duration(cfg.Calibration.GapMs) * time.Millisecond,
	}
}

// calibrationRequest asks the poll loop to run one manual calibration.
// The loop owns the engine; handing the request over keeps all engine
// access on a single goroutine.
type calibrationRequest struct {
	channel gas.Channel
	target  float64 // span target; zero calibration when span is false
	span    bool
	result  chan error
}

// loopCalibrator bridges HTTP calibration requests onto the poll loop.
type loopCalibrator struct {
	reqs chan<- calibrationRequest
}

// calibrationTimeout bounds the wait for the loop to pick up and run a
// calibration. Sampling itself takes on the order of a second.
const calibrationTimeout = 30 * time.Second

func (c *loopCalibrator) RequestZero(ch gas.Channel) error {
	return c.request(calibrationRequest{channel: ch, result: make(chan error, 1)})
}

func (c *loopCalibrator) RequestSpan(ch gas.Channel, target float64) error {
	return c.request(calibrationRequest{channel: ch, target: target, span: true, result: make(chan error, 1)})
}

func (c *loopCalibrator) request(req calibrationRequest) error {
	timeout := time.NewTimer(calibrationTimeout)
	defer timeout.Stop()

	select {
	case c.reqs <- req:
	case <-timeout.C:
		return fmt.Errorf("calibration request timed out")
	}
	select {
	case err := <-req.result:
		return err
	case <-timeout.C:
		return fmt.Errorf("calibration timed out")
	}
}

func runLoop(eng *engine.Engine, publisher mqtt.Publisher, mqttStatus mqtt.ConnectionStatus,
	tracker *status.Tracker, calReqs <-chan calibrationRequest, heartbeat time.Duration,
	now func() time.Time, tick <-chan time.Time, sig <-chan os.Signal, log *zap.Logger) error {

	lastHeartbeat := now()

	for {
		select {
		case s := <-sig:
			log.Info("shutting down", zap.String("signal", s.String()))
			signalName := "UNKNOWN"
			if s == syscall.SIGINT {
				signalName = "SIGINT"
			} else if s == syscall.SIGTERM {
				signalName = "SIGTERM"
			}
			event := mqtt.SystemEvent{
				Timestamp: now(),
				Event:     "SHUTDOWN",
				Reason:    signalName,
				Retained:  true,
			}
			if tracker != nil {
				if mqttStatus != nil {
					tracker.SetMQTTConnected(mqttStatus.IsConnected())
				}
				snap := tracker.Snapshot()
				event.RawPayload = status.FormatStatusEvent(snap, "SHUTDOWN", signalName)
			}
			if err := publisher.PublishSystem(event); err != nil {
				log.Warn("failed to publish shutdown event", zap.Error(err))
			} else {
				log.Info("published shutdown event")
			}
			return nil

		case req := <-calReqs:
			t := now()
			var err error
			if req.span {
				err = eng.RunSpanCalibration(req.channel, req.target, t)
			} else {
				err = eng.RunZeroCalibration(req.channel, t)
			}
			if err != nil {
				log.Warn("calibration failed",
					zap.String("channel", string(req.channel)), zap.Error(err))
			}
			req.result <- err

		case <-tick:
			t := now()
			reading := eng.PollAndCompute(t)

			if tracker != nil {
				tracker.Update(reading, eng.HeaterPhase().Kind.String(), eng.ABCWindowStart())
				if mqttStatus != nil {
					tracker.SetMQTTConnected(mqttStatus.IsConnected())
				}
			}

			if err := publisher.Publish(reading); err != nil {
				log.Warn("publish error", zap.Error(err))
				// Don't crash on publish failure
			}

			if heartbeat > 0 && t.Sub(lastHeartbeat) >= heartbeat {
				lastHeartbeat = t
				hbEvent := mqtt.SystemEvent{
					Timestamp: t,
					Event:     "HEARTBEAT",
				}
				if tracker != nil {
					snap := tracker.Snapshot()
					hbEvent.RawPayload = status.FormatStatusEvent(snap, "HEARTBEAT", "")
				}
				if err := publisher.PublishSystem(hbEvent); err != nil {
					log.Warn("heartbeat publish error", zap.Error(err))
				}
			}
		}
	}
}

// resolveWSBroker converts the --ws-broker flag value into a concrete URL.
// "=broker" derives ws://host:9001 from the TCP broker address; empty disables.
func resolveWSBroker(ws, broker string, log *zap.Logger) string {
	if ws == "off" || ws == "" {
		return ""
	}
	if ws != "=broker" {
		return ws
	}
	u, err := url.Parse(broker)
	if err != nil {
		log.Warn("ws-broker: cannot parse broker URL", zap.String("broker", broker), zap.Error(err))
		return ""
	}
	u.Scheme = "ws"
	u.Host = u.Hostname() + ":9001"
	return u.String()
}
