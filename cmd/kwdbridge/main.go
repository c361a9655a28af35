package main

import (
	"fmt"
	"log"
	"math"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/gen2brain/malgo"
	"github.com/joho/godotenv"

	"github.com/soundgate-ai/kwd-bridge/pkg/audio"
	"github.com/soundgate-ai/kwd-bridge/pkg/control"
	"github.com/soundgate-ai/kwd-bridge/pkg/kwd"
	"github.com/soundgate-ai/kwd-bridge/pkg/notify"
	"github.com/soundgate-ai/kwd-bridge/pkg/triggers"
)

const (
	SampleRate = 16000
	Channels   = 1

	// streamSeconds is how much audio the shared ring retains.
	streamSeconds = 10
)

// consoleLogger adapts the standard log package to the detector's logger.
type consoleLogger struct{}

func (consoleLogger) Debug(msg string, args ...interface{}) { log.Println(append([]interface{}{"DEBUG", msg}, args...)...) }
func (consoleLogger) Info(msg string, args ...interface{})  { log.Println(append([]interface{}{"INFO", msg}, args...)...) }
func (consoleLogger) Warn(msg string, args ...interface{})  { log.Println(append([]interface{}{"WARN", msg}, args...)...) }
func (consoleLogger) Error(msg string, args ...interface{}) { log.Println(append([]interface{}{"ERROR", msg}, args...)...) }

// capture keeps a rolling copy of the newest stream samples so a detection's
// [begin, end) window can be cut out and dumped to a WAV file. base is the
// absolute stream index of samples[0].
type capture struct {
	mu      sync.Mutex
	samples []int16
	base    uint64
	max     int
}

func newCapture(maxSamples int) *capture {
	return &capture{max: maxSamples}
}

func (c *capture) push(p []int16) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.samples = append(c.samples, p...)
	if len(c.samples) > c.max {
		drop := len(c.samples) - c.max
		c.samples = c.samples[drop:]
		c.base += uint64(drop)
	}
}

func (c *capture) window(begin, end uint64) ([]int16, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	top := c.base + uint64(len(c.samples))
	if begin < c.base || end > top || begin >= end {
		return nil, false
	}
	out := make([]int16, end-begin)
	copy(out, c.samples[begin-c.base:end-c.base])
	return out, true
}

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: No .env file found, using system environment variables")
	}

	keyword := os.Getenv("KWD_KEYWORD")
	if keyword == "" {
		keyword = kwd.DefaultConfig().Keyword
	}
	triggerName := os.Getenv("KWD_TRIGGER")
	if triggerName == "" {
		triggerName = "sim"
	}
	forwardURL := os.Getenv("KWD_FORWARD_URL")
	wavDir := os.Getenv("KWD_WAV_DIR")

	logger := consoleLogger{}

	stream := audio.NewStream(SampleRate * streamSeconds)
	defer stream.Close()
	reader := stream.NewReader()
	cap16 := newCapture(SampleRate * streamSeconds)

	// Trigger + control selection
	var monitor kwd.TriggerMonitor
	var channel kwd.ControlChannel
	var simDone chan struct{}

	switch triggerName {
	case "gpio":
		pinName := os.Getenv("KWD_GPIO_PIN")
		if pinName == "" {
			pinName = triggers.DefaultGPIOPin
		}
		m, err := triggers.OpenGPIO(pinName)
		if err != nil {
			log.Fatal(err)
		}
		monitor = m

		busName := os.Getenv("KWD_I2C_BUS")
		if busName == "" {
			busName = control.DefaultI2CBus
		}
		ch, err := control.OpenI2CWithLogger(busName, control.DefaultI2CAddr, logger)
		if err != nil {
			log.Fatal(err)
		}
		channel = ch

	case "hid":
		m, err := openHIDFromEnv()
		if err != nil {
			log.Fatal(err)
		}
		monitor = m

		ch, err := control.OpenUSBWithLogger(control.DefaultUSBVendorID, control.DefaultUSBProductID, logger)
		if err != nil {
			log.Fatal(err)
		}
		channel = ch

	case "sim":
		fallthrough
	default:
		engine := triggers.NewEngineTrigger()
		loop := control.NewLoopback()
		monitor = engine
		channel = loop
		simDone = make(chan struct{})
		go runSimDevice(engine, loop, simDone)
	}

	// Observers
	kn := kwd.NewKeywordNotifier(kwd.KeywordObserverFunc(func(d kwd.Detection) {
		fmt.Printf("\r\033[K[KEYWORD] %q samples [%d, %d)\n", d.Keyword, d.BeginIndex, d.EndIndex)
	}))
	sn := kwd.NewStateNotifier(kwd.StateObserverFunc(func(s kwd.State) {
		fmt.Printf("\r\033[K[STATE] %s\n", s)
	}))

	if forwardURL != "" {
		fwd := notify.NewForwarderWithLogger(forwardURL, logger)
		defer fwd.Close()
		kn.AddObserver(fwd)
	}

	if wavDir != "" {
		kn.AddObserver(kwd.KeywordObserverFunc(func(d kwd.Detection) {
			window, ok := cap16.window(d.BeginIndex, d.EndIndex)
			if !ok {
				log.Println("WARN detection window no longer buffered", "begin", d.BeginIndex, "end", d.EndIndex)
				return
			}
			name := filepath.Join(wavDir, fmt.Sprintf("%s_%d.wav", d.Keyword, d.BeginIndex))
			if err := os.WriteFile(name, audio.NewWavBuffer(window, SampleRate), 0o644); err != nil {
				log.Println("WARN writing wav failed", "error", err)
				return
			}
			fmt.Printf("\r\033[K[WAV] wrote %s (%d samples)\n", name, len(window))
		}))
	}

	cfg := kwd.DefaultConfig()
	cfg.Keyword = keyword

	detector, err := kwd.NewWithLogger(reader, kwd.DefaultAudioFormat(), monitor, channel, kn, sn, cfg, logger)
	if err != nil {
		log.Fatal(err)
	}
	defer detector.Close()

	// Feed the stream: microphone if available, synthetic tone otherwise.
	onSamples := func(p []int16) {
		cap16.push(p)
		stream.Write(p)
	}
	stopFeed, err := startMicrophone(onSamples)
	if err != nil {
		log.Println("Note: microphone unavailable, generating synthetic audio:", err)
		stopFeed = startToneWriter(onSamples)
	}
	defer stopFeed()

	fmt.Printf("Configured: trigger=%s | keyword=%q | sample rate=%dHz\n", triggerName, keyword, SampleRate)
	fmt.Println("Keyword bridge started. Press Ctrl+C to exit")

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	fmt.Printf("\nShutting down...\n")
	if simDone != nil {
		close(simDone)
	}
}

// startMicrophone captures 16 kHz mono S16 frames and hands them to fn.
func startMicrophone(fn func([]int16)) (func(), error) {
	mctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, err
	}

	onRecv := func(_, pInput []byte, _ uint32) {
		if pInput == nil {
			return
		}
		samples := make([]int16, len(pInput)/2)
		for i := range samples {
			samples[i] = int16(pInput[2*i]) | (int16(pInput[2*i+1]) << 8)
		}
		fn(samples)
	}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.Capture.Format = malgo.FormatS16
	deviceConfig.Capture.Channels = Channels
	deviceConfig.SampleRate = SampleRate
	deviceConfig.Alsa.NoMMap = 1 // Better compatibility on some systems

	device, err := malgo.InitDevice(mctx.Context, deviceConfig, malgo.DeviceCallbacks{
		Data: onRecv,
	})
	if err != nil {
		mctx.Uninit()
		return nil, err
	}
	if err := device.Start(); err != nil {
		device.Uninit()
		mctx.Uninit()
		return nil, err
	}

	return func() {
		device.Uninit()
		mctx.Uninit()
	}, nil
}

// startToneWriter pushes 10 ms of a 440 Hz tone every 10 ms so the drain
// loop and index math stay live without hardware.
func startToneWriter(fn func([]int16)) func() {
	done := make(chan struct{})
	go func() {
		const chunk = SampleRate / 100
		buf := make([]int16, chunk)
		var phase float64
		ticker := time.NewTicker(10 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				for i := range buf {
					buf[i] = int16(3000 * math.Sin(phase))
					phase += 2 * math.Pi * 440 / SampleRate
				}
				fn(buf)
			}
		}
	}()
	return func() { close(done) }
}

// runSimDevice emulates the outboard processor: its sample counter free-runs
// at 16 kHz and every few seconds it reports a half-second keyword and fires
// the engine trigger, answering busy for the first couple of transactions.
func runSimDevice(engine *triggers.EngineTrigger, loop *control.Loopback, done chan struct{}) {
	const keywordSamples = SampleRate / 2
	start := time.Now()
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			devCurrent := uint64(time.Since(start).Seconds() * SampleRate)
			begin := uint64(0)
			if devCurrent > keywordSamples {
				begin = devCurrent - keywordSamples
			}
			loop.SetIndices(kwd.DeviceIndices{Current: devCurrent, Begin: begin, End: devCurrent})
			loop.SetBusy(2)
			engine.Fire()
		}
	}
}
