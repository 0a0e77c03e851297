/*
 * This file is part of SA818 Bridge (https://github.com/oe5xrx/sa818-bridge-go).
 * Copyright (C) 2025 OE5XRX
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU Affero General Public License as published by
 * the Free Software Foundation, either version 3 of the License, or
 * (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
 * GNU Affero General Public License for more details.
 *
 * You should have received a copy of the GNU Affero General Public License
 * along with this program. If not, see <https://www.gnu.org/licenses/>.
 */

package main

import (
	"flag"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/oe5xrx/sa818-bridge-go/internal/audio"
	"github.com/oe5xrx/sa818-bridge-go/internal/bridge"
	"github.com/oe5xrx/sa818-bridge-go/internal/config"
	"github.com/oe5xrx/sa818-bridge-go/internal/console"
	"github.com/oe5xrx/sa818-bridge-go/internal/radio"
	"github.com/oe5xrx/sa818-bridge-go/internal/simaudio"
	"github.com/oe5xrx/sa818-bridge-go/internal/transport"
	"github.com/oe5xrx/sa818-bridge-go/internal/wavlog"
)

func main() {
	// Command line flags
	configPath := flag.String("config", "", "Config file path")
	natsURL := flag.String("nats", "", "NATS server URL (overrides config)")
	bridgeID := flag.String("id", "", "Bridge identifier (overrides config)")
	backend := flag.String("backend", "", "Audio backend: sim or portaudio (overrides config)")
	flag.Parse()

	cfg, err := config.LoadWithFallback(*configPath)
	if err != nil {
		log.Fatalf("❌ Failed to load config: %v", err)
	}
	if *natsURL != "" {
		cfg.Bridge.NATSURL = *natsURL
	}
	if *bridgeID != "" {
		cfg.Bridge.ID = *bridgeID
	}
	if *backend != "" {
		cfg.Audio.Backend = *backend
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("❌ Invalid config: %v", err)
	}

	log.Printf("🚀 Starting SA818 Bridge")
	log.Printf("📋 Bridge ID: %s", cfg.Bridge.ID)
	log.Printf("🎛️  Audio backend: %s at %d Hz", cfg.Audio.Backend, cfg.Audio.SampleRate)

	// Audio converter
	var (
		conv    audio.Converter
		simConv *audio.SimConverter
	)
	switch cfg.Audio.Backend {
	case "portaudio":
		pa := audio.NewPortAudioConverter()
		if err := pa.Initialize(uint32(cfg.Audio.SampleRate)); err != nil {
			log.Fatalf("❌ Failed to initialize portaudio: %v", err)
		}
		defer pa.Terminate()
		conv = pa
	default:
		simConv = audio.NewSimConverter()
		conv = simConv
	}

	// Optional TX-audio recording
	if cfg.Audio.WavLog != "" {
		rec, err := wavlog.NewRecorder(cfg.Audio.WavLog, cfg.Audio.SampleRate, conv)
		if err != nil {
			log.Fatalf("❌ Failed to open wav log: %v", err)
		}
		defer rec.Close()
		conv = rec
		log.Printf("💾 Recording TX audio to %s", cfg.Audio.WavLog)
	}

	// Radio control
	gpio := radio.NewSimGPIO()
	rad, err := radio.New(gpio, radio.Config{
		PowerOnDelay:  time.Duration(cfg.Radio.PowerOnDelayMs) * time.Millisecond,
		TxEnableDelay: time.Duration(cfg.Radio.TxEnableDelayMs) * time.Millisecond,
	})
	if err != nil {
		log.Fatalf("❌ Failed to initialize radio: %v", err)
	}

	// Module serial link: a real port when configured, the emulated
	// module otherwise.
	var port io.ReadWriter
	if cfg.Radio.SerialPort != "" {
		f, err := os.OpenFile(cfg.Radio.SerialPort, os.O_RDWR, 0)
		if err != nil {
			log.Fatalf("❌ Failed to open serial port %s: %v", cfg.Radio.SerialPort, err)
		}
		defer f.Close()
		port = f
		log.Printf("📻 SA818 on %s", cfg.Radio.SerialPort)
	} else {
		port = radio.NewSimPort()
		log.Printf("📻 SA818 emulated (no serial port configured)")
	}
	rad.AttachAT(radio.NewAT(port, radio.ATTimeout))

	configureRadio(rad, cfg)

	// Bridge and host transport
	br, err := bridge.New(transport.NewNullSender())
	if err != nil {
		log.Fatalf("❌ Failed to create bridge: %v", err)
	}

	var natsTransport *transport.NATSTransport
	if cfg.Bridge.NATSURL != "" {
		natsTransport, err = transport.NewNATSTransport(cfg.Bridge.NATSURL, cfg.Bridge.ID, br)
		if err != nil {
			log.Fatalf("❌ Failed to connect to NATS: %v", err)
		}
		defer natsTransport.Close()
		if err := natsTransport.Start(); err != nil {
			log.Fatalf("❌ Failed to start transport: %v", err)
		}
		br.SetSender(natsTransport)
		log.Printf("📡 Host link: %s", cfg.Bridge.NATSURL)
	} else {
		// Standalone: terminals are active, IN frames are discarded.
		br.TerminalUpdate(transport.TerminalOut, true)
		br.TerminalUpdate(transport.TerminalIn, true)
		log.Printf("📡 No host link configured, running standalone")
	}

	// Audio stream
	stream := audio.NewStream(conv, rad)
	stream.RegisterCallbacks(br.Callbacks())
	if err := stream.Start(audio.Format{
		SampleRate: uint32(cfg.Audio.SampleRate),
		BitDepth:   audio.SampleBitDepth,
		Channels:   1,
	}); err != nil {
		log.Fatalf("❌ Failed to start audio stream: %v", err)
	}
	br.Start()

	// Operator console
	if cfg.Console.Enabled {
		opts := console.Options{Tone: radio.NewToneGenerator(conv)}
		if simConv != nil {
			opts.SimGPIO = gpio
			opts.Pipeline = simaudio.NewAudioPipeline(simaudio.NewADCSink(simConv))
			opts.WavSrc = simaudio.NewWavSource()
			opts.Sine = simaudio.NewSineSource()
		}
		go func() {
			if err := console.New(rad, br, os.Stdout, opts).Run(os.Stdin); err != nil {
				log.Printf("⚠️  Console error: %v", err)
			}
		}()
	}

	log.Printf("✅ Bridge running, press Ctrl+C to stop")

	// Handle graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	log.Println("🛑 Shutting down...")
	stream.Stop()
	br.Stop()
	if err := rad.SetPower(false); err != nil {
		log.Printf("⚠️  Power-off failed: %v", err)
	}
	log.Println("👋 Bridge stopped")
}

// configureRadio applies the configured power and group settings. AT
// failures are logged, not fatal: the module may be powered off or not
// fitted on a bench setup.
func configureRadio(rad *radio.Radio, cfg *config.Config) {
	if err := rad.SetPower(true); err != nil {
		log.Printf("⚠️  Power-on failed: %v", err)
		return
	}
	if err := rad.SetPowerLevel(cfg.Radio.HighPower); err != nil {
		log.Printf("⚠️  Power level failed: %v", err)
	}

	at := rad.AT()
	if err := at.Connect(); err != nil {
		log.Printf("⚠️  Module handshake failed: %v", err)
		return
	}
	if err := at.SetGroup(radio.Group{
		Bandwidth: radio.Bandwidth12k5,
		TxFreqMHz: cfg.Radio.TxFreqMHz,
		RxFreqMHz: cfg.Radio.RxFreqMHz,
		Squelch:   cfg.Radio.Squelch,
	}); err != nil {
		log.Printf("⚠️  Group programming failed: %v", err)
	}
	if err := rad.SetVolume(cfg.Radio.Volume); err != nil {
		log.Printf("⚠️  Volume programming failed: %v", err)
	}
}
