package main

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"saucecnc/host/streamer"
	"saucecnc/host/telemetry"
	"saucecnc/host/transportserial"
	"saucecnc/host/transportws"
	"saucecnc/protocol"
)

const (
	defaultWindow     = 32
	defaultAckTimeout = 250 * time.Millisecond
	defaultMaxRetries = 3
)

func runStream(path string, lines []string, url, port string, baud int, homeFirst, resume bool) error {
	conn, err := dial(url, port, baud)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer conn.Close()

	s := streamer.New(conn, defaultWindow, defaultAckTimeout, defaultMaxRetries)

	sink := telemetry.NewSink()
	s.OnTelemetry = sink.Observe
	s.OnError = func(e *protocol.Error) {
		log.Error().Str("code", string(e.Code)).Uint64("seq", e.Seq).Msg("controller reported error")
	}
	lastReported := time.Now()
	s.OnProgress = func(p streamer.Progress) {
		if time.Since(lastReported) < 200*time.Millisecond && p.Acked != p.Total {
			return
		}
		lastReported = time.Now()
		msg := fmt.Sprintf("%d/%d (%.1f%%)", p.Acked, p.Total, p.Fraction*100)
		if t, ok := sink.Latest(); ok {
			msg += " | " + telemetry.Format(t)
		}
		fmt.Printf("\r%s", msg)
	}

	if homeFirst {
		log.Info().Msg("sending home command and waiting 10s")
		if err := s.SendOutOfBand(protocol.Command{Op: protocol.OpHome}); err != nil {
			return fmt.Errorf("send home: %w", err)
		}
		time.Sleep(10 * time.Second)
	}

	if resume {
		lastAck, err := s.Handshake()
		if err != nil {
			return fmt.Errorf("handshake: %w", err)
		}
		lines, err = streamer.Resume(lines, lastAck)
		if err != nil {
			return fmt.Errorf("resume: %w", err)
		}
		log.Info().Uint64("last_ack", lastAck).Int("remaining", len(lines)).Msg("resuming stream")
	}

	log.Info().Str("file", path).Int("commands", len(lines)).Msg("streaming")
	if err := s.Stream(context.Background(), lines); err != nil {
		return fmt.Errorf("stream: %w", err)
	}

	fmt.Println()
	stats := s.Stats()
	log.Info().Int("sent", stats.TotalSent).Int("acked", stats.TotalAcked).Int("retries", stats.TotalRetries).Msg("streaming complete")
	return nil
}

func dial(url, port string, baud int) (streamer.Conn, error) {
	switch {
	case url != "":
		return transportws.Dial(url)
	case port != "":
		return transportserial.Open(port, baud)
	default:
		return nil, fmt.Errorf("either --url or --port must be specified")
	}
}
