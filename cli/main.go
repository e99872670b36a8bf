// Package main provides a terminal player for recorded agent runs.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/xiaot623/gogo/replayer/internal/adapter/tracesource"
	"github.com/xiaot623/gogo/replayer/internal/domain"
	"github.com/xiaot623/gogo/replayer/internal/replay"
)

func main() {
	server := flag.String("server", "http://localhost:8080", "Replay service base URL")
	token := flag.String("token", "", "Bearer token for the replay service")
	runID := flag.String("run", "", "Run ID to replay")
	file := flag.String("file", "", "Replay export to play (JSON or YAML)")
	speed := flag.Float64("speed", 1, "Playback speed multiplier")
	remote := flag.Bool("remote", false, "Play through a server session instead of locally")
	flag.Parse()

	log.SetFlags(log.Ltime)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var err error
	switch {
	case *remote:
		if *runID == "" {
			log.Fatal("-remote requires -run")
		}
		err = playRemote(ctx, *server, *runID, *speed)
	case *file != "":
		var data *domain.ReplayData
		data, err = loadFile(*file)
		if err == nil {
			err = playLocal(ctx, data, *speed)
		}
	case *runID != "":
		client := tracesource.NewClient(*server, *token, 10*time.Second, 2)
		var data *domain.ReplayData
		data, err = client.GetReplayData(ctx, *runID)
		if err == nil {
			err = playLocal(ctx, data, *speed)
		}
	default:
		flag.Usage()
		os.Exit(2)
	}

	if err != nil && ctx.Err() == nil {
		log.Fatalf("Replay failed: %v", err)
	}
}

// playLocal plays data with an in-process engine until it completes or ctx
// is cancelled.
func playLocal(ctx context.Context, data *domain.ReplayData, speed float64) error {
	engine, err := replay.NewEngine(data)
	if err != nil {
		return err
	}
	defer engine.Close()

	stopped := make(chan struct{})
	defer close(stopped)

	events := make(chan replay.Event, 256)
	if _, err := engine.Subscribe(ctx, func(ev replay.Event) {
		if ev.Kind == replay.EventState {
			return
		}
		select {
		case events <- ev:
		case <-stopped:
		}
	}); err != nil {
		return err
	}

	if _, err := engine.SetSpeed(ctx, speed); err != nil {
		return err
	}
	fmt.Println(renderHeader(data, speed))
	if _, err := engine.Play(ctx); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			fmt.Println(renderInterrupted())
			return ctx.Err()
		case ev := <-events:
			switch ev.Kind {
			case replay.EventStep:
				if ev.Step != nil {
					fmt.Println(renderStep(ev.Step, ev.State))
				}
			case replay.EventCompleted:
				fmt.Println(renderSummary(data, ev.State))
				return nil
			}
		}
	}
}
