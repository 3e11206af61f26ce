package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mqttcore/engine"
	"golang.org/x/sync/errgroup"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	e := mqttengine.New(
		mqttengine.WithHostPort("127.0.0.1", 1883),
		mqttengine.WithClientID("mqtt-client-example"),
		mqttengine.WithKeepAlive(30),
	)
	e.OnMessage(func(topicName string, payload []byte) {
		log.Printf("on %s: %s", topicName, payload)
	})
	e.OnConnected(func() {
		// OnConnected runs on the engine's executor; Subscribe posts a job to
		// that same executor, so it must run on another goroutine.
		go func() {
			if _, err := e.Subscribe("a/b/c", 1); err != nil {
				log.Printf("subscribe: %v", err)
			}
		}()
	})
	e.OnError(func(err *mqttengine.Error) {
		log.Printf("engine error: %v", err)
	})

	group, ctx := errgroup.WithContext(ctx)

	group.Go(func() error {
		defer cancel()
		sign := make(chan os.Signal, 1)
		signal.Notify(sign, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case sig := <-sign:
			return fmt.Errorf("got signal: %s", sig)
		}
	})

	group.Go(func() error {
		if err := e.Connect(ctx); err != nil {
			return err
		}
		defer e.Close()
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Second):
			}
			if _, err := e.Publish("12345", []byte(time.Now().Format("2006-01-02 15:04:05")), 0, false); err != nil {
				log.Printf("publish: %v", err)
			}
		}
	})

	if err := group.Wait(); err != nil {
		log.Fatal(err)
	}
}
