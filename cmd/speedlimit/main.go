package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hashicorp/go-metrics"
	"github.com/seqio/speedlimit"
	"github.com/seqio/speedlimit/internal/retry"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

func main() {
	log, err := zap.NewDevelopment()
	if err != nil {
		fmt.Printf("could not initialize logger: %v\n", err)
		os.Exit(11)
	}

	if len(os.Args) != 3 {
		log.Error("usage: speedlimit <config-file> <url>")
		os.Exit(12)
	}

	filePath, url := os.Args[1], os.Args[2]
	log.Debug("loading configuration", zap.String("path", filePath))

	config := &speedlimit.Config{}
	b, err := os.ReadFile(filePath)
	if err != nil {
		log.Error("unable to load configuration file", zap.String("path", filePath), zap.Error(err))
		os.Exit(15)
	}
	err = yaml.Unmarshal(b, config)
	if err != nil {
		log.Error("unable to parse configuration file", zap.String("path", filePath), zap.Error(err))
		os.Exit(19)
	}

	log.Debug("configuration loaded", zap.Any("configuration", config))

	// SIGUSR1 dumps the accumulated throttle stats to stderr.
	sink := metrics.NewInmemSink(10*time.Second, time.Minute)
	metrics.DefaultInmemSignal(sink)

	limiter, err := speedlimit.New(*config,
		speedlimit.WithLogger(log),
		speedlimit.WithMetricSink(sink))
	if err != nil {
		log.Error("could not initialize limiter", zap.Error(err))
		os.Exit(19)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var resp *http.Response
	err = retry.Do(ctx, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return err
		}
		resp, err = http.DefaultClient.Do(req)
		if err != nil {
			return err
		}
		if resp.StatusCode != http.StatusOK {
			_ = resp.Body.Close()
			return fmt.Errorf("unexpected status %s", resp.Status)
		}
		return nil
	}, retry.Logger(log))
	if err != nil {
		log.Error("unable to fetch url", zap.String("url", url), zap.Error(err))
		os.Exit(21)
	}
	defer resp.Body.Close()

	n, err := io.Copy(os.Stdout, speedlimit.NewReader(limiter, resp.Body))
	if err != nil {
		var tooSlow *speedlimit.TooSlowError
		if errors.As(err, &tooSlow) {
			log.Error("consumer fell below the minimum rate", zap.Error(err))
			os.Exit(58)
		}
		log.Error("copy failed", zap.Int64("bytes", n), zap.Error(err))
		os.Exit(22)
	}

	log.Info("done", zap.Int64("bytes", n))
}
