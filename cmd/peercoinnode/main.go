// Command peercoinnode starts a single node: it reads its own IP address
// from stdin, then listens and gossips with peers until the process
// receives a termination signal. It does not parse flags and has no
// interactive shell — both are the responsibility of a separate front end.
package main

import (
	"bufio"
	"fmt"
	"net/http"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/koabula/peercoin-node/metrics"
	"github.com/koabula/peercoin-node/node"
)

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to initialize logger:", err)
		os.Exit(1)
	}
	defer logger.Sync()

	fmt.Print("Enter IP address: ")
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		logger.Fatal("failed to read node IP from stdin", zap.Error(err))
	}
	ip := strings.TrimSpace(line)
	if ip == "" {
		logger.Fatal("node IP must not be empty")
	}

	n, err := node.New(ip, logger)
	if err != nil {
		logger.Fatal("failed to construct node", zap.Error(err))
	}

	if metricsAddr := os.Getenv("PEERCOIN_METRICS_ADDR"); metricsAddr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", metrics.Handler())
			if err := http.ListenAndServe(metricsAddr, mux); err != nil {
				logger.Warn("metrics server stopped", zap.Error(err))
			}
		}()
	}

	if err := n.Start(); err != nil {
		logger.Fatal("failed to start node", zap.Error(err))
	}

	select {}
}
