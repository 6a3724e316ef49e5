// Command soundrelayd runs the soundrelay daemon in the foreground. It is
// intended for service managers like systemd; interactive use goes through
// `soundrelay daemon start`, which launches the same runtime detached.
package main

import (
	"context"
	"flag"
	"log"

	"soundrelay/internal/config"
	"soundrelay/internal/daemonrun"
)

func main() {
	configPath := flag.String("config", "", "configuration file path")
	socketPath := flag.String("socket", "", "IPC socket path override")
	logLevel := flag.String("log-level", "", "log level override (debug, info, warn, error)")
	flag.Parse()

	cfg, _, _, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	opts := daemonrun.Options{
		LogLevel:   *logLevel,
		SocketPath: *socketPath,
	}
	if err := daemonrun.Run(context.Background(), cfg, opts); err != nil {
		log.Fatalf("soundrelayd: %v", err)
	}
}
