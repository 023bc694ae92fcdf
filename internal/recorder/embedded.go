package recorder

import (
	"fmt"
	"time"

	natsserver "github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

const embeddedReadyTimeout = 10 * time.Second

// EmbeddedServer is an in-process NATS server for single-binary
// deployments. Production multi-node setups point Recorder at an
// external cluster instead.
type EmbeddedServer struct {
	srv    *natsserver.Server
	logger *zap.Logger
}

// StartEmbedded runs a JetStream-enabled server on a random local port
// with file storage under storeDir.
func StartEmbedded(storeDir string, logger *zap.Logger) (*EmbeddedServer, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	opts := &natsserver.Options{
		Host:      "127.0.0.1",
		Port:      -1,
		NoLog:     true,
		NoSigs:    true,
		JetStream: true,
		StoreDir:  storeDir,
	}
	srv, err := natsserver.NewServer(opts)
	if err != nil {
		return nil, fmt.Errorf("creating embedded nats server: %w", err)
	}
	go srv.Start()
	if !srv.ReadyForConnections(embeddedReadyTimeout) {
		srv.Shutdown()
		return nil, fmt.Errorf("embedded nats server not ready after %s", embeddedReadyTimeout)
	}
	logger.Info("embedded nats server started", zap.String("url", srv.ClientURL()))
	return &EmbeddedServer{srv: srv, logger: logger}, nil
}

// ClientURL returns the URL clients connect to.
func (e *EmbeddedServer) ClientURL() string {
	return e.srv.ClientURL()
}

// Shutdown stops the server and waits for it to exit.
func (e *EmbeddedServer) Shutdown() {
	e.srv.Shutdown()
	e.srv.WaitForShutdown()
}

// Connect dials a NATS URL with the retry posture the daemon uses.
func Connect(url string) (*nats.Conn, error) {
	nc, err := nats.Connect(url,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(5),
		nats.ReconnectWait(time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connecting to nats at %s: %w", url, err)
	}
	return nc, nil
}
