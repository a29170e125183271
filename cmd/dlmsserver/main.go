// Command dlmsserver is a reference DLMS/COSEM logical device: it accepts
// wrapper-framed associations over TCP and answers Get/Set/Action against
// a small in-memory object registry, while a separate gRPC health service
// lets a supervisor poll liveness without touching the DLMS wire.
package main

import (
	"flag"
	"net"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"k8s.io/utils/clock"

	"github.com/cybroslabs/dlms-go/association"
	"github.com/cybroslabs/dlms-go/base"
	"github.com/cybroslabs/dlms-go/tcp"
	"github.com/cybroslabs/dlms-go/wrapper"
)

// idleTimeout bounds how long a read or write may block on an accepted
// connection; an association that goes quiet this long is assumed gone.
const idleTimeout = 2 * time.Minute

func main() {
	listenAddr := flag.String("listen", ":4059", "wrapper-over-TCP listen address")
	healthAddr := flag.String("health", ":50051", "grpc health-check listen address")
	serverTitle := flag.String("system-title", "DLMS0001", "server AP title, 8 octets")
	password := flag.String("password", "", "LLS password, empty disables it")
	flag.Parse()

	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()
	sugar := logger.Sugar()

	go serveHealth(*healthAddr, sugar)
	serveData(*listenAddr, []byte(*serverTitle), []byte(*password), sugar)
}

func serveHealth(addr string, logger *zap.SugaredLogger) {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		logger.Fatalw("health listener failed", "addr", addr, "error", err)
	}
	srv := grpc.NewServer()
	hs := health.NewServer()
	hs.SetServingStatus("dlmsserver", healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(srv, hs)
	logger.Infow("health service listening", "addr", addr)
	if err := srv.Serve(lis); err != nil {
		logger.Errorw("health service stopped", "error", err)
	}
}

func serveData(addr string, serverTitle, password []byte, logger *zap.SugaredLogger) {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		logger.Fatalw("data listener failed", "addr", addr, "error", err)
	}
	logger.Infow("dlms service listening", "addr", addr)

	settings := &association.ServerSettings{
		ApplicationContext: base.ApplicationContextLNNoCiphering,
		Authentication:     base.AuthenticationLow,
		Password:           password,
		ServerSystemTitle:  serverTitle,
		Conformance:        0x1eb19f, // the full LN conformance set the teacher's client offers, bit-anded with the client's proposal
		MaxPduSize:         0xffff,
		DlmsVersion:        6,
	}
	if len(password) == 0 {
		settings.Authentication = base.AuthenticationNone
	}

	for {
		conn, err := lis.Accept()
		if err != nil {
			logger.Errorw("accept failed", "error", err)
			return
		}
		go handleConn(conn, settings, logger)
	}
}

func handleConn(conn net.Conn, settings *association.ServerSettings, logger *zap.SugaredLogger) {
	transport := wrapper.NewServer(tcp.NewFromConn(conn, idleTimeout), 1)
	assoc := association.NewServer(transport, settings)
	assoc.SetLogger(logger)

	if err := assoc.Accept(); err != nil {
		logger.Warnw("association rejected", "remote", conn.RemoteAddr(), "error", err)
		_ = transport.Disconnect()
		return
	}
	logger.Infow("association established", "remote", conn.RemoteAddr())

	s := &session{assoc: assoc, reg: newRegistry(clock.RealClock{}), logger: logger}
	s.run()

	_ = assoc.Disconnect()
}
