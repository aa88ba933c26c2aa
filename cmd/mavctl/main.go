// mavctl replays a raw MAVLink byte stream (capture file or stdin)
// through the wire engine, logs the decoded traffic, and optionally
// exposes parser stats over HTTP.
package main

import (
	"errors"
	"io"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/mavkit/mavctl/internal/config"
	"github.com/mavkit/mavctl/internal/dialect/common"
	"github.com/mavkit/mavctl/internal/mavlink/registry"
	"github.com/mavkit/mavctl/internal/mavlink/signing"
	"github.com/mavkit/mavctl/internal/mavlink/stream"
	"github.com/mavkit/mavctl/internal/observability"
)

var startedAt = time.Now()

// framerMu serializes the replay loop and the HTTP stats handler; the
// framer itself is single-threaded by contract.
var framerMu sync.Mutex

func main() {
	logger := observability.InitLogger("mavctl")

	cfgPath := "mavctl.toml"
	if len(os.Args) > 1 {
		cfgPath = os.Args[1]
	}
	svc, err := loadServiceConfig(cfgPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("config")
	}
	link, err := config.LoadLinkConfig(svc.LinkConfigPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("link config")
	}

	table := common.NewTable()
	framer, err := buildFramer(link, table)
	if err != nil {
		logger.Fatal().Err(err).Msg("framer")
	}

	in, err := openCapture(svc.CapturePath)
	if err != nil {
		logger.Fatal().Err(err).Msg("capture")
	}

	if svc.HTTPAddr != "" {
		go serveHTTP(svc, link.Name, framer, logger)
	}

	if err := replay(in, svc.ChunkBytes, link.Name, framer, table, logger); err != nil {
		logger.Fatal().Err(err).Msg("replay")
	}
	in.Close()

	framerMu.Lock()
	st := framer.Stats()
	framerMu.Unlock()
	logger.Info().
		Uint64("packets", st.PacketsReceived).
		Uint64("bytes", st.BytesReceived).
		Uint64("bad_crc", st.BadCRC).
		Uint64("bad_length", st.BadLength).
		Uint64("unknown", st.UnknownMessage).
		Uint64("signature_failures", st.SignatureFailures).
		Msg("replay done")

	if svc.HTTPAddr != "" {
		select {} // keep serving stats until killed
	}
}

func buildFramer(link config.LinkConfig, table registry.Registry) (*stream.Framer, error) {
	resync, err := link.Stream.ResyncPolicy()
	if err != nil {
		return nil, err
	}
	cfg := stream.Config{
		Registry:  table,
		Resync:    resync,
		MaxBuffer: link.Stream.MaxBufferBytes,
	}
	if link.Signing.Enabled() {
		sc, err := link.Signing.Parse()
		if err != nil {
			return nil, err
		}
		cfg.Verifier = signing.NewVerifier(sc)
	}
	return stream.NewFramer(cfg), nil
}

func openCapture(path string) (io.ReadCloser, error) {
	if path == "-" {
		return io.NopCloser(os.Stdin), nil
	}
	return os.Open(path)
}

func replay(in io.Reader, chunkBytes int, linkName string, framer *stream.Framer, table registry.Registry, logger zerolog.Logger) error {
	buf := make([]byte, chunkBytes)
	for {
		n, err := in.Read(buf)
		if n > 0 {
			framerMu.Lock()
			before := framer.Stats()
			packets := framer.Feed(buf[:n])
			after := framer.Stats()
			framerMu.Unlock()
			observability.RecordBytes(linkName, n)
			observability.RecordDrops(linkName, before, after)

			for _, pkt := range packets {
				info, _ := table.Lookup(pkt.MsgID)
				observability.RecordFrameAccepted(linkName, info.Name)
				event := logger.Info().
					Str("msg", info.Name).
					Uint8("seq", pkt.Seq).
					Uint8("sysid", pkt.SysID).
					Uint8("compid", pkt.CompID).
					Bool("mavlink2", pkt.IsMavlink2()).
					Bool("signed", pkt.IsSigned())
				if msg, derr := info.Decode(pkt.Payload); derr == nil {
					event = event.Interface("fields", msg)
				}
				event.Msg("packet")
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
	}
}

func serveHTTP(svc serviceConfig, linkName string, framer *stream.Framer, logger zerolog.Logger) {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	// Middleware: keep it lean
	r.Use(gin.Recovery())
	r.Use(observability.RequestLogger(logger))
	r.Use(observability.RequestMetricsMiddleware())
	r.Use(cors.New(cors.Config{
		AllowOrigins: svc.CorsOrigins,
		AllowMethods: []string{"GET"},
		AllowHeaders: []string{"Origin", "Content-Type"},
		MaxAge:       12 * time.Hour,
	}))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"uptime":  time.Since(startedAt).String(),
			"service": "mavctl",
			"link":    linkName,
		})
	})
	r.GET("/stats", func(c *gin.Context) {
		framerMu.Lock()
		st := framer.Stats()
		framerMu.Unlock()
		c.JSON(http.StatusOK, gin.H{
			"bytes_received":     st.BytesReceived,
			"packets_received":   st.PacketsReceived,
			"bad_crc":            st.BadCRC,
			"bad_length":         st.BadLength,
			"unknown_message":    st.UnknownMessage,
			"signature_failures": st.SignatureFailures,
			"buffer_overflows":   st.BufferOverflows,
		})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	if err := r.Run(svc.HTTPAddr); err != nil {
		logger.Error().Err(err).Msg("http server")
	}
}
