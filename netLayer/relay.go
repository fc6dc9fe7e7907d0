package netLayer

import (
	"io"

	"github.com/essoojay/TrojanRust/utils"
	"go.uber.org/atomic"
	"go.uber.org/zap"
)

// Cumulative byte counts of all finished relay directions since start.
var (
	AllUploadBytesSinceStart   atomic.Uint64
	AllDownloadBytesSinceStart atomic.Uint64
)

// Relay copies from wlc to wrc and from wrc to wlc at the same time,
// blocking until the first direction finishes. This is a race: the moment
// one direction hits EOF or an error, both connections are closed, which
// unblocks the other direction and drops whatever it still had in flight.
// No half-close linger is attempted.
func Relay(realTargetAddr *Addr, wrc, wlc io.ReadWriteCloser) {
	go func() {
		n, e := io.Copy(wrc, wlc)
		if ce := utils.CanLogDebug("relay direction finished"); ce != nil {
			ce.Write(zap.String("direction", "local->remote"),
				zap.String("target", realTargetAddr.String()),
				zap.Int64("bytes", n),
				zap.Error(e),
			)
		}
		AllUploadBytesSinceStart.Add(uint64(n))

		wlc.Close()
		wrc.Close()
	}()

	n, e := io.Copy(wlc, wrc)
	if ce := utils.CanLogDebug("relay direction finished"); ce != nil {
		ce.Write(zap.String("direction", "remote->local"),
			zap.String("target", realTargetAddr.String()),
			zap.Int64("bytes", n),
			zap.Error(e),
		)
	}
	AllDownloadBytesSinceStart.Add(uint64(n))

	wlc.Close()
	wrc.Close()
}
