/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package broker

import (
	"net/http"
	"strings"

	"github.com/julienschmidt/httprouter"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/skip2/go-qrcode"
)

const qrSize = 320

// Register mounts the broker's routes under prefix:
//   - $prefix/peer/ws       → peer websocket
//   - $prefix/room/:code/qr → PNG QR code of the join code
//   - $prefix/metrics       → prometheus metrics
func Register(mux *httprouter.Router, prefix string, b *Broker) {
	mux.GET(prefix+"/peer/ws", b.ServeWS)
	mux.GET(prefix+"/room/:code/qr", qrHandler)
	mux.Handler(http.MethodGet, prefix+"/metrics", promhttp.HandlerFor(b.Registry(), promhttp.HandlerOpts{}))
}

// QR encodes a room code as a PNG.
func QR(code string) ([]byte, error) {
	return qrcode.Encode(code, qrcode.Medium, qrSize)
}

func qrHandler(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	code := strings.TrimSpace(ps.ByName("code"))
	if code == "" || len(code) > maxIDLength {
		http.Error(w, "missing room code", http.StatusBadRequest)
		return
	}

	png, err := QR(code)
	if err != nil {
		http.Error(w, "qr generation failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "public, max-age=3600")
	_, _ = w.Write(png)
}
