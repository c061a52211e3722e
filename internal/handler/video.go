package handler

import (
	"bytes"
	"fmt"
	"image"
	"net/http"
	"time"

	"weaponwatch/internal/logger"
	"weaponwatch/internal/service/camera"
	"weaponwatch/internal/service/storage"
)

// MJPEGBoundary separates the parts of the live video stream.
const MJPEGBoundary = "frame"

// VideoStreamHandler streams the current annotated frame as multipart JPEG, one part per
// interval, until the client disconnects. Before the first capture the placeholder is sent.
func VideoStreamHandler(current *camera.CurrentFrame, interval time.Duration, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		flusher, _ := w.(http.Flusher)

		w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary="+MJPEGBoundary)
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		var (
			buf     bytes.Buffer
			lastSeq uint64
			encoded bool
		)
		for {
			// Re-encode only when the pipeline published a new frame.
			seq := current.Seq()
			if !encoded || seq != lastSeq {
				var img image.Image = camera.Placeholder()
				if frame, ok := current.Snapshot(); ok {
					img, seq = frame.Image, frame.Seq
				}

				buf.Reset()
				if err := storage.EncodeJPEG(&buf, img); err != nil {
					logger.Error("Failed to encode video frame: %v", err)
					return
				}
				lastSeq, encoded = seq, true
			}

			if _, err := fmt.Fprintf(w, "--%s\r\nContent-Type: image/jpeg\r\nContent-Length: %d\r\n\r\n", MJPEGBoundary, buf.Len()); err != nil {
				return
			}
			if _, err := w.Write(buf.Bytes()); err != nil {
				return
			}
			if _, err := w.Write([]byte("\r\n")); err != nil {
				return
			}
			if flusher != nil {
				flusher.Flush()
			}

			select {
			case <-r.Context().Done():
				return
			case <-ticker.C:
			}
		}
	}
}
