// Package ws exposes a read-only map view over websockets. Clients request
// chunks one at a time; requesting a chunk forces its generation, so the
// endpoint doubles as an exploration trigger for map tooling.
package ws

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/kaessert/secretworld-sub000/internal/terrain"
	"github.com/kaessert/secretworld-sub000/internal/terrain/chunk"
	"github.com/kaessert/secretworld-sub000/internal/terrain/tile"
	"github.com/kaessert/secretworld-sub000/internal/worldgrid"
)

const ProtocolVersion = "map.v1"

type MapReq struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	CX              int    `json:"cx"`
	CY              int    `json:"cy"`
}

type MapChunk struct {
	Type            string        `json:"type"`
	ProtocolVersion string        `json:"protocol_version"`
	CX              int           `json:"cx"`
	CY              int           `json:"cy"`
	Size            int           `json:"size"`
	Seed            int64         `json:"seed"`
	Digest          string        `json:"digest"`
	Kinds           []string      `json:"kinds"`
	Locations       []MapLocation `json:"locations,omitempty"`
}

type MapLocation struct {
	Name     string   `json:"name"`
	Category string   `json:"category,omitempty"`
	X        int      `json:"x"`
	Y        int      `json:"y"`
	Flags    []string `json:"flags,omitempty"`
}

type Server struct {
	rs   *tile.Ruleset
	mgr  *terrain.Manager
	grid *worldgrid.Grid
	log  *log.Logger

	upgrader websocket.Upgrader
}

func NewServer(rs *tile.Ruleset, mgr *terrain.Manager, grid *worldgrid.Grid, logger *log.Logger) *Server {
	return &Server{
		rs:   rs,
		mgr:  mgr,
		grid: grid,
		log:  logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  64 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
	}
}

func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		out := make(chan []byte, 16)

		// Writer goroutine.
		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case b, ok := <-out:
					if !ok {
						return
					}
					_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
					if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
						cancel()
						return
					}
				}
			}
		}()

		// Reader loop.
		for {
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				cancel()
				return
			}
			var req MapReq
			if err := json.Unmarshal(msg, &req); err != nil {
				continue
			}
			if req.Type != "MAP_REQ" || req.ProtocolVersion != ProtocolVersion {
				continue
			}

			resp := s.buildChunk(chunk.Coord{CX: req.CX, CY: req.CY})
			b, err := json.Marshal(resp)
			if err != nil {
				continue
			}
			select {
			case out <- b:
			case <-ctx.Done():
				return
			}
		}
	}
}

func (s *Server) buildChunk(c chunk.Coord) MapChunk {
	ch := s.mgr.ChunkAt(c)

	kinds := make([]string, len(ch.Kinds))
	for i, k := range ch.Kinds {
		kinds[i] = s.rs.KindName(k)
	}

	resp := MapChunk{
		Type:            "MAP_CHUNK",
		ProtocolVersion: ProtocolVersion,
		CX:              c.CX,
		CY:              c.CY,
		Size:            ch.Size,
		Seed:            ch.Seed,
		Digest:          ch.Digest(),
		Kinds:           kinds,
	}

	if s.grid != nil {
		x0, y0 := c.CX*ch.Size, c.CY*ch.Size
		for _, loc := range s.grid.Locations() {
			if loc.Coord.X < x0 || loc.Coord.X >= x0+ch.Size ||
				loc.Coord.Y < y0 || loc.Coord.Y >= y0+ch.Size {
				continue
			}
			resp.Locations = append(resp.Locations, MapLocation{
				Name:     loc.Name,
				Category: loc.Category,
				X:        loc.Coord.X,
				Y:        loc.Coord.Y,
				Flags:    loc.Flags,
			})
		}
	}
	return resp
}
