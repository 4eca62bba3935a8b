/*
   Twilight-FS - an append-only block filesystem for NOR flash memory
   Copyright (c) 2026, Twilight-FS contributors

   This file is part of Twilight-FS.

   Twilight-FS is free software: you can redistribute it and/or modify
   it under the terms of the GNU General Public License as published by
   the Free Software Foundation, either version 3 of the License, or
   (at your option) any later version.

   Twilight-FS is distributed in the hope that it will be useful,
   but WITHOUT ANY WARRANTY; without even the implied warranty of
   MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
   GNU General Public License for more details.

   You should have received a copy of the GNU General Public License
   along with Twilight-FS. If not, see <http://www.gnu.org/licenses/>.
*/

// Package diag serves read-only HTTP diagnostics over a mounted
// Twilight-FS volume: directory listing, free space, and per-file
// stats. The engine is single-writer (tfs.FS has no internal locking),
// so every request is funneled through one goroutine via a request
// channel rather than guarded with a mutex.
package diag

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"

	"github.com/nsumrak/Twilight-FS/tfs"
)

// Server exposes a mounted *tfs.FS over HTTP for inspection.
type Server struct {
	router *mux.Router
	reqs   chan func(*tfs.FS)
	done   chan struct{}
}

// New builds a Server bound to fs and starts its serialization loop in
// its own goroutine; Close stops that loop.
func New(fs *tfs.FS) *Server {
	s := &Server{
		router: mux.NewRouter(),
		reqs:   make(chan func(*tfs.FS)),
		done:   make(chan struct{}),
	}
	s.router.HandleFunc("/status", s.status).Methods(http.MethodGet)
	s.router.HandleFunc("/ls", s.ls).Methods(http.MethodGet)
	s.router.HandleFunc("/stat/{name}", s.stat).Methods(http.MethodGet)

	go s.serialize(fs)
	return s
}

// Handler returns the http.Handler to pass to http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Close stops the serialization loop.
func (s *Server) Close() {
	close(s.done)
}

// serialize runs every FS access on a single goroutine, the diagnostic
// equivalent of the daemon's per-cartridge Lock/Unlock: callers never
// touch fs directly, they hand it a closure and wait for it to run.
func (s *Server) serialize(fs *tfs.FS) {
	for {
		select {
		case req := <-s.reqs:
			req(fs)
		case <-s.done:
			return
		}
	}
}

func (s *Server) withFS(fn func(*tfs.FS)) {
	done := make(chan struct{})
	s.reqs <- func(fs *tfs.FS) {
		fn(fs)
		close(done)
	}
	<-done
}

func (s *Server) status(w http.ResponseWriter, req *http.Request) {
	var free int
	s.withFS(func(fs *tfs.FS) {
		free = fs.Freespace()
	})
	sendJSON(w, map[string]interface{}{"freeBytes": free})
}

type fileInfo struct {
	Name  string `json:"name"`
	Size  int    `json:"size"`
	Fixed bool   `json:"fixed"`
}

func (s *Server) ls(w http.ResponseWriter, req *http.Request) {
	var files []fileInfo
	var ferr error
	s.withFS(func(fs *tfs.FS) {
		d := fs.NewDir()
		for {
			ok, err := d.Next()
			if err != nil {
				ferr = err
				return
			}
			if !ok {
				return
			}
			size, err := d.Size()
			if err != nil {
				ferr = err
				return
			}
			files = append(files, fileInfo{Name: d.Name(), Size: size, Fixed: d.IsFixed()})
		}
	})
	if ferr != nil {
		sendError(w, ferr, http.StatusInternalServerError)
		return
	}
	sendJSON(w, files)
}

func (s *Server) stat(w http.ResponseWriter, req *http.Request) {
	name := mux.Vars(req)["name"]
	var size int
	var exists bool
	var ferr error
	s.withFS(func(fs *tfs.FS) {
		exists = fs.Exists(name)
		if !exists {
			return
		}
		size, ferr = fs.GetSize(name)
	})
	if !exists {
		sendError(w, tfs.ErrNotFound, http.StatusNotFound)
		return
	}
	if ferr != nil {
		sendError(w, ferr, http.StatusInternalServerError)
		return
	}
	sendJSON(w, fileInfo{Name: name, Size: size, Fixed: true})
}

func sendJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.WithError(err).Warn("encoding diagnostics response failed")
	}
}

func sendError(w http.ResponseWriter, err error, code int) {
	w.WriteHeader(code)
	fmt.Fprintf(w, "%v\n", err)
}
