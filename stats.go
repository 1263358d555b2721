// Copyright (c) 2024 The Gnet Authors. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package lineecho

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/julienschmidt/httprouter"
)

// statsServer answers the number of live connections over HTTP.
type statsServer struct {
	ln  net.Listener
	srv *http.Server
}

func newStatsRouter(count func() int) *httprouter.Router {
	router := httprouter.New()
	router.GET("/", func(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte(howMany(count())))
	})
	router.GET("/health", func(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	return router
}

func listenStats(addr string, count func() int) (*statsServer, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	return &statsServer{
		ln: ln,
		srv: &http.Server{
			Handler:           newStatsRouter(count),
			ReadHeaderTimeout: 5 * time.Second,
		},
	}, nil
}

func (s *statsServer) addr() net.Addr {
	return s.ln.Addr()
}

func (s *statsServer) serve() error {
	if err := s.srv.Serve(s.ln); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *statsServer) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.srv.Shutdown(ctx)
}
