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

//go:build darwin || dragonfly || freebsd || linux

package lineecho

import (
	"context"
	"errors"
	"net"
	"time"

	"go.uber.org/atomic"
	"golang.org/x/sync/errgroup"

	errorx "github.com/panjf2000/lineecho/pkg/errors"
	"github.com/panjf2000/lineecho/pkg/netpoll"
	goPool "github.com/panjf2000/lineecho/pkg/pool/goroutine"
)

type engine struct {
	ln         *listener          // the listener for accepting new connections
	opts       *Options           // options with engine
	eventLoop  *eventloop         // the reactor serving every connection
	stats      *statsServer       // HTTP endpoint answering the connection count
	inShutdown atomic.Bool        // whether the engine is in shutdown
	cancel     context.CancelFunc // stops every goroutine of the engine
	done       chan struct{}      // closed once the engine has released everything
}

func (eng *engine) isInShutdown() bool {
	return eng.inShutdown.Load()
}

func (eng *engine) addr() net.Addr {
	return eng.ln.addr
}

func (eng *engine) statsAddr() net.Addr {
	if eng.stats == nil {
		return nil
	}
	return eng.stats.addr()
}

func (eng *engine) countConn() int {
	return int(eng.eventLoop.countConn())
}

// shutdown marks the engine as shutting down and wakes the reactor up so that it notices.
func (eng *engine) shutdown() {
	if eng.inShutdown.CompareAndSwap(false, true) {
		if err := eng.eventLoop.poller.Wake(); err != nil {
			eng.opts.Logger.Errorf("failed to wake up the reactor when stopping engine: %v", err)
		}
	}
}

func (eng *engine) stop(ctx context.Context) error {
	if eng.isInShutdown() {
		return errorx.ErrEngineInShutdown
	}
	eng.cancel()
	select {
	case <-eng.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// report logs the number of live connections every ReportInterval until ctx is done.
func (eng *engine) report(ctx context.Context) {
	ticker := time.NewTicker(eng.opts.ReportInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			eng.opts.Logger.Infof("%s", howMany(eng.countConn()))
		}
	}
}

func run(ctx context.Context, network, addr string, options *Options) (err error) {
	runCtx, cancel := context.WithCancel(ctx)
	eng := &engine{opts: options, cancel: cancel, done: make(chan struct{})}
	defer close(eng.done)
	defer cancel()

	if eng.ln, err = initListener(network, addr, options); err != nil {
		return
	}
	defer eng.ln.close()

	p, err := netpoll.OpenPoller()
	if err != nil {
		return
	}
	defer func() {
		if err := p.Close(); err != nil {
			options.Logger.Errorf("failed to close poller when stopping engine: %v", err)
		}
	}()

	el := &eventloop{
		ln:     eng.ln,
		engine: eng,
		poller: p,
		events: make([]netpoll.Event, 0, netpoll.InitPollEventsCap),
	}
	el.connections.init()
	eng.eventLoop = el
	if err = p.Register(eng.ln.fd, netpoll.Accept); err != nil {
		return
	}

	if options.StatsAddr != "" {
		if eng.stats, err = listenStats(options.StatsAddr, eng.countConn); err != nil {
			return
		}
	}

	if options.OnBoot != nil {
		options.OnBoot(Engine{eng})
	}
	options.Logger.Infof("lineecho is listening on %s", eng.ln.addr)

	g, gctx := errgroup.WithContext(runCtx)
	g.Go(func() error {
		defer cancel()
		err := el.run()
		if errors.Is(err, errorx.ErrEngineShutdown) {
			options.Logger.Debugf("reactor is exiting in terms of the demand from user, %v", err)
			return nil
		}
		options.Logger.Errorf("reactor is exiting due to error: %v", err)
		return err
	})
	g.Go(func() error {
		<-gctx.Done()
		eng.shutdown()
		return nil
	})
	if eng.stats != nil {
		options.Logger.Infof("stats endpoint is listening on %s", eng.stats.addr())
		g.Go(eng.stats.serve)
		g.Go(func() error {
			<-gctx.Done()
			return eng.stats.shutdown()
		})
	}

	reportDone := make(chan struct{})
	if options.ReportInterval > 0 {
		err = goPool.DefaultWorkerPool.Submit(func() {
			defer close(reportDone)
			eng.report(gctx)
		})
		if err != nil {
			options.Logger.Warnf("connection-count report is disabled: %v", err)
			close(reportDone)
		}
	} else {
		close(reportDone)
	}

	err = g.Wait()
	<-reportDone
	return
}
