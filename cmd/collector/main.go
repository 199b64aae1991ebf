// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of telemetry-collector.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package main

import (
	"context"
	"flag"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/flowvista/telemetry-collector/internal/config"
	"github.com/flowvista/telemetry-collector/internal/connstate"
	"github.com/flowvista/telemetry-collector/internal/generator"
	"github.com/flowvista/telemetry-collector/internal/ingest"
	"github.com/flowvista/telemetry-collector/internal/ingest/ipfix"
	"github.com/flowvista/telemetry-collector/internal/ingest/protobuf"
	"github.com/flowvista/telemetry-collector/internal/ingest/sflow"
	"github.com/flowvista/telemetry-collector/internal/ingest/syslog"
	"github.com/flowvista/telemetry-collector/internal/model"
	"github.com/flowvista/telemetry-collector/internal/opstore"
	"github.com/flowvista/telemetry-collector/internal/pubsub"
	"github.com/flowvista/telemetry-collector/internal/runtimeEnv"
	"github.com/flowvista/telemetry-collector/internal/session"
	"github.com/flowvista/telemetry-collector/internal/store"
	"github.com/flowvista/telemetry-collector/internal/uve"
	cclog "github.com/flowvista/telemetry-collector/pkg/log"
)

// seqProviderAdapter breaks the construction cycle between the generator
// registry (needs a SequenceProvider) and the opstore client (needs a
// Router, which the registry satisfies): the registry is built first
// against this adapter, and client is assigned into it immediately after
// the opstore client is constructed, before either touches the network.
type seqProviderAdapter struct {
	client *opstore.Client
}

func (a *seqProviderAdapter) LastSequences(id model.GeneratorId) (map[string]uint64, error) {
	return a.client.LastSequences(id)
}

// connStateListener bridges opstore.StatusListener's single RedisUpdate
// callback out to both the generator registry's pause/resume broadcast
// and the connection-state registry's peer-status bookkeeping.
type connStateListener struct {
	registry  *generator.Registry
	connState *connstate.Registry
	endpoint  string
}

func (l *connStateListener) RedisUpdate(up bool) {
	status := model.StatusDown
	if up {
		status = model.StatusUp
		l.registry.OnRedisUp()
	} else {
		l.registry.OnRedisDown()
	}
	l.connState.Update(model.ConnRedis, model.RoleClient, l.endpoint, status, "", time.Now().UnixMicro())
}

func main() {
	var flagConfigFile string
	flag.StringVar(&flagConfigFile, "config", "./config.json", "Overwrite the default configuration with the options in `config.json`")
	flag.Parse()

	if err := runtimeEnv.LoadEnv("./.env"); err != nil && !os.IsNotExist(err) {
		cclog.Fatalf("parsing './.env' file failed: %s", err.Error())
	}

	config.Init(flagConfigFile)
	cfg := config.Keys

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// --- C12: connection-state registry + periodic metrics emitter ---
	connState := connstate.NewRegistry(prometheus.DefaultRegisterer)
	emitter, err := connstate.NewEmitter(connState)
	if err != nil {
		cclog.Fatalf("[MAIN]> constructing connstate emitter: %v", err)
	}

	// --- C2: store writer against the wide-column backing store ---
	cqlSession, err := store.Connect(cfg.CassandraEndpoints, cfg.CassandraUser, cfg.CassandraPassword)
	if err != nil {
		cclog.Fatalf("[MAIN]> connecting to cassandra: %v", err)
	}
	writer := store.NewWriter(cqlSession, cfg.TTLMap, cfg.RowTimeShiftK, cfg.FieldCacheShiftC)
	if err := writer.Init(true); err != nil {
		cclog.Fatalf("[MAIN]> store Init: %v", err)
	}

	// --- C3: generator registry, built against a late-bound adapter so
	// construction order can be registry-first, opstore-second. ---
	seqAdapter := &seqProviderAdapter{}
	registry := generator.New(seqAdapter)

	// --- C7: operational KV store client ---
	opstoreClient := opstore.New(cfg.RedisUveEndpoint, cfg.RedisPassword, registry,
		&connStateListener{registry: registry, connState: connState, endpoint: cfg.RedisUveEndpoint})
	seqAdapter.client = opstoreClient

	if err := opstoreClient.ConnectTo(ctx); err != nil {
		cclog.Fatalf("[MAIN]> opstore ConnectTo: %v", err)
	}
	if err := opstoreClient.ConnectFrom(ctx); err != nil {
		cclog.Errorf("[MAIN]> opstore ConnectFrom: %v (will not receive routed messages)", err)
	}

	// --- C8: pub/sub producer ---
	brokers := strings.Split(cfg.Brokers, ",")
	for i := range brokers {
		brokers[i] = strings.TrimSpace(brokers[i])
	}
	producer := pubsub.NewProducer(brokers)
	go producer.Watchdog(ctx, registry.OnRedisUp)

	// --- C6: UVE publisher wiring C7 + C8 ---
	publisher := uve.New(opstoreClient, producer, cfg.Partitions, cfg.AggConf, cfg.RedisUveEndpoint)

	// --- C4: session pipeline, one Worker per Generator ---
	pipeline := session.New(writer, publisher)
	registry.OnNewGenerator(func(g *generator.Generator) {
		worker := session.NewWorker(pipeline)
		go worker.Run(ctx, g)
	})

	// --- C9: aggregation consumer + proxy aggregator ---
	if len(cfg.AggConf) > 0 {
		topics := make(map[string][]pubsub.ProxyKind, len(cfg.AggConf))
		for topic := range cfg.AggConf {
			topics[topic] = []pubsub.ProxyKind{pubsub.ProxySum, pubsub.ProxyEWMAAnomaly}
		}
		proxies := pubsub.NewProxyMap()
		// TraceEmitter mirrors the original analytics daemon's
		// AggProxySumTrace/AggProxySumAnomalyEWM01Trace sends: a
		// structured log record, not a persisted UVE write.
		emit := func(partition int, proxyName string, kind pubsub.ProxyKind, value float64) {
			cclog.Infof("[AGG]> partition=%d proxy=%s kind=%d value=%f", partition, proxyName, kind, value)
		}
		consumer, err := pubsub.NewConsumer(brokers, topics, proxies, emit)
		if err != nil {
			cclog.Errorf("[MAIN]> constructing aggregation consumer: %v", err)
		} else {
			go func() {
				if err := consumer.Run(ctx); err != nil && ctx.Err() == nil {
					cclog.Errorf("[MAIN]> aggregation consumer exited: %v", err)
				}
			}()
		}
	}

	// --- C10: UDP ingest servers (sFlow, IPFIX, structured syslog,
	// protobuf stats). The primary bidirectional generator<->collector
	// transport that ctrl/SendCtrlReply/RouteToMatching drive is out of
	// scope here; wiring it in means adding a Session implementation atop
	// whatever framed connection that transport uses and registering it
	// with registry.OnCtrlMessage/Dispatch/OnDisconnect.
	var wg sync.WaitGroup

	sflowSrv := ingest.NewServer("UnderlayFlowSample", sflow.New(), writer)
	sflowSrv.OnNewSourceIP(func(workerCtx context.Context, sourceIP string) {
		go sflowSrv.RunWorker(workerCtx, sourceIP)
	})
	startIngestServer(&wg, ctx, sflowSrv, cfg.ListenAddr, cfg.SflowPort, "sflow")

	ipfixSrv := ingest.NewServer("UnderlayFlowSample", ipfix.New(), writer)
	ipfixSrv.OnNewSourceIP(func(workerCtx context.Context, sourceIP string) {
		go ipfixSrv.RunWorker(workerCtx, sourceIP)
	})
	startIngestServer(&wg, ctx, ipfixSrv, cfg.ListenAddr, cfg.IpfixPort, "ipfix")

	syslogSrv := syslog.NewServer(pipeline)
	if err := syslogSrv.Listen(cfg.ListenAddr, cfg.StructuredSyslogPort); err != nil {
		cclog.Errorf("[MAIN]> syslog Listen failed: %v", err)
	} else {
		wg.Add(1)
		go func() {
			defer wg.Done()
			syslogSrv.Serve(ctx)
		}()
	}

	protobufSrv := protobuf.NewServer(writer)
	protoAddr, err := net.ResolveUDPAddr("udp", net.JoinHostPort(cfg.ListenAddr, strconv.Itoa(cfg.ProtobufPort)))
	if err != nil {
		cclog.Errorf("[MAIN]> resolving protobuf listen address: %v", err)
	} else if err := protobufSrv.Listen(protoAddr); err != nil {
		cclog.Errorf("[MAIN]> protobuf Listen failed: %v", err)
	} else {
		wg.Add(1)
		go func() {
			defer wg.Done()
			protobufSrv.Serve(ctx)
		}()
	}

	if err := runtimeEnv.DropPrivileges(cfg.User, cfg.Group); err != nil {
		cclog.Fatalf("[MAIN]> dropping privileges: %v", err)
	}

	if err := emitter.Start(30*time.Second, func(r *connstate.Registry) {
		r.SetUpdateNoConn(publisher.UpdateNoConnCount())
		r.SetGeneratorCount(registry.Len())
	}); err != nil {
		cclog.Errorf("[MAIN]> starting connstate emitter: %v", err)
	}

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.Handler())
	metricsServer := &http.Server{Addr: cfg.MetricsAddr, Handler: metricsMux}
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			cclog.Errorf("[MAIN]> metrics server: %v", err)
		}
	}()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	wg.Add(1)
	go func() {
		defer wg.Done()
		<-sigs
		runtimeEnv.SystemdNotifiy(false, "shutting down")

		cancel()
		_ = metricsServer.Shutdown(context.Background())
		_ = sflowSrv.Shutdown()
		_ = ipfixSrv.Shutdown()
		_ = syslogSrv.Shutdown()
		_ = protobufSrv.Shutdown()
		_ = emitter.Shutdown()
		_ = producer.Close()
		opstoreClient.Close()
		cqlSession.Close()
	}()

	runtimeEnv.SystemdNotifiy(true, "running")
	wg.Wait()
	cclog.Print("Gracefull shutdown completed!")
}

// startIngestServer binds srv to addr:port and starts its receive loop
// in the background, logging and skipping the protocol on bind failure
// rather than aborting the whole process.
func startIngestServer(wg *sync.WaitGroup, ctx context.Context, srv *ingest.Server, addr string, port int, name string) {
	if err := srv.Initialize(addr, port); err != nil {
		cclog.Errorf("[MAIN]> %s Initialize failed: %v", name, err)
		return
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		srv.StartReceive(ctx)
	}()
}
