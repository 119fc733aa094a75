// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

//go:build integration

package streaming_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention

	"github.com/holomush/eventhub/internal/gateway"
	"github.com/holomush/eventhub/internal/hub"
	"github.com/holomush/eventhub/internal/upstream"
)

// collector is a fake upstream that pushes whatever frames the test queues.
type collector struct {
	server *httptest.Server
	frames chan string
	drop   chan struct{}
}

func newCollector() *collector {
	c := &collector{frames: make(chan string, 16), drop: make(chan struct{}, 1)}
	upgrader := websocket.Upgrader{}
	c.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer func() { _ = conn.Close() }()
		for {
			select {
			case f := <-c.frames:
				if err := conn.WriteMessage(websocket.TextMessage, []byte(f)); err != nil {
					return
				}
			case <-c.drop:
				return
			case <-r.Context().Done():
				return
			}
		}
	}))
	return c
}

func (c *collector) url() string {
	return "ws" + strings.TrimPrefix(c.server.URL, "http")
}

type message struct {
	Service      string            `json:"service"`
	Type         string            `json:"type"`
	Connected    *bool             `json:"connected"`
	Endpoint     string            `json:"endpoint"`
	Online       map[string]bool   `json:"online"`
	Payload      map[string]string `json:"payload"`
	Subscription *struct {
		EventNames []string `json:"eventNames"`
		Worlds     []string `json:"worlds"`
	} `json:"subscription"`
}

type client struct {
	conn *websocket.Conn
	msgs chan message
}

func dialClient(addr string) *client {
	conn, resp, err := websocket.DefaultDialer.Dial("ws://"+addr+gateway.StreamingPath, nil)
	Expect(err).NotTo(HaveOccurred())
	_ = resp.Body.Close()

	c := &client{conn: conn, msgs: make(chan message, 64)}
	go func() {
		defer close(c.msgs)
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var m message
			if json.Unmarshal(data, &m) == nil {
				c.msgs <- m
			}
		}
	}()
	return c
}

func (c *client) send(cmd string) {
	Expect(c.conn.WriteMessage(websocket.TextMessage, []byte(cmd))).To(Succeed())
}

// next returns the next message of the given type, skipping others.
func (c *client) next(typ string) message {
	var found message
	Eventually(func() bool {
		select {
		case m, ok := <-c.msgs:
			if !ok {
				return false
			}
			if m.Type == typ {
				found = m
				return true
			}
		default:
		}
		return false
	}).WithTimeout(3 * time.Second).WithPolling(time.Millisecond).Should(BeTrue(), "waiting for %s", typ)
	return found
}

var _ = Describe("Streaming hub", func() {
	var (
		ctx       context.Context
		cancel    context.CancelFunc
		connery   *collector
		h         *hub.Hub
		srv       *gateway.Server
		tracker   *upstream.Tracker
		heartbeat *hub.Heartbeater
		done      chan struct{}
	)

	BeforeEach(func() {
		ctx, cancel = context.WithCancel(context.Background())
		connery = newCollector()

		collectors := []upstream.Collector{{Endpoint: "EventServerEndpoint_Connery_1", URL: connery.url(), Worlds: []uint32{1}}}
		h = hub.New(hub.Config{})
		tracker = upstream.NewTracker(collectors, func(endpoint string, worlds []uint32, online bool) {
			h.LinkChanged(endpoint, worlds, online)
		})
		ingress := upstream.NewIngress(collectors, tracker, 0)
		heartbeat = hub.NewHeartbeater(h, tracker, time.Hour)

		var err error
		srv, err = gateway.NewServer(gateway.Config{Addr: "127.0.0.1:0"}, h, nil, nil)
		Expect(err).NotTo(HaveOccurred())

		done = make(chan struct{})
		go func() {
			defer close(done)
			go func() { _ = ingress.Run(ctx) }()
			go func() { _ = h.Run(ctx, ingress.Frames()) }()
			_ = srv.Run(ctx)
		}()
		Eventually(srv.Ready).Should(BeTrue())
		Eventually(func() bool { return tracker.IsOnline("EventServerEndpoint_Connery_1") }).Should(BeTrue())
	})

	AfterEach(func() {
		cancel()
		Eventually(done).WithTimeout(10 * time.Second).Should(BeClosed())
		connery.server.Close()
	})

	It("delivers matching events and filters others", func() {
		a := dialClient(srv.Addr())
		b := dialClient(srv.Addr())
		a.next("subscription")
		b.next("subscription")

		a.send(`{"service":"event","action":"subscribe","eventNames":["MapStateUpdate"],"worlds":["all"]}`)
		b.send(`{"service":"event","action":"subscribe","eventNames":["ContinentLock"],"worlds":["1"]}`)
		Expect(a.next("subscription").Subscription.Worlds).To(Equal([]string{"all"}))
		Expect(b.next("subscription").Subscription.Worlds).To(Equal([]string{"1"}))

		connery.frames <- `{"event_name":"MapStateUpdate","world_id":"1","facility_id":"7","timestamp":"1700000000"}`
		connery.frames <- `{"event_name":"ContinentLock","world_id":"1","zone_id":"2","timestamp":"1700000001"}`

		Expect(a.next("serviceMessage").Payload["facility_id"]).To(Equal("7"))
		Expect(b.next("serviceMessage").Payload["zone_id"]).To(Equal("2"))
		Consistently(func() int { return len(a.msgs) }).WithTimeout(100 * time.Millisecond).Should(BeZero())
	})

	It("sends heartbeats to clients with empty subscriptions", func() {
		c := dialClient(srv.Addr())
		c.next("subscription")

		Eventually(func() int { return h.Len() }).Should(Equal(1))
		heartbeat.Beat(ctx)

		hb := c.next("heartbeat")
		Expect(hb.Online).To(HaveKeyWithValue("EventServerEndpoint_Connery_1", true))
	})

	It("notifies subscribers when a collector drops", func() {
		c := dialClient(srv.Addr())
		c.next("subscription")
		c.send(`{"service":"event","action":"subscribe","worlds":["1"]}`)
		c.next("subscription")

		connery.drop <- struct{}{}

		change := c.next("connectionStateChanged")
		Expect(change.Endpoint).To(Equal("EventServerEndpoint_Connery_1"))
		Expect(*change.Connected).To(BeFalse())

		reconnected := c.next("connectionStateChanged")
		Expect(*reconnected.Connected).To(BeTrue())
	})

	It("closes clients on shutdown", func() {
		c := dialClient(srv.Addr())
		c.next("subscription")

		cancel()
		Eventually(c.msgs).WithTimeout(5 * time.Second).Should(BeClosed())
	})
})
