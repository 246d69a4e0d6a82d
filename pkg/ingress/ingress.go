// Package ingress receives deposit events pushed by the wallet watchers
// over NATS JetStream and feeds them to the deposit pipeline. Events are
// acked even when handling fails: every alertable failure is raised inside
// the pipeline, and the periodic rescan is the recovery path, so redelivery
// would only repeat the alert.
package ingress

import (
	"encoding/json"
	"strings"
	"time"

	"notex/pkg/config"
	"notex/pkg/model"
	"notex/pkg/pipeline"
	"notex/pkg/xlog"
	"notex/pkg/xnats"

	"github.com/nats-io/nats.go"
)

var logger = xlog.GetLogger()

// Worker ingress worker class
type Worker struct {
	Pipeline *pipeline.Worker
}

func New(p *pipeline.Worker) *Worker {
	return &Worker{
		Pipeline: p,
	}
}

func (w *Worker) StartSubNats() {
	round := 0
	for {
		round++
		logger.Infof("StartSubNats round:%d started", round)
		err := w.SubNats()
		if err != nil {
			logger.Errorf("StartSubNats round:%d failed with err:%s", round, err)
		} else {
			logger.Infof("StartSubNats round:%d done", round)
		}
		time.Sleep(time.Second)
	}
}

// SubNats subscribes to deposit events and blocks handling them.
func (w *Worker) SubNats() (err error) {
	nc, err := xnats.Connect(config.Shared.Nats.Main.Url)
	if err != nil {
		return
	}
	defer nc.Close()

	js, err := xnats.JetStream(nc)
	if err != nil {
		return
	}

	ch := make(chan *nats.Msg, 256)
	sub, err := js.ChanSubscribe(xnats.SubjDepositAll, ch, nats.Durable("notex_core"), nats.AckAll())
	if err != nil {
		return
	}
	defer sub.Unsubscribe()

	for {
		m, ok := <-ch
		if !ok {
			return
		}

		if e := w.handle(m); e != nil {
			logger.Errorf("SubNats handle %s failed with err:%s", m.Subject, e)
		}
		if e := m.Ack(); e != nil {
			logger.Errorf("SubNats ack %s failed with err:%s", m.Subject, e)
		}
	}
}

func (w *Worker) handle(m *nats.Msg) (err error) {
	side, ok := sideFromSubject(m.Subject)
	if !ok {
		logger.Warningf("SubNats unknown subject %s", m.Subject)
		return
	}

	var ev xnats.DepositEvent
	err = json.Unmarshal(m.Data, &ev)
	if err != nil {
		return
	}

	return w.Pipeline.Observe(side, ev)
}

func sideFromSubject(subject string) (side int8, ok bool) {
	name := strings.TrimPrefix(subject, "NOTEX.Deposit.")
	switch name {
	case "buy":
		return model.SideBuy, true
	case "sell":
		return model.SideSell, true
	}
	return 0, false
}
