// Package notify delivers fire-and-forget messages to users and to the
// admin alert channel over plain NATS. Delivery failures are logged, never
// retried; the ledger is the source of truth, notices are a courtesy.
package notify

import (
	"encoding/json"
	"time"

	"notex/pkg/xlog"
	"notex/pkg/xnats"

	"github.com/nats-io/nats.go"
)

var logger = xlog.GetLogger()

type Notifier struct {
	NC *nats.Conn
}

var Shared *Notifier

func New(nc *nats.Conn) *Notifier {
	return &Notifier{NC: nc}
}

func InitShared(nc *nats.Conn) {
	Shared = New(nc)
}

func (n *Notifier) publish(subj string, msg xnats.Notice) {
	msg.Time = time.Now().UnixNano()

	data, err := json.Marshal(msg)
	if err != nil {
		logger.Errorf("notify marshal failed with err:%s", err)
		return
	}

	if n.NC == nil {
		// notifications disabled, keep the message in the log at least
		logger.Infof("notify (no nats) %s: %s", subj, msg.Text)
		return
	}

	err = n.NC.Publish(subj, data)
	if err != nil {
		logger.Errorf("notify publish %s failed with err:%s", subj, err)
	}
}

// User sends a message to one user's notice subject.
func (n *Notifier) User(userID int64, text string) {
	logger.Infof("notify user:%d %s", userID, text)
	n.publish(xnats.SubjNotify(userID), xnats.Notice{UserID: userID, Text: text})
}

// Admin raises an operator alert. Used for integrity faults, liquidity
// gaps, payout failures and solvency shortfalls.
func (n *Notifier) Admin(text string) {
	logger.Warningf("notify admin %s", text)
	n.publish(xnats.SubjAlert, xnats.Notice{Text: text})
}
