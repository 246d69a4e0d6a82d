package xnats_test

import (
	"os"
	"testing"

	"notex/pkg/xnats"

	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/require"
)

func TestSubjects(t *testing.T) {
	require.Equal(t, "NOTEX.Deposit.buy", xnats.SubjDeposit("buy"))
	require.Equal(t, "NOTEX.Notify.42", xnats.SubjNotify(42))
}

func TestCreateStream(t *testing.T) {
	if os.Getenv("NOTEX_TEST_NATS") == "" {
		t.Skip("needs a local nats-server with jetstream")
	}

	nc, err := xnats.Connect(nats.DefaultURL)
	require.Nil(t, err)
	defer nc.Close()

	js, err := xnats.JetStream(nc)
	require.Nil(t, err)

	_, err = js.AddStream(&nats.StreamConfig{
		Name:     "NOTEX",
		Subjects: []string{"NOTEX.Deposit.*"},
	})
	require.Nil(t, err)
}
