package journal_test

import (
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"notex/pkg/journal"

	"github.com/stretchr/testify/require"
)

func TestAppendAndRead(t *testing.T) {
	fp := filepath.Join(t.TempDir(), "journal/notex.log")

	j, err := journal.New(fp)
	require.Nil(t, err)
	defer j.Close()

	err = j.Append(journal.Entry{
		Kind: journal.KindConversion,
		Conversion: &journal.Conversion{
			DepositID: 1,
			UserID:    7,
			Side:      "buy",
			NetAmount: 250000,
			Matched:   250000,
			DealID:    1,
			Price:     "0.045",
		},
	})
	require.Nil(t, err)

	err = j.Append(journal.Entry{
		Kind: journal.KindSettlement,
		Settlement: &journal.Settlement{
			Kind:    "deal",
			RefID:   1,
			UserID:  7,
			Side:    "buy",
			Amount:  55555555,
			Address: "note-addr-7",
			TxRef:   "ref-1",
		},
	})
	require.Nil(t, err)

	first, err := j.ReadFirstLine()
	require.Nil(t, err)
	last, err := j.ReadLastLine()
	require.Nil(t, err)

	var fe, le journal.Entry
	require.Nil(t, json.Unmarshal([]byte(first), &fe))
	require.Nil(t, json.Unmarshal([]byte(last), &le))

	require.Equal(t, int64(1), fe.Seq)
	require.Equal(t, journal.KindConversion, fe.Kind)
	require.Equal(t, int64(2), le.Seq)
	require.Equal(t, journal.KindSettlement, le.Kind)
	require.Equal(t, "ref-1", le.Settlement.TxRef)
}

func TestFollow(t *testing.T) {
	fp := filepath.Join(t.TempDir(), "notex.log")

	j, err := journal.New(fp)
	require.Nil(t, err)
	defer j.Close()

	ch := make(chan string, 64)
	go func() {
		j.Tailf(ch)
	}()

	for i := 0; i < 10; i++ {
		require.Nil(t, j.Append(journal.Entry{Kind: journal.KindConversion}))
	}

	for want := int64(1); want <= 10; want++ {
		select {
		case line := <-ch:
			var e journal.Entry
			require.Nil(t, json.Unmarshal([]byte(line), &e))
			require.Equal(t, want, e.Seq)
		case <-time.After(5 * time.Second):
			t.Fatal("timed out waiting for a followed line")
		}
	}
}

func TestSeqRestoredAcrossReopen(t *testing.T) {
	fp := filepath.Join(t.TempDir(), "notex.log")

	j, err := journal.New(fp)
	require.Nil(t, err)
	for i := 0; i < 3; i++ {
		require.Nil(t, j.Append(journal.Entry{Kind: journal.KindConversion}))
	}
	require.Nil(t, j.Close())

	j2, err := journal.New(fp)
	require.Nil(t, err)
	defer j2.Close()

	require.Nil(t, j2.Append(journal.Entry{Kind: journal.KindConversion}))

	last, err := j2.ReadLastLine()
	require.Nil(t, err)

	var e journal.Entry
	require.Nil(t, json.Unmarshal([]byte(last), &e))
	require.Equal(t, int64(4), e.Seq)
}
