package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"notex/pkg/book"
	"notex/pkg/chain"
	"notex/pkg/config"
	"notex/pkg/info"
	"notex/pkg/ingress"
	"notex/pkg/journal"
	"notex/pkg/model"
	"notex/pkg/notify"
	"notex/pkg/pipeline"
	"notex/pkg/rates"
	"notex/pkg/settle"
	"notex/pkg/solvency"
	"notex/pkg/wallet"
	"notex/pkg/xetcd"
	"notex/pkg/xlog"
	"notex/pkg/xnats"
)

var logger = xlog.GetLogger()

var (
	fApp     string
	fLogDir  string
	fLogFile string
)

var (
	apps = map[string]bool{"core": true, "jm": true}
)

func init() {
	flag.StringVar(&fApp, "app", "", "")
	flag.StringVar(&fLogDir, "logdir", "", "")
	flag.StringVar(&fLogFile, "logfile", "", "")
}

func main() {
	var err error
	flag.Parse()

	if !apps[fApp] {
		validApps := ""
		for k := range apps {
			validApps += k + ", "
		}
		panic("invalid app, only (" + validApps + ") avaliable")
	}

	// Initialize the Shared config
	config.EasyInit()

	// Initialize the logger
	if fLogDir == "" {
		fLogDir = filepath.Join(config.Shared.DataDir, "logs")
	}
	if fLogFile == "" {
		fLogFile = fApp + ".log"
	}
	logPath := filepath.Join(fLogDir, fLogFile)
	xlog.Init(fApp, logPath, nil)
	logger.Info(info.Banner(fApp))
	logger.Infof("xlog in %s", logPath)

	// Handle signals
	go handleSignals()

	// Start the app
	switch fApp {
	case "core":
		err = startCore()
	case "jm":
		err = startJournalMonitor()
	default:
		return
	}

	if err != nil {
		logger.Error(err)
		panic(err)
	}
}

// handleSignals handles linux signals
//
//	Function 1: Change log level via SIGUSR1 signal
//		docker exec <container_id> sh -c 'export XLOG_LVL=TRACE && kill -SIGUSR1 1'
func handleSignals() {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGUSR1)
	logLevelChan := make(chan string)

	for {
		select {
		case sig := <-sigChan:
			if sig == syscall.SIGUSR1 {
				// Read log level from environment variable
				level := os.Getenv("XLOG_LVL")
				if level != "" {
					logLevelChan <- level
				}
			}
		case level := <-logLevelChan:
			logger := xlog.GetLogger()
			logger.SetLevel(level)
			logger.Infof("Log level set to %s via signal", level)
		}
	}
}

// startCore starts the exchange: deposit pipeline, order book, rate
// oracle, settlement engine, solvency monitor and the deposit event feed.
func startCore() (err error) {
	// Initialize the etcd instance
	if config.Shared.Etcd.Main.Enable {
		err = xetcd.InitShared([]string{config.Shared.Etcd.Main.Url})
		if err != nil {
			logger.Errorf("xetcd.InitShared failed with err:%s", err)
			return
		}
		err = xetcd.Put(xetcd.KeyService("core"), info.Banner("core"))
		if err != nil {
			return
		}
	}

	// Initialize the database instances(mysql, redis)
	// fatal if failed
	model.DBInit()

	err = model.Migrate(model.GetMySQL())
	if err != nil {
		return
	}

	// NATS carries notices, wallet request/reply and the deposit feed
	nc, err := xnats.Connect(config.Shared.Nats.Main.Url)
	if err != nil {
		return
	}
	notify.InitShared(nc)

	j, err := journal.New(path.Join(config.Shared.DataDir, "journal", "notex.log"))
	if err != nil {
		return
	}

	btc, err := chain.NewBitcoind(config.Shared.Bitcoin)
	if err != nil {
		return
	}
	wal := wallet.New(nc, config.Shared.Wallet)

	b := book.New()
	oracle := rates.New(b, notify.Shared)

	// the first Load fires the oracle's initial recompute
	err = b.Load()
	if err != nil {
		return
	}

	p := pipeline.New(b, oracle, notify.Shared, j)
	p.Alloc[model.SideBuy] = btc
	p.Alloc[model.SideSell] = wal
	p.Conf[model.SideBuy] = btc
	p.Conf[model.SideSell] = wal
	// the wallet protocol has no since-block scan; sell-side recovery is
	// the push feed plus confirmation polling over stored deposits
	p.Scanner[model.SideBuy] = btc

	s := settle.New(notify.Shared, j)
	s.Payout[model.SideBuy] = wal
	s.Payout[model.SideSell] = btc

	m := solvency.New(notify.Shared, btc, wal)

	go p.StartPolling()
	go p.StartRescan()
	go s.StartSettling()
	go m.StartChecking()

	ing := ingress.New(p)
	ing.StartSubNats()

	return
}

// startJournalMonitor starts the journal monitor app
//
//	Function 1: Follow the core journal and log each entry as it lands
//	Function 2: Monitor the journal files and print the throughput every 30 seconds
func startJournalMonitor() (err error) {
	go followCoreJournal()

	for {
		time.Sleep(30 * time.Second)
		err = runJournalMonitorOne()
		if err != nil {
			logger.Errorf("runJournalMonitorOne failed with err:%s", err)
		}
	}
}

// followCoreJournal tails the core journal and logs every new entry.
func followCoreJournal() {
	jn, err := journal.New(path.Join(config.Shared.DataDir, "journal", "notex.log"))
	if err != nil {
		logger.Errorf("followCoreJournal open failed with err:%s", err)
		return
	}
	defer jn.Close()

	ch := make(chan string, 64)
	go func() {
		for line := range ch {
			var e journal.Entry
			if err := json.Unmarshal([]byte(line), &e); err != nil {
				logger.Errorf("followCoreJournal parse failed with err:%s", err)
				continue
			}
			logger.Infof("journal entry seq:%d, kind:%s", e.Seq, e.Kind)
		}
	}()

	for {
		err = jn.Tailf(ch)
		if err != nil {
			logger.Errorf("followCoreJournal tail failed with err:%s", err)
		}
		time.Sleep(time.Second)
	}
}

// runJournalMonitorOne runs the journal monitor one time
//
//	Function 1: Traverse all files ending with .log,
//		read the first and last line of each file,
//		each line should be a json object,
//		parse out {ts: nanosec, seq: int64} values,
//		calculate the time difference and seq difference, and output
func runJournalMonitorOne() (err error) {
	journalDir := path.Join(config.Shared.DataDir, "journal")

	err = filepath.Walk(journalDir, func(fpath string, fi os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		if !fi.IsDir() && strings.HasSuffix(fi.Name(), ".log") {
			jn, err := journal.New(fpath)
			if err != nil {
				return err
			}
			defer jn.Close()

			firstLine, err := jn.ReadFirstLine()
			if err != nil {
				return err
			}
			lastLine, err := jn.ReadLastLine()
			if err != nil {
				return err
			}

			var first, last journal.Entry
			if err := json.Unmarshal([]byte(firstLine), &first); err != nil {
				return err
			}
			if err := json.Unmarshal([]byte(lastLine), &last); err != nil {
				return err
			}

			seqDiff := last.Seq - first.Seq
			duration := time.Duration(last.Ts-first.Ts) * time.Nanosecond
			lastTime := time.Unix(0, last.Ts)

			rate := int64(0)
			if int64(duration.Seconds()) > 0 {
				rate = seqDiff / int64(duration.Seconds())
			}
			fmt.Printf(
				"Journal: %s recorded %d entries in %s up to %s with rate %d/sec\n",
				fpath, seqDiff, duration, lastTime.Format(time.RFC3339), rate,
			)
		}
		return nil
	})
	if err != nil {
		return
	}

	return
}
