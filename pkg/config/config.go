package config

import (
	"flag"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"
)

// Config structs

type Config struct {
	IsDebug bool `yaml:"is_debug"`

	DataDir string `yaml:"data_dir"`

	MySQL MySQL `yaml:"mysql"`
	Redis Redis `yaml:"redis"`
	Nats  Nats  `yaml:"nats"`
	Etcd  Etcd  `yaml:"etcd"`

	Bitcoin  Bitcoin  `yaml:"bitcoin"`
	Wallet   Wallet   `yaml:"wallet"`
	Exchange Exchange `yaml:"exchange"`

	Env Env `yaml:"env"`
}

type MySQL struct {
	Main MySQLServer `yaml:"main"`
}

type MySQLServer struct {
	Enabled      bool   `yaml:"enabled"`
	Host         string `yaml:"host"`
	Port         int    `yaml:"port"`
	User         string `yaml:"user"`
	Pass         string `yaml:"pass"`
	DB           string `yaml:"db"`
	MaxOpenConns int    `yaml:"max_open_conns"`
}

type Redis struct {
	Main RedisServer `yaml:"main"`
}

type RedisServer struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
	DB      int    `yaml:"db"`
	Pass    string `yaml:"pass"`
	Timeout int    `yaml:"timeout"`
}

type Nats struct {
	Main NatsServer `yaml:"main"`
}

type NatsServer struct {
	Enabled bool   `yaml:"enabled"`
	Url     string `yaml:"url"`
}

type Etcd struct {
	Main EtcdServer `yaml:"main"`
}

type EtcdServer struct {
	Enable bool   `yaml:"enable"`
	Url    string `yaml:"url"`
}

// Bitcoin is the bitcoind JSON-RPC endpoint used for deposit tracking and payouts.
type Bitcoin struct {
	Host    string `yaml:"host"`
	User    string `yaml:"user"`
	Pass    string `yaml:"pass"`
	Network string `yaml:"network"` // mainnet, testnet
}

// Wallet is the headless notes wallet reached over NATS request/reply.
type Wallet struct {
	TimeoutSec int `yaml:"timeout_sec"`
}

// Exchange holds the pipeline and matching knobs.
type Exchange struct {
	MinConfirmations int64 `yaml:"min_confirmations"`

	// Dust floors, in the asset's smallest unit. A confirmed deposit below
	// the floor converts with zero counter-asset granted.
	MinSatoshis  int64 `yaml:"min_satoshis"`
	MinNoteUnits int64 `yaml:"min_note_units"`

	// Instant quote safety margin and depth thresholds for the rate scan.
	InstantMargin float64 `yaml:"instant_margin"`
	DepthBTC      float64 `yaml:"depth_btc"`
	DepthNotes    float64 `yaml:"depth_notes"`

	// Conservative floors used when book depth is short.
	SafeBuyRate  float64 `yaml:"safe_buy_rate"`
	SafeSellRate float64 `yaml:"safe_sell_rate"`

	SettleIntervalSec   int `yaml:"settle_interval_sec"`
	PollIntervalSec     int `yaml:"poll_interval_sec"`
	RescanIntervalSec   int `yaml:"rescan_interval_sec"`
	SolvencyIntervalSec int `yaml:"solvency_interval_sec"`
}

type Env struct {
	XlogMode  string `yaml:"xlog_mode"`
	XlogColor bool   `yaml:"xlog_color"`
}

// Global variables

const DEVDATA = "/usr/local/notex/devdata"

var Shared *Config // single instance of the config

var (
	fConfig string // config file path
)

func init() {
	flag.StringVar(&fConfig, "config", "", "specify the config file")
}

// Initialize the Shared config with the given config file path
func Init(configFile string) {
	file, err := os.Open(configFile)
	if err != nil {
		panic(err)
	}
	defer file.Close()

	decoder := yaml.NewDecoder(file)
	err = decoder.Decode(&Shared)
	if err != nil {
		panic(err)
	}

	Shared.FillDefaults()
}

// Initialize the Shared config with the default config file path
func EasyInit() {
	fpath := fConfig
	if fpath == "" {
		fpath = "config/config.yml"
	}

	// if the config file does not exist, use the default config file path
	if _, err := os.Stat(fpath); os.IsNotExist(err) {
		fpath = DEVDATA + "/config.yml"
		printf(fmt.Sprintf("use config: %s (DEVDATA)", fpath))
	} else {
		printf(fmt.Sprintf("use config: %s", fpath))
	}

	// initialize the config
	Init(fpath)
}

// FillDefaults applies the service defaults for unset knobs, so a minimal
// config file still runs a sane exchange.
func (c *Config) FillDefaults() {
	e := &c.Exchange
	if e.MinConfirmations == 0 {
		e.MinConfirmations = 2
	}
	if e.MinSatoshis == 0 {
		e.MinSatoshis = 100000 // typical fee is 0.0008 BTC = 80000 sat
	}
	if e.MinNoteUnits == 0 {
		e.MinNoteUnits = 100000
	}
	if e.InstantMargin == 0 {
		e.InstantMargin = 0.02
	}
	if e.DepthBTC == 0 {
		e.DepthBTC = 0.2
	}
	if e.DepthNotes == 0 {
		e.DepthNotes = 1
	}
	if e.SafeBuyRate == 0 {
		e.SafeBuyRate = 0.04 // higher
	}
	if e.SafeSellRate == 0 {
		e.SafeSellRate = 0.01 // lower
	}
	if e.SettleIntervalSec == 0 {
		e.SettleIntervalSec = 30
	}
	if e.PollIntervalSec == 0 {
		e.PollIntervalSec = 60
	}
	if e.RescanIntervalSec == 0 {
		e.RescanIntervalSec = 600
	}
	if e.SolvencyIntervalSec == 0 {
		e.SolvencyIntervalSec = 300
	}
	if c.Wallet.TimeoutSec == 0 {
		c.Wallet.TimeoutSec = 60
	}
}

// Print the given string to the standard output
func printf(s string) {
	fmt.Printf("%s %s\n", time.Now().Format("2006/01/02 15:04:05"), s)
}
