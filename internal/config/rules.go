package config

import (
	"errors"
	"log"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// RulesConfig drives the tax-rule acquisition pipeline: where to fetch
// from, how hard to try, and the bundled last-resort rule table used when
// every other tier fails.
type RulesConfig struct {
	SourceBaseURL string        `mapstructure:"sourceBaseUrl"`
	RatesPath     string        `mapstructure:"ratesPath"`
	ArchivePath   string        `mapstructure:"archivePath"`
	FetchTimeout  time.Duration `mapstructure:"fetchTimeout"`
	FetchRetries  int           `mapstructure:"fetchRetries"`
	RunTimeout    time.Duration `mapstructure:"runTimeout"`
	LockTTL       time.Duration `mapstructure:"lockTtl"`

	StaticTable StaticTable `mapstructure:"staticTable"`
}

// StaticTable is the bundled rule table applied by the final fallback
// tier. Values default to the 2024-2025 SARS figures and may be
// overridden from the config file without a rebuild.
type StaticTable struct {
	Brackets       []StaticBracket `mapstructure:"brackets"`
	Rebates        StaticRebates   `mapstructure:"rebates"`
	Thresholds     StaticThreshold `mapstructure:"thresholds"`
	MedicalCredits StaticMedical   `mapstructure:"medicalCredits"`
}

type StaticBracket struct {
	Lower      int64   `mapstructure:"lower"`
	Upper      *int64  `mapstructure:"upper"`
	Rate       float64 `mapstructure:"rate"`
	BaseAmount int64   `mapstructure:"baseAmount"`
}

type StaticRebates struct {
	Primary   float64 `mapstructure:"primary"`
	Secondary float64 `mapstructure:"secondary"`
	Tertiary  float64 `mapstructure:"tertiary"`
}

type StaticThreshold struct {
	Under65   int64 `mapstructure:"under65"`
	Age65To74 int64 `mapstructure:"age65to74"`
	Age75Plus int64 `mapstructure:"age75plus"`
}

type StaticMedical struct {
	MainMember       float64 `mapstructure:"mainMember"`
	AdditionalMember float64 `mapstructure:"additionalMember"`
}

func DefaultRulesConfig() RulesConfig {
	return RulesConfig{
		SourceBaseURL: "https://www.sars.gov.za",
		RatesPath:     "/tax-rates/income-tax/rates-of-tax-for-individuals/",
		ArchivePath:   "/tax-rates/archive-tax-rates/",
		FetchTimeout:  30 * time.Second,
		FetchRetries:  3,
		RunTimeout:    2 * time.Minute,
		LockTTL:       5 * time.Minute,
		StaticTable:   defaultStaticTable(),
	}
}

// defaultStaticTable holds the 2024-2025 SARS individual tax figures.
func defaultStaticTable() StaticTable {
	return StaticTable{
		Brackets: []StaticBracket{
			{Lower: 1, Upper: int64Ptr(237100), Rate: 0.18, BaseAmount: 0},
			{Lower: 237101, Upper: int64Ptr(370500), Rate: 0.26, BaseAmount: 42678},
			{Lower: 370501, Upper: int64Ptr(512800), Rate: 0.31, BaseAmount: 77362},
			{Lower: 512801, Upper: int64Ptr(673000), Rate: 0.36, BaseAmount: 121475},
			{Lower: 673001, Upper: int64Ptr(857900), Rate: 0.39, BaseAmount: 179147},
			{Lower: 857901, Upper: int64Ptr(1817000), Rate: 0.41, BaseAmount: 251258},
			{Lower: 1817001, Upper: nil, Rate: 0.45, BaseAmount: 644489},
		},
		Rebates: StaticRebates{
			Primary:   17235,
			Secondary: 9444,
			Tertiary:  3145,
		},
		Thresholds: StaticThreshold{
			Under65:   95750,
			Age65To74: 148217,
			Age75Plus: 165689,
		},
		MedicalCredits: StaticMedical{
			MainMember:       347,
			AdditionalMember: 347,
		},
	}
}

func int64Ptr(v int64) *int64 { return &v }

type RulesConfigHolder struct {
	current atomic.Value // holds RulesConfig
}

// FixedRulesConfigHolder pins the holder to cfg with no file watching.
// Used where reload semantics are unwanted, such as tests.
func FixedRulesConfigHolder(cfg RulesConfig) *RulesConfigHolder {
	h := &RulesConfigHolder{}
	h.current.Store(cfg)
	return h
}

// NewRulesConfigHolder loads taxrules.yml (volume mount, /etc, or cwd) and
// watches it for changes so the acquisition endpoints and static table can
// be corrected without a restart. Missing file means defaults.
func NewRulesConfigHolder() (*RulesConfigHolder, error) {
	v := viper.New()

	v.SetConfigName("taxrules")
	v.SetConfigType("yml")
	v.AddConfigPath("/var/lib/veldtax/config")
	v.AddConfigPath("/etc/veldtax")
	v.AddConfigPath(".")

	v.SetEnvPrefix("VELDTAX")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	holder := &RulesConfigHolder{}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		holder.current.Store(DefaultRulesConfig())
		return holder, nil
	}

	cfg, err := unmarshalRules(v)
	if err != nil {
		return nil, err
	}
	holder.current.Store(cfg)

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		updated, err := unmarshalRules(v)
		if err != nil {
			log.Printf("[taxrules-config] reload failed: %v", err)
			return
		}
		holder.current.Store(updated)
		log.Printf("[taxrules-config] reloaded from %s", e.Name)
	})

	return holder, nil
}

func unmarshalRules(v *viper.Viper) (RulesConfig, error) {
	cfg := DefaultRulesConfig()
	if err := v.UnmarshalKey("taxrules", &cfg); err != nil {
		return RulesConfig{}, err
	}
	if err := validateRulesConfig(cfg); err != nil {
		return RulesConfig{}, err
	}
	return cfg, nil
}

func validateRulesConfig(cfg RulesConfig) error {
	if cfg.SourceBaseURL == "" {
		return errors.New("taxrules: sourceBaseUrl is required")
	}
	if cfg.FetchRetries < 1 {
		return errors.New("taxrules: fetchRetries must be at least 1")
	}
	if cfg.FetchTimeout <= 0 || cfg.RunTimeout <= 0 {
		return errors.New("taxrules: timeouts must be positive")
	}
	if len(cfg.StaticTable.Brackets) == 0 {
		return errors.New("taxrules: staticTable.brackets must not be empty")
	}
	return nil
}

// Current returns the latest validated rules config.
func (h *RulesConfigHolder) Current() RulesConfig {
	if v, ok := h.current.Load().(RulesConfig); ok {
		return v
	}
	return DefaultRulesConfig()
}
