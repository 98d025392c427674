package config

import (
	"errors"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type HTTPConfig struct {
	Timeout   time.Duration `yaml:"timeout"`    // per-request hard timeout
	UserAgent string        `yaml:"user_agent"` // default: law-alert/1.0
}

type LawConfig struct {
	Bases []string `yaml:"bases"` // ordered DRF base URLs, first success wins
	Names []string `yaml:"names"` // statute names to track
}

type AdmrulConfig struct {
	Keywords    []string `yaml:"keywords"`    // rule-name search keywords
	Departments []string `yaml:"departments"` // owning-department allowlist (substring match)
}

type BillService struct {
	Service  string `yaml:"service"` // open-assembly service code
	Label    string `yaml:"label"`
	PageSize int    `yaml:"page_size"`
}

type BillConfig struct {
	BaseURL        string        `yaml:"base_url"` // open-assembly portal base
	Service        string        `yaml:"service"`  // bill-name search service code
	LawKeywords    []string      `yaml:"law_keywords"`
	StrictKeywords []string      `yaml:"strict_keywords"`
	ExtraKeywords  []string      `yaml:"extra_keywords"`
	Ages           []string      `yaml:"ages"` // legislative sessions for backfill
	Age            string        `yaml:"age"`  // watch session; "auto" derives the current term
	Recent         []BillService `yaml:"recent_services"`
	MaxItems       int           `yaml:"max_items"`
}

type PathsConfig struct {
	DataDir string `yaml:"data_dir"` // state.json + history.json
	OutDir  string `yaml:"out_dir"`  // published JSON documents
}

type MetricsConfig struct {
	Enable bool   `yaml:"enable"`
	Listen string `yaml:"listen"`
}

type Config struct {
	CutoffDate string        `yaml:"cutoff_date"` // YYYYMMDD backfill floor, inclusive
	Sources    []string      `yaml:"sources"`     // "law", "admrul", "bill"
	HTTP       HTTPConfig    `yaml:"http"`
	Law        LawConfig     `yaml:"law"`
	Admrul     AdmrulConfig  `yaml:"admrul"`
	Bill       BillConfig    `yaml:"bill"`
	Paths      PathsConfig   `yaml:"paths"`
	Metrics    MetricsConfig `yaml:"metrics"`
}

func Load(path string) (Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return Config{}, err
	}
	c.applyDefaults()
	if len(c.Sources) == 0 {
		return c, errors.New("no sources configured")
	}
	return c, nil
}

func (c *Config) applyDefaults() {
	if c.CutoffDate == "" {
		c.CutoffDate = "20200101"
	}
	if c.HTTP.Timeout <= 0 {
		c.HTTP.Timeout = 60 * time.Second
	}
	if c.HTTP.UserAgent == "" {
		c.HTTP.UserAgent = "law-alert/1.0"
	}
	if len(c.Law.Bases) == 0 {
		c.Law.Bases = []string{
			"https://www.law.go.kr/DRF",
			"https://law-proxy.jinsu133.workers.dev/DRF",
		}
	}
	if c.Bill.BaseURL == "" {
		c.Bill.BaseURL = "https://open.assembly.go.kr/portal/openapi"
	}
	if c.Bill.Service == "" {
		c.Bill.Service = "TVBPMBILL11"
	}
	if len(c.Bill.Ages) == 0 {
		c.Bill.Ages = []string{"21", "22"}
	}
	if c.Bill.Age == "" {
		c.Bill.Age = "auto"
	}
	if c.Bill.MaxItems <= 0 {
		c.Bill.MaxItems = 120
	}
	if c.Paths.DataDir == "" {
		c.Paths.DataDir = "data"
	}
	if c.Paths.OutDir == "" {
		c.Paths.OutDir = "public"
	}
	if c.Metrics.Listen == "" {
		c.Metrics.Listen = ":9108"
	}
}

// Credentials are only ever injected through the environment, never the
// config file.
type Credentials struct {
	LawOC       string // law.go.kr operator credential
	AssemblyKey string // open.assembly.go.kr API key
}

func CredentialsFromEnv() Credentials {
	return Credentials{
		LawOC:       strings.TrimSpace(os.Getenv("LAW_OC")),
		AssemblyKey: strings.TrimSpace(os.Getenv("ASSEMBLY_KEY")),
	}
}

// Validate is the one hard startup gate: without either key every query would
// fail, so the run aborts before any network activity.
func (c Credentials) Validate() error {
	if c.LawOC == "" {
		return errors.New("LAW_OC missing (must be set in the environment)")
	}
	if c.AssemblyKey == "" {
		return errors.New("ASSEMBLY_KEY missing (must be set in the environment)")
	}
	return nil
}
