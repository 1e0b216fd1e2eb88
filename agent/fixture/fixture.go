package fixture

import (
	_ "embed"
	"fmt"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

var (
	//go:embed data/insurance.yaml
	insuranceRaw []byte

	//go:embed data/providers.yaml
	providersRaw []byte
)

type Provider struct {
	ID          string   `yaml:"id" json:"id"`
	Name        string   `yaml:"name" json:"name"`
	Specialty   string   `yaml:"specialty" json:"specialty"`
	LocationIDs []string `yaml:"location_ids" json:"location_ids"`
}

func (p Provider) ServesLocation(locationID string) bool {
	for _, id := range p.LocationIDs {
		if id == locationID {
			return true
		}
	}
	return false
}

type Location struct {
	ID      string `yaml:"id" json:"id"`
	Name    string `yaml:"name" json:"name"`
	Address string `yaml:"address" json:"address"`
	City    string `yaml:"city" json:"city"`
	State   string `yaml:"state" json:"state"`
}

type Schedule struct {
	Hours           []int `yaml:"hours"`
	DefaultMinutes  int   `yaml:"default_minutes"`
	CleaningMinutes int   `yaml:"cleaning_minutes"`
}

type planCoverage struct {
	Covered bool    `yaml:"covered"`
	Copay   float64 `yaml:"copay"`
	Notes   string  `yaml:"notes"`
}

type insuranceFile struct {
	ProcedureCodes       map[string]string  `yaml:"procedure_codes"`
	DefaultProcedureCode string             `yaml:"default_procedure_code"`
	CashPay              map[string]float64 `yaml:"cash_pay"`
	DefaultCashEstimate  float64            `yaml:"default_cash_estimate"`
	Plans                []struct {
		Payer    string                  `yaml:"payer"`
		Plan     string                  `yaml:"plan"`
		Coverage map[string]planCoverage `yaml:"coverage"`
	} `yaml:"plans"`
}

type providersFile struct {
	Schedule  Schedule   `yaml:"schedule"`
	Providers []Provider `yaml:"providers"`
	Locations []Location `yaml:"locations"`
}

type planKey struct {
	payer string
	plan  string
}

// Catalog is the read-only reference data the clinic tools answer from.
type Catalog struct {
	procedureCodes   map[string]string
	defaultProcedure string
	cashPay          map[string]float64
	defaultCash      float64
	plans            map[planKey]map[string]planCoverage

	schedule  Schedule
	providers []Provider
	locations []Location
}

var (
	defaultOnce    sync.Once
	defaultCatalog *Catalog
	defaultErr     error
)

// Load parses the embedded fixture files. The result is shared and immutable.
func Load() (*Catalog, error) {
	defaultOnce.Do(func() {
		defaultCatalog, defaultErr = Parse(insuranceRaw, providersRaw)
	})
	return defaultCatalog, defaultErr
}

func MustLoad() *Catalog {
	c, err := Load()
	if err != nil {
		panic(err)
	}
	return c
}

func Parse(insurance, providers []byte) (*Catalog, error) {
	var ins insuranceFile
	if err := yaml.Unmarshal(insurance, &ins); err != nil {
		return nil, fmt.Errorf("parse insurance fixtures: %w", err)
	}
	var prov providersFile
	if err := yaml.Unmarshal(providers, &prov); err != nil {
		return nil, fmt.Errorf("parse provider fixtures: %w", err)
	}
	if len(prov.Schedule.Hours) == 0 {
		return nil, fmt.Errorf("parse provider fixtures: schedule hours are empty")
	}

	c := &Catalog{
		procedureCodes:   ins.ProcedureCodes,
		defaultProcedure: ins.DefaultProcedureCode,
		cashPay:          ins.CashPay,
		defaultCash:      ins.DefaultCashEstimate,
		plans:            make(map[planKey]map[string]planCoverage, len(ins.Plans)),
		schedule:         prov.Schedule,
		providers:        prov.Providers,
		locations:        prov.Locations,
	}
	for _, p := range ins.Plans {
		c.plans[newPlanKey(p.Payer, p.Plan)] = p.Coverage
	}
	return c, nil
}

func newPlanKey(payer, plan string) planKey {
	return planKey{
		payer: strings.ToLower(strings.TrimSpace(payer)),
		plan:  strings.ToLower(strings.TrimSpace(plan)),
	}
}

func (c *Catalog) Providers() []Provider {
	return append([]Provider(nil), c.providers...)
}

func (c *Catalog) Locations() []Location {
	return append([]Location(nil), c.locations...)
}

func (c *Catalog) Provider(id string) (Provider, bool) {
	for _, p := range c.providers {
		if p.ID == id {
			return p, true
		}
	}
	return Provider{}, false
}

func (c *Catalog) Location(id string) (Location, bool) {
	for _, l := range c.locations {
		if l.ID == id {
			return l, true
		}
	}
	return Location{}, false
}

// FindLocationByCity matches ignoring case and spaces, so "sanjose" finds San Jose.
func (c *Catalog) FindLocationByCity(city string) (Location, bool) {
	needle := strings.ReplaceAll(strings.ToLower(city), " ", "")
	if needle == "" {
		return Location{}, false
	}
	for _, l := range c.locations {
		if strings.Contains(strings.ReplaceAll(strings.ToLower(l.City), " ", ""), needle) {
			return l, true
		}
	}
	return Location{}, false
}

func (c *Catalog) FindProviderForLocation(locationID string) (Provider, bool) {
	for _, p := range c.providers {
		if p.ServesLocation(locationID) {
			return p, true
		}
	}
	return Provider{}, false
}
