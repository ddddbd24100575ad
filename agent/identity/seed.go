package identity

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/tanpawarit/loan-assistant/agent/contract"
)

type seedFile struct {
	Customers []seedCustomer `yaml:"customers"`
}

type seedCustomer struct {
	Phone            string `yaml:"phone"`
	Name             string `yaml:"name"`
	Salary           *int64 `yaml:"salary"`
	CreditScore      *int64 `yaml:"credit_score"`
	PreapprovedLimit int64  `yaml:"preapproved_limit"`
}

// LoadSeed reads registered customers keyed by phone from a YAML file.
func LoadSeed(path string) (map[string]*contract.Profile, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	return ParseSeed(raw)
}

func ParseSeed(raw []byte) (map[string]*contract.Profile, error) {
	var file seedFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("decode seed file: %w", err)
	}

	out := make(map[string]*contract.Profile, len(file.Customers))
	for i, c := range file.Customers {
		phone := strings.TrimSpace(c.Phone)
		if phone == "" {
			return nil, fmt.Errorf("seed customer %d: %w", i, ErrInvalidPhone)
		}
		if c.PreapprovedLimit < 0 {
			return nil, fmt.Errorf("seed customer %s: negative pre-approved limit", phone)
		}
		if _, dup := out[phone]; dup {
			return nil, fmt.Errorf("seed customer %s: duplicate phone", phone)
		}
		out[phone] = &contract.Profile{
			Name:             strings.TrimSpace(c.Name),
			Salary:           c.Salary,
			CreditScore:      c.CreditScore,
			PreapprovedLimit: c.PreapprovedLimit,
		}
	}
	return out, nil
}
