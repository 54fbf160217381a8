package config

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// TenantSettings holds per-tenant overrides.
type TenantSettings struct {
	AutoExportThreshold float64 `yaml:"auto_export_threshold"`
}

// Tenants maps tenant IDs to their settings.
type Tenants struct {
	Default TenantSettings            `yaml:"default"`
	Tenants map[string]TenantSettings `yaml:"tenants"`
}

// LoadTenants reads a tenants file. A missing file yields empty settings.
func LoadTenants(path string) (*Tenants, error) {
	t := &Tenants{Tenants: map[string]TenantSettings{}}
	if path == "" {
		return t, nil
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return t, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "config: read tenants file %s", path)
	}
	if err := yaml.Unmarshal(data, t); err != nil {
		return nil, eris.Wrapf(err, "config: parse tenants file %s", path)
	}
	if t.Tenants == nil {
		t.Tenants = map[string]TenantSettings{}
	}
	for id, s := range t.Tenants {
		if s.AutoExportThreshold < 0 || s.AutoExportThreshold > 1 {
			return nil, eris.Errorf("config: tenant %s auto_export_threshold %.2f outside [0,1]", id, s.AutoExportThreshold)
		}
	}
	return t, nil
}

// AutoExportThreshold returns the tenant's export threshold, then the file
// default, then fallback.
func (t *Tenants) AutoExportThreshold(tenantID string, fallback float64) float64 {
	if t == nil {
		return fallback
	}
	if s, ok := t.Tenants[tenantID]; ok && s.AutoExportThreshold > 0 {
		return s.AutoExportThreshold
	}
	if t.Default.AutoExportThreshold > 0 {
		return t.Default.AutoExportThreshold
	}
	return fallback
}
