package registry

import (
	"fmt"
	"strings"
)

// DriverConfigValidator validates the database section for one driver name.
type DriverConfigValidator struct {
	name string
	// family groups aliases of the same server, e.g. "postgres" and "pgx".
	family string
}

// Type returns the driver name this validator is registered under.
func (v *DriverConfigValidator) Type() string {
	return v.name
}

// Validate checks the settings every connection of the driver needs.
func (v *DriverConfigValidator) Validate(config *InternalConfig) error {
	if config == nil {
		return fmt.Errorf("config cannot be nil")
	}
	db := config.Database
	if !strings.EqualFold(db.Driver, v.name) {
		return fmt.Errorf("invalid driver for %s validator: %s", v.name, db.Driver)
	}
	if db.ConnectionTimeout < 0 {
		return fmt.Errorf("connection_timeout must be non-negative, got: %v", db.ConnectionTimeout)
	}
	if db.Host == "" {
		return fmt.Errorf("host is required for %s", v.family)
	}
	return nil
}

// init auto-registers the validators of the supported drivers.
func init() {
	for _, name := range []string{"mysql", "mariadb"} {
		RegisterValidator(&DriverConfigValidator{name: name, family: "mysql"})
	}
	for _, name := range []string{"postgres", "postgresql", "pgx"} {
		RegisterValidator(&DriverConfigValidator{name: name, family: "postgres"})
	}
}
