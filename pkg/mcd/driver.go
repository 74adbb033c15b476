package mcd

import (
	"fmt"
	"sort"
	"sync"
)

// Driver gives access to one family of debug probes.
type Driver interface {
	// ListDevices scans for attachable devices.
	ListDevices() ([]DeviceInfo, error)
	// Connect opens a session with the selected device.
	Connect(dev DeviceInfo) (System, error)
}

var (
	driversMu sync.Mutex
	drivers   = map[string]Driver{}
)

// RegisterDriver makes a probe driver available under the given name.
// It panics on duplicate registration, mirroring database/sql semantics.
func RegisterDriver(name string, d Driver) {
	driversMu.Lock()
	defer driversMu.Unlock()
	if d == nil {
		panic("mcd: RegisterDriver driver is nil")
	}
	if _, dup := drivers[name]; dup {
		panic("mcd: RegisterDriver called twice for driver " + name)
	}
	drivers[name] = d
}

// OpenDriver returns the driver registered under name.
func OpenDriver(name string) (Driver, error) {
	driversMu.Lock()
	defer driversMu.Unlock()
	d, ok := drivers[name]
	if !ok {
		return nil, fmt.Errorf("mcd: unknown driver %q (available: %v)", name, driverNamesLocked())
	}
	return d, nil
}

// DriverNames lists the registered drivers in sorted order.
func DriverNames() []string {
	driversMu.Lock()
	defer driversMu.Unlock()
	return driverNamesLocked()
}

func driverNamesLocked() []string {
	names := make([]string, 0, len(drivers))
	for name := range drivers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
